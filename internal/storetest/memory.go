// Package storetest provides an in-memory implementation of the store method set for tests.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/umoja/internal/domain"
	"github.com/victornm/umoja/internal/store"
)

type Memory struct {
	mu sync.Mutex

	now func() time.Time

	users         map[string]domain.User
	questions     map[string]domain.Question
	sessions      map[string]domain.GameSession
	gameQuestions map[string]domain.GameQuestion
	hints         []domain.HintRequest
	progress      map[string]domain.UserProgress

	// Err, when set, is returned by every call.
	Err error
}

func New() *Memory {
	return &Memory{
		now:           time.Now,
		users:         make(map[string]domain.User),
		questions:     make(map[string]domain.Question),
		sessions:      make(map[string]domain.GameSession),
		gameQuestions: make(map[string]domain.GameQuestion),
		progress:      make(map[string]domain.UserProgress),
	}
}

func (m *Memory) Ping(context.Context) error {
	return m.Err
}

func (m *Memory) Stats(context.Context) (domain.DBStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return domain.DBStats{
		Users:        int64(len(m.users)),
		Questions:    int64(len(m.questions)),
		GameSessions: int64(len(m.sessions)),
	}, m.Err
}

// Users

func (m *Memory) CreateUser(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	for _, x := range m.users {
		if x.PhoneNumber == u.PhoneNumber {
			return store.ErrConflict
		}
	}

	u.ID = uuid.NewString()
	u.CreatedAt = m.now()
	u.UpdatedAt = u.CreatedAt
	m.users[u.ID] = *u
	return nil
}

func (m *Memory) GetUser(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (m *Memory) FindUserByPhone(_ context.Context, phone string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	for _, u := range m.users {
		if u.PhoneNumber == phone {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *Memory) SetUserVerified(_ context.Context, id string) (*domain.User, error) {
	return m.updateUser(id, func(u *domain.User) {
		u.IsVerified = true
	})
}

func (m *Memory) PhoneTaken(_ context.Context, phone, exceptID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.ID != exceptID && u.PhoneNumber == phone {
			return true, m.Err
		}
	}
	return false, m.Err
}

func (m *Memory) EmailTaken(_ context.Context, email, exceptID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.ID != exceptID && u.Email != nil && *u.Email == email {
			return true, m.Err
		}
	}
	return false, m.Err
}

func (m *Memory) UpdateUserContact(_ context.Context, id string, phone, email *string) (*domain.User, error) {
	return m.updateUser(id, func(u *domain.User) {
		if phone != nil {
			u.PhoneNumber = *phone
		}
		if email != nil {
			e := *email
			u.Email = &e
		}
	})
}

func (m *Memory) DebitUser(_ context.Context, id string, coins int) (int, error) {
	short := false
	u, err := m.updateUser(id, func(u *domain.User) {
		if u.Coins < coins {
			short = true
			return
		}
		u.Coins -= coins
	})
	if err != nil {
		return 0, err
	}
	if short {
		return 0, store.ErrInsufficientCoins
	}
	return u.Coins, nil
}

func (m *Memory) CreditUser(_ context.Context, id string, coins int) error {
	_, err := m.updateUser(id, func(u *domain.User) {
		u.Coins += coins
		u.TotalScore += coins
	})
	if err == store.ErrNotFound {
		return nil
	}
	return err
}

func (m *Memory) IncrementGamesPlayed(_ context.Context, id string) error {
	_, err := m.updateUser(id, func(u *domain.User) {
		u.GamesPlayed++
	})
	if err == store.ErrNotFound {
		return nil
	}
	return err
}

func (m *Memory) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.users, id)
	for k, p := range m.progress {
		if p.UserID == id {
			delete(m.progress, k)
		}
	}
	for k, ss := range m.sessions {
		if ss.UserID != nil && *ss.UserID == id {
			ss.UserID = nil
			m.sessions[k] = ss
		}
	}
	return nil
}

func (m *Memory) updateUser(id string, f func(u *domain.User)) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	f(&u)
	u.UpdatedAt = m.now()
	m.users[id] = u
	return &u, nil
}

// Progress

func (m *Memory) ListProgress(_ context.Context, userID string) ([]domain.UserProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.UserProgress, 0)
	for _, p := range m.progress {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, m.Err
}

func (m *Memory) UpsertProgress(_ context.Context, d domain.ProgressDelta) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}

	key := d.UserID + "/" + string(d.Category)
	p, ok := m.progress[key]
	if !ok {
		p = domain.UserProgress{UserID: d.UserID, Category: d.Category}
	}

	p.CurrentLevel = max(p.CurrentLevel, d.Level)
	p.ExperiencePoints += d.ExperiencePoints
	p.QuestionsTotal++
	if d.Correct {
		p.QuestionsCorrect++
	}
	p.BestStreak = max(p.BestStreak, d.Streak)

	m.progress[key] = p
	return nil
}

// Questions

// AddQuestions stores qs as is, assigning IDs and creation times in slice order when missing.
func (m *Memory) AddQuestions(qs ...domain.Question) []domain.Question {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Question, 0, len(qs))
	for i, q := range qs {
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		if q.CreatedAt.IsZero() {
			q.CreatedAt = m.now().Add(time.Duration(len(m.questions)+i) * time.Millisecond)
		}
		m.questions[q.ID] = q
		out = append(out, q)
	}
	return out
}

func (m *Memory) GetQuestion(_ context.Context, id string) (*domain.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	q, ok := m.questions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &q, nil
}

func (m *Memory) ListQuestions(_ context.Context, f domain.QuestionFilter) ([]domain.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}

	served := make(map[string]bool)
	if f.ExcludeServedIn != "" {
		for _, gq := range m.gameQuestions {
			if gq.SessionID == f.ExcludeServedIn {
				served[gq.QuestionID] = true
			}
		}
	}

	out := make([]domain.Question, 0)
	for _, q := range m.questions {
		if !q.IsActive || served[q.ID] || !contains(f.Categories, q.Category) {
			continue
		}
		if f.Level != 0 && q.Level != f.Level {
			continue
		}
		out = append(out, q)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *Memory) InsertQuestions(_ context.Context, qs []domain.Question) (int64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	added := m.AddQuestions(qs...)
	for i := range qs {
		qs[i].ID = added[i].ID
	}
	return int64(len(added)), nil
}

func (m *Memory) DeleteQuestions(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := int64(len(m.questions))
	m.questions = make(map[string]domain.Question)
	return n, m.Err
}

func (m *Memory) CountQuestionsByCategory(context.Context) (map[domain.Category]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[domain.Category]int64)
	for _, q := range m.questions {
		out[q.Category]++
	}
	return out, m.Err
}

// Sessions

func (m *Memory) CreateSession(_ context.Context, ss *domain.GameSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}

	ss.ID = uuid.NewString()
	ss.IsActive = true
	ss.StartedAt = m.now()
	ss.UpdatedAt = ss.StartedAt
	m.sessions[ss.ID] = *ss
	return nil
}

// PutSession stores ss as is, overwriting any session with the same ID.
func (m *Memory) PutSession(ss domain.GameSession) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ss.UpdatedAt.IsZero() {
		ss.UpdatedAt = m.now()
	}
	m.sessions[ss.ID] = ss
}

func (m *Memory) GetSession(_ context.Context, id string) (*domain.GameSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	ss, ok := m.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &ss, nil
}

func (m *Memory) ApplyAnswer(_ context.Context, id string, u domain.AnswerUpdate) (*domain.GameSession, error) {
	return m.updateSession(id, func(ss *domain.GameSession) bool {
		ss.QuestionsAnswered++
		ss.LevelAnswered++
		switch {
		case u.CorrectAnswers != nil:
			ss.CorrectAnswers = *u.CorrectAnswers
		case u.Correct:
			ss.CorrectAnswers++
		}
		ss.CoinsEarned += u.CoinsEarned
		if u.Correct {
			ss.CurrentStreak++
		} else {
			ss.CurrentStreak = 0
		}
		ss.MaxStreak = max(ss.MaxStreak, ss.CurrentStreak)
		return true
	})
}

func (m *Memory) AdvanceLevel(_ context.Context, id string, level, requiredCorrect int) (*domain.GameSession, error) {
	return m.updateSession(id, func(ss *domain.GameSession) bool {
		if ss.Level >= level {
			return false
		}
		ss.Level = level
		ss.RequiredCorrect = requiredCorrect
		ss.LevelAnswered = 0
		return true
	})
}

func (m *Memory) RecordHintSpend(_ context.Context, id string, coins int) error {
	_, err := m.updateSession(id, func(ss *domain.GameSession) bool {
		ss.CoinsSpent += coins
		ss.HintsUsed++
		return true
	})
	return err
}

func (m *Memory) CloseStaleSessions(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return 0, m.Err
	}

	var n int64
	now := m.now()
	for id, ss := range m.sessions {
		if ss.IsActive && ss.UpdatedAt.Before(before) {
			ss.IsActive = false
			ss.CompletedAt = &now
			ss.UpdatedAt = now
			m.sessions[id] = ss
			n++
		}
	}
	return n, nil
}

func (m *Memory) SessionTotals(_ context.Context, userID string) (domain.SessionTotals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var t domain.SessionTotals
	for _, ss := range m.sessions {
		if ss.UserID == nil || *ss.UserID != userID {
			continue
		}
		t.Sessions++
		if !ss.IsActive {
			t.Completed++
		}
		t.QuestionsAnswered += ss.QuestionsAnswered
		t.CorrectAnswers += ss.CorrectAnswers
		t.CoinsEarned += ss.CoinsEarned
		t.CoinsSpent += ss.CoinsSpent
		t.HintsUsed += ss.HintsUsed
		t.BestStreak = max(t.BestStreak, ss.MaxStreak)
		t.HighestLevel = max(t.HighestLevel, ss.Level)
	}
	return t, m.Err
}

func (m *Memory) updateSession(id string, f func(ss *domain.GameSession) bool) (*domain.GameSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	ss, ok := m.sessions[id]
	if !ok || !f(&ss) {
		return nil, store.ErrNotFound
	}
	ss.UpdatedAt = m.now()
	m.sessions[id] = ss
	return &ss, nil
}

// Served questions

func (m *Memory) CreateGameQuestion(_ context.Context, gq *domain.GameQuestion) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	for _, x := range m.gameQuestions {
		if x.SessionID == gq.SessionID && x.QuestionID == gq.QuestionID {
			return store.ErrConflict
		}
	}

	gq.ID = uuid.NewString()
	gq.ServedAt = m.now()
	m.gameQuestions[gq.ID] = *gq
	return nil
}

func (m *Memory) FindGameQuestion(_ context.Context, sessionID, questionID string) (*domain.GameQuestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	for _, gq := range m.gameQuestions {
		if gq.SessionID == sessionID && gq.QuestionID == questionID {
			return &gq, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *Memory) MarkAnswered(_ context.Context, id string, correct bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	gq, ok := m.gameQuestions[id]
	if !ok || gq.AnsweredAt != nil {
		return store.ErrNotFound
	}
	now := m.now()
	gq.IsCorrect = &correct
	gq.AnsweredAt = &now
	m.gameQuestions[id] = gq
	return nil
}

func (m *Memory) ListGameQuestions(_ context.Context, sessionID string) ([]domain.GameQuestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.GameQuestion, 0)
	for _, gq := range m.gameQuestions {
		if gq.SessionID == sessionID {
			out = append(out, gq)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ServedAt.Before(out[j].ServedAt) })
	return out, m.Err
}

func (m *Memory) CreateHintRequest(_ context.Context, h *domain.HintRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	h.ID = uuid.NewString()
	h.CreatedAt = m.now()
	m.hints = append(m.hints, *h)
	return nil
}

// Hints returns the recorded hint requests in insertion order.
func (m *Memory) Hints() []domain.HintRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]domain.HintRequest(nil), m.hints...)
}

// PutUser stores u as is.
func (m *Memory) PutUser(u domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.users[u.ID] = u
}

func contains(cs []domain.Category, c domain.Category) bool {
	for _, x := range cs {
		if x == c {
			return true
		}
	}
	return false
}
