// Package game runs the session progression: serving questions, scoring answers,
// advancing levels and selling hints.
package game

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/victornm/umoja/internal/domain"
	"github.com/victornm/umoja/internal/errors"
	"github.com/victornm/umoja/internal/event"
	"github.com/victornm/umoja/internal/store"
)

type Store interface {
	CreateSession(ctx context.Context, ss *domain.GameSession) error
	GetSession(ctx context.Context, id string) (*domain.GameSession, error)
	ApplyAnswer(ctx context.Context, id string, u domain.AnswerUpdate) (*domain.GameSession, error)
	AdvanceLevel(ctx context.Context, id string, level, requiredCorrect int) (*domain.GameSession, error)
	RecordHintSpend(ctx context.Context, id string, coins int) error

	GetQuestion(ctx context.Context, id string) (*domain.Question, error)
	ListQuestions(ctx context.Context, f domain.QuestionFilter) ([]domain.Question, error)

	CreateGameQuestion(ctx context.Context, gq *domain.GameQuestion) error
	FindGameQuestion(ctx context.Context, sessionID, questionID string) (*domain.GameQuestion, error)
	MarkAnswered(ctx context.Context, id string, correct bool) error
	ListGameQuestions(ctx context.Context, sessionID string) ([]domain.GameQuestion, error)

	CreateHintRequest(ctx context.Context, h *domain.HintRequest) error
	DebitUser(ctx context.Context, id string, coins int) (int, error)
}

type Config struct {
	Store    Store
	EventBus *event.Bus
	// Pick returns an index in [0, n). Defaults to a uniform random pick.
	Pick func(n int) int
}

type Service struct {
	store Store
	eb    *event.Bus
	pick  func(n int) int
}

func NewService(c Config) *Service {
	s := &Service{
		store: c.Store,
		eb:    c.EventBus,
		pick:  c.Pick,
	}
	if s.pick == nil {
		s.pick = rand.IntN
	}

	return s
}

type StartSessionRequest struct {
	UserID        string
	Authenticated bool
}

// StartSession creates a session at the initial level. Guest sessions have no owner.
func (s *Service) StartSession(ctx context.Context, req StartSessionRequest) (*domain.GameSession, error) {
	ss := &domain.GameSession{
		Level:           InitialLevel,
		RequiredCorrect: RequiredCorrect(InitialLevel),
		IsGuest:         !req.Authenticated,
	}
	if req.Authenticated && req.UserID != "" {
		id := req.UserID
		ss.UserID = &id
	}

	if err := s.store.CreateSession(ctx, ss); err != nil {
		return nil, err
	}

	s.eb.Publish(ctx, domain.EventSessionStarted{Session: *ss})

	return ss, nil
}

type NextQuestionRequest struct {
	SessionID string
}

type NextQuestionResponse struct {
	Question domain.Question
	Timer    int
}

// NextQuestion serves a random question of the session level that the session has not seen yet.
func (s *Service) NextQuestion(ctx context.Context, req NextQuestionRequest) (*NextQuestionResponse, error) {
	ss, err := s.activeSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	candidates, err := s.store.ListQuestions(ctx, domain.QuestionFilter{
		Categories:      UnlockedTopics(ss.Level),
		Level:           ss.Level,
		ExcludeServedIn: ss.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil, errors.New(errors.KindNoQuestions)
	}

	// A concurrent request on the same session may serve the picked question first.
	for len(candidates) > 0 {
		i := s.pick(len(candidates))
		q := candidates[i]

		err := s.store.CreateGameQuestion(ctx, &domain.GameQuestion{
			SessionID:  ss.ID,
			QuestionID: q.ID,
		})
		if stderrors.Is(err, store.ErrConflict) {
			candidates = append(candidates[:i], candidates[i+1:]...)
			continue
		}
		if err != nil {
			return nil, err
		}

		return &NextQuestionResponse{
			Question: q,
			Timer:    TimerSeconds,
		}, nil
	}

	return nil, errors.New(errors.KindNoQuestions)
}

type SubmitAnswerRequest struct {
	SessionID      string
	QuestionID     string
	SelectedOption string
	Authenticated  bool
}

type SubmitAnswerResponse struct {
	IsCorrect           bool
	CorrectAnswer       domain.Option
	CoinsEarned         int
	RequireRegistration bool
	LevelComplete       bool
	Level               int
}

// SubmitAnswer scores an answer to a served question and advances the level once
// the required number of correct answers is reached. Guests are stopped at the
// initial level until they register.
func (s *Service) SubmitAnswer(ctx context.Context, req SubmitAnswerRequest) (*SubmitAnswerResponse, error) {
	ss, err := s.activeSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	gq, err := s.store.FindGameQuestion(ctx, ss.ID, req.QuestionID)
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.New(errors.KindQuestionNotInSession)
	}
	if err != nil {
		return nil, err
	}

	q, err := s.question(ctx, req.QuestionID)
	if err != nil {
		return nil, err
	}

	correct := domain.Option(req.SelectedOption) == q.CorrectAnswer

	err = s.store.MarkAnswered(ctx, gq.ID, correct)
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.New(errors.KindValidation, errors.WithMessagef("Question already answered"))
	}
	if err != nil {
		return nil, err
	}

	res := &SubmitAnswerResponse{
		IsCorrect:     correct,
		CorrectAnswer: q.CorrectAnswer,
		Level:         ss.Level,
	}

	if !correct {
		updated, err := s.store.ApplyAnswer(ctx, ss.ID, domain.AnswerUpdate{})
		if err != nil {
			return nil, fmt.Errorf("apply answer: %w", err)
		}

		res.LevelComplete = updated.LevelAnswered >= LevelQuota(updated.Level)
		res.RequireRegistration = res.LevelComplete && !req.Authenticated && updated.Level == InitialLevel

		s.eb.Publish(ctx, domain.EventAnswerSubmitted{Session: *updated, Question: *q})
		return res, nil
	}

	res.CoinsEarned = CoinsEarned(ss.Level)
	newCorrect := ss.CorrectAnswers + 1
	reached := newCorrect >= ss.RequiredCorrect

	u := domain.AnswerUpdate{Correct: true, CoinsEarned: res.CoinsEarned}
	if reached {
		u.CorrectAnswers = &newCorrect
	}

	updated, err := s.store.ApplyAnswer(ctx, ss.ID, u)
	if err != nil {
		return nil, fmt.Errorf("apply answer: %w", err)
	}

	if reached {
		res.LevelComplete = true

		if !req.Authenticated && ss.Level == InitialLevel {
			res.RequireRegistration = true
		} else if advanced, err := s.advance(ctx, updated); err != nil {
			return nil, err
		} else if advanced != nil {
			updated = advanced
		}
	}

	res.Level = updated.Level

	s.eb.Publish(ctx, domain.EventAnswerSubmitted{
		Session:     *updated,
		Question:    *q,
		IsCorrect:   true,
		CoinsEarned: res.CoinsEarned,
	})

	return res, nil
}

// advance moves ss one level up. It returns nil when another request advanced it first.
func (s *Service) advance(ctx context.Context, ss *domain.GameSession) (*domain.GameSession, error) {
	next := ss.Level + 1

	advanced, err := s.store.AdvanceLevel(ctx, ss.ID, next, RequiredCorrect(next))
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("advance level: %w", err)
	}

	slog.InfoContext(ctx, "game: level advanced",
		"session_id", ss.ID,
		"level", advanced.Level,
	)

	s.eb.Publish(ctx, domain.EventLevelAdvanced{
		Session:   *advanced,
		FromLevel: ss.Level,
	})

	return advanced, nil
}

type HintRequest struct {
	UserID        string
	SessionID     string
	QuestionID    string
	Authenticated bool
}

type HintResponse struct {
	HintText string
}

// Hint returns a clue for a question. Registered players pay HintCost coins, guests get it for free.
func (s *Service) Hint(ctx context.Context, req HintRequest) (*HintResponse, error) {
	ss, err := s.activeSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	q, err := s.question(ctx, req.QuestionID)
	if err != nil {
		return nil, err
	}

	h := &domain.HintRequest{
		SessionID:  ss.ID,
		QuestionID: q.ID,
		HintText:   hintText(q),
	}

	if !req.Authenticated {
		if err := s.store.CreateHintRequest(ctx, h); err != nil {
			return nil, err
		}
		s.eb.Publish(ctx, domain.EventHintPurchased{Hint: *h})
		return &HintResponse{HintText: h.HintText}, nil
	}

	_, err = s.store.DebitUser(ctx, req.UserID, HintCost)
	switch {
	case stderrors.Is(err, store.ErrNotFound):
		return nil, errors.New(errors.KindUserNotFound)
	case stderrors.Is(err, store.ErrInsufficientCoins):
		return nil, errors.New(errors.KindInsufficientCoins)
	case err != nil:
		return nil, err
	}

	userID := req.UserID
	h.UserID = &userID
	h.CoinsSpent = HintCost

	// No transaction: a failure past this point leaves the hint paid but unrecorded.
	if err := s.store.CreateHintRequest(ctx, h); err != nil {
		return nil, err
	}
	if err := s.store.RecordHintSpend(ctx, ss.ID, HintCost); err != nil {
		return nil, err
	}

	s.eb.Publish(ctx, domain.EventHintPurchased{Hint: *h})

	return &HintResponse{HintText: h.HintText}, nil
}

func hintText(q *domain.Question) string {
	if q.Hint != "" {
		return q.Hint
	}
	return fmt.Sprintf("A clue related to %s and %s.", q.Country, strings.ToLower(string(q.Category)))
}

type ResultsRequest struct {
	SessionID string
}

type ResultsResponse struct {
	Session              domain.GameSession
	Questions            []domain.GameQuestion
	Answered             int
	Correct              int
	Incorrect            int
	CompletionPercentage int
	Skipped              int
	Duration             time.Duration
}

// Results summarizes a session, active or not.
func (s *Service) Results(ctx context.Context, req ResultsRequest) (*ResultsResponse, error) {
	ss, err := s.store.GetSession(ctx, req.SessionID)
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.New(errors.KindSessionNotFound)
	}
	if err != nil {
		return nil, err
	}

	served, err := s.store.ListGameQuestions(ctx, ss.ID)
	if err != nil {
		return nil, fmt.Errorf("list served questions: %w", err)
	}

	end := ss.UpdatedAt
	if ss.CompletedAt != nil {
		end = *ss.CompletedAt
	}

	return &ResultsResponse{
		Session:              *ss,
		Questions:            served,
		Answered:             ss.QuestionsAnswered,
		Correct:              ss.CorrectAnswers,
		Incorrect:            ss.QuestionsAnswered - ss.CorrectAnswers,
		CompletionPercentage: CompletionPercentage(ss.CorrectAnswers, ss.QuestionsAnswered),
		Skipped:              max(0, LevelQuota(ss.Level)-ss.QuestionsAnswered),
		Duration:             end.Sub(ss.StartedAt),
	}, nil
}

// CompletionPercentage is correct/answered as a whole percentage, rounded half up.
func CompletionPercentage(correct, answered int) int {
	if answered == 0 {
		return 0
	}

	return int(decimal.NewFromInt(int64(correct)).
		Div(decimal.NewFromInt(int64(answered))).
		Mul(decimal.NewFromInt(100)).
		Round(0).
		IntPart())
}

func (s *Service) activeSession(ctx context.Context, id string) (*domain.GameSession, error) {
	ss, err := s.store.GetSession(ctx, id)
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.New(errors.KindInvalidSession)
	}
	if err != nil {
		return nil, err
	}
	if !ss.IsActive {
		return nil, errors.New(errors.KindInvalidSession)
	}

	return ss, nil
}

func (s *Service) question(ctx context.Context, id string) (*domain.Question, error) {
	q, err := s.store.GetQuestion(ctx, id)
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.New(errors.KindQuestionNotFound)
	}
	return q, err
}
