package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/victornm/umoja/internal/domain"
)

const sessionColumns = `id, user_id, level, required_correct, questions_answered, level_questions_answered, correct_answers, coins_earned, coins_spent, hints_used, current_streak, max_streak, is_guest, is_active, started_at, completed_at, updated_at`

func scanSession(row pgx.Row) (*domain.GameSession, error) {
	var ss domain.GameSession
	err := row.Scan(&ss.ID, &ss.UserID, &ss.Level, &ss.RequiredCorrect, &ss.QuestionsAnswered, &ss.LevelAnswered, &ss.CorrectAnswers,
		&ss.CoinsEarned, &ss.CoinsSpent, &ss.HintsUsed, &ss.CurrentStreak, &ss.MaxStreak,
		&ss.IsGuest, &ss.IsActive, &ss.StartedAt, &ss.CompletedAt, &ss.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &ss, nil
}

func (s *Store) CreateSession(ctx context.Context, ss *domain.GameSession) error {
	id, err := newID()
	if err != nil {
		return err
	}

	const stmt = `
INSERT INTO game_sessions (id, user_id, level, required_correct, is_guest, is_active)
VALUES ($1, $2, $3, $4, $5, TRUE)
RETURNING ` + sessionColumns + `;`

	created, err := scanSession(s.db.QueryRow(ctx, stmt, id, ss.UserID, ss.Level, ss.RequiredCorrect, ss.IsGuest))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	*ss = *created
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*domain.GameSession, error) {
	return scanSession(s.db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM game_sessions WHERE id = $1;`, id))
}

// ApplyAnswer updates the session counters for one answer in a single statement.
func (s *Store) ApplyAnswer(ctx context.Context, id string, u domain.AnswerUpdate) (*domain.GameSession, error) {
	const stmt = `
UPDATE game_sessions SET
	questions_answered = questions_answered + 1,
	level_questions_answered = level_questions_answered + 1,
	correct_answers = CASE
		WHEN $3::int IS NOT NULL THEN $3::int
		WHEN $2::boolean THEN correct_answers + 1
		ELSE correct_answers
	END,
	coins_earned = coins_earned + $4,
	current_streak = CASE WHEN $2::boolean THEN current_streak + 1 ELSE 0 END,
	max_streak = GREATEST(max_streak, CASE WHEN $2::boolean THEN current_streak + 1 ELSE 0 END),
	updated_at = now()
WHERE id = $1
RETURNING ` + sessionColumns + `;`

	return scanSession(s.db.QueryRow(ctx, stmt, id, u.Correct, u.CorrectAnswers, u.CoinsEarned))
}

// AdvanceLevel moves the session to level and restarts the per-level answer count.
// Levels never go down.
func (s *Store) AdvanceLevel(ctx context.Context, id string, level, requiredCorrect int) (*domain.GameSession, error) {
	const stmt = `
UPDATE game_sessions SET level = $2, required_correct = $3, level_questions_answered = 0, updated_at = now()
WHERE id = $1 AND level < $2
RETURNING ` + sessionColumns + `;`

	return scanSession(s.db.QueryRow(ctx, stmt, id, level, requiredCorrect))
}

func (s *Store) RecordHintSpend(ctx context.Context, id string, coins int) error {
	const stmt = `UPDATE game_sessions SET coins_spent = coins_spent + $2, hints_used = hints_used + 1, updated_at = now() WHERE id = $1;`

	tag, err := s.db.Exec(ctx, stmt, id, coins)
	if err != nil {
		return fmt.Errorf("record hint spend: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CloseStaleSessions deactivates active sessions not updated since before.
func (s *Store) CloseStaleSessions(ctx context.Context, before time.Time) (int64, error) {
	const stmt = `
UPDATE game_sessions SET is_active = FALSE, completed_at = now(), updated_at = now()
WHERE is_active AND updated_at < $1;`

	tag, err := s.db.Exec(ctx, stmt, before)
	if err != nil {
		return 0, fmt.Errorf("close stale sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SessionTotals aggregates every session owned by userID.
func (s *Store) SessionTotals(ctx context.Context, userID string) (domain.SessionTotals, error) {
	const stmt = `
SELECT
	COUNT(*),
	COUNT(*) FILTER (WHERE NOT is_active),
	COALESCE(SUM(questions_answered), 0),
	COALESCE(SUM(correct_answers), 0),
	COALESCE(SUM(coins_earned), 0),
	COALESCE(SUM(coins_spent), 0),
	COALESCE(SUM(hints_used), 0),
	COALESCE(MAX(max_streak), 0),
	COALESCE(MAX(level), 0)
FROM game_sessions
WHERE user_id = $1;`

	var t domain.SessionTotals
	err := s.db.QueryRow(ctx, stmt, userID).Scan(&t.Sessions, &t.Completed, &t.QuestionsAnswered, &t.CorrectAnswers,
		&t.CoinsEarned, &t.CoinsSpent, &t.HintsUsed, &t.BestStreak, &t.HighestLevel)
	if err != nil {
		return domain.SessionTotals{}, fmt.Errorf("session totals: %w", err)
	}

	return t, nil
}

const gameQuestionColumns = `id, session_id, question_id, is_correct, served_at, answered_at`

func scanGameQuestion(row pgx.Row) (*domain.GameQuestion, error) {
	var gq domain.GameQuestion
	err := row.Scan(&gq.ID, &gq.SessionID, &gq.QuestionID, &gq.IsCorrect, &gq.ServedAt, &gq.AnsweredAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &gq, nil
}

// CreateGameQuestion records a served question. It returns ErrConflict when the
// session was already served that question.
func (s *Store) CreateGameQuestion(ctx context.Context, gq *domain.GameQuestion) error {
	id, err := newID()
	if err != nil {
		return err
	}

	const stmt = `
INSERT INTO game_questions (id, session_id, question_id)
VALUES ($1, $2, $3)
RETURNING ` + gameQuestionColumns + `;`

	created, err := scanGameQuestion(s.db.QueryRow(ctx, stmt, id, gq.SessionID, gq.QuestionID))
	if isUniqueViolation(err, "game_questions_session_id_question_id_key") {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert game question: %w", err)
	}

	*gq = *created
	return nil
}

func (s *Store) FindGameQuestion(ctx context.Context, sessionID, questionID string) (*domain.GameQuestion, error) {
	const stmt = `SELECT ` + gameQuestionColumns + ` FROM game_questions WHERE session_id = $1 AND question_id = $2;`
	return scanGameQuestion(s.db.QueryRow(ctx, stmt, sessionID, questionID))
}

// MarkAnswered records the outcome of a served question. It returns ErrNotFound
// when the question was already answered.
func (s *Store) MarkAnswered(ctx context.Context, id string, correct bool) error {
	const stmt = `UPDATE game_questions SET is_correct = $2, answered_at = now() WHERE id = $1 AND answered_at IS NULL;`

	tag, err := s.db.Exec(ctx, stmt, id, correct)
	if err != nil {
		return fmt.Errorf("mark answered: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListGameQuestions(ctx context.Context, sessionID string) ([]domain.GameQuestion, error) {
	const stmt = `SELECT ` + gameQuestionColumns + ` FROM game_questions WHERE session_id = $1 ORDER BY served_at, id;`

	rows, err := s.db.Query(ctx, stmt, sessionID)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.GameQuestion, error) {
		gq, err := scanGameQuestion(r)
		if err != nil {
			return domain.GameQuestion{}, err
		}
		return *gq, nil
	})
}

func (s *Store) CreateHintRequest(ctx context.Context, h *domain.HintRequest) error {
	id, err := newID()
	if err != nil {
		return err
	}

	const stmt = `
INSERT INTO hint_requests (id, user_id, session_id, question_id, hint_text, coins_spent)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING created_at;`

	if err := s.db.QueryRow(ctx, stmt, id, h.UserID, h.SessionID, h.QuestionID, h.HintText, h.CoinsSpent).Scan(&h.CreatedAt); err != nil {
		return fmt.Errorf("insert hint request: %w", err)
	}

	h.ID = id
	return nil
}
