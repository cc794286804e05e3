package store

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/victornm/umoja/internal/domain"
	"github.com/victornm/umoja/internal/errors"
)

const userColumns = `id, phone_number, email, role, coins, total_score, games_played, is_verified, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.PhoneNumber, &u.Email, &u.Role, &u.Coins, &u.TotalScore, &u.GamesPlayed, &u.IsVerified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// CreateUser inserts u, assigning its ID and timestamps.
func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	id, err := newID()
	if err != nil {
		return err
	}

	const stmt = `
INSERT INTO users (id, phone_number, email, role, coins, total_score, games_played, is_verified)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING created_at, updated_at;`

	err = s.db.QueryRow(ctx, stmt, id, u.PhoneNumber, u.Email, u.Role, u.Coins, u.TotalScore, u.GamesPlayed, u.IsVerified).
		Scan(&u.CreatedAt, &u.UpdatedAt)
	if isUniqueViolation(err, "users_phone_number_key") {
		return ErrConflict
	}
	if isUniqueViolation(err, "") {
		return errors.New(errors.KindValidation,
			errors.WithMessagef("Phone number or email already exists"),
			errors.WithCause(err))
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	u.ID = id
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1;`, id))
}

func (s *Store) FindUserByPhone(ctx context.Context, phone string) (*domain.User, error) {
	return scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE phone_number = $1;`, phone))
}

func (s *Store) SetUserVerified(ctx context.Context, id string) (*domain.User, error) {
	const stmt = `UPDATE users SET is_verified = TRUE, updated_at = now() WHERE id = $1 RETURNING ` + userColumns + `;`
	return scanUser(s.db.QueryRow(ctx, stmt, id))
}

// PhoneTaken reports whether another user than exceptID owns phone.
func (s *Store) PhoneTaken(ctx context.Context, phone, exceptID string) (bool, error) {
	var ok bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE phone_number = $1 AND id <> $2);`, phone, exceptID).Scan(&ok)
	return ok, err
}

// EmailTaken reports whether another user than exceptID owns email.
func (s *Store) EmailTaken(ctx context.Context, email, exceptID string) (bool, error) {
	var ok bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND id <> $2);`, email, exceptID).Scan(&ok)
	return ok, err
}

// UpdateUserContact sets the non-nil fields.
func (s *Store) UpdateUserContact(ctx context.Context, id string, phone, email *string) (*domain.User, error) {
	const stmt = `
UPDATE users SET
	phone_number = COALESCE($2, phone_number),
	email = COALESCE($3, email),
	updated_at = now()
WHERE id = $1
RETURNING ` + userColumns + `;`

	u, err := scanUser(s.db.QueryRow(ctx, stmt, id, phone, email))
	if isUniqueViolation(err, "") {
		return nil, errors.New(errors.KindValidation,
			errors.WithMessagef("Phone number or email already exists"),
			errors.WithCause(err))
	}
	return u, err
}

// DebitUser takes coins off the balance and returns what is left. It returns
// ErrInsufficientCoins when the balance is too low and ErrNotFound when the user is gone.
func (s *Store) DebitUser(ctx context.Context, id string, coins int) (int, error) {
	const stmt = `UPDATE users SET coins = coins - $2, updated_at = now() WHERE id = $1 AND coins >= $2 RETURNING coins;`

	var left int
	err := s.db.QueryRow(ctx, stmt, id, coins).Scan(&left)
	if err == nil {
		return left, nil
	}
	if !stderrors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("debit coins: %w", err)
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1);`, id).Scan(&exists); err != nil {
		return 0, fmt.Errorf("debit coins: %w", err)
	}
	if !exists {
		return 0, ErrNotFound
	}
	return 0, ErrInsufficientCoins
}

// CreditUser adds earned coins to both the balance and the aggregate score.
func (s *Store) CreditUser(ctx context.Context, id string, coins int) error {
	_, err := s.db.Exec(ctx, `UPDATE users SET coins = coins + $2, total_score = total_score + $2, updated_at = now() WHERE id = $1;`, id, coins)
	return err
}

func (s *Store) IncrementGamesPlayed(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `UPDATE users SET games_played = games_played + 1, updated_at = now() WHERE id = $1;`, id)
	return err
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM users WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListProgress(ctx context.Context, userID string) ([]domain.UserProgress, error) {
	const stmt = `
SELECT user_id, category, current_level, experience_points, questions_correct, questions_total, best_streak
FROM user_progress
WHERE user_id = $1
ORDER BY category;`

	rows, err := s.db.Query(ctx, stmt, userID)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.UserProgress, error) {
		var p domain.UserProgress
		err := r.Scan(&p.UserID, &p.Category, &p.CurrentLevel, &p.ExperiencePoints, &p.QuestionsCorrect, &p.QuestionsTotal, &p.BestStreak)
		return p, err
	})
}

func (s *Store) UpsertProgress(ctx context.Context, d domain.ProgressDelta) error {
	const stmt = `
INSERT INTO user_progress (user_id, category, current_level, experience_points, questions_correct, questions_total, best_streak)
VALUES ($1, $2, $3, $4, $5, 1, $6)
ON CONFLICT (user_id, category) DO UPDATE SET
	current_level = GREATEST(user_progress.current_level, EXCLUDED.current_level),
	experience_points = user_progress.experience_points + EXCLUDED.experience_points,
	questions_correct = user_progress.questions_correct + EXCLUDED.questions_correct,
	questions_total = user_progress.questions_total + 1,
	best_streak = GREATEST(user_progress.best_streak, EXCLUDED.best_streak),
	updated_at = now();`

	correct := 0
	if d.Correct {
		correct = 1
	}

	_, err := s.db.Exec(ctx, stmt, d.UserID, d.Category, d.Level, d.ExperiencePoints, correct, d.Streak)
	return err
}
