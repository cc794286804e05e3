package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/victornm/umoja/internal/domain"
)

const questionColumns = `id, category, country, difficulty, level, question_text, option_a, option_b, option_c, option_d, correct_answer, explanation, hint, hint_cost, is_active, created_at`

func scanQuestion(row pgx.Row) (domain.Question, error) {
	var q domain.Question
	err := row.Scan(&q.ID, &q.Category, &q.Country, &q.Difficulty, &q.Level, &q.Text,
		&q.OptionA, &q.OptionB, &q.OptionC, &q.OptionD, &q.CorrectAnswer,
		&q.Explanation, &q.Hint, &q.HintCost, &q.IsActive, &q.CreatedAt)
	return q, err
}

func (s *Store) GetQuestion(ctx context.Context, id string) (*domain.Question, error) {
	q, err := scanQuestion(s.db.QueryRow(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = $1;`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &q, nil
}

// ListQuestions returns active questions matching f, oldest first.
func (s *Store) ListQuestions(ctx context.Context, f domain.QuestionFilter) ([]domain.Question, error) {
	const stmt = `
SELECT ` + questionColumns + `
FROM questions q
WHERE q.is_active
	AND q.category = ANY($1)
	AND ($2 = 0 OR q.level = $2)
	AND ($3 = '' OR NOT EXISTS (
		SELECT 1 FROM game_questions gq WHERE gq.session_id = $3 AND gq.question_id = q.id
	))
ORDER BY q.created_at ASC, q.id ASC
LIMIT NULLIF($4, 0);`

	categories := make([]string, 0, len(f.Categories))
	for _, c := range f.Categories {
		categories = append(categories, string(c))
	}

	rows, err := s.db.Query(ctx, stmt, categories, f.Level, f.ExcludeServedIn, f.Limit)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Question, error) {
		return scanQuestion(r)
	})
}

// InsertQuestions inserts qs in one batch, assigning IDs. It returns the number of rows inserted.
func (s *Store) InsertQuestions(ctx context.Context, qs []domain.Question) (int64, error) {
	const stmt = `
INSERT INTO questions (id, category, country, difficulty, level, question_text, option_a, option_b, option_c, option_d, correct_answer, explanation, hint, hint_cost, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT DO NOTHING;`

	b := &pgx.Batch{}
	for i := range qs {
		id, err := newID()
		if err != nil {
			return 0, err
		}
		qs[i].ID = id

		q := qs[i]
		b.Queue(stmt, q.ID, q.Category, q.Country, q.Difficulty, q.Level, q.Text,
			q.OptionA, q.OptionB, q.OptionC, q.OptionD, q.CorrectAnswer,
			q.Explanation, q.Hint, q.HintCost, q.IsActive)
	}

	br := s.db.SendBatch(ctx, b)
	defer br.Close()

	var n int64
	for range qs {
		tag, err := br.Exec()
		if err != nil {
			return n, fmt.Errorf("insert question: %w", err)
		}
		n += tag.RowsAffected()
	}

	return n, nil
}

func (s *Store) DeleteQuestions(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM questions;`)
	if err != nil {
		return 0, fmt.Errorf("delete questions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) CountQuestionsByCategory(ctx context.Context) (map[domain.Category]int64, error) {
	rows, err := s.db.Query(ctx, `SELECT category, COUNT(*) FROM questions GROUP BY category;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[domain.Category]int64)
	for rows.Next() {
		var (
			c domain.Category
			n int64
		)
		if err := rows.Scan(&c, &n); err != nil {
			return nil, err
		}
		out[c] = n
	}

	return out, rows.Err()
}
