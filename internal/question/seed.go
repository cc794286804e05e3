package question

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/victornm/umoja/internal/domain"
)

const seedBatchSize = 50

var (
	hintCostByDifficulty = map[int]int{1: 2, 2: 3, 3: 4, 4: 5, 5: 6}

	countries = map[string]bool{
		"NIGERIA":      true,
		"SOUTH_AFRICA": true,
		"KENYA":        true,
		"GHANA":        true,
		"EGYPT":        true,
	}
)

const defaultCountry = "NIGERIA"

// SeedQuestion is one entry of a question seed file.
type SeedQuestion struct {
	Category      string `json:"category"`
	Country       string `json:"country"`
	Difficulty    int    `json:"difficulty"`
	Level         int    `json:"level"`
	QuestionText  string `json:"questionText"`
	OptionA       string `json:"optionA"`
	OptionB       string `json:"optionB"`
	OptionC       string `json:"optionC"`
	OptionD       string `json:"optionD"`
	CorrectAnswer string `json:"correctAnswer"`
	Explanation   string `json:"explanation"`
	Hint          string `json:"hint"`
}

func (q SeedQuestion) valid() bool {
	return q.QuestionText != "" && q.OptionA != "" && q.OptionB != "" &&
		q.OptionC != "" && q.OptionD != "" && q.CorrectAnswer != ""
}

type SeedReport struct {
	Read         int
	Skipped      int
	Deleted      int64
	Inserted     int64
	Distribution map[domain.Category]int64
}

// Seed replaces the question catalogue with the JSON array read from r.
// Invalid entries are skipped and loose values are normalised.
func (s *Service) Seed(ctx context.Context, r io.Reader) (*SeedReport, error) {
	var raw []SeedQuestion
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}

	qs := make([]domain.Question, 0, len(raw))
	for _, q := range raw {
		if q.valid() {
			qs = append(qs, q.toQuestion())
		}
	}

	rep := &SeedReport{
		Read:    len(raw),
		Skipped: len(raw) - len(qs),
	}

	slog.InfoContext(ctx, "seed: questions parsed", "read", rep.Read, "skipped", rep.Skipped)

	var err error
	if rep.Deleted, err = s.store.DeleteQuestions(ctx); err != nil {
		return nil, err
	}

	for i := 0; i < len(qs); i += seedBatchSize {
		batch := qs[i:min(i+seedBatchSize, len(qs))]

		n, err := s.store.InsertQuestions(ctx, batch)
		if err != nil {
			return rep, fmt.Errorf("insert batch at %d: %w", i, err)
		}
		rep.Inserted += n

		slog.InfoContext(ctx, "seed: batch inserted", "inserted", rep.Inserted, "total", len(qs))
	}

	if rep.Distribution, err = s.store.CountQuestionsByCategory(ctx); err != nil {
		return rep, err
	}

	return rep, nil
}

func (q SeedQuestion) toQuestion() domain.Question {
	difficulty := q.Difficulty
	if difficulty < 1 || difficulty > 5 {
		difficulty = 1
	}
	level := q.Level
	if level < 1 {
		level = 1
	}

	return domain.Question{
		Category:      MapCategory(q.Category),
		Country:       MapCountry(q.Country),
		Difficulty:    difficulty,
		Level:         level,
		Text:          q.QuestionText,
		OptionA:       q.OptionA,
		OptionB:       q.OptionB,
		OptionC:       q.OptionC,
		OptionD:       q.OptionD,
		CorrectAnswer: MapOption(q.CorrectAnswer),
		Explanation:   q.Explanation,
		Hint:          q.Hint,
		HintCost:      hintCostByDifficulty[difficulty],
		IsActive:      true,
	}
}

func normalise(s string) string {
	return strings.Join(strings.Fields(strings.ToUpper(s)), "_")
}

// MapCategory maps free-form category names onto the known categories. Unknown names become CURRENT_AFFAIRS.
func MapCategory(s string) domain.Category {
	c := domain.Category(normalise(s))
	if c.Valid() {
		return c
	}
	return domain.CategoryCurrentAffairs
}

func MapCountry(s string) string {
	c := normalise(s)
	if countries[c] {
		return c
	}
	return defaultCountry
}

func MapOption(s string) domain.Option {
	o := domain.Option(strings.ToUpper(strings.TrimSpace(s)))
	if o.Valid() {
		return o
	}
	return domain.OptionA
}
