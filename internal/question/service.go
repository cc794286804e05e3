// Package question serves level question packs and imports the question catalogue.
package question

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/victornm/umoja/internal/domain"
	"github.com/victornm/umoja/internal/errors"
	"github.com/victornm/umoja/internal/game"
)

const (
	poolSize     = 200
	packDuration = 15
)

var (
	firstLevelTopics = []domain.Category{
		domain.CategoryFood,
		domain.CategoryPlaces,
		domain.CategoryPeople,
	}

	levelTopics = []domain.Category{
		domain.CategoryFood,
		domain.CategoryPlaces,
		domain.CategoryPeople,
		domain.CategoryCulture,
		domain.CategoryDrinks,
		domain.CategoryMusic,
	}
)

type Store interface {
	ListQuestions(ctx context.Context, f domain.QuestionFilter) ([]domain.Question, error)
	InsertQuestions(ctx context.Context, qs []domain.Question) (int64, error)
	DeleteQuestions(ctx context.Context) (int64, error)
	CountQuestionsByCategory(ctx context.Context) (map[domain.Category]int64, error)
}

type Config struct {
	Store Store
	// Shuffle reorders a pack in place. Defaults to a uniform shuffle.
	Shuffle func(qs []domain.Question)
}

type Service struct {
	store   Store
	shuffle func(qs []domain.Question)
}

func NewService(c Config) *Service {
	s := &Service{
		store:   c.Store,
		shuffle: c.Shuffle,
	}
	if s.shuffle == nil {
		s.shuffle = func(qs []domain.Question) {
			rand.Shuffle(len(qs), func(i, j int) { qs[i], qs[j] = qs[j], qs[i] })
		}
	}

	return s
}

type LevelPack struct {
	Level     int
	Duration  int
	Topics    []domain.Category
	Questions []domain.Question
}

// LevelPack draws the questions a client needs to play a whole level offline.
func (s *Service) LevelPack(ctx context.Context, level int) (*LevelPack, error) {
	if level < 1 {
		return nil, errors.New(errors.KindValidation, errors.WithMessagef("Invalid level: %d", level))
	}

	topics := levelTopics
	if level == 1 {
		topics = firstLevelTopics
	}

	pool, err := s.store.ListQuestions(ctx, domain.QuestionFilter{
		Categories: topics,
		Level:      level,
		Limit:      poolSize,
	})
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(pool) == 0 {
		return nil, errors.New(errors.KindNoQuestions, errors.WithMessagef("No questions found"))
	}

	s.shuffle(pool)
	if n := game.RequiredCorrect(level); len(pool) > n {
		pool = pool[:n]
	}

	return &LevelPack{
		Level:     level,
		Duration:  packDuration,
		Topics:    topics,
		Questions: pool,
	}, nil
}
