// Package progress keeps per-category player progress and coin balances in sync with gameplay.
package progress

import (
	"context"
	"fmt"

	"github.com/victornm/umoja/internal/domain"
	"github.com/victornm/umoja/internal/event"
)

// xpPerCoin converts earned coins into experience points.
const xpPerCoin = 10

type Store interface {
	UpsertProgress(ctx context.Context, d domain.ProgressDelta) error
	CreditUser(ctx context.Context, id string, coins int) error
	IncrementGamesPlayed(ctx context.Context, id string) error
}

type Config struct {
	Store    Store
	EventBus *event.Bus
}

type Service struct {
	store Store
}

func NewService(c Config) *Service {
	s := &Service{store: c.Store}

	c.EventBus.Subscribe(domain.EventNameAnswerSubmitted, func(ctx context.Context, e event.Event) error {
		return s.RecordAnswer(ctx, e.(domain.EventAnswerSubmitted))
	})
	c.EventBus.Subscribe(domain.EventNameSessionStarted, func(ctx context.Context, e event.Event) error {
		return s.RecordSessionStart(ctx, e.(domain.EventSessionStarted))
	})

	return s
}

// RecordAnswer merges an answer into the player's progress for the question category
// and credits the coins it earned. Guest answers are ignored.
func (s *Service) RecordAnswer(ctx context.Context, e domain.EventAnswerSubmitted) error {
	if e.Session.UserID == nil {
		return nil
	}
	uid := *e.Session.UserID

	err := s.store.UpsertProgress(ctx, domain.ProgressDelta{
		UserID:           uid,
		Category:         e.Question.Category,
		Level:            e.Session.Level,
		ExperiencePoints: e.CoinsEarned * xpPerCoin,
		Correct:          e.IsCorrect,
		Streak:           e.Session.CurrentStreak,
	})
	if err != nil {
		return fmt.Errorf("upsert progress: user=%s: %w", uid, err)
	}

	if e.CoinsEarned > 0 {
		if err := s.store.CreditUser(ctx, uid, e.CoinsEarned); err != nil {
			return fmt.Errorf("credit user: user=%s: %w", uid, err)
		}
	}

	return nil
}

func (s *Service) RecordSessionStart(ctx context.Context, e domain.EventSessionStarted) error {
	if e.Session.UserID == nil {
		return nil
	}

	return s.store.IncrementGamesPlayed(ctx, *e.Session.UserID)
}
