package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/umoja/internal/domain"
	"github.com/victornm/umoja/internal/event"
)

const (
	publishInterval = 200 * time.Millisecond
	publishSize     = 10
	DefaultLimit    = 10
	MaxLimit        = 100
)

type Config struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
}

type Service struct {
	eb     *event.Bus
	redis  redis.UniversalClient
	prefix string
}

func NewService(c Config) *Service {
	s := &Service{
		eb:     c.EventBus,
		redis:  c.Redis,
		prefix: c.Prefix,
	}

	s.eb.Subscribe(domain.EventNameAnswerSubmitted, func(ctx context.Context, e event.Event) error {
		return s.UpdateLeaderboard(ctx, e.(domain.EventAnswerSubmitted))
	})

	return s
}

// GetLeaderboard returns the top limit users by coins earned from gameplay.
func (s *Service) GetLeaderboard(ctx context.Context, limit int) (*domain.Leaderboard, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	res, err := s.redis.ZRevRangeWithScores(ctx, s.leaderboardKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(res))
	for _, z := range res {
		entries = append(entries, domain.LeaderboardEntry{
			UserID: z.Member.(string),
			Coins:  z.Score,
		})
	}

	return &domain.Leaderboard{Entries: entries}, nil
}

// UpdateLeaderboard adds the coins earned by a registered player's answer.
func (s *Service) UpdateLeaderboard(ctx context.Context, e domain.EventAnswerSubmitted) error {
	if e.Session.UserID == nil || e.CoinsEarned <= 0 {
		return nil
	}

	if err := s.redis.ZIncrBy(ctx, s.leaderboardKey(), float64(e.CoinsEarned), *e.Session.UserID).Err(); err != nil {
		return fmt.Errorf("update leaderboard: %w", err)
	}

	return s.schedulePublishLeaderboard(ctx)
}

// Remove drops a user from the leaderboard.
func (s *Service) Remove(ctx context.Context, userID string) error {
	return s.redis.ZRem(ctx, s.leaderboardKey(), userID).Err()
}

// schedulePublishLeaderboard publishes at most one leaderboard.updated per interval,
// across every instance sharing the Redis.
func (s *Service) schedulePublishLeaderboard(ctx context.Context) error {
	ok, err := s.redis.SetNX(ctx, s.leaderboardTimeKey(), time.Now().UnixMilli(), publishInterval).Result()
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}

	if !ok {
		return nil
	}

	l, err := s.GetLeaderboard(ctx, publishSize)
	if err != nil {
		return err
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Leaderboard: *l,
	})

	return nil
}

func (s *Service) leaderboardKey() string {
	return fmt.Sprintf("%s:leaderboard", s.prefix)
}

func (s *Service) leaderboardTimeKey() string {
	return fmt.Sprintf("%s:leaderboard:time", s.prefix)
}
