package api

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/umoja/internal/domain"
)

const maxConcurrent = 100

type (
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	LevelAdvanced struct {
		SessionID       string `json:"sessionId"`
		FromLevel       int    `json:"fromLevel"`
		Level           int    `json:"level"`
		RequiredCorrect int    `json:"requiredCorrect"`
	}
)

// PublishLeaderboardUpdated broadcasts the top of the board on the shared channel
// and tells every listed user on their own channel.
func (a *API) PublishLeaderboardUpdated(ctx context.Context, e domain.EventLeaderboardUpdated) error {
	data := toLeaderboard(e.Leaderboard)

	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	eg.Go(func() error {
		return a.publishNotification(ctx, a.leaderboardChannel(), e.Name(), data)
	})

	for _, entry := range data {
		eg.Go(func() error {
			return a.publishNotification(ctx, a.userChannel(entry.UserID), e.Name(), entry)
		})
	}

	return eg.Wait()
}

// PublishLevelAdvanced notifies the session owner. Guest sessions have nobody to notify.
func (a *API) PublishLevelAdvanced(ctx context.Context, e domain.EventLevelAdvanced) error {
	if e.Session.UserID == nil {
		return nil
	}

	return a.publishNotification(ctx, a.userChannel(*e.Session.UserID), e.Name(), LevelAdvanced{
		SessionID:       e.Session.ID,
		FromLevel:       e.FromLevel,
		Level:           e.Session.Level,
		RequiredCorrect: e.Session.RequiredCorrect,
	})
}

func (a *API) publishNotification(ctx context.Context, channel, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %w", event, err)
	}

	return a.redis.Publish(ctx, channel, b).Err()
}

func (a *API) leaderboardChannel() string {
	return fmt.Sprintf("%s:leaderboard", a.prefix)
}

func (a *API) userChannel(userID string) string {
	return fmt.Sprintf("%s:user:%s", a.prefix, userID)
}
