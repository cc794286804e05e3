package leaderboard_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/victornm/umoja/internal/domain"
	"github.com/victornm/umoja/internal/event"
	"github.com/victornm/umoja/internal/leaderboard"
)

func TestService_UpdateLeaderboard(t *testing.T) {
	s, _ := makeService(t)

	for _, e := range []domain.EventAnswerSubmitted{
		answered("u1", 1),
		answered("u2", 2),
		answered("u1", 3),
		answered("", 5),
		answered("u3", 0),
	} {
		require.NoError(t, s.UpdateLeaderboard(context.Background(), e))
	}

	resp, err := s.GetLeaderboard(context.Background(), 10)
	require.NoError(t, err)

	want := &domain.Leaderboard{
		Entries: []domain.LeaderboardEntry{
			{UserID: "u1", Coins: 4},
			{UserID: "u2", Coins: 2},
		},
	}
	require.Equal(t, want, resp)

	resp, err = s.GetLeaderboard(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, resp.Entries, 1)

	require.NoError(t, s.Remove(context.Background(), "u1"))
	resp, err = s.GetLeaderboard(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, []domain.LeaderboardEntry{{UserID: "u2", Coins: 2}}, resp.Entries)
}

func TestService_GetLeaderboard_Empty(t *testing.T) {
	s, _ := makeService(t)

	resp, err := s.GetLeaderboard(context.Background(), 5)
	require.NoError(t, err)
	require.Empty(t, resp.Entries)
}

func TestServer_PublishLeaderboardUpdated(t *testing.T) {
	type (
		inputs struct {
			receivedEvents []domain.EventAnswerSubmitted
			wait           time.Duration
		}

		outputs struct {
			publishedEvents []domain.EventLeaderboardUpdated
		}
	)

	tests := map[string]struct {
		arrange func() inputs
		assert  func(t *testing.T, out outputs)
	}{
		"should publish leaderboard.updated after a scoring answer": {
			arrange: func() inputs {
				return inputs{
					receivedEvents: []domain.EventAnswerSubmitted{answered("u1", 2)},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents, 1, "should receive 1 leaderboard updated event")
				require.Equal(t, domain.Leaderboard{
					Entries: []domain.LeaderboardEntry{
						{UserID: "u1", Coins: 2},
					},
				}, out.publishedEvents[0].Leaderboard)
			},
		},

		"should publish once for answers within the publish interval": {
			arrange: func() inputs {
				return inputs{
					receivedEvents: []domain.EventAnswerSubmitted{answered("u1", 1), answered("u2", 1)},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents, 1, "should receive 1 leaderboard updated event")
			},
		},

		"should publish again once the interval elapsed": {
			arrange: func() inputs {
				return inputs{
					receivedEvents: []domain.EventAnswerSubmitted{answered("u1", 1), answered("u2", 1)},
					wait:           time.Second,
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents, 2, "should receive 2 leaderboard updated events")
			},
		},

		"should not publish for guest answers": {
			arrange: func() inputs {
				return inputs{
					receivedEvents: []domain.EventAnswerSubmitted{answered("", 1)},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Empty(t, out.publishedEvents)
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in, out := tt.arrange(), outputs{}

			eb := event.NewBus()

			var mu sync.Mutex
			eb.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
				mu.Lock()
				out.publishedEvents = append(out.publishedEvents, e.(domain.EventLeaderboardUpdated))
				mu.Unlock()
				return nil
			})

			s, rs := makeService(t,
				withEventBus(eb),
			)

			for _, e := range in.receivedEvents {
				err := s.UpdateLeaderboard(context.Background(), e)
				require.NoError(t, err)
				rs.FastForward(in.wait)
			}

			eb.Stop()

			tt.assert(t, out)
		})
	}
}

func TestService_SubscribesToAnswers(t *testing.T) {
	eb := event.NewBus()
	s, _ := makeService(t, withEventBus(eb))

	eb.Publish(context.Background(), answered("u1", 3))
	eb.Stop()

	resp, err := s.GetLeaderboard(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, []domain.LeaderboardEntry{{UserID: "u1", Coins: 3}}, resp.Entries)
}

func answered(userID string, coins int) domain.EventAnswerSubmitted {
	e := domain.EventAnswerSubmitted{
		IsCorrect:   coins > 0,
		CoinsEarned: coins,
	}
	if userID != "" {
		e.Session.UserID = &userID
	}
	return e
}

func makeService(t *testing.T, opts ...options) (*leaderboard.Service, *miniredis.Miniredis) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	c := leaderboard.Config{
		EventBus: event.NewBus(),
		Redis:    rc,
		Prefix:   "umoja",
	}

	for _, opt := range opts {
		opt(&c)
	}

	return leaderboard.NewService(c), rs
}

type options func(c *leaderboard.Config)

func withEventBus(eb *event.Bus) options {
	return func(c *leaderboard.Config) {
		c.EventBus = eb
	}
}
