package event_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/victornm/umoja/internal/domain"
	"github.com/victornm/umoja/internal/event"
)

func TestBus_PublishSubscribe(t *testing.T) {
	type (
		inputs struct {
			published   []event.Event
			subscribers []subscriber
		}

		outputs struct {
			received map[string][]string
		}
	)

	var (
		started  = domain.EventSessionStarted{Session: domain.GameSession{ID: "s1"}}
		answered = domain.EventAnswerSubmitted{Session: domain.GameSession{ID: "s1"}, IsCorrect: true}
		advanced = domain.EventLevelAdvanced{Session: domain.GameSession{ID: "s1", Level: 2}, FromLevel: 1}
	)

	tests := map[string]struct {
		arrange func() inputs
		assert  func(t *testing.T, out outputs)
	}{
		"a subscriber should only receive the events it subscribed to": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{started, answered},
					subscribers: []subscriber{
						{name: "progress", subscribeTo: []string{domain.EventNameAnswerSubmitted}},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []string{domain.EventNameAnswerSubmitted}, out.received["progress"])
			},
		},

		"an event should be dispatched to every subscriber": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{answered},
					subscribers: []subscriber{
						{name: "progress", subscribeTo: []string{domain.EventNameAnswerSubmitted}},
						{name: "leaderboard", subscribeTo: []string{domain.EventNameAnswerSubmitted}},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.Len(t, out.received["progress"], 1)
				assert.Len(t, out.received["leaderboard"], 1)
			},
		},

		"mixed events should reach the right subscribers": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{started, answered, advanced, answered},
					subscribers: []subscriber{
						{name: "progress", subscribeTo: []string{domain.EventNameSessionStarted, domain.EventNameAnswerSubmitted}},
						{name: "notifier", subscribeTo: []string{domain.EventNameLevelAdvanced}},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []string{
					domain.EventNameSessionStarted,
					domain.EventNameAnswerSubmitted,
					domain.EventNameAnswerSubmitted,
				}, out.received["progress"])
				assert.ElementsMatch(t, []string{domain.EventNameLevelAdvanced}, out.received["notifier"])
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in := tt.arrange()
			mu := sync.Mutex{}
			out := outputs{received: make(map[string][]string)}

			b := event.NewBus()
			for _, s := range in.subscribers {
				for _, name := range s.subscribeTo {
					b.Subscribe(name, func(ctx context.Context, e event.Event) error {
						mu.Lock()
						out.received[s.name] = append(out.received[s.name], e.Name())
						mu.Unlock()
						return nil
					})
				}
			}

			for _, e := range in.published {
				b.Publish(context.Background(), e)
			}
			b.Stop()

			tt.assert(t, out)
		})
	}
}

func TestBus_HandlerFailuresDoNotLeak(t *testing.T) {
	b := event.NewBus(event.WithPoolSize(1), event.WithTimeout(time.Second))

	var calls atomic.Int32
	b.Subscribe(domain.EventNameHintPurchased, func(ctx context.Context, e event.Event) error {
		calls.Add(1)
		panic("boom")
	})
	b.Subscribe(domain.EventNameHintPurchased, func(ctx context.Context, e event.Event) error {
		calls.Add(1)
		return errors.New("failed")
	})

	for i := 0; i < 3; i++ {
		b.Publish(context.Background(), domain.EventHintPurchased{})
	}
	b.Stop()

	assert.EqualValues(t, 6, calls.Load(), "a panicking handler must not block the pool")
}

func TestBus_DetachesRequestContext(t *testing.T) {
	b := event.NewBus()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ctxErr error
	b.Subscribe(domain.EventNameSessionStarted, func(ctx context.Context, e event.Event) error {
		ctxErr = ctx.Err()
		return nil
	})

	b.Publish(ctx, domain.EventSessionStarted{})
	b.Stop()

	assert.NoError(t, ctxErr)
}

type subscriber struct {
	name        string
	subscribeTo []string
}
