package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

const (
	DefaultInterval   = 10 * time.Minute
	DefaultSessionTTL = 24 * time.Hour
)

type Store interface {
	CloseStaleSessions(ctx context.Context, before time.Time) (int64, error)
}

type Config struct {
	Store      Store
	Interval   time.Duration
	SessionTTL time.Duration
}

// Janitor periodically closes game sessions nobody touched for SessionTTL.
type Janitor struct {
	store Store
	ttl   time.Duration
	sched gocron.Scheduler
	now   func() time.Time
}

func New(c Config) (*Janitor, error) {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = DefaultSessionTTL
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("janitor: new scheduler: %w", err)
	}

	j := &Janitor{
		store: c.Store,
		ttl:   c.SessionTTL,
		sched: sched,
		now:   time.Now,
	}

	_, err = sched.NewJob(
		gocron.DurationJob(c.Interval),
		gocron.NewTask(func() {
			if _, err := j.CloseStaleSessions(context.Background()); err != nil {
				slog.Error("janitor: close stale sessions failed", "error", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("janitor: new job: %w", err)
	}

	return j, nil
}

func (j *Janitor) Start() {
	j.sched.Start()
}

func (j *Janitor) Stop() error {
	return j.sched.Shutdown()
}

// CloseStaleSessions runs one sweep and returns how many sessions were closed.
func (j *Janitor) CloseStaleSessions(ctx context.Context) (int64, error) {
	n, err := j.store.CloseStaleSessions(ctx, j.now().Add(-j.ttl))
	if err != nil {
		return 0, err
	}

	if n > 0 {
		slog.InfoContext(ctx, "janitor: closed stale sessions", "count", n)
	}

	return n, nil
}
