package janitor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/victornm/umoja/internal/domain"
	"github.com/victornm/umoja/internal/janitor"
	"github.com/victornm/umoja/internal/storetest"
)

func TestJanitor_CloseStaleSessions(t *testing.T) {
	m := storetest.New()
	m.PutSession(domain.GameSession{ID: "stale", IsActive: true, UpdatedAt: time.Now().Add(-25 * time.Hour)})
	m.PutSession(domain.GameSession{ID: "fresh", IsActive: true, UpdatedAt: time.Now().Add(-time.Hour)})
	m.PutSession(domain.GameSession{ID: "closed", IsActive: false, UpdatedAt: time.Now().Add(-48 * time.Hour)})

	j, err := janitor.New(janitor.Config{Store: m})
	require.NoError(t, err)

	n, err := j.CloseStaleSessions(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	stale, err := m.GetSession(context.Background(), "stale")
	require.NoError(t, err)
	assert.False(t, stale.IsActive)
	assert.NotNil(t, stale.CompletedAt)

	fresh, err := m.GetSession(context.Background(), "fresh")
	require.NoError(t, err)
	assert.True(t, fresh.IsActive)
}

func TestJanitor_StoreError(t *testing.T) {
	m := storetest.New()
	m.Err = errors.New("db down")

	j, err := janitor.New(janitor.Config{Store: m})
	require.NoError(t, err)

	_, err = j.CloseStaleSessions(context.Background())
	assert.Error(t, err)
}

type mockStore struct {
	mock.Mock
}

func (s *mockStore) CloseStaleSessions(ctx context.Context, before time.Time) (int64, error) {
	args := s.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

func TestJanitor_Schedule(t *testing.T) {
	ran := make(chan struct{}, 10)

	s := &mockStore{}
	s.On("CloseStaleSessions", mock.Anything, mock.MatchedBy(func(before time.Time) bool {
		return time.Since(before) >= time.Hour
	})).Return(int64(3), nil).Run(func(mock.Arguments) {
		select {
		case ran <- struct{}{}:
		default:
		}
	})

	j, err := janitor.New(janitor.Config{Store: s, Interval: 20 * time.Millisecond, SessionTTL: time.Hour})
	require.NoError(t, err)

	j.Start()
	for range 2 {
		select {
		case <-ran:
		case <-time.After(2 * time.Second):
			t.Fatal("janitor job did not run")
		}
	}
	require.NoError(t, j.Stop())
}
