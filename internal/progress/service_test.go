package progress_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/umoja/internal/domain"
	"github.com/victornm/umoja/internal/event"
	"github.com/victornm/umoja/internal/progress"
	"github.com/victornm/umoja/internal/storetest"
)

func TestService_RecordAnswer(t *testing.T) {
	uid := "u1"

	type outputs struct {
		user     *domain.User
		progress []domain.UserProgress
	}

	tests := map[string]struct {
		events []domain.EventAnswerSubmitted
		assert func(t *testing.T, out outputs)
	}{
		"correct answers should earn coins and experience": {
			events: []domain.EventAnswerSubmitted{
				{
					Session:     domain.GameSession{UserID: &uid, Level: 1, CurrentStreak: 1},
					Question:    domain.Question{Category: domain.CategoryFood},
					IsCorrect:   true,
					CoinsEarned: 1,
				},
				{
					Session:     domain.GameSession{UserID: &uid, Level: 2, CurrentStreak: 2},
					Question:    domain.Question{Category: domain.CategoryFood},
					IsCorrect:   true,
					CoinsEarned: 2,
				},
			},
			assert: func(t *testing.T, out outputs) {
				assert.Equal(t, 103, out.user.Coins)
				assert.Equal(t, 3, out.user.TotalScore)
				require.Len(t, out.progress, 1)
				assert.Equal(t, domain.UserProgress{
					UserID:           uid,
					Category:         domain.CategoryFood,
					CurrentLevel:     2,
					ExperiencePoints: 30,
					QuestionsCorrect: 2,
					QuestionsTotal:   2,
					BestStreak:       2,
				}, out.progress[0])
			},
		},

		"wrong answers should only count the question": {
			events: []domain.EventAnswerSubmitted{
				{
					Session:  domain.GameSession{UserID: &uid, Level: 1},
					Question: domain.Question{Category: domain.CategoryPlaces},
				},
			},
			assert: func(t *testing.T, out outputs) {
				assert.Equal(t, 100, out.user.Coins)
				require.Len(t, out.progress, 1)
				assert.Equal(t, 0, out.progress[0].QuestionsCorrect)
				assert.Equal(t, 1, out.progress[0].QuestionsTotal)
			},
		},

		"guest answers should be ignored": {
			events: []domain.EventAnswerSubmitted{
				{
					Session:     domain.GameSession{Level: 1},
					Question:    domain.Question{Category: domain.CategoryPlaces},
					IsCorrect:   true,
					CoinsEarned: 1,
				},
			},
			assert: func(t *testing.T, out outputs) {
				assert.Equal(t, 100, out.user.Coins)
				assert.Empty(t, out.progress)
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			m := storetest.New()
			m.PutUser(domain.User{ID: uid, Coins: 100})

			eb := event.NewBus()
			progress.NewService(progress.Config{Store: m, EventBus: eb})

			for _, e := range tt.events {
				eb.Publish(context.Background(), e)
				// Each answer depends on the previous one.
				eb.Stop()
			}

			u, err := m.GetUser(context.Background(), uid)
			require.NoError(t, err)
			p, err := m.ListProgress(context.Background(), uid)
			require.NoError(t, err)

			tt.assert(t, outputs{user: u, progress: p})
		})
	}
}

func TestService_RecordSessionStart(t *testing.T) {
	uid := "u1"
	m := storetest.New()
	m.PutUser(domain.User{ID: uid})
	s := progress.NewService(progress.Config{Store: m, EventBus: event.NewBus()})

	require.NoError(t, s.RecordSessionStart(context.Background(), domain.EventSessionStarted{Session: domain.GameSession{UserID: &uid}}))
	require.NoError(t, s.RecordSessionStart(context.Background(), domain.EventSessionStarted{}))

	u, err := m.GetUser(context.Background(), uid)
	require.NoError(t, err)
	assert.Equal(t, 1, u.GamesPlayed)
}
