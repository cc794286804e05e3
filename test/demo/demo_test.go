//go:build integration_test

package demo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/victornm/umoja/internal/api"
	"github.com/victornm/umoja/internal/domain"
)

// The server must run with config/test.yaml (mock identity verifier) and a seeded catalogue.
const (
	baseURL = "http://localhost:5001"
	prefix  = "umoja"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func TestGame(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	var (
		wg      = new(sync.WaitGroup)
		phones  = []string{"+2348000000001", "+2348000000002", "+2348000000003"}
		answers = []string{"A", "B", "C", "D"}
	)

	subscribe(ctx, t, makeRedis(t), wg, fmt.Sprintf("%s:leaderboard", prefix))

	var eg errgroup.Group
	for i, phone := range phones {
		eg.Go(func() error {
			var login api.LoginResponse
			if err := call(ctx, http.MethodPost, "/api/auth/firebase-login", "", api.LoginRequest{IDToken: "mock:" + phone}, &login); err != nil {
				return fmt.Errorf("player %s login: %w", phone, err)
			}

			var ss api.Session
			if err := call(ctx, http.MethodPost, "/api/game/session", login.Token, nil, &ss); err != nil {
				return fmt.Errorf("player %s start session: %w", phone, err)
			}

			for n := 0; n < 10; n++ {
				var next api.NextQuestionResponse
				if err := call(ctx, http.MethodGet, "/api/game/session/"+ss.ID+"/question", login.Token, nil, &next); err != nil {
					return fmt.Errorf("player %s next question: %w", phone, err)
				}

				var res api.SubmitAnswerResponse
				if err := call(ctx, http.MethodPost, "/api/game/answer", login.Token, api.SubmitAnswerRequest{
					SessionID:      ss.ID,
					QuestionID:     next.Question.ID,
					SelectedOption: answers[(i+n)%len(answers)],
				}, &res); err != nil {
					return fmt.Errorf("player %s answer: %w", phone, err)
				}

				t.Logf("Player %s answered %q: correct=%v coins=%d level=%d", phone, next.Question.Text, res.IsCorrect, res.CoinsEarned, res.Level)
			}

			var results api.ResultsResponse
			if err := call(ctx, http.MethodGet, "/api/game/session/"+ss.ID+"/results", login.Token, nil, &results); err != nil {
				return fmt.Errorf("player %s results: %w", phone, err)
			}
			t.Logf("Player %s finished: %d/%d correct (%d%%)", phone, results.Correct, results.Answered, results.CompletionPercentage)

			return nil
		})
	}

	require.NoError(t, eg.Wait())

	var board []api.LeaderboardEntry
	require.NoError(t, call(ctx, http.MethodGet, "/api/leaderboard?limit=10", "", nil, &board))
	t.Logf("Leaderboard:\n%s", formatLeaderboard(board))

	time.Sleep(2 * time.Second)
	cancel()
	wg.Wait()
}

func call(ctx context.Context, method, path, token string, body, out any) error {
	var b bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&b).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, &b)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	if !env.Success {
		return fmt.Errorf("%s %s: %d %s: %s", method, path, resp.StatusCode, env.Error, env.Message)
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

func subscribe(ctx context.Context, t *testing.T, rc redis.UniversalClient, wg *sync.WaitGroup, channel string) {
	sub := rc.Subscribe(ctx, channel)
	t.Cleanup(func() { sub.Close() })

	wg.Add(1)
	go func() {
		defer wg.Done()

		for msg := range sub.Channel() {
			var n struct {
				Event string          `json:"event"`
				Data  json.RawMessage `json:"data"`
			}
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				t.Logf("unmarshal notification: %v", err)
				continue
			}

			if n.Event != domain.EventNameLeaderboardUpdated {
				continue
			}

			var board []api.LeaderboardEntry
			if err := json.Unmarshal(n.Data, &board); err != nil {
				t.Logf("unmarshal leaderboard: %v", err)
				continue
			}

			t.Logf("leaderboard updated:\n%s", formatLeaderboard(board))
		}
	}()

	go func() {
		<-ctx.Done()
		sub.Close()
	}()
}

func makeRedis(t *testing.T) redis.UniversalClient {
	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{"localhost:6379"},
	})
	t.Cleanup(func() { r.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.Ping(ctx).Err(); err != nil {
		t.Fatal(err)
	}

	return r
}

func formatLeaderboard(board []api.LeaderboardEntry) string {
	var s string
	for _, e := range board {
		s += fmt.Sprintf("%d. %s: %.0f\n", e.Rank, e.UserID, e.Coins)
	}
	return s
}
