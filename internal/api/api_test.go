package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/umoja/internal/api"
	"github.com/victornm/umoja/internal/auth"
	"github.com/victornm/umoja/internal/domain"
	"github.com/victornm/umoja/internal/event"
	"github.com/victornm/umoja/internal/game"
	"github.com/victornm/umoja/internal/leaderboard"
	"github.com/victornm/umoja/internal/progress"
	"github.com/victornm/umoja/internal/question"
	"github.com/victornm/umoja/internal/storetest"
	"github.com/victornm/umoja/internal/user"
)

func TestAPI_GuestGame(t *testing.T) {
	e, m := makeServer(t)
	m.AddQuestions(food(1), food(1))

	var ss api.Session
	code, env := call(t, e, http.MethodPost, "/api/game/session", "", nil, &ss)
	require.Equal(t, http.StatusCreated, code, env.Message)
	assert.True(t, ss.IsGuest)
	assert.Nil(t, ss.UserID)
	assert.Equal(t, 1, ss.Level)
	assert.Equal(t, 20, ss.RequiredCorrect)

	var raw map[string]any
	code, _ = call(t, e, http.MethodGet, "/api/game/session/"+ss.ID+"/question", "", nil, &raw)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 15, raw["timer"])
	q := raw["question"].(map[string]any)
	assert.NotContains(t, q, "correctAnswer", "question should not leak the answer")
	qid := q["id"].(string)

	var hint map[string]string
	code, _ = call(t, e, http.MethodPost, "/api/game/hint", "", api.HintRequest{SessionID: ss.ID, QuestionID: qid}, &hint)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Think of jollof.", hint["hintText"])

	var ans api.SubmitAnswerResponse
	code, _ = call(t, e, http.MethodPost, "/api/game/answer", "", api.SubmitAnswerRequest{
		SessionID: ss.ID, QuestionID: qid, SelectedOption: "B",
	}, &ans)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, ans.IsCorrect)
	assert.Equal(t, domain.OptionB, ans.CorrectAnswer)
	assert.Equal(t, 1, ans.CoinsEarned)
	assert.False(t, ans.RequireRegistration)

	code, env = call(t, e, http.MethodPost, "/api/game/answer", "", api.SubmitAnswerRequest{
		SessionID: ss.ID, QuestionID: qid, SelectedOption: "B",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", string(env.Error))

	var res api.ResultsResponse
	code, _ = call(t, e, http.MethodGet, "/api/game/session/"+ss.ID+"/results", "", nil, &res)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, res.Answered)
	assert.Equal(t, 1, res.Correct)
	assert.Equal(t, 100, res.CompletionPercentage)
}

func TestAPI_Errors(t *testing.T) {
	tests := map[string]struct {
		method, path, token string
		body                any
		wantCode            int
		wantKind            string
	}{
		"answer without fields should fail validation": {
			method: http.MethodPost, path: "/api/game/answer", body: map[string]string{"sessionId": "s"},
			wantCode: http.StatusBadRequest, wantKind: "VALIDATION_ERROR",
		},
		"question for unknown session should be an invalid session": {
			method: http.MethodGet, path: "/api/game/session/nope/question",
			wantCode: http.StatusBadRequest, wantKind: "INVALID_SESSION",
		},
		"profile without token should require authentication": {
			method: http.MethodGet, path: "/api/users/profile",
			wantCode: http.StatusUnauthorized, wantKind: "AUTHENTICATION_ERROR",
		},
		"profile with garbage token should be rejected": {
			method: http.MethodGet, path: "/api/auth/profile", token: "garbage",
			wantCode: http.StatusUnauthorized, wantKind: "INVALID_TOKEN",
		},
		"login with a bad id token should fail": {
			method: http.MethodPost, path: "/api/auth/firebase-login", body: api.LoginRequest{IDToken: "bad"},
			wantCode: http.StatusUnauthorized, wantKind: "AUTHENTICATION_ERROR",
		},
		"level pack with a non numeric level should fail validation": {
			method: http.MethodGet, path: "/api/questions/level/abc",
			wantCode: http.StatusBadRequest, wantKind: "VALIDATION_ERROR",
		},
		"level pack for an empty level should report no questions": {
			method: http.MethodGet, path: "/api/questions?level=7",
			wantCode: http.StatusNotFound, wantKind: "NO_QUESTIONS_AVAILABLE",
		},
		"unknown route should be not found": {
			method: http.MethodGet, path: "/api/nothing",
			wantCode: http.StatusNotFound, wantKind: "NOT_FOUND",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			e, _ := makeServer(t)

			code, env := call(t, e, tt.method, tt.path, tt.token, tt.body, nil)
			assert.Equal(t, tt.wantCode, code)
			assert.False(t, env.Success)
			assert.Equal(t, tt.wantKind, string(env.Error))
			assert.NotEmpty(t, env.Message)
		})
	}
}

func TestAPI_OptionalAuth(t *testing.T) {
	tests := map[string]struct {
		arrange  func(t *testing.T, e *gin.Engine, m *storetest.Memory) string
		wantCode int
		wantKind string
	}{
		"unusable token should play as a guest": {
			arrange: func(t *testing.T, e *gin.Engine, m *storetest.Memory) string {
				return "garbage"
			},
			wantCode: http.StatusCreated,
		},

		"store failure while checking the token should not fall back to a guest": {
			arrange: func(t *testing.T, e *gin.Engine, m *storetest.Memory) string {
				var login api.LoginResponse
				code, env := call(t, e, http.MethodPost, "/api/auth/firebase-login", "", api.LoginRequest{IDToken: "mock:+2348011111111"}, &login)
				require.Equal(t, http.StatusOK, code, env.Message)

				m.Err = assert.AnError
				return login.Token
			},
			wantCode: http.StatusInternalServerError,
			wantKind: "INTERNAL",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			e, m := makeServer(t)
			token := tt.arrange(t, e, m)

			var ss api.Session
			code, env := call(t, e, http.MethodPost, "/api/game/session", token, nil, &ss)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantKind, string(env.Error))
			if tt.wantKind == "" {
				assert.True(t, ss.IsGuest)
				assert.Nil(t, ss.UserID)
			}
		})
	}
}

func TestAPI_PlayerFlow(t *testing.T) {
	e, m := makeServer(t)
	m.AddQuestions(food(1))

	var login api.LoginResponse
	code, env := call(t, e, http.MethodPost, "/api/auth/firebase-login", "", api.LoginRequest{IDToken: "mock:+2348011111111"}, &login)
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.True(t, login.IsNewUser)
	assert.Equal(t, 100, login.User.Coins)
	token := login.Token

	var ss api.Session
	code, _ = call(t, e, http.MethodPost, "/api/game/session", token, map[string]string{"userId": "someone-else"}, &ss)
	require.Equal(t, http.StatusCreated, code)
	require.NotNil(t, ss.UserID)
	assert.Equal(t, login.User.ID, *ss.UserID)
	assert.False(t, ss.IsGuest)

	var next api.NextQuestionResponse
	code, _ = call(t, e, http.MethodGet, "/api/game/session/"+ss.ID+"/question", token, nil, &next)
	require.Equal(t, http.StatusOK, code)

	code, _ = call(t, e, http.MethodPost, "/api/game/hint", token, api.HintRequest{SessionID: ss.ID, QuestionID: next.Question.ID}, nil)
	require.Equal(t, http.StatusOK, code)

	var u api.User
	code, _ = call(t, e, http.MethodGet, "/api/users/profile", token, nil, &u)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 98, u.Coins)

	email := "ada@example.com"
	code, _ = call(t, e, http.MethodPut, "/api/users/profile", token, api.UpdateProfileRequest{Email: &email}, &u)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, u.Email)
	assert.Equal(t, email, *u.Email)

	blank := " "
	code, env = call(t, e, http.MethodPut, "/api/users/profile", token, api.UpdateProfileRequest{PhoneNumber: &blank}, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", string(env.Error))

	var refreshed map[string]string
	code, _ = call(t, e, http.MethodPost, "/api/auth/refresh", token, api.RefreshRequest{RefreshToken: login.RefreshToken}, &refreshed)
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, refreshed["token"])

	var stats api.Stats
	code, _ = call(t, e, http.MethodGet, "/api/users/stats", token, nil, &stats)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, stats.Sessions.Sessions)
	assert.Equal(t, 1, stats.Sessions.HintsUsed)

	code, _ = call(t, e, http.MethodDelete, "/api/users/profile", token, nil, nil)
	require.Equal(t, http.StatusOK, code)

	code, env = call(t, e, http.MethodGet, "/api/auth/profile", token, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "AUTHENTICATION_ERROR", string(env.Error))
}

func TestAPI_Probes(t *testing.T) {
	e, m := makeServer(t)

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"OK"`)

	m.Err = assert.AnError
	w = httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/db-test", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
}

func TestAPI_LevelQuestions(t *testing.T) {
	e, m := makeServer(t)
	m.AddQuestions(food(2), food(2))

	var p api.LevelPackResponse
	code, _ := call(t, e, http.MethodGet, "/api/questions/level/2", "", nil, &p)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, p.Level)
	assert.Equal(t, 15, p.Duration)
	assert.Len(t, p.Questions, 2)
	assert.Equal(t, "Think of jollof.", p.Questions[0].Hint)
}

type published struct {
	channel string
	n       api.Notification
}

type fakeRedis struct {
	mu   sync.Mutex
	msgs []published
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	var n api.Notification
	_ = json.Unmarshal(message.([]byte), &n)

	f.mu.Lock()
	f.msgs = append(f.msgs, published{channel: channel, n: n})
	f.mu.Unlock()

	return redis.NewIntCmd(ctx)
}

func TestAPI_Pubsub(t *testing.T) {
	fr := &fakeRedis{}
	eb := event.NewBus()
	_, _ = makeServer(t, withEventBus(eb), withRedis(fr))

	u := "u1"
	eb.Publish(context.Background(), domain.EventLevelAdvanced{
		Session:   domain.GameSession{ID: "s1", UserID: &u, Level: 2, RequiredCorrect: 25},
		FromLevel: 1,
	})
	eb.Publish(context.Background(), domain.EventLevelAdvanced{
		Session: domain.GameSession{ID: "s2", Level: 2, IsGuest: true},
	})
	eb.Publish(context.Background(), domain.EventLeaderboardUpdated{
		Leaderboard: domain.Leaderboard{Entries: []domain.LeaderboardEntry{{UserID: "u1", Coins: 3}, {UserID: "u2", Coins: 1}}},
	})
	eb.Stop()

	channels := make(map[string]int)
	for _, p := range fr.msgs {
		channels[p.channel]++
	}

	assert.Equal(t, map[string]int{
		"umoja:user:u1":     2,
		"umoja:user:u2":     1,
		"umoja:leaderboard": 1,
	}, channels)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func call(t *testing.T, e http.Handler, method, path, token string, body, out any) (int, envelope) {
	t.Helper()

	var r *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = httptest.NewRequest(method, path, bytes.NewReader(b))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)

	var env envelope
	require.NoError(t, json.NewDecoder(strings.NewReader(w.Body.String())).Decode(&env), w.Body.String())

	if out != nil && env.Success {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}

	return w.Code, env
}

func food(level int) domain.Question {
	return domain.Question{
		Category:      domain.CategoryFood,
		Country:       "NIGERIA",
		Difficulty:    1,
		Level:         level,
		Text:          "Which dish is a West African rice staple?",
		OptionA:       "Sushi",
		OptionB:       "Jollof",
		OptionC:       "Paella",
		OptionD:       "Risotto",
		CorrectAnswer: domain.OptionB,
		Hint:          "Think of jollof.",
		IsActive:      true,
	}
}

type serverConfig struct {
	eb    *event.Bus
	redis api.Redis
}

type options func(c *serverConfig)

func withEventBus(eb *event.Bus) options {
	return func(c *serverConfig) { c.eb = eb }
}

func withRedis(r api.Redis) options {
	return func(c *serverConfig) { c.redis = r }
}

func makeServer(t *testing.T, opts ...options) (*gin.Engine, *storetest.Memory) {
	gin.SetMode(gin.TestMode)

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{rs.Addr()}})
	t.Cleanup(func() { _ = rc.Close() })

	c := serverConfig{eb: event.NewBus(), redis: rc}
	for _, opt := range opts {
		opt(&c)
	}

	m := storetest.New()
	tokens := auth.NewTokens(auth.TokenConfig{Secret: "test-secret", ExpiresIn: time.Hour, RefreshExpiresIn: 24 * time.Hour})

	progress.NewService(progress.Config{Store: m, EventBus: c.eb})

	e := gin.New()
	e.NoRoute(api.NotFound)

	api.New(api.Config{
		Router:       e,
		EventBus:     c.eb,
		Auth:         auth.NewService(auth.Config{Store: m, Verifier: auth.MockVerifier{}, Tokens: tokens}),
		User:         user.NewService(user.Config{Store: m}),
		Game:         game.NewService(game.Config{Store: m, EventBus: c.eb, Pick: func(int) int { return 0 }}),
		Question:     question.NewService(question.Config{Store: m}),
		Leaderboard:  leaderboard.NewService(leaderboard.Config{EventBus: c.eb, Redis: rc, Prefix: "umoja"}),
		DB:           m,
		Redis:        c.redis,
		PubsubPrefix: "umoja",
		Environment:  "test",
		Version:      "test",
	})

	return e, m
}
