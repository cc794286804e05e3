package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/umoja/internal/auth"
	"github.com/victornm/umoja/internal/domain"
	"github.com/victornm/umoja/internal/event"
	"github.com/victornm/umoja/internal/game"
	"github.com/victornm/umoja/internal/leaderboard"
	"github.com/victornm/umoja/internal/question"
	"github.com/victornm/umoja/internal/user"
)

type Config struct {
	Router   gin.IRouter
	EventBus *event.Bus

	Auth        *auth.Service
	User        *user.Service
	Game        *game.Service
	Question    *question.Service
	Leaderboard *leaderboard.Service
	DB          DB

	// Limiters applied in front of the auth and game routes. Nil means unlimited.
	GeneralLimit gin.HandlerFunc
	GameLimit    gin.HandlerFunc

	Redis        Redis
	PubsubPrefix string

	Environment string
	Version     string
}

type DB interface {
	Ping(ctx context.Context) error
	Stats(ctx context.Context) (domain.DBStats, error)
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	as  *auth.Service
	us  *user.Service
	gs  *game.Service
	qs  *question.Service
	ls  *leaderboard.Service
	db  DB
	env string
	ver string

	redis  Redis
	prefix string
}

func New(c Config) *API {
	a := &API{
		as:     c.Auth,
		us:     c.User,
		gs:     c.Game,
		qs:     c.Question,
		ls:     c.Leaderboard,
		db:     c.DB,
		env:    c.Environment,
		ver:    c.Version,
		redis:  c.Redis,
		prefix: c.PubsubPrefix,
	}

	a.register(c.Router, orNext(c.GeneralLimit), orNext(c.GameLimit))

	c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
		return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
	})
	c.EventBus.Subscribe(domain.EventNameLevelAdvanced, func(ctx context.Context, e event.Event) error {
		return a.PublishLevelAdvanced(ctx, e.(domain.EventLevelAdvanced))
	})

	return a
}

func (a *API) register(r gin.IRouter, generalLimit, gameLimit gin.HandlerFunc) {
	r.Use(Errors())

	r.GET("/health", a.Health)

	api := r.Group("/api")
	api.GET("/status", a.Status)
	api.GET("/db-test", a.DBTest)

	authz := api.Group("/auth")
	authz.POST("/firebase-login", generalLimit, a.Login)
	authz.GET("/profile", a.Authenticate(true), a.AuthProfile)
	authz.POST("/refresh", a.Authenticate(true), a.Refresh)

	users := api.Group("/users", a.Authenticate(true))
	users.GET("/profile", a.GetProfile)
	users.PUT("/profile", a.UpdateProfile)
	users.DELETE("/profile", a.DeleteProfile)
	users.GET("/progress", a.GetProgress)
	users.GET("/stats", a.GetStats)

	g := api.Group("/game", a.Authenticate(false), gameLimit)
	g.POST("/session", a.StartSession)
	g.GET("/session/:sessionId/question", a.NextQuestion)
	g.GET("/session/:sessionId/results", a.Results)
	g.POST("/answer", a.SubmitAnswer)
	g.POST("/hint", a.Hint)

	api.GET("/questions", a.LevelQuestions)
	api.GET("/questions/level/:level", a.LevelQuestions)

	api.GET("/leaderboard", a.GetLeaderboard)
}

func orNext(h gin.HandlerFunc) gin.HandlerFunc {
	if h != nil {
		return h
	}
	return func(c *gin.Context) { c.Next() }
}
