package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/victornm/umoja/internal/api"
	"github.com/victornm/umoja/internal/auth"
	"github.com/victornm/umoja/internal/event"
	"github.com/victornm/umoja/internal/game"
	"github.com/victornm/umoja/internal/janitor"
	"github.com/victornm/umoja/internal/leaderboard"
	"github.com/victornm/umoja/internal/progress"
	"github.com/victornm/umoja/internal/question"
	"github.com/victornm/umoja/internal/ratelimit"
	"github.com/victornm/umoja/internal/store"
	"github.com/victornm/umoja/internal/telemetry"
	"github.com/victornm/umoja/internal/user"
)

const (
	EnvironmentTest = "test"
	version         = "1.0.0"
)

type Config struct {
	Environment string

	HTTP struct {
		Port int32
	}

	GRPC struct {
		Port int32
	}

	Postgres store.Config

	// Migrate applies the embedded schema on start.
	Migrate bool

	Redis struct {
		Addrs  []string
		Pass   string
		Prefix string
	}

	JWT auth.TokenConfig

	Firebase auth.FirebaseConfig

	CORS struct {
		Origins []string
	}

	RateLimit struct {
		Enabled bool
		General ratelimit.Rule
		Game    ratelimit.Rule
	} `mapstructure:"ratelimit"`

	Janitor struct {
		Interval   time.Duration
		SessionTTL time.Duration `mapstructure:"session_ttl"`
	}

	Log struct {
		Level string
	}
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		postgres *pgxpool.Pool
		redis    redis.UniversalClient
		store    *store.Store
	}

	service struct {
		auth        *auth.Service
		user        *user.Service
		game        *game.Service
		question    *question.Service
		progress    *progress.Service
		leaderboard *leaderboard.Service
	}

	janitor *janitor.Janitor
	health  *telemetry.Health
	metrics *telemetry.Metrics

	http *http.Server
	grpc *grpc.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	initLogger(c.Log.Level)

	s.eb = event.NewBus()
	s.metrics = telemetry.NewMetrics(prometheus.DefaultRegisterer, s.eb)

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	if err := s.initService(); err != nil {
		return nil, fmt.Errorf("server: init service: %w", err)
	}

	s.initAPI()
	return s, nil
}

func initLogger(level string) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(gin.DefaultWriter, &slog.HandlerOptions{Level: l})))
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initPostgres(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    s.c.Redis.Addrs,
		Password: s.c.Redis.Pass,
	})

	if err := telemetry.MonitorRedis(r); err != nil {
		return err
	}

	if err := r.Ping(ctx).Err(); err != nil {
		return err
	}

	s.infra.redis = r
	return nil
}

func (s *Server) initPostgres() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if s.c.Migrate {
		if err := store.Migrate(s.c.Postgres.URL()); err != nil {
			return err
		}
	}

	db, err := store.Connect(ctx, s.c.Postgres, telemetry.QueryTracer{Slow: 500 * time.Millisecond})
	if err != nil {
		return err
	}

	s.infra.postgres = db
	s.infra.store = store.New(db)
	return nil
}

func (s *Server) initService() error {
	st := s.infra.store

	verifier, err := s.identityVerifier()
	if err != nil {
		return fmt.Errorf("identity verifier: %w", err)
	}

	s.service.auth = auth.NewService(auth.Config{
		Store:    st,
		Verifier: verifier,
		Tokens:   auth.NewTokens(s.c.JWT),
	})

	s.service.user = user.NewService(user.Config{
		Store: st,
	})

	s.service.game = game.NewService(game.Config{
		Store:    st,
		EventBus: s.eb,
	})

	s.service.question = question.NewService(question.Config{
		Store: st,
	})

	s.service.progress = progress.NewService(progress.Config{
		Store:    st,
		EventBus: s.eb,
	})

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus: s.eb,
		Redis:    s.infra.redis,
		Prefix:   s.c.Redis.Prefix,
	})

	s.janitor, err = janitor.New(janitor.Config{
		Store:      st,
		Interval:   s.c.Janitor.Interval,
		SessionTTL: s.c.Janitor.SessionTTL,
	})
	if err != nil {
		return err
	}

	return nil
}

func (s *Server) identityVerifier() (auth.IdentityVerifier, error) {
	if s.c.Environment == EnvironmentTest {
		slog.Warn("server: using mock identity verifier")
		return auth.MockVerifier{}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return auth.NewFirebaseVerifier(ctx, s.c.Firebase)
}

func (s *Server) initAPI() {
	e := gin.New()
	e.Use(gin.Recovery(), telemetry.RequestLogger(), s.metrics.HTTP())
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")

	cc := cors.DefaultConfig()
	cc.AllowCredentials = true
	cc.AddAllowHeaders("Authorization")
	if len(s.c.CORS.Origins) > 0 {
		cc.AllowOrigins = s.c.CORS.Origins
	} else {
		cc.AllowAllOrigins = true
		cc.AllowCredentials = false
	}
	e.Use(cors.New(cc))

	e.NoRoute(api.NotFound)

	s.grpc = grpc.NewServer(telemetry.GRPCServerInterceptor())
	s.health = telemetry.RegisterHealth(s.grpc, map[string]telemetry.Check{
		"postgres": s.infra.store.Ping,
		"redis": func(ctx context.Context) error {
			return s.infra.redis.Ping(ctx).Err()
		},
	})

	ac := api.Config{
		Router:       e,
		EventBus:     s.eb,
		Auth:         s.service.auth,
		User:         s.service.user,
		Game:         s.service.game,
		Question:     s.service.question,
		Leaderboard:  s.service.leaderboard,
		DB:           s.infra.store,
		Redis:        s.infra.redis,
		PubsubPrefix: s.c.Redis.Prefix,
		Environment:  s.c.Environment,
		Version:      version,
	}

	if s.c.RateLimit.Enabled {
		ac.GeneralLimit = s.limiter("general", s.c.RateLimit.General, ratelimit.General)
		ac.GameLimit = s.limiter("game", s.c.RateLimit.Game, ratelimit.Game)
	}

	api.New(ac)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) limiter(name string, r, def ratelimit.Rule) gin.HandlerFunc {
	if r.Window <= 0 {
		r.Window = def.Window
	}
	if r.Max <= 0 {
		r.Max = def.Max
	}
	if r.Message == "" {
		r.Message = def.Message
	}

	return ratelimit.New(ratelimit.Config{
		Redis:  s.infra.redis,
		Prefix: s.c.Redis.Prefix,
		Name:   name,
		Rule:   r,
	}).Middleware()
}

func (s *Server) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		slog.ErrorContext(ctx, "grpc server: listen failed", "error", err)
		panic(err)
	}

	s.janitor.Start()
	go s.health.Watch(ctx, 15*time.Second)

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	err = eg.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.janitor.Stop(); err != nil {
		slog.ErrorContext(ctx, "server: stop janitor failed", "error", err)
	}

	s.health.Shutdown()
	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()

	s.infra.postgres.Close()
	if err := s.infra.redis.Close(); err != nil {
		slog.ErrorContext(ctx, "server: close redis failed", "error", err)
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
