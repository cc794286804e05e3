package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/umoja/internal/errors"
)

// Rule is a fixed window: at most Max requests per Window for one caller.
type Rule struct {
	Window  time.Duration `mapstructure:"window"`
	Max     int           `mapstructure:"max"`
	Message string        `mapstructure:"message"`
}

var (
	General = Rule{
		Window:  15 * time.Minute,
		Max:     100,
		Message: "Too many requests from this IP, please try again later.",
	}

	Game = Rule{
		Window:  time.Minute,
		Max:     60,
		Message: "You are playing too fast, please slow down.",
	}
)

type Config struct {
	Redis  redis.UniversalClient
	Prefix string
	Name   string
	Rule   Rule
}

type Limiter struct {
	redis  redis.UniversalClient
	prefix string
	name   string
	rule   Rule
	now    func() time.Time
}

func New(c Config) *Limiter {
	return &Limiter{
		redis:  c.Redis,
		prefix: c.Prefix,
		name:   c.Name,
		rule:   c.Rule,
		now:    time.Now,
	}
}

type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetIn   time.Duration
}

// Allow counts one request for caller in the current window.
func (l *Limiter) Allow(ctx context.Context, caller string) (*Result, error) {
	key := l.key(caller)

	pipe := l.redis.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, l.rule.Window)
	ttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("ratelimit: %s: %w", l.name, err)
	}

	count := int(incr.Val())
	reset := ttl.Val()
	if reset <= 0 {
		reset = l.rule.Window
	}

	return &Result{
		Allowed:   count <= l.rule.Max,
		Limit:     l.rule.Max,
		Remaining: max(l.rule.Max-count, 0),
		ResetIn:   reset,
	}, nil
}

// Middleware limits requests per client IP. Redis failures let the request through.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		res, err := l.Allow(ctx, c.ClientIP())
		if err != nil {
			slog.WarnContext(ctx, "ratelimit: allowing request", "limiter", l.name, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(l.now().Add(res.ResetIn).Unix(), 10))

		if !res.Allowed {
			c.Header("Retry-After", strconv.Itoa(int((res.ResetIn+time.Second-1)/time.Second)))

			var opts []errors.Option
			if l.rule.Message != "" {
				opts = append(opts, errors.WithMessagef("%s", l.rule.Message))
			}
			_ = c.Error(errors.New(errors.KindRateLimited, opts...))
			c.Abort()
			return
		}

		c.Next()
	}
}

func (l *Limiter) key(caller string) string {
	return fmt.Sprintf("%s:ratelimit:%s:%s", l.prefix, l.name, caller)
}
