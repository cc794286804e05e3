package telemetry

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/victornm/umoja/internal/domain"
	"github.com/victornm/umoja/internal/event"
)

const namespace = "umoja"

// Metrics counts gameplay from bus events and times HTTP requests.
type Metrics struct {
	SessionsStarted  *prometheus.CounterVec
	AnswersSubmitted *prometheus.CounterVec
	CoinsEarned      prometheus.Counter
	HintsPurchased   prometheus.Counter
	CoinsSpent       prometheus.Counter
	LevelsAdvanced   *prometheus.CounterVec

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer, eb *event.Bus) *Metrics {
	m := &Metrics{
		SessionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "game_sessions_started_total",
			Help:      "Game sessions started.",
		}, []string{"player"}),

		AnswersSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "game_answers_total",
			Help:      "Answers submitted by result.",
		}, []string{"result"}),

		CoinsEarned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "game_coins_earned_total",
			Help:      "Coins earned from correct answers.",
		}),

		HintsPurchased: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "game_hints_total",
			Help:      "Hints handed out.",
		}),

		CoinsSpent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "game_coins_spent_total",
			Help:      "Coins spent on hints.",
		}),

		LevelsAdvanced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "game_levels_advanced_total",
			Help:      "Level advances by the level reached.",
		}, []string{"level"}),

		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),

		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		m.SessionsStarted,
		m.AnswersSubmitted,
		m.CoinsEarned,
		m.HintsPurchased,
		m.CoinsSpent,
		m.LevelsAdvanced,
		m.HTTPRequests,
		m.HTTPDuration,
	)

	eb.Subscribe(domain.EventNameSessionStarted, func(_ context.Context, e event.Event) error {
		player := "user"
		if e.(domain.EventSessionStarted).Session.IsGuest {
			player = "guest"
		}
		m.SessionsStarted.WithLabelValues(player).Inc()
		return nil
	})

	eb.Subscribe(domain.EventNameAnswerSubmitted, func(_ context.Context, e event.Event) error {
		a := e.(domain.EventAnswerSubmitted)
		result := "incorrect"
		if a.IsCorrect {
			result = "correct"
		}
		m.AnswersSubmitted.WithLabelValues(result).Inc()
		m.CoinsEarned.Add(float64(a.CoinsEarned))
		return nil
	})

	eb.Subscribe(domain.EventNameHintPurchased, func(_ context.Context, e event.Event) error {
		m.HintsPurchased.Inc()
		m.CoinsSpent.Add(float64(e.(domain.EventHintPurchased).Hint.CoinsSpent))
		return nil
	})

	eb.Subscribe(domain.EventNameLevelAdvanced, func(_ context.Context, e event.Event) error {
		m.LevelsAdvanced.WithLabelValues(strconv.Itoa(e.(domain.EventLevelAdvanced).Session.Level)).Inc()
		return nil
	})

	return m
}

// HTTP records request counts and latency per matched route.
func (m *Metrics) HTTP() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		m.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
