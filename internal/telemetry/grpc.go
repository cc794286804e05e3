package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func GRPCServerInterceptor() grpc.ServerOption {
	opts := []logging.Option{
		logging.WithLogOnEvents(logging.FinishCall),
	}

	return grpc.ChainUnaryInterceptor(
		logging.UnaryServerInterceptor(grpcServerLogger(slog.Default()), opts...),
	)
}

func grpcServerLogger(l *slog.Logger) logging.Logger {
	return logging.LoggerFunc(func(ctx context.Context, lvl logging.Level, msg string, fields ...any) {
		l.Log(ctx, slog.Level(lvl), msg, fields...)
	})
}

// Check reports whether a dependency is reachable.
type Check func(ctx context.Context) error

// Health serves grpc.health.v1 with one service per named check.
// The empty service name is SERVING only while every check passes.
type Health struct {
	srv    *health.Server
	checks map[string]Check
}

func RegisterHealth(s *grpc.Server, checks map[string]Check) *Health {
	h := &Health{
		srv:    health.NewServer(),
		checks: checks,
	}
	healthpb.RegisterHealthServer(s, h.srv)
	return h
}

// Update runs every check once and publishes the results.
func (h *Health) Update(ctx context.Context) map[string]error {
	results := make(map[string]error, len(h.checks))
	overall := healthpb.HealthCheckResponse_SERVING

	for name, check := range h.checks {
		err := check(ctx)
		results[name] = err

		st := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			st = healthpb.HealthCheckResponse_NOT_SERVING
			overall = st
			slog.WarnContext(ctx, "health: check failed", "check", name, "error", err)
		}
		h.srv.SetServingStatus(name, st)
	}

	h.srv.SetServingStatus("", overall)
	return results
}

// Watch updates the status every interval until ctx is done.
func (h *Health) Watch(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		cctx, cancel := context.WithTimeout(ctx, interval)
		h.Update(cctx)
		cancel()

		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (h *Health) Shutdown() {
	h.srv.Shutdown()
}
