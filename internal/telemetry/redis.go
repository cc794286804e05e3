package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

func MonitorRedis(r redis.UniversalClient) error {
	if err := redisotel.InstrumentTracing(r); err != nil {
		return fmt.Errorf("instrument tracing: %w", err)
	}
	if err := redisotel.InstrumentMetrics(r); err != nil {
		return fmt.Errorf("instrument metrics: %w", err)
	}
	r.AddHook(redisLog{})
	return nil
}

// redisLog logs dials and failed commands. Successful commands are logged at debug level.
type redisLog struct{}

func (redisLog) DialHook(hook redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := hook(ctx, network, addr)
		if err != nil {
			slog.ErrorContext(ctx, "redis: dial failed", "network", network, "addr", addr, "error", err)
			return conn, err
		}
		slog.InfoContext(ctx, "redis: dialed", "network", network, "addr", addr)
		return conn, nil
	}
}

func (redisLog) ProcessHook(hook redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := hook(ctx, cmd)
		logCmd(ctx, cmd.Name(), err)
		return err
	}
}

func (redisLog) ProcessPipelineHook(hook redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := hook(ctx, cmds)
		logCmd(ctx, fmt.Sprintf("pipeline(%d)", len(cmds)), err)
		return err
	}
}

func logCmd(ctx context.Context, name string, err error) {
	if err != nil && !errors.Is(err, redis.Nil) {
		slog.ErrorContext(ctx, "redis: command failed", "cmd", name, "error", err)
		return
	}
	slog.DebugContext(ctx, "redis: command", "cmd", name)
}
