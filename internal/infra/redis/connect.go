package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/vogiaan1904/ticketbottle-gate/config"
	pkgLog "github.com/vogiaan1904/ticketbottle-gate/pkg/logger"
	pkgRedis "github.com/vogiaan1904/ticketbottle-gate/pkg/redis"
)

// Connect opens the default store and checks it answers before the gate
// starts serving.
func Connect(ctx context.Context, cfg config.RedisConfig, l pkgLog.Logger) (*redis.Client, error) {
	cli, err := pkgRedis.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}

	if err := cli.Ping(ctx).Err(); err != nil {
		cli.Close()
		return nil, fmt.Errorf("failed to ping Redis at %s: %w", cfg.Addr, err)
	}

	l.Infof(ctx, "Connected to Redis addr=%s db=%d", cfg.Addr, cfg.DB)

	return cli, nil
}

func Disconnect(ctx context.Context, cli *redis.Client, l pkgLog.Logger) {
	if cli == nil {
		return
	}

	if err := cli.Close(); err != nil {
		l.Warnf(ctx, "infra.redis.Disconnect: %v", err)
		return
	}

	l.Infof(ctx, "Connection to Redis closed")
}
