// Package redis provides the redis client and the per-user lock built on it.
package redis

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cfgpkg "github.com/fatflowers/membership/pkg/config"
)

// NewClient returns nil when no address is configured.
func NewClient(lc fx.Lifecycle, l *zap.SugaredLogger, cfg *cfgpkg.Config) *redis.Client {
	if cfg.Redis.Addr == "" {
		l.Infow("redis not configured, using in-process locks")
		return nil
	}
	cli := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := cli.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("failed to ping redis at %s: %w", cfg.Redis.Addr, err)
			}
			l.Infow("connected to redis", "addr", cfg.Redis.Addr)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			l.Infow("closing redis client")
			return cli.Close()
		},
	})
	return cli
}

var Module = fx.Options(
	fx.Provide(NewClient),
	fx.Provide(NewLocker),
)
