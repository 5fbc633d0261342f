package commands

import (
	"context"
	"time"

	"github.com/dyluth/locbridge/internal/config"
	"github.com/dyluth/locbridge/internal/printer"
	"github.com/dyluth/locbridge/pkg/blackboard"
)

// connectBlackboard opens and verifies the Redis connection named by redis.url.
func connectBlackboard(ctx context.Context, cfg *config.Config) (*blackboard.Client, error) {
	if cfg.Redis.URL == "" {
		return nil, reported(printer.Error(
			"Redis not configured",
			"Seed events are only recorded when redis.url is set.",
			[]string{"Set redis.url in locbridge.yml or the REDIS_URL environment variable"},
		))
	}

	bbClient, err := blackboard.NewClientFromURL(cfg.Redis.URL, cfg.Instance)
	if err != nil {
		return nil, reported(printer.Error("invalid redis.url", err.Error(), nil))
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := bbClient.Ping(pingCtx); err != nil {
		bbClient.Close()
		return nil, reported(printer.ErrorWithContext(
			"Redis connection failed",
			err.Error(),
			map[string]string{"url": cfg.Redis.URL, "instance": cfg.Instance},
			nil,
		))
	}
	return bbClient, nil
}
