package bootstrap

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/amar74/n-be-sub001/internal/config"
	"github.com/amar74/n-be-sub001/internal/events"
	"github.com/amar74/n-be-sub001/internal/logger"
)

const redisPingTimeout = 5 * time.Second

// SetupEventPublisher connects Redis when event publishing is enabled.
// Returns nil when disabled or unreachable; a nil publisher is a no-op, so
// the pipeline runs without events rather than failing startup.
func SetupEventPublisher(cfg *config.Config, log logger.Logger) *events.Publisher {
	if !cfg.Redis.Enabled {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("redis unreachable, events disabled",
			logger.String("address", cfg.Redis.Address),
			logger.Error(err),
		)
		_ = client.Close()
		return nil
	}

	log.Info("event publisher initialized", logger.String("address", cfg.Redis.Address))
	return events.NewPublisher(client, log)
}
