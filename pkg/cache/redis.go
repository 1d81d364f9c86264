package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nitro-academy/turma-scheduler/pkg/config"
)

const keyPrefix = "turma"

// NewRedis returns a configured Redis client. The client is verified with a PING before use.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	return client, nil
}

// Key joins parts under the service namespace, e.g. Key("lock", "course", "42") = "turma:lock:course:42".
func Key(parts ...string) string {
	return keyPrefix + ":" + strings.Join(parts, ":")
}
