package embedcache

import (
	"context"
	"encoding/json"
	"errors"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// redisCache is a Redis-backed cache with per-key TTL expiry.
//
// Store failures are never surfaced to the caller: a miss is computed, a
// failed write is logged and dropped. Vectors are serialized as JSON arrays.
type redisCache struct {
	client *goredis.Client
	config Config
	logger *zap.Logger
}

func newRedisCache(cfg Config, logger *zap.Logger) (*redisCache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password.Value(),
		DB:       cfg.Redis.DB,
	})
	return &redisCache{
		client: client,
		config: cfg,
		logger: logger.Named("embedcache"),
	}, nil
}

// GetOrCompute returns the cached vector for text, computing and storing it
// on a miss. An unreachable or corrupted store degrades to pass-through.
func (c *redisCache) GetOrCompute(ctx context.Context, text string, compute ComputeFunc) ([]float32, error) {
	key := c.config.KeyPrefix + Fingerprint(text)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var vec []float32
		if jsonErr := json.Unmarshal(data, &vec); jsonErr == nil && len(vec) > 0 {
			return vec, nil
		}
		// Corrupted entry: drop it and recompute.
		c.logger.Warn("dropping corrupted cache entry", zap.String("key", key))
		_ = c.client.Del(ctx, key).Err()
	case errors.Is(err, goredis.Nil):
		// Miss.
	default:
		c.logger.Warn("cache store unreachable, computing without cache",
			zap.String("key", key),
			zap.Error(err),
		)
	}

	vec, err := compute(ctx, text)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(vec); err == nil {
		if err := c.client.Set(ctx, key, data, c.config.TTL).Err(); err != nil {
			c.logger.Warn("failed to store cache entry",
				zap.String("key", key),
				zap.Error(err),
			)
		}
	}

	return vec, nil
}

// Close closes the Redis connection.
func (c *redisCache) Close() error {
	return c.client.Close()
}

var _ Cache = (*redisCache)(nil)
