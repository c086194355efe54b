package embedcache

import (
	"context"
	"fmt"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

// memoryCache is an in-process backend combining LRU capacity eviction with
// per-entry TTL expiry.
type memoryCache struct {
	lru    *expirable.LRU[string, []float32]
	logger *zap.Logger
}

func newMemoryCache(cfg Config, logger *zap.Logger) (*memoryCache, error) {
	if cfg.MaxEntries <= 0 {
		return nil, fmt.Errorf("%w: memory backend requires positive max entries", ErrInvalidConfig)
	}
	return &memoryCache{
		lru:    expirable.NewLRU[string, []float32](cfg.MaxEntries, nil, cfg.TTL),
		logger: logger.Named("embedcache"),
	}, nil
}

// GetOrCompute returns the cached vector or computes and stores it.
func (c *memoryCache) GetOrCompute(ctx context.Context, text string, compute ComputeFunc) ([]float32, error) {
	key := Fingerprint(text)

	if vec, ok := c.lru.Get(key); ok {
		return vec, nil
	}

	vec, err := compute(ctx, text)
	if err != nil {
		return nil, err
	}

	c.lru.Add(key, vec)
	return vec, nil
}

// Close is a no-op for the in-process backend.
func (c *memoryCache) Close() error {
	return nil
}

var _ Cache = (*memoryCache)(nil)
