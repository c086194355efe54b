// Package embedcache memoizes text-to-vector computation.
//
// The cache is a speed optimization, never a source of truth: the embedding
// computation is pure given a fixed model, so a lost or unreachable cache
// degrades to pass-through instead of failing the caller. Concurrent misses
// for the same key may both invoke the compute function; no per-key mutual
// exclusion is provided.
package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/secrets"
)

// ErrInvalidConfig indicates invalid cache configuration.
var ErrInvalidConfig = errors.New("invalid cache configuration")

// ComputeFunc produces the embedding vector for a text. It must be a pure
// function of its input so that duplicate computation is harmless.
type ComputeFunc func(ctx context.Context, text string) ([]float32, error)

// Cache memoizes embedding vectors keyed by a content fingerprint.
type Cache interface {
	// GetOrCompute returns the cached vector for text, or invokes compute,
	// stores the result with the configured TTL and returns it. Backing-store
	// failures are logged and degrade to pass-through; they never fail the
	// caller.
	GetOrCompute(ctx context.Context, text string, compute ComputeFunc) ([]float32, error)

	// Close releases resources held by the cache backend.
	Close() error
}

// RedisConfig holds connection settings for the Redis backend.
type RedisConfig struct {
	// Addr is the Redis host:port.
	// Default: "localhost:6379"
	Addr string `koanf:"addr"`

	// Password is the Redis password (optional). Redacted in logs.
	Password secrets.Secret `koanf:"password"`

	// DB is the Redis database number.
	DB int `koanf:"db"`
}

// Config holds cache configuration.
type Config struct {
	// Provider selects the backend: "memory" (default) or "redis".
	Provider string `koanf:"provider"`

	// TTL is the entry time-to-live.
	// Default: 24h
	TTL time.Duration `koanf:"ttl"`

	// MaxEntries bounds the memory backend (LRU eviction).
	// Default: 4096
	MaxEntries int `koanf:"max_entries"`

	// KeyPrefix namespaces keys in shared stores.
	// Default: "ragd:embed:"
	KeyPrefix string `koanf:"key_prefix"`

	// Redis holds Redis backend settings.
	Redis RedisConfig `koanf:"redis"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = "memory"
	}
	if c.TTL == 0 {
		c.TTL = 24 * time.Hour
	}
	if c.MaxEntries == 0 {
		c.MaxEntries = 4096
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "ragd:embed:"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	switch c.Provider {
	case "memory", "redis":
	default:
		return fmt.Errorf("%w: unknown provider %q (supported: memory, redis)", ErrInvalidConfig, c.Provider)
	}
	if c.TTL < 0 {
		return fmt.Errorf("%w: ttl cannot be negative", ErrInvalidConfig)
	}
	if c.MaxEntries < 0 {
		return fmt.Errorf("%w: max entries cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// New creates a Cache backend based on the configuration.
func New(cfg Config, logger *zap.Logger) (Cache, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Provider {
	case "memory":
		return newMemoryCache(cfg, logger)
	case "redis":
		return newRedisCache(cfg, logger)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

// Fingerprint returns the stable cache key for text: the hex-encoded SHA-256
// of the normalized input. Normalization trims the text and collapses internal
// whitespace runs to a single space, so semantically identical inputs that
// differ only in spacing hash to the same key. The normalization is fixed for
// the process lifetime; changing it silently defeats the hit rate.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(normalizeKey(text)))
	return hex.EncodeToString(sum[:])
}

func normalizeKey(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
