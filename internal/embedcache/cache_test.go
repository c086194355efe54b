package embedcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:   "memory provider",
			config: Config{Provider: "memory", TTL: time.Hour, MaxEntries: 10},
		},
		{
			name:   "redis provider",
			config: Config{Provider: "redis", TTL: time.Hour},
		},
		{
			name:    "unknown provider",
			config:  Config{Provider: "memcached"},
			wantErr: true,
		},
		{
			name:    "negative ttl",
			config:  Config{Provider: "memory", TTL: -time.Second},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestFingerprint_Normalization(t *testing.T) {
	// Inputs differing only in whitespace must hash identically.
	assert.Equal(t, Fingerprint("hello world"), Fingerprint("  hello   world  "))
	assert.Equal(t, Fingerprint("hello world"), Fingerprint("hello\n\tworld"))
	assert.NotEqual(t, Fingerprint("hello world"), Fingerprint("hello worlds"))
}

func TestMemoryCache_ComputeOnce(t *testing.T) {
	cache, err := New(Config{Provider: "memory"}, zap.NewNop())
	require.NoError(t, err)
	defer cache.Close()

	calls := 0
	compute := func(ctx context.Context, text string) ([]float32, error) {
		calls++
		return []float32{0.1, 0.2, 0.3}, nil
	}

	ctx := context.Background()
	vec1, err := cache.GetOrCompute(ctx, "some text", compute)
	require.NoError(t, err)
	vec2, err := cache.GetOrCompute(ctx, "some text", compute)
	require.NoError(t, err)

	assert.Equal(t, vec1, vec2)
	assert.Equal(t, 1, calls, "compute must run at most once for the same text")

	// Whitespace variants of the same text hit the same entry.
	_, err = cache.GetOrCompute(ctx, "  some   text ", compute)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestMemoryCache_ComputeError(t *testing.T) {
	cache, err := New(Config{Provider: "memory"}, zap.NewNop())
	require.NoError(t, err)
	defer cache.Close()

	wantErr := errors.New("model offline")
	_, err = cache.GetOrCompute(context.Background(), "text", func(ctx context.Context, text string) ([]float32, error) {
		return nil, wantErr
	})
	require.ErrorIs(t, err, wantErr)

	// A failed compute must not poison the cache.
	calls := 0
	vec, err := cache.GetOrCompute(context.Background(), "text", func(ctx context.Context, text string) ([]float32, error) {
		calls++
		return []float32{1}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, vec)
	assert.Equal(t, 1, calls)
}

func TestMemoryCache_TTLExpiry(t *testing.T) {
	cache, err := New(Config{Provider: "memory", TTL: 20 * time.Millisecond}, zap.NewNop())
	require.NoError(t, err)
	defer cache.Close()

	calls := 0
	compute := func(ctx context.Context, text string) ([]float32, error) {
		calls++
		return []float32{float32(calls)}, nil
	}

	ctx := context.Background()
	_, err = cache.GetOrCompute(ctx, "text", compute)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)

	_, err = cache.GetOrCompute(ctx, "text", compute)
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "expired entry must be recomputed")
}

func TestRedisCache_DegradesToPassThrough(t *testing.T) {
	// Point the client at a port nothing listens on: every store operation
	// fails, and the cache must still serve results by computing.
	cache, err := New(Config{
		Provider: "redis",
		Redis:    RedisConfig{Addr: "127.0.0.1:1"},
	}, zap.NewNop())
	require.NoError(t, err)
	defer cache.Close()

	calls := 0
	compute := func(ctx context.Context, text string) ([]float32, error) {
		calls++
		return []float32{0.5}, nil
	}

	ctx := context.Background()
	vec, err := cache.GetOrCompute(ctx, "text", compute)
	require.NoError(t, err, "store unavailability must not fail the caller")
	assert.Equal(t, []float32{0.5}, vec)

	_, err = cache.GetOrCompute(ctx, "text", compute)
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "pass-through computes on every call")
}
