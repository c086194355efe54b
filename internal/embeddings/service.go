package embeddings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/ragd/internal/embedcache"
	"github.com/fyrsmithlabs/ragd/internal/secrets"
)

// Provider is the interface for embedding providers.
//
// Implementations must be safe for concurrent use and side-effect free:
// embedding is a pure function of its input given a fixed model, which is
// what makes retries and duplicate cache misses harmless.
type Provider interface {
	// EmbedDocuments generates embeddings for multiple texts, one vector
	// per input in input order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding dimension for the current model.
	Dimension() int

	// Close releases resources held by the provider.
	Close() error
}

// Config holds configuration for the embedding service.
type Config struct {
	// Provider selects the backend: "tei" (default) or "ollama".
	Provider string `koanf:"provider"`

	// Model is the embedding model name.
	// Default: "BAAI/bge-small-en-v1.5"
	Model string `koanf:"model"`

	// BaseURL is the embedding service endpoint.
	// Default: "http://localhost:8080"
	BaseURL string `koanf:"base_url"`

	// APIKey is the bearer token (optional). Redacted in logs.
	APIKey secrets.Secret `koanf:"api_key"`

	// VectorSize overrides model-based dimension detection when set.
	VectorSize int `koanf:"vector_size"`

	// BatchSize is the maximum number of texts per request, bounding the
	// external service payload.
	// Default: 32
	BatchSize int `koanf:"batch_size"`

	// MaxConcurrency bounds in-flight sub-batch requests per call.
	// Default: 4
	MaxConcurrency int `koanf:"max_concurrency"`

	// MaxRetries is the maximum number of retry attempts for transient
	// failures.
	// Default: 3
	MaxRetries int `koanf:"max_retries"`

	// RetryBackoff is the initial backoff duration for retries.
	// Doubles on each retry (exponential backoff).
	// Default: 500ms
	RetryBackoff time.Duration `koanf:"retry_backoff"`

	// RateLimitRPS caps requests per second against the embedding service.
	// Zero disables rate limiting.
	RateLimitRPS float64 `koanf:"rate_limit_rps"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = "tei"
	}
	if c.Model == "" {
		c.Model = "BAAI/bge-small-en-v1.5"
	}
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:8080"
	}
	if c.BatchSize == 0 {
		c.BatchSize = 32
	}
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = 4
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive", ErrInvalidConfig)
	}
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("%w: max concurrency must be positive", ErrInvalidConfig)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries cannot be negative", ErrInvalidConfig)
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("%w: rate limit cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// Service wraps a Provider with batching, bounded concurrency, retry with
// exponential backoff, rate limiting and a cache on the single-text path.
type Service struct {
	provider Provider
	cache    embedcache.Cache
	limiter  *rate.Limiter
	config   Config
	logger   *zap.Logger
	metrics  *Metrics
}

// NewService creates an embedding service. The cache may be nil, in which
// case single-text embedding always computes.
func NewService(cfg Config, provider Provider, cache embedcache.Cache, logger *zap.Logger) (*Service, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if provider == nil {
		return nil, fmt.Errorf("%w: provider is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), 1)
	}

	return &Service{
		provider: provider,
		cache:    cache,
		limiter:  limiter,
		config:   cfg,
		logger:   logger.Named("embeddings"),
		metrics:  NewMetrics(logger),
	}, nil
}

// Dimension returns the embedding dimension the service produces.
func (s *Service) Dimension() int {
	if s.config.VectorSize > 0 {
		return s.config.VectorSize
	}
	return s.provider.Dimension()
}

// Close releases the underlying provider and cache.
func (s *Service) Close() error {
	err := s.provider.Close()
	if s.cache != nil {
		if cerr := s.cache.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// EmbedDocuments embeds texts in sub-batches of the configured batch size,
// dispatched with bounded concurrency. The result preserves input order
// regardless of sub-batch completion order: each sub-batch writes into its
// own offset of a pre-sized slice.
func (s *Service) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	var genErr error
	defer func() {
		s.metrics.RecordGeneration(ctx, s.config.Model, "embed_documents", time.Since(start), len(texts), genErr)
	}()

	if len(texts) == 0 {
		genErr = fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
		return nil, genErr
	}

	vectors := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.MaxConcurrency)

	for offset := 0; offset < len(texts); offset += s.config.BatchSize {
		offset := offset
		end := offset + s.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[offset:end]

		g.Go(func() error {
			var batchVectors [][]float32
			err := s.withRetry(gctx, "embed_documents", func() error {
				if err := s.wait(gctx); err != nil {
					return err
				}
				vs, err := s.provider.EmbedDocuments(gctx, batch)
				if err != nil {
					return err
				}
				batchVectors = vs
				return nil
			})
			if err != nil {
				return err
			}
			copy(vectors[offset:end], batchVectors)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		genErr = err
		return nil, err
	}

	return vectors, nil
}

// EmbedQuery embeds a single text through the cache.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	var genErr error
	defer func() {
		s.metrics.RecordGeneration(ctx, s.config.Model, "embed_query", time.Since(start), 1, genErr)
	}()

	if text == "" {
		genErr = fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
		return nil, genErr
	}

	compute := func(ctx context.Context, text string) ([]float32, error) {
		var vector []float32
		err := s.withRetry(ctx, "embed_query", func() error {
			if err := s.wait(ctx); err != nil {
				return err
			}
			v, err := s.provider.EmbedQuery(ctx, text)
			if err != nil {
				return err
			}
			vector = v
			return nil
		})
		return vector, err
	}

	var vector []float32
	var err error
	if s.cache != nil {
		vector, err = s.cache.GetOrCompute(ctx, text, compute)
	} else {
		vector, err = compute(ctx, text)
	}
	if err != nil {
		genErr = err
		return nil, err
	}
	return vector, nil
}

// wait blocks on the rate limiter when one is configured.
func (s *Service) wait(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}

// withRetry retries an operation with exponential backoff. Only transient
// failures are retried; permanent failures and context cancellation return
// immediately. Exhausting retries yields ErrEmbeddingUnavailable.
func (s *Service) withRetry(ctx context.Context, operation string, fn func() error) error {
	backoff := s.config.RetryBackoff

	var lastErr error
	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !errors.Is(lastErr, ErrTransient) {
			return lastErr
		}

		if attempt == s.config.MaxRetries {
			break
		}

		s.logger.Warn("transient embedding failure, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(lastErr),
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s canceled: %w", operation, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}

	return fmt.Errorf("%w: %s failed after %d attempts: %v",
		ErrEmbeddingUnavailable, operation, s.config.MaxRetries+1, lastErr)
}
