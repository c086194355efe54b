// Package embeddings provides embedding generation via multiple providers.
package embeddings

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/ragd/internal/secrets"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid embeddings configuration")

	// ErrTransient marks a retryable failure: timeout, rate limit, or a
	// 5xx-equivalent response from the embedding service.
	ErrTransient = errors.New("transient embedding failure")

	// ErrRequestFailed indicates a permanent embedding request failure.
	ErrRequestFailed = errors.New("embedding request failed")

	// ErrEmbeddingUnavailable is returned once transient retries are
	// exhausted. The operation is fatal for the current document or query
	// but safe to retry wholesale later.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
)

// ProviderConfig holds configuration for creating an embedding provider.
type ProviderConfig struct {
	// Provider is the provider type: "tei" or "ollama".
	Provider string

	// Model is the embedding model name.
	Model string

	// BaseURL is the service endpoint.
	BaseURL string

	// APIKey is the bearer token (optional for TEI).
	APIKey secrets.Secret

	// VectorSize overrides model-based dimension detection when set.
	VectorSize int
}

// NewProvider creates an embedding provider based on the configuration.
// The provider set is closed and selected once at startup; call sites never
// branch on the provider type.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch cfg.Provider {
	case "tei", "":
		return NewTEIClient(cfg)
	case "ollama":
		return NewOllamaClient(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q (supported: tei, ollama)", ErrInvalidConfig, cfg.Provider)
	}
}

// detectDimension returns the embedding dimension for a model name.
// Falls back to 384 if the model is unknown.
func detectDimension(model string) int {
	switch {
	case strings.Contains(model, "mxbai-embed-large"):
		return 1024
	case strings.Contains(model, "nomic-embed-text"):
		return 768
	case strings.Contains(model, "large"):
		return 1024
	case strings.Contains(model, "base"):
		return 768
	case strings.Contains(model, "small"), strings.Contains(model, "mini"):
		return 384
	default:
		return 384
	}
}
