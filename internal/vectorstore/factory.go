// Package vectorstore provides vector index implementations.
package vectorstore

import (
	"fmt"

	"go.uber.org/zap"
)

// Config selects and configures a vector store backend.
type Config struct {
	// Provider selects the backend: "chromem" (default) or "qdrant".
	Provider string `koanf:"provider"`

	// Chromem configures the embedded chromem-go backend.
	Chromem ChromemConfig `koanf:"chromem"`

	// Qdrant configures the external Qdrant backend.
	Qdrant QdrantConfig `koanf:"qdrant"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = "chromem"
	}
	c.Chromem.ApplyDefaults()
	c.Qdrant.ApplyDefaults()
}

// Validate validates the configuration of the selected provider.
func (c Config) Validate() error {
	switch c.Provider {
	case "chromem", "":
		return c.Chromem.Validate()
	case "qdrant":
		return c.Qdrant.Validate()
	default:
		return fmt.Errorf("%w: unsupported provider %q (supported: chromem, qdrant)", ErrInvalidConfig, c.Provider)
	}
}

// NewStore creates a Store based on the configuration.
//
// The chromem provider is the default since it is embedded and needs no
// external service. The qdrant provider requires a running Qdrant server
// reachable over gRPC.
func NewStore(cfg Config, logger *zap.Logger) (Store, error) {
	cfg.ApplyDefaults()

	switch cfg.Provider {
	case "chromem", "":
		return NewChromemStore(cfg.Chromem, logger)
	case "qdrant":
		return NewQdrantStore(cfg.Qdrant, logger)
	default:
		return nil, fmt.Errorf("%w: unsupported provider %q (supported: chromem, qdrant)", ErrInvalidConfig, cfg.Provider)
	}
}
