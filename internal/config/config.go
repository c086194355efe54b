// Package config provides configuration loading for ragd.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/fyrsmithlabs/ragd/internal/chunker"
	"github.com/fyrsmithlabs/ragd/internal/embedcache"
	"github.com/fyrsmithlabs/ragd/internal/embeddings"
	"github.com/fyrsmithlabs/ragd/internal/logging"
	"github.com/fyrsmithlabs/ragd/internal/retriever"
	"github.com/fyrsmithlabs/ragd/internal/telemetry"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

const (
	// envPrefix namespaces ragd's environment variables.
	envPrefix = "RAGD_"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

// Config is the root configuration for ragd. Each section is owned by the
// package it configures; this package only assembles, loads and validates.
type Config struct {
	Logging     logging.Config     `koanf:"logging"`
	Telemetry   telemetry.Config   `koanf:"telemetry"`
	Chunking    chunker.Config     `koanf:"chunking"`
	Cache       embedcache.Config  `koanf:"cache"`
	Embeddings  embeddings.Config  `koanf:"embeddings"`
	VectorStore vectorstore.Config `koanf:"vectorstore"`
	Retrieval   retriever.Config   `koanf:"retrieval"`
}

// ApplyDefaults sets default values for every section.
func (c *Config) ApplyDefaults() {
	c.Logging.ApplyDefaults()
	c.Chunking.ApplyDefaults()
	c.Cache.ApplyDefaults()
	c.Embeddings.ApplyDefaults()
	c.VectorStore.ApplyDefaults()
	c.Retrieval.ApplyDefaults()
}

// Validate validates every section, failing fast on the first error.
func (c Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	if err := c.Chunking.Validate(); err != nil {
		return fmt.Errorf("chunking: %w", err)
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := c.Embeddings.Validate(); err != nil {
		return fmt.Errorf("embeddings: %w", err)
	}
	if err := c.VectorStore.Validate(); err != nil {
		return fmt.Errorf("vectorstore: %w", err)
	}
	if err := c.Retrieval.Validate(); err != nil {
		return fmt.Errorf("retrieval: %w", err)
	}
	return nil
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "ragd", "config.yaml"), nil
}

// Load loads configuration from a YAML file, then overrides with
// environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (RAGD_EMBEDDINGS_BASE_URL, RAGD_LOGGING_LEVEL, ...)
//  2. YAML config file (default: ~/.config/ragd/config.yaml)
//  3. Defaults
//
// A missing config file is not an error; defaults and environment carry it.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		var err error
		configPath, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	if _, err := os.Stat(configPath); err == nil {
		// Open once and validate through the descriptor to avoid a TOCTOU
		// race between the checks and the read.
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("opening config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("stat config file: %w", err)
		}
		if err := validateConfigFile(info); err != nil {
			return nil, fmt.Errorf("config file validation failed: %w", err)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
		}
	}

	// Environment variables override the file.
	// RAGD_EMBEDDINGS_BASE_URL -> embeddings.base_url
	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	// Sections without zero-value defaults are pre-seeded so the file only
	// has to name what it changes.
	cfg.Telemetry = telemetry.NewDefaultConfig()

	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// envTransform maps an environment variable to a config key. The first
// underscore after the prefix separates section from field; field names
// keep their underscores.
//
//	RAGD_EMBEDDINGS_BASE_URL -> embeddings.base_url
//	RAGD_LOGGING_LEVEL       -> logging.level
func envTransform(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

// validateConfigFile checks file permissions and size.
func validateConfigFile(info os.FileInfo) error {
	// Config may hold credentials (redis password, API keys), so reject
	// group/world-readable files. Windows has a different permission model.
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm&0o077 != 0 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or stricter)", perm)
		}
	}

	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	return nil
}
