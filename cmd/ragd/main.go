// Package main implements the ragd CLI for ingesting documents and
// querying the local retrieval index.
package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/config"
	"github.com/fyrsmithlabs/ragd/internal/embedcache"
	"github.com/fyrsmithlabs/ragd/internal/embeddings"
	"github.com/fyrsmithlabs/ragd/internal/logging"
	"github.com/fyrsmithlabs/ragd/internal/telemetry"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

var (
	// configPath overrides the default config file location
	configPath string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ragd",
	Short: "Document ingestion and retrieval for local RAG pipelines",
	Long: `ragd chunks documents, embeds them and indexes the vectors so that
natural-language queries return the most relevant passages with citations.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: ~/.config/ragd/config.yaml)")
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(statusCmd)
}

// app holds the wired-up pipeline shared by all commands. Logs go to
// stderr; stdout is reserved for command output.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	tel    *telemetry.Telemetry
	embed  *embeddings.Service
	store  vectorstore.Store
}

// newApp loads configuration and builds the embedding service and vector
// store. Callers must Close the returned app.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	tel, err := telemetry.New(ctx, cfg.Telemetry, logger)
	if err != nil {
		return nil, err
	}

	cache, err := embedcache.New(cfg.Cache, logger)
	if err != nil {
		tel.Shutdown(ctx) //nolint:errcheck
		return nil, err
	}

	provider, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider:   cfg.Embeddings.Provider,
		Model:      cfg.Embeddings.Model,
		BaseURL:    cfg.Embeddings.BaseURL,
		APIKey:     cfg.Embeddings.APIKey,
		VectorSize: cfg.Embeddings.VectorSize,
	})
	if err != nil {
		tel.Shutdown(ctx) //nolint:errcheck
		return nil, err
	}

	embed, err := embeddings.NewService(cfg.Embeddings, provider, cache, logger)
	if err != nil {
		tel.Shutdown(ctx) //nolint:errcheck
		return nil, err
	}

	store, err := vectorstore.NewStore(cfg.VectorStore, logger)
	if err != nil {
		embed.Close()     //nolint:errcheck
		tel.Shutdown(ctx) //nolint:errcheck
		return nil, err
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		tel:    tel,
		embed:  embed,
		store:  store,
	}, nil
}

// Close releases the app's resources in reverse order of construction.
func (a *app) Close(ctx context.Context) {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing vector store", zap.Error(err))
	}
	if err := a.embed.Close(); err != nil {
		a.logger.Warn("closing embedding service", zap.Error(err))
	}
	if err := a.tel.Shutdown(ctx); err != nil {
		a.logger.Warn("shutting down telemetry", zap.Error(err))
	}
	logging.Sync(a.logger) //nolint:errcheck
}
