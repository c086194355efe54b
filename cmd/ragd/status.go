package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

// statusCmd reports index and pipeline configuration
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index contents and pipeline configuration",
	Long: `Show the vector collection's record count alongside the embedding and
storage configuration in effect.

Examples:
  # Show status with the default config
  ragd status

  # Show status for an alternate config
  ragd status --config ./ragd.yaml`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

// runStatus handles the status command
func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	fmt.Printf("Embeddings:   %s (%s, %d dimensions)\n",
		a.cfg.Embeddings.Provider, a.cfg.Embeddings.Model, a.embed.Dimension())
	fmt.Printf("Vector store: %s\n", a.cfg.VectorStore.Provider)
	fmt.Printf("Cache:        %s\n", a.cfg.Cache.Provider)

	info, err := a.store.Info(ctx)
	if err != nil {
		if errors.Is(err, vectorstore.ErrCollectionNotFound) {
			fmt.Println("Collection:   none (nothing ingested yet)")
			return nil
		}
		return err
	}

	fmt.Printf("Collection:   %s\n", info.Name)
	fmt.Printf("Records:      %d\n", info.PointCount)
	fmt.Printf("Vector size:  %d\n", info.VectorSize)

	return nil
}
