package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/ragd/internal/chunker"
	"github.com/fyrsmithlabs/ragd/internal/document"
	"github.com/fyrsmithlabs/ragd/internal/ingest"
)

// ingestCmd indexes files and directories
var ingestCmd = &cobra.Command{
	Use:   "ingest <path>...",
	Short: "Chunk, embed and index documents",
	Long: fmt.Sprintf(`Ingest files or directories into the vector index. Directories are walked
recursively; hidden directories and unsupported file types are skipped.
Re-ingesting a path replaces its previous chunks.

Supported extensions: %s

Examples:
  # Ingest a single file
  ragd ingest notes.md

  # Ingest a directory tree
  ragd ingest ./docs

  # Ingest several paths at once
  ragd ingest README.md ./docs ./runbooks`, strings.Join(document.SupportedExtensions(), ", ")),
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

// runIngest handles the ingest command
func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	splitter, err := chunker.New(a.cfg.Chunking)
	if err != nil {
		return err
	}

	svc, err := ingest.NewService(splitter, a.embed, a.store, a.logger)
	if err != nil {
		return err
	}

	results, err := svc.IngestAll(ctx, args)
	if err != nil {
		return err
	}

	var failed, chunks int
	for _, res := range results {
		if res.Err != nil {
			failed++
			fmt.Printf("FAIL %s: %v\n", res.Source, res.Err)
			continue
		}
		chunks += res.Chunks
		fmt.Printf("ok   %s (%d chunks)\n", res.Source, res.Chunks)
	}

	fmt.Printf("\nIngested %d document(s), %d chunk(s)\n", len(results)-failed, chunks)
	if failed > 0 {
		return fmt.Errorf("%d of %d document(s) failed", failed, len(results))
	}
	return nil
}
