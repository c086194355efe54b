package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

// deleteCmd removes a source document from the index
var deleteCmd = &cobra.Command{
	Use:   "delete <source>",
	Short: "Remove all chunks of a source document from the index",
	Long: `Delete every indexed chunk belonging to a source document. The source
is the path the document was ingested under, as shown by ingest output
and query citations.

Examples:
  # Remove one document
  ragd delete docs/runbook.md`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

// runDelete handles the delete command
func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	source := args[0]
	if err := a.store.DeleteSource(ctx, source); err != nil {
		if errors.Is(err, vectorstore.ErrSourceNotFound) {
			return fmt.Errorf("no indexed chunks for source %q", source)
		}
		return err
	}

	fmt.Printf("Deleted all chunks for %s\n", source)
	return nil
}
