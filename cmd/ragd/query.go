package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/ragd/internal/retriever"
)

var (
	queryTopK      int
	queryThreshold float64
	querySource    string
	queryVerbose   bool
)

// queryCmd retrieves relevant chunks for a question
var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Retrieve the most relevant passages for a question",
	Long: `Embed the question, search the vector index and print the assembled
context followed by its citations.

Examples:
  # Ask with the configured defaults
  ragd query "how does checkpoint recovery work?"

  # Widen the candidate set and lower the score cutoff
  ragd query --k 10 --threshold 0.1 "rate limiting"

  # Restrict matches to a single document
  ragd query --source docs/runbook.md "rollback steps"`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVar(&queryTopK, "k", 0, "number of candidates to retrieve (default from config)")
	queryCmd.Flags().Float64Var(&queryThreshold, "threshold", 0, "minimum similarity score; negative disables the cutoff (default from config)")
	queryCmd.Flags().StringVar(&querySource, "source", "", "only match chunks from this source document")
	queryCmd.Flags().BoolVar(&queryVerbose, "scores", false, "print per-match scores")
}

// runQuery handles the query command
func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	svc, err := retriever.NewService(a.cfg.Retrieval, a.embed, a.store, a.logger)
	if err != nil {
		return err
	}

	opts := retriever.Options{
		TopK:           queryTopK,
		ScoreThreshold: queryThreshold,
	}
	if querySource != "" {
		opts.Filters = map[string]interface{}{"source": querySource}
	}

	result, err := svc.Retrieve(ctx, args[0], opts)
	if err != nil {
		return err
	}

	if result.NoMatch {
		fmt.Println("No relevant passages found.")
		return nil
	}

	fmt.Println(result.Context)
	fmt.Println()
	fmt.Println("Sources:")
	for i, citation := range result.Citations {
		fmt.Printf("  [%d] %s\n", i+1, citation)
	}

	// Matches can be a superset of the citations when the context budget
	// drops a chunk, so scores are reported separately.
	if queryVerbose {
		fmt.Println()
		fmt.Println("Matches:")
		for _, m := range result.Matches {
			fmt.Printf("  %s#%d  %.3f\n", m.Source, m.Index, m.Score)
		}
	}

	return nil
}
