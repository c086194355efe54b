package vectorstore

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// recordNamespace is the UUIDv5 namespace for deterministic record IDs.
var recordNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("ragd/vectorstore"))

// RecordID returns the deterministic ID for a chunk of a source document.
// The same source and index always produce the same ID, which makes
// re-ingestion an in-place replace instead of an append.
func RecordID(source string, index int) string {
	return uuid.NewSHA1(recordNamespace, []byte(fmt.Sprintf("%s#%d", source, index))).String()
}

// Record is a chunk with its embedding, ready for storage.
type Record struct {
	// ID is the unique identifier. Use RecordID for deterministic IDs.
	ID string

	// Source identifies the document this chunk came from.
	Source string

	// Index is the chunk's position within the source document.
	Index int

	// Text is the chunk content.
	Text string

	// Vector is the chunk's embedding.
	Vector []float32

	// Metadata contains additional key-value pairs for filtering.
	Metadata map[string]interface{}
}

// SearchResult is a scored record returned from similarity search.
type SearchResult struct {
	// ID is the record identifier.
	ID string

	// Source identifies the originating document.
	Source string

	// Index is the chunk's position within the source document.
	Index int

	// Text is the chunk content.
	Text string

	// Score is the similarity score (higher = more similar).
	Score float32

	// Metadata contains the record metadata.
	Metadata map[string]interface{}
}

// sortResults orders results by score descending. Ties are broken by source
// then chunk index so rankings are stable across backends and runs.
func sortResults(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Source != results[j].Source {
			return results[i].Source < results[j].Source
		}
		return results[i].Index < results[j].Index
	})
}
