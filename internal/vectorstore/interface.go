// Package vectorstore defines the interface for vector index operations.
package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for vector store operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrCollectionNotFound is returned when the collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrEmptyRecords indicates an upsert with no records.
	ErrEmptyRecords = errors.New("empty or nil records")

	// ErrDimensionMismatch is returned when a vector's dimension does not
	// match the collection's configured dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrSchemaConflict is returned when an existing collection was created
	// with a different vector dimension than the one configured.
	ErrSchemaConflict = errors.New("collection schema conflict")

	// ErrSourceNotFound is returned when deleting a source that has no
	// records in the collection.
	ErrSourceNotFound = errors.New("source not found")

	// ErrConnectionFailed indicates the backend could not be reached.
	ErrConnectionFailed = errors.New("failed to connect to vector store")
)

// CollectionInfo contains metadata about the chunk collection.
type CollectionInfo struct {
	// Name is the collection name.
	Name string `json:"name"`

	// PointCount is the number of records in the collection.
	PointCount int `json:"point_count"`

	// VectorSize is the dimensionality of vectors in this collection.
	VectorSize int `json:"vector_size"`
}

// Store is the interface for vector index operations.
//
// Implementations receive pre-computed vectors: embedding happens upstream,
// which keeps the store transport-focused and lets the same vectors flow to
// any backend. Callers are expected to use deterministic record IDs (see
// RecordID) so that re-upserting the same source replaces rather than
// duplicates.
//
// Implementations:
//   - ChromemStore: embedded chromem-go (default, no external service)
//   - QdrantStore: external Qdrant gRPC client
type Store interface {
	// EnsureCollection creates the configured collection if it does not
	// exist. If it exists with a different vector dimension, it returns
	// ErrSchemaConflict rather than silently reusing it.
	EnsureCollection(ctx context.Context) error

	// Upsert inserts or replaces records by ID. Every record's vector must
	// match the configured dimension; a single mismatch fails the whole
	// batch with ErrDimensionMismatch before anything is written.
	Upsert(ctx context.Context, records []Record) error

	// Search returns up to k records most similar to the query vector,
	// ordered by similarity score (highest first). Ties are broken by
	// source, then chunk index, so equal-score results are deterministic.
	//
	// Filters match record metadata exactly; only records matching ALL
	// conditions are returned.
	Search(ctx context.Context, vector []float32, k int, filters map[string]interface{}) ([]SearchResult, error)

	// DeleteSource removes all records belonging to a source document.
	// Returns ErrSourceNotFound if the source has no records.
	DeleteSource(ctx context.Context, source string) error

	// Info returns collection metadata including record count.
	Info(ctx context.Context) (*CollectionInfo, error)

	// Close closes the store and releases resources.
	Close() error
}
