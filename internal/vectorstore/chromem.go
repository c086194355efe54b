// Package vectorstore provides vector index implementations.
package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// chromemTracer for OpenTelemetry instrumentation.
var chromemTracer = otel.Tracer("ragd.vectorstore.chromem")

// chromemMetaFile records the vector dimension each collection was created
// with. chromem-go itself does not persist this, so without it a dimension
// change between runs would only surface as a confusing query error.
const chromemMetaFile = "collections.json"

// ChromemConfig holds configuration for the chromem-go embedded vector index.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	// Default: "~/.local/share/ragd/vectorstore"
	Path string `koanf:"path"`

	// Compress enables gzip compression for stored data.
	Compress bool `koanf:"compress"`

	// Collection is the collection name for chunk records.
	// Default: "ragd_chunks"
	Collection string `koanf:"collection"`

	// VectorSize is the expected embedding dimension.
	// Must match the embedder's output dimension.
	// Default: 384
	VectorSize int `koanf:"vector_size"`
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "~/.local/share/ragd/vectorstore"
	}
	if c.Collection == "" {
		c.Collection = "ragd_chunks"
	}
	if c.VectorSize == 0 {
		c.VectorSize = 384
	}
}

// Validate validates the configuration.
func (c ChromemConfig) Validate() error {
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	return ValidateCollectionName(c.Collection)
}

// ChromemStore implements the Store interface using chromem-go.
//
// chromem-go is an embeddable vector database in pure Go with automatic
// persistence to disk, so the default setup needs no external service.
type ChromemStore struct {
	db     *chromem.DB
	path   string
	config ChromemConfig
	logger *zap.Logger
}

// NewChromemStore creates a ChromemStore with the given configuration.
func NewChromemStore(config ChromemConfig, logger *zap.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	expandedPath, err := expandChromemPath(config.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}

	if err := os.MkdirAll(expandedPath, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", expandedPath, err)
	}

	db, err := chromem.NewPersistentDB(expandedPath, config.Compress)
	if err != nil {
		return nil, fmt.Errorf("creating chromem DB: %w", err)
	}

	store := &ChromemStore{
		db:     db,
		path:   expandedPath,
		config: config,
		logger: logger.Named("chromem"),
	}

	logger.Info("chromem store initialized",
		zap.String("path", expandedPath),
		zap.Bool("compress", config.Compress),
		zap.Int("vector_size", config.VectorSize),
		zap.String("collection", config.Collection),
	)

	return store, nil
}

// expandChromemPath expands ~ to the home directory.
func expandChromemPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// embeddingFunc returns a chromem.EmbeddingFunc that always fails. All
// vectors are computed upstream and supplied on the records, so chromem must
// never embed on its own (when passed nil it silently installs an OpenAI
// default).
func (s *ChromemStore) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("vectors must be supplied by the caller")
	}
}

// loadMeta reads the collection dimension sidecar.
func (s *ChromemStore) loadMeta() (map[string]int, error) {
	meta := make(map[string]int)
	data, err := os.ReadFile(filepath.Join(s.path, chromemMetaFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return meta, nil
		}
		return nil, fmt.Errorf("reading collection metadata: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parsing collection metadata: %w", err)
	}
	return meta, nil
}

// saveMeta writes the collection dimension sidecar.
func (s *ChromemStore) saveMeta(meta map[string]int) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encoding collection metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.path, chromemMetaFile), data, 0o644); err != nil {
		return fmt.Errorf("writing collection metadata: %w", err)
	}
	return nil
}

// EnsureCollection creates the collection if needed and verifies that an
// existing collection matches the configured vector dimension.
func (s *ChromemStore) EnsureCollection(ctx context.Context) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.EnsureCollection")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", s.config.Collection),
		attribute.Int("vector_size", s.config.VectorSize),
	)

	meta, err := s.loadMeta()
	if err != nil {
		span.RecordError(err)
		return err
	}

	if existing, ok := meta[s.config.Collection]; ok && existing != s.config.VectorSize {
		err := fmt.Errorf("%w: collection %q holds %d-dimensional vectors, configured for %d",
			ErrSchemaConflict, s.config.Collection, existing, s.config.VectorSize)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if _, err := s.db.GetOrCreateCollection(s.config.Collection, nil, s.embeddingFunc()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("getting/creating collection %s: %w", s.config.Collection, err)
	}

	meta[s.config.Collection] = s.config.VectorSize
	if err := s.saveMeta(meta); err != nil {
		span.RecordError(err)
		return err
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// collection returns the configured collection, or ErrCollectionNotFound.
func (s *ChromemStore) collection() (*chromem.Collection, error) {
	collection := s.db.GetCollection(s.config.Collection, s.embeddingFunc())
	if collection == nil {
		return nil, ErrCollectionNotFound
	}
	return collection, nil
}

// Upsert inserts or replaces records by ID.
func (s *ChromemStore) Upsert(ctx context.Context, records []Record) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Upsert")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", s.config.Collection),
		attribute.Int("record_count", len(records)),
	)

	if len(records) == 0 {
		return ErrEmptyRecords
	}

	// Validate the whole batch before writing anything.
	for i, rec := range records {
		if len(rec.Vector) != s.config.VectorSize {
			err := fmt.Errorf("%w: record %d (%s#%d) has dimension %d, collection expects %d",
				ErrDimensionMismatch, i, rec.Source, rec.Index, len(rec.Vector), s.config.VectorSize)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	if err := s.EnsureCollection(ctx); err != nil {
		span.RecordError(err)
		return err
	}

	collection, err := s.collection()
	if err != nil {
		span.RecordError(err)
		return err
	}

	docs := make([]chromem.Document, len(records))
	for i, rec := range records {
		metadata := convertMetadataToString(rec.Metadata)
		if metadata == nil {
			metadata = make(map[string]string, 2)
		}
		metadata["source"] = rec.Source
		metadata["chunk_index"] = strconv.Itoa(rec.Index)

		docs[i] = chromem.Document{
			ID:        rec.ID,
			Content:   rec.Text,
			Metadata:  metadata,
			Embedding: rec.Vector,
		}
	}

	// Concurrency of 1 since vectors are already computed.
	if err := collection.AddDocuments(ctx, docs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("adding records: %w", err)
	}

	span.SetStatus(codes.Ok, "success")

	s.logger.Debug("upserted records",
		zap.String("collection", s.config.Collection),
		zap.Int("count", len(records)),
	)

	return nil
}

// Search returns up to k records most similar to the query vector.
func (s *ChromemStore) Search(ctx context.Context, vector []float32, k int, filters map[string]interface{}) ([]SearchResult, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Search")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", s.config.Collection),
		attribute.Int("k", k),
	)

	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if len(vector) != s.config.VectorSize {
		return nil, fmt.Errorf("%w: query has dimension %d, collection expects %d",
			ErrDimensionMismatch, len(vector), s.config.VectorSize)
	}

	collection, err := s.collection()
	if err != nil {
		span.SetStatus(codes.Error, "collection not found")
		return nil, err
	}

	// chromem requires nResults <= document count.
	docCount := collection.Count()
	if docCount == 0 {
		return []SearchResult{}, nil
	}
	if k > docCount {
		k = docCount
	}

	results, err := collection.QueryEmbedding(ctx, vector, k, convertMetadataToString(filters), nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", s.config.Collection, err)
	}

	searchResults := make([]SearchResult, len(results))
	for i, r := range results {
		searchResults[i] = chromemResult(r)
	}
	sortResults(searchResults)

	span.SetAttributes(attribute.Int("results_count", len(searchResults)))
	span.SetStatus(codes.Ok, "success")

	s.logger.Debug("searched collection",
		zap.String("collection", s.config.Collection),
		zap.Int("k", k),
		zap.Int("results", len(searchResults)),
	)

	return searchResults, nil
}

// chromemResult converts a chromem query result to a SearchResult.
func chromemResult(r chromem.Result) SearchResult {
	result := SearchResult{
		ID:       r.ID,
		Text:     r.Content,
		Score:    r.Similarity,
		Metadata: convertMetadataFromString(r.Metadata),
	}
	result.Source = r.Metadata["source"]
	if idx, err := strconv.Atoi(r.Metadata["chunk_index"]); err == nil {
		result.Index = idx
	}
	return result
}

// DeleteSource removes all records belonging to a source document.
func (s *ChromemStore) DeleteSource(ctx context.Context, source string) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.DeleteSource")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", s.config.Collection),
		attribute.String("source", source),
	)

	collection, err := s.collection()
	if err != nil {
		span.SetStatus(codes.Error, "collection not found")
		return err
	}

	// chromem's Delete doesn't report how many documents matched, so the
	// count delta is the only way to distinguish "deleted" from "no such
	// source".
	before := collection.Count()

	if err := collection.Delete(ctx, map[string]string{"source": source}, nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting source %s: %w", source, err)
	}

	deleted := before - collection.Count()
	if deleted == 0 {
		span.SetStatus(codes.Error, "source not found")
		return fmt.Errorf("%w: %s", ErrSourceNotFound, source)
	}

	span.SetAttributes(attribute.Int("records_deleted", deleted))
	span.SetStatus(codes.Ok, "success")

	s.logger.Debug("deleted source",
		zap.String("source", source),
		zap.Int("count", deleted),
	)

	return nil
}

// Info returns collection metadata.
func (s *ChromemStore) Info(ctx context.Context) (*CollectionInfo, error) {
	_, span := chromemTracer.Start(ctx, "ChromemStore.Info")
	defer span.End()

	collection, err := s.collection()
	if err != nil {
		span.SetStatus(codes.Error, "collection not found")
		return nil, err
	}

	info := &CollectionInfo{
		Name:       s.config.Collection,
		PointCount: collection.Count(),
		VectorSize: s.config.VectorSize,
	}

	span.SetAttributes(attribute.Int("point_count", info.PointCount))
	span.SetStatus(codes.Ok, "success")
	return info, nil
}

// Close closes the ChromemStore.
// chromem-go persists on every write, so there is nothing to flush.
func (s *ChromemStore) Close() error {
	s.logger.Info("chromem store closed")
	return nil
}

// convertMetadataToString converts map[string]interface{} to map[string]string.
func convertMetadataToString(metadata map[string]interface{}) map[string]string {
	if metadata == nil {
		return nil
	}

	result := make(map[string]string, len(metadata))
	for k, v := range metadata {
		switch val := v.(type) {
		case string:
			result[k] = val
		case int:
			result[k] = strconv.Itoa(val)
		case int64:
			result[k] = strconv.FormatInt(val, 10)
		case float64:
			result[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			result[k] = strconv.FormatBool(val)
		default:
			result[k] = fmt.Sprintf("%v", val)
		}
	}
	return result
}

// convertMetadataFromString converts map[string]string back to map[string]interface{}.
func convertMetadataFromString(metadata map[string]string) map[string]interface{} {
	if metadata == nil {
		return nil
	}

	result := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		result[k] = v
	}
	return result
}

// Ensure ChromemStore implements Store interface.
var _ Store = (*ChromemStore)(nil)
