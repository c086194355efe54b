// Package ingest orchestrates the document-to-index pipeline: load, chunk,
// embed, upsert.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/chunker"
	"github.com/fyrsmithlabs/ragd/internal/document"
	"github.com/fyrsmithlabs/ragd/internal/ignore"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

// tracer for OpenTelemetry instrumentation.
var tracer = otel.Tracer("ragd.ingest")

// ErrInvalidConfig indicates a missing dependency.
var ErrInvalidConfig = errors.New("invalid configuration")

// Embedder generates embeddings for chunk texts.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Store is the subset of vector store operations ingestion needs.
type Store interface {
	EnsureCollection(ctx context.Context) error
	Upsert(ctx context.Context, records []vectorstore.Record) error
	DeleteSource(ctx context.Context, source string) error
}

// Result reports the outcome of ingesting one document.
type Result struct {
	// Source identifies the document.
	Source string

	// Chunks is the number of chunks indexed.
	Chunks int

	// Err is the per-document failure, nil on success. One document
	// failing does not abort the rest of a batch.
	Err error
}

// Service runs the ingestion pipeline.
type Service struct {
	splitter *chunker.Splitter
	embedder Embedder
	store    Store
	logger   *zap.Logger
}

// NewService creates an ingestion service.
func NewService(splitter *chunker.Splitter, embedder Embedder, store Store, logger *zap.Logger) (*Service, error) {
	if splitter == nil {
		return nil, fmt.Errorf("%w: splitter is required", ErrInvalidConfig)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		splitter: splitter,
		embedder: embedder,
		store:    store,
		logger:   logger.Named("ingest"),
	}, nil
}

// IngestDocument chunks, embeds and indexes a single document.
//
// The document's chunks are embedded before anything is written, so an
// embedding failure leaves the index untouched. Existing records for the
// same source are removed first, which makes re-ingestion replace stale
// chunks even when the document shrank.
func (s *Service) IngestDocument(ctx context.Context, doc *document.Document) (int, error) {
	ctx, span := tracer.Start(ctx, "Ingest.IngestDocument")
	defer span.End()

	span.SetAttributes(attribute.String("source", doc.Source))

	chunks := s.splitter.Split(doc.Content, doc.Source, doc.Metadata)
	if len(chunks) == 0 {
		span.SetStatus(codes.Ok, "no chunks")
		return 0, nil
	}

	span.SetAttributes(attribute.Int("chunk_count", len(chunks)))

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("embedding %s: %w", doc.Source, err)
	}

	records := make([]vectorstore.Record, len(chunks))
	for i, chunk := range chunks {
		records[i] = vectorstore.Record{
			ID:       vectorstore.RecordID(doc.Source, chunk.Index),
			Source:   doc.Source,
			Index:    chunk.Index,
			Text:     chunk.Text,
			Vector:   vectors[i],
			Metadata: chunk.Metadata,
		}
	}

	// Drop stale records first: deterministic IDs overwrite in place, but a
	// shrinking document would otherwise leave orphaned tail chunks.
	if err := s.store.DeleteSource(ctx, doc.Source); err != nil && !errors.Is(err, vectorstore.ErrSourceNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("replacing %s: %w", doc.Source, err)
	}

	if err := s.store.Upsert(ctx, records); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("indexing %s: %w", doc.Source, err)
	}

	span.SetStatus(codes.Ok, "success")

	s.logger.Info("ingested document",
		zap.String("source", doc.Source),
		zap.Int("chunks", len(records)),
	)

	return len(records), nil
}

// IngestFile loads and ingests a single file.
func (s *Service) IngestFile(ctx context.Context, path string) (int, error) {
	doc, err := document.Load(path)
	if err != nil {
		return 0, err
	}
	return s.IngestDocument(ctx, doc)
}

// IngestPath ingests a file, or every supported file under a directory.
// Unsupported files inside a directory are skipped silently; naming an
// unsupported file explicitly is an error. A .ragdignore or .gitignore at
// the directory root excludes the paths it names.
func (s *Service) IngestPath(ctx context.Context, path string) ([]Result, error) {
	ctx, span := tracer.Start(ctx, "Ingest.IngestPath")
	defer span.End()

	span.SetAttributes(attribute.String("path", path))

	info, err := os.Stat(path)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	if err := s.store.EnsureCollection(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if !info.IsDir() {
		chunks, err := s.IngestFile(ctx, path)
		return []Result{{Source: path, Chunks: chunks, Err: err}}, nil
	}

	matcher, err := ignore.Load(path)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("loading ignore patterns for %s: %w", path, err)
	}

	var results []Result
	walkErr := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(path, p)
		if relErr != nil {
			return relErr
		}
		if d.IsDir() {
			// Hidden directories like .git are never worth indexing.
			if name := d.Name(); name != "." && len(name) > 1 && name[0] == '.' {
				return filepath.SkipDir
			}
			if rel != "." && matcher.Match(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if matcher.Match(rel) {
			return nil
		}
		if !document.Supported(p) {
			return nil
		}

		chunks, err := s.IngestFile(ctx, p)
		results = append(results, Result{Source: p, Chunks: chunks, Err: err})
		return nil
	})
	if walkErr != nil {
		span.RecordError(walkErr)
		span.SetStatus(codes.Error, walkErr.Error())
		return results, fmt.Errorf("walking %s: %w", path, walkErr)
	}

	span.SetAttributes(attribute.Int("documents", len(results)))
	span.SetStatus(codes.Ok, "success")
	return results, nil
}

// IngestAll ingests multiple paths and flattens the results.
func (s *Service) IngestAll(ctx context.Context, paths []string) ([]Result, error) {
	var results []Result
	for _, path := range paths {
		pathResults, err := s.IngestPath(ctx, path)
		results = append(results, pathResults...)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}
