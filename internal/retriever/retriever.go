// Package retriever answers queries against the vector index and assembles
// ranked context for downstream consumption.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

// tracer for OpenTelemetry instrumentation.
var tracer = otel.Tracer("ragd.retriever")

// Sentinel errors for retrieval.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyQuery is returned for an empty or whitespace-only query.
	ErrEmptyQuery = errors.New("query cannot be empty")
)

// contextSeparator joins chunks in the assembled context.
const contextSeparator = "\n\n"

// QueryEmbedder embeds a query into the index's vector space.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Searcher is the subset of vector store operations retrieval needs.
type Searcher interface {
	Search(ctx context.Context, vector []float32, k int, filters map[string]interface{}) ([]vectorstore.SearchResult, error)
}

// Config holds retrieval configuration.
type Config struct {
	// TopK is the number of candidates fetched from the index.
	// Default: 5
	TopK int `koanf:"top_k"`

	// ScoreThreshold drops candidates scoring below it. Zero disables the
	// cutoff and keeps everything the index returns.
	// Default: 0.25, applied only when the whole section is unset.
	ScoreThreshold float64 `koanf:"score_threshold"`

	// MaxContextChars caps the assembled context size. Truncation drops
	// the lowest-scoring chunks whole, never cutting mid-chunk.
	// Default: 8000
	MaxContextChars int `koanf:"max_context_chars"`
}

// ApplyDefaults sets default values. ScoreThreshold zero is a valid
// explicit setting (no cutoff), so it only defaults when the whole
// section is unset.
func (c *Config) ApplyDefaults() {
	if c.TopK == 0 && c.ScoreThreshold == 0 && c.MaxContextChars == 0 {
		c.ScoreThreshold = 0.25
	}
	if c.TopK == 0 {
		c.TopK = 5
	}
	if c.MaxContextChars == 0 {
		c.MaxContextChars = 8000
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive", ErrInvalidConfig)
	}
	if c.ScoreThreshold < 0 || c.ScoreThreshold > 1 {
		return fmt.Errorf("%w: score_threshold must be in [0, 1]", ErrInvalidConfig)
	}
	if c.MaxContextChars <= 0 {
		return fmt.Errorf("%w: max_context_chars must be positive", ErrInvalidConfig)
	}
	return nil
}

// Options override configuration for a single query. Zero values fall back
// to the service configuration.
type Options struct {
	// TopK overrides the candidate count.
	TopK int

	// ScoreThreshold overrides the score cutoff. Negative disables the
	// cutoff entirely.
	ScoreThreshold float64

	// Filters restrict candidates to records matching all conditions.
	Filters map[string]interface{}
}

// Result is the outcome of a retrieval query.
type Result struct {
	// Matches are the candidates that cleared the score threshold, ranked
	// by score.
	Matches []vectorstore.SearchResult

	// Context is the assembled text of the included matches, joined by
	// blank lines in rank order.
	Context string

	// Citations lists "source#index" for each match included in Context,
	// in rank order.
	Citations []string

	// NoMatch is true when nothing cleared the threshold. It is a normal
	// outcome, not an error: the caller decides how to present it.
	NoMatch bool
}

// Service retrieves relevant chunks for a query.
type Service struct {
	embedder QueryEmbedder
	searcher Searcher
	config   Config
	logger   *zap.Logger
}

// NewService creates a retrieval service.
func NewService(cfg Config, embedder QueryEmbedder, searcher Searcher, logger *zap.Logger) (*Service, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if searcher == nil {
		return nil, fmt.Errorf("%w: searcher is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		embedder: embedder,
		searcher: searcher,
		config:   cfg,
		logger:   logger.Named("retriever"),
	}, nil
}

// Retrieve embeds the query, searches the index and assembles context from
// the matches that clear the score threshold.
func (s *Service) Retrieve(ctx context.Context, query string, opts Options) (*Result, error) {
	ctx, span := tracer.Start(ctx, "Retriever.Retrieve")
	defer span.End()

	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	topK := s.config.TopK
	if opts.TopK > 0 {
		topK = opts.TopK
	}
	threshold := s.config.ScoreThreshold
	if opts.ScoreThreshold > 0 {
		threshold = opts.ScoreThreshold
	} else if opts.ScoreThreshold < 0 {
		threshold = 0
	}

	span.SetAttributes(
		attribute.Int("top_k", topK),
		attribute.Float64("score_threshold", threshold),
	)

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	candidates, err := s.searcher.Search(ctx, vector, topK, opts.Filters)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("searching index: %w", err)
	}

	// Threshold zero keeps every candidate, including any with negative
	// similarity, so the cutoff is only applied when one is set.
	matches := make([]vectorstore.SearchResult, 0, len(candidates))
	for _, c := range candidates {
		if threshold > 0 && float64(c.Score) < threshold {
			continue
		}
		matches = append(matches, c)
	}

	span.SetAttributes(
		attribute.Int("candidates", len(candidates)),
		attribute.Int("matches", len(matches)),
	)

	if len(matches) == 0 {
		span.SetStatus(codes.Ok, "no match")
		s.logger.Debug("no matches above threshold",
			zap.Int("candidates", len(candidates)),
			zap.Float64("threshold", threshold),
		)
		return &Result{NoMatch: true}, nil
	}

	result := &Result{Matches: matches}
	result.Context, result.Citations = assembleContext(matches, s.config.MaxContextChars)

	span.SetAttributes(attribute.Int("context_chars", len(result.Context)))
	span.SetStatus(codes.Ok, "success")

	s.logger.Debug("retrieved context",
		zap.Int("matches", len(matches)),
		zap.Int("context_chars", len(result.Context)),
	)

	return result, nil
}

// assembleContext joins match texts in rank order up to the character
// budget. Assembly stops at the first chunk that no longer fits, so the
// context is always a descending-score prefix of the matches: truncation
// drops the lowest-scoring chunks, never a higher-scoring one, and never
// cuts mid-chunk.
func assembleContext(matches []vectorstore.SearchResult, maxChars int) (string, []string) {
	var b strings.Builder
	citations := make([]string, 0, len(matches))

	for _, m := range matches {
		cost := len(m.Text)
		if b.Len() > 0 {
			cost += len(contextSeparator)
		}
		if b.Len()+cost > maxChars {
			break
		}
		if b.Len() > 0 {
			b.WriteString(contextSeparator)
		}
		b.WriteString(m.Text)
		citations = append(citations, fmt.Sprintf("%s#%d", m.Source, m.Index))
	}

	return b.String(), citations
}
