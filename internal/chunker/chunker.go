// Package chunker splits document text into overlapping windows for embedding.
package chunker

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrInvalidConfig indicates invalid chunking parameters.
	ErrInvalidConfig = errors.New("invalid chunking configuration")
)

// Chunk is a bounded slice of a document's text, the unit of embedding
// and retrieval. Chunks are immutable once produced.
type Chunk struct {
	// Text is the chunk content. Never empty.
	Text string

	// Index is the 0-based position of the chunk within its document.
	Index int

	// Source identifies the originating document.
	Source string

	// Metadata carries additional key-value pairs (page number, content type).
	Metadata map[string]interface{}
}

// Config holds chunking parameters.
type Config struct {
	// Size is the maximum chunk length in runes.
	// Default: 1000
	Size int `koanf:"size"`

	// Overlap is the number of runes shared between consecutive chunks.
	// Must be smaller than Size; zero means non-overlapping windows.
	// Default: 200, applied only together with the Size default.
	Overlap int `koanf:"overlap"`

	// Normalize enables whitespace normalization before splitting.
	// The normalization is fixed for the process lifetime; see Normalize.
	Normalize bool `koanf:"normalize"`
}

// ApplyDefaults sets default values. Overlap zero is a valid explicit
// setting (non-overlapping windows), so it only defaults when Size is
// unset too.
func (c *Config) ApplyDefaults() {
	if c.Size == 0 {
		c.Size = 1000
		if c.Overlap == 0 {
			c.Overlap = 200
		}
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, c.Size)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("%w: overlap cannot be negative, got %d", ErrInvalidConfig, c.Overlap)
	}
	if c.Overlap >= c.Size {
		return fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", ErrInvalidConfig, c.Overlap, c.Size)
	}
	return nil
}

// Splitter produces overlapping chunks from document text.
//
// Splitting is purely offset-based on runes: every chunk except possibly
// the last has exactly Size runes, and consecutive chunks from the same
// document share exactly Overlap runes. Split is a pure function, so the
// produced sequence is restartable by calling it again.
type Splitter struct {
	config Config
}

// New creates a Splitter, failing fast on invalid parameters.
func New(cfg Config) (*Splitter, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Splitter{config: cfg}, nil
}

// Size returns the configured chunk size in runes.
func (s *Splitter) Size() int { return s.config.Size }

// Overlap returns the configured overlap in runes.
func (s *Splitter) Overlap() int { return s.config.Overlap }

// Split walks text in a sliding window of Size runes, advancing by
// Size-Overlap runes per step. The final window may be shorter. Empty
// or whitespace-only input yields an empty slice, not an error.
//
// Each chunk's metadata is a copy of the supplied metadata plus
// chunk_index and total_chunks.
func (s *Splitter) Split(text, source string, metadata map[string]interface{}) []Chunk {
	if s.config.Normalize {
		text = Normalize(text)
	}
	if strings.TrimSpace(text) == "" {
		return []Chunk{}
	}

	runes := []rune(text)
	step := s.config.Size - s.config.Overlap

	var chunks []Chunk
	for start := 0; start < len(runes); start += step {
		end := start + s.config.Size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, Chunk{
			Text:   string(runes[start:end]),
			Index:  len(chunks),
			Source: source,
		})
		if end == len(runes) {
			break
		}
	}

	for i := range chunks {
		md := make(map[string]interface{}, len(metadata)+2)
		for k, v := range metadata {
			md[k] = v
		}
		md["chunk_index"] = chunks[i].Index
		md["total_chunks"] = len(chunks)
		chunks[i].Metadata = md
	}

	return chunks
}

var (
	blankLineRuns = regexp.MustCompile(`\n{2,}`)
	inlineSpaces  = regexp.MustCompile(`[ \t]+`)
)

// Normalize collapses runs of blank lines to a single paragraph break and
// runs of spaces and tabs to a single space, then trims the result.
// The same normalization feeds the embedding cache key, so it must stay
// consistent for the process lifetime.
func Normalize(text string) string {
	text = blankLineRuns.ReplaceAllString(text, "\n\n")
	text = inlineSpaces.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
