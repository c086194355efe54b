package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	ollamaDefaultBaseURL = "http://localhost:11434"
	ollamaEmbedEndpoint  = "/api/embed"
	ollamaHTTPTimeout    = 60 * time.Second
)

// OllamaClient generates embeddings via a local Ollama server.
type OllamaClient struct {
	baseURL   string
	model     string
	dimension int
	client    *http.Client
}

// NewOllamaClient creates an Ollama provider from the configuration.
func NewOllamaClient(cfg ProviderConfig) (*OllamaClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model required for ollama provider", ErrInvalidConfig)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = ollamaDefaultBaseURL
	}

	dim := cfg.VectorSize
	if dim == 0 {
		dim = detectDimension(cfg.Model)
	}

	return &OllamaClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		model:     cfg.Model,
		dimension: dim,
		client:    &http.Client{Timeout: ollamaHTTPTimeout},
	}, nil
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error"`
}

// EmbedDocuments generates embeddings for multiple texts.
func (c *OllamaClient) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}

	body, err := json.Marshal(ollamaEmbedRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ollamaEmbedEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyRequestError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, classifyStatus(resp.StatusCode, string(respBody))
	}

	var out ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrRequestFailed, err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrRequestFailed, out.Error)
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrRequestFailed, len(out.Embeddings), len(texts))
	}
	return out.Embeddings, nil
}

// EmbedQuery generates an embedding for a single query.
func (c *OllamaClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	vectors, err := c.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Dimension returns the embedding dimension for the configured model.
func (c *OllamaClient) Dimension() int {
	return c.dimension
}

// Close is a no-op for Ollama since it uses plain HTTP.
func (c *OllamaClient) Close() error {
	return nil
}

var _ Provider = (*OllamaClient)(nil)
