package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const teiHTTPTimeout = 60 * time.Second

// TEIClient generates embeddings via a Text Embeddings Inference server
// (or any OpenAI-compatible /embed endpoint fronting one).
type TEIClient struct {
	baseURL   string
	model     string
	apiKey    string
	dimension int
	client    *http.Client
}

// NewTEIClient creates a TEI provider from the configuration.
func NewTEIClient(cfg ProviderConfig) (*TEIClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}

	dim := cfg.VectorSize
	if dim == 0 {
		dim = detectDimension(cfg.Model)
	}

	return &TEIClient{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		model:     cfg.Model,
		apiKey:    cfg.APIKey.Value(),
		dimension: dim,
		client:    &http.Client{Timeout: teiHTTPTimeout},
	}, nil
}

// teiRequest is the request body for the TEI embed endpoint.
type teiRequest struct {
	Inputs   interface{} `json:"inputs"`
	Truncate bool        `json:"truncate"`
}

// EmbedDocuments generates embeddings for multiple texts.
func (c *TEIClient) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}

	vectors, err := c.embed(ctx, teiRequest{Inputs: texts, Truncate: true})
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrRequestFailed, len(vectors), len(texts))
	}
	return vectors, nil
}

// EmbedQuery generates an embedding for a single query.
func (c *TEIClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}

	vectors, err := c.embed(ctx, teiRequest{Inputs: text, Truncate: true})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrRequestFailed)
	}
	return vectors[0], nil
}

// Dimension returns the embedding dimension for the configured model.
func (c *TEIClient) Dimension() int {
	return c.dimension
}

// Close is a no-op for TEI since it uses plain HTTP.
func (c *TEIClient) Close() error {
	return nil
}

func (c *TEIClient) embed(ctx context.Context, req teiRequest) ([][]float32, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyRequestError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, classifyStatus(resp.StatusCode, string(respBody))
	}

	var vectors [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrRequestFailed, err)
	}
	return vectors, nil
}

// classifyRequestError maps transport-level failures to the retry taxonomy.
// Timeouts and connection failures are transient; context cancellation is
// surfaced untouched so callers can distinguish it from service trouble.
func classifyRequestError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrTransient, err)
}

// classifyStatus maps HTTP statuses to the retry taxonomy: 429 and 5xx are
// transient, everything else is permanent.
func classifyStatus(status int, body string) error {
	body = strings.TrimSpace(body)
	if status == http.StatusTooManyRequests || status >= 500 {
		return fmt.Errorf("%w: status %d: %s", ErrTransient, status, body)
	}
	return fmt.Errorf("%w: status %d: %s", ErrRequestFailed, status, body)
}

var _ Provider = (*TEIClient)(nil)
