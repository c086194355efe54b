package retriever_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/retriever"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

type fakeQueryEmbedder struct {
	fail bool
}

func (f *fakeQueryEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if f.fail {
		return nil, errors.New("embedding service down")
	}
	return []float32{1, 0, 0}, nil
}

type fakeSearcher struct {
	results []vectorstore.SearchResult
	gotK    int
	filters map[string]interface{}
	fail    bool
}

func (f *fakeSearcher) Search(ctx context.Context, vector []float32, k int, filters map[string]interface{}) ([]vectorstore.SearchResult, error) {
	f.gotK = k
	f.filters = filters
	if f.fail {
		return nil, errors.New("store down")
	}
	if len(f.results) > k {
		return f.results[:k], nil
	}
	return f.results, nil
}

func newTestService(t *testing.T, cfg retriever.Config, searcher *fakeSearcher) *retriever.Service {
	t.Helper()
	svc, err := retriever.NewService(cfg, &fakeQueryEmbedder{}, searcher, zap.NewNop())
	require.NoError(t, err)
	return svc
}

func rankedResults() []vectorstore.SearchResult {
	return []vectorstore.SearchResult{
		{Source: "a.md", Index: 0, Text: "most relevant", Score: 0.92},
		{Source: "b.md", Index: 3, Text: "quite relevant", Score: 0.81},
		{Source: "a.md", Index: 5, Text: "barely related", Score: 0.31},
		{Source: "c.md", Index: 1, Text: "noise", Score: 0.12},
	}
}

func TestNewService_Validation(t *testing.T) {
	_, err := retriever.NewService(retriever.Config{}, nil, &fakeSearcher{}, zap.NewNop())
	require.ErrorIs(t, err, retriever.ErrInvalidConfig)

	_, err = retriever.NewService(retriever.Config{}, &fakeQueryEmbedder{}, nil, zap.NewNop())
	require.ErrorIs(t, err, retriever.ErrInvalidConfig)

	_, err = retriever.NewService(retriever.Config{ScoreThreshold: 1.5}, &fakeQueryEmbedder{}, &fakeSearcher{}, zap.NewNop())
	require.ErrorIs(t, err, retriever.ErrInvalidConfig)
}

func TestRetrieve_ThresholdFiltersMatches(t *testing.T) {
	searcher := &fakeSearcher{results: rankedResults()}
	svc := newTestService(t, retriever.Config{TopK: 10, ScoreThreshold: 0.3}, searcher)

	result, err := svc.Retrieve(context.Background(), "what is relevant?", retriever.Options{})
	require.NoError(t, err)

	require.Len(t, result.Matches, 3, "0.12 score must be dropped")
	assert.False(t, result.NoMatch)
	assert.Equal(t, 10, searcher.gotK)
	assert.Equal(t, []string{"a.md#0", "b.md#3", "a.md#5"}, result.Citations)
	assert.Equal(t, "most relevant\n\nquite relevant\n\nbarely related", result.Context)
}

func TestRetrieve_NoMatchIsNotAnError(t *testing.T) {
	searcher := &fakeSearcher{results: rankedResults()}
	svc := newTestService(t, retriever.Config{ScoreThreshold: 0.99}, searcher)

	result, err := svc.Retrieve(context.Background(), "unrelated question", retriever.Options{})
	require.NoError(t, err)

	assert.True(t, result.NoMatch)
	assert.Empty(t, result.Matches)
	assert.Empty(t, result.Context)
}

func TestRetrieve_EmptyIndex(t *testing.T) {
	svc := newTestService(t, retriever.Config{}, &fakeSearcher{})

	result, err := svc.Retrieve(context.Background(), "anything", retriever.Options{})
	require.NoError(t, err)
	assert.True(t, result.NoMatch)
}

func TestRetrieve_EmptyQuery(t *testing.T) {
	svc := newTestService(t, retriever.Config{}, &fakeSearcher{})

	_, err := svc.Retrieve(context.Background(), "   ", retriever.Options{})
	require.ErrorIs(t, err, retriever.ErrEmptyQuery)
}

func TestRetrieve_OptionsOverrideConfig(t *testing.T) {
	searcher := &fakeSearcher{results: rankedResults()}
	svc := newTestService(t, retriever.Config{TopK: 10, ScoreThreshold: 0.3}, searcher)

	result, err := svc.Retrieve(context.Background(), "query", retriever.Options{
		TopK:           2,
		ScoreThreshold: 0.9,
		Filters:        map[string]interface{}{"source": "a.md"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, searcher.gotK)
	assert.Equal(t, map[string]interface{}{"source": "a.md"}, searcher.filters)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, "most relevant", result.Matches[0].Text)
}

func TestRetrieve_NegativeThresholdDisablesCutoff(t *testing.T) {
	searcher := &fakeSearcher{results: rankedResults()}
	svc := newTestService(t, retriever.Config{TopK: 10, ScoreThreshold: 0.5}, searcher)

	result, err := svc.Retrieve(context.Background(), "query", retriever.Options{ScoreThreshold: -1})
	require.NoError(t, err)
	assert.Len(t, result.Matches, 4)
}

func TestRetrieve_ZeroConfigThresholdKeepsEverything(t *testing.T) {
	searcher := &fakeSearcher{results: rankedResults()}
	svc := newTestService(t, retriever.Config{TopK: 10, ScoreThreshold: 0, MaxContextChars: 8000}, searcher)

	result, err := svc.Retrieve(context.Background(), "query", retriever.Options{})
	require.NoError(t, err)

	// An explicit zero threshold disables the cutoff; the 0.25 default
	// applies only when the whole configuration is unset.
	assert.Len(t, result.Matches, 4)
	assert.Contains(t, result.Citations, "c.md#1")
}

func TestRetrieve_DefaultThresholdWhenUnconfigured(t *testing.T) {
	searcher := &fakeSearcher{results: rankedResults()}
	svc := newTestService(t, retriever.Config{}, searcher)

	result, err := svc.Retrieve(context.Background(), "query", retriever.Options{})
	require.NoError(t, err)

	// Zero-value config still gets the 0.25 default cutoff.
	require.Len(t, result.Matches, 3)
	assert.NotContains(t, result.Citations, "c.md#1")
}

func TestRetrieve_ContextBudgetKeepsScorePrefix(t *testing.T) {
	big := strings.Repeat("x", 120)
	searcher := &fakeSearcher{results: []vectorstore.SearchResult{
		{Source: "a.md", Index: 0, Text: "short one", Score: 0.9},
		{Source: "b.md", Index: 0, Text: big, Score: 0.8},
		{Source: "c.md", Index: 0, Text: "short two", Score: 0.7},
	}}
	svc := newTestService(t, retriever.Config{TopK: 10, ScoreThreshold: 0.1, MaxContextChars: 30}, searcher)

	result, err := svc.Retrieve(context.Background(), "query", retriever.Options{})
	require.NoError(t, err)

	// Assembly stops at the first chunk over budget: a lower-scoring chunk
	// must never displace a higher-scoring one, even when it would fit.
	assert.Equal(t, "short one", result.Context)
	assert.Equal(t, []string{"a.md#0"}, result.Citations)
	// Matches still report everything above the threshold.
	assert.Len(t, result.Matches, 3)
	assert.NotContains(t, result.Context, "x")
	assert.NotContains(t, result.Context, "short two")
}

func TestRetrieve_EmbeddingFailure(t *testing.T) {
	svc, err := retriever.NewService(retriever.Config{}, &fakeQueryEmbedder{fail: true}, &fakeSearcher{}, zap.NewNop())
	require.NoError(t, err)

	_, err = svc.Retrieve(context.Background(), "query", retriever.Options{})
	require.Error(t, err)
}

func TestRetrieve_SearchFailure(t *testing.T) {
	svc := newTestService(t, retriever.Config{}, &fakeSearcher{fail: true})

	_, err := svc.Retrieve(context.Background(), "query", retriever.Options{})
	require.Error(t, err)
}
