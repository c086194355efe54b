package ingest_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/chunker"
	"github.com/fyrsmithlabs/ragd/internal/document"
	"github.com/fyrsmithlabs/ragd/internal/ingest"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

type fakeEmbedder struct {
	calls int
	fail  bool
}

func (f *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("embedding service down")
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(i), 1, 0}
	}
	return vectors, nil
}

// fakeStore keeps records per source, mimicking replace-by-source semantics.
type fakeStore struct {
	records    map[string][]vectorstore.Record
	ensured    int
	upsertFail bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string][]vectorstore.Record)}
}

func (f *fakeStore) EnsureCollection(ctx context.Context) error {
	f.ensured++
	return nil
}

func (f *fakeStore) Upsert(ctx context.Context, records []vectorstore.Record) error {
	if f.upsertFail {
		return errors.New("store down")
	}
	for _, rec := range records {
		f.records[rec.Source] = append(f.records[rec.Source], rec)
	}
	return nil
}

func (f *fakeStore) DeleteSource(ctx context.Context, source string) error {
	if _, ok := f.records[source]; !ok {
		return vectorstore.ErrSourceNotFound
	}
	delete(f.records, source)
	return nil
}

func newTestService(t *testing.T, embedder ingest.Embedder, store ingest.Store) *ingest.Service {
	t.Helper()
	splitter, err := chunker.New(chunker.Config{Size: 20, Overlap: 5})
	require.NoError(t, err)

	svc, err := ingest.NewService(splitter, embedder, store, zap.NewNop())
	require.NoError(t, err)
	return svc
}

func TestNewService_MissingDependencies(t *testing.T) {
	splitter, err := chunker.New(chunker.Config{})
	require.NoError(t, err)

	_, err = ingest.NewService(nil, &fakeEmbedder{}, newFakeStore(), zap.NewNop())
	require.ErrorIs(t, err, ingest.ErrInvalidConfig)

	_, err = ingest.NewService(splitter, nil, newFakeStore(), zap.NewNop())
	require.ErrorIs(t, err, ingest.ErrInvalidConfig)

	_, err = ingest.NewService(splitter, &fakeEmbedder{}, nil, zap.NewNop())
	require.ErrorIs(t, err, ingest.ErrInvalidConfig)
}

func TestIngestDocument(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, &fakeEmbedder{}, store)

	doc := document.FromText("notes.txt", "this text is long enough to produce several chunks here")

	count, err := svc.IngestDocument(context.Background(), doc)
	require.NoError(t, err)
	require.Greater(t, count, 1)

	records := store.records["notes.txt"]
	require.Len(t, records, count)

	// Records carry deterministic IDs and ordered chunk indexes.
	for i, rec := range records {
		assert.Equal(t, vectorstore.RecordID("notes.txt", i), rec.ID)
		assert.Equal(t, i, rec.Index)
		assert.Equal(t, "notes.txt", rec.Source)
		assert.NotEmpty(t, rec.Text)
		assert.NotEmpty(t, rec.Vector)
	}
}

func TestIngestDocument_ReplacesShrunkSource(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, &fakeEmbedder{}, store)
	ctx := context.Background()

	long := document.FromText("a.txt", "a long document body that spans quite a few chunks in total")
	count, err := svc.IngestDocument(ctx, long)
	require.NoError(t, err)
	require.Greater(t, count, 1)

	short := document.FromText("a.txt", "tiny now")
	count, err = svc.IngestDocument(ctx, short)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// No orphaned tail chunks from the longer version.
	assert.Len(t, store.records["a.txt"], 1)
}

func TestIngestDocument_EmbeddingFailureLeavesIndexUntouched(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, &fakeEmbedder{}, store)
	ctx := context.Background()

	doc := document.FromText("a.txt", "original content that was indexed fine")
	_, err := svc.IngestDocument(ctx, doc)
	require.NoError(t, err)
	indexed := len(store.records["a.txt"])

	failing := newTestService(t, &fakeEmbedder{fail: true}, store)
	_, err = failing.IngestDocument(ctx, document.FromText("a.txt", "updated content"))
	require.Error(t, err)

	// The previously indexed records must survive a failed re-ingest.
	assert.Len(t, store.records["a.txt"], indexed)
}

func TestIngestDocument_WhitespaceOnly(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, &fakeEmbedder{}, store)

	count, err := svc.IngestDocument(context.Background(), document.FromText("blank.txt", "   \n\t  "))
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, store.records)
}

func TestIngestPath_Directory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("first document text"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte("# second document"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.bin"), []byte{0x00, 0x01}, 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "config.txt"), []byte("hidden"), 0o644))

	store := newFakeStore()
	svc := newTestService(t, &fakeEmbedder{}, store)

	results, err := svc.IngestPath(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, results, 2, "unsupported and hidden files must be skipped")

	assert.Equal(t, 1, store.ensured)
	for _, res := range results {
		assert.NoError(t, res.Err)
		assert.Greater(t, res.Chunks, 0)
	}
}

func TestIngestPath_HonorsIgnoreFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".ragdignore"), []byte("drafts/\n*.log.txt\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.md"), []byte("# kept document"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "noise.log.txt"), []byte("excluded by glob"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "drafts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "drafts", "wip.md"), []byte("excluded by dir"), 0o644))

	store := newFakeStore()
	svc := newTestService(t, &fakeEmbedder{}, store)

	results, err := svc.IngestPath(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, filepath.Join(dir, "keep.md"), results[0].Source)
}

func TestIngestPath_SingleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "only.txt")
	require.NoError(t, os.WriteFile(path, []byte("just one file"), 0o644))

	store := newFakeStore()
	svc := newTestService(t, &fakeEmbedder{}, store)

	results, err := svc.IngestPath(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, path, results[0].Source)
}

func TestIngestPath_ExplicitUnsupportedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(path, []byte{0x00}, 0o644))

	store := newFakeStore()
	svc := newTestService(t, &fakeEmbedder{}, store)

	results, err := svc.IngestPath(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.ErrorIs(t, results[0].Err, document.ErrUnsupportedType)
}

func TestIngestPath_PerDocumentFailureDoesNotAbortBatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.txt"), []byte("  \n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.txt"), []byte("good content"), 0o644))

	store := newFakeStore()
	svc := newTestService(t, &fakeEmbedder{}, store)

	results, err := svc.IngestPath(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, results, 2)

	var failed, succeeded int
	for _, res := range results {
		if res.Err != nil {
			failed++
		} else {
			succeeded++
		}
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, succeeded)
}

func TestIngestAll(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(a, []byte("document a"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("document b"), 0o644))

	store := newFakeStore()
	svc := newTestService(t, &fakeEmbedder{}, store)

	results, err := svc.IngestAll(context.Background(), []string{a, b})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}
