package vectorstore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

func TestNewStore_Chromem(t *testing.T) {
	store, err := vectorstore.NewStore(vectorstore.Config{
		Provider: "chromem",
		Chromem: vectorstore.ChromemConfig{
			Path:       t.TempDir(),
			VectorSize: 3,
		},
	}, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	assert.IsType(t, &vectorstore.ChromemStore{}, store)
}

func TestNewStore_DefaultsToChromem(t *testing.T) {
	store, err := vectorstore.NewStore(vectorstore.Config{
		Chromem: vectorstore.ChromemConfig{
			Path:       t.TempDir(),
			VectorSize: 3,
		},
	}, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	assert.IsType(t, &vectorstore.ChromemStore{}, store)
}

func TestNewStore_UnsupportedProvider(t *testing.T) {
	_, err := vectorstore.NewStore(vectorstore.Config{Provider: "pinecone"}, zap.NewNop())
	require.ErrorIs(t, err, vectorstore.ErrInvalidConfig)
}

func TestConfig_Validate(t *testing.T) {
	cfg := vectorstore.Config{Provider: "qdrant"}
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())

	cfg.Qdrant.Collection = "Bad Name"
	require.Error(t, cfg.Validate())
}
