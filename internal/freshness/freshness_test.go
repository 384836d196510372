package freshness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mosif16/index-mcp/internal/store/sqlite"
)

func TestStatus_NoIndexWhenDBMissing(t *testing.T) {
	root := t.TempDir()
	res, err := Status(context.Background(), root, filepath.Join(root, ".mcp-index.sqlite"), 0)
	require.NoError(t, err)
	assert.False(t, res.HasIndex)
}

func TestStatus_ReportsCountsAndModels(t *testing.T) {
	root := t.TempDir()
	dbPath := filepath.Join(root, ".mcp-index.sqlite")

	store, err := sqlite.Open(dbPath, false)
	require.NoError(t, err)
	require.NoError(t, store.WriteIngest(context.Background(), sqlite.IngestWrite{
		Files:     []sqlite.File{{Path: "a.go", Size: 1, Modified: 1, Hash: "h"}},
		Chunks:    []sqlite.Chunk{{ID: "c1", Path: "a.go", ChunkIndex: 0, Content: "x", EmbeddingModel: "mock-4"}},
		Ingestion: sqlite.Ingestion{ID: "ing1", Root: root},
	}))
	require.NoError(t, store.Close())

	res, err := Status(context.Background(), root, dbPath, 0)
	require.NoError(t, err)
	assert.True(t, res.HasIndex)
	assert.EqualValues(t, 1, res.Counts.Files)
	assert.Equal(t, []string{"mock-4"}, res.EmbeddingModels)
	assert.False(t, res.IsStale)
}
