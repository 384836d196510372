package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mosif16/index-mcp/internal/embedding"
	"github.com/mosif16/index-mcp/internal/store/sqlite"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func baseOptions(root string) Options {
	return Options{
		Root:         root,
		DatabaseName: ".mcp-index.sqlite",
		IncludeGlobs: []string{"**/*"},
		StoreContent: true,
		EmbeddingConfig: embedding.Config{
			Provider:   "mock",
			Model:      "mock-model",
			Dimensions: 8,
		},
	}
}

func TestRun_FirstIngestOfMinimalRepo(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/greeter.ts", `export class Greeter {
  greet(name) {
    sayHello(name);
  }
}
`)

	c := New(embedding.NewEmbedder(), nil, 0, true)
	res, err := c.Run(context.Background(), baseOptions(root))
	require.NoError(t, err)
	assert.Equal(t, 1, res.FileCount)
	assert.Equal(t, 0, res.SkippedCount)

	store, err := sqlite.Open(filepath.Join(root, ".mcp-index.sqlite"), true)
	require.NoError(t, err)
	defer store.Close()

	chunks, err := store.ChunksForFile(context.Background(), "src/greeter.ts")
	require.NoError(t, err)
	assert.NotEmpty(t, chunks)

	nodes, err := store.NodesForFile(context.Background(), "src/greeter.ts")
	require.NoError(t, err)
	found := false
	for _, n := range nodes {
		if n.Kind == sqlite.NodeClass && n.Name == "Greeter" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestRun_IncrementalIngestDeletesRemovedFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.ts", "const a = 1\n")
	writeFile(t, root, "b.ts", "const b = 2\n")

	c := New(embedding.NewEmbedder(), nil, 0, true)
	ctx := context.Background()
	_, err := c.Run(ctx, baseOptions(root))
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "b.ts")))

	res, err := c.Run(ctx, baseOptions(root))
	require.NoError(t, err)
	assert.Equal(t, 1, res.DeletedCount)

	store, err := sqlite.Open(filepath.Join(root, ".mcp-index.sqlite"), true)
	require.NoError(t, err)
	defer store.Close()

	paths, err := store.AllPaths(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.ts"}, paths)
}

func TestRun_UnchangedFileNotReprocessed(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.ts", "const a = 1\n")

	c := New(embedding.NewEmbedder(), nil, 0, true)
	ctx := context.Background()
	res1, err := c.Run(ctx, baseOptions(root))
	require.NoError(t, err)
	assert.Equal(t, 1, res1.FileCount)

	res2, err := c.Run(ctx, baseOptions(root))
	require.NoError(t, err)
	assert.Equal(t, 0, res2.FileCount)
}
