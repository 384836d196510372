package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "test.sqlite"), false)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func vec(seed float32, dims int) []float32 {
	v := make([]float32, dims)
	for i := range v {
		v[i] = seed + float32(i)*0.01
	}
	return v
}

func TestWriteIngest_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	byteEnd := 10
	lineEnd := 1
	zero := 0
	one := 1

	err := s.WriteIngest(ctx, IngestWrite{
		RefreshPaths: []string{"a.go"},
		Files: []File{
			{Path: "a.go", Size: 10, Modified: 1000, Hash: "abc", LastIndexed: 1000},
		},
		Chunks: []Chunk{
			{ID: "c1", Path: "a.go", ChunkIndex: 0, Content: "package main", Embedding: vec(0.1, 4), EmbeddingModel: "mock-4",
				ByteStart: &zero, ByteEnd: &byteEnd, LineStart: &one, LineEnd: &lineEnd},
		},
		Nodes: []Node{
			{ID: "n1", Path: strPtr("a.go"), Kind: NodeFile, Name: "a.go"},
		},
		Ingestion:   Ingestion{ID: "ing1", Root: "/tmp", StartedAt: 1000, FinishedAt: 1001, FileCount: 1},
		IndexedAtMS: 1001,
	})
	require.NoError(t, err)

	files, err := s.FilesInScope(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, files, 1)
	assert.Equal(t, "abc", files["a.go"].Hash)

	chunks, err := s.ChunksForFile(ctx, "a.go")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "mock-4", chunks[0].EmbeddingModel)
	assert.InDeltaSlice(t, []float32{0.1, 0.11, 0.12, 0.13}, chunks[0].Embedding, 0.001)

	_, ok, err := s.MetaValue(ctx, "indexed_at")
	require.NoError(t, err)
	assert.True(t, ok)
}

func strPtr(s string) *string { return &s }

func TestWriteIngest_RefreshDeletesPriorChunks(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	write := func(content string, chunkID string) {
		require.NoError(t, s.WriteIngest(ctx, IngestWrite{
			RefreshPaths: []string{"a.go"},
			Files:        []File{{Path: "a.go", Size: 1, Modified: 1, Hash: "h"}},
			Chunks:       []Chunk{{ID: chunkID, Path: "a.go", ChunkIndex: 0, Content: content, Embedding: vec(0, 2), EmbeddingModel: "m"}},
			Ingestion:    Ingestion{ID: chunkID, Root: "/tmp"},
		}))
	}

	write("first", "c1")
	write("second", "c2")

	chunks, err := s.ChunksForFile(ctx, "a.go")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "second", chunks[0].Content)
}

func TestSearchVector_ReturnsTopKByScore(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	chunks := []Chunk{
		{ID: "c1", Path: "a.go", ChunkIndex: 0, Content: "one", Embedding: []float32{1, 0}, EmbeddingModel: "m"},
		{ID: "c2", Path: "a.go", ChunkIndex: 1, Content: "two", Embedding: []float32{0, 1}, EmbeddingModel: "m"},
		{ID: "c3", Path: "a.go", ChunkIndex: 2, Content: "three", Embedding: []float32{0.9, 0.1}, EmbeddingModel: "m"},
	}
	require.NoError(t, s.WriteIngest(ctx, IngestWrite{
		RefreshPaths: []string{"a.go"},
		Files:        []File{{Path: "a.go", Size: 1, Modified: 1, Hash: "h"}},
		Chunks:       chunks,
		Ingestion:    Ingestion{ID: "ing1", Root: "/tmp"},
	}))

	results, evaluated, err := s.SearchVector(ctx, "m", []float32{1, 0}, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, evaluated)
	require.Len(t, results, 2)
	assert.Equal(t, "c1", results[0].Chunk.ID)
}

func TestResolveNode_AmbiguousAndNotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteIngest(ctx, IngestWrite{
		Nodes: []Node{
			{ID: "n1", Path: strPtr("a.go"), Kind: NodeFunction, Name: "foo"},
			{ID: "n2", Path: strPtr("b.go"), Kind: NodeFunction, Name: "foo"},
		},
		Ingestion: Ingestion{ID: "ing1", Root: "/tmp"},
	}))

	_, err := s.ResolveNode(ctx, NodeDescriptor{Name: "foo"})
	assert.ErrorIs(t, err, ErrNodeAmbiguous)

	_, err = s.ResolveNode(ctx, NodeDescriptor{Name: "missing"})
	assert.ErrorIs(t, err, ErrNodeNotFound)

	n, err := s.ResolveNode(ctx, NodeDescriptor{Name: "foo", Path: "a.go"})
	require.NoError(t, err)
	assert.Equal(t, "n1", n.ID)
}

func TestNeighbors_OutgoingCallsEdge(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteIngest(ctx, IngestWrite{
		Nodes: []Node{
			{ID: "n1", Path: strPtr("a.go"), Kind: NodeFunction, Name: "foo"},
			{ID: "n2", Path: nil, Kind: NodeSymbol, Name: "bar"},
		},
		Edges: []Edge{
			{ID: "e1", SourceID: "n1", TargetID: "n2", Type: EdgeCalls},
		},
		Ingestion: Ingestion{ID: "ing1", Root: "/tmp"},
	}))

	neighbors, err := s.Neighbors(ctx, "n1", "outgoing", 10)
	require.NoError(t, err)
	require.Len(t, neighbors, 1)
	assert.Equal(t, "bar", neighbors[0].Neighbor.Name)
	assert.Equal(t, EdgeCalls, neighbors[0].Type)
}

func TestEvict_NoOpWhenUnderBudget(t *testing.T) {
	s := openTestStore(t)
	res, err := s.Evict(context.Background(), 1<<30)
	require.NoError(t, err)
	assert.False(t, res.WasNeeded)
}
