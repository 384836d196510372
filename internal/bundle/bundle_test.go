package bundle

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mosif16/index-mcp/internal/store/sqlite"
)

func openStoreWithFixture(t *testing.T) *sqlite.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.sqlite")
	store, err := sqlite.Open(path, false)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	byteEnd := 40
	lineEnd := 3
	zero := 0
	one := 1

	require.NoError(t, store.WriteIngest(context.Background(), sqlite.IngestWrite{
		RefreshPaths: []string{"greeter.ts"},
		Files: []sqlite.File{
			{Path: "greeter.ts", Size: 40, Modified: 1, Hash: "h", LastIndexed: 1},
		},
		Chunks: []sqlite.Chunk{
			{ID: "c1", Path: "greeter.ts", ChunkIndex: 0, Content: "class Greeter { greet() {} }",
				ByteStart: &zero, ByteEnd: &byteEnd, LineStart: &one, LineEnd: &lineEnd, EmbeddingModel: "m"},
		},
		Nodes: []sqlite.Node{
			{ID: "n1", Path: strPtr("greeter.ts"), Kind: sqlite.NodeClass, Name: "Greeter", RangeStart: &zero, RangeEnd: &byteEnd},
		},
		Ingestion: sqlite.Ingestion{ID: "ing1", Root: "/tmp"},
	}))

	return store
}

func strPtr(s string) *string { return &s }

func TestAssemble_NotIndexedWhenFileMissing(t *testing.T) {
	store := openStoreWithFixture(t)
	_, err := Assemble(context.Background(), store, Request{Root: "/tmp", File: "missing.ts"})
	assert.Error(t, err)
}

func TestAssemble_DefaultFocusIsHighestRankedDefinition(t *testing.T) {
	store := openStoreWithFixture(t)
	res, err := Assemble(context.Background(), store, Request{Root: "/tmp", File: "greeter.ts"})
	require.NoError(t, err)
	require.NotNil(t, res.FocusDefinition)
	assert.Equal(t, "Greeter", res.FocusDefinition.Name)
	require.NotEmpty(t, res.Snippets)
}

func TestAssemble_SymbolLookupCaseInsensitive(t *testing.T) {
	store := openStoreWithFixture(t)
	res, err := Assemble(context.Background(), store, Request{
		Root: "/tmp", File: "greeter.ts", Symbol: &SymbolRef{Name: "greeter"},
	})
	require.NoError(t, err)
	require.NotNil(t, res.FocusDefinition)
	assert.Equal(t, "n1", res.FocusDefinition.ID)
}

func TestAssemble_IncludesSnippetAtMinimumBudget(t *testing.T) {
	store := openStoreWithFixture(t)
	res, err := Assemble(context.Background(), store, Request{Root: "/tmp", File: "greeter.ts", BudgetTokens: minBudgetTokens})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Snippets)
}
