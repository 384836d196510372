// Package sqlite persists the ingest pipeline's output — files, chunks,
// and the symbol/call graph — into a single embedded SQLite database per
// workspace, and serves the read-side queries (search, bundle, graph
// neighbors, status) against it.
package sqlite

// File is one row of the files table.
type File struct {
	Path         string
	Size         int64
	Modified     int64 // ms since epoch
	Hash         string
	LastIndexed  int64 // ms since epoch
	Content      *string
}

// Chunk is one row of the file_chunks table.
type Chunk struct {
	ID             string
	Path           string
	ChunkIndex     int
	Content        string
	Embedding      []float32
	EmbeddingModel string
	ByteStart      *int
	ByteEnd        *int
	LineStart      *int
	LineEnd        *int
	Hits           int64
}

// NodeKind enumerates code_graph_nodes.kind values.
type NodeKind string

const (
	NodeFile     NodeKind = "file"
	NodeFunction NodeKind = "function"
	NodeClass    NodeKind = "class"
	NodeMethod   NodeKind = "method"
	NodeModule   NodeKind = "module"
	NodeSymbol   NodeKind = "symbol"
)

// Node is one row of the code_graph_nodes table.
type Node struct {
	ID          string
	Path        *string
	Kind        NodeKind
	Name        string
	Signature   *string
	RangeStart  *int
	RangeEnd    *int
	Metadata    map[string]any
	Hits        int64
}

// EdgeType enumerates code_graph_edges.type values.
type EdgeType string

const (
	EdgeImports EdgeType = "imports"
	EdgeCalls   EdgeType = "calls"
)

// Edge is one row of the code_graph_edges table.
type Edge struct {
	ID         string
	SourceID   string
	TargetID   string
	Type       EdgeType
	SourcePath *string
	TargetPath *string
	Metadata   map[string]any
}

// Ingestion is one row of the ingestions audit log.
type Ingestion struct {
	ID            string
	Root          string
	StartedAt     int64
	FinishedAt    int64
	FileCount     int
	SkippedCount  int
	DeletedCount  int
}
