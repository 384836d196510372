// Package ingest glues the path resolver, walker, reader, sanitizer,
// chunker, embedder, graph extractor, and SQLite store into one bounded-
// concurrency pipeline (spec.md §4.C9). An ingest's files, chunks, graph,
// ingestions and meta rows are committed in one write transaction; the
// last_indexed_at bump for unchanged files runs afterwards in a separate
// transaction.
package ingest

import (
	"context"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mosif16/index-mcp/internal/embedding"
	"github.com/mosif16/index-mcp/internal/graph"
	"github.com/mosif16/index-mcp/internal/indexer"
	"github.com/mosif16/index-mcp/internal/indexmcperr"
	"github.com/mosif16/index-mcp/internal/store/sqlite"
)

// Options configures one ingest run.
type Options struct {
	Root            string
	DatabaseName    string
	IncludeGlobs    []string
	ExcludeGlobs    []string
	Paths           []string // explicit targets; nil means "scan the whole tree"
	MaxFileSizeBytes int64
	StoreContent    bool
	ChunkSizeTokens int
	OverlapTokens   int
	EmbeddingConfig embedding.Config
	MaxDBSizeBytes  int64
}

// SkippedFile is one per-file failure that does not abort the ingest.
type SkippedFile struct {
	Path    string
	Reason  string
	Message string
}

// Result reports one completed ingest.
type Result struct {
	FileCount     int
	SkippedCount  int
	DeletedCount  int
	Skipped       []SkippedFile
	UsingTargets  bool
	Evicted       *sqlite.EvictionResult
}

// Coordinator wires all the ingest stages together. Safe for reuse across
// ingests; not safe for concurrent Run calls against the same database.
type Coordinator struct {
	Walker    indexer.Walker
	Reader    *indexer.FileReader
	Sanitize  indexer.Sanitizer
	Chunker   indexer.Chunker
	Embedder  *embedding.Embedder
}

// New constructs a Coordinator with the default stage implementations.
func New(embedder *embedding.Embedder, sanitizer indexer.Sanitizer, maxFileSize int64, storeContent bool) *Coordinator {
	if sanitizer == nil {
		sanitizer = indexer.NoopSanitizer
	}
	return &Coordinator{
		Walker:   indexer.NewFileWalker(maxFileSize),
		Reader:   indexer.NewFileReader(true),
		Sanitize: sanitizer,
		Chunker:  indexer.NewSlidingWindowChunker(),
		Embedder: embedder,
	}
}

type fileOutcome struct {
	path      string
	file      sqlite.File
	chunks    []chunkDraft
	nodes     []sqlite.Node
	edges     []sqlite.Edge
	skip      *SkippedFile
	unchanged bool
}

type chunkDraft struct {
	path       string
	chunkIndex int
	content    string
	byteStart  int
	byteEnd    int
	lineStart  int
	lineEnd    int
}

// Run executes one ingest against dbPath per the 9-step algorithm in
// spec.md §4.C9. It opens and closes the store itself.
func (c *Coordinator) Run(ctx context.Context, opts Options) (*Result, error) {
	startedAt := nowMS()
	dbPath := filepath.Join(opts.Root, opts.DatabaseName)

	excludeGlobs := append([]string{}, opts.ExcludeGlobs...)
	excludeGlobs = append(excludeGlobs, opts.DatabaseName, opts.DatabaseName+"-wal", opts.DatabaseName+"-shm")

	includeGlobs := opts.IncludeGlobs
	usingTargets := len(opts.Paths) > 0
	if usingTargets {
		includeGlobs = opts.Paths
	}

	store, err := sqlite.Open(dbPath, false)
	if err != nil {
		return nil, indexmcperr.Wrap(indexmcperr.Internal, "ingest_codebase", "open database", err)
	}
	defer store.Close()

	existing, err := store.FilesInScope(ctx, nil)
	if err != nil {
		return nil, indexmcperr.Wrap(indexmcperr.Internal, "ingest_codebase", "load existing files", err)
	}

	var candidates []indexer.WalkResult
	var skipped []SkippedFile
	walkErr := c.Walker.Walk(ctx, opts.Root, includeGlobs, excludeGlobs, func(wr indexer.WalkResult) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if wr.Skipped {
			skipped = append(skipped, SkippedFile{Path: wr.Path, Reason: wr.Reason, Message: wr.Reason})
			return nil
		}
		candidates = append(candidates, wr)
		return nil
	})
	if walkErr != nil {
		return nil, indexmcperr.Wrap(indexmcperr.ReadError, "ingest_codebase", "walk workspace", walkErr)
	}

	seen := make(map[string]bool, len(candidates))
	var toProcess []indexer.WalkResult
	var unchangedPaths []string
	for _, cand := range candidates {
		seen[cand.Path] = true
		prior, ok := existing[cand.Path]
		if ok && prior.Size == cand.Info.Size() && prior.Modified == cand.Info.ModTime().UnixMilli() {
			unchangedPaths = append(unchangedPaths, cand.Path)
			continue
		}
		toProcess = append(toProcess, cand)
	}

	outcomes, procSkipped := c.processFiles(ctx, opts, toProcess)
	skipped = append(skipped, procSkipped...)

	var deletedPaths []string
	if usingTargets {
		for _, p := range opts.Paths {
			if !seen[p] {
				deletedPaths = append(deletedPaths, p)
			}
		}
	} else {
		for p := range existing {
			if !seen[p] {
				deletedPaths = append(deletedPaths, p)
			}
		}
	}
	sort.Strings(deletedPaths)

	write := sqlite.IngestWrite{
		IndexedAtMS: nowMS(),
	}
	refreshSet := make(map[string]bool)
	for _, o := range outcomes {
		refreshSet[o.path] = true
	}
	for _, p := range deletedPaths {
		refreshSet[p] = true
	}
	for p := range refreshSet {
		write.RefreshPaths = append(write.RefreshPaths, p)
	}
	sort.Strings(write.RefreshPaths)
	write.DeletedPaths = deletedPaths

	for _, o := range outcomes {
		write.Files = append(write.Files, o.file)
		write.Nodes = append(write.Nodes, o.nodes...)
		write.Edges = append(write.Edges, o.edges...)
	}

	var drafts []chunkDraft
	var texts []string
	for _, o := range outcomes {
		for _, cd := range o.chunks {
			drafts = append(drafts, cd)
			texts = append(texts, cd.content)
		}
	}
	if len(texts) > 0 {
		embeddings, err := c.Embedder.EmbedBatch(ctx, opts.EmbeddingConfig, texts)
		if err != nil {
			return nil, indexmcperr.Wrap(indexmcperr.EmbeddingUnavailable, "ingest_codebase", "embed batch", err)
		}
		for i, cd := range drafts {
			bs, be, ls, le := cd.byteStart, cd.byteEnd, cd.lineStart, cd.lineEnd
			write.Chunks = append(write.Chunks, sqlite.Chunk{
				ID:             uuid.NewString(),
				Path:           cd.path,
				ChunkIndex:     cd.chunkIndex,
				Content:        cd.content,
				Embedding:      embeddings[i].Vector,
				EmbeddingModel: opts.EmbeddingConfig.Model,
				ByteStart:      &bs, ByteEnd: &be, LineStart: &ls, LineEnd: &le,
			})
		}
	}

	commitSHA := gitHeadSHA(ctx, opts.Root)
	write.CommitSHA = commitSHA
	write.Ingestion = sqlite.Ingestion{
		ID:           uuid.NewString(),
		Root:         opts.Root,
		StartedAt:    startedAt,
		FinishedAt:   write.IndexedAtMS,
		FileCount:    len(outcomes),
		SkippedCount: len(skipped),
		DeletedCount: len(deletedPaths),
	}

	if err := store.WriteIngest(ctx, write); err != nil {
		return nil, indexmcperr.Wrap(indexmcperr.Internal, "ingest_codebase", "write ingest transaction", err)
	}

	if len(unchangedPaths) > 0 {
		if err := store.TouchFiles(ctx, unchangedPaths, write.IndexedAtMS); err != nil {
			return nil, indexmcperr.Wrap(indexmcperr.Internal, "ingest_codebase", "touch unchanged files", err)
		}
	}

	result := &Result{
		FileCount:    len(outcomes),
		SkippedCount: len(skipped),
		DeletedCount: len(deletedPaths),
		Skipped:      skipped,
		UsingTargets: usingTargets,
	}

	if opts.MaxDBSizeBytes > 0 {
		size, err := store.SizeBytes()
		if err == nil && size > opts.MaxDBSizeBytes {
			evicted, err := store.Evict(ctx, opts.MaxDBSizeBytes)
			if err == nil {
				result.Evicted = &evicted
			}
		}
	}

	return result, nil
}

// processFiles runs the per-file read→sanitize→chunk→extract pipeline
// across a bounded worker pool, per spec.md §5's
// min(max(2, available_parallelism), 16) concurrency cap.
func (c *Coordinator) processFiles(ctx context.Context, opts Options, candidates []indexer.WalkResult) ([]fileOutcome, []SkippedFile) {
	workers := runtime.GOMAXPROCS(0)
	if workers < 2 {
		workers = 2
	}
	if workers > 16 {
		workers = 16
	}

	jobs := make(chan indexer.WalkResult)
	results := make(chan fileOutcome)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for wr := range jobs {
				results <- c.processOne(ctx, opts, wr)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, cand := range candidates {
			select {
			case jobs <- cand:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var outcomes []fileOutcome
	var skipped []SkippedFile
	for r := range results {
		if r.skip != nil {
			skipped = append(skipped, *r.skip)
			continue
		}
		outcomes = append(outcomes, r)
	}
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].path < outcomes[j].path })
	return outcomes, skipped
}

func (c *Coordinator) processOne(ctx context.Context, opts Options, wr indexer.WalkResult) fileOutcome {
	read, err := c.Reader.Read(ctx, opts.Root, wr.AbsPath)
	if err != nil {
		return fileOutcome{skip: &SkippedFile{Path: wr.Path, Reason: "read-error", Message: err.Error()}}
	}

	file := sqlite.File{
		Path:        wr.Path,
		Size:        read.Size,
		Modified:    wr.Info.ModTime().UnixMilli(),
		Hash:        read.SHA256,
		LastIndexed: nowMS(),
	}

	if read.Binary || !read.ValidUTF8 {
		return fileOutcome{path: wr.Path, file: file}
	}

	content := read.Content
	sanitized, err := c.Sanitize(ctx, indexer.SanitizeInput{Path: wr.Path, Content: content})
	if err != nil {
		return fileOutcome{skip: &SkippedFile{Path: wr.Path, Reason: "sanitize-error", Message: err.Error()}}
	}
	if sanitized != nil {
		content = *sanitized
	}

	if opts.StoreContent {
		v := content
		file.Content = &v
	}

	if strings.TrimSpace(content) != "" {
		chunks, err := c.Chunker.Chunk(ctx, content, indexer.ChunkOptions{
			ChunkSizeTokens: opts.ChunkSizeTokens,
			OverlapTokens:   opts.OverlapTokens,
		})
		if err != nil {
			return fileOutcome{skip: &SkippedFile{Path: wr.Path, Reason: "chunk-error", Message: err.Error()}}
		}
		out := fileOutcome{path: wr.Path, file: file}
		for i, ch := range chunks {
			out.chunks = append(out.chunks, chunkDraft{
				path: wr.Path, chunkIndex: i, content: ch.Content,
				byteStart: ch.ByteStart, byteEnd: ch.ByteEnd, lineStart: ch.LineStart, lineEnd: ch.LineEnd,
			})
		}
		if graph.Supports(wr.Path) {
			g := graph.Extract(wr.Path, content)
			out.nodes = g.Nodes
			out.edges = g.Edges
		}
		return out
	}

	return fileOutcome{path: wr.Path, file: file}
}

func gitHeadSHA(ctx context.Context, root string) *string {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "HEAD")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil
	}
	sha := strings.TrimSpace(string(out))
	if sha == "" {
		return nil
	}
	return &sha
}

func nowMS() int64 {
	return time.Now().UnixMilli()
}
