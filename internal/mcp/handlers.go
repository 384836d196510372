package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mosif16/index-mcp/internal/bundle"
	"github.com/mosif16/index-mcp/internal/embedding"
	"github.com/mosif16/index-mcp/internal/freshness"
	"github.com/mosif16/index-mcp/internal/indexer"
	"github.com/mosif16/index-mcp/internal/indexmcperr"
	"github.com/mosif16/index-mcp/internal/ingest"
	"github.com/mosif16/index-mcp/internal/resolve"
	"github.com/mosif16/index-mcp/internal/store/sqlite"
)

const serverVersion = "0.1.0"

// toolError is the shape CreateErrorResponse-style callers see: a
// JSON-RPC-friendly map carrying the stable Kind from internal/indexmcperr
// alongside a human message, rather than a bare Go error string.
func toolError(err error) map[string]interface{} {
	var mcpErr *indexmcperr.Error
	if errors.As(err, &mcpErr) {
		return map[string]interface{}{
			"kind":    string(mcpErr.Kind),
			"tool":    mcpErr.Tool,
			"message": mcpErr.Message,
		}
	}
	return map[string]interface{}{"kind": string(indexmcperr.Internal), "message": err.Error()}
}

// dbPathFor joins root and a database-name alias, matching the path the
// ingest coordinator computes internally.
func dbPathFor(root, databaseName string) string {
	return filepath.Join(root, databaseName)
}

func openReaderWithHitTracking(tool, dbPath string) (*sqlite.Store, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, indexmcperr.New(indexmcperr.IndexMissing, tool, "no index found at "+dbPath)
	}
	// Opened read-write (not sqlite.Open(path, true)) because search and
	// bundle both bump hit counters on the rows they return, per spec.md
	// §4.C10 step 5 and §4.C11 step 6 — only index_status needs a
	// genuinely read-only handle.
	store, err := sqlite.Open(dbPath, false)
	if err != nil {
		return nil, indexmcperr.Wrap(indexmcperr.Internal, tool, "open database", err)
	}
	return store, nil
}

func (s *Server) resolveRootAndDB(tool string, a args) (root, dbPath string, err error) {
	root, err = resolve.Root(a.rootArg(), a.resolveContext())
	if err != nil {
		return "", "", indexmcperr.Wrap(indexmcperr.WorkspaceUnavailable, tool, "resolve workspace root", err)
	}
	dbPath = dbPathFor(root, a.databaseArg())
	return root, dbPath, nil
}

// handleIngestCodebase implements ingest_codebase per spec.md §4.C9.
func (s *Server) handleIngestCodebase(ctx context.Context, a args) (interface{}, error) {
	root, err := resolve.Root(a.rootArg(), a.resolveContext())
	if err != nil {
		return nil, indexmcperr.Wrap(indexmcperr.WorkspaceUnavailable, ToolIngestCodebase, "resolve workspace root", err)
	}

	explicitPaths := a.strSlice("paths", "changed_paths", "files")
	var paths []string
	if explicitPaths != nil {
		paths, err = resolve.Paths(explicitPaths, root, a.resolveContext())
		if err != nil {
			return nil, indexmcperr.Wrap(indexmcperr.InvalidInput, ToolIngestCodebase, "normalize explicit paths", err)
		}
	}

	cfg := s.Config
	opts := ingest.Options{
		Root:             root,
		DatabaseName:     a.databaseArg(),
		IncludeGlobs:     firstNonEmpty(a.strSlice("include", "include_globs", "globs"), cfg.Ingest.IncludeGlobs),
		ExcludeGlobs:     firstNonEmpty(a.strSlice("exclude", "exclude_globs"), cfg.Ingest.ExcludeGlobs),
		Paths:            paths,
		MaxFileSizeBytes: a.int64Val(cfg.Ingest.MaxFileSizeBytes, "max_file_size_bytes"),
		StoreContent:     a.boolVal(cfg.Ingest.StoreFileContent, "store_content"),
		ChunkSizeTokens:  a.intVal(cfg.Embedding.ChunkSizeTokens, "chunk_size_tokens"),
		OverlapTokens:    a.intVal(cfg.Embedding.OverlapTokens, "overlap_tokens"),
		EmbeddingConfig: embedding.Config{
			Provider:   a.strDefault(cfg.Embedding.Provider, "embedding_provider"),
			Model:      a.strDefault(cfg.Embedding.Model, "embedding_model"),
			Dimensions: a.intVal(cfg.Embedding.Dimensions, "embedding_dimensions"),
		},
	}
	if cfg.Ingest.AutoEvict {
		opts.MaxDBSizeBytes = a.int64Val(cfg.Eviction.MaxDBSizeBytes, "max_db_size_bytes")
	}

	coordinator := ingest.New(s.Embedder, indexer.NoopSanitizer, opts.MaxFileSizeBytes, opts.StoreContent)
	start := time.Now()
	result, err := coordinator.Run(ctx, opts)
	if s.Metrics != nil {
		if err != nil {
			s.Metrics.RecordIndexerOperation("ingest_codebase", "error", time.Since(start))
			s.Metrics.RecordIndexerError(string(indexmcperr.Internal))
		} else {
			s.Metrics.RecordIndexerOperation("ingest_codebase", "success", time.Since(start))
			s.Metrics.RecordIndexedFiles(result.FileCount)
		}
	}
	if err != nil {
		return nil, err
	}

	summary := fmt.Sprintf("ingested %d file(s), skipped %d, deleted %d", result.FileCount, result.SkippedCount, result.DeletedCount)
	return map[string]interface{}{
		"summary":       summary,
		"file_count":    result.FileCount,
		"skipped_count": result.SkippedCount,
		"deleted_count": result.DeletedCount,
		"skipped":       result.Skipped,
		"using_targets": result.UsingTargets,
		"evicted":       result.Evicted,
	}, nil
}

// handleSemanticSearch implements semantic_search per spec.md §4.C10.
func (s *Server) handleSemanticSearch(ctx context.Context, a args) (interface{}, error) {
	query := strings.TrimSpace(a.queryArg())
	if query == "" {
		return nil, indexmcperr.New(indexmcperr.InvalidInput, ToolSemanticSearch, "query must not be empty")
	}

	_, dbPath, err := s.resolveRootAndDB(ToolSemanticSearch, a)
	if err != nil {
		return nil, err
	}
	store, err := openReaderWithHitTracking(ToolSemanticSearch, dbPath)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	models, err := store.DistinctEmbeddingModels(ctx)
	if err != nil {
		return nil, indexmcperr.Wrap(indexmcperr.Internal, ToolSemanticSearch, "list embedding models", err)
	}

	model := a.str("model")
	switch {
	case model != "":
	case len(models) == 1:
		model = models[0]
	case len(models) == 0:
		return map[string]interface{}{
			"database_path":    dbPath,
			"embedding_model":  "",
			"total_chunks":     0,
			"evaluated_chunks": 0,
			"results":          []interface{}{},
		}, nil
	default:
		return nil, indexmcperr.New(indexmcperr.ModelAmbiguous, ToolSemanticSearch,
			fmt.Sprintf("index has %d embedding models; specify model", len(models)))
	}

	embeddingCfg := embedding.Config{Provider: s.Config.Embedding.Provider, Model: model, Dimensions: s.Config.Embedding.Dimensions}
	embedStart := time.Now()
	queryEmbeds, err := s.Embedder.EmbedBatch(ctx, embeddingCfg, []string{query})
	if s.Metrics != nil {
		if err != nil {
			s.Metrics.RecordEmbedding(embeddingCfg.Provider, "error", time.Since(embedStart))
			s.Metrics.RecordEmbeddingError(embeddingCfg.Provider, string(indexmcperr.EmbeddingUnavailable))
		} else {
			s.Metrics.RecordEmbedding(embeddingCfg.Provider, "success", time.Since(embedStart))
		}
	}
	if err != nil {
		return nil, indexmcperr.Wrap(indexmcperr.EmbeddingUnavailable, ToolSemanticSearch, "embed query", err)
	}

	limit := a.intVal(8, "limit", "top_k")
	if limit <= 0 {
		limit = 8
	}
	if limit > 50 {
		limit = 50
	}

	bm25Scores, err := store.SearchBM25(ctx, model, query, limit)
	if err != nil {
		bm25Scores = nil // BM25 is a documented blend input, not a hard dependency; degrade to pure vector ranking.
	}

	searchStart := time.Now()
	scored, evaluated, err := store.SearchVector(ctx, model, queryEmbeds[0].Vector, limit, bm25Scores)
	if s.Metrics != nil {
		if err != nil {
			s.Metrics.RecordVectorSearch("semantic_search", "error", time.Since(searchStart), 0)
		} else {
			s.Metrics.RecordVectorSearch("semantic_search", "success", time.Since(searchStart), len(scored))
		}
	}
	if err != nil {
		return nil, indexmcperr.Wrap(indexmcperr.Internal, ToolSemanticSearch, "vector search", err)
	}

	var bumpIDs []string
	results := make([]map[string]interface{}, 0, len(scored))
	for _, sc := range scored {
		before, after := contextWindow(store, sc.Chunk, 2)
		results = append(results, map[string]interface{}{
			"chunk_id":       sc.Chunk.ID,
			"path":           sc.Chunk.Path,
			"score":          sc.Score,
			"content":        sc.Chunk.Content,
			"context_before": before,
			"context_after":  after,
			"byte_start":     sc.Chunk.ByteStart,
			"byte_end":       sc.Chunk.ByteEnd,
			"line_start":     sc.Chunk.LineStart,
			"line_end":       sc.Chunk.LineEnd,
		})
		bumpIDs = append(bumpIDs, sc.Chunk.ID)
	}
	if len(bumpIDs) > 0 {
		_ = store.BumpChunkHits(ctx, bumpIDs)
	}

	counts, err := store.Counts(ctx)
	totalChunks := int64(0)
	if err == nil {
		totalChunks = counts.Chunks
	}

	return map[string]interface{}{
		"database_path":    dbPath,
		"embedding_model":  model,
		"total_chunks":     totalChunks,
		"evaluated_chunks": evaluated,
		"results":          results,
	}, nil
}

// contextWindow pulls up to n lines before/after chunk's own line range,
// preferring the file's stored content column over a disk read so search
// results are sourced from the same content that was actually indexed.
func contextWindow(store *sqlite.Store, chunk sqlite.Chunk, n int) (string, string) {
	if chunk.LineStart == nil || chunk.LineEnd == nil {
		return "", ""
	}
	file, err := store.FileByPath(context.Background(), chunk.Path)
	if err != nil || file == nil || file.Content == nil {
		return "", ""
	}
	lines := strings.Split(*file.Content, "\n")

	beforeStart := *chunk.LineStart - 1 - n
	if beforeStart < 0 {
		beforeStart = 0
	}
	beforeEnd := *chunk.LineStart - 1
	if beforeEnd < 0 || beforeEnd > len(lines) {
		beforeEnd = 0
	}
	var before string
	if beforeStart < beforeEnd {
		before = strings.Join(lines[beforeStart:beforeEnd], "\n")
	}

	afterStart := *chunk.LineEnd
	if afterStart > len(lines) {
		afterStart = len(lines)
	}
	afterEnd := afterStart + n
	if afterEnd > len(lines) {
		afterEnd = len(lines)
	}
	var after string
	if afterStart < afterEnd {
		after = strings.Join(lines[afterStart:afterEnd], "\n")
	}
	return before, after
}

// handleContextBundle implements context_bundle per spec.md §4.C11.
func (s *Server) handleContextBundle(ctx context.Context, a args) (interface{}, error) {
	root, dbPath, err := s.resolveRootAndDB(ToolContextBundle, a)
	if err != nil {
		return nil, err
	}

	file := a.fileArg()
	if file == "" {
		return nil, indexmcperr.New(indexmcperr.InvalidInput, ToolContextBundle, "file is required")
	}
	relFile, err := resolve.RelPath(file, root)
	if err != nil {
		return nil, indexmcperr.Wrap(indexmcperr.InvalidInput, ToolContextBundle, "normalize file path", err)
	}

	var symbol *bundle.SymbolRef
	if sym := a.object("symbol"); sym != nil {
		symbol = &bundle.SymbolRef{Name: sym.str("name"), Kind: sym.str("kind"), Path: sym.str("path")}
	} else if name := a.str("symbol_name"); name != "" {
		symbol = &bundle.SymbolRef{Name: name}
	}

	store, err := openReaderWithHitTracking(ToolContextBundle, dbPath)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	req := bundle.Request{
		Root:         root,
		File:         relFile,
		Symbol:       symbol,
		MaxSnippets:  a.intVal(0, "max_snippets"),
		MaxNeighbors: a.intVal(0, "max_neighbors"),
		BudgetTokens: a.intVal(s.Config.Bundle.DefaultBudgetTokens, "budget_tokens"),
	}
	result, err := bundle.Assemble(ctx, store, req)
	if err != nil {
		return nil, err
	}
	return bundleResponse(result), nil
}

func bundleResponse(r *bundle.Result) map[string]interface{} {
	return map[string]interface{}{
		"database_path":    r.DatabasePath,
		"file":             r.File,
		"definitions":      r.Definitions,
		"focus_definition": r.FocusDefinition,
		"related":          r.Related,
		"snippets":         r.Snippets,
		"latest_ingestion": r.LatestIngestion,
		"warnings":         r.Warnings,
	}
}

// handleGraphNeighbors implements graph_neighbors per spec.md §4.C12.
func (s *Server) handleGraphNeighbors(ctx context.Context, a args) (interface{}, error) {
	root, dbPath, err := s.resolveRootAndDB(ToolGraphNeighbors, a)
	if err != nil {
		return nil, err
	}

	node := a.object("node", "symbol")
	descriptor := sqlite.NodeDescriptor{
		ID:   a.str("id"),
		Name: a.str("name"),
		Kind: a.str("kind"),
	}
	if node != nil {
		descriptor.ID = firstNonEmptyStr(node.str("id"), descriptor.ID)
		descriptor.Name = firstNonEmptyStr(node.str("name"), descriptor.Name)
		descriptor.Kind = firstNonEmptyStr(node.str("kind"), descriptor.Kind)
		if p := node.str("path"); p != "" {
			if rel, err := resolve.RelPath(p, root); err == nil {
				descriptor.Path = rel
			} else {
				descriptor.Path = p
			}
		}
	}
	if descriptor.ID == "" && descriptor.Name == "" {
		return nil, indexmcperr.New(indexmcperr.InvalidInput, ToolGraphNeighbors, "node.id or node.name is required")
	}

	direction := a.strDefault("outgoing", "direction")
	if direction != "incoming" && direction != "outgoing" && direction != "both" {
		direction = "outgoing"
	}
	limit := a.intVal(16, "limit")
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}

	store, err := openReaderWithHitTracking(ToolGraphNeighbors, dbPath)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	resolved, err := store.ResolveNode(ctx, descriptor)
	if err != nil {
		switch {
		case errors.Is(err, sqlite.ErrNodeNotFound):
			return nil, indexmcperr.Wrap(indexmcperr.NotIndexed, ToolGraphNeighbors, "node not found", err)
		case errors.Is(err, sqlite.ErrNodeAmbiguous):
			return nil, indexmcperr.Wrap(indexmcperr.Ambiguous, ToolGraphNeighbors, "node descriptor matches more than one row", err)
		default:
			return nil, indexmcperr.Wrap(indexmcperr.Internal, ToolGraphNeighbors, "resolve node", err)
		}
	}

	neighbors, err := store.Neighbors(ctx, resolved.ID, direction, limit)
	if err != nil {
		return nil, indexmcperr.Wrap(indexmcperr.Internal, ToolGraphNeighbors, "load neighbors", err)
	}

	return map[string]interface{}{
		"database_path": dbPath,
		"node":          resolved,
		"direction":     direction,
		"neighbors":     neighbors,
	}, nil
}

// handleCodeLookup implements code_lookup: a routing wrapper that infers
// mode from which arguments are present, per spec.md §6.
func (s *Server) handleCodeLookup(ctx context.Context, a args) (interface{}, error) {
	mode := a.str("mode")
	if mode == "" {
		switch {
		case a.queryArg() != "":
			mode = "search"
		case a.fileArg() != "":
			mode = "bundle"
		case a.object("node") != nil || a.object("symbol") != nil || a.str("id") != "" || a.str("name") != "":
			mode = "graph"
		default:
			return nil, indexmcperr.New(indexmcperr.InvalidInput, ToolCodeLookup, "cannot infer mode: provide query, file, or node/symbol")
		}
	}

	var (
		result interface{}
		err    error
	)
	switch mode {
	case "search":
		result, err = s.handleSemanticSearch(ctx, a)
	case "bundle":
		result, err = s.handleContextBundle(ctx, a)
	case "graph":
		result, err = s.handleGraphNeighbors(ctx, a)
	default:
		return nil, indexmcperr.New(indexmcperr.InvalidInput, ToolCodeLookup, "mode must be one of search, bundle, graph")
	}
	if err != nil {
		return nil, err
	}

	out, ok := result.(map[string]interface{})
	if !ok {
		out = map[string]interface{}{"result": result}
	}
	out["mode"] = mode
	out["summary"] = fmt.Sprintf("code_lookup resolved mode=%s", mode)
	return out, nil
}

// handleIndexStatus implements index_status per spec.md §4.C13.
func (s *Server) handleIndexStatus(ctx context.Context, a args) (interface{}, error) {
	root, dbPath, err := s.resolveRootAndDB(ToolIndexStatus, a)
	if err != nil {
		return nil, err
	}
	historyLimit := a.intVal(5, "history_limit")

	result, err := freshness.Status(ctx, root, dbPath, historyLimit)
	if err != nil {
		return nil, indexmcperr.Wrap(indexmcperr.Internal, ToolIndexStatus, "compute index status", err)
	}
	return map[string]interface{}{
		"has_index":          result.HasIndex,
		"database_path":      result.DatabasePath,
		"counts":             result.Counts,
		"embedding_models":   result.EmbeddingModels,
		"recent_history":     result.RecentHistory,
		"stored_commit_sha":  result.StoredCommitSHA,
		"current_commit_sha": result.CurrentCommitSHA,
		"is_stale":           result.IsStale,
	}, nil
}

// handleInfo implements the info tool: server identity and environment
// summary, no workspace resolution required.
func (s *Server) handleInfo(ctx context.Context, a args) (interface{}, error) {
	return map[string]interface{}{
		"name":           "index-mcp",
		"version":        serverVersion,
		"native_modules": "none (pure-Go SQLite via modernc.org/sqlite; no cgo)",
		"default_embedding_provider": s.Config.Embedding.Provider,
		"default_database_name":      s.Config.Database.Name,
	}, nil
}

const indexingGuidanceText = `Call ingest_codebase once after cloning or switching branches, and again ` +
	`whenever index_status reports is_stale=true or a tool error carries kind="NotIndexed". ` +
	`For a handful of touched files, pass them as paths to avoid a full re-walk; omit paths ` +
	`to re-scan the whole tree. If a watcher process is already running against this root, ` +
	`manual re-ingestion is usually unnecessary.`

// handleIndexingGuidance implements the indexing_guidance tool.
func (s *Server) handleIndexingGuidance(ctx context.Context, a args) (interface{}, error) {
	return map[string]interface{}{"guidance": indexingGuidanceText}, nil
}

func firstNonEmpty(preferred, fallback []string) []string {
	if len(preferred) > 0 {
		return preferred
	}
	return fallback
}

func firstNonEmptyStr(preferred, fallback string) string {
	if preferred != "" {
		return preferred
	}
	return fallback
}
