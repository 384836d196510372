package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/mosif16/index-mcp/internal/config"
	"github.com/mosif16/index-mcp/internal/embedding"
	"github.com/mosif16/index-mcp/internal/indexer"
	"github.com/mosif16/index-mcp/internal/ingest"
	"github.com/mosif16/index-mcp/internal/mcp"
	"github.com/mosif16/index-mcp/internal/observability"
	"github.com/mosif16/index-mcp/internal/resolve"
	"github.com/mosif16/index-mcp/internal/watch"
)

// Version is the index-mcp release version.
const Version = "0.1.0"

func main() {
	ctx := context.Background()

	watchEnabled := flag.Bool("watch", false, "run a filesystem watcher that incrementally re-ingests changed paths instead of serving MCP over stdio")
	watchRoot := flag.String("watch-root", "", "workspace root to watch (defaults to the caller's cwd hint)")
	watchDebounce := flag.Duration("watch-debounce", 0, "debounce window between a change and the re-ingest it triggers (default from config/INDEX_MCP_WATCH_DEBOUNCE_MS)")
	watchNoInitial := flag.Bool("watch-no-initial", false, "skip the full ingest that normally runs once before watching begins")
	watchQuiet := flag.Bool("watch-quiet", false, "suppress per-change log lines")
	watchDatabase := flag.String("watch-database", "", "database filename under watch-root (default from config)")
	flag.Parse()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// stdio MCP mode reserves stdout for JSON-RPC; logs always go to stderr.
	logger := observability.NewLogger(observability.LoggerConfig{
		Level:         cfg.Logging.Level,
		Format:        cfg.Logging.Format,
		Output:        os.Stderr,
		AddSource:     true,
		SentryEnabled: cfg.Observability.Sentry.Enabled,
	})

	if cfg.Observability.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Observability.Sentry.DSN,
			Environment:      cfg.Observability.Sentry.Environment,
			Release:          cfg.Observability.Sentry.Release,
			TracesSampleRate: cfg.Observability.Sentry.SampleRate,
		}); err != nil {
			logger.Error("failed to initialize sentry", "error", err)
			os.Exit(1)
		}
		defer sentry.Flush(2 * time.Second)
	}

	embedder := embedding.NewEmbedder()

	var metrics *observability.MetricsCollector
	if cfg.Observability.Metrics.Enabled {
		metrics = observability.NewMetricsCollector("indexmcp")
		metrics.SetSystemStartTime(time.Now())
	}

	tracer, err := observability.NewTracerProvider(observability.TracerConfig{
		ServiceName:    "index-mcp",
		ServiceVersion: Version,
		Environment:    cfg.Observability.Sentry.Environment,
		OTLPEndpoint:   cfg.Observability.Tracing.OTLPEndpoint,
		SamplingRate:   cfg.Observability.Tracing.SampleRate,
		Enabled:        cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	logger.Info("index-mcp starting",
		"version", Version,
		"watch", *watchEnabled,
		"default_database_name", cfg.Database.Name,
		"default_embedding_provider", cfg.Embedding.Provider,
	)

	if *watchEnabled {
		runWatch(ctx, cfg, embedder, logger, *watchRoot, *watchDebounce, *watchNoInitial, *watchQuiet, *watchDatabase)
		return
	}

	server := mcp.NewServer(os.Stdin, os.Stdout, cfg, embedder, logger, metrics, tracer)
	defer server.Close()
	if err := server.Serve(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// runWatch resolves a root (CLI flag, else caller-cwd hints per spec.md
// §4.C1) and runs a debounced watcher that incrementally re-ingests
// changed paths, per spec.md §4.C15.
func runWatch(ctx context.Context, cfg *config.Config, embedder *embedding.Embedder, logger *observability.Logger, root string, debounce time.Duration, noInitial, quiet bool, databaseName string) {
	resolvedRoot, err := resolve.Root(root, resolve.Context{})
	if err != nil {
		logger.Error("failed to resolve watch root", "error", err)
		os.Exit(1)
	}
	if databaseName == "" {
		databaseName = cfg.Watch.DatabaseName
		if databaseName == "" {
			databaseName = cfg.Database.Name
		}
	}
	if debounce <= 0 {
		debounce = time.Duration(cfg.Watch.DebounceMS) * time.Millisecond
	}
	if debounce < watch.MinDebounce {
		debounce = watch.MinDebounce
	}

	coordinator := ingest.New(embedder, indexer.NoopSanitizer, cfg.Ingest.MaxFileSizeBytes, cfg.Ingest.StoreFileContent)

	runner := func(ctx context.Context, paths []string) error {
		opts := ingest.Options{
			Root:             resolvedRoot,
			DatabaseName:     databaseName,
			IncludeGlobs:     cfg.Ingest.IncludeGlobs,
			ExcludeGlobs:     cfg.Ingest.ExcludeGlobs,
			Paths:            paths,
			MaxFileSizeBytes: cfg.Ingest.MaxFileSizeBytes,
			StoreContent:     cfg.Ingest.StoreFileContent,
			ChunkSizeTokens:  cfg.Embedding.ChunkSizeTokens,
			OverlapTokens:    cfg.Embedding.OverlapTokens,
			EmbeddingConfig: embedding.Config{
				Provider:   cfg.Embedding.Provider,
				Model:      cfg.Embedding.Model,
				Dimensions: cfg.Embedding.Dimensions,
			},
		}
		if cfg.Ingest.AutoEvict {
			opts.MaxDBSizeBytes = cfg.Eviction.MaxDBSizeBytes
		}
		result, err := coordinator.Run(ctx, opts)
		if err != nil {
			return err
		}
		if !quiet {
			logger.Info("watch re-ingest complete",
				"root", resolvedRoot,
				"files", result.FileCount,
				"skipped", result.SkippedCount,
				"deleted", result.DeletedCount,
				"changed_paths", len(paths),
			)
		}
		return nil
	}

	w := watch.New(resolvedRoot, debounce, !noInitial, runner, logger.Underlying().With(slog.String("component", "watch")))
	logger.Info("watching for changes", "root", resolvedRoot, "debounce", debounce, "database", databaseName)
	if err := w.Start(ctx); err != nil {
		logger.Error("watcher stopped", "error", err)
		os.Exit(1)
	}
}
