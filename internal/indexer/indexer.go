// Package indexer implements the leaf stages of the ingest pipeline: the
// workspace walker (C2) and the text chunker (C5). The coordinator that
// glues these to the reader/hasher, embedder, graph extractor, and SQLite
// store lives in internal/ingest.
package indexer

import "context"

// Walker traverses a workspace respecting include/exclude globs and
// nested .gitignore files.
type Walker interface {
	Walk(ctx context.Context, root string, includeGlobs, excludeGlobs []string, fn func(WalkResult) error) error
}
