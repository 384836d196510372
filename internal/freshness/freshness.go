// Package freshness implements index_status: a summary of a workspace's
// SQLite index plus a staleness check against the current git HEAD
// (spec.md §4.C13).
package freshness

import (
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/mosif16/index-mcp/internal/store/sqlite"
)

const (
	defaultHistoryLimit = 5
	capHistoryLimit     = 25
)

// Result is the full index_status response.
type Result struct {
	HasIndex        bool
	DatabasePath    string
	Counts          sqlite.Counts
	EmbeddingModels []string
	RecentHistory   []sqlite.Ingestion
	StoredCommitSHA *string
	CurrentCommitSHA *string
	IsStale         bool
}

// Status opens dbPath read-only (if present) and summarizes it, comparing
// the stored commit SHA against the workspace's current git HEAD.
func Status(ctx context.Context, root, dbPath string, historyLimit int) (*Result, error) {
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	if historyLimit > capHistoryLimit {
		historyLimit = capHistoryLimit
	}

	currentSHA := gitHeadSHA(ctx, root)

	if _, err := os.Stat(dbPath); err != nil {
		return &Result{HasIndex: false, DatabasePath: dbPath, CurrentCommitSHA: currentSHA}, nil
	}

	store, err := sqlite.Open(dbPath, true)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	counts, err := store.Counts(ctx)
	if err != nil {
		return nil, err
	}
	models, err := store.DistinctEmbeddingModels(ctx)
	if err != nil {
		return nil, err
	}
	history, err := store.RecentIngestions(ctx, historyLimit)
	if err != nil {
		return nil, err
	}

	var storedSHA *string
	if v, ok, err := store.MetaValue(ctx, "commit_sha"); err == nil && ok {
		storedSHA = &v
	}

	isStale := storedSHA != nil && currentSHA != nil && *storedSHA != *currentSHA

	return &Result{
		HasIndex:         true,
		DatabasePath:     dbPath,
		Counts:           counts,
		EmbeddingModels:  models,
		RecentHistory:    history,
		StoredCommitSHA:  storedSHA,
		CurrentCommitSHA: currentSHA,
		IsStale:          isStale,
	}, nil
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
