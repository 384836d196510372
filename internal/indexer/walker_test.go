package indexer

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for path, content := range files {
		full := filepath.Join(dir, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return dir
}

func walkAll(t *testing.T, root string, include, exclude []string, maxFileSize int64) ([]string, []WalkResult) {
	t.Helper()
	w := NewFileWalker(maxFileSize)
	var found []string
	var skipped []WalkResult
	err := w.Walk(context.Background(), root, include, exclude, func(r WalkResult) error {
		if r.Skipped {
			skipped = append(skipped, r)
			return nil
		}
		found = append(found, r.Path)
		return nil
	})
	require.NoError(t, err)
	sort.Strings(found)
	return found, skipped
}

func TestFileWalker_DefaultIncludeAll(t *testing.T) {
	dir := writeTestTree(t, map[string]string{
		"main.go":             "package main",
		"README.md":           "# Project",
		"internal/app/app.go": "package app",
		".git/config":         "[core]",
	})

	found, _ := walkAll(t, dir, []string{"**/*"}, nil, 0)

	assert.Contains(t, found, "main.go")
	assert.Contains(t, found, "README.md")
	assert.Contains(t, found, "internal/app/app.go")
	assert.NotContains(t, found, ".git/config")
}

func TestFileWalker_ExcludeGlobs(t *testing.T) {
	dir := writeTestTree(t, map[string]string{
		"main.go":                 "package main",
		"node_modules/pkg/pkg.js": "module.exports = {}",
		"dist/bundle.js":          "bundled",
	})

	found, _ := walkAll(t, dir, []string{"**/*"}, []string{"**/node_modules/**", "**/dist/**"}, 0)

	assert.Contains(t, found, "main.go")
	assert.NotContains(t, found, "node_modules/pkg/pkg.js")
	assert.NotContains(t, found, "dist/bundle.js")
}

func TestFileWalker_NestedGitignore(t *testing.T) {
	dir := writeTestTree(t, map[string]string{
		"main.go":                 "package main",
		"internal/.gitignore":     "*.tmp\n!keep.tmp\n",
		"internal/scratch.tmp":    "scratch",
		"internal/keep.tmp":       "keep",
		"internal/app/app.go":     "package app",
	})

	found, _ := walkAll(t, dir, []string{"**/*"}, nil, 0)

	assert.Contains(t, found, "main.go")
	assert.Contains(t, found, "internal/app/app.go")
	assert.Contains(t, found, "internal/keep.tmp")
	assert.NotContains(t, found, "internal/scratch.tmp")
}

func TestFileWalker_MaxFileSizeEmitsSkip(t *testing.T) {
	dir := writeTestTree(t, map[string]string{
		"small.txt": "tiny",
		"large.txt": strings.Repeat("x", 2000),
	})

	found, skipped := walkAll(t, dir, []string{"**/*"}, nil, 1000)

	assert.Contains(t, found, "small.txt")
	assert.NotContains(t, found, "large.txt")
	require.Len(t, skipped, 1)
	assert.Equal(t, "large.txt", skipped[0].Path)
	assert.Equal(t, "file-too-large", skipped[0].Reason)
	assert.EqualValues(t, 2000, skipped[0].Size)
}

func TestFileWalker_IncludeGlobsNarrowSelection(t *testing.T) {
	dir := writeTestTree(t, map[string]string{
		"main.go":   "package main",
		"README.md": "# Project",
	})

	found, _ := walkAll(t, dir, []string{"**/*.go"}, nil, 0)

	assert.Equal(t, []string{"main.go"}, found)
}

func TestLoadGitignore_MissingFileIsNotError(t *testing.T) {
	dir := t.TempDir()
	patterns, err := LoadGitignore(filepath.Join(dir, ".gitignore"), dir)
	require.NoError(t, err)
	assert.Nil(t, patterns)
}
