// Package resolve maps caller-supplied hints (an explicit root, HTTP-style
// headers, environment variables, and free-form request metadata) to an
// absolute workspace directory, and normalizes changed-path lists to
// workspace-relative posix paths.
package resolve

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mosif16/index-mcp/internal/security"
	"github.com/mosif16/index-mcp/internal/validation"
)

// headerKeys and envKeys are the well-known hint names spec.md §4.C1 step 1
// names explicitly ("…").
var headerKeys = []string{"x-mcp-cwd", "x-workspace-root", "x-codex-cwd"}

var envKeys = []string{"MCP_CALLER_CWD", "MCP_WORKSPACE_ROOT", "CODEX_CWD", "PWD", "INIT_CWD", "GITHUB_WORKSPACE"}

var changedPathHeaderKeys = []string{"x-mcp-changed-paths"}

var changedPathEnvKeys = []string{"MCP_CHANGED_PATHS", "CHANGED_FILES"}

var metaKeyPattern = regexp.MustCompile(`(?i)(cwd|workspace|project|root|path|directory)$`)

// Context carries the per-request hint sources resolution reads from. All
// three are optional; a nil map/func behaves as empty.
type Context struct {
	Meta    map[string]string
	Headers map[string]string
	Env     func(string) string
}

func (c Context) env(key string) string {
	if c.Env == nil {
		return os.Getenv(key)
	}
	return c.Env(key)
}

// expandHome resolves a leading "~" to the user's home directory and strips
// a "file://" scheme, matching spec.md §4.C1 step 1's "Expand ~ and file://
// URIs."
func expandHome(p string) string {
	p = strings.TrimPrefix(p, "file://")
	if p == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
		return p
	}
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return p
}

// candidateBases builds the ordered base-directory list from headers, env
// vars, and matching meta fields, keeping only directories that exist.
func candidateBases(ctx Context) []string {
	var raw []string

	for _, k := range headerKeys {
		if v := ctx.Headers[k]; v != "" {
			raw = append(raw, v)
		}
	}
	for _, k := range envKeys {
		if v := ctx.env(k); v != "" {
			raw = append(raw, v)
		}
	}
	for k, v := range ctx.Meta {
		if v == "" {
			continue
		}
		if metaKeyPattern.MatchString(k) || strings.HasPrefix(v, "file://") || strings.HasPrefix(v, "~") {
			raw = append(raw, v)
		}
	}

	seen := make(map[string]bool, len(raw))
	var out []string
	for _, v := range raw {
		expanded := expandHome(v)
		abs, err := filepath.Abs(expanded)
		if err != nil {
			continue
		}
		info, err := os.Stat(abs)
		if err != nil || !info.IsDir() {
			continue
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true
		out = append(out, abs)
	}
	return out
}

// Root resolves the workspace root per spec.md §4.C1 step 2: an absolute
// root must exist as given; a relative root resolves against the first
// valid candidate base; an empty root returns the first valid base.
func Root(root string, ctx Context) (string, error) {
	bases := candidateBases(ctx)

	if root == "" {
		if len(bases) == 0 {
			return "", fmt.Errorf("no workspace root provided and no caller-cwd hint was available")
		}
		return bases[0], nil
	}

	expanded := expandHome(root)
	if filepath.IsAbs(expanded) {
		info, err := os.Stat(expanded)
		if err != nil || !info.IsDir() {
			return "", fmt.Errorf("workspace root %q does not exist", expanded)
		}
		return filepath.Clean(expanded), nil
	}

	if len(bases) == 0 {
		return "", fmt.Errorf("relative workspace root %q given but no caller-cwd hint was available", root)
	}
	candidate := filepath.Join(bases[0], expanded)
	info, err := os.Stat(candidate)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("workspace root %q does not exist under %q", root, bases[0])
	}
	return filepath.Clean(candidate), nil
}

// Paths normalizes a changed-paths list for one resolved root. When
// explicit is non-nil (the caller passed paths directly), entries are
// trimmed/deduped and passed through after root-relative normalization.
// Otherwise candidate values are scanned from meta/headers/env and parsed
// as JSON arrays, newlines, or semicolon-separated lists.
func Paths(explicit []string, root string, ctx Context) ([]string, error) {
	var raw []string
	if explicit != nil {
		raw = explicit
	} else {
		raw = scanChangedPathHints(ctx)
	}

	seen := make(map[string]bool, len(raw))
	var out []string
	for _, entry := range raw {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		rel, err := normalizeToRoot(entry, root)
		if err != nil {
			return nil, err
		}
		if seen[rel] {
			continue
		}
		seen[rel] = true
		out = append(out, rel)
	}
	return out, nil
}

func scanChangedPathHints(ctx Context) []string {
	var values []string
	for _, k := range changedPathHeaderKeys {
		if v := ctx.Headers[k]; v != "" {
			values = append(values, v)
		}
	}
	for _, k := range changedPathEnvKeys {
		if v := ctx.env(k); v != "" {
			values = append(values, v)
		}
	}
	for k, v := range ctx.Meta {
		if v == "" {
			continue
		}
		if strings.Contains(strings.ToLower(k), "changed") || strings.Contains(strings.ToLower(k), "paths") {
			values = append(values, v)
		}
	}

	var out []string
	for _, v := range values {
		out = append(out, parseListValue(v)...)
	}
	return out
}

func parseListValue(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	if strings.HasPrefix(v, "[") {
		var arr []string
		if err := json.Unmarshal([]byte(v), &arr); err == nil {
			return arr
		}
	}
	sep := "\n"
	if !strings.Contains(v, "\n") && strings.Contains(v, ";") {
		sep = ";"
	}
	parts := strings.Split(v, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// RelPath normalizes one caller-supplied file path (absolute or root-
// relative) to a workspace-relative posix path, rejecting escapes. It is
// the single-path counterpart of Paths, used by tools that take one
// `file`/`node.path` argument instead of a changed-paths list.
func RelPath(entry, root string) (string, error) {
	return normalizeToRoot(entry, root)
}

// normalizeToRoot resolves entry (absolute or root-relative) against root,
// rejects paths that escape root, and returns a workspace-relative posix
// path.
func normalizeToRoot(entry string, root string) (string, error) {
	if err := validation.IsPathSafe(entry); err != nil {
		return "", fmt.Errorf("unsafe changed-path entry %q: %w", entry, err)
	}

	var abs string
	if filepath.IsAbs(entry) {
		abs = filepath.Clean(entry)
	} else {
		abs = filepath.Join(root, entry)
	}

	safe, err := security.ValidatePathWithinBase(abs, root)
	if err != nil {
		return "", fmt.Errorf("changed-path entry %q escapes workspace root: %w", entry, err)
	}

	rel, err := filepath.Rel(root, safe)
	if err != nil {
		return "", fmt.Errorf("changed-path entry %q cannot be made relative to root: %w", entry, err)
	}
	return filepath.ToSlash(rel), nil
}
