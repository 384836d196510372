package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mosif16/index-mcp/internal/security"
)

// WalkResult is one outcome of a workspace walk: either a candidate file
// ready for the read/hash stage, or a skipped entry with a reason.
type WalkResult struct {
	Path    string // workspace-relative, posix separators
	AbsPath string
	Info    fs.FileInfo
	Skipped bool
	Reason  string // "file-too-large", ...
	Size    int64
}

// FileWalker traverses a workspace honoring include/exclude globs and
// nested .gitignore files, without following symlinks.
type FileWalker struct {
	maxFileSize int64 // 0 = no limit
}

// NewFileWalker creates a FileWalker with an optional max file size gate.
func NewFileWalker(maxFileSize int64) *FileWalker {
	return &FileWalker{maxFileSize: maxFileSize}
}

type dirIgnore struct {
	prefix  string // workspace-relative dir this .gitignore applies to ("" for root)
	matcher *patternMatcher
}

// Walk traverses root, calling fn once per file that passes the include
// set and is not excluded by excludeGlobs or any applicable .gitignore.
// Directories never reach fn. Symlinks are not followed (filepath.WalkDir's
// default behavior).
func (w *FileWalker) Walk(ctx context.Context, root string, includeGlobs, excludeGlobs []string, fn func(WalkResult) error) error {
	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve root path: %w", err)
	}

	excludeMatcher := newGlobSet(excludeGlobs)
	includeMatcher := newGlobSet(includeGlobs)

	var stack []dirIgnore

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			return err
		}

		relPath, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return fmt.Errorf("relativize path: %w", relErr)
		}
		relPath = filepath.ToSlash(relPath)
		if relPath == "." {
			if patterns, _ := LoadGitignore(filepath.Join(path, ".gitignore"), root); len(patterns) > 0 {
				stack = append(stack, dirIgnore{prefix: "", matcher: newPatternMatcher(patterns)})
			}
			return nil
		}

		if _, err := security.ValidatePath(relPath, ""); err != nil {
			// filepath.Rel never produces ".." against root for entries
			// WalkDir actually visits; this only trips on '..'-bearing
			// relative paths, which would indicate a symlink escape.
			return nil
		}

		for len(stack) > 0 && !withinDir(relPath, stack[len(stack)-1].prefix) {
			stack = stack[:len(stack)-1]
		}

		if d.IsDir() {
			if relPath == ".git" || strings.HasPrefix(relPath, ".git/") {
				return filepath.SkipDir
			}
			if excludeMatcher.matchDir(relPath) {
				return filepath.SkipDir
			}
			if patterns, _ := LoadGitignore(filepath.Join(path, ".gitignore"), root); len(patterns) > 0 {
				stack = append(stack, dirIgnore{prefix: relPath, matcher: newPatternMatcher(patterns)})
			}
			return nil
		}

		if excludeMatcher.match(relPath) {
			return nil
		}
		if gitignoreExcludes(stack, relPath) {
			return nil
		}
		if !includeMatcher.match(relPath) {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return fmt.Errorf("stat %s: %w", path, infoErr)
		}

		if w.maxFileSize > 0 && info.Size() > w.maxFileSize {
			return fn(WalkResult{Path: relPath, AbsPath: path, Skipped: true, Reason: "file-too-large", Size: info.Size()})
		}

		return fn(WalkResult{Path: relPath, AbsPath: path, Info: info})
	})
}

func withinDir(relPath, dirPrefix string) bool {
	if dirPrefix == "" {
		return true
	}
	return relPath == dirPrefix || strings.HasPrefix(relPath, dirPrefix+"/")
}

func gitignoreExcludes(stack []dirIgnore, relPath string) bool {
	for _, di := range stack {
		sub := relPath
		if di.prefix != "" {
			sub = strings.TrimPrefix(relPath, di.prefix+"/")
		}
		if di.matcher.match(sub, false) {
			return true
		}
	}
	return false
}

// globSet matches workspace-relative paths against a set of "**"-aware
// glob patterns (distinct from .gitignore semantics: no negation, no
// implicit directory recursion).
type globSet struct {
	res []*regexp.Regexp
}

func newGlobSet(patterns []string) *globSet {
	gs := &globSet{res: make([]*regexp.Regexp, 0, len(patterns))}
	for _, p := range patterns {
		if p == "" {
			continue
		}
		gs.res = append(gs.res, globToRegexp(p))
	}
	return gs
}

func (gs *globSet) match(relPath string) bool {
	if len(gs.res) == 0 {
		return false
	}
	for _, re := range gs.res {
		if re.MatchString(relPath) {
			return true
		}
	}
	return false
}

// matchDir reports whether a directory (and everything beneath it)
// should be pruned: either the directory path itself matches, or a path
// directly beneath it ("<dir>/__probe__") matches some pattern (e.g.
// "**/node_modules/**" prunes a "node_modules" directory outright).
func (gs *globSet) matchDir(relPath string) bool {
	if gs.match(relPath) {
		return true
	}
	if gs.match(relPath + "/__probe__") {
		return true
	}
	return false
}

var globRegexpCache = map[string]*regexp.Regexp{}

func globToRegexp(pattern string) *regexp.Regexp {
	if re, ok := globRegexpCache[pattern]; ok {
		return re
	}
	var b strings.Builder
	b.WriteString("^")
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == '*' && i+1 < len(runes) && runes[i+1] == '*':
			// "**/" => zero or more path segments; bare "**" => anything.
			if i+2 < len(runes) && runes[i+2] == '/' {
				b.WriteString("(?:.*/)?")
				i += 2
			} else {
				b.WriteString(".*")
				i++
			}
		case c == '*':
			b.WriteString("[^/]*")
		case c == '?':
			b.WriteString("[^/]")
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteString("$")
	re := regexp.MustCompile(b.String())
	globRegexpCache[pattern] = re
	return re
}

// patternMatcher handles .gitignore-style pattern matching within one
// directory's scope.
type patternMatcher struct {
	patterns []pattern
}

type pattern struct {
	raw      string
	negate   bool
	dirOnly  bool
	anchored bool
	glob     string
}

func newPatternMatcher(patterns []string) *patternMatcher {
	m := &patternMatcher{patterns: make([]pattern, 0, len(patterns))}

	for _, p := range patterns {
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}

		pat := pattern{raw: p}

		if strings.HasPrefix(p, "!") {
			pat.negate = true
			p = p[1:]
		}
		if strings.HasSuffix(p, "/") {
			pat.dirOnly = true
			p = strings.TrimSuffix(p, "/")
		}
		if strings.HasPrefix(p, "/") {
			pat.anchored = true
			p = strings.TrimPrefix(p, "/")
		}

		pat.glob = p
		m.patterns = append(m.patterns, pat)
	}

	return m
}

// match checks whether relPath (relative to the directory owning this
// matcher) is ignored. Last matching pattern wins, per .gitignore rules.
func (m *patternMatcher) match(relPath string, isDir bool) bool {
	ignored := false

	for _, pat := range m.patterns {
		if pat.dirOnly {
			if relPath == pat.glob && isDir {
				ignored = !pat.negate
				continue
			}
			if strings.HasPrefix(relPath, pat.glob+"/") {
				ignored = !pat.negate
				continue
			}
			if !pat.anchored {
				parts := strings.Split(relPath, "/")
				for i := 0; i < len(parts); i++ {
					if parts[i] == pat.glob && i < len(parts)-1 {
						ignored = !pat.negate
						break
					}
				}
			}
			continue
		}

		if m.matchPattern(pat, relPath, isDir) {
			ignored = !pat.negate
		}
	}

	return ignored
}

func (m *patternMatcher) matchPattern(pat pattern, relPath string, isDir bool) bool {
	if pat.anchored {
		matched, _ := filepath.Match(pat.glob, relPath)
		return matched
	}

	if matched, _ := filepath.Match(pat.glob, filepath.Base(relPath)); matched {
		return true
	}

	if strings.Contains(pat.glob, "/") {
		if matched, _ := filepath.Match(pat.glob, relPath); matched {
			return true
		}
	}

	parts := strings.Split(relPath, "/")
	for i := 0; i < len(parts); i++ {
		suffix := strings.Join(parts[i:], "/")
		if matched, _ := filepath.Match(pat.glob, suffix); matched {
			return true
		}
	}

	return false
}

// LoadGitignore reads a .gitignore file and returns its patterns. A
// missing file is not an error (returns nil, nil).
func LoadGitignore(path string, basePath string) ([]string, error) {
	if _, err := security.ValidatePathWithinBase(path, basePath); err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read .gitignore: %w", err)
	}

	lines := strings.Split(string(data), "\n")
	patterns := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			patterns = append(patterns, line)
		}
	}

	return patterns, nil
}

// DefaultExcludeGlobs mirrors internal/config's default exclude set, for
// callers constructing a walker without going through config.
func DefaultExcludeGlobs() []string {
	return []string{
		"**/.git/**",
		"**/node_modules/**",
		"**/dist/**",
		"**/build/**",
	}
}
