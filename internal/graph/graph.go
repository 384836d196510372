// Package graph extracts a tolerant entity/edge graph from JS/TS family
// source files: classes, methods, functions, modules, and unresolved
// callee symbols, connected by imports and calls edges.
package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mosif16/index-mcp/internal/store/sqlite"
)

// SupportedExtensions lists the file extensions the extractor applies to,
// per spec.md §4.C7.
var SupportedExtensions = map[string]bool{
	".ts": true, ".tsx": true, ".js": true, ".jsx": true, ".mjs": true, ".cjs": true,
}

// Supports reports whether path's extension is one the extractor handles.
func Supports(path string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// Result is one file's extracted entities and edges.
type Result struct {
	Nodes []sqlite.Node
	Edges []sqlite.Edge
}

var (
	importFromRe  = regexp.MustCompile(`^\s*import\s+(.+?)\s+from\s+['"]([^'"]+)['"]`)
	importBareRe  = regexp.MustCompile(`^\s*import\s+['"]([^'"]+)['"]`)
	requireRe     = regexp.MustCompile(`\brequire\(\s*['"]([^'"]+)['"]\s*\)`)
	classRe       = regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:abstract\s+)?class\s+([A-Za-z_$][\w$]*)`)
	functionDeclRe = regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s*\*?\s+([A-Za-z_$][\w$]*)\s*\(`)
	arrowAssignRe = regexp.MustCompile(`^\s*(?:export\s+)?(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*=\s*(?:async\s*)?\(?[^=]*\)?\s*=>\s*\{?`)
	funcExprRe    = regexp.MustCompile(`^\s*(?:export\s+)?(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*=\s*(?:async\s+)?function\s*\*?\s*\(`)
	methodRe      = regexp.MustCompile(`^\s*(?:public|private|protected|static|async|\*|readonly|\s)*([A-Za-z_$][\w$]*)\s*\(([^)]*)\)\s*(?::\s*[^{;]+)?\s*\{`)
	callRe        = regexp.MustCompile(`\b([A-Za-z_$][\w$]*(?:\.[A-Za-z_$][\w$]*)*)\s*\(`)
	controlKeywords = map[string]bool{
		"if": true, "for": true, "while": true, "switch": true, "catch": true,
		"function": true, "return": true, "typeof": true, "new": true, "super": true,
	}
)

type scope struct {
	kind       sqlite.NodeKind
	name       string
	scopedName string
	startByte  int
	openDepth  int // brace depth immediately after the scope's opening brace
}

// Extract parses content (the file at relPath, workspace-relative posix)
// with a tolerant line-oriented scanner: brace depth tracks scope entry
// and exit, and per-line regexes recognize declarations, imports, and
// call expressions. Syntax errors never abort extraction — unmatched
// lines are simply skipped.
func Extract(relPath string, content string) *Result {
	r := &Result{}
	fileNode := newNode(sqlite.NodeFile, relPath, relPath, relPath, nil, 0, len(content))
	r.Nodes = append(r.Nodes, fileNode)

	lines := strings.Split(content, "\n")
	offsets := make([]int, len(lines)+1)
	off := 0
	for i, ln := range lines {
		offsets[i] = off
		off += len(ln) + 1
	}
	offsets[len(lines)] = off

	scopes := []scope{{kind: sqlite.NodeFile, name: relPath, scopedName: relPath, startByte: 0, openDepth: 0}}
	depth := 0

	currentScopedName := func() string {
		return scopes[len(scopes)-1].scopedName
	}
	currentEnclosingID := func() string {
		s := scopes[len(scopes)-1]
		if s.kind == sqlite.NodeFile {
			return fileNode.ID
		}
		return contentID(string(s.kind), relPath, s.scopedName, s.startByte)
	}

	for i, line := range lines {
		lineStart := offsets[i]

		if m := importFromRe.FindStringSubmatch(line); m != nil {
			r.appendImport(relPath, currentEnclosingID(), m[2], lineStart, parseImportClause(m[1]))
		} else if m := importBareRe.FindStringSubmatch(line); m != nil {
			r.appendImport(relPath, currentEnclosingID(), m[1], lineStart, importClause{})
		} else if m := requireRe.FindStringSubmatch(line); m != nil {
			r.appendImport(relPath, currentEnclosingID(), m[1], lineStart, importClause{})
		}

		if m := classRe.FindStringSubmatch(line); m != nil {
			name := m[1]
			scopedName := qualify(currentScopedName(), name)
			scopes = append(scopes, scope{kind: sqlite.NodeClass, name: name, scopedName: scopedName, startByte: lineStart, openDepth: depth + strings.Count(line, "{") - strings.Count(line, "}")})
		} else if m := functionDeclRe.FindStringSubmatch(line); m != nil {
			name := m[1]
			scopedName := qualify(currentScopedName(), name)
			scopes = append(scopes, scope{kind: sqlite.NodeFunction, name: name, scopedName: scopedName, startByte: lineStart, openDepth: depth + strings.Count(line, "{") - strings.Count(line, "}")})
		} else if m := arrowAssignRe.FindStringSubmatch(line); m != nil && strings.Contains(line, "=>") {
			name := m[1]
			scopedName := qualify(currentScopedName(), name)
			scopes = append(scopes, scope{kind: sqlite.NodeFunction, name: name, scopedName: scopedName, startByte: lineStart, openDepth: depth + strings.Count(line, "{") - strings.Count(line, "}")})
		} else if m := funcExprRe.FindStringSubmatch(line); m != nil {
			name := m[1]
			scopedName := qualify(currentScopedName(), name)
			scopes = append(scopes, scope{kind: sqlite.NodeFunction, name: name, scopedName: scopedName, startByte: lineStart, openDepth: depth + strings.Count(line, "{") - strings.Count(line, "}")})
		} else if scopes[len(scopes)-1].kind == sqlite.NodeClass {
			if m := methodRe.FindStringSubmatch(line); m != nil && !controlKeywords[m[1]] {
				name := m[1]
				scopedName := qualify(currentScopedName(), name)
				scopes = append(scopes, scope{kind: sqlite.NodeMethod, name: name, scopedName: scopedName, startByte: lineStart, openDepth: depth + strings.Count(line, "{") - strings.Count(line, "}")})
			}
		}

		if scopes[len(scopes)-1].kind == sqlite.NodeFunction || scopes[len(scopes)-1].kind == sqlite.NodeMethod {
			for _, m := range callRe.FindAllStringSubmatch(line, -1) {
				callee := m[1]
				head := callee
				if idx := strings.LastIndex(callee, "."); idx >= 0 {
					head = callee[idx+1:]
				}
				if controlKeywords[strings.Split(callee, ".")[0]] || controlKeywords[head] {
					continue
				}
				r.appendCall(relPath, currentEnclosingID(), head, lineStart)
			}
		}

		depth += strings.Count(line, "{") - strings.Count(line, "}")

		for len(scopes) > 1 && depth <= scopes[len(scopes)-1].openDepth-1 {
			closed := scopes[len(scopes)-1]
			scopes = scopes[:len(scopes)-1]
			endByte := offsets[i+1]
			var kindName string
			switch closed.kind {
			case sqlite.NodeClass:
				kindName = "class"
			case sqlite.NodeFunction:
				kindName = "function"
			case sqlite.NodeMethod:
				kindName = "method"
			}
			if kindName != "" {
				node := newNode(closed.kind, relPath, closed.scopedName, closed.name, nil, closed.startByte, endByte)
				r.Nodes = append(r.Nodes, node)
			}
		}
	}

	for len(scopes) > 1 {
		closed := scopes[len(scopes)-1]
		scopes = scopes[:len(scopes)-1]
		node := newNode(closed.kind, relPath, closed.scopedName, closed.name, nil, closed.startByte, len(content))
		r.Nodes = append(r.Nodes, node)
	}

	return r
}

func qualify(parentScoped, name string) string {
	if parentScoped == "" {
		return name
	}
	return parentScoped + "::" + name
}

type importClause struct {
	Named     []string
	Default   string
	Namespace string
}

func parseImportClause(clause string) importClause {
	var out importClause
	clause = strings.TrimSpace(clause)
	if strings.HasPrefix(clause, "{") {
		inner := strings.Trim(clause, "{}")
		for _, part := range strings.Split(inner, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out.Named = append(out.Named, part)
			}
		}
		return out
	}
	if strings.Contains(clause, "* as ") {
		parts := strings.SplitN(clause, "* as ", 2)
		out.Namespace = strings.TrimSpace(parts[len(parts)-1])
		return out
	}
	if idx := strings.Index(clause, ","); idx >= 0 {
		out.Default = strings.TrimSpace(clause[:idx])
		rest := strings.TrimSpace(clause[idx+1:])
		if strings.HasPrefix(rest, "{") {
			inner := strings.Trim(rest, "{}")
			for _, part := range strings.Split(inner, ",") {
				if part = strings.TrimSpace(part); part != "" {
					out.Named = append(out.Named, part)
				}
			}
		}
		return out
	}
	out.Default = clause
	return out
}

func (r *Result) appendImport(relPath, enclosingID, specifier string, pos int, clause importClause) {
	moduleID := contentID("module", "", specifier, 0)
	already := false
	for _, n := range r.Nodes {
		if n.ID == moduleID {
			already = true
			break
		}
	}
	if !already {
		r.Nodes = append(r.Nodes, sqlite.Node{ID: moduleID, Path: nil, Kind: sqlite.NodeModule, Name: specifier})
	}

	metadata := map[string]any{"specifier": specifier}
	if len(clause.Named) > 0 {
		metadata["namedImports"] = clause.Named
	}
	if clause.Default != "" {
		metadata["defaultImport"] = clause.Default
	}
	if clause.Namespace != "" {
		metadata["namespaceImport"] = clause.Namespace
	}

	edgeID := contentID("imports", enclosingID, moduleID, 0)
	r.Edges = append(r.Edges, sqlite.Edge{
		ID: edgeID, SourceID: enclosingID, TargetID: moduleID, Type: sqlite.EdgeImports,
		SourcePath: &relPath, Metadata: metadata,
	})
}

func (r *Result) appendCall(relPath, enclosingID, callee string, pos int) {
	symbolID := contentID("symbol", "", callee, 0)
	found := false
	for _, n := range r.Nodes {
		if n.ID == symbolID {
			found = true
			break
		}
	}
	if !found {
		r.Nodes = append(r.Nodes, sqlite.Node{ID: symbolID, Path: nil, Kind: sqlite.NodeSymbol, Name: callee})
	}

	edgeID := contentID("calls", enclosingID, symbolID)
	r.Edges = append(r.Edges, sqlite.Edge{
		ID: edgeID, SourceID: enclosingID, TargetID: symbolID, Type: sqlite.EdgeCalls,
		SourcePath: &relPath,
	})
}

func newNode(kind sqlite.NodeKind, path, scopedName, name string, signature *string, start, end int) sqlite.Node {
	id := contentID(string(kind), path, scopedName, start)
	s, e := start, end
	return sqlite.Node{
		ID: id, Path: &path, Kind: kind, Name: name, Signature: signature,
		RangeStart: &s, RangeEnd: &e,
	}
}

// contentID hashes [kind, path, scopedName, position] (or for edges,
// [type, sourceID, targetID]) with SHA-256, per spec.md §3/§4.C7's
// content-stable id requirement.
func contentID(parts ...interface{}) string {
	h := sha256.New()
	for _, p := range parts {
		switch v := p.(type) {
		case string:
			h.Write([]byte(v))
		case int:
			h.Write([]byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)})
		}
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
