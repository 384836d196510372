package mcp

import (
	"strings"

	"github.com/mosif16/index-mcp/internal/resolve"
)

// args is the generic, already-JSON-decoded shape every tool call's
// arguments arrive in. Leniency (spec.md §6: "multiple alias keys for the
// same logical parameter must be accepted") is implemented once here
// rather than per tool.
type args map[string]interface{}

func (a args) str(keys ...string) string {
	for _, k := range keys {
		if v, ok := a[k]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
	}
	return ""
}

func (a args) strDefault(def string, keys ...string) string {
	if v := a.str(keys...); v != "" {
		return v
	}
	return def
}

func (a args) strSlice(keys ...string) []string {
	for _, k := range keys {
		v, ok := a[k]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case []interface{}:
			out := make([]string, 0, len(t))
			for _, e := range t {
				if s, ok := e.(string); ok && s != "" {
					out = append(out, s)
				}
			}
			if len(out) > 0 {
				return out
			}
		case []string:
			if len(t) > 0 {
				return t
			}
		case string:
			if t != "" {
				return []string{t}
			}
		}
	}
	return nil
}

func (a args) intVal(def int, keys ...string) int {
	for _, k := range keys {
		v, ok := a[k]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case float64:
			return int(t)
		case int:
			return t
		}
	}
	return def
}

func (a args) boolVal(def bool, keys ...string) bool {
	for _, k := range keys {
		if v, ok := a[k].(bool); ok {
			return v
		}
	}
	return def
}

func (a args) int64Val(def int64, keys ...string) int64 {
	for _, k := range keys {
		v, ok := a[k]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case float64:
			return int64(t)
		case int64:
			return t
		}
	}
	return def
}

func (a args) object(keys ...string) args {
	for _, k := range keys {
		if v, ok := a[k]; ok {
			if m, ok := v.(map[string]interface{}); ok {
				return args(m)
			}
		}
	}
	return nil
}

func (a args) stringMap(keys ...string) map[string]string {
	for _, k := range keys {
		v, ok := a[k]
		if !ok {
			continue
		}
		m, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		out := make(map[string]string, len(m))
		for key, val := range m {
			if s, ok := val.(string); ok {
				out[key] = s
			}
		}
		return out
	}
	return nil
}

// rootArg, databaseArg and friends are the alias groups spec.md §6 names
// explicitly plus the natural camelCase/snake_case variants an MCP client
// might send.
func (a args) rootArg() string {
	return a.str("root", "path", "project_path", "workspace_root", "projectPath", "workspaceRoot")
}

func (a args) databaseArg() string {
	return a.strDefault(".mcp-index.sqlite", "database_name", "databaseName", "database", "db")
}

func (a args) queryArg() string {
	return a.str("query", "text", "search_query", "searchQuery")
}

func (a args) fileArg() string {
	if f := a.str("file", "file_path", "filePath"); f != "" {
		return f
	}
	if a.str("root", "project_path", "workspace_root", "projectPath", "workspaceRoot") != "" {
		return a.str("path")
	}
	return ""
}

// resolveContext builds a resolve.Context from whatever meta/header hints
// the caller attached to the call, falling back to the process
// environment for env-var hints (spec.md §4.C1).
func (a args) resolveContext() resolve.Context {
	meta := a.stringMap("meta", "_meta")
	headers := a.stringMap("headers", "_headers")
	return resolve.Context{Meta: meta, Headers: headers}
}
