package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArgs_StrPrefersFirstPresentAlias(t *testing.T) {
	a := args{"path": "/from/path", "project_path": "/from/project_path"}
	assert.Equal(t, "/from/path", a.str("root", "path", "project_path"))
}

func TestArgs_StrSkipsBlankAndFallsThrough(t *testing.T) {
	a := args{"root": "   ", "path": "/from/path"}
	assert.Equal(t, "/from/path", a.str("root", "path"))
}

func TestArgs_StrSliceAcceptsJSONArrayOrBareString(t *testing.T) {
	a := args{"include": []interface{}{"*.go", "*.ts"}}
	assert.Equal(t, []string{"*.go", "*.ts"}, a.strSlice("include"))

	b := args{"exclude": "vendor/**"}
	assert.Equal(t, []string{"vendor/**"}, b.strSlice("exclude"))
}

func TestArgs_IntValCoercesJSONFloat64(t *testing.T) {
	a := args{"limit": float64(25)}
	assert.Equal(t, 25, a.intVal(8, "limit", "top_k"))

	empty := args{}
	assert.Equal(t, 8, empty.intVal(8, "limit", "top_k"))
}

func TestArgs_Int64ValCoercesJSONFloat64(t *testing.T) {
	a := args{"max_file_size_bytes": float64(1048576)}
	assert.Equal(t, int64(1048576), a.int64Val(0, "max_file_size_bytes"))
}

func TestArgs_BoolValReadsFirstMatch(t *testing.T) {
	a := args{"store_content": true}
	assert.True(t, a.boolVal(false, "store_content"))
	assert.False(t, args{}.boolVal(false, "store_content"))
}

func TestArgs_ObjectReturnsNestedArgs(t *testing.T) {
	a := args{"symbol": map[string]interface{}{"name": "Greeter", "kind": "class"}}
	sym := a.object("symbol")
	if assert.NotNil(t, sym) {
		assert.Equal(t, "Greeter", sym.str("name"))
		assert.Equal(t, "class", sym.str("kind"))
	}
	assert.Nil(t, args{}.object("symbol"))
}

func TestArgs_RootArgAndDatabaseArgAliases(t *testing.T) {
	a := args{"workspace_root": "/ws"}
	assert.Equal(t, "/ws", a.rootArg())

	assert.Equal(t, ".mcp-index.sqlite", args{}.databaseArg())
	assert.Equal(t, "custom.sqlite", args{"db": "custom.sqlite"}.databaseArg())
}

func TestArgs_QueryArgAndFileArgAliases(t *testing.T) {
	assert.Equal(t, "how does X work", args{"text": "how does X work"}.queryArg())
	assert.Equal(t, "src/a.go", args{"file_path": "src/a.go"}.fileArg())
}

func TestArgs_ResolveContextReadsMetaAndHeaders(t *testing.T) {
	a := args{
		"meta":    map[string]interface{}{"cwd": "/meta/cwd"},
		"headers": map[string]interface{}{"x-mcp-cwd": "/header/cwd"},
	}
	rc := a.resolveContext()
	assert.Equal(t, "/meta/cwd", rc.Meta["cwd"])
	assert.Equal(t, "/header/cwd", rc.Headers["x-mcp-cwd"])
}
