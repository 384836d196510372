// Package mcp implements the Model Context Protocol server that exposes
// index-mcp's ingest/search/bundle/graph/status tools over JSON-RPC/stdio.
package mcp

import "encoding/json"

// Tool names exposed by the MCP server, matching spec.md §6's list.
const (
	ToolIngestCodebase    = "ingest_codebase"
	ToolSemanticSearch    = "semantic_search"
	ToolContextBundle     = "context_bundle"
	ToolGraphNeighbors    = "graph_neighbors"
	ToolCodeLookup        = "code_lookup"
	ToolIndexStatus       = "index_status"
	ToolInfo              = "info"
	ToolIndexingGuidance  = "indexing_guidance"
)

// ToolDefinition is one MCP tools/list entry.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

const rootSchemaProps = `
		"root": {"type": "string", "description": "Workspace root. Aliases: path, project_path, workspace_root. Omit to use the caller's cwd hint."},
		"path": {"type": "string"},
		"project_path": {"type": "string"},
		"workspace_root": {"type": "string"},
		"database_name": {"type": "string", "description": "Aliases: databaseName, database, db. Default .mcp-index.sqlite"},
		"databaseName": {"type": "string"},
		"database": {"type": "string"},
		"db": {"type": "string"}`

// GetToolDefinitions returns all tool definitions for the MCP server.
func GetToolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        ToolIngestCodebase,
			Description: "Ingests (or incrementally re-ingests) a workspace into the local SQLite index: walks files, chunks and embeds their content, extracts a symbol/call graph, and commits one write transaction.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {` + rootSchemaProps + `,
					"include": {"type": "array", "items": {"type": "string"}, "description": "Aliases: include_globs, globs"},
					"include_globs": {"type": "array", "items": {"type": "string"}},
					"globs": {"type": "array", "items": {"type": "string"}},
					"exclude": {"type": "array", "items": {"type": "string"}, "description": "Aliases: exclude_globs"},
					"exclude_globs": {"type": "array", "items": {"type": "string"}},
					"paths": {"type": "array", "items": {"type": "string"}, "description": "Explicit targets to (re)ingest. Aliases: changed_paths, files"},
					"changed_paths": {"type": "array", "items": {"type": "string"}},
					"files": {"type": "array", "items": {"type": "string"}},
					"max_file_size_bytes": {"type": "integer"},
					"store_content": {"type": "boolean"},
					"chunk_size_tokens": {"type": "integer"},
					"overlap_tokens": {"type": "integer"},
					"embedding_provider": {"type": "string"},
					"embedding_model": {"type": "string"},
					"embedding_dimensions": {"type": "integer"},
					"max_db_size_bytes": {"type": "integer"}
				}
			}`),
		},
		{
			Name:        ToolSemanticSearch,
			Description: "Embeds a natural-language query and ranks indexed code chunks by a blend of cosine similarity and BM25 full-text relevance.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {` + rootSchemaProps + `,
					"query": {"type": "string", "description": "Aliases: text, search_query"},
					"text": {"type": "string"},
					"search_query": {"type": "string"},
					"limit": {"type": "integer", "default": 8, "maximum": 50},
					"top_k": {"type": "integer"},
					"model": {"type": "string", "description": "Required when the index has more than one embedding_model present."}
				},
				"required": ["query"]
			}`),
		},
		{
			Name:        ToolContextBundle,
			Description: "Assembles a token-budgeted bundle for one file: its definitions, an optional focused symbol, graph neighbors, and the most relevant content snippets.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {` + rootSchemaProps + `,
					"file": {"type": "string", "description": "Aliases: path (when root is also given), file_path"},
					"file_path": {"type": "string"},
					"symbol": {"type": "object", "properties": {"name": {"type": "string"}, "kind": {"type": "string"}, "path": {"type": "string"}}},
					"symbol_name": {"type": "string", "description": "Shorthand for symbol.name"},
					"max_snippets": {"type": "integer", "default": 3, "maximum": 10},
					"max_neighbors": {"type": "integer", "default": 12, "maximum": 50},
					"budget_tokens": {"type": "integer", "default": 3000, "minimum": 500}
				},
				"required": ["file"]
			}`),
		},
		{
			Name:        ToolGraphNeighbors,
			Description: "Resolves a graph node by id or (name, kind, path) and returns its incoming/outgoing call or import edges.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {` + rootSchemaProps + `,
					"node": {"type": "object", "properties": {"id": {"type": "string"}, "name": {"type": "string"}, "kind": {"type": "string"}, "path": {"type": "string"}}},
					"id": {"type": "string", "description": "Shorthand for node.id"},
					"name": {"type": "string", "description": "Shorthand for node.name"},
					"kind": {"type": "string"},
					"direction": {"type": "string", "enum": ["incoming", "outgoing", "both"], "default": "outgoing"},
					"limit": {"type": "integer", "default": 16, "minimum": 1, "maximum": 100}
				}
			}`),
		},
		{
			Name:        ToolCodeLookup,
			Description: "Routing wrapper over semantic_search/context_bundle/graph_neighbors: infers mode from which arguments are present (query→search, file→bundle, node/symbol→graph) when mode is omitted.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {` + rootSchemaProps + `,
					"mode": {"type": "string", "enum": ["search", "bundle", "graph"]},
					"query": {"type": "string"},
					"file": {"type": "string"},
					"node": {"type": "object"},
					"symbol": {"type": "object"},
					"limit": {"type": "integer"},
					"max_snippets": {"type": "integer"},
					"max_neighbors": {"type": "integer"},
					"budget_tokens": {"type": "integer"},
					"direction": {"type": "string"}
				}
			}`),
		},
		{
			Name:        ToolIndexStatus,
			Description: "Reports whether a workspace has an index, its row counts and embedding models, recent ingestion history, and whether the stored commit SHA is stale against current git HEAD.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {` + rootSchemaProps + `,
					"history_limit": {"type": "integer", "default": 5, "maximum": 25}
				}
			}`),
		},
		{
			Name:        ToolInfo,
			Description: "Returns server name/version, native-module status, and an environment summary.",
			InputSchema: json.RawMessage(`{"type": "object", "properties": {}}`),
		},
		{
			Name:        ToolIndexingGuidance,
			Description: "Static guidance text telling the calling agent when it should re-run ingest_codebase.",
			InputSchema: json.RawMessage(`{"type": "object", "properties": {}}`),
		},
	}
}
