package mcp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetToolDefinitions_AllEightToolsPresent(t *testing.T) {
	defs := GetToolDefinitions()
	names := make([]string, 0, len(defs))
	for _, d := range defs {
		names = append(names, d.Name)
	}
	assert.ElementsMatch(t, []string{
		ToolIngestCodebase, ToolSemanticSearch, ToolContextBundle, ToolGraphNeighbors,
		ToolCodeLookup, ToolIndexStatus, ToolInfo, ToolIndexingGuidance,
	}, names)
}

func TestGetToolDefinitions_SchemasAreValidJSON(t *testing.T) {
	for _, d := range GetToolDefinitions() {
		var v map[string]interface{}
		require.NoErrorf(t, json.Unmarshal(d.InputSchema, &v), "tool %s has invalid inputSchema JSON", d.Name)
	}
}

func requiredFields(t *testing.T, d ToolDefinition) []string {
	t.Helper()
	var schema struct {
		Required []string `json:"required"`
	}
	require.NoError(t, json.Unmarshal(d.InputSchema, &schema))
	return schema.Required
}

func TestGetToolDefinitions_SemanticSearchRequiresQuery(t *testing.T) {
	for _, d := range GetToolDefinitions() {
		if d.Name == ToolSemanticSearch {
			assert.Contains(t, requiredFields(t, d), "query")
			return
		}
	}
	t.Fatal("semantic_search definition not found")
}

func TestGetToolDefinitions_ContextBundleRequiresFile(t *testing.T) {
	for _, d := range GetToolDefinitions() {
		if d.Name == ToolContextBundle {
			assert.Contains(t, requiredFields(t, d), "file")
			return
		}
	}
	t.Fatal("context_bundle definition not found")
}
