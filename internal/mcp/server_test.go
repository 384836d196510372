package mcp

import (
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mosif16/index-mcp/internal/config"
	"github.com/mosif16/index-mcp/internal/embedding"
	"github.com/mosif16/index-mcp/internal/observability"
	"github.com/mosif16/index-mcp/internal/protocol"
)

func newTestServerForDispatch(t *testing.T, metrics *observability.MetricsCollector) *Server {
	t.Helper()
	cfg := config.Default()
	logger := observability.NewLogger(observability.LoggerConfig{Level: "error", Format: "text", Output: io.Discard})
	return NewServer(strings.NewReader(""), io.Discard, cfg, embedding.NewEmbedder(), logger, metrics, nil)
}

func TestServer_HandleInitialize(t *testing.T) {
	s := newTestServerForDispatch(t, nil)
	result, err := s.Handle("initialize", nil)
	require.NoError(t, err)
	m := result.(map[string]interface{})
	assert.Equal(t, "2024-11-05", m["protocolVersion"])
}

func TestServer_HandleToolsList(t *testing.T) {
	s := newTestServerForDispatch(t, nil)
	result, err := s.Handle("tools/list", nil)
	require.NoError(t, err)
	m := result.(map[string]interface{})
	tools := m["tools"].([]ToolDefinition)
	assert.Len(t, tools, 8)
}

func TestServer_HandleUnknownMethod(t *testing.T) {
	s := newTestServerForDispatch(t, nil)
	_, err := s.Handle("nonexistent/method", nil)
	require.Error(t, err)
	var protoErr *protocol.Error
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, protocol.MethodNotFound, protoErr.Code)
}

func TestServer_HandleToolsCall_UnknownToolReturnsMethodNotFound(t *testing.T) {
	s := newTestServerForDispatch(t, nil)
	params, _ := json.Marshal(toolCallRequest{Name: "no_such_tool"})
	_, err := s.Handle("tools/call", params)
	require.Error(t, err)
	var protoErr *protocol.Error
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, protocol.MethodNotFound, protoErr.Code)
}

func TestServer_HandleToolsCall_InfoSucceeds(t *testing.T) {
	s := newTestServerForDispatch(t, nil)
	params, _ := json.Marshal(toolCallRequest{Name: ToolInfo})
	result, err := s.Handle("tools/call", params)
	require.NoError(t, err)
	m := result.(map[string]interface{})
	assert.Equal(t, "index-mcp", m["name"])
}

func TestServer_HandleToolsCall_InvalidArgumentsIsInvalidParams(t *testing.T) {
	s := newTestServerForDispatch(t, nil)
	params := json.RawMessage(`{"name": "semantic_search", "arguments": "not-an-object"}`)
	_, err := s.Handle("tools/call", params)
	require.Error(t, err)
	var protoErr *protocol.Error
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, protocol.InvalidParams, protoErr.Code)
}

func TestServer_HandleToolsCall_RecordsMetricsOnSuccessAndError(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetricsCollectorWithRegistry("test", reg)
	s := newTestServerForDispatch(t, metrics)

	okParams, _ := json.Marshal(toolCallRequest{Name: ToolInfo})
	_, err := s.Handle("tools/call", okParams)
	require.NoError(t, err)

	badArgs, _ := json.Marshal(map[string]interface{}{"root": t.TempDir(), "query": ""})
	errParams, _ := json.Marshal(toolCallRequest{Name: ToolSemanticSearch, Arguments: badArgs})
	_, err = s.Handle("tools/call", errParams)
	assert.Error(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	counts := map[string]float64{}
	for _, fam := range families {
		if fam.GetName() != "test_mcp_requests_total" {
			continue
		}
		for _, m := range fam.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			counts[labels["method"]+"/"+labels["status"]] = m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 1.0, counts[ToolInfo+"/success"])
	assert.Equal(t, 1.0, counts[ToolSemanticSearch+"/error"])
}
