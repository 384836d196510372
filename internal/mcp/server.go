package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/mosif16/index-mcp/internal/config"
	"github.com/mosif16/index-mcp/internal/embedding"
	"github.com/mosif16/index-mcp/internal/indexmcperr"
	"github.com/mosif16/index-mcp/internal/observability"
	"github.com/mosif16/index-mcp/internal/protocol"
)

// Server dispatches JSON-RPC tool calls to index-mcp's internal packages.
// It carries no workspace state of its own — every tool call resolves its
// own root from the call's own arguments/meta/headers (spec.md §4.C1), so
// one Server instance safely serves concurrent callers across workspaces.
type Server struct {
	Config       *config.Config
	Embedder     *embedding.Embedder
	Logger       *observability.Logger
	ErrorHandler *observability.ErrorHandler
	Metrics      *observability.MetricsCollector
	Tracer       *observability.TracerProvider

	jsonrpcSrv *protocol.Server
}

// NewServer wires a Server to a JSON-RPC stdio transport. metrics and
// tracer may both be nil; every call site guards against it.
func NewServer(reader io.Reader, writer io.Writer, cfg *config.Config, embedder *embedding.Embedder, logger *observability.Logger, metrics *observability.MetricsCollector, tracer *observability.TracerProvider) *Server {
	s := &Server{
		Config:       cfg,
		Embedder:     embedder,
		Logger:       logger,
		Metrics:      metrics,
		Tracer:       tracer,
		ErrorHandler: observability.NewErrorHandler(logger, metrics, cfg.Observability.Sentry.Enabled),
	}
	s.jsonrpcSrv = protocol.NewServer(reader, writer, s)
	return s
}

// Handle implements protocol.Handler.
func (s *Server) Handle(method string, params json.RawMessage) (interface{}, error) {
	ctx := context.Background()

	switch method {
	case "initialize":
		return s.handleInitialize(ctx)
	case "tools/list":
		return map[string]interface{}{"tools": GetToolDefinitions()}, nil
	case "tools/call":
		return s.handleToolsCall(ctx, params)
	default:
		return nil, &protocol.Error{Code: protocol.MethodNotFound, Message: fmt.Sprintf("method not found: %s", method)}
	}
}

// Serve starts the MCP server (blocking).
func (s *Server) Serve() error {
	return s.jsonrpcSrv.Serve()
}

// Close releases resources held by the server (cached embedding pipelines,
// the OTLP tracer's batch exporter).
func (s *Server) Close() error {
	if s.Embedder != nil {
		s.Embedder.Clear()
	}
	if s.Tracer != nil {
		return s.Tracer.Shutdown(context.Background())
	}
	return nil
}

func (s *Server) handleInitialize(ctx context.Context) (interface{}, error) {
	info, _ := s.handleInfo(ctx, nil)
	return map[string]interface{}{
		"protocolVersion": "2024-11-05",
		"serverInfo":      map[string]interface{}{"name": "index-mcp", "version": serverVersion},
		"capabilities":    map[string]interface{}{"tools": map[string]interface{}{}},
		"info":            info,
	}, nil
}

type toolCallRequest struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func (s *Server) handleToolsCall(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var req toolCallRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, &protocol.Error{Code: protocol.InvalidParams, Message: fmt.Sprintf("invalid parameters: %v", err)}
	}

	var a args
	if len(req.Arguments) > 0 {
		if err := json.Unmarshal(req.Arguments, &a); err != nil {
			return nil, &protocol.Error{Code: protocol.InvalidParams, Message: fmt.Sprintf("invalid tool arguments: %v", err)}
		}
	}

	start := time.Now()
	if s.Metrics != nil {
		s.Metrics.TrackMCPInFlight(req.Name, 1)
		defer s.Metrics.TrackMCPInFlight(req.Name, -1)
	}
	if s.Tracer != nil {
		var span trace.Span
		ctx, span = observability.InstrumentMCPRequest(ctx, s.Tracer.Tracer(), req.Name)
		defer span.End()
	}

	var (
		result interface{}
		err    error
	)
	switch req.Name {
	case ToolIngestCodebase:
		result, err = s.handleIngestCodebase(ctx, a)
	case ToolSemanticSearch:
		result, err = s.handleSemanticSearch(ctx, a)
	case ToolContextBundle:
		result, err = s.handleContextBundle(ctx, a)
	case ToolGraphNeighbors:
		result, err = s.handleGraphNeighbors(ctx, a)
	case ToolCodeLookup:
		result, err = s.handleCodeLookup(ctx, a)
	case ToolIndexStatus:
		result, err = s.handleIndexStatus(ctx, a)
	case ToolInfo:
		result, err = s.handleInfo(ctx, a)
	case ToolIndexingGuidance:
		result, err = s.handleIndexingGuidance(ctx, a)
	default:
		return nil, &protocol.Error{Code: protocol.MethodNotFound, Message: fmt.Sprintf("unknown tool: %s", req.Name)}
	}

	if err != nil {
		if s.Metrics != nil {
			s.Metrics.RecordMCPRequest(req.Name, "error", time.Since(start))
		}
		observability.SetSpanError(ctx, err)
		s.ErrorHandler.HandleError(ctx, err, observability.ExtractErrorContext(ctx, req.Name))
		return nil, mapToolError(req.Name, err)
	}
	if s.Metrics != nil {
		s.Metrics.RecordMCPRequest(req.Name, "success", time.Since(start))
	}
	return result, nil
}

// mapToolError maps an indexmcperr.Kind to a JSON-RPC error code, carrying
// the richer kind/tool/message triple in Data for callers that want it.
func mapToolError(tool string, err error) *protocol.Error {
	code := protocol.InternalError
	var mcpErr *indexmcperr.Error
	if errors.As(err, &mcpErr) && mcpErr.Kind == indexmcperr.InvalidInput {
		code = protocol.InvalidParams
	}
	data, _ := json.Marshal(toolError(err))
	return &protocol.Error{Code: code, Message: fmt.Sprintf("%s: %v", tool, err), Data: data}
}
