package mcpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
	"github.com/kirillkom/wheel-rag/internal/core/ports"
)

const defaultTopK = 5

// Server exposes the wheel operations as MCP tools.
type Server struct {
	wheel  ports.WheelService
	logger *slog.Logger
	mcp    *server.MCPServer
}

func NewServer(wheel ports.WheelService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	info := wheel.Info()
	s := &Server{
		wheel:  wheel,
		logger: logger,
		mcp: server.NewMCPServer(
			info.Name,
			info.Version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
	}
	s.registerTools()
	return s
}

func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// ServeStdio blocks serving JSON-RPC over stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() {
	modeOption := mcp.WithString("mode",
		mcp.Description("Processing mode: efficiency, balanced or precision. Defaults to the current mode."),
	)

	s.mcp.AddTool(mcp.NewTool("document_ingestion",
		mcp.WithDescription("Extract, chunk, embed and index a document from a local path."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the document on the server.")),
		modeOption,
	), s.documentIngestion)

	s.mcp.AddTool(mcp.NewTool("semantic_search",
		mcp.WithDescription("Retrieve the chunks most relevant to a query."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Natural language query.")),
		mcp.WithNumber("top_k", mcp.Description("Number of results, 1 to 50."), mcp.Min(1), mcp.Max(50)),
		mcp.WithBoolean("explain", mcp.Description("Attach a retrieval explanation.")),
		modeOption,
	), s.semanticSearch)

	s.mcp.AddTool(mcp.NewTool("text_extraction",
		mcp.WithDescription("Extract plain text from a document without indexing it."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the document on the server.")),
		modeOption,
	), s.textExtraction)

	s.mcp.AddTool(mcp.NewTool("mode_switch",
		mcp.WithDescription("Change the default processing mode."),
		mcp.WithString("mode", mcp.Required(), mcp.Enum(modeNames()...)),
	), s.modeSwitch)

	s.mcp.AddTool(mcp.NewTool("system_health",
		mcp.WithDescription("Report component health of the system."),
	), s.systemHealth)
}

func (s *Server) documentIngestion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := s.wheel.ProcessDocument(ctx, path, map[string]any{"origin": "mcp"}, req.GetString("mode", ""))
	if err != nil {
		return s.toolError("document_ingestion", err), nil
	}
	res := jsonResult(result)
	res.IsError = result.Status != domain.ProcessSucceeded
	return res, nil
}

func (s *Server) semanticSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	resp, err := s.wheel.Query(ctx, domain.QueryRequest{
		Query:   query,
		TopK:    req.GetInt("top_k", defaultTopK),
		Mode:    req.GetString("mode", ""),
		Explain: req.GetBool("explain", false),
	})
	if err != nil {
		return s.toolError("semantic_search", err), nil
	}
	res := jsonResult(resp)
	res.IsError = resp.Degraded()
	return res, nil
}

func (s *Server) textExtraction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := s.wheel.ExtractText(ctx, path, req.GetString("mode", ""))
	if err != nil {
		return s.toolError("text_extraction", err), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) modeSwitch(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mode, err := req.RequireString("mode")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cfg, err := s.wheel.SwitchMode(mode)
	if err != nil {
		return s.toolError("mode_switch", err), nil
	}
	return jsonResult(map[string]any{
		"status":       "success",
		"current_mode": cfg.Mode,
		"strategy":     cfg.Retrieval.Strategy,
	}), nil
}

func (s *Server) systemHealth(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	healthy, components := s.wheel.Health(ctx)
	status := "healthy"
	if !healthy {
		status = "degraded"
	}
	return jsonResult(map[string]any{
		"status":       status,
		"components":   components,
		"current_mode": s.wheel.CurrentMode().Mode,
		"timestamp":    time.Now().UTC(),
	}), nil
}

func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	s.logger.Warn("mcp_tool_failed", "tool", tool, "error", err)
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) *mcp.CallToolResult {
	raw, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError("encode result: " + err.Error())
	}
	return mcp.NewToolResultText(string(raw))
}

func modeNames() []string {
	modes := domain.AllModes()
	out := make([]string, 0, len(modes))
	for _, m := range modes {
		out = append(out, string(m))
	}
	return out
}
