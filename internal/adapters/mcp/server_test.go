package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
)

type wheelFake struct {
	current   domain.Mode
	lastQuery domain.QueryRequest
	queryResp domain.QueryResponse
	process   domain.ProcessResult
	extracted string
	healthy   bool
}

func (f *wheelFake) ProcessDocument(context.Context, string, map[string]any, string) (domain.ProcessResult, error) {
	return f.process, nil
}

func (f *wheelFake) ExtractText(_ context.Context, path, _ string) (string, error) {
	if strings.HasSuffix(path, ".xyz") {
		return "", domain.WrapError(domain.ErrUnsupportedFormat, "extract text", errors.New(path))
	}
	return f.extracted, nil
}

func (f *wheelFake) GetDocument(context.Context, string) (*domain.DocumentRecord, error) {
	return nil, domain.ErrDocumentNotFound
}

func (f *wheelFake) Query(_ context.Context, req domain.QueryRequest) (domain.QueryResponse, error) {
	f.lastQuery = req
	return f.queryResp, nil
}

func (f *wheelFake) SwitchMode(raw string) (domain.ModeConfig, error) {
	mode, err := domain.ParseMode(raw)
	if err != nil {
		return domain.ModeConfig{}, err
	}
	f.current = mode
	return domain.DefaultModeConfigs()[mode], nil
}

func (f *wheelFake) CurrentMode() domain.ModeConfig { return domain.DefaultModeConfigs()[f.current] }
func (f *wheelFake) Modes() []domain.ModeConfig { return nil }
func (f *wheelFake) Health(context.Context) (bool, map[string]bool) {
	return f.healthy, map[string]bool{"database": f.healthy}
}
func (f *wheelFake) Metrics() map[string]any { return nil }
func (f *wheelFake) ModeComparison() map[string]any { return nil }
func (f *wheelFake) ClearCache(context.Context) error {
	return nil
}
func (f *wheelFake) Info() domain.SystemInfo {
	return domain.SystemInfo{Name: "wheel-rag", Version: "test"}
}

func newTestServer(wheel *wheelFake) *Server {
	if wheel.current == "" {
		wheel.current = domain.ModeBalanced
	}
	return NewServer(wheel, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Name: name, Arguments: args}}
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatalf("empty tool result")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content type %T", res.Content[0])
	}
	return text.Text
}

func TestToolsAreRegistered(t *testing.T) {
	s := newTestServer(&wheelFake{})
	msg := s.MCPServer().HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	for _, name := range []string{"document_ingestion", "semantic_search", "text_extraction", "mode_switch", "system_health"} {
		if !strings.Contains(string(raw), `"`+name+`"`) {
			t.Fatalf("tool %s not listed in %s", name, raw)
		}
	}
}

func TestSemanticSearchForwardsArguments(t *testing.T) {
	wheel := &wheelFake{queryResp: domain.QueryResponse{Mode: domain.ModePrecision, Results: []domain.RetrievalResult{{Rank: 1, Text: "hit"}}, Count: 1}}
	s := newTestServer(wheel)

	res, err := s.semanticSearch(context.Background(), callRequest("semantic_search", map[string]any{
		"query": "acme revenue",
		"top_k": float64(3),
		"mode":  "precision",
	}))
	if err != nil {
		t.Fatalf("semanticSearch() error = %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error %s", resultText(t, res))
	}
	if wheel.lastQuery.TopK != 3 || wheel.lastQuery.Mode != "precision" {
		t.Fatalf("unexpected forwarded query %+v", wheel.lastQuery)
	}
	var resp domain.QueryResponse
	if err := json.Unmarshal([]byte(resultText(t, res)), &resp); err != nil || resp.Count != 1 {
		t.Fatalf("unexpected payload %s (%v)", resultText(t, res), err)
	}
}

func TestSemanticSearchDefaultsAndDegraded(t *testing.T) {
	wheel := &wheelFake{queryResp: domain.QueryResponse{Error: "embed query: down", Results: []domain.RetrievalResult{}}}
	s := newTestServer(wheel)

	res, _ := s.semanticSearch(context.Background(), callRequest("semantic_search", map[string]any{"query": "q"}))
	if wheel.lastQuery.TopK != defaultTopK {
		t.Fatalf("expected default top_k, got %d", wheel.lastQuery.TopK)
	}
	if !res.IsError {
		t.Fatalf("degraded response must be flagged as a tool error")
	}

	res, _ = s.semanticSearch(context.Background(), callRequest("semantic_search", map[string]any{}))
	if !res.IsError {
		t.Fatalf("missing query must be a tool error")
	}
}

func TestDocumentIngestionFlagsFailures(t *testing.T) {
	wheel := &wheelFake{process: domain.ProcessResult{Status: domain.ProcessFailed, Error: "unsupported file type"}}
	s := newTestServer(wheel)

	res, _ := s.documentIngestion(context.Background(), callRequest("document_ingestion", map[string]any{"path": "/tmp/a.xyz"}))
	if !res.IsError || !strings.Contains(resultText(t, res), "unsupported file type") {
		t.Fatalf("expected failed ingestion result, got %+v", res)
	}

	wheel.process = domain.ProcessResult{Status: domain.ProcessSucceeded, DocumentID: "abc", ChunksCount: 2}
	res, _ = s.documentIngestion(context.Background(), callRequest("document_ingestion", map[string]any{"path": "/tmp/a.txt"}))
	if res.IsError || !strings.Contains(resultText(t, res), `"document_id":"abc"`) {
		t.Fatalf("expected successful ingestion, got %s", resultText(t, res))
	}
}

func TestTextExtraction(t *testing.T) {
	s := newTestServer(&wheelFake{extracted: "hello"})

	res, _ := s.textExtraction(context.Background(), callRequest("text_extraction", map[string]any{"path": "/tmp/a.txt"}))
	if res.IsError || resultText(t, res) != "hello" {
		t.Fatalf("unexpected extraction result %+v", res)
	}
	res, _ = s.textExtraction(context.Background(), callRequest("text_extraction", map[string]any{"path": "/tmp/a.xyz"}))
	if !res.IsError {
		t.Fatalf("unsupported format must be a tool error")
	}
}

func TestModeSwitchAndHealth(t *testing.T) {
	wheel := &wheelFake{healthy: false}
	s := newTestServer(wheel)

	res, _ := s.modeSwitch(context.Background(), callRequest("mode_switch", map[string]any{"mode": "efficiency"}))
	if res.IsError || wheel.current != domain.ModeEfficiency {
		t.Fatalf("expected switch to efficiency, got %+v", res)
	}
	res, _ = s.modeSwitch(context.Background(), callRequest("mode_switch", map[string]any{"mode": "turbo"}))
	if !res.IsError || wheel.current != domain.ModeEfficiency {
		t.Fatalf("unknown mode must be rejected")
	}

	res, _ = s.systemHealth(context.Background(), callRequest("system_health", nil))
	var body map[string]any
	if err := json.Unmarshal([]byte(resultText(t, res)), &body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if body["status"] != "degraded" || body["current_mode"] != "efficiency" {
		t.Fatalf("unexpected health %v", body)
	}
}
