package httpadapter

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/wheel-rag/internal/config"
	"github.com/kirillkom/wheel-rag/internal/core/domain"
	"github.com/kirillkom/wheel-rag/internal/core/usecase"
	"github.com/kirillkom/wheel-rag/internal/observability/metrics"
)

type wheelFake struct {
	mu sync.Mutex

	current    domain.Mode
	queries    []domain.QueryRequest
	queryResp  domain.QueryResponse
	queryErr   error
	processed  []string
	processRes domain.ProcessResult
	processErr error
	docs       map[string]*domain.DocumentRecord
	healthy    bool
	clearErr   error
	cleared    int
}

func newWheelFake() *wheelFake {
	return &wheelFake{
		current: domain.ModeBalanced,
		healthy: true,
		docs:    map[string]*domain.DocumentRecord{},
	}
}

func (f *wheelFake) ProcessDocument(_ context.Context, path string, _ map[string]any, mode string) (domain.ProcessResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.processErr != nil {
		return domain.ProcessResult{}, f.processErr
	}
	f.processed = append(f.processed, path+"|"+mode)
	return f.processRes, nil
}

func (f *wheelFake) ExtractText(context.Context, string, string) (string, error) {
	return "", nil
}

func (f *wheelFake) GetDocument(_ context.Context, id string) (*domain.DocumentRecord, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New("id="+id))
	}
	return doc, nil
}

func (f *wheelFake) Query(_ context.Context, req domain.QueryRequest) (domain.QueryResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, req)
	if f.queryErr != nil {
		return domain.QueryResponse{}, f.queryErr
	}
	resp := f.queryResp
	resp.Query = req.Query
	return resp, nil
}

func (f *wheelFake) SwitchMode(raw string) (domain.ModeConfig, error) {
	mode, err := domain.ParseMode(raw)
	if err != nil {
		return domain.ModeConfig{}, err
	}
	f.mu.Lock()
	f.current = mode
	f.mu.Unlock()
	return domain.DefaultModeConfigs()[mode], nil
}

func (f *wheelFake) CurrentMode() domain.ModeConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return domain.DefaultModeConfigs()[f.current]
}

func (f *wheelFake) Modes() []domain.ModeConfig {
	out := make([]domain.ModeConfig, 0, 3)
	for _, mode := range domain.AllModes() {
		out = append(out, domain.DefaultModeConfigs()[mode])
	}
	return out
}

func (f *wheelFake) Health(context.Context) (bool, map[string]bool) {
	return f.healthy, map[string]bool{
		"database":          true,
		"vector_store":      f.healthy,
		"cache":             true,
		"embedding_service": true,
	}
}

func (f *wheelFake) Metrics() map[string]any {
	return map[string]any{"balanced": map[string]any{"query": map[string]any{"total": 1}}}
}

func (f *wheelFake) ModeComparison() map[string]any {
	return map[string]any{"balanced": map[string]any{}}
}

func (f *wheelFake) ClearCache(context.Context) error {
	f.cleared++
	return f.clearErr
}

func (f *wheelFake) Info() domain.SystemInfo {
	return domain.SystemInfo{
		Name:              "wheel-rag",
		Version:           "test",
		LLMProvider:       "openai",
		LLMModel:          "gpt-4-turbo",
		VectorBackend:     "local",
		EmbeddingProvider: "local",
		EmbeddingModel:    "sentence-transformers/all-MiniLM-L6-v2",
		CacheEnabled:      true,
		MonitoringEnabled: true,
	}
}

type tasksFake struct {
	stored    map[string]string
	submitted []*domain.IngestTask
	tasks     map[string]*domain.IngestTask
	submitErr error
}

func newTasksFake() *tasksFake {
	return &tasksFake{stored: map[string]string{}, tasks: map[string]*domain.IngestTask{}}
}

func (f *tasksFake) Store(_ context.Context, filename string, body io.Reader) (string, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	path := "/uploads/" + filename
	f.stored[path] = string(raw)
	return path, nil
}

func (f *tasksFake) Submit(_ context.Context, path, filename string, metadata map[string]any, mode string) (*domain.IngestTask, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	resolved := domain.ModeBalanced
	if mode != "" {
		parsed, err := domain.ParseMode(mode)
		if err != nil {
			return nil, err
		}
		resolved = parsed
	}
	now := time.Now().UTC()
	task := &domain.IngestTask{
		ID:        "task-1",
		Status:    domain.TaskQueued,
		Mode:      resolved,
		Filename:  filename,
		Path:      path,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.submitted = append(f.submitted, task)
	f.tasks[task.ID] = task
	return task, nil
}

func (f *tasksFake) Get(_ context.Context, id string) (*domain.IngestTask, error) {
	task, ok := f.tasks[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrTaskNotFound, "get task", errors.New("id="+id))
	}
	return task, nil
}

func (f *tasksFake) Run(context.Context, string) error { return nil }

type routerDeps struct {
	cfg     config.Config
	wheel   *wheelFake
	tasks   *tasksFake
	metrics *metrics.HTTPServerMetrics
}

func newTestRouter(t *testing.T, deps routerDeps) http.Handler {
	t.Helper()
	if deps.wheel == nil {
		deps.wheel = newWheelFake()
	}
	if deps.tasks == nil {
		deps.tasks = newTasksFake()
	}
	router, err := NewRouter(deps.cfg, deps.wheel, deps.tasks, usecase.NewABTestFramework(nil), deps.metrics)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	return router.Handler()
}

func newTestHandler(t *testing.T, cfg config.Config) http.Handler {
	t.Helper()
	return newTestRouter(t, routerDeps{cfg: cfg})
}
