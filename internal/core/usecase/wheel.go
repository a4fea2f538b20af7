package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
	"github.com/kirillkom/wheel-rag/internal/core/ports"
)

const maxTopK = 50

var (
	_ ports.WheelService      = (*WheelSystem)(nil)
	_ ports.IngestTaskService = (*IngestTaskService)(nil)
	_ ports.ExperimentService = (*ABTestFramework)(nil)
)

type WheelDeps struct {
	Registry    *domain.ModeRegistry
	DefaultMode domain.Mode
	Processor   *DocumentProcessor
	Pipeline    *DataProcessingPipeline
	Retrieval   *RetrievalEngine
	Embeddings  *EmbeddingService
	Documents   ports.DocumentRepository
	Vectors     ports.VectorStore
	Cache       ports.Cache
	Metrics     *MetricsCollector
	Info        domain.SystemInfo
	Logger      *slog.Logger
}

// WheelSystem composes the pipeline and the retrieval engine. The current
// mode is only a default: each call resolves its own ModeConfig snapshot, so
// a concurrent SwitchMode never changes an operation already in flight.
type WheelSystem struct {
	registry   *domain.ModeRegistry
	processor  *DocumentProcessor
	pipeline   *DataProcessingPipeline
	retrieval  *RetrievalEngine
	embeddings *EmbeddingService
	documents  ports.DocumentRepository
	vectors    ports.VectorStore
	cache      ports.Cache
	metrics    *MetricsCollector
	info       domain.SystemInfo
	logger     *slog.Logger

	mu      sync.RWMutex
	current domain.Mode
}

func NewWheelSystem(deps WheelDeps) (*WheelSystem, error) {
	if deps.Registry == nil {
		return nil, domain.WrapError(domain.ErrConfig, "new wheel system", errors.New("mode registry is required"))
	}
	if _, err := deps.Registry.Get(deps.DefaultMode); err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &WheelSystem{
		registry:   deps.Registry,
		processor:  deps.Processor,
		pipeline:   deps.Pipeline,
		retrieval:  deps.Retrieval,
		embeddings: deps.Embeddings,
		documents:  deps.Documents,
		vectors:    deps.Vectors,
		cache:      deps.Cache,
		metrics:    deps.Metrics,
		info:       deps.Info,
		logger:     logger,
		current:    deps.DefaultMode,
	}, nil
}

// ResolveMode maps a raw mode name to a bundle; an empty name selects the
// current default mode.
func (w *WheelSystem) ResolveMode(raw string) (domain.ModeConfig, error) {
	if strings.TrimSpace(raw) == "" {
		return w.CurrentMode(), nil
	}
	cfg, fellBack, err := w.registry.Resolve(raw)
	if err != nil {
		return domain.ModeConfig{}, err
	}
	if fellBack {
		w.logger.Warn("mode_fallback", "requested", raw, "mode", cfg.Mode)
	}
	return cfg, nil
}

func (w *WheelSystem) ProcessDocument(ctx context.Context, path string, metadata map[string]any, mode string) (domain.ProcessResult, error) {
	cfg, err := w.ResolveMode(mode)
	if err != nil {
		return domain.ProcessResult{}, err
	}
	return w.pipeline.Process(ctx, path, metadata, cfg), nil
}

func (w *WheelSystem) ExtractText(ctx context.Context, path string, mode string) (string, error) {
	cfg, err := w.ResolveMode(mode)
	if err != nil {
		return "", err
	}
	return w.processor.Extract(ctx, path, cfg)
}

func (w *WheelSystem) GetDocument(ctx context.Context, id string) (*domain.DocumentRecord, error) {
	return w.documents.GetByID(ctx, id)
}

// Query validates the request and returns the engine response. Retrieval
// failures are reported inside the response, not as an error.
func (w *WheelSystem) Query(ctx context.Context, req domain.QueryRequest) (domain.QueryResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return domain.QueryResponse{}, domain.WrapError(domain.ErrInvalidInput, "query", errors.New("query is required"))
	}
	if req.TopK < 0 || req.TopK > maxTopK {
		return domain.QueryResponse{}, domain.WrapError(domain.ErrInvalidInput, "query", fmt.Errorf("top_k must be in [1, %d]", maxTopK))
	}
	cfg, err := w.ResolveMode(req.Mode)
	if err != nil {
		return domain.QueryResponse{}, err
	}
	return w.retrieval.Retrieve(ctx, RetrieveRequest{
		Query:        req.Query,
		TopK:         req.TopK,
		UseReranking: req.UseReranking,
		Explain:      req.Explain,
	}, cfg), nil
}

// SwitchMode changes the default mode. Unknown names are always rejected,
// even when the registry has a fallback.
func (w *WheelSystem) SwitchMode(raw string) (domain.ModeConfig, error) {
	mode, err := domain.ParseMode(raw)
	if err != nil {
		return domain.ModeConfig{}, err
	}
	cfg, err := w.registry.Get(mode)
	if err != nil {
		return domain.ModeConfig{}, err
	}

	w.mu.Lock()
	previous := w.current
	w.current = mode
	w.mu.Unlock()

	w.logger.Info("mode_switched", "from", previous, "to", mode)
	return cfg, nil
}

func (w *WheelSystem) CurrentMode() domain.ModeConfig {
	w.mu.RLock()
	mode := w.current
	w.mu.RUnlock()
	cfg, _ := w.registry.Get(mode)
	return cfg
}

func (w *WheelSystem) Modes() []domain.ModeConfig {
	return w.registry.All()
}

// Health reports per-component status; the system is healthy only when
// every component is.
func (w *WheelSystem) Health(ctx context.Context) (bool, map[string]bool) {
	components := map[string]bool{
		"database":          w.documents != nil && w.documents.Health(ctx) == nil,
		"vector_store":      w.vectors != nil && w.vectors.Health(ctx) == nil,
		"cache":             w.cache != nil && w.cache.Healthy(ctx),
		"embedding_service": w.embeddings != nil && w.embeddings.Health(ctx),
	}
	healthy := true
	for name, ok := range components {
		if !ok {
			healthy = false
			w.logger.Warn("component_unhealthy", "component", name)
		}
	}
	return healthy, components
}

func (w *WheelSystem) Metrics() map[string]any {
	if w.metrics == nil {
		return map[string]any{}
	}
	return w.metrics.Summary()
}

func (w *WheelSystem) ModeComparison() map[string]any {
	if w.metrics == nil {
		return map[string]any{}
	}
	return w.metrics.ModeComparison()
}

func (w *WheelSystem) ClearCache(ctx context.Context) error {
	if w.cache == nil {
		return nil
	}
	if err := w.cache.Clear(ctx); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	w.logger.Info("cache_cleared")
	return nil
}

func (w *WheelSystem) Info() domain.SystemInfo {
	return w.info
}
