package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/oapi-codegen/runtime"
	"golang.org/x/time/rate"

	"github.com/kirillkom/wheel-rag/internal/config"
	"github.com/kirillkom/wheel-rag/internal/core/domain"
	"github.com/kirillkom/wheel-rag/internal/core/ports"
	"github.com/kirillkom/wheel-rag/internal/observability/metrics"
)

const (
	serviceName     = "api"
	apiBase         = "/api/v1"
	defaultTopK     = 5
	maxTopK         = 50
	maxUploadBytes  = 64 << 20
	maxRequestBytes = 1 << 20
)

type Router struct {
	cfg         config.Config
	wheel       ports.WheelService
	tasks       ports.IngestTaskService
	experiments ports.ExperimentService
	metrics     *metrics.HTTPServerMetrics
	validator   *requestValidator
	limiter     *rate.Limiter
}

// NewRouter builds the REST facade. httpMetrics may be nil, which disables
// /metrics and request instrumentation.
func NewRouter(
	cfg config.Config,
	wheel ports.WheelService,
	tasks ports.IngestTaskService,
	experiments ports.ExperimentService,
	httpMetrics *metrics.HTTPServerMetrics,
) (*Router, error) {
	validator, err := newRequestValidator()
	if err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}

	return &Router{
		cfg:         cfg,
		wheel:       wheel,
		tasks:       tasks,
		experiments: experiments,
		metrics:     httpMetrics,
		validator:   validator,
		limiter:     limiter,
	}, nil
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", rt.root)
	mux.HandleFunc("GET /health", rt.health)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	mux.HandleFunc("POST "+apiBase+"/documents/upload", rt.uploadDocument)
	mux.HandleFunc("GET "+apiBase+"/documents/{id}", rt.getDocument)
	mux.HandleFunc("GET "+apiBase+"/tasks/{id}", rt.getTask)

	mux.HandleFunc("POST "+apiBase+"/query", rt.query)
	mux.HandleFunc("POST "+apiBase+"/query/stream", rt.queryStream)

	mux.HandleFunc("GET "+apiBase+"/modes", rt.listModes)
	mux.HandleFunc("GET "+apiBase+"/mode/current", rt.currentMode)
	mux.HandleFunc("POST "+apiBase+"/mode/switch", rt.switchMode)

	mux.HandleFunc("GET "+apiBase+"/metrics", rt.getMetrics)
	mux.HandleFunc("GET "+apiBase+"/metrics/summary", rt.getMetricsSummary)
	mux.HandleFunc("GET "+apiBase+"/config", rt.getConfig)
	mux.HandleFunc("POST "+apiBase+"/admin/clear-cache", rt.clearCache)
	mux.HandleFunc("GET "+apiBase+"/admin/stats", rt.stats)

	mux.HandleFunc("POST "+apiBase+"/experiments", rt.createExperiment)
	mux.HandleFunc("GET "+apiBase+"/experiments/{id}", rt.experimentResults)
	mux.HandleFunc("POST "+apiBase+"/experiments/{id}/results", rt.recordExperimentResult)

	var handler http.Handler = rt.validator.Middleware(mux)
	handler = backpressureMiddleware(handler, rt.cfg.MaxInFlight, rt.cfg.MaxInFlightWait, rt.recordRejection)
	handler = rateLimitMiddleware(handler, rt.limiter, rt.recordRejection)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) recordRejection(reason string) {
	if rt.metrics != nil {
		rt.metrics.RecordRejected(serviceName, reason)
	}
}

func (rt *Router) root(w http.ResponseWriter, _ *http.Request) {
	info := rt.wheel.Info()
	writeJSON(w, http.StatusOK, map[string]any{
		"name":         info.Name,
		"version":      info.Version,
		"status":       "running",
		"current_mode": rt.wheel.CurrentMode().Mode,
		"api_base":     apiBase,
	})
}

type healthResponse struct {
	Status     string          `json:"status"`
	Components map[string]bool `json:"components"`
	Timestamp  time.Time       `json:"timestamp"`
}

func (rt *Router) healthReport(r *http.Request) (healthResponse, bool) {
	healthy, components := rt.wheel.Health(r.Context())
	status := "healthy"
	if !healthy {
		status = "degraded"
	}
	return healthResponse{Status: status, Components: components, Timestamp: time.Now().UTC()}, healthy
}

func (rt *Router) health(w http.ResponseWriter, r *http.Request) {
	report, healthy := rt.healthReport(r)
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

type uploadParams struct {
	Mode  *string
	Async *bool
}

type uploadResponse struct {
	Status      string  `json:"status"`
	DocumentID  *string `json:"document_id"`
	TaskID      string  `json:"task_id,omitempty"`
	Message     string  `json:"message"`
	ChunksCount int     `json:"chunks_count"`
	Error       string  `json:"error,omitempty"`
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	var params uploadParams
	if err := runtime.BindQueryParameter("form", true, false, "mode", r.URL.Query(), &params.Mode); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid mode parameter: %v", err)})
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "async", r.URL.Query(), &params.Async); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid async parameter: %v", err)})
		return
	}
	mode := ""
	if params.Mode != nil {
		mode = *params.Mode
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	path, err := rt.tasks.Store(r.Context(), fileHeader.Filename, file)
	if err != nil {
		writeError(w, err)
		return
	}
	metadata := map[string]any{
		"filename":     fileHeader.Filename,
		"content_type": fileHeader.Header.Get("Content-Type"),
		"uploaded_at":  time.Now().UTC().Format(time.RFC3339),
	}

	if params.Async != nil && *params.Async {
		task, err := rt.tasks.Submit(r.Context(), path, fileHeader.Filename, metadata, mode)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set(modeHeader, string(task.Mode))
		writeJSON(w, http.StatusAccepted, uploadResponse{
			Status:  "processing",
			TaskID:  task.ID,
			Message: "document uploaded, processing started",
		})
		return
	}

	result, err := rt.wheel.ProcessDocument(r.Context(), path, metadata, mode)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set(modeHeader, string(result.Mode))
	if rt.metrics != nil {
		rt.metrics.RecordDocument(serviceName, string(result.Mode), string(result.Status), result.ChunksCount)
	}

	resp := uploadResponse{
		Status:      string(result.Status),
		Message:     "document processed",
		ChunksCount: result.ChunksCount,
		Error:       result.Error,
	}
	if result.Status != domain.ProcessSucceeded {
		resp.Message = "document processing failed"
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}
	resp.DocumentID = &result.DocumentID
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.wheel.GetDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) getTask(w http.ResponseWriter, r *http.Request) {
	task, err := rt.tasks.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

type queryRequest struct {
	Query        string `json:"query"`
	TopK         *int   `json:"top_k"`
	Mode         string `json:"mode"`
	UseReranking *bool  `json:"use_reranking"`
	Explain      bool   `json:"explain"`
}

func (q queryRequest) toDomain() domain.QueryRequest {
	topK := defaultTopK
	if q.TopK != nil {
		topK = *q.TopK
	}
	return domain.QueryRequest{
		Query:        q.Query,
		TopK:         topK,
		Mode:         q.Mode,
		UseReranking: q.UseReranking,
		Explain:      q.Explain,
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "decode request", errors.New("invalid json"))
	}
	return nil
}

// runQuery executes a query and records it. The response is only valid when
// err is nil.
func (rt *Router) runQuery(w http.ResponseWriter, r *http.Request) (domain.QueryResponse, error) {
	var req queryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return domain.QueryResponse{}, err
	}
	if strings.TrimSpace(req.Query) == "" {
		return domain.QueryResponse{}, domain.WrapError(domain.ErrInvalidInput, "query", errors.New("query is required"))
	}
	// Schema validation is skipped for non-JSON content types, so the range
	// is enforced here as well.
	if req.TopK != nil && (*req.TopK < 1 || *req.TopK > maxTopK) {
		return domain.QueryResponse{}, domain.WrapError(domain.ErrInvalidInput, "query", fmt.Errorf("top_k must be in [1, %d]", maxTopK))
	}

	resp, err := rt.wheel.Query(r.Context(), req.toDomain())
	if err != nil {
		return domain.QueryResponse{}, err
	}
	w.Header().Set(modeHeader, string(resp.Mode))
	if rt.metrics != nil {
		latency := time.Duration(resp.LatencyMS * float64(time.Millisecond))
		rt.metrics.RecordQuery(serviceName, string(resp.Mode), string(resp.Strategy), resp.Count, latency, resp.FromCache, resp.Degraded())
	}
	return resp, nil
}

func (rt *Router) query(w http.ResponseWriter, r *http.Request) {
	resp, err := rt.runQuery(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	if resp.Degraded() {
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) queryStream(w http.ResponseWriter, r *http.Request) {
	resp, err := rt.runQuery(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := writeSSE(w, resp); err != nil {
		rt.logStreamError(r, err)
	}
}

type modeSummary struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	UseCases    []string             `json:"use_cases"`
	Metrics     domain.TargetMetrics `json:"metrics"`
}

func (rt *Router) listModes(w http.ResponseWriter, _ *http.Request) {
	modes := make(map[domain.Mode]modeSummary)
	for _, cfg := range rt.wheel.Modes() {
		modes[cfg.Mode] = modeSummary{
			Name:        cfg.Name,
			Description: cfg.Description,
			UseCases:    cfg.UseCases,
			Metrics:     cfg.Metrics,
		}
	}
	writeJSON(w, http.StatusOK, modes)
}

func (rt *Router) currentMode(w http.ResponseWriter, _ *http.Request) {
	cfg := rt.wheel.CurrentMode()
	writeJSON(w, http.StatusOK, map[string]any{
		"current_mode": cfg.Mode,
		"config":       cfg,
	})
}

func (rt *Router) switchMode(w http.ResponseWriter, r *http.Request) {
	var fromQuery *string
	if err := runtime.BindQueryParameter("form", true, false, "mode", r.URL.Query(), &fromQuery); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid mode parameter: %v", err)})
		return
	}

	mode := ""
	switch {
	case fromQuery != nil:
		mode = *fromQuery
	case r.ContentLength != 0:
		var body struct {
			Mode string `json:"mode"`
		}
		if err := decodeJSON(w, r, &body); err != nil {
			writeError(w, err)
			return
		}
		mode = body.Mode
	}
	if strings.TrimSpace(mode) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "mode is required"})
		return
	}

	cfg, err := rt.wheel.SwitchMode(mode)
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordModeSwitch(serviceName, string(cfg.Mode))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "success",
		"current_mode": cfg.Mode,
		"message":      fmt.Sprintf("switched to %s mode", cfg.Mode),
	})
}

func (rt *Router) getMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rt.wheel.Metrics())
}

func (rt *Router) getMetricsSummary(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"timestamp": time.Now().UTC(),
		"summary":   rt.wheel.Metrics(),
	})
}

func (rt *Router) getConfig(w http.ResponseWriter, _ *http.Request) {
	info := rt.wheel.Info()
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":               rt.wheel.CurrentMode().Mode,
		"llm_provider":       info.LLMProvider,
		"llm_model":          info.LLMModel,
		"vector_db":          info.VectorBackend,
		"embedding_provider": info.EmbeddingProvider,
		"embedding_model":    info.EmbeddingModel,
		"cache_enabled":      info.CacheEnabled,
		"monitoring_enabled": info.MonitoringEnabled,
	})
}

func (rt *Router) clearCache(w http.ResponseWriter, r *http.Request) {
	if err := rt.wheel.ClearCache(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordCacheClear(serviceName)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "cache cleared"})
}

func (rt *Router) stats(w http.ResponseWriter, r *http.Request) {
	report, _ := rt.healthReport(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":            rt.wheel.CurrentMode().Mode,
		"health":          report,
		"metrics":         rt.wheel.Metrics(),
		"mode_comparison": rt.wheel.ModeComparison(),
		"timestamp":       time.Now().UTC(),
	})
}

type createExperimentRequest struct {
	Name         string         `json:"name"`
	Control      map[string]any `json:"control"`
	Treatment    map[string]any `json:"treatment"`
	DurationDays int            `json:"duration_days"`
}

func (rt *Router) createExperiment(w http.ResponseWriter, r *http.Request) {
	var req createExperimentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" || req.DurationDays < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required and duration_days must not be negative"})
		return
	}
	id := rt.experiments.CreateExperiment(req.Name, req.Control, req.Treatment, time.Duration(req.DurationDays)*24*time.Hour)
	writeJSON(w, http.StatusCreated, map[string]string{"experiment_id": id})
}

func (rt *Router) recordExperimentResult(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Group   string             `json:"group"`
		Metrics map[string]float64 `json:"metrics"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := rt.experiments.RecordResult(r.PathValue("id"), req.Group, req.Metrics); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) experimentResults(w http.ResponseWriter, r *http.Request) {
	results, err := rt.experiments.Results(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
