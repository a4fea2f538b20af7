package usecase

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
	"github.com/kirillkom/wheel-rag/internal/core/ports"
	"github.com/kirillkom/wheel-rag/internal/core/textproc"
)

const (
	defaultQueryCacheTTL = time.Hour
	queryEntityLimit     = 16
)

var (
	hybridWeights = [2]float64{0.5, 0.5}
	hydeWeights   = [2]float64{0.7, 0.3}
	graphWeights  = [2]float64{0.8, 0.2}
)

type RetrievalDeps struct {
	Embeddings *EmbeddingService
	Vectors    ports.VectorStore
	Keywords   ports.KeywordIndex
	Graph      ports.KnowledgeGraph
	Hypotheses ports.HypothesisGenerator
	Cache      ports.Cache
	CacheTTL   time.Duration
	Metrics    *MetricsCollector
	Logger     *slog.Logger
}

// RetrievalEngine answers queries with the strategy of the mode snapshot it
// is given per call.
type RetrievalEngine struct {
	embeddings *EmbeddingService
	vectors    ports.VectorStore
	keywords   ports.KeywordIndex
	graph      ports.KnowledgeGraph
	hypotheses ports.HypothesisGenerator
	cache      ports.Cache
	cacheTTL   time.Duration
	metrics    *MetricsCollector
	logger     *slog.Logger
	now        func() time.Time
}

func NewRetrievalEngine(deps RetrievalDeps) *RetrievalEngine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := deps.CacheTTL
	if ttl <= 0 {
		ttl = defaultQueryCacheTTL
	}
	return &RetrievalEngine{
		embeddings: deps.Embeddings,
		vectors:    deps.Vectors,
		keywords:   deps.Keywords,
		graph:      deps.Graph,
		hypotheses: deps.Hypotheses,
		cache:      deps.Cache,
		cacheTTL:   ttl,
		metrics:    deps.Metrics,
		logger:     logger,
		now:        time.Now,
	}
}

type RetrieveRequest struct {
	Query        string
	TopK         int
	UseReranking *bool
	Explain      bool
}

// Retrieve never returns an error; failures produce a degraded response with
// empty results and the error text.
func (e *RetrievalEngine) Retrieve(ctx context.Context, req RetrieveRequest, cfg domain.ModeConfig) domain.QueryResponse {
	start := e.now()
	topK := req.TopK
	if topK <= 0 {
		topK = cfg.Retrieval.NumRetrieval
	}
	rerank := cfg.Retrieval.UseReranking
	if req.UseReranking != nil {
		rerank = *req.UseReranking
	}
	strategy := cfg.Retrieval.Strategy

	useCache := e.cache != nil && cfg.Storage.Cache
	key := queryCacheKey(cfg.Mode, req.Query, topK, req.UseReranking)
	if useCache {
		var cached domain.QueryResponse
		if e.cache.Get(ctx, key, &cached) {
			latency := e.now().Sub(start)
			cached.FromCache = true
			if req.Explain {
				cached.Explanation = explain(cached, cfg, latency)
			} else {
				cached.Explanation = ""
			}
			e.record(cfg.Mode, latency, cached.Count, true, "")
			e.logger.Debug("query_cache_hit", "mode", cfg.Mode, "top_k", topK)
			return cached
		}
	}

	results, err := e.dispatch(ctx, req.Query, topK, strategy, cfg)
	if err == nil && rerank && strategy != domain.StrategyAdvanced && len(results) > 0 {
		results = rerankByOverlap(req.Query, results)
	}
	latency := e.now().Sub(start)

	if err != nil {
		e.record(cfg.Mode, latency, 0, false, err.Error())
		e.logger.Error("query_failed", "mode", cfg.Mode, "strategy", strategy, "error", err)
		return domain.QueryResponse{
			Query:     req.Query,
			Results:   []domain.RetrievalResult{},
			LatencyMS: float64(latency) / float64(time.Millisecond),
			Strategy:  strategy,
			Mode:      cfg.Mode,
			Error:     err.Error(),
		}
	}

	if results == nil {
		results = []domain.RetrievalResult{}
	}
	resp := domain.QueryResponse{
		Query:     req.Query,
		Results:   results,
		Count:     len(results),
		LatencyMS: float64(latency) / float64(time.Millisecond),
		Strategy:  strategy,
		Mode:      cfg.Mode,
		Reranked:  rerank || strategy == domain.StrategyAdvanced,
	}
	if useCache {
		e.cache.Set(ctx, key, resp, e.cacheTTL)
	}
	if req.Explain {
		resp.Explanation = explain(resp, cfg, latency)
	}

	e.record(cfg.Mode, latency, len(results), true, "")
	e.logger.Info("query_completed",
		"mode", cfg.Mode,
		"strategy", strategy,
		"results", len(results),
		"latency_ms", resp.LatencyMS,
	)
	return resp
}

func (e *RetrievalEngine) dispatch(ctx context.Context, query string, topK int, strategy domain.Strategy, cfg domain.ModeConfig) ([]domain.RetrievalResult, error) {
	switch strategy {
	case domain.StrategyKeyword:
		return e.keywordSearch(ctx, query, topK)
	case domain.StrategyVector:
		return e.vectorSearch(ctx, query, topK, cfg.Retrieval.SimilarityThreshold)
	case domain.StrategyHybrid:
		return e.hybridSearch(ctx, query, topK, cfg.Retrieval.SimilarityThreshold)
	case domain.StrategyAdvanced:
		return e.advancedSearch(ctx, query, topK, cfg)
	default:
		return nil, domain.WrapError(domain.ErrConfig, "retrieve", fmt.Errorf("unknown strategy %q", strategy))
	}
}

func (e *RetrievalEngine) keywordSearch(ctx context.Context, query string, limit int) ([]domain.RetrievalResult, error) {
	if e.keywords == nil {
		return nil, domain.WrapError(domain.ErrUnavailable, "keyword search", fmt.Errorf("no keyword index configured"))
	}
	results, err := e.keywords.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	return renumber(results), nil
}

func (e *RetrievalEngine) vectorSearch(ctx context.Context, text string, limit int, threshold float64) ([]domain.RetrievalResult, error) {
	vector, err := e.embeddings.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	matches, err := e.vectors.Search(ctx, vector, limit, threshold)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	out := make([]domain.RetrievalResult, 0, len(matches))
	for i, m := range matches {
		text, _ := m.Metadata["text"].(string)
		source, _ := m.Metadata["source"].(string)
		out = append(out, domain.RetrievalResult{
			Rank:     i + 1,
			Text:     text,
			Score:    m.Score,
			Source:   source,
			Metadata: m.Metadata,
		})
	}
	return out, nil
}

func (e *RetrievalEngine) hybridSearch(ctx context.Context, query string, topK int, threshold float64) ([]domain.RetrievalResult, error) {
	lexical, err := e.keywordSearch(ctx, query, topK*2)
	if err != nil {
		return nil, err
	}
	semantic, err := e.vectorSearch(ctx, query, topK*2, threshold)
	if err != nil {
		return nil, err
	}
	merged := mergeWeighted(lexical, semantic, hybridWeights)
	sortByScore(merged)
	return renumber(trimResults(merged, topK)), nil
}

func (e *RetrievalEngine) advancedSearch(ctx context.Context, query string, topK int, cfg domain.ModeConfig) ([]domain.RetrievalResult, error) {
	results, err := e.hybridSearch(ctx, query, topK, cfg.Retrieval.SimilarityThreshold)
	if err != nil {
		return nil, err
	}

	if cfg.Retrieval.HyDE {
		hypothesis := e.hypothesis(ctx, query)
		hyde, err := e.vectorSearch(ctx, hypothesis, topK, cfg.Retrieval.SimilarityThreshold)
		if err != nil {
			return nil, fmt.Errorf("hyde search: %w", err)
		}
		results = mergeWeighted(results, hyde, hydeWeights)
	}

	if cfg.Retrieval.KnowledgeGraph && e.graph != nil {
		graphResults, err := e.graphSearch(ctx, query, topK)
		if err != nil {
			return nil, err
		}
		results = mergeWeighted(results, graphResults, graphWeights)
	}

	results = rerankByOverlap(query, results)

	if cfg.Retrieval.SelfConsistency {
		results = verifyConsistency(results)
	}
	return renumber(trimResults(results, topK)), nil
}

func (e *RetrievalEngine) hypothesis(ctx context.Context, query string) string {
	if e.hypotheses != nil {
		text, err := e.hypotheses.GenerateHypothesis(ctx, query)
		if err == nil && text != "" {
			return text
		}
		e.logger.Warn("hypothesis_generation_failed", "error", err)
	}
	return fmt.Sprintf("A detailed answer about %q", query)
}

func (e *RetrievalEngine) graphSearch(ctx context.Context, query string, limit int) ([]domain.RetrievalResult, error) {
	entities := textproc.Entities(query, queryEntityLimit)
	if len(entities) == 0 {
		return nil, nil
	}
	results, err := e.graph.SearchEntities(ctx, entities, limit)
	if err != nil {
		return nil, fmt.Errorf("graph search: %w", err)
	}
	return results, nil
}

// verifyConsistency is the self-consistency step of the advanced strategy.
// Retrieval has no answer generator, so it keeps the candidates unchanged.
func verifyConsistency(results []domain.RetrievalResult) []domain.RetrievalResult {
	return results
}

func (e *RetrievalEngine) record(mode domain.Mode, latency time.Duration, count int, ok bool, errMsg string) {
	if e.metrics != nil {
		e.metrics.RecordQuery(mode, latency, count, ok, errMsg)
	}
}

// queryCacheKey hashes mode, query and top_k. An explicit reranking override
// is part of the key since it changes the result order.
func queryCacheKey(mode domain.Mode, query string, topK int, rerank *bool) string {
	raw := string(mode) + ":" + query + ":" + strconv.Itoa(topK)
	if rerank != nil {
		raw += ":rerank=" + strconv.FormatBool(*rerank)
	}
	sum := md5.Sum([]byte(raw))
	return "query:" + hex.EncodeToString(sum[:])
}
