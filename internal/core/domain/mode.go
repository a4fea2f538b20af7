package domain

import (
	"fmt"
	"sort"
	"strings"
)

type Mode string

const (
	ModeEfficiency Mode = "efficiency"
	ModeBalanced   Mode = "balanced"
	ModePrecision  Mode = "precision"
)

func AllModes() []Mode {
	return []Mode{ModeEfficiency, ModeBalanced, ModePrecision}
}

func ParseMode(raw string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(raw)))
	switch m {
	case ModeEfficiency, ModeBalanced, ModePrecision:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, raw)
	}
}

type Strategy string

const (
	StrategyKeyword  Strategy = "bm25_only"
	StrategyVector   Strategy = "vector_only"
	StrategyHybrid   Strategy = "hybrid"
	StrategyAdvanced Strategy = "advanced_rag"
)

func (s Strategy) Valid() bool {
	switch s {
	case StrategyKeyword, StrategyVector, StrategyHybrid, StrategyAdvanced:
		return true
	}
	return false
}

// OCRTier selects the image text extraction engine used for a mode.
type OCRTier string

const (
	OCRTierLight    OCRTier = "light"
	OCRTierStandard OCRTier = "standard"
	OCRTierVision   OCRTier = "vision"
)

type MetricRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type TargetMetrics struct {
	Recall         MetricRange `json:"recall"`
	Precision      MetricRange `json:"precision"`
	LatencyMS      MetricRange `json:"latency_ms"`
	Cost           string      `json:"cost"`
	ReasoningSteps int         `json:"reasoning_steps"`
}

type ModelSelection struct {
	OCR       string `json:"ocr"`
	Embedding string `json:"embedding"`
	LLM       string `json:"llm"`
	Reranker  string `json:"reranker,omitempty"`
}

type ChunkingConfig struct {
	Size    int `json:"chunk_size"`
	Overlap int `json:"chunk_overlap"`
}

type RetrievalConfig struct {
	Strategy            Strategy `json:"strategy"`
	SimilarityThreshold float64  `json:"similarity_threshold"`
	NumRetrieval        int      `json:"num_retrieval"`
	UseReranking        bool     `json:"use_reranking"`
	Hybrid              bool     `json:"use_hybrid_search"`
	KnowledgeGraph      bool     `json:"use_knowledge_graph"`
	HyDE                bool     `json:"use_hyde"`
	SelfConsistency     bool     `json:"use_self_consistency"`
}

type StorageConfig struct {
	VectorBackend     string `json:"vector_db"`
	Persistence       bool   `json:"enable_persistence"`
	Cache             bool   `json:"enable_cache"`
	ReplicationFactor int    `json:"replication_factor,omitempty"`
}

// ModeConfig is the full tuning bundle of one processing mode. Values are
// copied out of the registry, so holders may keep them as per-call snapshots.
type ModeConfig struct {
	Mode        Mode            `json:"mode"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	UseCases    []string        `json:"use_cases"`
	Metrics     TargetMetrics   `json:"metrics"`
	Models      ModelSelection  `json:"models"`
	Chunking    ChunkingConfig  `json:"chunking"`
	Retrieval   RetrievalConfig `json:"retrieval"`
	Storage     StorageConfig   `json:"storage"`
	OCRTier     OCRTier         `json:"ocr_tier"`
}

func (c ModeConfig) Validate() error {
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("%w: mode %s: chunk_size must be positive", ErrConfig, c.Mode)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("%w: mode %s: chunk_overlap must be in [0, chunk_size)", ErrConfig, c.Mode)
	}
	if c.Retrieval.SimilarityThreshold < 0 || c.Retrieval.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: mode %s: similarity_threshold must be in [0, 1]", ErrConfig, c.Mode)
	}
	if c.Retrieval.NumRetrieval <= 0 {
		return fmt.Errorf("%w: mode %s: num_retrieval must be positive", ErrConfig, c.Mode)
	}
	if !c.Retrieval.Strategy.Valid() {
		return fmt.Errorf("%w: mode %s: unknown strategy %q", ErrConfig, c.Mode, c.Retrieval.Strategy)
	}
	return nil
}

func (c ModeConfig) clone() ModeConfig {
	out := c
	out.UseCases = append([]string(nil), c.UseCases...)
	return out
}

func DefaultModeConfigs() map[Mode]ModeConfig {
	return map[Mode]ModeConfig{
		ModeEfficiency: {
			Mode:        ModeEfficiency,
			Name:        "Efficiency",
			Description: "Fast and cheap: keyword retrieval, small chunks, no reranking.",
			UseCases:    []string{"real-time chat", "high-volume processing", "FAQ lookup"},
			Metrics: TargetMetrics{
				Recall:         MetricRange{Min: 0.4, Max: 0.6},
				Precision:      MetricRange{Min: 0.3, Max: 0.5},
				LatencyMS:      MetricRange{Min: 100, Max: 300},
				Cost:           "minimal",
				ReasoningSteps: 1,
			},
			Models: ModelSelection{
				OCR:       "mistral-ocr-3",
				Embedding: "sentence-transformers/all-MiniLM-L6-v2",
				LLM:       "gpt-4-turbo",
			},
			Chunking: ChunkingConfig{Size: 512, Overlap: 50},
			Retrieval: RetrievalConfig{
				Strategy:            StrategyKeyword,
				SimilarityThreshold: 0.3,
				NumRetrieval:        3,
				UseReranking:        false,
			},
			Storage: StorageConfig{VectorBackend: "local_cache", Persistence: false, Cache: true},
			OCRTier: OCRTierLight,
		},
		ModeBalanced: {
			Mode:        ModeBalanced,
			Name:        "Balanced",
			Description: "Hybrid retrieval with reranking; the general-purpose default.",
			UseCases:    []string{"enterprise knowledge base", "document Q&A", "customer support"},
			Metrics: TargetMetrics{
				Recall:         MetricRange{Min: 0.70, Max: 0.80},
				Precision:      MetricRange{Min: 0.60, Max: 0.75},
				LatencyMS:      MetricRange{Min: 500, Max: 2000},
				Cost:           "moderate",
				ReasoningSteps: 2,
			},
			Models: ModelSelection{
				OCR:       "paddle-ocr",
				Embedding: "sentence-transformers/all-mpnet-base-v2",
				LLM:       "gpt-4-turbo",
				Reranker:  "cross-encoder/ms-marco-MiniLM-L-6-v2",
			},
			Chunking: ChunkingConfig{Size: 1024, Overlap: 100},
			Retrieval: RetrievalConfig{
				Strategy:            StrategyHybrid,
				SimilarityThreshold: 0.5,
				NumRetrieval:        5,
				UseReranking:        true,
				Hybrid:              true,
			},
			Storage: StorageConfig{VectorBackend: "milvus", Persistence: true, Cache: true},
			OCRTier: OCRTierStandard,
		},
		ModePrecision: {
			Mode:        ModePrecision,
			Name:        "Precision",
			Description: "Maximum recall and precision: advanced retrieval with HyDE, knowledge graph and reranking.",
			UseCases:    []string{"legal review", "medical research", "financial analysis"},
			Metrics: TargetMetrics{
				Recall:         MetricRange{Min: 0.90, Max: 0.98},
				Precision:      MetricRange{Min: 0.85, Max: 0.95},
				LatencyMS:      MetricRange{Min: 2000, Max: 10000},
				Cost:           "high",
				ReasoningSteps: 3,
			},
			Models: ModelSelection{
				OCR:       "gpt-4v",
				Embedding: "text-embedding-3-large",
				LLM:       "gpt-5",
				Reranker:  "cross-encoder/qnli-distilroberta-base",
			},
			Chunking: ChunkingConfig{Size: 2048, Overlap: 256},
			Retrieval: RetrievalConfig{
				Strategy:            StrategyAdvanced,
				SimilarityThreshold: 0.7,
				NumRetrieval:        10,
				UseReranking:        true,
				Hybrid:              true,
				KnowledgeGraph:      true,
				HyDE:                true,
				SelfConsistency:     true,
			},
			Storage: StorageConfig{VectorBackend: "pinecone", Persistence: true, Cache: true, ReplicationFactor: 3},
			OCRTier: OCRTierVision,
		},
	}
}

// ModeOverride replaces selected tuning parameters of a default bundle.
type ModeOverride struct {
	ChunkSize           *int      `yaml:"chunk_size"`
	ChunkOverlap        *int      `yaml:"chunk_overlap"`
	NumRetrieval        *int      `yaml:"num_retrieval"`
	SimilarityThreshold *float64  `yaml:"similarity_threshold"`
	UseReranking        *bool     `yaml:"use_reranking"`
	Strategy            *Strategy `yaml:"strategy"`
	EnableCache         *bool     `yaml:"enable_cache"`
}

func (o ModeOverride) apply(c ModeConfig) ModeConfig {
	if o.ChunkSize != nil {
		c.Chunking.Size = *o.ChunkSize
	}
	if o.ChunkOverlap != nil {
		c.Chunking.Overlap = *o.ChunkOverlap
	}
	if o.NumRetrieval != nil {
		c.Retrieval.NumRetrieval = *o.NumRetrieval
	}
	if o.SimilarityThreshold != nil {
		c.Retrieval.SimilarityThreshold = *o.SimilarityThreshold
	}
	if o.UseReranking != nil {
		c.Retrieval.UseReranking = *o.UseReranking
	}
	if o.Strategy != nil {
		c.Retrieval.Strategy = *o.Strategy
	}
	if o.EnableCache != nil {
		c.Storage.Cache = *o.EnableCache
	}
	return c
}

// ModeRegistry is the immutable lookup table of mode bundles.
type ModeRegistry struct {
	configs  map[Mode]ModeConfig
	fallback Mode
}

// NewModeRegistry builds the registry from the defaults plus overrides. An
// empty fallback makes Resolve strict.
func NewModeRegistry(overrides map[Mode]ModeOverride, fallback Mode) (*ModeRegistry, error) {
	configs := DefaultModeConfigs()
	for mode, override := range overrides {
		base, ok := configs[mode]
		if !ok {
			return nil, fmt.Errorf("%w: override for %q", ErrUnknownMode, mode)
		}
		configs[mode] = override.apply(base)
	}
	for _, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	if fallback != "" {
		if _, ok := configs[fallback]; !ok {
			return nil, fmt.Errorf("%w: fallback %q", ErrUnknownMode, fallback)
		}
	}
	return &ModeRegistry{configs: configs, fallback: fallback}, nil
}

func (r *ModeRegistry) Get(mode Mode) (ModeConfig, error) {
	cfg, ok := r.configs[mode]
	if !ok {
		return ModeConfig{}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	return cfg.clone(), nil
}

// Resolve parses a raw mode name. fellBack reports that the configured
// fallback was substituted for an unknown name.
func (r *ModeRegistry) Resolve(raw string) (cfg ModeConfig, fellBack bool, err error) {
	mode, err := ParseMode(raw)
	if err == nil {
		cfg, err = r.Get(mode)
		return cfg, false, err
	}
	if r.fallback == "" {
		return ModeConfig{}, false, err
	}
	cfg, err = r.Get(r.fallback)
	return cfg, true, err
}

func (r *ModeRegistry) All() []ModeConfig {
	out := make([]ModeConfig, 0, len(r.configs))
	for _, cfg := range r.configs {
		out = append(out, cfg.clone())
	}
	order := map[Mode]int{ModeEfficiency: 0, ModeBalanced: 1, ModePrecision: 2}
	sort.Slice(out, func(i, j int) bool { return order[out[i].Mode] < order[out[j].Mode] })
	return out
}
