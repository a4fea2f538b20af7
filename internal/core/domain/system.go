package domain

type SystemInfo struct {
	Name              string `json:"name"`
	Version           string `json:"version"`
	LLMProvider       string `json:"llm_provider"`
	LLMModel          string `json:"llm_model"`
	VectorBackend     string `json:"vector_db"`
	EmbeddingProvider string `json:"embedding_provider"`
	EmbeddingModel    string `json:"embedding_model"`
	CacheEnabled      bool   `json:"cache_enabled"`
	MonitoringEnabled bool   `json:"monitoring_enabled"`
}

type ExperimentGroup string

const (
	GroupControl   ExperimentGroup = "control"
	GroupTreatment ExperimentGroup = "treatment"
)

type MetricComparison struct {
	Control     float64 `json:"control"`
	Treatment   float64 `json:"treatment"`
	Improvement float64 `json:"improvement"`
}

type ExperimentResults struct {
	Experiment        string                      `json:"experiment"`
	Duration          string                      `json:"duration"`
	ControlSamples    int                         `json:"control_samples"`
	TreatmentSamples  int                         `json:"treatment_samples"`
	MetricsComparison map[string]MetricComparison `json:"metrics_comparison"`
}
