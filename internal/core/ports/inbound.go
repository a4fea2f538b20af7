package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
)

// WheelService is the inbound contract of the mode-driven RAG system.
type WheelService interface {
	ProcessDocument(ctx context.Context, path string, metadata map[string]any, mode string) (domain.ProcessResult, error)
	ExtractText(ctx context.Context, path string, mode string) (string, error)
	GetDocument(ctx context.Context, id string) (*domain.DocumentRecord, error)
	Query(ctx context.Context, req domain.QueryRequest) (domain.QueryResponse, error)

	SwitchMode(mode string) (domain.ModeConfig, error)
	CurrentMode() domain.ModeConfig
	Modes() []domain.ModeConfig

	Health(ctx context.Context) (bool, map[string]bool)
	Metrics() map[string]any
	ModeComparison() map[string]any
	ClearCache(ctx context.Context) error
	Info() domain.SystemInfo
}

// IngestTaskService runs document ingestion in the background.
type IngestTaskService interface {
	Store(ctx context.Context, filename string, body io.Reader) (string, error)
	Submit(ctx context.Context, path, filename string, metadata map[string]any, mode string) (*domain.IngestTask, error)
	Get(ctx context.Context, id string) (*domain.IngestTask, error)
	Run(ctx context.Context, taskID string) error
}

// ExperimentService is the A/B test bookkeeping contract.
type ExperimentService interface {
	CreateExperiment(name string, control, treatment map[string]any, duration time.Duration) string
	RecordResult(id, group string, metrics map[string]float64) error
	Results(id string) (domain.ExperimentResults, error)
}
