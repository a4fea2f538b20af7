package domain

import "time"

// DocumentRecord is written once per successful ingestion and never updated.
type DocumentRecord struct {
	ID          string         `json:"document_id"`
	SourceFile  string         `json:"source_file"`
	Mode        Mode           `json:"mode"`
	ChunkCount  int            `json:"chunk_count"`
	ProcessedAt time.Time      `json:"processed_at"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type Chunk struct {
	ID    string `json:"chunk_id"`
	Index int    `json:"chunk_index"`
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// IndexedChunk is a chunk bound to the document it came from.
type IndexedChunk struct {
	DocumentID string `json:"document_id"`
	Source     string `json:"source"`
	Chunk
}

type ProcessStatus string

const (
	ProcessSucceeded ProcessStatus = "success"
	ProcessFailed    ProcessStatus = "failed"
)

type ProcessResult struct {
	Status      ProcessStatus `json:"status"`
	DocumentID  string        `json:"document_id,omitempty"`
	ChunksCount int           `json:"chunks_count"`
	Duration    time.Duration `json:"-"`
	DurationSec float64       `json:"duration"`
	Mode        Mode          `json:"mode"`
	Error       string        `json:"error,omitempty"`
}

type TaskStatus string

const (
	TaskQueued     TaskStatus = "queued"
	TaskProcessing TaskStatus = "processing"
	TaskSucceeded  TaskStatus = "succeeded"
	TaskFailed     TaskStatus = "failed"
)

// IngestTask tracks a background document ingestion.
type IngestTask struct {
	ID         string         `json:"task_id"`
	Status     TaskStatus     `json:"status"`
	Mode       Mode           `json:"mode"`
	Filename   string         `json:"filename"`
	Path       string         `json:"-"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	DocumentID string         `json:"document_id,omitempty"`
	Error      string         `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}
