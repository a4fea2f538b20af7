package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
)

// CacheBackend is a raw key/value store with expiry. Get returns
// domain.ErrCacheMiss for absent keys.
type CacheBackend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Flush(ctx context.Context) error
}

// Cache is the fail-open JSON cache used by the core. None of its methods
// return backend errors.
type Cache interface {
	Get(ctx context.Context, key string, dest any) bool
	Set(ctx context.Context, key string, value any, ttl time.Duration) bool
	Delete(ctx context.Context, key string) bool
	Healthy(ctx context.Context) bool
	Clear(ctx context.Context) error
}

// EmbeddingProvider turns texts into vectors of a fixed dimension.
type EmbeddingProvider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
	Dimension() int
}

// VectorStore holds vectors of a single dimensionality.
type VectorStore interface {
	Add(ctx context.Context, records ...domain.VectorRecord) error
	Search(ctx context.Context, query []float32, topK int, threshold float64) ([]domain.VectorMatch, error)
	Health(ctx context.Context) error
}

// KeywordIndex serves lexical retrieval with scores normalized to [0, 1].
type KeywordIndex interface {
	Index(ctx context.Context, chunks []domain.IndexedChunk) error
	Search(ctx context.Context, query string, limit int) ([]domain.RetrievalResult, error)
}

// KnowledgeGraph links entities to the chunks that mention them.
type KnowledgeGraph interface {
	IndexEntities(ctx context.Context, chunk domain.IndexedChunk, entities []string) error
	SearchEntities(ctx context.Context, entities []string, limit int) ([]domain.RetrievalResult, error)
}

// DocumentRepository persists ingestion records.
type DocumentRepository interface {
	Create(ctx context.Context, record *domain.DocumentRecord) error
	GetByID(ctx context.Context, id string) (*domain.DocumentRecord, error)
	Health(ctx context.Context) error
}

// TaskRepository persists background ingestion tasks.
type TaskRepository interface {
	CreateTask(ctx context.Context, task *domain.IngestTask) error
	GetTask(ctx context.Context, id string) (*domain.IngestTask, error)
	UpdateTask(ctx context.Context, task *domain.IngestTask) error
}

// ObjectStorage stores uploaded source files and returns their local path.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// TaskQueue hands ingestion task ids to workers.
type TaskQueue interface {
	PublishTask(ctx context.Context, taskID string) error
}

type ExtractRequest struct {
	Path      string
	Extension string
	Mode      domain.Mode
	OCRTier   domain.OCRTier
}

// TextExtractor pulls plain text out of one file format. Implementations
// return domain.ErrUnavailable when their backing engine is not configured.
type TextExtractor interface {
	Extract(ctx context.Context, req ExtractRequest) (string, error)
}

// Chunker splits text into overlapping fixed-size windows.
type Chunker interface {
	Split(source, text string, size, overlap int) ([]domain.Chunk, error)
}

// HypothesisGenerator writes a hypothetical answer used for HyDE retrieval.
type HypothesisGenerator interface {
	GenerateHypothesis(ctx context.Context, query string) (string, error)
}
