// Package memory keeps document records and ingestion tasks in process for
// deployments without Postgres.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
)

type DocumentRepository struct {
	mu      sync.RWMutex
	records map[string]domain.DocumentRecord
}

func NewDocumentRepository() *DocumentRepository {
	return &DocumentRepository{records: make(map[string]domain.DocumentRecord)}
}

func (r *DocumentRepository) Create(_ context.Context, record *domain.DocumentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[record.ID]; exists {
		return fmt.Errorf("%w: document %s already exists", domain.ErrInvalidInput, record.ID)
	}
	r.records[record.ID] = copyRecord(*record)
	return nil
}

func (r *DocumentRepository) GetByID(_ context.Context, id string) (*domain.DocumentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
	}
	out := copyRecord(rec)
	return &out, nil
}

func (r *DocumentRepository) Health(context.Context) error { return nil }

func copyRecord(rec domain.DocumentRecord) domain.DocumentRecord {
	rec.Metadata = copyMap(rec.Metadata)
	return rec
}

type TaskRepository struct {
	mu    sync.RWMutex
	tasks map[string]domain.IngestTask
}

func NewTaskRepository() *TaskRepository {
	return &TaskRepository{tasks: make(map[string]domain.IngestTask)}
}

func (r *TaskRepository) CreateTask(_ context.Context, task *domain.IngestTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := *task
	t.Metadata = copyMap(task.Metadata)
	r.tasks[task.ID] = t
	return nil
}

func (r *TaskRepository) GetTask(_ context.Context, id string) (*domain.IngestTask, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrTaskNotFound, "get task", fmt.Errorf("id=%s", id))
	}
	t.Metadata = copyMap(t.Metadata)
	return &t, nil
}

func (r *TaskRepository) UpdateTask(_ context.Context, task *domain.IngestTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.tasks[task.ID]
	if !ok {
		return domain.WrapError(domain.ErrTaskNotFound, "update task", fmt.Errorf("id=%s", task.ID))
	}
	cur.Status = task.Status
	cur.DocumentID = task.DocumentID
	cur.Error = task.Error
	cur.UpdatedAt = task.UpdatedAt
	r.tasks[task.ID] = cur
	return nil
}

func copyMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
