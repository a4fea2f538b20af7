package memory

import (
	"context"
	"testing"
	"time"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
)

func TestDocumentRepositoryRoundTripAndNotFound(t *testing.T) {
	repo := NewDocumentRepository()
	rec := &domain.DocumentRecord{ID: "d1", SourceFile: "a.txt", Mode: domain.ModeEfficiency, ChunkCount: 2, Metadata: map[string]any{"k": "v"}}
	if err := repo.Create(context.Background(), rec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	rec.Metadata["k"] = "mutated"

	got, err := repo.GetByID(context.Background(), "d1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Metadata["k"] != "v" {
		t.Fatalf("stored record shares caller metadata: %+v", got)
	}
	if err := repo.Create(context.Background(), rec); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected records to be write-once, got %v", err)
	}
	if _, err := repo.GetByID(context.Background(), "missing"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestTaskRepositoryUpdate(t *testing.T) {
	repo := NewTaskRepository()
	task := &domain.IngestTask{ID: "t1", Status: domain.TaskQueued, Filename: "a.txt", CreatedAt: time.Now()}
	if err := repo.CreateTask(context.Background(), task); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	task.Status = domain.TaskSucceeded
	task.DocumentID = "d1"
	if err := repo.UpdateTask(context.Background(), task); err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}
	got, err := repo.GetTask(context.Background(), "t1")
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if got.Status != domain.TaskSucceeded || got.DocumentID != "d1" || got.Filename != "a.txt" {
		t.Fatalf("unexpected task %+v", got)
	}
	if err := repo.UpdateTask(context.Background(), &domain.IngestTask{ID: "nope"}); !domain.IsKind(err, domain.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}
