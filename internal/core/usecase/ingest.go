package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
	"github.com/kirillkom/wheel-rag/internal/core/ports"
)

type documentIngester interface {
	ResolveMode(raw string) (domain.ModeConfig, error)
	ProcessDocument(ctx context.Context, path string, metadata map[string]any, mode string) (domain.ProcessResult, error)
}

// IngestTaskService stores uploads and runs their ingestion as tracked tasks.
type IngestTaskService struct {
	tasks    ports.TaskRepository
	storage  ports.ObjectStorage
	queue    ports.TaskQueue
	ingester documentIngester
	logger   *slog.Logger
	now      func() time.Time
}

func NewIngestTaskService(
	tasks ports.TaskRepository,
	storage ports.ObjectStorage,
	queue ports.TaskQueue,
	ingester documentIngester,
	logger *slog.Logger,
) *IngestTaskService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestTaskService{
		tasks:    tasks,
		storage:  storage,
		queue:    queue,
		ingester: ingester,
		logger:   logger,
		now:      time.Now,
	}
}

// Store saves an uploaded file and returns its local path.
func (s *IngestTaskService) Store(ctx context.Context, filename string, body io.Reader) (string, error) {
	key := fmt.Sprintf("%s_%s", uuid.NewString(), sanitizeFilename(filename))
	path, err := s.storage.Save(ctx, key, body)
	if err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	return path, nil
}

// Submit records a queued task and hands it to the queue. The mode is
// resolved here so the task runs under the mode current at submission.
func (s *IngestTaskService) Submit(ctx context.Context, path, filename string, metadata map[string]any, mode string) (*domain.IngestTask, error) {
	cfg, err := s.ingester.ResolveMode(mode)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	task := &domain.IngestTask{
		ID:        uuid.NewString(),
		Status:    domain.TaskQueued,
		Mode:      cfg.Mode,
		Filename:  filename,
		Path:      path,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.tasks.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("create ingest task: %w", err)
	}

	if err := s.queue.PublishTask(ctx, task.ID); err != nil {
		task.Status = domain.TaskFailed
		task.Error = "enqueue failed: " + err.Error()
		task.UpdatedAt = s.now().UTC()
		if updErr := s.tasks.UpdateTask(ctx, task); updErr != nil {
			return nil, fmt.Errorf("publish ingest task: %w; mark failed: %v", err, updErr)
		}
		return nil, fmt.Errorf("publish ingest task: %w", err)
	}

	s.logger.Info("ingest_task_queued", "task_id", task.ID, "mode", task.Mode, "filename", filename)
	return task, nil
}

func (s *IngestTaskService) Get(ctx context.Context, id string) (*domain.IngestTask, error) {
	return s.tasks.GetTask(ctx, id)
}

// Run executes one task. Tasks that already finished are skipped, so a
// redelivered message is harmless. The returned error covers only task
// bookkeeping; ingestion failures are recorded on the task.
func (s *IngestTaskService) Run(ctx context.Context, taskID string) error {
	task, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("load ingest task: %w", err)
	}
	if task.Status == domain.TaskSucceeded || task.Status == domain.TaskFailed {
		s.logger.Info("ingest_task_skipped", "task_id", task.ID, "status", task.Status)
		return nil
	}

	task.Status = domain.TaskProcessing
	task.UpdatedAt = s.now().UTC()
	if err := s.tasks.UpdateTask(ctx, task); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	result, err := s.ingester.ProcessDocument(ctx, task.Path, task.Metadata, string(task.Mode))
	switch {
	case err != nil:
		task.Status = domain.TaskFailed
		task.Error = err.Error()
	case result.Status == domain.ProcessFailed:
		task.Status = domain.TaskFailed
		task.Error = result.Error
	default:
		task.Status = domain.TaskSucceeded
		task.DocumentID = result.DocumentID
	}
	task.UpdatedAt = s.now().UTC()
	if err := s.tasks.UpdateTask(ctx, task); err != nil {
		return fmt.Errorf("set status=%s: %w", task.Status, err)
	}

	s.logger.Info("ingest_task_finished",
		"task_id", task.ID,
		"status", task.Status,
		"document_id", task.DocumentID,
	)
	return nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == "/" {
		return "document.bin"
	}
	return base
}
