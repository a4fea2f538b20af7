package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
)

type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) CreateTask(ctx context.Context, task *domain.IngestTask) error {
	metadata, err := marshalMetadata(task.Metadata)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO ingest_tasks (id, status, mode, filename, path, metadata, document_id, error_message, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`, task.ID, string(task.Status), string(task.Mode), task.Filename, task.Path, metadata,
		task.DocumentID, task.Error, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (r *TaskRepository) GetTask(ctx context.Context, id string) (*domain.IngestTask, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, status, mode, filename, path, metadata, document_id, error_message, created_at, updated_at
FROM ingest_tasks
WHERE id = $1
`, id)

	var task domain.IngestTask
	var status, mode string
	var metadataRaw []byte
	var documentID, errMessage sql.NullString
	err := row.Scan(&task.ID, &status, &mode, &task.Filename, &task.Path, &metadataRaw,
		&documentID, &errMessage, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrTaskNotFound, "get task", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("get task by id: %w", err)
	}
	task.Status = domain.TaskStatus(status)
	task.Mode = domain.Mode(mode)
	task.DocumentID = documentID.String
	task.Error = errMessage.String
	if task.Metadata, err = unmarshalMetadata(metadataRaw); err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *TaskRepository) UpdateTask(ctx context.Context, task *domain.IngestTask) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE ingest_tasks
SET status = $2, document_id = $3, error_message = $4, updated_at = $5
WHERE id = $1
`, task.ID, string(task.Status), task.DocumentID, task.Error, task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update task rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrTaskNotFound, "update task", fmt.Errorf("id=%s", task.ID))
	}
	return nil
}
