package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, record *domain.DocumentRecord) error {
	metadata, err := marshalMetadata(record.Metadata)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO documents (id, source_file, mode, chunk_count, processed_at, metadata)
VALUES ($1,$2,$3,$4,$5,$6)
`, record.ID, record.SourceFile, string(record.Mode), record.ChunkCount, record.ProcessedAt, metadata)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.DocumentRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, source_file, mode, chunk_count, processed_at, metadata
FROM documents
WHERE id = $1
`, id)

	var rec domain.DocumentRecord
	var mode string
	var metadataRaw []byte
	if err := row.Scan(&rec.ID, &rec.SourceFile, &mode, &rec.ChunkCount, &rec.ProcessedAt, &metadataRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	rec.Mode = domain.Mode(mode)
	meta, err := unmarshalMetadata(metadataRaw)
	if err != nil {
		return nil, err
	}
	rec.Metadata = meta
	return &rec, nil
}

func (r *DocumentRepository) Health(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func marshalMetadata(meta map[string]any) ([]byte, error) {
	if meta == nil {
		return []byte(`{}`), nil
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return raw, nil
}

func unmarshalMetadata(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var meta map[string]any
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	if len(meta) == 0 {
		return nil, nil
	}
	return meta, nil
}
