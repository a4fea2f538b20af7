package pgvector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgv "github.com/pgvector/pgvector-go"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
)

// Pool is the subset of *pgxpool.Pool the store needs.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// Store keeps chunk embeddings in a Postgres table with a vector column.
type Store struct {
	pool       Pool
	tableIdent string
	dimension  int
}

func New(pool Pool, table string, dimension int) *Store {
	return &Store{
		pool:       pool,
		tableIdent: pgx.Identifier{table}.Sanitize(),
		dimension:  dimension,
	}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("pgvector: create extension: %w", err)
	}
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id TEXT PRIMARY KEY,
    embedding vector(%d) NOT NULL,
    metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
    updated_at TIMESTAMPTZ NOT NULL
)`, s.tableIdent, s.dimension)
	if _, err := s.pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("pgvector: create table: %w", err)
	}
	return nil
}

func (s *Store) Add(ctx context.Context, records ...domain.VectorRecord) (err error) {
	if len(records) == 0 {
		return nil
	}
	for _, rec := range records {
		if len(rec.Vector) != s.dimension {
			return fmt.Errorf("%w: record %s has %d, table has %d", domain.ErrDimensionMismatch, rec.ID, len(rec.Vector), s.dimension)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.WrapError(domain.ErrUnavailable, "pgvector begin", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = fmt.Errorf("pgvector: rollback failed: %w; original error: %v", rbErr, err)
			}
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("pgvector: commit: %w", commitErr)
		}
	}()

	stmt := fmt.Sprintf(`INSERT INTO %s (id, embedding, metadata, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET
    embedding = excluded.embedding,
    metadata = excluded.metadata,
    updated_at = excluded.updated_at`, s.tableIdent)
	now := time.Now().UTC()
	for _, rec := range records {
		metadata, marshalErr := json.Marshal(rec.Metadata)
		if marshalErr != nil {
			return fmt.Errorf("pgvector: marshal metadata for %q: %w", rec.ID, marshalErr)
		}
		if _, execErr := tx.Exec(ctx, stmt, rec.ID, pgv.NewVector(rec.Vector), metadata, now); execErr != nil {
			return fmt.Errorf("pgvector: upsert %q: %w", rec.ID, execErr)
		}
	}
	return nil
}

func (s *Store) Search(ctx context.Context, query []float32, topK int, threshold float64) ([]domain.VectorMatch, error) {
	if topK <= 0 {
		return nil, nil
	}
	if len(query) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d, table has %d", domain.ErrDimensionMismatch, len(query), s.dimension)
	}

	stmt := fmt.Sprintf(`SELECT id, metadata, 1 - (embedding <=> $1) AS score FROM %s
WHERE 1 - (embedding <=> $1) >= $2
ORDER BY embedding <=> $1 ASC, id ASC
LIMIT $3`, s.tableIdent)
	rows, err := s.pool.Query(ctx, stmt, pgv.NewVector(query), threshold, topK)
	if err != nil {
		return nil, domain.WrapError(domain.ErrUnavailable, "pgvector search", err)
	}
	defer rows.Close()

	out := make([]domain.VectorMatch, 0, topK)
	for rows.Next() {
		var (
			id          string
			metadataRaw []byte
			score       float64
		)
		if err := rows.Scan(&id, &metadataRaw, &score); err != nil {
			return nil, fmt.Errorf("pgvector: scan: %w", err)
		}
		meta := make(map[string]any)
		if len(metadataRaw) > 0 {
			if err := json.Unmarshal(metadataRaw, &meta); err != nil {
				return nil, fmt.Errorf("pgvector: decode metadata: %w", err)
			}
		}
		out = append(out, domain.VectorMatch{ID: id, Score: score, Metadata: meta})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgvector: search rows: %w", err)
	}
	return out, nil
}

func (s *Store) Health(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
