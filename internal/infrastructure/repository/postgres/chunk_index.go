package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
)

// ChunkIndex is a keyword index over the chunks table using Postgres full
// text search. Scores are ts_rank_cd divided by the best score of the query.
type ChunkIndex struct {
	db *sql.DB
}

func NewChunkIndex(db *sql.DB) *ChunkIndex {
	return &ChunkIndex{db: db}
}

func (x *ChunkIndex) Index(ctx context.Context, chunks []domain.IndexedChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin chunk tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, c := range chunks {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO chunks (chunk_id, document_id, source, chunk_index, text)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (chunk_id) DO UPDATE SET text = excluded.text
`, c.ID, c.DocumentID, c.Source, c.Index, c.Text); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chunk tx: %w", err)
	}
	return nil
}

func (x *ChunkIndex) Search(ctx context.Context, query string, limit int) ([]domain.RetrievalResult, error) {
	tsQuery := orQuery(query)
	if tsQuery == "" || limit <= 0 {
		return nil, nil
	}

	rows, err := x.db.QueryContext(ctx, `
SELECT chunk_id, document_id, source, chunk_index, text, ts_rank_cd(tsv, to_tsquery('simple', $1)) AS score
FROM chunks
WHERE tsv @@ to_tsquery('simple', $1)
ORDER BY score DESC, chunk_id ASC
LIMIT $2
`, tsQuery, limit)
	if err != nil {
		return nil, domain.WrapError(domain.ErrUnavailable, "keyword search", err)
	}
	defer rows.Close()

	out := make([]domain.RetrievalResult, 0, limit)
	for rows.Next() {
		var (
			chunkID, documentID, source, text string
			index                             int
			score                             float64
		)
		if err := rows.Scan(&chunkID, &documentID, &source, &index, &text, &score); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		out = append(out, domain.RetrievalResult{
			Rank:   len(out) + 1,
			Text:   text,
			Score:  score,
			Source: source,
			Metadata: map[string]any{
				"document_id": documentID,
				"chunk_index": index,
				"chunk_id":    chunkID,
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	if len(out) > 0 && out[0].Score > 0 {
		top := out[0].Score
		for i := range out {
			out[i].Score /= top
		}
	}
	return out, nil
}

// orQuery turns free text into a to_tsquery expression matching any term.
// Only letters and digits survive, so the result is safe to pass through.
func orQuery(text string) string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(fields))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		terms = append(terms, f)
	}
	return strings.Join(terms, " | ")
}
