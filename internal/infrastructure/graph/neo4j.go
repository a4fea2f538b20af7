package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
)

type queryFunc func(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)

// Neo4jGraph stores (:Entity)-[:MENTIONED_IN]->(:Chunk) edges in Neo4j.
type Neo4jGraph struct {
	query queryFunc
	close func(context.Context) error
}

func OpenNeo4j(ctx context.Context, uri, user, password, database string) (*Neo4jGraph, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, domain.WrapError(domain.ErrUnavailable, "neo4j connect", err)
	}

	run := func(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
		res, err := neo4j.ExecuteQuery(ctx, driver, cypher, params,
			neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(database))
		if err != nil {
			return nil, err
		}
		rows := make([]map[string]any, 0, len(res.Records))
		for _, rec := range res.Records {
			rows = append(rows, rec.AsMap())
		}
		return rows, nil
	}
	return &Neo4jGraph{query: run, close: driver.Close}, nil
}

const mergeMentionsCypher = `
MERGE (c:Chunk {id: $chunk_id})
SET c.text = $text, c.document_id = $document_id, c.source = $source, c.chunk_index = $chunk_index
WITH c
UNWIND $entities AS name
MERGE (e:Entity {name: name})
MERGE (e)-[:MENTIONED_IN]->(c)`

const searchMentionsCypher = `
MATCH (e:Entity)-[:MENTIONED_IN]->(c:Chunk)
WHERE e.name IN $entities
WITH c, count(DISTINCT e) AS hits
RETURN c.id AS chunk_id, c.text AS text, c.document_id AS document_id,
       c.source AS source, c.chunk_index AS chunk_index, hits
ORDER BY hits DESC, c.id ASC
LIMIT $limit`

func (g *Neo4jGraph) IndexEntities(ctx context.Context, chunk domain.IndexedChunk, entities []string) error {
	names := normalizeEntities(entities)
	if len(names) == 0 {
		return nil
	}
	_, err := g.query(ctx, mergeMentionsCypher, map[string]any{
		"chunk_id":    chunk.ID,
		"text":        chunk.Text,
		"document_id": chunk.DocumentID,
		"source":      chunk.Source,
		"chunk_index": chunk.Index,
		"entities":    names,
	})
	if err != nil {
		return fmt.Errorf("neo4j index entities: %w", err)
	}
	return nil
}

func (g *Neo4jGraph) SearchEntities(ctx context.Context, entities []string, limit int) ([]domain.RetrievalResult, error) {
	names := normalizeEntities(entities)
	if limit <= 0 || len(names) == 0 {
		return nil, nil
	}
	rows, err := g.query(ctx, searchMentionsCypher, map[string]any{"entities": names, "limit": limit})
	if err != nil {
		return nil, domain.WrapError(domain.ErrUnavailable, "neo4j search entities", err)
	}

	out := make([]domain.RetrievalResult, 0, len(rows))
	for i, row := range rows {
		out = append(out, entityResult(i+1,
			stringValue(row["chunk_id"]),
			stringValue(row["document_id"]),
			stringValue(row["source"]),
			stringValue(row["text"]),
			int(intValue(row["chunk_index"])),
			int(intValue(row["hits"])),
			len(names),
		))
	}
	return out, nil
}

func (g *Neo4jGraph) Close(ctx context.Context) error {
	if g.close == nil {
		return nil
	}
	return g.close(ctx)
}

func stringValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func intValue(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}
