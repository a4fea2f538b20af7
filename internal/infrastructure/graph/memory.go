// Package graph links entity names to the chunks that mention them.
package graph

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
)

// MemoryGraph is an in-process entity to chunk index.
type MemoryGraph struct {
	mu       sync.RWMutex
	chunks   map[string]domain.IndexedChunk
	order    map[string]int
	mentions map[string]map[string]struct{}
}

func NewMemoryGraph() *MemoryGraph {
	return &MemoryGraph{
		chunks:   make(map[string]domain.IndexedChunk),
		order:    make(map[string]int),
		mentions: make(map[string]map[string]struct{}),
	}
}

func (g *MemoryGraph) IndexEntities(_ context.Context, chunk domain.IndexedChunk, entities []string) error {
	if len(entities) == 0 {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.order[chunk.ID]; !ok {
		g.order[chunk.ID] = len(g.order)
	}
	g.chunks[chunk.ID] = chunk
	for _, e := range normalizeEntities(entities) {
		set, ok := g.mentions[e]
		if !ok {
			set = make(map[string]struct{})
			g.mentions[e] = set
		}
		set[chunk.ID] = struct{}{}
	}
	return nil
}

func (g *MemoryGraph) SearchEntities(_ context.Context, entities []string, limit int) ([]domain.RetrievalResult, error) {
	names := normalizeEntities(entities)
	if limit <= 0 || len(names) == 0 {
		return nil, nil
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	hits := make(map[string]int)
	for _, name := range names {
		for id := range g.mentions[name] {
			hits[id]++
		}
	}
	ids := make([]string, 0, len(hits))
	for id := range hits {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if hits[ids[i]] != hits[ids[j]] {
			return hits[ids[i]] > hits[ids[j]]
		}
		return g.order[ids[i]] < g.order[ids[j]]
	})
	if len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]domain.RetrievalResult, 0, len(ids))
	for i, id := range ids {
		c := g.chunks[id]
		out = append(out, entityResult(i+1, c.ID, c.DocumentID, c.Source, c.Text, c.Index, hits[id], len(names)))
	}
	return out, nil
}

func entityResult(rank int, chunkID, documentID, source, text string, index, hits, asked int) domain.RetrievalResult {
	return domain.RetrievalResult{
		Rank:   rank,
		Text:   text,
		Score:  float64(hits) / float64(asked),
		Source: source,
		Metadata: map[string]any{
			"document_id": documentID,
			"chunk_index": index,
			"chunk_id":    chunkID,
			"entity_hits": hits,
		},
	}
}

func normalizeEntities(entities []string) []string {
	seen := make(map[string]struct{}, len(entities))
	out := make([]string, 0, len(entities))
	for _, e := range entities {
		key := strings.ToLower(strings.TrimSpace(e))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}
