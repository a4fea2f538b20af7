// Package keyword provides an in-process BM25 index over chunks.
package keyword

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
	"github.com/kirillkom/wheel-rag/internal/core/textproc"
)

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

type entry struct {
	chunk  domain.IndexedChunk
	tf     map[string]int
	length int
}

// Index scores chunks with Okapi BM25. Search scores are divided by the best
// score of the query so they fall in (0, 1].
type Index struct {
	mu       sync.RWMutex
	entries  []entry
	byID     map[string]int
	docFreq  map[string]int
	totalLen int
}

func NewIndex() *Index {
	return &Index{byID: make(map[string]int), docFreq: make(map[string]int)}
}

func (x *Index) Index(_ context.Context, chunks []domain.IndexedChunk) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	for _, c := range chunks {
		if idx, ok := x.byID[c.ID]; ok {
			x.forget(idx)
			x.entries[idx] = x.build(c)
			continue
		}
		x.byID[c.ID] = len(x.entries)
		x.entries = append(x.entries, x.build(c))
	}
	return nil
}

func (x *Index) build(c domain.IndexedChunk) entry {
	tokens := textproc.ContentTokens(c.Text)
	tf := make(map[string]int, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}
	for t := range tf {
		x.docFreq[t]++
	}
	x.totalLen += len(tokens)
	return entry{chunk: c, tf: tf, length: len(tokens)}
}

func (x *Index) forget(idx int) {
	old := x.entries[idx]
	for t := range old.tf {
		x.docFreq[t]--
	}
	x.totalLen -= old.length
}

func (x *Index) Search(_ context.Context, query string, limit int) ([]domain.RetrievalResult, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	terms := textproc.ContentTokens(query)
	if limit <= 0 || len(terms) == 0 || len(x.entries) == 0 {
		return nil, nil
	}

	n := float64(len(x.entries))
	avgLen := float64(x.totalLen) / n
	if avgLen == 0 {
		avgLen = 1
	}

	type scored struct {
		idx   int
		score float64
	}
	hits := make([]scored, 0)
	for i, e := range x.entries {
		var score float64
		for _, term := range terms {
			tf := float64(e.tf[term])
			if tf == 0 {
				continue
			}
			df := float64(x.docFreq[term])
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			score += idf * tf * (bm25K1 + 1) / (tf + bm25K1*(1-bm25B+bm25B*float64(e.length)/avgLen))
		}
		if score > 0 {
			hits = append(hits, scored{idx: i, score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > limit {
		hits = hits[:limit]
	}

	out := make([]domain.RetrievalResult, 0, len(hits))
	for rank, h := range hits {
		c := x.entries[h.idx].chunk
		out = append(out, domain.RetrievalResult{
			Rank:   rank + 1,
			Text:   c.Text,
			Score:  h.score / hits[0].score,
			Source: c.Source,
			Metadata: map[string]any{
				"document_id": c.DocumentID,
				"chunk_index": c.Index,
				"chunk_id":    c.ID,
			},
		})
	}
	return out, nil
}
