package local

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
)

// Store is an in-process cosine similarity index. The first added vector
// fixes the dimension unless one was given at construction.
type Store struct {
	mu      sync.RWMutex
	dim     int
	ids     []string
	vectors [][]float32
	norms   []float64
	meta    []map[string]any
	byID    map[string]int
}

func New(dimension int) *Store {
	return &Store{dim: dimension, byID: make(map[string]int)}
}

func (s *Store) Add(_ context.Context, records ...domain.VectorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dim := s.dim
	for _, rec := range records {
		if dim == 0 {
			dim = len(rec.Vector)
		}
		if len(rec.Vector) != dim {
			return fmt.Errorf("%w: record %s has %d, store has %d", domain.ErrDimensionMismatch, rec.ID, len(rec.Vector), dim)
		}
	}
	s.dim = dim

	for _, rec := range records {
		vec := append([]float32(nil), rec.Vector...)
		meta := make(map[string]any, len(rec.Metadata))
		for k, v := range rec.Metadata {
			meta[k] = v
		}
		if idx, ok := s.byID[rec.ID]; ok {
			s.vectors[idx], s.norms[idx], s.meta[idx] = vec, norm(vec), meta
			continue
		}
		s.byID[rec.ID] = len(s.ids)
		s.ids = append(s.ids, rec.ID)
		s.vectors = append(s.vectors, vec)
		s.norms = append(s.norms, norm(vec))
		s.meta = append(s.meta, meta)
	}
	return nil
}

// Search returns at most topK matches with cosine >= threshold, best first.
// Ties keep insertion order.
func (s *Store) Search(_ context.Context, query []float32, topK int, threshold float64) ([]domain.VectorMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if topK <= 0 || len(s.ids) == 0 {
		return nil, nil
	}
	if len(query) != s.dim {
		return nil, fmt.Errorf("%w: query has %d, store has %d", domain.ErrDimensionMismatch, len(query), s.dim)
	}

	qNorm := norm(query)
	matches := make([]domain.VectorMatch, 0, len(s.ids))
	for i, vec := range s.vectors {
		score := cosine(query, qNorm, vec, s.norms[i])
		if score < threshold {
			continue
		}
		meta := make(map[string]any, len(s.meta[i]))
		for k, v := range s.meta[i] {
			meta[k] = v
		}
		matches = append(matches, domain.VectorMatch{ID: s.ids[i], Score: score, Metadata: meta})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *Store) Health(context.Context) error { return nil }

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// cosine is 0 when either side is the zero vector.
func cosine(a []float32, an float64, b []float32, bn float64) float64 {
	if an == 0 || bn == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (an * bn)
}
