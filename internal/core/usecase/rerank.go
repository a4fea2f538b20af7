package usecase

import (
	"sort"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
	"github.com/kirillkom/wheel-rag/internal/core/textproc"
)

// rerankByOverlap scores each candidate by the Jaccard index of the query and
// candidate word sets, stores it as RerankScore and re-sorts on it. Ties keep
// the incoming order, so identical inputs always give the same ranking.
func rerankByOverlap(query string, results []domain.RetrievalResult) []domain.RetrievalResult {
	if len(results) == 0 {
		return results
	}
	queryTokens := textproc.WordSet(query)

	out := make([]domain.RetrievalResult, len(results))
	copy(out, results)
	for i := range out {
		score := jaccard(queryTokens, textproc.WordSet(out[i].Text))
		out[i].RerankScore = &score
	}

	sort.SliceStable(out, func(i, j int) bool {
		return *out[i].RerankScore > *out[j].RerankScore
	})
	return renumber(out)
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for token := range a {
		if _, ok := b[token]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
