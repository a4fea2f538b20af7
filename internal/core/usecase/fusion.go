package usecase

import (
	"sort"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
)

const mergeKeyChars = 100

type mergedCandidate struct {
	result domain.RetrievalResult
	order  int
}

// mergeWeighted fuses two ranked lists. Candidates are identified by the
// first characters of their text; a candidate present in both lists gets the
// weighted sum of its scores. Output keeps first-appearance order.
func mergeWeighted(first, second []domain.RetrievalResult, weights [2]float64) []domain.RetrievalResult {
	acc := make(map[string]*mergedCandidate, len(first)+len(second))
	addList := func(results []domain.RetrievalResult, weight float64) {
		for _, r := range results {
			key := mergeKey(r.Text)
			if c, ok := acc[key]; ok {
				c.result.Score += r.Score * weight
				continue
			}
			merged := r
			merged.Score = r.Score * weight
			merged.RerankScore = nil
			acc[key] = &mergedCandidate{result: merged, order: len(acc)}
		}
	}
	addList(first, weights[0])
	addList(second, weights[1])

	out := make([]domain.RetrievalResult, len(acc))
	for _, c := range acc {
		out[c.order] = c.result
	}
	return out
}

func mergeKey(text string) string {
	return truncateRunes(text, mergeKeyChars)
}

// sortByScore orders by descending score; equal scores keep their order.
func sortByScore(results []domain.RetrievalResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}

func trimResults(results []domain.RetrievalResult, limit int) []domain.RetrievalResult {
	if limit <= 0 || len(results) <= limit {
		return results
	}
	return results[:limit]
}

func renumber(results []domain.RetrievalResult) []domain.RetrievalResult {
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}
