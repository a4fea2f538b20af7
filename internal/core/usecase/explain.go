package usecase

import (
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
)

func explain(resp domain.QueryResponse, cfg domain.ModeConfig, latency time.Duration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "query: %s\n", resp.Query)
	fmt.Fprintf(&b, "mode: %s\n", cfg.Mode)
	fmt.Fprintf(&b, "strategy: %s\n", resp.Strategy)
	fmt.Fprintf(&b, "reranking: %t\n", resp.Reranked)
	fmt.Fprintf(&b, "from cache: %t\n", resp.FromCache)
	fmt.Fprintf(&b, "results: %d\n", resp.Count)
	if len(resp.Results) > 0 {
		fmt.Fprintf(&b, "top score: %.4f\n", resp.Results[0].Score)
	}
	fmt.Fprintf(&b, "latency: %dms\n", latency.Milliseconds())
	b.WriteString("steps:\n")
	steps := []string{"query preprocessing and embedding", strings.ToUpper(string(resp.Strategy)) + " retrieval"}
	if cfg.Retrieval.Strategy == domain.StrategyAdvanced {
		if cfg.Retrieval.HyDE {
			steps = append(steps, "hypothetical document expansion")
		}
		if cfg.Retrieval.KnowledgeGraph {
			steps = append(steps, "knowledge graph lookup")
		}
	}
	if resp.Reranked {
		steps = append(steps, "token overlap reranking")
	}
	steps = append(steps, "final ordering")
	for i, step := range steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	return strings.TrimRight(b.String(), "\n")
}
