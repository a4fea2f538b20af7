package embedding

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/kirillkom/wheel-rag/internal/core/textproc"
)

// HashProvider is a deterministic local embedder based on signed feature
// hashing of word tokens. It needs no model download and keeps lexical
// similarity, which makes it usable offline and in tests.
type HashProvider struct {
	model string
	dim   int
}

func NewHashProvider(model string, dim int) *HashProvider {
	if dim <= 0 {
		dim = DimensionFor(model, 0)
	}
	return &HashProvider{model: model, dim: dim}
}

func (p *HashProvider) Model() string  { return p.model }
func (p *HashProvider) Dimension() int { return p.dim }

func (p *HashProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = p.embedOne(text)
	}
	return out, nil
}

func (p *HashProvider) embedOne(text string) []float32 {
	termFreq := make(map[string]int, 32)
	for _, token := range textproc.ContentTokens(text) {
		termFreq[token]++
	}

	acc := make([]float64, p.dim)
	for token, tf := range termFreq {
		h := fnv.New64a()
		_, _ = h.Write([]byte(token))
		sum := h.Sum64()
		idx := int(sum % uint64(p.dim))
		weight := 1 + math.Log(float64(tf))
		if (sum>>32)&1 == 0 {
			weight = -weight
		}
		acc[idx] += weight
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	out := make([]float32, p.dim)
	if norm == 0 {
		return out
	}
	norm = math.Sqrt(norm)
	for i, v := range acc {
		out[i] = float32(v / norm)
	}
	return out
}
