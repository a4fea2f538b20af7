package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
	"github.com/kirillkom/wheel-rag/internal/core/ports"
)

const (
	defaultEmbeddingBatchSize = 32
	embeddingCacheTTL         = 24 * time.Hour
)

// EmbeddingService batches provider calls and caches vectors per text.
type EmbeddingService struct {
	provider  ports.EmbeddingProvider
	cache     ports.Cache
	batchSize int
	logger    *slog.Logger
}

func NewEmbeddingService(provider ports.EmbeddingProvider, cache ports.Cache, batchSize int, logger *slog.Logger) *EmbeddingService {
	if batchSize <= 0 {
		batchSize = defaultEmbeddingBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbeddingService{
		provider:  provider,
		cache:     cache,
		batchSize: batchSize,
		logger:    logger,
	}
}

func (s *EmbeddingService) Model() string {
	return s.provider.Model()
}

func (s *EmbeddingService) Dimension() int {
	return s.provider.Dimension()
}

// Embed returns the vector of a single text. On provider failure the vector
// is the zero placeholder and the error is returned alongside it.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	return vectors[0], err
}

// EmbedBatch always returns one vector per input text, index-aligned. Texts
// whose batch failed get zero placeholders of the provider dimension; the
// first provider error is returned so callers can tell the batch degraded.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	missIdx := make([]int, 0, len(texts))
	for i, text := range texts {
		var cached []float32
		if s.cache != nil && s.cache.Get(ctx, s.cacheKey(text), &cached) && len(cached) == s.Dimension() {
			out[i] = cached
			continue
		}
		missIdx = append(missIdx, i)
	}

	var firstErr error
	for start := 0; start < len(missIdx); start += s.batchSize {
		end := start + s.batchSize
		if end > len(missIdx) {
			end = len(missIdx)
		}
		batch := missIdx[start:end]
		batchTexts := make([]string, len(batch))
		for i, idx := range batch {
			batchTexts[i] = texts[idx]
		}

		vectors, err := s.embedBatch(ctx, batchTexts)
		if err != nil {
			s.logger.Error("embedding_provider_failed",
				"model", s.Model(),
				"batch_size", len(batch),
				"error", err,
			)
			if firstErr == nil {
				firstErr = err
			}
			for _, idx := range batch {
				out[idx] = make([]float32, s.Dimension())
			}
			continue
		}

		for i, idx := range batch {
			out[idx] = vectors[i]
			if s.cache != nil {
				s.cache.Set(ctx, s.cacheKey(texts[idx]), vectors[i], embeddingCacheTTL)
			}
		}
	}
	return out, firstErr
}

func (s *EmbeddingService) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := s.provider.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed batch: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, domain.WrapError(
			domain.ErrDimensionMismatch,
			"embed batch",
			fmt.Errorf("vectors/texts mismatch: %d/%d", len(vectors), len(texts)),
		)
	}
	for _, v := range vectors {
		if len(v) != s.Dimension() {
			return nil, domain.WrapError(
				domain.ErrDimensionMismatch,
				"embed batch",
				fmt.Errorf("expected %d, got %d", s.Dimension(), len(v)),
			)
		}
	}
	return vectors, nil
}

func (s *EmbeddingService) Health(ctx context.Context) bool {
	_, err := s.embedBatch(ctx, []string{"test"})
	return err == nil
}

func (s *EmbeddingService) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "embed:" + s.Model() + ":" + hex.EncodeToString(sum[:])
}
