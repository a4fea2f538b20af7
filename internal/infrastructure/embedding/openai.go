package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
	"github.com/kirillkom/wheel-rag/internal/infrastructure/resilience"
)

// OpenAIProvider calls an OpenAI-compatible embeddings endpoint. Any
// compatible gateway works through the base URL.
type OpenAIProvider struct {
	client   *openai.Client
	model    string
	dim      int
	executor *resilience.Executor
}

type OpenAIOptions struct {
	APIKey             string
	BaseURL            string
	Model              string
	Dimension          int
	ResilienceExecutor *resilience.Executor
}

func NewOpenAIProvider(opts OpenAIOptions) *OpenAIProvider {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	return &OpenAIProvider{
		client:   openai.NewClientWithConfig(cfg),
		model:    opts.Model,
		dim:      DimensionFor(opts.Model, opts.Dimension),
		executor: opts.ResilienceExecutor,
	}
}

func (p *OpenAIProvider) Model() string  { return p.model }
func (p *OpenAIProvider) Dimension() int { return p.dim }

func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out, err := resilience.Call(ctx, p.executor, "openai.embeddings", func(callCtx context.Context) ([][]float32, error) {
		resp, err := p.client.CreateEmbeddings(callCtx, openai.EmbeddingRequest{
			Input: texts,
			Model: openai.EmbeddingModel(p.model),
		})
		if err != nil {
			return nil, fmt.Errorf("openai embeddings: %w", err)
		}
		if len(resp.Data) != len(texts) {
			return nil, fmt.Errorf("openai embeddings: got %d vectors for %d inputs", len(resp.Data), len(texts))
		}
		sort.SliceStable(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })
		vectors := make([][]float32, len(resp.Data))
		for i, item := range resp.Data {
			if len(item.Embedding) != p.dim {
				return nil, fmt.Errorf("%w: openai returned %d, want %d", domain.ErrDimensionMismatch, len(item.Embedding), p.dim)
			}
			vectors[i] = item.Embedding
		}
		return vectors, nil
	}, classifyOpenAIError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded(err)
	}
	return out, nil
}

func classifyOpenAIError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	if status, ok := openAIStatus(err); ok {
		if status == http.StatusTooManyRequests || status >= 500 {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if errors.Is(err, domain.ErrDimensionMismatch) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}

func openAIStatus(err error) (int, bool) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode, true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode, true
	}
	return 0, false
}

func wrapTemporaryIfNeeded(err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyOpenAIError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, "openai embeddings", err)
	}
	return err
}
