// Package openai drafts HyDE hypotheses with an OpenAI-compatible chat model.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	gopenai "github.com/sashabaranov/go-openai"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
	"github.com/kirillkom/wheel-rag/internal/infrastructure/resilience"
)

const (
	maxQueryChars   = 2000
	hypothesisLimit = 256
)

type HypothesisWriter struct {
	client   *gopenai.Client
	model    string
	executor *resilience.Executor
}

func NewHypothesisWriter(apiKey, baseURL, model string, executor *resilience.Executor) *HypothesisWriter {
	cfg := gopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &HypothesisWriter{client: gopenai.NewClientWithConfig(cfg), model: model, executor: executor}
}

func (h *HypothesisWriter) GenerateHypothesis(ctx context.Context, query string) (string, error) {
	if len(query) > maxQueryChars {
		query = query[:maxQueryChars]
	}
	text, err := resilience.Call(ctx, h.executor, "openai.hypothesis", func(callCtx context.Context) (string, error) {
		resp, err := h.client.CreateChatCompletion(callCtx, gopenai.ChatCompletionRequest{
			Model:     h.model,
			MaxTokens: hypothesisLimit,
			Messages: []gopenai.ChatCompletionMessage{
				{Role: gopenai.ChatMessageRoleSystem, Content: "Write a short factual passage that answers the question. Prefer concrete terms over hedging."},
				{Role: gopenai.ChatMessageRoleUser, Content: query},
			},
		})
		if err != nil {
			return "", fmt.Errorf("openai chat: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("openai chat: empty response")
		}
		return strings.TrimSpace(resp.Choices[0].Message.Content), nil
	}, classifyChatError)
	if err != nil {
		if classifyChatError(err).Retryable {
			return "", domain.WrapError(domain.ErrTemporary, "generate hypothesis", err)
		}
		return "", err
	}
	return text, nil
}

func classifyChatError(err error) resilience.ErrorClassification {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	var apiErr *gopenai.APIError
	if errors.As(err, &apiErr) {
		retry := apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
		return resilience.ErrorClassification{Retryable: retry, RecordFailure: retry}
	}
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}
