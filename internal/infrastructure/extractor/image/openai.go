package image

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
)

const visionPrompt = "Extract all text visible in this image. Return only the text."

// OpenAIVision transcribes images with an OpenAI-compatible chat model.
type OpenAIVision struct {
	client *openai.Client
	model  string
}

func NewOpenAIVision(apiKey, baseURL, model string) *OpenAIVision {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIVision{client: openai.NewClientWithConfig(cfg), model: model}
}

func (v *OpenAIVision) ReadImage(ctx context.Context, image []byte, model string) (string, error) {
	if model == "" {
		model = v.model
	}
	dataURL := "data:" + http.DetectContentType(image) + ";base64," + base64.StdEncoding.EncodeToString(image)

	resp, err := v.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL}},
				{Type: openai.ChatMessagePartTypeText, Text: visionPrompt},
			},
		}},
	})
	if err != nil {
		return "", domain.WrapError(domain.ErrUnavailable, "openai vision", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai vision: empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
