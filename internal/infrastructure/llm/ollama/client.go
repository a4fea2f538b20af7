package ollama

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
	"github.com/kirillkom/wheel-rag/internal/infrastructure/resilience"
)

type Options struct {
	BaseURL     string
	GenModel    string
	EmbedModel  string
	VisionModel string
	Timeout     time.Duration
	Executor    *resilience.Executor
}

type Client struct {
	baseURL     string
	genModel    string
	embedModel  string
	visionModel string
	httpClient  *http.Client
	executor    *resilience.Executor
}

func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		genModel:    opts.GenModel,
		embedModel:  opts.EmbedModel,
		visionModel: opts.VisionModel,
		httpClient:  &http.Client{Timeout: timeout},
		executor:    opts.Executor,
	}
}

// Embedder serves embeddings from /api/embed with a fixed output dimension.
type Embedder struct {
	client *Client
	dim    int
}

func NewEmbedder(client *Client, dimension int) *Embedder {
	return &Embedder{client: client, dim: dimension}
}

func (e *Embedder) Model() string  { return e.client.embedModel }
func (e *Embedder) Dimension() int { return e.dim }

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.postJSON(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return nil, err
	}
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: got %d vectors for %d inputs", len(response.Embeddings), len(texts))
	}
	for _, vec := range response.Embeddings {
		if e.dim > 0 && len(vec) != e.dim {
			return nil, fmt.Errorf("%w: ollama returned %d, want %d", domain.ErrDimensionMismatch, len(vec), e.dim)
		}
	}
	return response.Embeddings, nil
}

// HypothesisWriter drafts the hypothetical answer used for HyDE retrieval.
type HypothesisWriter struct {
	client *Client
}

func NewHypothesisWriter(client *Client) *HypothesisWriter {
	return &HypothesisWriter{client: client}
}

func (h *HypothesisWriter) GenerateHypothesis(ctx context.Context, query string) (string, error) {
	return h.client.generate(ctx, map[string]any{
		"model":  h.client.genModel,
		"prompt": buildHypothesisPrompt(query),
		"stream": false,
	})
}

// VisionReader transcribes images with a multimodal model.
type VisionReader struct {
	client *Client
}

func NewVisionReader(client *Client) *VisionReader {
	return &VisionReader{client: client}
}

// ReadImage returns the text visible in the image. An empty model name
// selects the client's default vision model.
func (v *VisionReader) ReadImage(ctx context.Context, image []byte, model string) (string, error) {
	if model == "" {
		model = v.client.visionModel
	}
	if model == "" {
		return "", fmt.Errorf("%w: no ollama vision model configured", domain.ErrUnavailable)
	}
	return v.client.generate(ctx, map[string]any{
		"model":  model,
		"prompt": ocrPrompt,
		"images": []string{base64.StdEncoding.EncodeToString(image)},
		"stream": false,
	})
}

func (c *Client) generate(ctx context.Context, reqBody map[string]any) (string, error) {
	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}
