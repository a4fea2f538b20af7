package image

import (
	"context"
	"fmt"
	"os"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
	"github.com/kirillkom/wheel-rag/internal/core/ports"
)

// Reader transcribes the text in an image. An empty model selects the
// reader's default.
type Reader interface {
	ReadImage(ctx context.Context, image []byte, model string) (string, error)
}

// Engine is the OCR reader and model serving one tier.
type Engine struct {
	Reader Reader
	Model  string
}

// Extractor routes images to the OCR engine of the request's tier, so the
// processing cost of an image follows the mode it is ingested under.
type Extractor struct {
	engines map[domain.OCRTier]Engine
}

func NewExtractor(engines map[domain.OCRTier]Engine) *Extractor {
	out := make(map[domain.OCRTier]Engine, len(engines))
	for tier, engine := range engines {
		out[tier] = engine
	}
	return &Extractor{engines: out}
}

func (e *Extractor) Extract(ctx context.Context, req ports.ExtractRequest) (string, error) {
	engine, ok := e.engines[req.OCRTier]
	if !ok || engine.Reader == nil {
		return "", fmt.Errorf("%w: no OCR engine for tier %q", domain.ErrUnavailable, req.OCRTier)
	}

	raw, err := os.ReadFile(req.Path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	text, err := engine.Reader.ReadImage(ctx, raw, engine.Model)
	if err != nil {
		return "", fmt.Errorf("ocr %s: %w", req.OCRTier, err)
	}
	return text, nil
}
