package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
	"github.com/kirillkom/wheel-rag/internal/core/ports"
)

const extractCacheTTL = 24 * time.Hour

// ExtractorRegistry maps lowercase extensions, leading dot included, to extractors.
type ExtractorRegistry map[string]ports.TextExtractor

// DocumentProcessor validates a file and dispatches it to the extractor
// registered for its extension.
type DocumentProcessor struct {
	extractors ExtractorRegistry
	cache      ports.Cache
	logger     *slog.Logger
}

func NewDocumentProcessor(extractors ExtractorRegistry, cache ports.Cache, logger *slog.Logger) *DocumentProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	normalized := make(ExtractorRegistry, len(extractors))
	for ext, extractor := range extractors {
		normalized[normalizeExtension(ext)] = extractor
	}
	return &DocumentProcessor{
		extractors: normalized,
		cache:      cache,
		logger:     logger,
	}
}

func (p *DocumentProcessor) Supported(path string) bool {
	_, ok := p.extractors[normalizeExtension(filepath.Ext(path))]
	return ok
}

func (p *DocumentProcessor) SupportedExtensions() []string {
	out := make([]string, 0, len(p.extractors))
	for ext := range p.extractors {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Validate checks the extension allow-list and that path is a regular file.
func (p *DocumentProcessor) Validate(path string) error {
	ext := normalizeExtension(filepath.Ext(path))
	if _, ok := p.extractors[ext]; !ok {
		return domain.WrapError(domain.ErrUnsupportedFormat, "validate document", fmt.Errorf("extension %q", ext))
	}
	info, err := os.Stat(path)
	if err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "validate document", err)
	}
	if info.IsDir() {
		return domain.WrapError(domain.ErrInvalidInput, "validate document", fmt.Errorf("%s is a directory", path))
	}
	return nil
}

// Extract returns the text of one file under the given mode. Extractor
// failures become a fallback marker text; only validation errors are returned.
func (p *DocumentProcessor) Extract(ctx context.Context, path string, cfg domain.ModeConfig) (string, error) {
	if err := p.Validate(path); err != nil {
		return "", err
	}

	key := "extract:" + path + ":" + string(cfg.Mode)
	var cached string
	if p.cache != nil && p.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	ext := normalizeExtension(filepath.Ext(path))
	text, err := p.extractors[ext].Extract(ctx, ports.ExtractRequest{
		Path:      path,
		Extension: ext,
		Mode:      cfg.Mode,
		OCRTier:   cfg.OCRTier,
	})
	if err != nil {
		p.logger.Error("text_extraction_failed",
			"path", path,
			"extension", ext,
			"mode", cfg.Mode,
			"unavailable", errors.Is(err, domain.ErrUnavailable),
			"error", err,
		)
		return fallbackMarker(ext, path, err), nil
	}

	text = strings.TrimSpace(text)
	if text != "" && p.cache != nil {
		p.cache.Set(ctx, key, text, extractCacheTTL)
	}
	return text, nil
}

type BatchExtraction struct {
	Text string
	Err  error
}

// BatchExtract runs Extract for each path; one failure does not stop the rest.
func (p *DocumentProcessor) BatchExtract(ctx context.Context, paths []string, cfg domain.ModeConfig) map[string]BatchExtraction {
	out := make(map[string]BatchExtraction, len(paths))
	for _, path := range paths {
		text, err := p.Extract(ctx, path, cfg)
		out[path] = BatchExtraction{Text: text, Err: err}
	}
	return out
}

func fallbackMarker(ext, path string, err error) string {
	reason := "extraction failed"
	if errors.Is(err, domain.ErrUnavailable) {
		reason = "engine unavailable"
	}
	switch ext {
	case ".jpg", ".jpeg", ".png":
		if errors.Is(err, domain.ErrUnavailable) {
			reason = "OCR unavailable"
		} else {
			reason = "OCR failed"
		}
		return fmt.Sprintf("[image content] file: %s (%s)", path, reason)
	case ".mp4", ".avi":
		return fmt.Sprintf("[video content] file: %s (%s)", path, reason)
	case ".pdf":
		return fmt.Sprintf("[pdf content] file: %s (%s)", path, reason)
	case ".docx":
		return fmt.Sprintf("[word content] file: %s (%s)", path, reason)
	case ".xlsx":
		return fmt.Sprintf("[spreadsheet content] file: %s (%s)", path, reason)
	default:
		return fmt.Sprintf("[text content] file: %s (%s)", path, reason)
	}
}

func normalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
