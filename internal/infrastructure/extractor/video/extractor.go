package video

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
	"github.com/kirillkom/wheel-rag/internal/core/ports"
)

var (
	cueIndex = regexp.MustCompile(`^\d+$`)
	markup   = regexp.MustCompile(`<[^>]+>`)
)

// Extractor reads the subtitle track stored next to a video file
// (movie.mp4 -> movie.srt or movie.vtt). Without one the transcript is
// unavailable.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(_ context.Context, req ports.ExtractRequest) (string, error) {
	base := strings.TrimSuffix(req.Path, req.Extension)
	for _, ext := range []string{".srt", ".vtt"} {
		raw, err := os.ReadFile(base + ext)
		if err == nil {
			return subtitleText(raw), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("read subtitles: %w", err)
		}
	}
	return "", fmt.Errorf("%w: no subtitle track for %s", domain.ErrUnavailable, req.Path)
}

// subtitleText keeps the cue text of SRT/WebVTT content.
func subtitleText(raw []byte) string {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		switch {
		case line == "", line == "WEBVTT", strings.HasPrefix(line, "NOTE"):
			continue
		case strings.Contains(line, "-->"), cueIndex.MatchString(line):
			continue
		}
		if text := strings.TrimSpace(markup.ReplaceAllString(line, "")); text != "" {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, "\n")
}
