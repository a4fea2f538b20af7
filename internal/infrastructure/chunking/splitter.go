package chunking

import (
	"fmt"
	"strconv"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
)

// Splitter cuts text into fixed-size character windows. Offsets are rune
// offsets into the source text and chunk text is never trimmed, so the spans
// of all chunks cover the text exactly.
type Splitter struct{}

func NewSplitter() *Splitter {
	return &Splitter{}
}

func (s *Splitter) Split(source, text string, size, overlap int) ([]domain.Chunk, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrConfig, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: chunk overlap %d must be in [0, %d)", domain.ErrConfig, overlap, size)
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}

	step := size - overlap
	out := make([]domain.Chunk, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		index := len(out)
		out = append(out, domain.Chunk{
			ID:    source + "_" + strconv.Itoa(index),
			Index: index,
			Text:  string(runes[start:end]),
			Start: start,
			End:   end,
		})
		if end == len(runes) {
			break
		}
	}
	return out, nil
}
