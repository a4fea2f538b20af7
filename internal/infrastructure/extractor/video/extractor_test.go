package video

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
	"github.com/kirillkom/wheel-rag/internal/core/ports"
)

func TestExtractReadsSidecarSRT(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "talk.mp4")
	_ = os.WriteFile(video, []byte("binary"), 0o600)
	srt := "1\n00:00:01,000 --> 00:00:02,000\n<i>Welcome</i> to Acme.\n\n2\n00:00:03,000 --> 00:00:04,000\nRevenue grew.\n"
	if err := os.WriteFile(filepath.Join(dir, "talk.srt"), []byte(srt), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	got, err := NewExtractor().Extract(context.Background(), ports.ExtractRequest{Path: video, Extension: ".mp4"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got != "Welcome to Acme.\nRevenue grew." {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestExtractReadsVTT(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "clip.avi")
	vtt := "WEBVTT\n\nNOTE generated\n\n00:00.000 --> 00:01.000\nHello there\n"
	_ = os.WriteFile(filepath.Join(dir, "clip.vtt"), []byte(vtt), 0o600)

	got, err := NewExtractor().Extract(context.Background(), ports.ExtractRequest{Path: video, Extension: ".avi"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got != "Hello there" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestExtractWithoutSubtitlesIsUnavailable(t *testing.T) {
	video := filepath.Join(t.TempDir(), "silent.mp4")
	_, err := NewExtractor().Extract(context.Background(), ports.ExtractRequest{Path: video, Extension: ".mp4"})
	if !domain.IsKind(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
