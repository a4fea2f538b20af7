package image

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
	"github.com/kirillkom/wheel-rag/internal/core/ports"
)

type fakeReader struct {
	name   string
	calls  int
	models []string
}

func (f *fakeReader) ReadImage(_ context.Context, image []byte, model string) (string, error) {
	f.calls++
	f.models = append(f.models, model)
	return f.name + "/" + model + ":" + string(image), nil
}

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scan.png")
	if err := os.WriteFile(path, []byte("pixels"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestExtractRoutesEachTierToItsOwnEngine(t *testing.T) {
	local := &fakeReader{name: "local"}
	vision := &fakeReader{name: "vision"}
	ext := NewExtractor(map[domain.OCRTier]Engine{
		domain.OCRTierLight:    {Reader: local, Model: "moondream"},
		domain.OCRTierStandard: {Reader: local, Model: "llava"},
		domain.OCRTierVision:   {Reader: vision, Model: "gpt-4o"},
	})
	path := writeImage(t)

	tests := []struct {
		tier domain.OCRTier
		want string
	}{
		{domain.OCRTierLight, "local/moondream:pixels"},
		{domain.OCRTierStandard, "local/llava:pixels"},
		{domain.OCRTierVision, "vision/gpt-4o:pixels"},
	}
	seen := make(map[string]domain.OCRTier)
	for _, tc := range tests {
		got, err := ext.Extract(context.Background(), ports.ExtractRequest{Path: path, OCRTier: tc.tier})
		if err != nil {
			t.Fatalf("Extract(%s) error = %v", tc.tier, err)
		}
		if got != tc.want {
			t.Fatalf("Extract(%s) = %q, want %q", tc.tier, got, tc.want)
		}
		if other, dup := seen[got]; dup {
			t.Fatalf("tiers %s and %s share an engine", other, tc.tier)
		}
		seen[got] = tc.tier
	}
	if local.calls != 2 || vision.calls != 1 {
		t.Fatalf("unexpected calls local=%d vision=%d", local.calls, vision.calls)
	}
}

func TestExtractWithoutEngineIsUnavailable(t *testing.T) {
	ext := NewExtractor(map[domain.OCRTier]Engine{
		domain.OCRTierLight:  {Reader: &fakeReader{name: "local"}, Model: "moondream"},
		domain.OCRTierVision: {Reader: nil, Model: "gpt-4o"},
	})
	for _, tier := range []domain.OCRTier{domain.OCRTierVision, domain.OCRTierStandard} {
		_, err := ext.Extract(context.Background(), ports.ExtractRequest{Path: writeImage(t), OCRTier: tier})
		if !domain.IsKind(err, domain.ErrUnavailable) {
			t.Fatalf("Extract(%s): expected ErrUnavailable, got %v", tier, err)
		}
	}
}

func TestOpenAIVisionSendsDataURL(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":" TOTAL 42 "},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	v := NewOpenAIVision("k", server.URL+"/v1", "gpt-4o")
	got, err := v.ReadImage(context.Background(), []byte("\x89PNG\r\n\x1a\nrest"), "")
	if err != nil {
		t.Fatalf("ReadImage() error = %v", err)
	}
	if got != "TOTAL 42" {
		t.Fatalf("unexpected text %q", got)
	}
	raw, _ := json.Marshal(body)
	if !strings.Contains(string(raw), "data:image/png;base64,") || body["model"] != "gpt-4o" {
		t.Fatalf("unexpected request %s", raw)
	}
}
