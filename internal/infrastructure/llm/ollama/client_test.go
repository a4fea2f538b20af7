package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
	"github.com/kirillkom/wheel-rag/internal/infrastructure/resilience"
)

func TestHypothesisWriterSendsQueryInPrompt(t *testing.T) {
	var capturedPrompt, capturedModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		capturedPrompt, _ = payload["prompt"].(string)
		capturedModel, _ = payload["model"].(string)
		_, _ = w.Write([]byte(`{"response":"  Acme revenue was five million.  "}`))
	}))
	defer server.Close()

	writer := NewHypothesisWriter(New(Options{BaseURL: server.URL, GenModel: "gen"}))
	got, err := writer.GenerateHypothesis(context.Background(), "What was Acme's revenue?")
	if err != nil {
		t.Fatalf("GenerateHypothesis() error = %v", err)
	}
	if got != "Acme revenue was five million." {
		t.Fatalf("unexpected hypothesis %q", got)
	}
	if capturedModel != "gen" || !strings.Contains(capturedPrompt, "What was Acme's revenue?") {
		t.Fatalf("unexpected request model=%q prompt=%q", capturedModel, capturedPrompt)
	}
}

func TestVisionReaderAttachesImage(t *testing.T) {
	var images []any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		images, _ = payload["images"].([]any)
		_, _ = w.Write([]byte(`{"response":"INVOICE 42"}`))
	}))
	defer server.Close()

	reader := NewVisionReader(New(Options{BaseURL: server.URL, VisionModel: "llava"}))
	got, err := reader.ReadImage(context.Background(), []byte("png-bytes"), "")
	if err != nil {
		t.Fatalf("ReadImage() error = %v", err)
	}
	if got != "INVOICE 42" || len(images) != 1 {
		t.Fatalf("unexpected result %q images=%v", got, images)
	}
}

func TestVisionReaderWithoutModelIsUnavailable(t *testing.T) {
	reader := NewVisionReader(New(Options{BaseURL: "http://127.0.0.1:1"}))
	if _, err := reader.ReadImage(context.Background(), []byte("x"), ""); !domain.IsKind(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestEmbedIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	embedder := NewEmbedder(New(Options{BaseURL: server.URL, EmbedModel: "embed"}), 3)
	_, err := embedder.Embed(context.Background(), []string{"hello"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected 502 to be temporary, got %v", err)
	}
}

func TestEmbedRejectsWrongDimension(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2]]}`))
	}))
	defer server.Close()

	embedder := NewEmbedder(New(Options{BaseURL: server.URL, EmbedModel: "embed"}), 3)
	if _, err := embedder.Embed(context.Background(), []string{"hello"}); !domain.IsKind(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestEmbedRetriesThroughExecutor(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"embeddings":[[1,0,0]]}`))
	}))
	defer server.Close()

	exec := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
	})
	embedder := NewEmbedder(New(Options{BaseURL: server.URL, EmbedModel: "embed", Executor: exec}), 3)
	if _, err := embedder.Embed(context.Background(), []string{"hello"}); err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected a retry, got %d calls", calls)
	}
}

func TestClassifyOllamaError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		record    bool
	}{
		{"throttled", &StatusError{Operation: "embed", StatusCode: http.StatusTooManyRequests}, true, true},
		{"bad gateway", fmt.Errorf("wrapped: %w", &StatusError{Operation: "embed", StatusCode: http.StatusBadGateway}), true, true},
		{"unknown model", &StatusError{Operation: "generate", StatusCode: http.StatusNotFound}, false, false},
		{"cancelled", context.Canceled, false, false},
		{"decode", errors.New("decode embed response"), false, true},
	}
	for _, tc := range tests {
		got := classifyOllamaError(tc.err)
		if got.Retryable != tc.retryable || got.RecordFailure != tc.record {
			t.Fatalf("%s: got %+v", tc.name, got)
		}
	}
	if err := wrapTemporaryIfNeeded("ollama.embed", &StatusError{StatusCode: 503}); !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
}
