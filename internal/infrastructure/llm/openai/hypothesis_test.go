package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
	"github.com/kirillkom/wheel-rag/internal/infrastructure/resilience"
)

func TestGenerateHypothesis(t *testing.T) {
	var gotModel, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		gotModel = body.Model
		gotQuery = body.Messages[len(body.Messages)-1].Content
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"  Revenue grew 12%.  "}}]}`))
	}))
	defer srv.Close()

	writer := NewHypothesisWriter("key", srv.URL+"/v1", "gpt-4-turbo", nil)
	text, err := writer.GenerateHypothesis(context.Background(), "how did revenue change?")
	if err != nil {
		t.Fatalf("GenerateHypothesis() error = %v", err)
	}
	if text != "Revenue grew 12%." || gotModel != "gpt-4-turbo" || gotQuery != "how did revenue change?" {
		t.Fatalf("unexpected exchange: text=%q model=%q query=%q", text, gotModel, gotQuery)
	}
}

func TestGenerateHypothesisRetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer srv.Close()

	exec := resilience.NewExecutor(resilience.Config{RetryMaxAttempts: 2, RetryInitialBackoff: time.Millisecond})
	writer := NewHypothesisWriter("key", srv.URL+"/v1", "gpt-4-turbo", exec)
	_, err := writer.GenerateHypothesis(context.Background(), "q")
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}
