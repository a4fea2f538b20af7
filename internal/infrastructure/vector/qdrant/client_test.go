package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
)

func TestAddEnsuresCollectionOnce(t *testing.T) {
	var ensureCalls int32
	var upserted []point
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/docs":
			atomic.AddInt32(&ensureCalls, 1)
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/docs/points":
			var body struct {
				Points []point `json:"points"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			upserted = append(upserted, body.Points...)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "docs", 2)
	rec := domain.VectorRecord{ID: "abc_0", Vector: []float32{0.1, 0.2}, Metadata: map[string]any{"document_id": "abc"}}

	for i := 0; i < 2; i++ {
		if err := client.Add(context.Background(), rec); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}
	if got := atomic.LoadInt32(&ensureCalls); got != 1 {
		t.Fatalf("expected ensure collection called once, got %d", got)
	}
	if len(upserted) != 2 || upserted[0].ID != upserted[1].ID {
		t.Fatalf("expected stable point ids, got %+v", upserted)
	}
	if upserted[0].Payload["chunk_id"] != "abc_0" {
		t.Fatalf("expected chunk id in payload, got %v", upserted[0].Payload)
	}
}

func TestAddRejectsDimensionMismatch(t *testing.T) {
	client := New("http://127.0.0.1:1", "docs", 3)
	err := client.Add(context.Background(), domain.VectorRecord{ID: "x", Vector: []float32{1}})
	if !domain.IsKind(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestEnsureCollectionIncludesResponseBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == "/collections/docs" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL, "docs", 2)
	err := client.Add(context.Background(), domain.VectorRecord{ID: "a", Vector: []float32{0.1, 0.2}})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected error to include body, got %v", err)
	}
}

func TestSearchSendsThresholdAndMapsPayload(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_, _ = w.Write([]byte(`{"result":[
			{"score":0.9,"payload":{"chunk_id":"d_0","text":"alpha"}},
			{"score":0.2,"payload":{"chunk_id":"d_1","text":"beta"}}
		]}`))
	}))
	defer server.Close()

	client := New(server.URL, "docs", 2)
	matches, err := client.Search(context.Background(), []float32{1, 0}, 5, 0.5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if captured["score_threshold"] != 0.5 || captured["limit"] != float64(5) {
		t.Fatalf("unexpected request %v", captured)
	}
	if len(matches) != 1 || matches[0].ID != "d_0" || matches[0].Metadata["text"] != "alpha" {
		t.Fatalf("unexpected matches %+v", matches)
	}
}

func TestSearchMissingCollectionIsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status":{"error":"Not found"}}`, http.StatusNotFound)
	}))
	defer server.Close()

	matches, err := New(server.URL, "docs", 2).Search(context.Background(), []float32{1, 0}, 5, 0)
	if err != nil || len(matches) != 0 {
		t.Fatalf("expected empty result, got %v err=%v", matches, err)
	}
}
