package keyword

import (
	"context"
	"testing"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
)

func chunk(id, text string) domain.IndexedChunk {
	return domain.IndexedChunk{DocumentID: "doc", Source: "doc.txt", Chunk: domain.Chunk{ID: id, Text: text}}
}

func TestSearchRanksByTermOverlap(t *testing.T) {
	idx := NewIndex()
	err := idx.Index(context.Background(), []domain.IndexedChunk{
		chunk("c0", "Acme Corp revenue was $5M in 2024."),
		chunk("c1", "Globex hired new engineers."),
		chunk("c2", "Acme opened an office."),
	})
	if err != nil {
		t.Fatalf("Index() error = %v", err)
	}

	results, err := idx.Search(context.Background(), "What was Acme's revenue?", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 matching chunks, got %+v", results)
	}
	if results[0].Metadata["chunk_id"] != "c0" || results[0].Score != 1 || results[0].Rank != 1 {
		t.Fatalf("expected c0 first with score 1, got %+v", results[0])
	}
	if results[1].Score <= 0 || results[1].Score >= 1 {
		t.Fatalf("expected normalized second score in (0,1), got %v", results[1].Score)
	}
}

func TestSearchRespectsLimitAndStopWordQueries(t *testing.T) {
	idx := NewIndex()
	_ = idx.Index(context.Background(), []domain.IndexedChunk{chunk("a", "alpha beta"), chunk("b", "alpha gamma")})

	results, _ := idx.Search(context.Background(), "alpha", 1)
	if len(results) != 1 {
		t.Fatalf("expected limit 1, got %d", len(results))
	}
	results, _ = idx.Search(context.Background(), "what was the", 5)
	if len(results) != 0 {
		t.Fatalf("expected no results for stop words, got %+v", results)
	}
}

func TestReindexReplacesChunkText(t *testing.T) {
	idx := NewIndex()
	_ = idx.Index(context.Background(), []domain.IndexedChunk{chunk("a", "alpha")})
	_ = idx.Index(context.Background(), []domain.IndexedChunk{chunk("a", "omega")})

	if results, _ := idx.Search(context.Background(), "alpha", 5); len(results) != 0 {
		t.Fatalf("expected old text to be forgotten, got %+v", results)
	}
	if results, _ := idx.Search(context.Background(), "omega", 5); len(results) != 1 {
		t.Fatalf("expected new text to match, got %+v", results)
	}
}
