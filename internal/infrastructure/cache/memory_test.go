package cache

import (
	"context"
	"testing"
	"time"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
)

func TestMemoryBackendExpiresPerEntryTTL(t *testing.T) {
	b := NewMemoryBackend(8, time.Hour)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	ctx := context.Background()

	if err := b.Set(ctx, "short", []byte("1"), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := b.Set(ctx, "long", []byte("2"), 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := b.Get(ctx, "short"); !domain.IsKind(err, domain.ErrCacheMiss) {
		t.Fatalf("expected expired entry, got %v", err)
	}
	if raw, err := b.Get(ctx, "long"); err != nil || string(raw) != "2" {
		t.Fatalf("expected long-lived entry, got %q %v", raw, err)
	}
	if b.Len() != 1 {
		t.Fatalf("expected expired entry removed, len=%d", b.Len())
	}
}

func TestMemoryBackendEvictsLeastRecentlyUsed(t *testing.T) {
	b := NewMemoryBackend(2, time.Hour)
	ctx := context.Background()
	_ = b.Set(ctx, "a", []byte("a"), 0)
	_ = b.Set(ctx, "b", []byte("b"), 0)
	_, _ = b.Get(ctx, "a")
	_ = b.Set(ctx, "c", []byte("c"), 0)

	if _, err := b.Get(ctx, "b"); !domain.IsKind(err, domain.ErrCacheMiss) {
		t.Fatalf("expected b evicted, got %v", err)
	}
	if _, err := b.Get(ctx, "a"); err != nil {
		t.Fatalf("expected a retained, got %v", err)
	}
}
