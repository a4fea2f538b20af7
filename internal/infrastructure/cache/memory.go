package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryBackend is a per-process cache bounded by capacity (LRU eviction).
// Entries expire at their own TTL, checked on read, and every entry is swept
// after maxTTL regardless of the TTL it was written with.
type MemoryBackend struct {
	entries *expirable.LRU[string, memoryEntry]
	maxTTL  time.Duration
	now     func() time.Time
}

func NewMemoryBackend(size int, maxTTL time.Duration) *MemoryBackend {
	if size <= 0 {
		size = 4096
	}
	if maxTTL <= 0 {
		maxTTL = 24 * time.Hour
	}
	return &MemoryBackend{
		entries: expirable.NewLRU[string, memoryEntry](size, nil, maxTTL),
		maxTTL:  maxTTL,
		now:     time.Now,
	}
}

func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	entry, ok := b.entries.Get(key)
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	if !entry.expiresAt.IsZero() && !b.now().Before(entry.expiresAt) {
		b.entries.Remove(key)
		return nil, domain.ErrCacheMiss
	}
	return entry.value, nil
}

func (b *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 && ttl < b.maxTTL {
		entry.expiresAt = b.now().Add(ttl)
	}
	b.entries.Add(key, entry)
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, key string) error {
	b.entries.Remove(key)
	return nil
}

func (b *MemoryBackend) Ping(context.Context) error {
	return nil
}

func (b *MemoryBackend) Flush(context.Context) error {
	b.entries.Purge()
	return nil
}

func (b *MemoryBackend) Len() int {
	return b.entries.Len()
}
