package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
	"github.com/kirillkom/wheel-rag/internal/core/ports"
)

// primaryCooldown is how long a failing primary is bypassed before the next
// operation tries it again.
const primaryCooldown = 5 * time.Second

// Manager is the fail-open JSON cache. Backend failures never reach callers:
// while the primary backend is failing, reads and writes go to the
// in-process fallback and Healthy reports false. After a failure the primary
// is skipped for a cooldown, so an outage does not cost a dial per call.
type Manager struct {
	primary  ports.CacheBackend
	fallback ports.CacheBackend
	enabled  bool
	degraded atomic.Bool
	retryAt  atomic.Int64
	cooldown time.Duration
	now      func() time.Time
}

func NewManager(primary, fallback ports.CacheBackend, enabled bool) *Manager {
	if fallback == nil {
		fallback = NewMemoryBackend(0, 0)
	}
	return &Manager{
		primary:  primary,
		fallback: fallback,
		enabled:  enabled,
		cooldown: primaryCooldown,
		now:      time.Now,
	}
}

func (m *Manager) Get(ctx context.Context, key string, dest any) bool {
	if !m.enabled {
		return false
	}
	raw, err := m.get(ctx, key)
	if err != nil {
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		slog.Warn("cache_entry_corrupt", "key", key, "error", err)
		m.Delete(ctx, key)
		return false
	}
	return true
}

func (m *Manager) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	if !m.enabled {
		return false
	}
	raw, err := json.Marshal(value)
	if err != nil {
		slog.Warn("cache_encode_failed", "key", key, "error", err)
		return false
	}
	if m.usePrimary() {
		err := m.primary.Set(ctx, key, raw, ttl)
		if err == nil {
			m.markRecovered()
			return true
		}
		m.markDegraded("set", err)
	}
	return m.fallback.Set(ctx, key, raw, ttl) == nil
}

func (m *Manager) Delete(ctx context.Context, key string) bool {
	if !m.enabled {
		return false
	}
	ok := m.fallback.Delete(ctx, key) == nil
	if m.usePrimary() {
		if err := m.primary.Delete(ctx, key); err != nil {
			m.markDegraded("delete", err)
			return ok
		}
		m.markRecovered()
		return true
	}
	return ok
}

// Healthy reports whether the configured backend answers. A cache running
// on the in-process backend only is always healthy.
func (m *Manager) Healthy(ctx context.Context) bool {
	if m.primary == nil {
		return true
	}
	if err := m.primary.Ping(ctx); err != nil {
		m.markDegraded("ping", err)
		return false
	}
	m.markRecovered()
	return true
}

func (m *Manager) Clear(ctx context.Context) error {
	fallbackErr := m.fallback.Flush(ctx)
	if m.primary == nil {
		return fallbackErr
	}
	return errors.Join(m.primary.Flush(ctx), fallbackErr)
}

func (m *Manager) get(ctx context.Context, key string) ([]byte, error) {
	if !m.usePrimary() {
		return m.fallback.Get(ctx, key)
	}
	raw, err := m.primary.Get(ctx, key)
	if err == nil {
		m.markRecovered()
		return raw, nil
	}
	if errors.Is(err, domain.ErrCacheMiss) {
		m.markRecovered()
		return nil, err
	}
	m.markDegraded("get", err)
	return m.fallback.Get(ctx, key)
}

// usePrimary is false without a primary and while a failed primary is in
// its cooldown. Healthy ignores the cooldown and always pings.
func (m *Manager) usePrimary() bool {
	if m.primary == nil {
		return false
	}
	if !m.degraded.Load() {
		return true
	}
	return m.now().UnixNano() >= m.retryAt.Load()
}

func (m *Manager) markDegraded(op string, err error) {
	m.retryAt.Store(m.now().Add(m.cooldown).UnixNano())
	if m.degraded.CompareAndSwap(false, true) {
		slog.Warn("cache_backend_unavailable", "operation", op, "error", err)
	}
}

func (m *Manager) markRecovered() {
	if m.degraded.CompareAndSwap(true, false) {
		slog.Info("cache_backend_recovered")
	}
}
