package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
)

func TestLoadIncludesModeAndCacheDefaults(t *testing.T) {
	t.Setenv("WHEEL_MODE", "")
	t.Setenv("WHEEL_MODE_FALLBACK", "")
	t.Setenv("CACHE_TTL", "")
	t.Setenv("EMBEDDING_BATCH_SIZE", "")
	t.Setenv("VECTOR_BACKEND", "")
	t.Setenv("OLLAMA_OCR_LIGHT_MODEL", "")
	t.Setenv("OLLAMA_OCR_STANDARD_MODEL", "")

	cfg := Load()
	if cfg.Mode != "balanced" {
		t.Fatalf("expected default mode balanced, got %q", cfg.Mode)
	}
	if cfg.ModeFallback != "" {
		t.Fatalf("expected strict mode resolution by default, got fallback %q", cfg.ModeFallback)
	}
	if cfg.CacheTTL != time.Hour {
		t.Fatalf("expected cache ttl 1h, got %s", cfg.CacheTTL)
	}
	if cfg.EmbeddingBatchSize != 32 {
		t.Fatalf("expected batch size 32, got %d", cfg.EmbeddingBatchSize)
	}
	if cfg.VectorBackend != "local" {
		t.Fatalf("expected local vector backend, got %q", cfg.VectorBackend)
	}
	if cfg.OCRLightModel == cfg.OCRStandardModel {
		t.Fatalf("expected distinct OCR models per tier, got %q", cfg.OCRLightModel)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("WHEEL_MODE", "precision")
	t.Setenv("CACHE_TTL", "120")
	t.Setenv("MAX_IN_FLIGHT_WAIT", "750ms")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("ENABLE_CACHE", "false")
	t.Setenv("BREAKER_ENABLED", "false")
	t.Setenv("RETRY_MAX_BACKOFF", "2s")

	cfg := Load()
	if cfg.Mode != "precision" {
		t.Fatalf("expected mode precision, got %q", cfg.Mode)
	}
	if cfg.CacheTTL != 2*time.Minute {
		t.Fatalf("expected cache ttl 2m from plain seconds, got %s", cfg.CacheTTL)
	}
	if cfg.MaxInFlightWait != 750*time.Millisecond {
		t.Fatalf("expected 750ms, got %s", cfg.MaxInFlightWait)
	}
	if cfg.RateLimitRPS != 2.5 {
		t.Fatalf("expected rps 2.5, got %v", cfg.RateLimitRPS)
	}
	if cfg.EnableCache {
		t.Fatalf("expected cache disabled")
	}
	if cfg.BreakerEnabled || cfg.RetryMaxBackoff != 2*time.Second {
		t.Fatalf("unexpected resilience settings: breaker=%v backoff=%s", cfg.BreakerEnabled, cfg.RetryMaxBackoff)
	}
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	cfg := Load()
	cfg.Mode = "turbo"
	if err := cfg.Validate(); !domain.IsKind(err, domain.ErrUnknownMode) {
		t.Fatalf("expected ErrUnknownMode, got %v", err)
	}
}

func TestValidateRequiresPostgresForPGVector(t *testing.T) {
	cfg := Load()
	cfg.Mode = "balanced"
	cfg.VectorBackend = "pgvector"
	cfg.PostgresDSN = ""
	if err := cfg.Validate(); !domain.IsKind(err, domain.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestModeRegistryReadsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modes.yaml")
	content := []byte(`
modes:
  balanced:
    chunk_size: 800
    chunk_overlap: 80
    similarity_threshold: 0.45
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg := Config{Mode: "balanced", ModesFile: path, ModeFallback: "efficiency"}
	reg, err := cfg.ModeRegistry()
	if err != nil {
		t.Fatalf("ModeRegistry() error = %v", err)
	}
	balanced, err := reg.Get(domain.ModeBalanced)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if balanced.Chunking.Size != 800 || balanced.Chunking.Overlap != 80 {
		t.Fatalf("unexpected chunking %+v", balanced.Chunking)
	}
	if balanced.Retrieval.SimilarityThreshold != 0.45 {
		t.Fatalf("expected threshold 0.45, got %v", balanced.Retrieval.SimilarityThreshold)
	}

	resolved, fellBack, err := reg.Resolve("unknown")
	if err != nil || !fellBack || resolved.Mode != domain.ModeEfficiency {
		t.Fatalf("expected fallback to efficiency, got mode=%s fellBack=%v err=%v", resolved.Mode, fellBack, err)
	}
}

func TestModeRegistryRejectsBadOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modes.yaml")
	content := []byte("modes:\n  efficiency:\n    chunk_size: 50\n    chunk_overlap: 60\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg := Config{Mode: "balanced", ModesFile: path}
	if _, err := cfg.ModeRegistry(); !domain.IsKind(err, domain.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}
