package domain

import "testing"

func TestDefaultModeConfigsAreValid(t *testing.T) {
	for mode, cfg := range DefaultModeConfigs() {
		if cfg.Mode != mode {
			t.Fatalf("bundle for %s carries mode %s", mode, cfg.Mode)
		}
		if err := cfg.Validate(); err != nil {
			t.Fatalf("Validate(%s) error = %v", mode, err)
		}
	}
}

func TestModeRegistryStrictResolveRejectsUnknownMode(t *testing.T) {
	reg, err := NewModeRegistry(nil, "")
	if err != nil {
		t.Fatalf("NewModeRegistry() error = %v", err)
	}

	_, fellBack, err := reg.Resolve("turbo")
	if err == nil {
		t.Fatalf("expected error for unknown mode")
	}
	if fellBack {
		t.Fatalf("strict registry must not fall back")
	}
	if !IsKind(err, ErrUnknownMode) || !IsKind(err, ErrConfig) {
		t.Fatalf("expected ErrUnknownMode wrapping ErrConfig, got %v", err)
	}
}

func TestModeRegistryFallbackResolve(t *testing.T) {
	reg, err := NewModeRegistry(nil, ModeBalanced)
	if err != nil {
		t.Fatalf("NewModeRegistry() error = %v", err)
	}

	cfg, fellBack, err := reg.Resolve("turbo")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !fellBack || cfg.Mode != ModeBalanced {
		t.Fatalf("expected fallback to balanced, got mode=%s fellBack=%v", cfg.Mode, fellBack)
	}

	cfg, fellBack, err = reg.Resolve(" Precision ")
	if err != nil || fellBack || cfg.Mode != ModePrecision {
		t.Fatalf("expected precision without fallback, got mode=%s fellBack=%v err=%v", cfg.Mode, fellBack, err)
	}
}

func TestModeRegistryAppliesOverrides(t *testing.T) {
	size, overlap := 800, 80
	reg, err := NewModeRegistry(map[Mode]ModeOverride{
		ModeBalanced: {ChunkSize: &size, ChunkOverlap: &overlap},
	}, "")
	if err != nil {
		t.Fatalf("NewModeRegistry() error = %v", err)
	}
	cfg, err := reg.Get(ModeBalanced)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if cfg.Chunking.Size != 800 || cfg.Chunking.Overlap != 80 {
		t.Fatalf("unexpected chunking %+v", cfg.Chunking)
	}
}

func TestModeRegistryRejectsNonAdvancingChunkWindow(t *testing.T) {
	size, overlap := 100, 100
	_, err := NewModeRegistry(map[Mode]ModeOverride{
		ModeEfficiency: {ChunkSize: &size, ChunkOverlap: &overlap},
	}, "")
	if !IsKind(err, ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestModeRegistryReturnsIsolatedCopies(t *testing.T) {
	reg, err := NewModeRegistry(nil, "")
	if err != nil {
		t.Fatalf("NewModeRegistry() error = %v", err)
	}
	first, _ := reg.Get(ModeBalanced)
	first.UseCases[0] = "mutated"
	first.Chunking.Size = 1

	second, _ := reg.Get(ModeBalanced)
	if second.UseCases[0] == "mutated" || second.Chunking.Size != 1024 {
		t.Fatalf("registry state leaked through a returned bundle: %+v", second)
	}
}

func TestModeRegistryAllIsOrdered(t *testing.T) {
	reg, err := NewModeRegistry(nil, "")
	if err != nil {
		t.Fatalf("NewModeRegistry() error = %v", err)
	}
	all := reg.All()
	if len(all) != 3 || all[0].Mode != ModeEfficiency || all[1].Mode != ModeBalanced || all[2].Mode != ModePrecision {
		t.Fatalf("unexpected order: %+v", all)
	}
}
