package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
	"github.com/kirillkom/wheel-rag/internal/core/ports"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func modeConfig(t *testing.T, mode domain.Mode) domain.ModeConfig {
	t.Helper()
	cfg, ok := domain.DefaultModeConfigs()[mode]
	if !ok {
		t.Fatalf("no bundle for %s", mode)
	}
	return cfg
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

type providerFake struct {
	mu    sync.Mutex
	dim   int
	calls [][]string
	err   error
}

func (f *providerFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string(nil), texts...))
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, f.dim)
		v[0] = float32(len(text))
		if f.dim > 1 {
			v[1] = 1
		}
		out[i] = v
	}
	return out, nil
}

func (f *providerFake) Model() string  { return "fake-model" }
func (f *providerFake) Dimension() int { return f.dim }

func (f *providerFake) embeddedTexts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += len(c)
	}
	return n
}

type cacheFake struct {
	mu      sync.Mutex
	data    map[string][]byte
	sets    int
	healthy bool
}

func newCacheFake() *cacheFake {
	return &cacheFake{data: make(map[string][]byte), healthy: true}
}

func (c *cacheFake) Get(_ context.Context, key string, dest any) bool {
	c.mu.Lock()
	raw, ok := c.data[key]
	c.mu.Unlock()
	if !ok {
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}

func (c *cacheFake) Set(_ context.Context, key string, value any, _ time.Duration) bool {
	raw, err := json.Marshal(value)
	if err != nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = raw
	c.sets++
	return true
}

func (c *cacheFake) Delete(_ context.Context, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return true
}

func (c *cacheFake) Healthy(context.Context) bool { return c.healthy }

func (c *cacheFake) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string][]byte)
	return nil
}

type vectorStoreFake struct {
	mu            sync.Mutex
	records       []domain.VectorRecord
	matches       []domain.VectorMatch
	addErr        error
	searchErr     error
	healthErr     error
	searches      int
	lastTopK      int
	lastThreshold float64
}

func (f *vectorStoreFake) Add(_ context.Context, records ...domain.VectorRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	f.records = append(f.records, records...)
	return nil
}

func (f *vectorStoreFake) Search(_ context.Context, _ []float32, topK int, threshold float64) ([]domain.VectorMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches++
	f.lastTopK = topK
	f.lastThreshold = threshold
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.matches, nil
}

func (f *vectorStoreFake) Health(context.Context) error { return f.healthErr }

type keywordIndexFake struct {
	indexed   []domain.IndexedChunk
	results   []domain.RetrievalResult
	indexErr  error
	searchErr error
	lastLimit int
}

func (f *keywordIndexFake) Index(_ context.Context, chunks []domain.IndexedChunk) error {
	if f.indexErr != nil {
		return f.indexErr
	}
	f.indexed = append(f.indexed, chunks...)
	return nil
}

func (f *keywordIndexFake) Search(_ context.Context, _ string, limit int) ([]domain.RetrievalResult, error) {
	f.lastLimit = limit
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	out := make([]domain.RetrievalResult, len(f.results))
	copy(out, f.results)
	return out, nil
}

type graphFake struct {
	indexed map[string][]string
	results []domain.RetrievalResult
	asked   []string
	err     error
}

func (f *graphFake) IndexEntities(_ context.Context, chunk domain.IndexedChunk, entities []string) error {
	if f.err != nil {
		return f.err
	}
	if f.indexed == nil {
		f.indexed = make(map[string][]string)
	}
	f.indexed[chunk.ID] = entities
	return nil
}

func (f *graphFake) SearchEntities(_ context.Context, entities []string, _ int) ([]domain.RetrievalResult, error) {
	f.asked = entities
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type documentRepoFake struct {
	mu      sync.Mutex
	created []*domain.DocumentRecord
	err     error
}

func (f *documentRepoFake) Create(_ context.Context, record *domain.DocumentRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, record)
	return nil
}

func (f *documentRepoFake) GetByID(_ context.Context, id string) (*domain.DocumentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.created {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New(id))
}

func (f *documentRepoFake) Health(context.Context) error { return f.err }

type extractorFake struct {
	text string
	err  error
	reqs []ports.ExtractRequest
}

func (f *extractorFake) Extract(_ context.Context, req ports.ExtractRequest) (string, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type chunkerFake struct {
	inner    ports.Chunker
	sizes    []int
	overlaps []int
}

func (f *chunkerFake) Split(source, text string, size, overlap int) ([]domain.Chunk, error) {
	f.sizes = append(f.sizes, size)
	f.overlaps = append(f.overlaps, overlap)
	return f.inner.Split(source, text, size, overlap)
}

type hypothesisFake struct {
	text  string
	err   error
	calls int
}

func (f *hypothesisFake) GenerateHypothesis(context.Context, string) (string, error) {
	f.calls++
	return f.text, f.err
}
