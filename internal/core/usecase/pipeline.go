package usecase

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
	"github.com/kirillkom/wheel-rag/internal/core/ports"
	"github.com/kirillkom/wheel-rag/internal/core/textproc"
)

const (
	vectorPreviewChars = 500
	entitiesPerChunk   = 32
)

var quoteReplacer = strings.NewReplacer("“", "\"", "”", "\"", "‘", "'", "’", "'")

type PipelineDeps struct {
	Processor  *DocumentProcessor
	Chunker    ports.Chunker
	Embeddings *EmbeddingService
	Vectors    ports.VectorStore
	Keywords   ports.KeywordIndex
	Graph      ports.KnowledgeGraph
	Documents  ports.DocumentRepository
	Metrics    *MetricsCollector
	Logger     *slog.Logger
}

// DataProcessingPipeline ingests one document per call under a mode snapshot.
type DataProcessingPipeline struct {
	processor  *DocumentProcessor
	chunker    ports.Chunker
	embeddings *EmbeddingService
	vectors    ports.VectorStore
	keywords   ports.KeywordIndex
	graph      ports.KnowledgeGraph
	documents  ports.DocumentRepository
	metrics    *MetricsCollector
	logger     *slog.Logger
	now        func() time.Time
}

func NewDataProcessingPipeline(deps PipelineDeps) *DataProcessingPipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &DataProcessingPipeline{
		processor:  deps.Processor,
		chunker:    deps.Chunker,
		embeddings: deps.Embeddings,
		vectors:    deps.Vectors,
		keywords:   deps.Keywords,
		graph:      deps.Graph,
		documents:  deps.Documents,
		metrics:    deps.Metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// Process never returns an error: every failure is reported in the result.
// Vectors written before a later stage fails are not rolled back.
func (p *DataProcessingPipeline) Process(ctx context.Context, path string, metadata map[string]any, cfg domain.ModeConfig) domain.ProcessResult {
	start := p.now()
	docID := generateDocumentID(path, start)

	chunks, err := p.run(ctx, docID, path, metadata, cfg)
	duration := p.now().Sub(start)

	result := domain.ProcessResult{
		DocumentID:  docID,
		Duration:    duration,
		DurationSec: duration.Seconds(),
		Mode:        cfg.Mode,
	}
	if err != nil {
		result.Status = domain.ProcessFailed
		result.Error = err.Error()
		p.logger.Error("document_processing_failed",
			"path", path,
			"document_id", docID,
			"mode", cfg.Mode,
			"duration_ms", duration.Milliseconds(),
			"error", err,
		)
	} else {
		result.Status = domain.ProcessSucceeded
		result.ChunksCount = chunks
		p.logger.Info("document_processed",
			"path", path,
			"document_id", docID,
			"mode", cfg.Mode,
			"chunks", chunks,
			"duration_ms", duration.Milliseconds(),
		)
	}
	if p.metrics != nil {
		p.metrics.RecordDocumentProcessing(cfg.Mode, duration, err == nil, result.Error)
	}
	return result
}

func (p *DataProcessingPipeline) run(ctx context.Context, docID, path string, metadata map[string]any, cfg domain.ModeConfig) (int, error) {
	if err := p.processor.Validate(path); err != nil {
		return 0, err
	}

	text, err := p.processor.Extract(ctx, path, cfg)
	if err != nil {
		return 0, fmt.Errorf("extract text: %w", err)
	}

	text = Preprocess(text)
	if text == "" {
		return 0, domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("empty extracted text"))
	}

	chunks, err := p.chunker.Split(docID, text, cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		return 0, fmt.Errorf("chunk document: %w", err)
	}
	if len(chunks) == 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "chunk document", errors.New("chunking produced zero chunks"))
	}

	vectors := p.embed(ctx, chunks, cfg.Mode)

	indexed := make([]domain.IndexedChunk, len(chunks))
	records := make([]domain.VectorRecord, len(chunks))
	for i, chunk := range chunks {
		indexed[i] = domain.IndexedChunk{DocumentID: docID, Source: path, Chunk: chunk}
		records[i] = domain.VectorRecord{
			ID:     chunk.ID,
			Vector: vectors[i],
			Metadata: map[string]any{
				"document_id": docID,
				"chunk_index": chunk.Index,
				"chunk_id":    chunk.ID,
				"text":        truncateRunes(chunk.Text, vectorPreviewChars),
				"source":      path,
			},
		}
	}

	if err := p.vectors.Add(ctx, records...); err != nil {
		return 0, fmt.Errorf("store vectors: %w", err)
	}
	if p.keywords != nil {
		if err := p.keywords.Index(ctx, indexed); err != nil {
			return 0, fmt.Errorf("index keywords: %w", err)
		}
	}
	if cfg.Retrieval.KnowledgeGraph && p.graph != nil {
		p.indexEntities(ctx, indexed)
	}

	record := &domain.DocumentRecord{
		ID:          docID,
		SourceFile:  path,
		Mode:        cfg.Mode,
		ChunkCount:  len(chunks),
		ProcessedAt: p.now().UTC(),
		Metadata:    metadata,
	}
	if err := p.documents.Create(ctx, record); err != nil {
		return 0, fmt.Errorf("create document record: %w", err)
	}
	return len(chunks), nil
}

func (p *DataProcessingPipeline) embed(ctx context.Context, chunks []domain.Chunk, mode domain.Mode) [][]float32 {
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	start := p.now()
	vectors, err := p.embeddings.EmbedBatch(ctx, texts)
	if p.metrics != nil {
		p.metrics.RecordEmbedding(mode, len(texts), p.now().Sub(start), err == nil)
	}
	if err != nil {
		p.logger.Warn("embedding_degraded", "mode", mode, "chunks", len(texts), "error", err)
	}
	return vectors
}

// Graph writes are best effort: a failed entity link is logged and skipped.
func (p *DataProcessingPipeline) indexEntities(ctx context.Context, chunks []domain.IndexedChunk) {
	for _, chunk := range chunks {
		entities := textproc.Entities(chunk.Text, entitiesPerChunk)
		if len(entities) == 0 {
			continue
		}
		if err := p.graph.IndexEntities(ctx, chunk, entities); err != nil {
			p.logger.Warn("graph_index_failed", "chunk_id", chunk.ID, "error", err)
		}
	}
}

// Preprocess collapses whitespace runs and normalizes curly quotes.
func Preprocess(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	return quoteReplacer.Replace(text)
}

func generateDocumentID(path string, at time.Time) string {
	sum := md5.Sum([]byte(path + ":" + at.Format(time.RFC3339Nano)))
	return hex.EncodeToString(sum[:])[:16]
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
