package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kirillkom/wheel-rag/internal/config"
	"github.com/kirillkom/wheel-rag/internal/core/domain"
	"github.com/kirillkom/wheel-rag/internal/core/ports"
	"github.com/kirillkom/wheel-rag/internal/core/usecase"
	"github.com/kirillkom/wheel-rag/internal/infrastructure/cache"
	"github.com/kirillkom/wheel-rag/internal/infrastructure/chunking"
	"github.com/kirillkom/wheel-rag/internal/infrastructure/embedding"
	"github.com/kirillkom/wheel-rag/internal/infrastructure/extractor/docx"
	"github.com/kirillkom/wheel-rag/internal/infrastructure/extractor/image"
	"github.com/kirillkom/wheel-rag/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/wheel-rag/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/wheel-rag/internal/infrastructure/extractor/video"
	"github.com/kirillkom/wheel-rag/internal/infrastructure/extractor/xlsx"
	"github.com/kirillkom/wheel-rag/internal/infrastructure/graph"
	"github.com/kirillkom/wheel-rag/internal/infrastructure/keyword"
	openaillm "github.com/kirillkom/wheel-rag/internal/infrastructure/llm/openai"
	"github.com/kirillkom/wheel-rag/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/wheel-rag/internal/infrastructure/queue/inproc"
	"github.com/kirillkom/wheel-rag/internal/infrastructure/queue/nats"
	"github.com/kirillkom/wheel-rag/internal/infrastructure/repository/memory"
	"github.com/kirillkom/wheel-rag/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/wheel-rag/internal/infrastructure/resilience"
	"github.com/kirillkom/wheel-rag/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/wheel-rag/internal/infrastructure/vector/local"
	"github.com/kirillkom/wheel-rag/internal/infrastructure/vector/pgvector"
	"github.com/kirillkom/wheel-rag/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/wheel-rag/internal/observability/metrics"
)

const (
	AppName    = "Wheel RAG System"
	AppVersion = "1.0.0"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Wheel       *usecase.WheelSystem
	Tasks       *usecase.IngestTaskService
	Experiments *usecase.ABTestFramework
	Executor    *resilience.Executor

	// Exactly one of NATS and Pool is set.
	NATS *nats.Queue
	Pool *inproc.Pool

	closers []func()
}

// New wires the configured adapters. Resources opened before a failure are
// released before the error is returned.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	registry, err := cfg.ModeRegistry()
	if err != nil {
		return nil, err
	}
	defaultMode, err := domain.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}

	app.Executor = resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    cfg.RetryMaxAttempts,
		RetryInitialBackoff: cfg.RetryInitialBackoff,
		RetryMaxBackoff:     cfg.RetryMaxBackoff,
		RetryMultiplier:     2,
		BreakerEnabled:      cfg.BreakerEnabled,
		BreakerOpenTimeout:  cfg.BreakerOpenTimeout,
		Logger:              logger,
	})

	var db *sql.DB
	if cfg.PostgresDSN != "" {
		db, err = postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		app.onClose(func() { _ = db.Close() })
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}

	var (
		documents ports.DocumentRepository
		tasks     ports.TaskRepository
	)
	if db != nil {
		documents = postgres.NewDocumentRepository(db)
		tasks = postgres.NewTaskRepository(db)
	} else {
		documents = memory.NewDocumentRepository()
		tasks = memory.NewTaskRepository()
	}

	cacheManager := app.buildCache(cfg)

	provider := app.buildEmbeddingProvider(cfg)
	vectors, err := app.buildVectorStore(ctx, cfg, provider.Dimension())
	if err != nil {
		return nil, err
	}

	var keywords ports.KeywordIndex = keyword.NewIndex()
	if cfg.KeywordBackend == "postgres" && db != nil {
		keywords = postgres.NewChunkIndex(db)
	}

	knowledge, err := app.buildGraph(ctx, cfg)
	if err != nil {
		return nil, err
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init upload storage: %w", err)
	}

	var queue ports.TaskQueue
	if cfg.NATSURL != "" {
		app.NATS, err = nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{ResilienceExecutor: app.Executor})
		if err != nil {
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		app.onClose(app.NATS.Close)
		queue = app.NATS
	} else {
		app.Pool = inproc.NewPool(cfg.WorkerCount, 0)
		queue = app.Pool
	}

	metricsWindow := usecase.NewMetricsCollector(cfg.MetricsWindow)
	embeddings := usecase.NewEmbeddingService(provider, cacheManager, cfg.EmbeddingBatchSize, logger)
	processor := usecase.NewDocumentProcessor(app.buildExtractors(cfg), cacheManager, logger)

	pipeline := usecase.NewDataProcessingPipeline(usecase.PipelineDeps{
		Processor:  processor,
		Chunker:    chunking.NewSplitter(),
		Embeddings: embeddings,
		Vectors:    vectors,
		Keywords:   keywords,
		Graph:      knowledge,
		Documents:  documents,
		Metrics:    metricsWindow,
		Logger:     logger,
	})
	retrieval := usecase.NewRetrievalEngine(usecase.RetrievalDeps{
		Embeddings: embeddings,
		Vectors:    vectors,
		Keywords:   keywords,
		Graph:      knowledge,
		Hypotheses: app.buildHypothesisGenerator(cfg),
		Cache:      cacheManager,
		CacheTTL:   cfg.CacheTTL,
		Metrics:    metricsWindow,
		Logger:     logger,
	})

	app.Wheel, err = usecase.NewWheelSystem(usecase.WheelDeps{
		Registry:    registry,
		DefaultMode: defaultMode,
		Processor:   processor,
		Pipeline:    pipeline,
		Retrieval:   retrieval,
		Embeddings:  embeddings,
		Documents:   documents,
		Vectors:     vectors,
		Cache:       cacheManager,
		Metrics:     metricsWindow,
		Info: domain.SystemInfo{
			Name:              AppName,
			Version:           AppVersion,
			LLMProvider:       cfg.LLMProvider,
			LLMModel:          cfg.LLMModel,
			VectorBackend:     cfg.VectorBackend,
			EmbeddingProvider: cfg.EmbeddingProvider,
			EmbeddingModel:    provider.Model(),
			CacheEnabled:      cfg.EnableCache,
			MonitoringEnabled: cfg.EnableMonitoring,
		},
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	app.Tasks = usecase.NewIngestTaskService(tasks, storage, queue, app.Wheel, logger)
	app.Experiments = usecase.NewABTestFramework(logger)

	logger.Info("wheel_initialized",
		"mode", defaultMode,
		"vector_backend", cfg.VectorBackend,
		"keyword_backend", cfg.KeywordBackend,
		"embedding_provider", cfg.EmbeddingProvider,
		"embedding_dimension", provider.Dimension(),
		"postgres", db != nil,
		"nats", app.NATS != nil,
	)
	return app, nil
}

// StartWorkers runs queued ingest tasks in-process. It is a no-op when tasks
// go to NATS, where cmd/worker consumes them.
func (a *App) StartWorkers(ctx context.Context, wm *metrics.WorkerMetrics) {
	if a.Pool == nil {
		return
	}
	a.Pool.Start(ctx, a.TaskHandler("api", wm))
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

func (a *App) buildCache(cfg config.Config) *cache.Manager {
	local := cache.NewMemoryBackend(cfg.CacheLocalSize, cfg.CacheLocalTTL)
	if cfg.RedisAddr == "" {
		return cache.NewManager(local, nil, cfg.EnableCache)
	}
	redisBackend := cache.NewRedisBackend(cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB))
	a.onClose(func() { _ = redisBackend.Close() })
	return cache.NewManager(redisBackend, local, cfg.EnableCache)
}

func (a *App) buildEmbeddingProvider(cfg config.Config) ports.EmbeddingProvider {
	dim := embedding.DimensionFor(cfg.EmbeddingModel, cfg.EmbeddingDimension)
	switch cfg.EmbeddingProvider {
	case "openai":
		return embedding.NewOpenAIProvider(embedding.OpenAIOptions{
			APIKey:             cfg.OpenAIAPIKey,
			BaseURL:            cfg.OpenAIBaseURL,
			Model:              cfg.EmbeddingModel,
			Dimension:          cfg.EmbeddingDimension,
			ResilienceExecutor: a.Executor,
		})
	case "ollama":
		return ollama.NewEmbedder(a.ollamaClient(cfg), dim)
	default:
		return embedding.NewHashProvider(cfg.EmbeddingModel, dim)
	}
}

func (a *App) ollamaClient(cfg config.Config) *ollama.Client {
	return ollama.New(ollama.Options{
		BaseURL:     cfg.OllamaURL,
		GenModel:    cfg.OllamaGenModel,
		EmbedModel:  cfg.EmbeddingModel,
		VisionModel: cfg.OllamaVisionModel,
		Executor:    a.Executor,
	})
}

func (a *App) buildVectorStore(ctx context.Context, cfg config.Config, dim int) (ports.VectorStore, error) {
	switch cfg.VectorBackend {
	case "qdrant":
		return qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, dim), nil
	case "pgvector":
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open pgvector pool: %w", err)
		}
		a.onClose(pool.Close)
		store := pgvector.New(pool, cfg.PGVectorTable, dim)
		schemaCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := store.EnsureSchema(schemaCtx); err != nil {
			return nil, fmt.Errorf("ensure pgvector schema: %w", err)
		}
		return store, nil
	default:
		return local.New(dim), nil
	}
}

func (a *App) buildGraph(ctx context.Context, cfg config.Config) (ports.KnowledgeGraph, error) {
	if cfg.Neo4jURI == "" {
		return graph.NewMemoryGraph(), nil
	}
	g, err := graph.OpenNeo4j(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jDatabase)
	if err != nil {
		return nil, fmt.Errorf("open neo4j: %w", err)
	}
	a.onClose(func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = g.Close(closeCtx)
	})
	return g, nil
}

// buildExtractors registers one extractor per supported extension.
func (a *App) buildExtractors(cfg config.Config) usecase.ExtractorRegistry {
	text := plaintext.NewExtractor()
	var vision image.Reader
	if cfg.OpenAIAPIKey != "" {
		vision = image.NewOpenAIVision(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIVisionModel)
	}
	images := image.NewExtractor(ocrEngines(cfg, ollama.NewVisionReader(a.ollamaClient(cfg)), vision))
	media := video.NewExtractor()

	return usecase.ExtractorRegistry{
		".txt":  text,
		".md":   text,
		".pdf":  pdf.NewExtractor(),
		".docx": docx.NewExtractor(),
		".xlsx": xlsx.NewExtractor(),
		".jpg":  images,
		".jpeg": images,
		".png":  images,
		".mp4":  media,
		".avi":  media,
	}
}

// ocrEngines gives every OCR tier its own engine: a small Ollama vision
// model for light, the standard Ollama vision model for standard, and the
// OpenAI vision model for vision (unavailable without an API key).
func ocrEngines(cfg config.Config, local, vision image.Reader) map[domain.OCRTier]image.Engine {
	return map[domain.OCRTier]image.Engine{
		domain.OCRTierLight:    {Reader: local, Model: cfg.OCRLightModel},
		domain.OCRTierStandard: {Reader: local, Model: cfg.OCRStandardModel},
		domain.OCRTierVision:   {Reader: vision, Model: cfg.OpenAIVisionModel},
	}
}

func (a *App) buildHypothesisGenerator(cfg config.Config) ports.HypothesisGenerator {
	switch cfg.LLMProvider {
	case "ollama":
		return ollama.NewHypothesisWriter(a.ollamaClient(cfg))
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil
		}
		return openaillm.NewHypothesisWriter(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.LLMModel, a.Executor)
	default:
		return nil
	}
}
