package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
)

type Config struct {
	APIPort  string
	LogLevel string

	Mode         string
	ModeFallback string
	ModesFile    string

	PostgresDSN string

	VectorBackend    string
	QdrantURL        string
	QdrantCollection string
	PGVectorTable    string
	KeywordBackend   string

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	CacheTTL       time.Duration
	CacheLocalSize int
	CacheLocalTTL  time.Duration

	EnableCache      bool
	EnableMonitoring bool

	EmbeddingProvider  string
	EmbeddingModel     string
	EmbeddingDimension int
	EmbeddingBatchSize int

	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIVisionModel string

	OllamaURL         string
	OllamaGenModel    string
	OllamaVisionModel string
	OCRLightModel     string
	OCRStandardModel  string

	LLMProvider string
	LLMModel    string

	NATSURL     string
	NATSSubject string
	WorkerCount int

	StoragePath string

	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string

	RateLimitRPS    float64
	RateLimitBurst  int
	MaxInFlight     int
	MaxInFlightWait time.Duration
	MaxConnections  int

	MetricsWindow     int
	WorkerMetricsPort string

	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	BreakerEnabled      bool
	BreakerOpenTimeout  time.Duration
}

func Load() Config {
	return Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		Mode:         mustEnv("WHEEL_MODE", string(domain.ModeBalanced)),
		ModeFallback: mustEnv("WHEEL_MODE_FALLBACK", ""),
		ModesFile:    mustEnv("WHEEL_MODES_FILE", ""),

		PostgresDSN: mustEnv("POSTGRES_DSN", ""),

		VectorBackend:    mustEnv("VECTOR_BACKEND", "local"),
		QdrantURL:        mustEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection: mustEnv("QDRANT_COLLECTION", "wheel_chunks"),
		PGVectorTable:    mustEnv("PGVECTOR_TABLE", "wheel_embeddings"),
		KeywordBackend:   mustEnv("KEYWORD_BACKEND", "memory"),

		RedisAddr:      mustEnv("REDIS_ADDR", ""),
		RedisPassword:  mustEnv("REDIS_PASSWORD", ""),
		RedisDB:        mustEnvInt("REDIS_DB", 0),
		CacheTTL:       mustEnvDuration("CACHE_TTL", time.Hour),
		CacheLocalSize: mustEnvInt("CACHE_LOCAL_SIZE", 4096),
		CacheLocalTTL:  mustEnvDuration("CACHE_LOCAL_MAX_TTL", 24*time.Hour),

		EnableCache:      mustEnvBool("ENABLE_CACHE", true),
		EnableMonitoring: mustEnvBool("ENABLE_MONITORING", true),

		EmbeddingProvider:  mustEnv("EMBEDDING_PROVIDER", "local"),
		EmbeddingModel:     mustEnv("EMBEDDING_MODEL", "sentence-transformers/all-MiniLM-L6-v2"),
		EmbeddingDimension: mustEnvInt("EMBEDDING_DIMENSION", 0),
		EmbeddingBatchSize: mustEnvInt("EMBEDDING_BATCH_SIZE", 32),

		OpenAIAPIKey:      mustEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     mustEnv("OPENAI_BASE_URL", ""),
		OpenAIVisionModel: mustEnv("OPENAI_VISION_MODEL", "gpt-4o"),

		OllamaURL:         mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaGenModel:    mustEnv("OLLAMA_GEN_MODEL", "llama3.1:8b"),
		OllamaVisionModel: mustEnv("OLLAMA_VISION_MODEL", "llava"),
		OCRLightModel:     mustEnv("OLLAMA_OCR_LIGHT_MODEL", "moondream"),
		OCRStandardModel:  mustEnv("OLLAMA_OCR_STANDARD_MODEL", "llava"),

		LLMProvider: mustEnv("LLM_PROVIDER", "openai"),
		LLMModel:    mustEnv("LLM_MODEL", "gpt-4-turbo"),

		NATSURL:     mustEnv("NATS_URL", ""),
		NATSSubject: mustEnv("NATS_SUBJECT", "wheel.documents.ingest"),
		WorkerCount: mustEnvInt("WORKER_COUNT", 4),

		StoragePath: mustEnv("STORAGE_PATH", "./data/uploads"),

		Neo4jURI:      mustEnv("NEO4J_URI", ""),
		Neo4jUser:     mustEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword: mustEnv("NEO4J_PASSWORD", ""),
		Neo4jDatabase: mustEnv("NEO4J_DATABASE", "neo4j"),

		RateLimitRPS:    mustEnvFloat("RATE_LIMIT_RPS", 50),
		RateLimitBurst:  mustEnvInt("RATE_LIMIT_BURST", 100),
		MaxInFlight:     mustEnvInt("MAX_IN_FLIGHT", 64),
		MaxInFlightWait: mustEnvDuration("MAX_IN_FLIGHT_WAIT", 2*time.Second),
		MaxConnections:  mustEnvInt("MAX_CONNECTIONS", 512),

		MetricsWindow:     mustEnvInt("METRICS_WINDOW", 1000),
		WorkerMetricsPort: mustEnv("WORKER_METRICS_PORT", "9090"),

		RetryMaxAttempts:    mustEnvInt("RETRY_MAX_ATTEMPTS", 3),
		RetryInitialBackoff: mustEnvDuration("RETRY_INITIAL_BACKOFF", 100*time.Millisecond),
		RetryMaxBackoff:     mustEnvDuration("RETRY_MAX_BACKOFF", 400*time.Millisecond),
		BreakerEnabled:      mustEnvBool("BREAKER_ENABLED", true),
		BreakerOpenTimeout:  mustEnvDuration("BREAKER_OPEN_TIMEOUT", 30*time.Second),
	}
}

// Validate reports configuration errors that must stop the process at startup.
func (c Config) Validate() error {
	if _, err := domain.ParseMode(c.Mode); err != nil {
		return fmt.Errorf("WHEEL_MODE: %w", err)
	}
	if c.ModeFallback != "" {
		if _, err := domain.ParseMode(c.ModeFallback); err != nil {
			return fmt.Errorf("WHEEL_MODE_FALLBACK: %w", err)
		}
	}
	switch c.VectorBackend {
	case "local", "qdrant":
	case "pgvector":
		if c.PostgresDSN == "" {
			return fmt.Errorf("%w: VECTOR_BACKEND=pgvector requires POSTGRES_DSN", domain.ErrConfig)
		}
	default:
		return fmt.Errorf("%w: unknown VECTOR_BACKEND %q", domain.ErrConfig, c.VectorBackend)
	}
	switch c.KeywordBackend {
	case "memory":
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("%w: KEYWORD_BACKEND=postgres requires POSTGRES_DSN", domain.ErrConfig)
		}
	default:
		return fmt.Errorf("%w: unknown KEYWORD_BACKEND %q", domain.ErrConfig, c.KeywordBackend)
	}
	switch c.EmbeddingProvider {
	case "local", "ollama":
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("%w: EMBEDDING_PROVIDER=openai requires OPENAI_API_KEY", domain.ErrConfig)
		}
	default:
		return fmt.Errorf("%w: unknown EMBEDDING_PROVIDER %q", domain.ErrConfig, c.EmbeddingProvider)
	}
	if c.EmbeddingBatchSize <= 0 {
		return fmt.Errorf("%w: EMBEDDING_BATCH_SIZE must be positive", domain.ErrConfig)
	}
	return nil
}

// ModeRegistry builds the mode table from the defaults, the optional override
// file and the fallback setting.
func (c Config) ModeRegistry() (*domain.ModeRegistry, error) {
	overrides, err := LoadModeOverrides(c.ModesFile)
	if err != nil {
		return nil, err
	}
	fallback := domain.Mode("")
	if c.ModeFallback != "" {
		fallback, err = domain.ParseMode(c.ModeFallback)
		if err != nil {
			return nil, err
		}
	}
	return domain.NewModeRegistry(overrides, fallback)
}

type modesFile struct {
	Modes map[string]domain.ModeOverride `yaml:"modes"`
}

func LoadModeOverrides(path string) (map[domain.Mode]domain.ModeOverride, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read modes file: %w", domain.ErrConfig, err)
	}
	var file modesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("%w: parse modes file: %w", domain.ErrConfig, err)
	}

	out := make(map[domain.Mode]domain.ModeOverride, len(file.Modes))
	for name, override := range file.Modes {
		mode, err := domain.ParseMode(name)
		if err != nil {
			return nil, fmt.Errorf("modes file: %w", err)
		}
		out[mode] = override
	}
	return out, nil
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

// mustEnvDuration accepts Go durations ("90s") or plain seconds ("3600").
func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
