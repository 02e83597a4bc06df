package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Vector   VectorConfig
	Ai       AIConfig
	Rag      RAGConfig
	Session  SessionConfig
	Corpus   CorpusConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string // empty disables analytics events
	RedisURL           string // empty disables session snapshots
	OtelEndpoint       string // empty disables tracing export
}

type DatabaseConfig struct {
	Driver     string // "memory", "sqlite" or "postgres"
	Connection string // postgres DSN
	SQLitePath string
}

type VectorConfig struct {
	Backend          string // "memory", "qdrant" or "pgvector"
	QdrantHost       string
	QdrantPort       int
	QdrantAPIKey     string
	QdrantCollection string
	Dimension        int
}

type AIConfig struct {
	EmbeddingProvider string // "ollama" or "gemini"
	OllamaBaseURL     string
	OllamaModel       string // embedding model
	GeminiAPIKey      string
	LLMProvider       string // "ollama" or "huggingface"
	LLMModel          string
	LLMBaseURL        string
	HuggingFaceAPIKey string
	ESVAPIKey         string // empty disables ESV display text
	ESVBaseURL        string
}

type RAGConfig struct {
	ConfidenceThreshold float64
	TopK                int
	ContextWindow       int
	ExpandTopN          int
	MaxSources          int
	HistoryWindow       int
	MaxExactVerses      int
	SearchTimeout       time.Duration
	GenerationTimeout   time.Duration
	RequestTimeout      time.Duration // overall bound for one HTTP request
	RetryAttempts       int
}

type SessionConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
	SnapshotTTL   time.Duration
}

type CorpusConfig struct {
	ManifestPath string // empty skips loading at startup
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "8000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			OtelEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		},
		Database: DatabaseConfig{
			Driver:     strings.ToLower(getEnv("VERSE_STORE", "memory")),
			Connection: getEnv("DB_CONNECTION_STRING", ""),
			SQLitePath: getEnv("SQLITE_PATH", "data/bible.db"),
		},
		Vector: VectorConfig{
			Backend:          strings.ToLower(getEnv("VECTOR_BACKEND", "memory")),
			QdrantHost:       getEnv("QDRANT_HOST", "localhost"),
			QdrantPort:       getEnvAsInt("QDRANT_PORT", 6334),
			QdrantAPIKey:     getEnv("QDRANT_API_KEY", ""),
			QdrantCollection: getEnv("QDRANT_COLLECTION", "bible_verses"),
			Dimension:        getEnvAsInt("EMBEDDING_DIMENSION", 1024),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "ollama"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:       getEnv("OLLAMA_EMBEDDING_MODEL", "bge-m3"),
			GeminiAPIKey:      getEnv("GOOGLE_GEMINI_API_KEY", ""),
			LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:          getEnv("LLM_MODEL", "qwen2.5"),
			LLMBaseURL:        getEnv("LLM_BASE_URL", "http://localhost:11434"),
			HuggingFaceAPIKey: getEnv("HUGGINGFACE_API_KEY", ""),
			ESVAPIKey:         getEnv("ESV_API_KEY", ""),
			ESVBaseURL:        getEnv("ESV_BASE_URL", "https://api.esv.org/v3/passage/text/"),
		},
		Rag: RAGConfig{
			ConfidenceThreshold: getEnvAsFloat("RAG_CONFIDENCE_THRESHOLD", 0.25),
			TopK:                getEnvAsInt("RAG_TOP_K", 8),
			ContextWindow:       getEnvAsInt("RAG_CONTEXT_WINDOW", 2),
			ExpandTopN:          getEnvAsInt("RAG_EXPAND_TOP_N", 0), // 0 widens every retained candidate
			MaxSources:          getEnvAsInt("RAG_MAX_SOURCES", 5),
			HistoryWindow:       getEnvAsInt("RAG_HISTORY_WINDOW", 20),
			MaxExactVerses:      getEnvAsInt("RAG_MAX_EXACT_VERSES", 30),
			SearchTimeout:       getEnvAsDuration("RAG_SEARCH_TIMEOUT", 5*time.Second),
			GenerationTimeout:   getEnvAsDuration("RAG_GENERATION_TIMEOUT", 60*time.Second),
			RequestTimeout:      getEnvAsDuration("RAG_REQUEST_TIMEOUT", 90*time.Second),
			RetryAttempts:       getEnvAsInt("RAG_RETRY_ATTEMPTS", 3),
		},
		Session: SessionConfig{
			TTL:           getEnvAsDuration("SESSION_TTL", time.Hour),
			SweepInterval: getEnvAsDuration("SESSION_SWEEP_INTERVAL", 10*time.Minute),
			SnapshotTTL:   getEnvAsDuration("SESSION_SNAPSHOT_TTL", 24*time.Hour),
		},
		Corpus: CorpusConfig{
			ManifestPath: getEnv("CORPUS_MANIFEST", "data/corpus.yaml"),
		},
	}
}

// IsProduction reports whether the app runs with GO_ENV=production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("90s") or plain seconds ("90")
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	if secs, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
