// Package config loads runtime configuration from the environment,
// with optional defaults from a YAML file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Provider names for LLM and embedding backends.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderVoyage    = "voyage"
)

// Vector store backends.
const (
	StoreMemory  = "memory"
	StoreSurreal = "surrealdb"
)

// Config holds all configuration values.
type Config struct {
	// LLM
	LLMProvider     string
	LLMModel        string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	OllamaHost      string

	// Embedding
	EmbedProvider  string
	EmbedModel     string
	EmbedDimension int
	VoyageAPIKey   string

	// Vector store
	VectorBackend      string
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Retrieval
	ChunkSize      int
	ChunkOverlap   int
	RetrievalK     int
	UseCompression bool

	// Agent
	MaxAgentSteps int

	// Rate limiting
	RateLimit      int
	RateWindow     time.Duration
	TrustProxy     bool
	TrustedHops    int

	// Server
	Port     string
	LogFile  string
	LogLevel slog.Level
}

// fileConfig is the YAML shape for optional file-based defaults.
// Environment variables always win over file values.
type fileConfig struct {
	LLM struct {
		Provider string `yaml:"provider"`
		Model    string `yaml:"model"`
	} `yaml:"llm"`
	Embedding struct {
		Provider  string `yaml:"provider"`
		Model     string `yaml:"model"`
		Dimension int    `yaml:"dimension"`
	} `yaml:"embedding"`
	Store struct {
		Backend string `yaml:"backend"`
	} `yaml:"store"`
	Retrieval struct {
		ChunkSize      int  `yaml:"chunk_size"`
		ChunkOverlap   int  `yaml:"chunk_overlap"`
		K              int  `yaml:"k"`
		UseCompression bool `yaml:"use_compression"`
	} `yaml:"retrieval"`
}

// Load reads configuration from the environment. A .env file is loaded
// first if present, and ASKVID_CONFIG may point at a YAML file whose
// values act as defaults below the environment.
func Load() Config {
	// Best-effort: missing .env is not an error.
	_ = godotenv.Load()

	var fc fileConfig
	if path := os.Getenv("ASKVID_CONFIG"); path != "" {
		if err := loadFile(path, &fc); err != nil {
			slog.Warn("failed to load config file, using env only", "path", path, "error", err)
		}
	}

	return Config{
		LLMProvider:     getEnv("ASKVID_LLM_PROVIDER", coalesce(fc.LLM.Provider, ProviderOpenAI)),
		LLMModel:        getEnv("ASKVID_LLM_MODEL", coalesce(fc.LLM.Model, "gpt-4o-mini")),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),

		EmbedProvider:  getEnv("ASKVID_EMBED_PROVIDER", coalesce(fc.Embedding.Provider, ProviderOpenAI)),
		EmbedModel:     getEnv("ASKVID_EMBED_MODEL", coalesce(fc.Embedding.Model, "text-embedding-3-small")),
		EmbedDimension: getEnvInt("ASKVID_EMBED_DIMENSION", coalesceInt(fc.Embedding.Dimension, 1536)),
		VoyageAPIKey:   getEnv("VOYAGE_API_KEY", ""),

		VectorBackend:      getEnv("ASKVID_VECTOR_BACKEND", coalesce(fc.Store.Backend, StoreMemory)),
		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "askvid"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "transcripts"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		ChunkSize:      getEnvInt("ASKVID_CHUNK_SIZE", coalesceInt(fc.Retrieval.ChunkSize, 2000)),
		ChunkOverlap:   getEnvInt("ASKVID_CHUNK_OVERLAP", coalesceInt(fc.Retrieval.ChunkOverlap, 400)),
		RetrievalK:     getEnvInt("ASKVID_RETRIEVAL_K", coalesceInt(fc.Retrieval.K, 4)),
		UseCompression: getEnvBool("ASKVID_USE_COMPRESSION", fc.Retrieval.UseCompression),

		MaxAgentSteps: getEnvInt("ASKVID_MAX_AGENT_STEPS", 10),

		RateLimit:   getEnvInt("ASKVID_RATE_LIMIT", 10),
		RateWindow:  getEnvDuration("ASKVID_RATE_WINDOW", time.Minute),
		TrustProxy:  getEnvBool("ASKVID_TRUST_PROXY", false),
		TrustedHops: getEnvInt("ASKVID_TRUSTED_HOPS", 1),

		Port:     getEnv("ASKVID_PORT", "8484"),
		LogFile:  getEnv("ASKVID_LOG_FILE", "/tmp/askvid.log"),
		LogLevel: parseLogLevel(getEnv("ASKVID_LOG_LEVEL", "INFO")),
	}
}

func loadFile(path string, fc *fileConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, fc); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func coalesce(val, fallback string) string {
	if val != "" {
		return val
	}
	return fallback
}

func coalesceInt(val, fallback int) int {
	if val != 0 {
		return val
	}
	return fallback
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
