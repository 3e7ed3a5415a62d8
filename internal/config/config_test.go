package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// clearAskvidEnv blanks the variables Load reads so defaults apply.
func clearAskvidEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ASKVID_CONFIG", "ASKVID_LLM_PROVIDER", "ASKVID_LLM_MODEL",
		"ASKVID_EMBED_PROVIDER", "ASKVID_EMBED_MODEL", "ASKVID_EMBED_DIMENSION",
		"ASKVID_VECTOR_BACKEND", "ASKVID_CHUNK_SIZE", "ASKVID_CHUNK_OVERLAP",
		"ASKVID_RETRIEVAL_K", "ASKVID_USE_COMPRESSION", "ASKVID_MAX_AGENT_STEPS",
		"ASKVID_RATE_LIMIT", "ASKVID_RATE_WINDOW", "ASKVID_TRUST_PROXY",
		"ASKVID_TRUSTED_HOPS", "ASKVID_PORT", "ASKVID_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearAskvidEnv(t)

	cfg := Load()

	if cfg.LLMProvider != ProviderOpenAI {
		t.Errorf("LLMProvider = %q, want %q", cfg.LLMProvider, ProviderOpenAI)
	}
	if cfg.EmbedDimension != 1536 {
		t.Errorf("EmbedDimension = %d, want 1536", cfg.EmbedDimension)
	}
	if cfg.VectorBackend != StoreMemory {
		t.Errorf("VectorBackend = %q, want %q", cfg.VectorBackend, StoreMemory)
	}
	if cfg.ChunkSize != 2000 || cfg.ChunkOverlap != 400 {
		t.Errorf("chunking = %d/%d, want 2000/400", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.RetrievalK != 4 {
		t.Errorf("RetrievalK = %d, want 4", cfg.RetrievalK)
	}
	if cfg.RateLimit != 10 || cfg.RateWindow != time.Minute {
		t.Errorf("rate limit = %d per %s, want 10 per 1m", cfg.RateLimit, cfg.RateWindow)
	}
	if cfg.TrustProxy {
		t.Error("TrustProxy should default to false")
	}
	if cfg.Port != "8484" {
		t.Errorf("Port = %q, want 8484", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want INFO", cfg.LogLevel)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearAskvidEnv(t)
	t.Setenv("ASKVID_LLM_PROVIDER", ProviderAnthropic)
	t.Setenv("ASKVID_LLM_MODEL", "claude-sonnet-4-5")
	t.Setenv("ASKVID_VECTOR_BACKEND", StoreSurreal)
	t.Setenv("ASKVID_RETRIEVAL_K", "8")
	t.Setenv("ASKVID_USE_COMPRESSION", "true")
	t.Setenv("ASKVID_RATE_WINDOW", "30s")
	t.Setenv("ASKVID_LOG_LEVEL", "debug")

	cfg := Load()

	if cfg.LLMProvider != ProviderAnthropic {
		t.Errorf("LLMProvider = %q, want anthropic", cfg.LLMProvider)
	}
	if cfg.LLMModel != "claude-sonnet-4-5" {
		t.Errorf("LLMModel = %q", cfg.LLMModel)
	}
	if cfg.VectorBackend != StoreSurreal {
		t.Errorf("VectorBackend = %q, want surrealdb", cfg.VectorBackend)
	}
	if cfg.RetrievalK != 8 {
		t.Errorf("RetrievalK = %d, want 8", cfg.RetrievalK)
	}
	if !cfg.UseCompression {
		t.Error("UseCompression should be true")
	}
	if cfg.RateWindow != 30*time.Second {
		t.Errorf("RateWindow = %s, want 30s", cfg.RateWindow)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want DEBUG", cfg.LogLevel)
	}
}

func TestLoad_FileDefaults(t *testing.T) {
	clearAskvidEnv(t)

	path := filepath.Join(t.TempDir(), "askvid.yaml")
	yaml := `
llm:
  provider: ollama
  model: llama3.2
embedding:
  provider: ollama
  model: all-minilm
  dimension: 384
retrieval:
  chunk_size: 1000
  k: 6
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("ASKVID_CONFIG", path)
	// Environment still wins over file values.
	t.Setenv("ASKVID_RETRIEVAL_K", "2")

	cfg := Load()

	if cfg.LLMProvider != ProviderOllama {
		t.Errorf("LLMProvider = %q, want ollama", cfg.LLMProvider)
	}
	if cfg.LLMModel != "llama3.2" {
		t.Errorf("LLMModel = %q, want llama3.2", cfg.LLMModel)
	}
	if cfg.EmbedDimension != 384 {
		t.Errorf("EmbedDimension = %d, want 384", cfg.EmbedDimension)
	}
	if cfg.ChunkSize != 1000 {
		t.Errorf("ChunkSize = %d, want 1000", cfg.ChunkSize)
	}
	if cfg.ChunkOverlap != 400 {
		t.Errorf("ChunkOverlap = %d, want default 400", cfg.ChunkOverlap)
	}
	if cfg.RetrievalK != 2 {
		t.Errorf("RetrievalK = %d, env should override file", cfg.RetrievalK)
	}
}

func TestLoad_BadConfigFileFallsBack(t *testing.T) {
	clearAskvidEnv(t)
	t.Setenv("ASKVID_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg := Load()
	if cfg.LLMProvider != ProviderOpenAI {
		t.Errorf("LLMProvider = %q, want default with unreadable file", cfg.LLMProvider)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"nonsense", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLogLevel(tt.in); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("ASKVID_TEST_INT", "not-a-number")
	if got := getEnvInt("ASKVID_TEST_INT", 7); got != 7 {
		t.Errorf("getEnvInt with garbage = %d, want fallback 7", got)
	}

	t.Setenv("ASKVID_TEST_DUR", "soon")
	if got := getEnvDuration("ASKVID_TEST_DUR", time.Second); got != time.Second {
		t.Errorf("getEnvDuration with garbage = %s, want fallback 1s", got)
	}

	t.Setenv("ASKVID_TEST_BOOL", "1")
	if !getEnvBool("ASKVID_TEST_BOOL", false) {
		t.Error("getEnvBool(\"1\") = false, want true")
	}
	t.Setenv("ASKVID_TEST_BOOL", "no")
	if getEnvBool("ASKVID_TEST_BOOL", true) {
		t.Error("getEnvBool(\"no\") = true, want false")
	}
}
