package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// LLM completion endpoint (OpenAI-compatible).
	LLMBaseURL   string
	LLMModelName string
	LLMAPIKey    string
	// Vision-capable model used for photo analysis. Often the same endpoint
	// as the chat model but a different model name.
	VisionModelName string

	// Embeddings endpoint (OpenAI-compatible).
	EmbeddingBaseURL   string
	EmbeddingModelName string

	DBPath string

	QdrantURL        string
	QdrantCollection string
	QdrantVectorSize int

	APIPort   string
	LogLevel  slog.Level
	LogFormat string

	// Retrieval tuning. Candidates is deliberately broader than FinalCount so
	// the reranker has material to work with.
	RetrievalCandidates int
	RetrievalThreshold  float64
	RetrievalCount      int

	// Consultation-first product gate. A first message shorter than both
	// limits (and without an image) is treated as too low-information to
	// justify naming products.
	GateMaxChars int
	GateMaxWords int

	HistoryLimit    int
	ClassifyTimeout time.Duration

	// Per-user rate limit applied before any pipeline work.
	RateLimitPerMinute int
	RateLimitBurst     int
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or project root, it is loaded
// automatically; environment variables already set take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load() // Try current directory

	// Walk up to find a project-root .env (limited depth).
	if wd, err := os.Getwd(); err == nil {
		dir := wd
		for i := 0; i < 5; i++ {
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	cfg := &Config{
		LLMBaseURL:         getEnv("LLM_BASE_URL", "http://localhost:8080"),
		LLMModelName:       getEnv("LLM_MODEL", "gpt-4o"),
		LLMAPIKey:          getEnv("LLM_API_KEY", "dummy-key"),
		VisionModelName:    getEnv("VISION_MODEL", "gpt-4o"),
		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "text-embedding-3-small"),
		DBPath:             getEnv("DB_PATH", "./data/hairwise.db"),
		QdrantURL:          getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection:   getEnv("QDRANT_COLLECTION", "knowledge"),
		APIPort:            getEnv("API_PORT", "9000"),
		LogFormat:          getEnv("LOG_FORMAT", "text"),
	}

	switch getEnv("LOG_LEVEL", "info") {
	case "debug":
		cfg.LogLevel = slog.LevelDebug
	case "warn":
		cfg.LogLevel = slog.LevelWarn
	case "error":
		cfg.LogLevel = slog.LevelError
	default:
		cfg.LogLevel = slog.LevelInfo
	}

	// QDRANT_VECTOR_SIZE must match the output size of the embeddings model.
	// If the model changes, the collection must be recreated.
	vectorSizeStr := getEnv("QDRANT_VECTOR_SIZE", "")
	if vectorSizeStr == "" {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE is required")
	}
	vectorSize, err := strconv.Atoi(vectorSizeStr)
	if err != nil {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE must be a valid integer: %w", err)
	}
	if vectorSize <= 0 {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE must be greater than 0")
	}
	cfg.QdrantVectorSize = vectorSize

	if cfg.RetrievalCandidates, err = getEnvInt("RETRIEVAL_CANDIDATES", 20); err != nil {
		return nil, err
	}
	if cfg.RetrievalThreshold, err = getEnvFloat("RETRIEVAL_THRESHOLD", 0.65); err != nil {
		return nil, err
	}
	if cfg.RetrievalCount, err = getEnvInt("RETRIEVAL_COUNT", 5); err != nil {
		return nil, err
	}
	if cfg.GateMaxChars, err = getEnvInt("GATE_MAX_CHARS", 80); err != nil {
		return nil, err
	}
	if cfg.GateMaxWords, err = getEnvInt("GATE_MAX_WORDS", 12); err != nil {
		return nil, err
	}
	if cfg.HistoryLimit, err = getEnvInt("HISTORY_LIMIT", 10); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerMinute, err = getEnvInt("RATE_LIMIT_PER_MINUTE", 30); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = getEnvInt("RATE_LIMIT_BURST", 10); err != nil {
		return nil, err
	}

	classifyTimeoutSec, err := getEnvInt("CLASSIFY_TIMEOUT_SECONDS", 10)
	if err != nil {
		return nil, err
	}
	if classifyTimeoutSec <= 0 {
		return nil, fmt.Errorf("CLASSIFY_TIMEOUT_SECONDS must be greater than 0")
	}
	cfg.ClassifyTimeout = time.Duration(classifyTimeoutSec) * time.Second

	if cfg.RetrievalCount > cfg.RetrievalCandidates {
		return nil, fmt.Errorf("RETRIEVAL_COUNT (%d) must not exceed RETRIEVAL_CANDIDATES (%d)",
			cfg.RetrievalCount, cfg.RetrievalCandidates)
	}
	if cfg.RetrievalThreshold < 0 || cfg.RetrievalThreshold > 1 {
		return nil, fmt.Errorf("RETRIEVAL_THRESHOLD must be between 0 and 1")
	}

	// Create the data directory if it doesn't exist (for the sqlite file).
	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns a default value.
func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return parsed, nil
}

// getEnvFloat gets a float environment variable or returns a default value.
func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid number: %w", key, err)
	}
	return parsed, nil
}
