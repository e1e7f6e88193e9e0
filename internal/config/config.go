package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	AzureOpenAIEndpoint   string
	AzureOpenAIAPIKey     string
	AzureOpenAIAPIVersion string
	ChatDeployment        string
	EmbedDeployment       string

	FrontendOrigin string
	APIPort        string

	DataDir string
	DBPath  string

	QdrantURL        string
	QdrantCollection string
	QdrantVectorSize int

	ChunkSize    int
	ChunkOverlap int

	EmbedBatchSize       int
	EmbedTimeout         time.Duration
	EmbedRetryMaxElapsed time.Duration

	LogLevel  slog.Level
	LogFormat string
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or a parent directory, it is
// loaded automatically; environment variables already set take precedence.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	// Walk up a few levels so the tools work from subdirectories too
	wd, err := os.Getwd()
	if err == nil {
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
		AzureOpenAIEndpoint:   getEnv("AZURE_OPENAI_ENDPOINT", ""),
		AzureOpenAIAPIKey:     getEnv("AZURE_OPENAI_API_KEY", ""),
		AzureOpenAIAPIVersion: getEnv("AZURE_OPENAI_API_VERSION", "2024-08-01-preview"),
		ChatDeployment:        getEnv("AZURE_OPENAI_CHAT_DEPLOYMENT", "gpt-4o-mini"),
		EmbedDeployment:       getEnv("AZURE_OPENAI_EMBED_DEPLOYMENT", "text-embedding-3-small"),
		FrontendOrigin:        getEnv("FRONTEND_ORIGIN", "http://localhost:3000"),
		APIPort:               getEnv("API_PORT", "8000"),
		DataDir:               getEnv("DATA_DIR", "./data/sample-docs"),
		DBPath:                getEnv("DB_PATH", "./vectorstore/ingest.db"),
		QdrantURL:             getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection:      getEnv("QDRANT_COLLECTION", "docs_collection"),
		LogFormat:             getEnv("LOG_FORMAT", "text"),
	}

	if cfg.AzureOpenAIEndpoint == "" {
		return nil, fmt.Errorf("AZURE_OPENAI_ENDPOINT is required")
	}
	if cfg.AzureOpenAIAPIKey == "" {
		return nil, fmt.Errorf("AZURE_OPENAI_API_KEY is required")
	}

	// Note: this must match the output vector size of the embeddings deployment.
	// text-embedding-3-small produces 1536 dimensions. If the size changes, the
	// Qdrant collection must be recreated.
	cfg.QdrantVectorSize, err = getEnvInt("QDRANT_VECTOR_SIZE", 1536)
	if err != nil {
		return nil, err
	}
	if cfg.QdrantVectorSize <= 0 {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE must be greater than 0")
	}

	cfg.ChunkSize, err = getEnvInt("CHUNK_SIZE", 800)
	if err != nil {
		return nil, err
	}
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("CHUNK_SIZE must be greater than 0")
	}

	cfg.ChunkOverlap, err = getEnvInt("CHUNK_OVERLAP", 150)
	if err != nil {
		return nil, err
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE)")
	}

	cfg.EmbedBatchSize, err = getEnvInt("EMBED_BATCH_SIZE", 100)
	if err != nil {
		return nil, err
	}
	if cfg.EmbedBatchSize <= 0 {
		return nil, fmt.Errorf("EMBED_BATCH_SIZE must be greater than 0")
	}

	cfg.EmbedTimeout, err = getEnvDuration("EMBED_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.EmbedRetryMaxElapsed, err = getEnvDuration("EMBED_RETRY_MAX_ELAPSED", 30*time.Second)
	if err != nil {
		return nil, err
	}

	level, err := parseLogLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	// Create the catalog directory if it doesn't exist
	dbDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create vectorstore directory: %w", err)
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
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return n, nil
}

// getEnvDuration gets a duration environment variable or returns a default value.
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid duration (e.g. 30s): %w", key, err)
	}
	return d, nil
}

// parseLogLevel converts a level name to a slog.Level.
func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error")
	}
}
