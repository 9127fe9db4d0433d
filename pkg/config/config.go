package config

import (
	"os"
	"strconv"
	"time"

	"guardian-rag/internal/errs"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	OpenAI    OpenAIConfig
	Chunking  ChunkingConfig
	Retrieval RetrievalConfig
	Embedding EmbeddingConfig
	Storage   StorageConfig
	JWT       JWTConfig
	Logger    LoggerConfig
}

type LoggerConfig struct {
	Level string
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
}

type OpenAIConfig struct {
	APIKey          string
	EmbeddingModel  string
	GenerationModel string
	Temperature     float32
	MaxTokens       int
	RequestTimeout  time.Duration
}

type ChunkingConfig struct {
	MaxTokens     int
	OverlapTokens int
}

type RetrievalConfig struct {
	TopK             int
	OversampleFactor int
	ScoreThreshold   float64
}

// StorageConfig selects the vector index and audit store backend. The
// postgres backend is the compliance-grade default; memory is for
// development and tests only.
type StorageConfig struct {
	Backend string
}

type JWTConfig struct {
	SecretKey  string
	Expiration time.Duration
}

// EmbeddingConfig bounds the embedding client's batching and retry policy.
type EmbeddingConfig struct {
	BatchSize   int
	MaxAttempts int
}

func Load() (*Config, error) {
	// Try to load .env file from current directory or project root
	envFiles := []string{".env", "../.env", "../../.env"}
	for _, envFile := range envFiles {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}
	// If no .env file found, continue with environment variables directly
	// (useful for Docker/K8s)

	readTimeout, _ := strconv.Atoi(getEnv("SERVER_READ_TIMEOUT", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("SERVER_WRITE_TIMEOUT", "30"))
	requestTimeout, _ := strconv.Atoi(getEnv("OPENAI_REQUEST_TIMEOUT", "30"))
	maxGenTokens, _ := strconv.Atoi(getEnv("GENERATION_MAX_TOKENS", "500"))
	temperature, _ := strconv.ParseFloat(getEnv("GENERATION_TEMPERATURE", "0"), 32)
	maxTokens, _ := strconv.Atoi(getEnv("CHUNK_MAX_TOKENS", "512"))
	overlapTokens, _ := strconv.Atoi(getEnv("CHUNK_OVERLAP_TOKENS", "50"))
	topK, _ := strconv.Atoi(getEnv("RETRIEVAL_TOP_K", "5"))
	oversample, _ := strconv.Atoi(getEnv("RETRIEVAL_OVERSAMPLE_FACTOR", "3"))
	threshold, _ := strconv.ParseFloat(getEnv("RETRIEVAL_SCORE_THRESHOLD", "0.7"), 64)
	batchSize, _ := strconv.Atoi(getEnv("EMBEDDING_BATCH_SIZE", "32"))
	maxAttempts, _ := strconv.Atoi(getEnv("EMBEDDING_MAX_ATTEMPTS", "3"))
	jwtExp, _ := strconv.Atoi(getEnv("JWT_EXPIRATION_HOURS", "24"))
	maxConns, _ := strconv.Atoi(getEnv("DB_MAX_CONNS", "8"))

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  time.Duration(readTimeout) * time.Second,
			WriteTimeout: time.Duration(writeTimeout) * time.Second,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "guardian_rag"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(maxConns),
		},
		OpenAI: OpenAIConfig{
			APIKey:          getEnv("OPENAI_API_KEY", ""),
			EmbeddingModel:  getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			GenerationModel: getEnv("GENERATION_MODEL", "gpt-4"),
			Temperature:     float32(temperature),
			MaxTokens:       maxGenTokens,
			RequestTimeout:  time.Duration(requestTimeout) * time.Second,
		},
		Chunking: ChunkingConfig{
			MaxTokens:     maxTokens,
			OverlapTokens: overlapTokens,
		},
		Retrieval: RetrievalConfig{
			TopK:             topK,
			OversampleFactor: oversample,
			ScoreThreshold:   threshold,
		},
		Embedding: EmbeddingConfig{
			BatchSize:   batchSize,
			MaxAttempts: maxAttempts,
		},
		Storage: StorageConfig{
			Backend: getEnv("STORAGE_BACKEND", "postgres"),
		},
		JWT: JWTConfig{
			SecretKey:  getEnv("JWT_SECRET_KEY", "your-secret-key-change-in-production"),
			Expiration: time.Duration(jwtExp) * time.Hour,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate fails fast on invalid parameter combinations.
func (c *Config) Validate() error {
	if c.Chunking.MaxTokens <= 0 {
		return errs.NewConfigError("CHUNK_MAX_TOKENS", "must be positive")
	}
	if c.Chunking.OverlapTokens < 0 {
		return errs.NewConfigError("CHUNK_OVERLAP_TOKENS", "must not be negative")
	}
	if c.Chunking.OverlapTokens >= c.Chunking.MaxTokens {
		return errs.NewConfigError("CHUNK_OVERLAP_TOKENS", "must be less than CHUNK_MAX_TOKENS")
	}
	if c.Retrieval.TopK <= 0 {
		return errs.NewConfigError("RETRIEVAL_TOP_K", "must be positive")
	}
	if c.Retrieval.OversampleFactor <= 0 {
		return errs.NewConfigError("RETRIEVAL_OVERSAMPLE_FACTOR", "must be positive")
	}
	if c.Retrieval.ScoreThreshold < 0 || c.Retrieval.ScoreThreshold > 1 {
		return errs.NewConfigError("RETRIEVAL_SCORE_THRESHOLD", "must be within [0,1]")
	}
	if c.Embedding.BatchSize <= 0 {
		return errs.NewConfigError("EMBEDDING_BATCH_SIZE", "must be positive")
	}
	if c.Embedding.MaxAttempts <= 0 {
		return errs.NewConfigError("EMBEDDING_MAX_ATTEMPTS", "must be positive")
	}
	if c.OpenAI.MaxTokens <= 0 {
		return errs.NewConfigError("GENERATION_MAX_TOKENS", "must be positive")
	}
	if c.Storage.Backend != "postgres" && c.Storage.Backend != "memory" {
		return errs.NewConfigError("STORAGE_BACKEND", "must be postgres or memory")
	}
	if c.Database.MaxConns <= 0 {
		return errs.NewConfigError("DB_MAX_CONNS", "must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
