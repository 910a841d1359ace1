package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/local/quizforge/api/models"
)

type Config struct {
	EmbeddingModel  string
	CompletionModel string
	CredentialsFile string
	GeminiAPIKey    string
	SegmentSize     int
	SegmentOverlap  int
	RetrievalK      int
	MaxQuestions    int
	RequestTimeout  time.Duration
	Port            string
	DBPath          string
	VectorDBPath    string // empty means in-memory only
	SessionSecret   string
	MaxUploadSize   int64
}

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		EmbeddingModel:  getEnv("EMBEDDING_MODEL", "text-embedding-004"),
		CompletionModel: getEnv("COMPLETION_MODEL", "gemini-2.0-flash"),
		CredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		SegmentSize:     getEnvInt("SEGMENT_SIZE", 1000),
		SegmentOverlap:  getEnvInt("SEGMENT_OVERLAP", 100),
		RetrievalK:      getEnvInt("RETRIEVAL_K", 4),
		MaxQuestions:    getEnvInt("MAX_QUESTIONS", 10),
		RequestTimeout:  time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 30)) * time.Second,
		Port:            getEnv("PORT", "8080"),
		DBPath:          getEnv("DB_PATH", "./storage/quizforge.db"),
		VectorDBPath:    getEnv("VECTOR_DB_PATH", ""),
		SessionSecret:   getEnv("SESSION_SECRET", "quizforge-dev-secret"),
		MaxUploadSize:   52428800, // 50MB default
	}

	if err := cfg.checkCredentials(); err != nil {
		return nil, err
	}

	if cfg.SegmentSize <= 0 || cfg.SegmentOverlap < 0 || cfg.SegmentOverlap >= cfg.SegmentSize {
		return nil, fmt.Errorf("segment size %d / overlap %d out of range", cfg.SegmentSize, cfg.SegmentOverlap)
	}
	if cfg.RetrievalK <= 0 || cfg.MaxQuestions <= 0 {
		return nil, fmt.Errorf("retrieval k %d / max questions %d must be positive", cfg.RetrievalK, cfg.MaxQuestions)
	}

	return cfg, nil
}

// checkCredentials fails fast at startup so a missing service account is
// reported before any document can be processed.
func (c *Config) checkCredentials() error {
	if c.GeminiAPIKey != "" {
		return nil
	}
	if c.CredentialsFile == "" {
		return fmt.Errorf("%w: set GOOGLE_APPLICATION_CREDENTIALS or GEMINI_API_KEY", models.ErrCredentialsMissing)
	}
	if _, err := os.Stat(c.CredentialsFile); err != nil {
		return fmt.Errorf("%w: cannot read %s: %v", models.ErrCredentialsMissing, c.CredentialsFile, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
