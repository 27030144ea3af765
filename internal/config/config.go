/**
 * Configuration for the manual-QA retrieval service.
 *
 * Loads configuration from environment variables matching .env.manualqa
 */

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cast"
)

// Backend selects the vector store implementation.
type Backend string

const (
	BackendEmbedded Backend = "embedded"
	BackendRemote   Backend = "remote"
)

// Config holds service configuration.
type Config struct {
	Port           int
	PDFPath        string
	AllowedOrigins []string

	APIKey      string
	AdminAPIKey string

	GeminiAPIKey string

	OCREngine         string // "tesseract" (default) or "vision"
	OCRWorkers        int
	OCRPageTimeout    time.Duration
	OCRGlobalTimeout  time.Duration
	PDFImageScale     float64
	EmbedBatchSize    int
	EmbedConcurrency  int
	UploadExtractTimeout time.Duration

	VectorBackend    Backend
	QdrantURL        string
	QdrantAPIKey     string
	QdrantCollection string
	QdrantVectorSize int

	TesseractPath string
	TempDir       string
	NodeEnv       string

	MaxFileSize int64

	RedisURL string
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:           getEnvAsIntOrDefault("PORT", 8080),
		PDFPath:        getEnvOrDefault("PDF_PATH", "./data"),
		AllowedOrigins: splitCSV(getEnvOrDefault("ALLOWED_ORIGINS", "*")),

		APIKey:      getEnvOrDefault("API_KEY", ""),
		AdminAPIKey: getEnvOrDefault("ADMIN_API_KEY", ""),

		GeminiAPIKey: getEnvOrDefault("GEMINI_API_KEY", ""),

		OCREngine:            getEnvOrDefault("OCR_ENGINE", "tesseract"),
		OCRWorkers:           getEnvAsIntOrDefault("OCR_WORKERS", 4),
		OCRPageTimeout:       getEnvAsMillisOrDefault("OCR_PAGE_TIMEOUT_MS", 60_000),
		OCRGlobalTimeout:     getEnvAsMillisOrDefault("OCR_GLOBAL_TIMEOUT_MS", 30*60_000),
		PDFImageScale:        getEnvAsFloatOrDefault("PDF_IMG_SCALE", 1.5),
		EmbedBatchSize:       getEnvAsIntOrDefault("EMBED_BATCH_SIZE", 32),
		EmbedConcurrency:     getEnvAsIntOrDefault("EMBED_CONCURRENCY", 8),
		UploadExtractTimeout: getEnvAsMillisOrDefault("UPLOAD_EXTRACT_TIMEOUT_MS", 45*60_000),

		VectorBackend:    Backend(getEnvOrDefault("VECTOR_BACKEND", string(BackendEmbedded))),
		QdrantURL:        getEnvOrDefault("QDRANT_URL", "localhost:6334"),
		QdrantAPIKey:     getEnvOrDefault("QDRANT_API_KEY", ""),
		QdrantCollection: getEnvOrDefault("QDRANT_COLLECTION", "manualqa_chunks"),
		QdrantVectorSize: getEnvAsIntOrDefault("QDRANT_VECTOR_SIZE", 3072),

		TesseractPath: getEnvOrDefault("TESSERACT_PATH", "/usr/bin/tesseract"),
		TempDir:       getEnvOrDefault("TEMP_DIR", "/tmp/manualqa"),
		NodeEnv:       getEnvOrDefault("NODE_ENV", "development"),

		MaxFileSize: getEnvAsInt64OrDefault("MAX_FILE_SIZE", 200*1024*1024), // 200MB

		RedisURL: getEnvOrDefault("REDIS_URL", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}

	if c.OCREngine != "tesseract" && c.OCREngine != "vision" {
		return fmt.Errorf("OCR_ENGINE must be 'tesseract' or 'vision', got %q", c.OCREngine)
	}

	if c.OCRWorkers < 1 || c.OCRWorkers > 8 {
		return fmt.Errorf("OCR_WORKERS must be between 1 and 8, got %d", c.OCRWorkers)
	}

	if c.PDFImageScale < 1.0 || c.PDFImageScale > 3.0 {
		return fmt.Errorf("PDF_IMG_SCALE must be between 1.0 and 3.0, got %f", c.PDFImageScale)
	}

	if c.VectorBackend != BackendEmbedded && c.VectorBackend != BackendRemote {
		return fmt.Errorf("VECTOR_BACKEND must be 'embedded' or 'remote', got %q", c.VectorBackend)
	}

	if c.VectorBackend == BackendRemote && c.QdrantURL == "" {
		return fmt.Errorf("QDRANT_URL is required when VECTOR_BACKEND=remote")
	}

	if c.MaxFileSize < 1024 {
		return fmt.Errorf("MAX_FILE_SIZE must be at least 1KB, got %d", c.MaxFileSize)
	}

	return nil
}

func splitCSV(s string) []string {
	var out []string
	cur := ""
	for _, r := range s {
		if r == ',' {
			if cur != "" {
				out = append(out, cur)
				cur = ""
			}
			continue
		}
		cur += string(r)
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := cast.ToIntE(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt64OrDefault(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := cast.ToInt64E(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := cast.ToFloat64E(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsMillisOrDefault(key string, defaultMillis int64) time.Duration {
	return time.Duration(getEnvAsInt64OrDefault(key, defaultMillis)) * time.Millisecond
}
