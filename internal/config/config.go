// Package config assembles process configuration from the environment
package config

import (
	"os"
	"strconv"

	"github.com/shaggydog-ai/shaggydog/internal/db"
	"github.com/shaggydog-ai/shaggydog/internal/db/models"
)

// GetEnv retrieves the value of an environment variable with a fallback value if not set
func GetEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// GetEnvInt retrieves an integer environment variable with a fallback value
func GetEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

// Config holds the server configuration
type Config struct {
	// Port is the HTTP listen port
	Port string
	// DB holds the database connection options
	DB db.Options
	// OpenAIAPIKey authenticates against the vision/generation capability
	OpenAIAPIKey string
	// OpenAIBaseURL overrides the capability endpoint (mainly for tests)
	OpenAIBaseURL string
	// StageCount is the number of generated images per job
	StageCount int
	// Workers is the number of concurrent generation pipelines
	Workers int
	// MaxUploadSize is the upload cap in bytes
	MaxUploadSize int64
}

// Load builds the configuration from environment variables
func Load() Config {
	return Config{
		Port: GetEnv("PORT", "8080"),
		DB: db.Options{
			Host:     GetEnv("DB_HOST", db.DefaultHost),
			User:     GetEnv("DB_USER", db.DefaultUser),
			Password: GetEnv("DB_PASSWORD", db.DefaultPassword),
			DBName:   GetEnv("DB_NAME", db.DefaultDBName),
			Port:     GetEnvInt("DB_PORT", db.DefaultPort),
		},
		OpenAIAPIKey:  GetEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: GetEnv("OPENAI_BASE_URL", ""),
		StageCount:    GetEnvInt("STAGE_COUNT", models.DefaultStageCount),
		Workers:       GetEnvInt("PIPELINE_WORKERS", 0),
		MaxUploadSize: int64(GetEnvInt("MAX_UPLOAD_SIZE", 5*1024*1024)),
	}
}
