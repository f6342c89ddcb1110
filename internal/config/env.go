package config

import (
	"os"
	"strconv"
)

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv(cfg *Config) {
	cfg.Catalog.APIKey = GetEnvOrDefault("INTELVAULT_API_KEY", cfg.Catalog.APIKey)
	cfg.Catalog.BaseURL = GetEnvOrDefault("INTELVAULT_BASE_URL", cfg.Catalog.BaseURL)
	cfg.DownloadDir = GetEnvOrDefault("INTELVAULT_DOWNLOAD_DIR", cfg.DownloadDir)

	if workers := os.Getenv("INTELVAULT_WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil {
			cfg.Workers = w
		}
	}

	if rpm := os.Getenv("INTELVAULT_REQUESTS_PER_MINUTE"); rpm != "" {
		if r, err := strconv.Atoi(rpm); err == nil {
			cfg.Catalog.RequestsPerMinute = r
		}
	}
}

// GetEnvOrDefault returns environment variable or default value.
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
