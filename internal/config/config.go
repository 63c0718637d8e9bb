/**
 * Configuration for the datafetch CLI
 *
 * Loads configuration from environment variables; a .env file is read
 * by the CLI before this runs.
 */

package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/adverant/nexus/ocr-trainingdata/datasets"
)

// Config holds datafetch configuration
type Config struct {
	// Cache root for downloaded archives and images
	CacheDir string

	// Optional YAML manifest overriding remote dataset sources
	ManifestPath string

	// Worker pool size for per-image download fan-out
	FetchConcurrency int

	// Per-download timeout in seconds
	HTTPTimeoutSeconds int

	// Verbose enables per-file download logging
	Verbose bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		CacheDir:           getEnvOrDefault("OCRDATA_CACHE_DIR", datasets.DefaultCacheDir()),
		ManifestPath:       getEnvOrDefault("OCRDATA_SOURCE_MANIFEST", ""),
		FetchConcurrency:   getEnvAsIntOrDefault("OCRDATA_FETCH_CONCURRENCY", runtime.NumCPU()),
		HTTPTimeoutSeconds: getEnvAsIntOrDefault("OCRDATA_HTTP_TIMEOUT_SECONDS", 600),
		Verbose:            getEnvAsBoolOrDefault("OCRDATA_VERBOSE", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.CacheDir == "" {
		return fmt.Errorf("OCRDATA_CACHE_DIR is required")
	}

	if c.FetchConcurrency < 1 || c.FetchConcurrency > 256 {
		return fmt.Errorf("OCRDATA_FETCH_CONCURRENCY must be between 1 and 256, got %d", c.FetchConcurrency)
	}

	if c.HTTPTimeoutSeconds < 1 {
		return fmt.Errorf("OCRDATA_HTTP_TIMEOUT_SECONDS must be positive, got %d", c.HTTPTimeoutSeconds)
	}

	return nil
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsBoolOrDefault gets environment variable as bool or returns default
func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
