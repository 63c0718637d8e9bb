package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.CacheDir)
	assert.GreaterOrEqual(t, cfg.FetchConcurrency, 1)
	assert.Equal(t, 600, cfg.HTTPTimeoutSeconds)
	assert.False(t, cfg.Verbose)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("OCRDATA_CACHE_DIR", "/var/cache/ocrdata")
	t.Setenv("OCRDATA_FETCH_CONCURRENCY", "8")
	t.Setenv("OCRDATA_HTTP_TIMEOUT_SECONDS", "30")
	t.Setenv("OCRDATA_VERBOSE", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "/var/cache/ocrdata", cfg.CacheDir)
	assert.Equal(t, 8, cfg.FetchConcurrency)
	assert.Equal(t, 30, cfg.HTTPTimeoutSeconds)
	assert.True(t, cfg.Verbose)
}

func TestLoadConfigRejectsOutOfRangeConcurrency(t *testing.T) {
	t.Setenv("OCRDATA_FETCH_CONCURRENCY", "4096")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("OCRDATA_FETCH_CONCURRENCY", "not-a-number")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, cfg.FetchConcurrency, 1)
}
