package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, Validate(cfg))
}

func TestDefaultConfig_Values(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "https://storage.googleapis.com", cfg.Endpoint.BaseURL)
	assert.Equal(t, "256KiB", cfg.Upload.ResumableThreshold)
	assert.Equal(t, "16MiB", cfg.Upload.BufferSize)
	assert.Equal(t, 3, cfg.Read.ResumeAttempts)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, "info", cfg.Logging.LogLevel)
	assert.Equal(t, "auto", cfg.Logging.LogFormat)
	assert.Equal(t, "10s", cfg.Network.ConnectTimeout)
}

func TestDefaultConfig_ReturnsDistinctInstances(t *testing.T) {
	a := DefaultConfig()
	b := DefaultConfig()

	a.Endpoint.BaseURL = "https://mutated.example"
	assert.NotEqual(t, a.Endpoint.BaseURL, b.Endpoint.BaseURL)
}
