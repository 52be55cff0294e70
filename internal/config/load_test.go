package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ValidFullConfig(t *testing.T) {
	path := writeTestConfig(t, `
[endpoint]
base_url = "https://storage.googleapis.com"
project = "my-project"

[upload]
resumable_threshold = "1MiB"
buffer_size = "32MiB"

[read]
resume_attempts = 5

[retry]
max_attempts = 8
time_limit = "3m"
base_backoff = "500ms"
max_backoff = "30s"
backoff_factor = 1.5
jitter_fraction = 0.1
throttler_window = 10
throttler_min_success_rate = 0.3

[logging]
log_level = "debug"
log_format = "json"

[network]
connect_timeout = "5s"
user_agent = "gcs-go-test/1.0"
`)

	cfg, err := Load(path, testLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "my-project", cfg.Endpoint.Project)
	assert.Equal(t, "1MiB", cfg.Upload.ResumableThreshold)
	assert.Equal(t, 5, cfg.Read.ResumeAttempts)
	assert.Equal(t, 8, cfg.Retry.MaxAttempts)
	assert.Equal(t, "debug", cfg.Logging.LogLevel)
	assert.Equal(t, "gcs-go-test/1.0", cfg.Network.UserAgent)
}

func TestLoad_MissingFieldsKeepDefaults(t *testing.T) {
	path := writeTestConfig(t, `
[endpoint]
project = "my-project"
`)

	cfg, err := Load(path, testLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "https://storage.googleapis.com", cfg.Endpoint.BaseURL)
	assert.Equal(t, "my-project", cfg.Endpoint.Project)
	assert.Equal(t, defaultMaxAttempts, cfg.Retry.MaxAttempts)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.toml", testLogger(t))
	require.Error(t, err)
}

func TestLoad_MalformedTOML(t *testing.T) {
	path := writeTestConfig(t, `this is not = valid [[[ toml`)
	_, err := Load(path, testLogger(t))
	require.Error(t, err)
}

func TestLoad_ValidationFailurePropagates(t *testing.T) {
	path := writeTestConfig(t, `
[endpoint]
base_url = ""
`)

	_, err := Load(path, testLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

func TestLoad_NilLoggerUsesDefault(t *testing.T) {
	path := writeTestConfig(t, `[endpoint]
project = "p"
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "p", cfg.Endpoint.Project)
}

func TestLoadOrDefault_FileMissing(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadOrDefault(dir+"/does-not-exist.toml", testLogger(t))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadOrDefault_FilePresent(t *testing.T) {
	path := writeTestConfig(t, `
[logging]
log_level = "warn"
`)

	cfg, err := LoadOrDefault(path, testLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.LogLevel)
}
