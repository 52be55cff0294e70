// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for the storage client.
package config

// Config is the top-level configuration structure for a storage client.
// Every tunable named in the object transfer engine's configuration surface
// has a home here; there is no process-wide registry of settings.
type Config struct {
	Endpoint EndpointConfig `toml:"endpoint"`
	Upload   UploadConfig   `toml:"upload"`
	Read     ReadConfig     `toml:"read"`
	Retry    RetryConfig    `toml:"retry"`
	Logging  LoggingConfig  `toml:"logging"`
	Network  NetworkConfig  `toml:"network"`
}

// EndpointConfig controls which JSON API host the client talks to.
type EndpointConfig struct {
	BaseURL string `toml:"base_url"`
	Project string `toml:"project"`
}

// UploadConfig controls the shape of the write_object paths: the threshold
// below which a single multipart request is used instead of a resumable
// session, and the backpressure buffer size for the buffered driver.
type UploadConfig struct {
	// ResumableThreshold is a human-readable size (e.g. "256KiB"). Payloads
	// whose size_hint lower bound is below this use the single-shot path.
	ResumableThreshold string `toml:"resumable_threshold"`

	// BufferSize bounds the unacknowledged bytes the buffered driver holds
	// in memory before it stalls the source for backpressure.
	BufferSize string `toml:"buffer_size"`
}

// ReadConfig controls the read_object path's resume behavior.
type ReadConfig struct {
	// ResumeAttempts is the maximum number of mid-stream resumes the read
	// engine will perform before surfacing ReadResumeExhausted.
	ResumeAttempts int `toml:"resume_attempts"`
}

// RetryConfig controls the retry loop's policy, backoff, and throttler.
type RetryConfig struct {
	MaxAttempts    int    `toml:"max_attempts"`
	TimeLimit      string `toml:"time_limit"`
	BaseBackoff    string `toml:"base_backoff"`
	MaxBackoff     string `toml:"max_backoff"`
	BackoffFactor  float64 `toml:"backoff_factor"`
	JitterFraction float64 `toml:"jitter_fraction"`

	// ThrottlerWindow is the number of recent attempts the adaptive
	// throttler tracks when deciding whether to admit a retry.
	ThrottlerWindow int `toml:"throttler_window"`
	// ThrottlerMinSuccessRate is the fraction of recent attempts that must
	// have succeeded for the throttler to keep admitting retries.
	ThrottlerMinSuccessRate float64 `toml:"throttler_min_success_rate"`
}

// LoggingConfig controls log output behavior.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// NetworkConfig controls HTTP client behavior.
type NetworkConfig struct {
	ConnectTimeout string `toml:"connect_timeout"`
	UserAgent      string `toml:"user_agent"`
}
