package config

// Default values for configuration options. These represent the "layer 0"
// of the override chain (defaults -> config file -> environment) and are
// chosen to match the service's documented defaults.
const (
	defaultBaseURL       = "https://storage.googleapis.com"
	defaultUploadBaseURL = "https://storage.googleapis.com/upload/storage/v1"

	defaultResumableThreshold = "256KiB" // one quantum
	defaultBufferSize         = "16MiB"

	defaultReadResumeAttempts = 3

	defaultMaxAttempts         = 5
	defaultTimeLimit           = "2m"
	defaultBaseBackoff         = "1s"
	defaultMaxBackoff          = "60s"
	defaultBackoffFactor       = 2.0
	defaultJitterFraction      = 0.25
	defaultThrottlerWindow     = 20
	defaultThrottlerMinSuccess = 0.2

	defaultLogLevel  = "info"
	defaultLogFormat = "auto"

	defaultConnectTimeout = "10s"
	defaultUserAgent      = "gcs-go/0.1"
)

// DefaultConfig returns a Config populated with all default values. This is
// used both as the starting point for TOML decoding (so unset fields retain
// defaults) and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Endpoint: EndpointConfig{
			BaseURL: defaultBaseURL,
		},
		Upload: UploadConfig{
			ResumableThreshold: defaultResumableThreshold,
			BufferSize:         defaultBufferSize,
		},
		Read: ReadConfig{
			ResumeAttempts: defaultReadResumeAttempts,
		},
		Retry: RetryConfig{
			MaxAttempts:             defaultMaxAttempts,
			TimeLimit:               defaultTimeLimit,
			BaseBackoff:             defaultBaseBackoff,
			MaxBackoff:              defaultMaxBackoff,
			BackoffFactor:           defaultBackoffFactor,
			JitterFraction:          defaultJitterFraction,
			ThrottlerWindow:         defaultThrottlerWindow,
			ThrottlerMinSuccessRate: defaultThrottlerMinSuccess,
		},
		Logging: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
		Network: NetworkConfig{
			ConnectTimeout: defaultConnectTimeout,
			UserAgent:      defaultUserAgent,
		},
	}
}
