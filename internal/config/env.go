package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig   = "GCS_GO_CONFIG"
	EnvEndpoint = "GCS_GO_ENDPOINT"
	EnvProject  = "GCS_GO_PROJECT"
)

// EnvOverrides holds values derived from environment variables.
// These are resolved by ReadEnvOverrides and made available to callers.
type EnvOverrides struct {
	ConfigPath string // GCS_GO_CONFIG: override config file path
	Endpoint   string // GCS_GO_ENDPOINT: override service endpoint
	Project    string // GCS_GO_PROJECT: default project for quota/billing headers
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
// This does not modify the Config; callers apply the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		Endpoint:   os.Getenv(EnvEndpoint),
		Project:    os.Getenv(EnvProject),
	}
}

// ResolveConfigPath determines the config file path using the three-layer
// priority: CLI flag > environment variable > platform default.
func ResolveConfigPath(env EnvOverrides, cliPath string) string {
	if cliPath != "" {
		return cliPath
	}

	if env.ConfigPath != "" {
		return env.ConfigPath
	}

	return DefaultConfigPath()
}
