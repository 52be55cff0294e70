package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/gcs-go/internal/config"
	"github.com/tonimelisma/gcs-go/internal/credentials"
	"github.com/tonimelisma/gcs-go/internal/storage"
)

// version is set at build time via ldflags.
var version = "dev"

// bucketPrefix mirrors internal/storage's unexported constant: every
// ObjectRef.Bucket the core engine accepts carries this fixed prefix.
const bucketPrefix = "projects/_/buckets/"

// Global persistent flags, bound in newRootCmd.
var (
	flagConfigPath string
	flagEndpoint   string
	flagProject    string
	flagToken      string
	flagJSON       bool
	flagVerbose    bool
	flagDebug      bool
	flagQuiet      bool
)

// CLIContext bundles resolved config, logger, and a ready storage client.
// Created once in PersistentPreRunE; RunE handlers only ever read from it.
type CLIContext struct {
	Cfg    *config.Config
	Logger *slog.Logger
	Client *storage.Client
}

type cliContextKey struct{}

func cliContextFrom(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok {
		return nil
	}

	return cc
}

func mustCLIContext(ctx context.Context) *CLIContext {
	cc := cliContextFrom(ctx)
	if cc == nil {
		panic("BUG: CLIContext not found in context — PersistentPreRunE did not run")
	}

	return cc
}

// userAgentTransport sets a fixed User-Agent on every outbound request.
// http.Transport has no such hook itself, so this wraps it.
type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)

	return t.base.RoundTrip(req)
}

// transferHTTPClient builds an HTTP client with no overall request timeout
// for upload and download operations: large transfers on slow connections
// can run well past any fixed deadline, so these are bounded by context
// cancellation instead (graph.transferHTTPClient's rationale, see root.go
// in the teacher's CLI tree). The connect timeout from network config still
// bounds how long establishing the TCP connection itself may take.
func transferHTTPClient(netCfg config.NetworkConfig) *http.Client {
	connectTimeout, err := time.ParseDuration(netCfg.ConnectTimeout)
	if err != nil {
		connectTimeout = 10 * time.Second
	}

	dialer := &net.Dialer{Timeout: connectTimeout}
	transport := &http.Transport{DialContext: dialer.DialContext}

	return &http.Client{
		Timeout:   0,
		Transport: &userAgentTransport{base: transport, userAgent: netCfg.UserAgent},
	}
}

// newRootCmd builds and returns the fully-assembled root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "gcs-go",
		Short:   "Google Cloud Storage object transfer client",
		Long:    "A resumable-upload, streaming-download client for Google Cloud Storage objects.",
		Version: version,
		// Silence Cobra's default error/usage printing — we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadCLIContext(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagEndpoint, "endpoint", "", "override the JSON API base URL")
	cmd.PersistentFlags().StringVar(&flagProject, "project", "", "project for quota/billing headers")
	cmd.PersistentFlags().StringVar(&flagToken, "token", "", "bearer token (overrides GCS_GO_TOKEN)")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "show detailed output")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging (HTTP requests, retries)")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.MarkFlagsMutuallyExclusive("verbose", "debug", "quiet")

	cmd.AddCommand(newPutCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newResumeUploadCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// loadCLIContext resolves config from the three-layer override chain
// (defaults -> config file -> CLI flags/env), builds a logger and storage
// client, and stashes the result in the command's context.
func loadCLIContext(cmd *cobra.Command) error {
	bootstrapLogger := buildLogger(nil)

	env := config.ReadEnvOverrides()
	path := config.ResolveConfigPath(env, flagConfigPath)

	cfg, err := config.LoadOrDefault(path, bootstrapLogger)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if flagEndpoint != "" {
		cfg.Endpoint.BaseURL = flagEndpoint
	} else if env.Endpoint != "" {
		cfg.Endpoint.BaseURL = env.Endpoint
	}

	if flagProject != "" {
		cfg.Endpoint.Project = flagProject
	} else if env.Project != "" {
		cfg.Endpoint.Project = env.Project
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	logger := buildLogger(cfg)

	token := flagToken
	if token == "" {
		token = os.Getenv("GCS_GO_TOKEN")
	}

	if token == "" {
		return fmt.Errorf("no bearer token — pass --token or set GCS_GO_TOKEN")
	}

	auth := credentials.NewStatic(token)

	client := storage.NewClient(cfg.Endpoint.BaseURL, transferHTTPClient(cfg.Network), auth, logger)

	resolved := cfg.Retry.Resolve()
	client.
		WithRetryPolicy(storage.RetryPolicy{MaxAttempts: resolved.MaxAttempts, TimeLimit: resolved.TimeLimit}).
		WithBackoffPolicy(storage.BackoffPolicy{
			Base:           resolved.BaseBackoff,
			Max:            resolved.MaxBackoff,
			Factor:         resolved.BackoffFactor,
			JitterFraction: resolved.JitterFraction,
		}).
		WithRetryThrottler(storage.NewRetryThrottler(resolved.ThrottlerWindow, resolved.ThrottlerMinSuccessRate))

	cc := &CLIContext{Cfg: cfg, Logger: logger, Client: client}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cc))

	return nil
}

// buildLogger creates an slog.Logger configured by the resolved config and
// CLI flags. Pass nil for pre-config bootstrap (no config-file log level).
// Config-file log level is the baseline; --verbose, --debug, and --quiet
// override it because CLI flags always win (they're mutually exclusive).
func buildLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelWarn

	if cfg != nil {
		switch cfg.Logging.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "error":
			level = slog.LevelError
		}
	}

	if flagVerbose {
		level = slog.LevelInfo
	}

	if flagDebug {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg != nil && cfg.Logging.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}
