package config

import (
	"errors"
	"fmt"
	"time"
)

// Validation range constants.
const (
	minRetryAttempts = 0
	maxRetryAttempts = 50

	minThrottlerWindow = 1

	minQuantumMultiple = 262144 // 256 KiB, the mandatory upload chunk alignment
)

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so callers
// see a complete report and can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateEndpoint(&cfg.Endpoint)...)
	errs = append(errs, validateUpload(&cfg.Upload)...)
	errs = append(errs, validateRead(&cfg.Read)...)
	errs = append(errs, validateRetry(&cfg.Retry)...)

	return errors.Join(errs...)
}

func validateEndpoint(e *EndpointConfig) []error {
	if e.BaseURL == "" {
		return []error{errors.New("endpoint.base_url: must not be empty")}
	}

	return nil
}

func validateUpload(u *UploadConfig) []error {
	var errs []error

	threshold, err := ParseSize(u.ResumableThreshold)
	if err != nil {
		errs = append(errs, fmt.Errorf("upload.resumable_threshold: %w", err))
	} else if threshold < 0 {
		errs = append(errs, errors.New("upload.resumable_threshold: must be non-negative"))
	}

	buf, err := ParseSize(u.BufferSize)
	if err != nil {
		errs = append(errs, fmt.Errorf("upload.buffer_size: %w", err))
	} else if buf < minQuantumMultiple {
		errs = append(errs, fmt.Errorf(
			"upload.buffer_size: must hold at least one 256KiB quantum, got %d bytes", buf))
	}

	return errs
}

func validateRead(r *ReadConfig) []error {
	if r.ResumeAttempts < minRetryAttempts || r.ResumeAttempts > maxRetryAttempts {
		return []error{fmt.Errorf(
			"read.resume_attempts: must be between %d and %d, got %d",
			minRetryAttempts, maxRetryAttempts, r.ResumeAttempts)}
	}

	return nil
}

func validateRetry(r *RetryConfig) []error {
	var errs []error

	if r.MaxAttempts < minRetryAttempts || r.MaxAttempts > maxRetryAttempts {
		errs = append(errs, fmt.Errorf(
			"retry.max_attempts: must be between %d and %d, got %d",
			minRetryAttempts, maxRetryAttempts, r.MaxAttempts))
	}

	if _, err := time.ParseDuration(r.TimeLimit); err != nil {
		errs = append(errs, fmt.Errorf("retry.time_limit: %w", err))
	}

	if _, err := time.ParseDuration(r.BaseBackoff); err != nil {
		errs = append(errs, fmt.Errorf("retry.base_backoff: %w", err))
	}

	if _, err := time.ParseDuration(r.MaxBackoff); err != nil {
		errs = append(errs, fmt.Errorf("retry.max_backoff: %w", err))
	}

	if r.BackoffFactor < 1 {
		errs = append(errs, fmt.Errorf("retry.backoff_factor: must be >= 1, got %v", r.BackoffFactor))
	}

	if r.JitterFraction < 0 || r.JitterFraction > 1 {
		errs = append(errs, fmt.Errorf("retry.jitter_fraction: must be in [0,1], got %v", r.JitterFraction))
	}

	if r.ThrottlerWindow < minThrottlerWindow {
		errs = append(errs, fmt.Errorf("retry.throttler_window: must be >= %d, got %d",
			minThrottlerWindow, r.ThrottlerWindow))
	}

	if r.ThrottlerMinSuccessRate < 0 || r.ThrottlerMinSuccessRate > 1 {
		errs = append(errs, fmt.Errorf(
			"retry.throttler_min_success_rate: must be in [0,1], got %v", r.ThrottlerMinSuccessRate))
	}

	return errs
}
