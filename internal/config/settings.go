package config

import "time"

// ResolvedRetry is the Duration-typed form of RetryConfig, computed once
// after validation so the retry loop never re-parses strings per attempt.
type ResolvedRetry struct {
	MaxAttempts             int
	TimeLimit               time.Duration
	BaseBackoff             time.Duration
	MaxBackoff              time.Duration
	BackoffFactor           float64
	JitterFraction          float64
	ThrottlerWindow         int
	ThrottlerMinSuccessRate float64
}

// Resolve parses the string-typed fields of RetryConfig into their Duration
// form. Callers must validate the Config first; Resolve assumes valid input
// and ignores parse errors (they would already have been reported).
func (r RetryConfig) Resolve() ResolvedRetry {
	timeLimit, _ := time.ParseDuration(r.TimeLimit)
	base, _ := time.ParseDuration(r.BaseBackoff)
	maxB, _ := time.ParseDuration(r.MaxBackoff)

	return ResolvedRetry{
		MaxAttempts:             r.MaxAttempts,
		TimeLimit:               timeLimit,
		BaseBackoff:             base,
		MaxBackoff:              maxB,
		BackoffFactor:           r.BackoffFactor,
		JitterFraction:          r.JitterFraction,
		ThrottlerWindow:         r.ThrottlerWindow,
		ThrottlerMinSuccessRate: r.ThrottlerMinSuccessRate,
	}
}

// ResolveUpload parses the UploadConfig's human-readable sizes into bytes.
func (u UploadConfig) ResolveUpload() (threshold, bufferSize int64, err error) {
	threshold, err = ParseSize(u.ResumableThreshold)
	if err != nil {
		return 0, 0, err
	}

	bufferSize, err = ParseSize(u.BufferSize)
	if err != nil {
		return 0, 0, err
	}

	return threshold, bufferSize, nil
}
