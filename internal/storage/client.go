package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// DefaultBaseURL is the production Google Cloud Storage JSON API endpoint.
const DefaultBaseURL = "https://storage.googleapis.com"

// DefaultUploadBaseURL is the production upload endpoint for resumable and
// multipart uploads.
const DefaultUploadBaseURL = "https://storage.googleapis.com"

// apiClientTag is the fixed x-goog-api-client metrics header value (spec
// §6): it tags the credential type, auth-request type, and client version.
const apiClientTag = "cred-type/adc auth-request-type/access-token gl-go/1.24 gdcl/0.1"

// RetryPolicy bounds how many attempts, and for how long, the retry loop
// will pursue a transient failure (spec §4.6).
type RetryPolicy struct {
	MaxAttempts int
	TimeLimit   time.Duration
}

// exhausted reports whether the policy forbids another attempt given the
// attempt count so far and the elapsed time since the operation began.
func (p RetryPolicy) exhausted(attempt int, elapsed time.Duration) bool {
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		return true
	}

	if p.TimeLimit > 0 && elapsed >= p.TimeLimit {
		return true
	}

	return false
}

// BackoffPolicy computes the delay before retry attempt N (spec §4.6).
type BackoffPolicy struct {
	Base           time.Duration
	Max            time.Duration
	Factor         float64
	JitterFraction float64
}

// nextDelay returns the backoff duration for the given zero-indexed
// attempt, with symmetric jitter applied (teacher's calcBackoff, see
// graph/client.go).
func (b BackoffPolicy) nextDelay(attempt int) time.Duration {
	delay := float64(b.Base) * math.Pow(b.Factor, float64(attempt))
	if maxF := float64(b.Max); delay > maxF {
		delay = maxF
	}

	jitter := delay * b.JitterFraction * (rand.Float64()*2 - 1)
	delay += jitter

	if delay < 0 {
		delay = 0
	}

	return time.Duration(delay)
}

// RetryThrottler implements adaptive admission control (spec §4.6): a
// sliding window of recent outcomes gates whether a new attempt proceeds,
// so a client already failing most requests backs off before adding load.
type RetryThrottler struct {
	window         int
	minSuccessRate float64
	outcomes       []bool // ring buffer of recent successes
	pos            int
	filled         int
}

// NewRetryThrottler builds a throttler admitting requests as long as the
// success rate over the last window attempts stays at or above
// minSuccessRate. A window that hasn't filled yet always admits.
func NewRetryThrottler(window int, minSuccessRate float64) *RetryThrottler {
	if window < 1 {
		window = 1
	}

	return &RetryThrottler{
		window:         window,
		minSuccessRate: minSuccessRate,
		outcomes:       make([]bool, window),
	}
}

// admit reports whether the throttler allows the next attempt.
func (t *RetryThrottler) admit() bool {
	if t == nil || t.filled < t.window {
		return true
	}

	successes := 0
	for _, ok := range t.outcomes {
		if ok {
			successes++
		}
	}

	return float64(successes)/float64(t.window) >= t.minSuccessRate
}

// record feeds the outcome of the most recent attempt into the window.
func (t *RetryThrottler) record(success bool) {
	if t == nil {
		return
	}

	t.outcomes[t.pos] = success
	t.pos = (t.pos + 1) % t.window

	if t.filled < t.window {
		t.filled++
	}
}

// Client is an HTTP client for the Google Cloud Storage JSON/upload API.
// It handles request construction, auth header injection, policy-driven
// retry with backoff and throttling, and error classification.
type Client struct {
	baseURL       string
	uploadBaseURL string
	httpClient    *http.Client
	auth          HeaderSource
	logger        *slog.Logger

	retryPolicy RetryPolicy
	backoff     BackoffPolicy
	throttler   *RetryThrottler

	// sleepFunc waits between retries. Tests override it to avoid delay.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewClient creates a GCS client.
func NewClient(baseURL string, httpClient *http.Client, auth HeaderSource, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		baseURL:       baseURL,
		uploadBaseURL: DefaultUploadBaseURL,
		httpClient:    httpClient,
		auth:          auth,
		logger:        logger,
		retryPolicy:   RetryPolicy{MaxAttempts: 5, TimeLimit: 2 * time.Minute},
		backoff:       BackoffPolicy{Base: time.Second, Max: 60 * time.Second, Factor: 2.0, JitterFraction: 0.25},
		sleepFunc:     timeSleep,
	}
}

// WithRetryPolicy overrides the client's default retry policy.
func (c *Client) WithRetryPolicy(p RetryPolicy) *Client { c.retryPolicy = p; return c }

// WithBackoffPolicy overrides the client's default backoff policy.
func (c *Client) WithBackoffPolicy(p BackoffPolicy) *Client { c.backoff = p; return c }

// WithRetryThrottler attaches adaptive admission control.
func (c *Client) WithRetryThrottler(t *RetryThrottler) *Client { c.throttler = t; return c }

// attemptFunc performs one attempt against a fresh request and returns its
// response, or an error classified via the *Error/Kind vocabulary.
type attemptFunc func(ctx context.Context) (*http.Response, error)

// Do runs attempt through the policy-driven retry loop (spec §4.6):
// throttle admission check, single attempt, success/failure feedback to
// the throttler, transient-and-idempotent retry with backoff.
func (c *Client) Do(ctx context.Context, opDesc string, idempotent bool, attempt attemptFunc) (*http.Response, error) {
	correlationID := uuid.NewString()
	start := time.Now()

	for n := 0; ; n++ {
		if !c.throttler.admit() {
			return nil, &Error{Kind: KindHTTP, Message: fmt.Sprintf("%s: throttled by retry throttler", opDesc)}
		}

		resp, err := attempt(ctx)
		if err == nil {
			c.throttler.record(true)
			return resp, nil
		}

		c.throttler.record(false)

		if ctx.Err() != nil {
			return nil, fmt.Errorf("storage: %s canceled: %w", opDesc, ctx.Err())
		}

		if !idempotent || !isTransient(err) {
			return nil, err
		}

		if c.retryPolicy.exhausted(n+1, time.Since(start)) {
			return nil, fmt.Errorf("storage: %s failed after %d attempts: %w", opDesc, n+1, err)
		}

		delay := c.backoff.nextDelay(n)
		c.logger.Warn("retrying after transient error",
			slog.String("op", opDesc),
			slog.String("correlation_id", correlationID),
			slog.Int("attempt", n+1),
			slog.Duration("backoff", delay),
			slog.String("error", err.Error()),
		)

		if sleepErr := c.sleepFunc(ctx, delay); sleepErr != nil {
			return nil, fmt.Errorf("storage: %s canceled: %w", opDesc, sleepErr)
		}
	}
}

// isTransient reports whether err should be retried, per the classifier
// (spec §4.11): KindIo and KindHTTP (within the retryable status set) are
// transient, and so is KindDeser when it wraps an underlying cause;
// everything else (Binding, Deser without a cause, Ser, Auth,
// ChecksumMismatch, LongRead, ShortRead, ReadResumeExhausted) is not.
func isTransient(err error) bool {
	var storageErr *Error
	if !asStorageError(err, &storageErr) {
		return true // unclassified transport errors default to transient
	}

	switch storageErr.Kind {
	case KindIo:
		return true
	case KindHTTP:
		return isRetryableStatus(storageErr.StatusCode)
	case KindDeser:
		return storageErr.Err != nil // mid-stream interruption, not corrupt bytes
	default:
		return false
	}
}

func asStorageError(err error, target **Error) bool {
	for err != nil {
		if se, ok := err.(*Error); ok {
			*target = se
			return true
		}

		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}

		err = unwrapper.Unwrap()
	}

	return false
}

// doHTTP executes a single authenticated HTTP request attempt: it builds
// the request, injects auth headers last (spec §4.4), issues it, and maps
// any status outside 2xx through the error classifier. It does not retry —
// callers wrap it with Do.
func (c *Client) doHTTP(
	ctx context.Context, method, url string, body io.Reader, extraHeaders map[string]string, auth *authCache,
) (*http.Response, error) {
	return c.doHTTPExpect(ctx, method, url, body, extraHeaders, auth, is2xx)
}

func is2xx(code int) bool { return code >= http.StatusOK && code < http.StatusMultipleChoices }

// doHTTPExpect is doHTTP generalized with a caller-supplied predicate for
// which status codes the caller will handle itself (left un-drained, body
// open) versus which should be converted into a classified *Error (body
// read and closed). The resumable chunk PUT path uses this to let 308
// "resume incomplete" responses pass through for its own state-machine
// handling instead of being treated as a terminal error.
func (c *Client) doHTTPExpect(
	ctx context.Context, method, url string, body io.Reader, extraHeaders map[string]string, auth *authCache,
	isExpected func(code int) bool,
) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, &Error{Kind: KindIo, Message: "creating request", Err: err}
	}

	req.Header.Set("x-goog-api-client", apiClientTag)

	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	if err := injectAuthHeaders(c.auth, auth, req.Header.Set); err != nil {
		return nil, err
	}

	c.logger.Debug("sending request", slog.String("method", method), slog.String("path", req.URL.Path))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindIo, Message: "http round trip", Err: err}
	}

	if isExpected(resp.StatusCode) {
		return resp, nil
	}

	errBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()

	if readErr != nil {
		errBody = []byte("(failed to read response body)")
	}

	return nil, newHTTPError(resp.StatusCode, resp.Header.Get("x-guploader-request-id"), string(errBody))
}

// rewindBody seeks body back to offset 0 if it implements io.Seeker, so a
// retried attempt resends the full payload (teacher's rewindBody, see
// graph/client.go).
func rewindBody(body io.Reader) error {
	if body == nil {
		return nil
	}

	if seeker, ok := body.(io.Seeker); ok {
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			return &Error{Kind: KindIo, Message: "rewinding request body for retry", Err: err}
		}
	}

	return nil
}

// timeSleep waits for the given duration or until the context is canceled.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
