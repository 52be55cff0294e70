package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_Exhausted(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, TimeLimit: time.Minute}

	assert.False(t, p.exhausted(0, 0))
	assert.False(t, p.exhausted(2, 0))
	assert.True(t, p.exhausted(3, 0))
	assert.True(t, p.exhausted(0, 2*time.Minute))
}

func TestBackoffPolicy_NextDelay_CapsAtMax(t *testing.T) {
	b := BackoffPolicy{Base: time.Second, Max: 5 * time.Second, Factor: 10, JitterFraction: 0}

	d := b.nextDelay(5)
	assert.LessOrEqual(t, d, 5*time.Second+1) // jitter is 0, so exactly capped
}

func TestRetryThrottler_AdmitsUntilWindowFull(t *testing.T) {
	th := NewRetryThrottler(4, 0.5)

	assert.True(t, th.admit())
	th.record(false)
	th.record(false)
	th.record(false)
	assert.True(t, th.admit()) // window not yet full (3/4)

	th.record(false)
	assert.False(t, th.admit()) // 0/4 success rate, below 0.5
}

func TestRetryThrottler_NilIsAlwaysAdmitting(t *testing.T) {
	var th *RetryThrottler
	assert.True(t, th.admit())
	th.record(false) // must not panic
}

func TestClient_Do_RetriesTransientThenSucceeds(t *testing.T) {
	logger := newTestLogger()
	c := NewClient("https://example.invalid", http.DefaultClient, nil, logger)
	c.sleepFunc = func(ctx context.Context, d time.Duration) error { return nil }

	attempts := 0
	resp, err := c.Do(context.Background(), "test op", true, func(ctx context.Context) (*http.Response, error) {
		attempts++
		if attempts < 3 {
			return nil, &Error{Kind: KindHTTP, StatusCode: 503}
		}

		return &http.Response{StatusCode: 200}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 3, attempts)
}

func TestClient_Do_DoesNotRetryNonIdempotent(t *testing.T) {
	logger := newTestLogger()
	c := NewClient("https://example.invalid", http.DefaultClient, nil, logger)
	c.sleepFunc = func(ctx context.Context, d time.Duration) error { return nil }

	attempts := 0
	_, err := c.Do(context.Background(), "test op", false, func(ctx context.Context) (*http.Response, error) {
		attempts++
		return nil, &Error{Kind: KindHTTP, StatusCode: 503}
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestClient_Do_DoesNotRetryPermanentError(t *testing.T) {
	logger := newTestLogger()
	c := NewClient("https://example.invalid", http.DefaultClient, nil, logger)
	c.sleepFunc = func(ctx context.Context, d time.Duration) error { return nil }

	attempts := 0
	_, err := c.Do(context.Background(), "test op", true, func(ctx context.Context) (*http.Response, error) {
		attempts++
		return nil, &Error{Kind: KindBinding}
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(&Error{Kind: KindIo}))
	assert.True(t, isTransient(&Error{Kind: KindHTTP, StatusCode: 503}))
	assert.False(t, isTransient(&Error{Kind: KindHTTP, StatusCode: 404}))
	assert.False(t, isTransient(&Error{Kind: KindBinding}))
	assert.False(t, isTransient(&Error{Kind: KindChecksumMismatch}))
}

func TestDoHTTPExpect_ConvertsUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("not found"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client(), staticAuth(), newTestLogger())

	var auth authCache
	_, err := c.doHTTP(context.Background(), http.MethodGet, srv.URL, nil, nil, &auth)
	require.Error(t, err)

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 404, se.StatusCode)
}

func TestDoHTTPExpect_PassesThroughExpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPermanentRedirect)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client(), staticAuth(), newTestLogger())

	var auth authCache
	resp, err := c.doHTTPExpect(context.Background(), http.MethodGet, srv.URL, nil, nil, &auth, func(code int) bool {
		return code == http.StatusPermanentRedirect
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusPermanentRedirect, resp.StatusCode)
	resp.Body.Close()
}

func staticAuth() HeaderSource {
	return &staticHeaderSource{result: newHeaders(map[string]string{}, "etag")}
}

// TestDoHTTPExpect_SharedAuthCache_SurvivesNotModified reproduces the retry
// path: a HeaderSource returning HeaderResultNotModified on the second call
// against the same authCache must not leave the second request
// unauthenticated.
func TestDoHTTPExpect_SharedAuthCache_SurvivesNotModified(t *testing.T) {
	var gotAuth []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = append(gotAuth, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	src := headerSourceFunc(func(hint string) (HeaderResult, error) {
		if hint == "" {
			return newHeaders(map[string]string{"Authorization": "Bearer tok"}, "etag-1"), nil
		}

		return notModified(), nil
	})

	c := NewClient(srv.URL, srv.Client(), src, newTestLogger())

	var auth authCache

	resp1, err := c.doHTTP(context.Background(), http.MethodGet, srv.URL, nil, nil, &auth)
	require.NoError(t, err)
	resp1.Body.Close()

	resp2, err := c.doHTTP(context.Background(), http.MethodGet, srv.URL, nil, nil, &auth)
	require.NoError(t, err)
	resp2.Body.Close()

	require.Len(t, gotAuth, 2)
	assert.Equal(t, "Bearer tok", gotAuth[0])
	assert.Equal(t, "Bearer tok", gotAuth[1], "second request must still carry the cached auth header")
}
