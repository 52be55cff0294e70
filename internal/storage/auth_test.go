package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticHeaderSource struct {
	result HeaderResult
	err    error
	calls  int
}

func (s *staticHeaderSource) Headers(hint string) (HeaderResult, error) {
	s.calls++
	return s.result, s.err
}

func TestInjectAuthHeaders_New(t *testing.T) {
	src := &staticHeaderSource{result: newHeaders(map[string]string{"Authorization": "Bearer abc"}, "etag-1")}

	var cache authCache

	received := map[string]string{}
	err := injectAuthHeaders(src, &cache, func(k, v string) { received[k] = v })

	require.NoError(t, err)
	assert.Equal(t, "etag-1", cache.etag)
	assert.Equal(t, "Bearer abc", received["Authorization"])
}

func TestInjectAuthHeaders_NotModified_ReappliesCachedHeaders(t *testing.T) {
	src := &staticHeaderSource{result: notModified()}
	cache := authCache{etag: "etag-1", headers: map[string]string{"Authorization": "Bearer abc"}}

	received := map[string]string{}
	err := injectAuthHeaders(src, &cache, func(k, v string) { received[k] = v })

	require.NoError(t, err)
	assert.Equal(t, "etag-1", cache.etag)
	// A NotModified answer must still set the Authorization header on the
	// freshly built request — there's no prior request to carry it over.
	assert.Equal(t, "Bearer abc", received["Authorization"])
}

func TestInjectAuthHeaders_SourceError(t *testing.T) {
	srcErr := errors.New("token refresh failed")
	src := &staticHeaderSource{err: srcErr}

	var cache authCache

	err := injectAuthHeaders(src, &cache, func(k, v string) {})
	require.ErrorIs(t, err, srcErr)
}

// TestInjectAuthHeaders_RetrySequence_StaysAuthenticated reproduces the
// retry-loop scenario: attempt 1 gets a fresh header map, attempt 2's
// source answers NotModified against the cached etag. Attempt 2's request
// must still carry the Authorization header from attempt 1.
func TestInjectAuthHeaders_RetrySequence_StaysAuthenticated(t *testing.T) {
	calls := 0
	src := headerSourceFunc(func(hint string) (HeaderResult, error) {
		calls++
		if hint == "" {
			return newHeaders(map[string]string{"Authorization": "Bearer abc"}, "etag-1"), nil
		}

		require.Equal(t, "etag-1", hint)
		return notModified(), nil
	})

	var cache authCache

	first := map[string]string{}
	require.NoError(t, injectAuthHeaders(src, &cache, func(k, v string) { first[k] = v }))
	assert.Equal(t, "Bearer abc", first["Authorization"])

	second := map[string]string{}
	require.NoError(t, injectAuthHeaders(src, &cache, func(k, v string) { second[k] = v }))
	assert.Equal(t, "Bearer abc", second["Authorization"], "retried attempt must still carry the auth header")

	assert.Equal(t, 2, calls)
}

type headerSourceFunc func(hint string) (HeaderResult, error)

func (f headerSourceFunc) Headers(hint string) (HeaderResult, error) { return f(hint) }
