package credentials

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/tonimelisma/gcs-go/internal/storage"
)

func TestStatic_Headers_NewThenNotModified(t *testing.T) {
	src := NewStatic("abc123")

	result, err := src.Headers("")
	require.NoError(t, err)
	assert.Equal(t, storage.HeaderResultNew, result.Kind)
	assert.Equal(t, "Bearer abc123", result.Headers["Authorization"])

	again, err := src.Headers(result.ETag)
	require.NoError(t, err)
	assert.Equal(t, storage.HeaderResultNotModified, again.Kind)
}

type fixedTokenSource struct {
	tok *oauth2.Token
	err error
}

func (f fixedTokenSource) Token() (*oauth2.Token, error) {
	return f.tok, f.err
}

func TestOAuth2_Headers_ReusesETagUntilRotation(t *testing.T) {
	src := NewOAuth2(fixedTokenSource{tok: &oauth2.Token{
		AccessToken: "token-one",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	}}, nil)

	first, err := src.Headers("")
	require.NoError(t, err)
	assert.Equal(t, storage.HeaderResultNew, first.Kind)
	assert.Equal(t, "Bearer token-one", first.Headers["Authorization"])

	second, err := src.Headers(first.ETag)
	require.NoError(t, err)
	assert.Equal(t, storage.HeaderResultNotModified, second.Kind)
}

func TestOAuth2_Headers_RotatesOnNewToken(t *testing.T) {
	rotating := &rotatingTokenSource{tokens: []string{"token-a", "token-b"}}
	src := NewOAuth2(rotating, nil)

	first, err := src.Headers("")
	require.NoError(t, err)
	assert.Equal(t, "Bearer token-a", first.Headers["Authorization"])

	second, err := src.Headers(first.ETag)
	require.NoError(t, err)
	assert.Equal(t, storage.HeaderResultNew, second.Kind)
	assert.Equal(t, "Bearer token-b", second.Headers["Authorization"])
}

func TestOAuth2_Headers_WrapsSourceError(t *testing.T) {
	src := NewOAuth2(fixedTokenSource{err: errors.New("refresh denied")}, nil)

	_, err := src.Headers("")
	require.Error(t, err)

	var se *storage.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, storage.KindAuth, se.Kind)
}

type rotatingTokenSource struct {
	tokens []string
	calls  int
}

func (r *rotatingTokenSource) Token() (*oauth2.Token, error) {
	tok := &oauth2.Token{AccessToken: r.tokens[r.calls], TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)}
	r.calls++

	return tok, nil
}
