package storage

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFramer_ExactMultipleOfQuantum(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), UploadQuantum*2)
	source := NewReaderSource(bytes.NewReader(payload), 4096, int64(len(payload)))
	framer := NewFramer(source)

	chunk1, err := framer.NextChunk(UploadQuantum)
	require.NoError(t, err)
	assert.Len(t, chunk1.Data, UploadQuantum)
	assert.False(t, chunk1.Final)

	chunk2, err := framer.NextChunk(UploadQuantum)
	require.NoError(t, err)
	assert.Len(t, chunk2.Data, UploadQuantum)
	assert.True(t, chunk2.Final)
}

func TestFramer_RemainderCarriesAcrossCalls(t *testing.T) {
	// A single buffer bigger than one quantum straddles the boundary: the
	// framer must split it and carry the remainder into the next call.
	payload := bytes.Repeat([]byte("y"), UploadQuantum+100)
	source := &singleBufferSource{buf: payload}
	framer := NewFramer(source)

	chunk1, err := framer.NextChunk(UploadQuantum)
	require.NoError(t, err)
	assert.Len(t, chunk1.Data, UploadQuantum)

	chunk2, err := framer.NextChunk(UploadQuantum)
	require.NoError(t, err)
	assert.Len(t, chunk2.Data, 100)
	assert.True(t, chunk2.Final)
}

func TestFramer_ShortFinalChunk(t *testing.T) {
	payload := []byte("short payload")
	source := NewReaderSource(bytes.NewReader(payload), 4096, int64(len(payload)))
	framer := NewFramer(source)

	chunk, err := framer.NextChunk(UploadQuantum)
	require.NoError(t, err)
	assert.Equal(t, payload, chunk.Data)
	assert.True(t, chunk.Final)
	assert.LessOrEqual(t, len(chunk.Data), UploadQuantum)
}

func TestFramer_EmptySource(t *testing.T) {
	source := NewReaderSource(bytes.NewReader(nil), 4096, 0)
	framer := NewFramer(source)

	chunk, err := framer.NextChunk(UploadQuantum)
	require.NoError(t, err)
	assert.Empty(t, chunk.Data)
	assert.True(t, chunk.Final)
}

// singleBufferSource yields buf in one call, then io.EOF — used to force
// the framer's split-and-carry-remainder path deterministically.
type singleBufferSource struct {
	buf     []byte
	yielded bool
}

func (s *singleBufferSource) Next() ([]byte, error) {
	if s.yielded {
		return nil, io.EOF
	}

	s.yielded = true

	return s.buf, nil
}

func (s *singleBufferSource) SizeHint() SizeHint {
	n := int64(len(s.buf))
	return SizeHint{Lower: n, Upper: &n}
}
