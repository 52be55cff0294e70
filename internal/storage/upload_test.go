package storage

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteObject_SingleShot(t *testing.T) {
	var gotContentType string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "multipart", r.URL.Query().Get("uploadType"))
		gotContentType = r.Header.Get("Content-Type")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"bucket":"bkt","name":"small.txt","generation":"1","size":"5"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client(), staticAuth(), newTestLogger())
	c.uploadBaseURL = srv.URL

	ref := ObjectRef{Bucket: "projects/_/buckets/bkt", Object: "small.txt"}
	source := BytesSource([]byte("hello"), 4096)

	highlights, err := c.WriteObject(t.Context(), ref, source, NewWriteSpec(WithContentType("text/plain")))
	require.NoError(t, err)
	assert.Equal(t, "bkt", highlights.Bucket)
	assert.Equal(t, int64(1), highlights.Generation)
	assert.Contains(t, gotContentType, "multipart/related")
}

func TestWriteObject_ResumableHappyPath(t *testing.T) {
	payload := make([]byte, UploadQuantum+100)
	for i := range payload {
		payload[i] = byte(i)
	}

	var chunkCount int32

	mux := http.NewServeMux()
	mux.HandleFunc("/upload/storage/v1/b/bkt/o", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "resumable", r.URL.Query().Get("uploadType"))
		w.Header().Set("Location", "/session/abc")
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/session/abc", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&chunkCount, 1)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		if n == 1 {
			require.Len(t, body, UploadQuantum)
			w.Header().Set("Range", "bytes=0-"+strconv.Itoa(UploadQuantum-1))
			w.WriteHeader(308)

			return
		}

		require.Len(t, body, 100)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"bucket":"bkt","name":"big.bin","generation":"2","size":"262244"}`))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client(), staticAuth(), newTestLogger())
	c.uploadBaseURL = srv.URL

	ref := ObjectRef{Bucket: "projects/_/buckets/bkt", Object: "big.bin"}
	source := BytesSource(payload, 4096)

	highlights, err := c.WriteObject(t.Context(), ref, source, NewWriteSpec())
	require.NoError(t, err)
	assert.Equal(t, int64(2), highlights.Generation)
	assert.Equal(t, int32(2), atomic.LoadInt32(&chunkCount))
}

func TestWriteObject_ResumableShortPersistRewinds(t *testing.T) {
	payload := make([]byte, UploadQuantum+100)

	var chunkCount int32

	mux := http.NewServeMux()
	mux.HandleFunc("/upload/storage/v1/b/bkt/o", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/session/xyz")
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/session/xyz", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&chunkCount, 1)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		switch n {
		case 1:
			// Service claims it only persisted half the first chunk: the
			// driver must rewind the source and resend from that offset.
			require.Len(t, body, UploadQuantum)
			w.Header().Set("Range", "bytes=0-"+strconv.Itoa(UploadQuantum/2-1))
			w.WriteHeader(308)
		default:
			require.Len(t, body, len(payload)-UploadQuantum/2)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"bucket":"bkt","name":"big.bin","generation":"3","size":"262244"}`))
		}
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client(), staticAuth(), newTestLogger())
	c.uploadBaseURL = srv.URL

	ref := ObjectRef{Bucket: "projects/_/buckets/bkt", Object: "big.bin"}
	source := BytesSource(payload, 4096)

	highlights, err := c.WriteObject(t.Context(), ref, source, NewWriteSpec())
	require.NoError(t, err)
	assert.Equal(t, int64(3), highlights.Generation)
	assert.Equal(t, int32(2), atomic.LoadInt32(&chunkCount))
}

func TestQuerySessionOffset_ParsesRangeFrom308(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bytes */1000", r.Header.Get("Content-Range"))
		w.Header().Set("Range", "bytes=0-511")
		w.WriteHeader(308)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client(), staticAuth(), newTestLogger())

	offset, err := c.QuerySessionOffset(t.Context(), srv.URL+"/session/probe", 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(512), offset)
}

func TestQuerySessionOffset_AlreadyComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"bucket":"bkt","name":"done.bin","generation":"9","size":"1000"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client(), staticAuth(), newTestLogger())

	size, err := c.QuerySessionOffset(t.Context(), srv.URL+"/session/probe", 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), size)
}

func TestResumeWriteObject_ContinuesFromPersistedOffset(t *testing.T) {
	payload := make([]byte, UploadQuantum+50)
	for i := range payload {
		payload[i] = byte(i)
	}

	var calls int32

	mux := http.NewServeMux()
	mux.HandleFunc("/session/existing", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)

		if n == 1 {
			require.Equal(t, "bytes */"+strconv.Itoa(len(payload)), r.Header.Get("Content-Range"))
			w.Header().Set("Range", "bytes=0-"+strconv.Itoa(UploadQuantum-1))
			w.WriteHeader(308)

			return
		}

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.Len(t, body, 50)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"bucket":"bkt","name":"big.bin","generation":"7","size":"262194"}`))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client(), staticAuth(), newTestLogger())

	source := BytesSource(payload, 4096)

	highlights, err := c.ResumeWriteObject(t.Context(), srv.URL+"/session/existing", source, int64(len(payload)))
	require.NoError(t, err)
	assert.Equal(t, int64(7), highlights.Generation)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
