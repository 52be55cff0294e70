package storage

import (
	"fmt"
	"strings"
)

// bucketPrefix is the fixed textual prefix every bucket identifier carries.
// The request builder strips it to form the service-path segment (spec §3).
const bucketPrefix = "projects/_/buckets/"

// ObjectRef identifies a single object: its bucket, its name, and an
// optional generation pinning a specific version.
type ObjectRef struct {
	Bucket     string
	Object     string
	Generation int64 // 0 means "unset" — live version
}

// bucketID strips the fixed "projects/_/buckets/" prefix from Bucket,
// returning a Binding error if the prefix is absent.
func (r ObjectRef) bucketID() (string, error) {
	if !strings.HasPrefix(r.Bucket, bucketPrefix) {
		return "", &Error{
			Kind:    KindBinding,
			Message: fmt.Sprintf("bucket %q is missing required prefix %q", r.Bucket, bucketPrefix),
		}
	}

	id := strings.TrimPrefix(r.Bucket, bucketPrefix)
	if id == "" {
		return "", &Error{Kind: KindBinding, Message: "bucket id is empty after stripping prefix"}
	}

	return id, nil
}

// encodeObjectName percent-encodes name per RFC 3986 unreserved-plus-"/.~_-"
// (spec §3): all other bytes, including '!', '*', '\'', '(', ')', are escaped.
func encodeObjectName(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	for i := 0; i < len(name); i++ {
		c := name[i]
		if isUnreservedOrSlash(c) {
			b.WriteByte(c)
			continue
		}

		fmt.Fprintf(&b, "%%%02X", c)
	}

	return b.String()
}

func isUnreservedOrSlash(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '/' || c == '.' || c == '~' || c == '_' || c == '-':
		return true
	default:
		return false
	}
}

// ChecksumValues holds CRC32C and/or MD5 digests, either precomputed by the
// caller (spec §4.2 "known" values) or produced by the checksum engine.
type ChecksumValues struct {
	CRC32C    *uint32
	CRC32CSet bool
	MD5       []byte // exactly 16 bytes when present
}

// Precondition carries the four optional generation/metageneration
// preconditions a write can be gated on (spec §3). A nil pointer means
// "not set"; zero has distinguished meaning for generation-match.
type Precondition struct {
	IfGenerationMatch        *int64
	IfGenerationNotMatch      *int64
	IfMetagenerationMatch     *int64
	IfMetagenerationNotMatch  *int64
}

// CustomerEncryption carries a customer-supplied 32-byte AES-256 key.
type CustomerEncryption struct {
	Key [32]byte
	Set bool
}

// WriteSpec is the mutable set of optional fields that control create
// semantics for an upload (spec §3). It is built with a fluent option API
// mirroring the original Rust client's per-field setters (SPEC_FULL.md §5).
type WriteSpec struct {
	Precondition Precondition

	PredefinedACL string
	ACL           []string
	StorageClass  string
	KMSKeyName    string
	CustomerKey   CustomerEncryption

	ContentType        string
	ContentEncoding    string
	ContentLanguage    string
	ContentDisposition string
	CacheControl       string

	Metadata       map[string]string
	CustomTime     string // RFC 3339, empty means unset
	EventBasedHold bool
	TemporaryHold  bool
	Retention      *RetentionConfig
	CustomContexts map[string]string

	Checksums ChecksumValues

	idempotent         bool
	idempotentSet      bool
	retryPolicy        *RetryPolicy
	backoffPolicy      *BackoffPolicy
	retryThrottler     *RetryThrottler
	resumableThreshold *int64
	resumableBufferSz  *int64
}

// RetentionConfig mirrors the service's object retention configuration.
type RetentionConfig struct {
	Mode        string
	RetainUntil string // RFC 3339
}

// WriteOption mutates a WriteSpec. Functional options mirror the original
// client's fluent `set_*`/`with_*` builder surface (SPEC_FULL.md §5).
type WriteOption func(*WriteSpec)

func WithIfGenerationMatch(v int64) WriteOption {
	return func(s *WriteSpec) { s.Precondition.IfGenerationMatch = &v }
}

func WithIfGenerationNotMatch(v int64) WriteOption {
	return func(s *WriteSpec) { s.Precondition.IfGenerationNotMatch = &v }
}

func WithIfMetagenerationMatch(v int64) WriteOption {
	return func(s *WriteSpec) { s.Precondition.IfMetagenerationMatch = &v }
}

func WithIfMetagenerationNotMatch(v int64) WriteOption {
	return func(s *WriteSpec) { s.Precondition.IfMetagenerationNotMatch = &v }
}

func WithPredefinedACL(v string) WriteOption { return func(s *WriteSpec) { s.PredefinedACL = v } }

func WithACL(v []string) WriteOption { return func(s *WriteSpec) { s.ACL = v } }

func WithStorageClass(v string) WriteOption { return func(s *WriteSpec) { s.StorageClass = v } }

func WithKMSKey(v string) WriteOption { return func(s *WriteSpec) { s.KMSKeyName = v } }

func WithCustomerKey(key [32]byte) WriteOption {
	return func(s *WriteSpec) { s.CustomerKey = CustomerEncryption{Key: key, Set: true} }
}

func WithContentType(v string) WriteOption { return func(s *WriteSpec) { s.ContentType = v } }

func WithContentEncoding(v string) WriteOption {
	return func(s *WriteSpec) { s.ContentEncoding = v }
}

func WithContentLanguage(v string) WriteOption {
	return func(s *WriteSpec) { s.ContentLanguage = v }
}

func WithContentDisposition(v string) WriteOption {
	return func(s *WriteSpec) { s.ContentDisposition = v }
}

func WithCacheControl(v string) WriteOption { return func(s *WriteSpec) { s.CacheControl = v } }

func WithMetadata(m map[string]string) WriteOption { return func(s *WriteSpec) { s.Metadata = m } }

func WithCustomTime(rfc3339 string) WriteOption {
	return func(s *WriteSpec) { s.CustomTime = rfc3339 }
}

func WithEventBasedHold(v bool) WriteOption { return func(s *WriteSpec) { s.EventBasedHold = v } }

func WithTemporaryHold(v bool) WriteOption { return func(s *WriteSpec) { s.TemporaryHold = v } }

func WithRetention(v RetentionConfig) WriteOption { return func(s *WriteSpec) { s.Retention = &v } }

func WithCustomContexts(m map[string]string) WriteOption {
	return func(s *WriteSpec) { s.CustomContexts = m }
}

// WithKnownCRC32C disables client-side CRC32C computation: the given value
// is sent as-is (spec §4.2).
func WithKnownCRC32C(v uint32) WriteOption {
	return func(s *WriteSpec) {
		s.Checksums.CRC32C = &v
		s.Checksums.CRC32CSet = true
	}
}

// WithKnownMD5 disables client-side MD5 computation: the given 16 raw bytes
// are sent as-is (spec §4.2).
func WithKnownMD5(v [16]byte) WriteOption {
	return func(s *WriteSpec) { s.Checksums.MD5 = v[:] }
}

// WithIdempotency opts a single-shot upload into idempotent retry (spec
// §4.6): without preconditions, a repeated create may produce additional
// object versions, so this defaults to false.
func WithIdempotency(v bool) WriteOption {
	return func(s *WriteSpec) { s.idempotent = v; s.idempotentSet = true }
}

func WithRetryPolicy(p RetryPolicy) WriteOption {
	return func(s *WriteSpec) { s.retryPolicy = &p }
}

func WithBackoffPolicy(p BackoffPolicy) WriteOption {
	return func(s *WriteSpec) { s.backoffPolicy = &p }
}

func WithRetryThrottler(t *RetryThrottler) WriteOption {
	return func(s *WriteSpec) { s.retryThrottler = t }
}

func WithResumableUploadThreshold(n int64) WriteOption {
	return func(s *WriteSpec) { s.resumableThreshold = &n }
}

func WithResumableUploadBufferSize(n int64) WriteOption {
	return func(s *WriteSpec) { s.resumableBufferSz = &n }
}

// NewWriteSpec builds a WriteSpec from the given options.
func NewWriteSpec(opts ...WriteOption) WriteSpec {
	var s WriteSpec
	for _, opt := range opts {
		opt(&s)
	}

	return s
}

// ReadRangeKind enumerates the four shapes a read range can take (spec §3).
type ReadRangeKind int

const (
	ReadAll ReadRangeKind = iota
	ReadOffset
	ReadTail
	ReadSegment
)

// ReadRange is one of: all, offset(N), tail(N), segment(offset, length).
type ReadRange struct {
	Kind   ReadRangeKind
	Offset int64
	Length int64
}

// AllRange reads the entire object.
func AllRange() ReadRange { return ReadRange{Kind: ReadAll} }

// OffsetRange reads from offset N to the end of the object.
func OffsetRange(n int64) ReadRange { return ReadRange{Kind: ReadOffset, Offset: n} }

// TailRange reads the last N bytes of the object.
func TailRange(n int64) ReadRange { return ReadRange{Kind: ReadTail, Length: n} }

// SegmentRange reads length bytes starting at offset.
func SegmentRange(offset, length int64) ReadRange {
	return ReadRange{Kind: ReadSegment, Offset: offset, Length: length}
}

// rangeHeader renders the Range header value for this ReadRange, matching
// the fixed table in spec §4.10 / §8. It performs no validation beyond
// rejecting an unknown Kind; impossible ranges are rejected beforehand by
// ValidateReadRange.
func (r ReadRange) rangeHeader() (string, error) {
	switch r.Kind {
	case ReadAll:
		return "", nil
	case ReadOffset:
		return fmt.Sprintf("bytes=%d-", r.Offset), nil
	case ReadTail:
		return fmt.Sprintf("bytes=-%d-", r.Length), nil
	case ReadSegment:
		return fmt.Sprintf("bytes=%d-%d", r.Offset, r.Offset+r.Length-1), nil
	default:
		return "", &Error{Kind: KindBinding, Message: "unknown ReadRange kind"}
	}
}

// ValidateReadRange rejects impossible ranges with a Binding error: a
// segment whose offset is negative or whose length is not positive, a
// tail with a negative length, and a negative offset range.
func ValidateReadRange(r ReadRange) error {
	if r.Kind == ReadTail && r.Length < 0 {
		return &Error{Kind: KindBinding, Message: "tail range length must be non-negative"}
	}

	if r.Kind == ReadSegment && r.Length <= 0 {
		return &Error{Kind: KindBinding, Message: "segment range length must be positive"}
	}

	if r.Kind == ReadSegment && r.Offset < 0 {
		return &Error{Kind: KindBinding, Message: "segment range offset must be non-negative"}
	}

	if r.Kind == ReadOffset && r.Offset < 0 {
		return &Error{Kind: KindBinding, Message: "offset range must be non-negative"}
	}

	return nil
}

// ReadRequest is an object reference plus an optional range (spec §3).
type ReadRequest struct {
	Object       ObjectRef
	Range        ReadRange
	Precondition Precondition

	resumePolicy *ReadResumePolicy
}

// WithReadResumePolicy overrides the engine's default read-resume policy
// for this request.
func (rr *ReadRequest) WithReadResumePolicy(p ReadResumePolicy) *ReadRequest {
	rr.resumePolicy = &p
	return rr
}

// ObjectHighlights is the projection of response headers/body fields an
// observable caller sees after a successful upload or read (spec §4.11).
// Fields are normalized from raw HTTP headers/JSON the same way the
// teacher's graph.Item normalizes raw Graph API fields.
type ObjectHighlights struct {
	Bucket             string
	Name               string
	Generation         int64
	Metageneration     int64
	Size               int64
	ContentType        string
	StorageClass       string
	StoredContentLength int64
	StoredEncoding     string
	CRC32C             uint32
	CRC32CSet          bool
	MD5                []byte
	ETag               string
}
