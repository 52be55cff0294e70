package storage

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// objectMetadataJSON mirrors the service's v1 object resource, camelCase
// fields, for the spec JSON part of multipart/resumable-init requests
// (spec §6 body formats).
type objectMetadataJSON struct {
	Name               string            `json:"name"`
	ContentType        string            `json:"contentType,omitempty"`
	ContentEncoding    string            `json:"contentEncoding,omitempty"`
	ContentLanguage    string            `json:"contentLanguage,omitempty"`
	ContentDisposition string            `json:"contentDisposition,omitempty"`
	CacheControl       string            `json:"cacheControl,omitempty"`
	StorageClass       string            `json:"storageClass,omitempty"`
	KMSKeyName         string            `json:"kmsKeyName,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	CustomTime         string            `json:"customTime,omitempty"`
	EventBasedHold     bool              `json:"eventBasedHold,omitempty"`
	TemporaryHold      bool              `json:"temporaryHold,omitempty"`
	Retention          *retentionJSON    `json:"retention,omitempty"`
	Contexts           *contextsJSON     `json:"contexts,omitempty"`
	CRC32C             string            `json:"crc32c,omitempty"`
	MD5Hash            string            `json:"md5Hash,omitempty"`
	ACL                []aclEntryJSON    `json:"acl,omitempty"`
}

type retentionJSON struct {
	Mode        string `json:"mode"`
	RetainUntil string `json:"retainUntilTime"`
}

type contextsJSON struct {
	Custom map[string]customContextJSON `json:"custom,omitempty"`
}

type customContextJSON struct {
	Value string `json:"value"`
}

type aclEntryJSON struct {
	Entity string `json:"entity"`
	Role   string `json:"role"`
}

// buildObjectMetadata projects a WriteSpec + object name into the wire
// JSON body (spec §6: "checksums are sent as crc32c (base64 big-endian 4
// bytes) and md5Hash (base64 of raw 16 bytes)").
func buildObjectMetadata(objectName string, spec WriteSpec) objectMetadataJSON {
	meta := objectMetadataJSON{
		Name:               objectName,
		ContentType:        spec.ContentType,
		ContentEncoding:    spec.ContentEncoding,
		ContentLanguage:    spec.ContentLanguage,
		ContentDisposition: spec.ContentDisposition,
		CacheControl:       spec.CacheControl,
		StorageClass:       spec.StorageClass,
		KMSKeyName:         spec.KMSKeyName,
		Metadata:           spec.Metadata,
		CustomTime:         spec.CustomTime,
		EventBasedHold:     spec.EventBasedHold,
		TemporaryHold:      spec.TemporaryHold,
	}

	if spec.Retention != nil {
		meta.Retention = &retentionJSON{Mode: spec.Retention.Mode, RetainUntil: spec.Retention.RetainUntil}
	}

	if len(spec.CustomContexts) > 0 {
		custom := make(map[string]customContextJSON, len(spec.CustomContexts))
		for k, v := range spec.CustomContexts {
			custom[k] = customContextJSON{Value: v}
		}

		meta.Contexts = &contextsJSON{Custom: custom}
	}

	for _, entity := range spec.ACL {
		meta.ACL = append(meta.ACL, aclEntryJSON{Entity: entity, Role: "READER"})
	}

	if spec.Checksums.CRC32CSet {
		meta.CRC32C = crc32cBase64(*spec.Checksums.CRC32C)
	}

	if len(spec.Checksums.MD5) == 16 {
		meta.MD5Hash = md5Base64(spec.Checksums.MD5)
	}

	return meta
}

func marshalObjectMetadata(meta objectMetadataJSON) ([]byte, error) {
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, &Error{Kind: KindSer, Message: "encoding object metadata", Err: err}
	}

	return b, nil
}

// preconditionQuery appends the four precondition query parameters with
// their fixed canonical names (spec §4.4).
func preconditionQuery(q url.Values, p Precondition) {
	if p.IfGenerationMatch != nil {
		q.Set("ifGenerationMatch", strconv.FormatInt(*p.IfGenerationMatch, 10))
	}

	if p.IfGenerationNotMatch != nil {
		q.Set("ifGenerationNotMatch", strconv.FormatInt(*p.IfGenerationNotMatch, 10))
	}

	if p.IfMetagenerationMatch != nil {
		q.Set("ifMetagenerationMatch", strconv.FormatInt(*p.IfMetagenerationMatch, 10))
	}

	if p.IfMetagenerationNotMatch != nil {
		q.Set("ifMetagenerationNotMatch", strconv.FormatInt(*p.IfMetagenerationNotMatch, 10))
	}
}

// customerKeyHeaders returns the CSEK header triad (spec §4.4, §6):
// algorithm name, base64 raw key, base64 SHA-256 of the raw key.
func customerKeyHeaders(enc CustomerEncryption) map[string]string {
	if !enc.Set {
		return nil
	}

	sum := sha256.Sum256(enc.Key[:])

	return map[string]string{
		"x-goog-encryption-algorithm":  "AES256",
		"x-goog-encryption-key":        base64.StdEncoding.EncodeToString(enc.Key[:]),
		"x-goog-encryption-key-sha256": base64.StdEncoding.EncodeToString(sum[:]),
	}
}

// resumableInitURL builds the start-resumable-upload URL (spec §6).
func resumableInitURL(base string, ref ObjectRef, spec WriteSpec) (string, error) {
	bucket, err := ref.bucketID()
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("uploadType", "resumable")
	q.Set("name", ref.Object)
	preconditionQuery(q, spec.Precondition)

	if spec.PredefinedACL != "" {
		q.Set("predefinedAcl", spec.PredefinedACL)
	}

	return fmt.Sprintf("%s/upload/storage/v1/b/%s/o?%s", base, url.PathEscape(bucket), q.Encode()), nil
}

// multipartInitURL builds the single-shot multipart upload URL (spec §6,
// §4.8).
func multipartInitURL(base string, ref ObjectRef, spec WriteSpec) (string, error) {
	bucket, err := ref.bucketID()
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("uploadType", "multipart")
	preconditionQuery(q, spec.Precondition)

	if spec.PredefinedACL != "" {
		q.Set("predefinedAcl", spec.PredefinedACL)
	}

	return fmt.Sprintf("%s/upload/storage/v1/b/%s/o?%s", base, url.PathEscape(bucket), q.Encode()), nil
}

// readURL builds the ranged-GET URL (spec §6, §4.10).
func readURL(base string, ref ObjectRef, precondition Precondition) (string, error) {
	bucket, err := ref.bucketID()
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("alt", "media")

	if ref.Generation != 0 {
		q.Set("generation", strconv.FormatInt(ref.Generation, 10))
	}

	preconditionQuery(q, precondition)

	encodedObject := encodeObjectName(ref.Object)

	return fmt.Sprintf("%s/storage/v1/b/%s/o/%s?%s", base, url.PathEscape(bucket), encodedObject, q.Encode()), nil
}

// contentRangeHeader renders the Content-Range value for an upload PUT
// (spec §4.7): "bytes {start}-{end}/*" for non-final chunks, "bytes
// {start}-{end}/{total}" for the final chunk, and "bytes */{total-or-*}"
// for a probe.
func contentRangeHeader(start, end int64, total *int64) string {
	if total == nil {
		return fmt.Sprintf("bytes %d-%d/*", start, end)
	}

	return fmt.Sprintf("bytes %d-%d/%d", start, end, *total)
}

func probeContentRangeHeader(total *int64) string {
	if total == nil {
		return "bytes */*"
	}

	return fmt.Sprintf("bytes */%d", *total)
}

// parseContentRange parses "bytes {start}-{end}/{total|*}" from a 206
// response (spec §4.10). A malformed header is a permanent parsing error.
func parseContentRange(header string) (start, end, total int64, hasTotal bool, err error) {
	const prefix = "bytes "

	if !strings.HasPrefix(header, prefix) {
		return 0, 0, 0, false, bindingError("malformed Content-Range header: %q", header)
	}

	rest := strings.TrimPrefix(header, prefix)

	rangePart, totalPart, ok := strings.Cut(rest, "/")
	if !ok {
		return 0, 0, 0, false, bindingError("malformed Content-Range header: %q", header)
	}

	startStr, endStr, ok := strings.Cut(rangePart, "-")
	if !ok {
		return 0, 0, 0, false, bindingError("malformed Content-Range range: %q", rangePart)
	}

	start, err1 := strconv.ParseInt(startStr, 10, 64)
	end, err2 := strconv.ParseInt(endStr, 10, 64)

	if err1 != nil || err2 != nil {
		return 0, 0, 0, false, bindingError("malformed Content-Range bounds: %q", rangePart)
	}

	if totalPart == "*" {
		return start, end, 0, false, nil
	}

	total, err3 := strconv.ParseInt(totalPart, 10, 64)
	if err3 != nil {
		return 0, 0, 0, false, bindingError("malformed Content-Range total: %q", totalPart)
	}

	return start, end, total, true, nil
}

// parseResumeRange parses "bytes=0-{last}" from a 308 response (spec
// §4.7), returning the new persisted offset last+1. An absent header means
// persisted offset 0.
func parseResumeRange(header string) (persistedOffset int64, err error) {
	if header == "" {
		return 0, nil
	}

	const prefix = "bytes="

	if !strings.HasPrefix(header, prefix) {
		return 0, bindingError("malformed Range header: %q", header)
	}

	rest := strings.TrimPrefix(header, prefix)

	_, lastStr, ok := strings.Cut(rest, "-")
	if !ok {
		return 0, bindingError("malformed Range header: %q", header)
	}

	last, err := strconv.ParseInt(lastStr, 10, 64)
	if err != nil {
		return 0, bindingError("malformed Range header bound: %q", lastStr)
	}

	return last + 1, nil
}
