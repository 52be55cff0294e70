package storage

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

// objectDescriptorJSON mirrors the fields of the service's object resource
// this client actually projects into ObjectHighlights (spec §4.11,
// "Object metadata projection"). Fields not listed here are ignored —
// callers never see raw API data, mirroring the teacher's Item struct.
type objectDescriptorJSON struct {
	Bucket         string `json:"bucket"`
	Name           string `json:"name"`
	Generation     string `json:"generation"`     // service sends int64 as string
	Metageneration string `json:"metageneration"` // same
	Size           string `json:"size"`
	ContentType    string `json:"contentType"`
	StorageClass   string `json:"storageClass"`
	CRC32C         string `json:"crc32c"`
	MD5Hash        string `json:"md5Hash"`
	ETag           string `json:"etag"`
}

// decodeObjectDescriptor decodes a 200/201 upload response body into
// ObjectHighlights (spec §4.7: "parse body as object descriptor → DONE").
func decodeObjectDescriptor(body []byte) (ObjectHighlights, error) {
	var raw objectDescriptorJSON
	if err := json.Unmarshal(body, &raw); err != nil {
		return ObjectHighlights{}, &Error{Kind: KindDeser, Message: "decoding object descriptor", Err: err}
	}

	highlights := ObjectHighlights{
		Bucket:       raw.Bucket,
		Name:         raw.Name,
		ContentType:  raw.ContentType,
		StorageClass: raw.StorageClass,
		ETag:         raw.ETag,
	}

	if raw.Generation != "" {
		g, err := strconv.ParseInt(raw.Generation, 10, 64)
		if err != nil {
			return ObjectHighlights{}, bindingError("malformed generation in object descriptor: %q", raw.Generation)
		}

		highlights.Generation = g
	}

	if raw.Metageneration != "" {
		m, err := strconv.ParseInt(raw.Metageneration, 10, 64)
		if err != nil {
			return ObjectHighlights{}, bindingError("malformed metageneration in object descriptor: %q", raw.Metageneration)
		}

		highlights.Metageneration = m
	}

	if raw.Size != "" {
		sz, err := strconv.ParseInt(raw.Size, 10, 64)
		if err != nil {
			return ObjectHighlights{}, bindingError("malformed size in object descriptor: %q", raw.Size)
		}

		highlights.Size = sz
	}

	if raw.CRC32C != "" {
		crc, err := decodeCRC32C(raw.CRC32C)
		if err != nil {
			return ObjectHighlights{}, err
		}

		highlights.CRC32C = crc
		highlights.CRC32CSet = true
	}

	if raw.MD5Hash != "" {
		md5sum, err := decodeMD5(raw.MD5Hash)
		if err != nil {
			return ObjectHighlights{}, err
		}

		highlights.MD5 = md5sum
	}

	return highlights, nil
}

// readResponseHighlights projects the subset of a read response's headers
// this client surfaces (spec §6 inbound headers, §4.10).
type readResponseHighlights struct {
	Generation          int64
	Metageneration       int64
	StoredContentLength  int64
	StoredContentEncoding string
	StorageClass         string
	DeclaredCRC32C       uint32
	DeclaredCRC32CSet    bool
	DeclaredMD5          []byte
}

// parseGoogHash parses the x-goog-hash header, which carries
// "crc32c={b64}[,md5={b64}]" in any order (spec §6).
func parseGoogHash(header string) (crc32c uint32, crc32cSet bool, md5sum []byte, err error) {
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)

		name, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}

		switch name {
		case "crc32c":
			crc32c, err = decodeCRC32C(value)
			if err != nil {
				return 0, false, nil, err
			}

			crc32cSet = true
		case "md5":
			md5sum, err = decodeMD5(value)
			if err != nil {
				return 0, false, nil, err
			}
		}
	}

	return crc32c, crc32cSet, md5sum, nil
}

// projectReadResponse extracts readResponseHighlights from a read
// response's headers. The x-goog-generation header is required (spec
// §4.10: "its absence is a parsing error").
func projectReadResponse(h http.Header) (readResponseHighlights, error) {
	genStr := h.Get("x-goog-generation")
	if genStr == "" {
		return readResponseHighlights{}, bindingError("response missing required x-goog-generation header")
	}

	gen, err := strconv.ParseInt(genStr, 10, 64)
	if err != nil {
		return readResponseHighlights{}, bindingError("malformed x-goog-generation header: %q", genStr)
	}

	out := readResponseHighlights{
		Generation:            gen,
		StoredContentEncoding:  h.Get("x-goog-stored-content-encoding"),
		StorageClass:           h.Get("x-goog-storage-class"),
	}

	if mg := h.Get("x-goog-metageneration"); mg != "" {
		v, err := strconv.ParseInt(mg, 10, 64)
		if err != nil {
			return readResponseHighlights{}, bindingError("malformed x-goog-metageneration header: %q", mg)
		}

		out.Metageneration = v
	}

	if scl := h.Get("x-goog-stored-content-length"); scl != "" {
		v, err := strconv.ParseInt(scl, 10, 64)
		if err != nil {
			return readResponseHighlights{}, bindingError("malformed x-goog-stored-content-length header: %q", scl)
		}

		out.StoredContentLength = v
	}

	if gh := h.Get("x-goog-hash"); gh != "" {
		crc32c, crc32cSet, md5sum, err := parseGoogHash(gh)
		if err != nil {
			return readResponseHighlights{}, err
		}

		out.DeclaredCRC32C = crc32c
		out.DeclaredCRC32CSet = crc32cSet
		out.DeclaredMD5 = md5sum
	}

	return out, nil
}
