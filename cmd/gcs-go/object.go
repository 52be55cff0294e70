package main

import (
	"fmt"
	"strings"

	"github.com/tonimelisma/gcs-go/internal/storage"
)

// parseObjectURI splits a "gs://bucket/object/path" URI into a storage
// ObjectRef, translating the bare bucket name into the prefixed bucket id
// the core engine requires (spec §3).
func parseObjectURI(uri string) (storage.ObjectRef, error) {
	const scheme = "gs://"

	if !strings.HasPrefix(uri, scheme) {
		return storage.ObjectRef{}, fmt.Errorf("%q is not a gs:// URI", uri)
	}

	rest := strings.TrimPrefix(uri, scheme)

	idx := strings.IndexByte(rest, '/')
	if idx < 0 || idx == len(rest)-1 {
		return storage.ObjectRef{}, fmt.Errorf("%q is missing an object name after the bucket", uri)
	}

	bucket, object := rest[:idx], rest[idx+1:]
	if bucket == "" {
		return storage.ObjectRef{}, fmt.Errorf("%q is missing a bucket name", uri)
	}

	return storage.ObjectRef{Bucket: bucketPrefix + bucket, Object: object}, nil
}
