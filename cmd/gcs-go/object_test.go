package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseObjectURI_Valid(t *testing.T) {
	ref, err := parseObjectURI("gs://my-bucket/path/to/object.bin")
	require.NoError(t, err)
	assert.Equal(t, bucketPrefix+"my-bucket", ref.Bucket)
	assert.Equal(t, "path/to/object.bin", ref.Object)
}

func TestParseObjectURI_MissingScheme(t *testing.T) {
	_, err := parseObjectURI("my-bucket/object.bin")
	require.Error(t, err)
}

func TestParseObjectURI_MissingObject(t *testing.T) {
	_, err := parseObjectURI("gs://my-bucket")
	require.Error(t, err)
}

func TestParseObjectURI_MissingBucket(t *testing.T) {
	_, err := parseObjectURI("gs:///object.bin")
	require.Error(t, err)
}

func TestParseObjectURI_TrailingSlashNoObjectName(t *testing.T) {
	_, err := parseObjectURI("gs://my-bucket/")
	require.Error(t, err)
}
