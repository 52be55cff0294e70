package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHumanizeSize(t *testing.T) {
	assert.Equal(t, "1.0 kB", humanizeSize(1000))
	assert.Equal(t, "0 B", humanizeSize(0))
}

func TestProgressEnabled_QuietSuppresses(t *testing.T) {
	resetFlags(t)
	flagQuiet = true

	assert.False(t, progressEnabled())
}

func TestNewProgressFunc_NoopWhenDisabled(t *testing.T) {
	resetFlags(t)
	flagQuiet = true

	progress := newProgressFunc("Uploading:", 100)

	// Must not panic even though stderr isn't a terminal in CI either way;
	// the quiet flag alone is enough to force the no-op branch.
	assert.NotPanics(t, func() { progress(50) })
}
