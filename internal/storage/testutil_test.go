package storage

import (
	"io"
	"log/slog"
)

// newTestLogger returns a slog.Logger that discards output, matching the
// teacher's convention of passing a test-local discard logger through
// constructors rather than relying on slog.Default() (see graph package
// tests).
func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
