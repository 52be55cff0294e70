package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

// humanizeSize formats a byte count for human-readable status output.
func humanizeSize(n int64) string {
	return humanize.Bytes(uint64(n))
}

// statusf prints a status message to stderr unless quiet mode is set.
func statusf(format string, args ...any) {
	if !flagQuiet {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// progressEnabled reports whether stderr is an attached terminal — a
// progress meter on a redirected-to-file stderr just bloats logs.
func progressEnabled() bool {
	return !flagQuiet && isatty.IsTerminal(os.Stderr.Fd())
}

// newProgressFunc returns a callback suitable for logging upload/download
// progress at a coarse grain (printed at most once per call site, not
// per-chunk — the core engine's operations are already coarse enough that
// a chunk-level callback isn't exposed).
func newProgressFunc(verb string, total int64) func(done int64) {
	if !progressEnabled() {
		return func(int64) {}
	}

	return func(done int64) {
		if total > 0 {
			fmt.Fprintf(os.Stderr, "\r%s %s / %s", verb, humanize.Bytes(uint64(done)), humanize.Bytes(uint64(total)))
		} else {
			fmt.Fprintf(os.Stderr, "\r%s %s", verb, humanize.Bytes(uint64(done)))
		}
	}
}
