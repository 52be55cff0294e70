package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance is the maximum edit distance for "did you mean?"
// suggestions when unknown config keys are detected.
const maxLevenshteinDistance = 3

// knownGlobalKeys are the valid flat top-level keys in the config file,
// across all sections. Keys are namespaced by their TOML table.
var knownGlobalKeys = map[string]bool{
	"endpoint.base_url": true, "endpoint.project": true,
	"upload.resumable_threshold": true, "upload.buffer_size": true,
	"read.resume_attempts": true,
	"retry.max_attempts":  true, "retry.time_limit": true,
	"retry.base_backoff": true, "retry.max_backoff": true,
	"retry.backoff_factor": true, "retry.jitter_fraction": true,
	"retry.throttler_window": true, "retry.throttler_min_success_rate": true,
	"logging.log_level": true, "logging.log_format": true,
	"network.connect_timeout": true, "network.user_agent": true,
}

var knownGlobalKeysList = func() []string {
	keys := make([]string, 0, len(knownGlobalKeys))
	for k := range knownGlobalKeys {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}()

// decodeInto decodes TOML bytes into cfg and returns the decode metadata,
// used by checkUnknownKeys to find keys that did not map onto any field.
func decodeInto(data []byte, cfg *Config) (*toml.MetaData, error) {
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, err
	}

	return &md, nil
}

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns an
// error with "did you mean?" suggestions for each unknown key.
func checkUnknownKeys(md *toml.MetaData) error {
	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}

	var msgs []string

	for _, key := range undecoded {
		keyStr := key.String()

		suggestion := closestMatch(keyStr, knownGlobalKeysList)
		if suggestion != "" {
			msgs = append(msgs, fmt.Sprintf("unknown config key %q — did you mean %q?", keyStr, suggestion))
		} else {
			msgs = append(msgs, fmt.Sprintf("unknown config key %q", keyStr))
		}
	}

	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}

// closestMatch finds the closest known key by Levenshtein distance.
// Returns empty string if no match is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		d := levenshtein(unknown, k)
		if d < bestDist {
			bestDist = d
			best = k
		}
	}

	if bestDist <= maxLevenshteinDistance {
		return best
	}

	return ""
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = minOf(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}

// minOf returns the minimum of three integers.
func minOf(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}

	if c < m {
		m = c
	}

	return m
}
