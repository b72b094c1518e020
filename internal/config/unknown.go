package config

import (
	"errors"
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance is the maximum edit distance for "did you mean?"
// suggestions when unknown config keys are detected.
const maxLevenshteinDistance = 3

// knownGlobalKeys are the valid top-level keys in the config file.
var knownGlobalKeys = map[string]bool{
	"agavedb": true, "host_url": true, "log_level": true, "timeout": true, "endpoints": true,
}

// knownEndpointKeys are the valid keys inside the [endpoints] table.
var knownEndpointKeys = map[string]bool{
	"token": true, "clients": true, "systems": true, "listings": true, "media": true,
}

// sortedKeys returns the keys of m in sorted order, for deterministic
// suggestions when two candidates have the same edit distance.
func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns
// an error with "did you mean?" suggestions for each unknown key.
func checkUnknownKeys(md *toml.MetaData) error {
	var errs []error

	for _, key := range md.Undecoded() {
		errs = append(errs, unknownKeyError(key))
	}

	return errors.Join(errs...)
}

// unknownKeyError describes one undecoded key, suggesting the closest known
// key at the same level.
func unknownKeyError(key toml.Key) error {
	known, field := knownGlobalKeys, key[0]

	if len(key) > 1 && key[0] == "endpoints" {
		known, field = knownEndpointKeys, key[1]
	}

	if suggestion := closestMatch(field, sortedKeys(known)); suggestion != "" {
		return fmt.Errorf("unknown config key %q, did you mean %q?", key.String(), suggestion)
	}

	return fmt.Errorf("unknown config key %q", key.String())
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

	// Two rolling rows.
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

			curr[j+1] = min(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}
