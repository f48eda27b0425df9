// Package suggest provides CLI-only "did you mean" diagnostics over
// the closed enum and capability vocabularies. Display-only: it never
// substitutes a suggestion for the literal value a caller supplied, so
// it cannot violate the validator's "no auto-correction" behavior —
// the validator still rejects the unrecognized value; this package
// only enriches the message shown to a human at the CLI.
package suggest

import (
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Closest returns up to n candidates from vocabulary whose characters
// contain input's characters in order (case-insensitive), ordered by
// fuzzy match distance, most likely first. Returns nil if nothing
// ranks.
func Closest(input string, vocabulary []string, n int) []string {
	if len(vocabulary) == 0 {
		return nil
	}

	ranks := fuzzy.RankFindFold(input, vocabulary)
	if len(ranks) == 0 {
		return nil
	}
	sort.Stable(ranks)
	if len(ranks) > n {
		ranks = ranks[:n]
	}

	out := make([]string, len(ranks))
	for i, r := range ranks {
		out[i] = r.Target
	}
	return out
}
