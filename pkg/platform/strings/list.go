// Package strings holds helpers for human-entered, comma-separated lists.
package strings

import (
	"strings"
)

// ListSeparator joins list entries for display.
const ListSeparator = ", "

// DedupeFold trims values and drops blanks and case-insensitive repeats.
// The first spelling of a repeated value is kept, in input order.
func DedupeFold(values []string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

// SplitList splits a comma-separated list into trimmed, non-empty entries.
func SplitList(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JoinDistinct flattens values that may themselves be joined lists and joins
// the distinct entries with ListSeparator.
//
//	JoinDistinct([]string{"Palm Oil, Cocoa", "cocoa", " Rubber "})
//	// "Palm Oil, Cocoa, Rubber"
func JoinDistinct(values []string) string {
	var flat []string
	for _, v := range values {
		flat = append(flat, SplitList(v)...)
	}
	return strings.Join(DedupeFold(flat), ListSeparator)
}
