// Package strings provides string list helpers for configuration parsing.
package strings

import "strings"

// SplitList splits a comma separated value such as "broker-1:9092, broker-2:9092"
// into its trimmed, non-empty entries. Repeats keep their first position.
// An input with no entries yields nil.
func SplitList(value string) []string {
	var out []string
	seen := map[string]bool{}
	for part := range strings.SplitSeq(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" || seen[part] {
			continue
		}
		seen[part] = true
		out = append(out, part)
	}
	return out
}
