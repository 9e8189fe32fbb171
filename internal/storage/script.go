package storage

import "strings"

// SplitStatements splits a DDL script into individual statements.
//
// Rules:
//   - a leading UTF-8 byte-order-mark is stripped
//   - statements are separated by ';'
//   - surrounding whitespace is trimmed
//   - blank statements are dropped
//
// Schema scripts for this pipeline contain no string literals with embedded
// semicolons, so a plain split is sufficient.
func SplitStatements(script string) []string {
	script = strings.TrimPrefix(script, "\uFEFF")

	parts := strings.Split(script, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
