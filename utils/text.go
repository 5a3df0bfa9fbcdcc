package utils

import (
	"strings"

	"golang.org/x/text/width"
)

// Fold normalizes a string for matching: full-width forms collapse to their
// narrow equivalents (Ｕ８ -> U8) and ASCII letters lowercase. Upstream labels
// mix widths freely, so every substring check in the query engine goes
// through this.
func Fold(s string) string {
	return strings.ToLower(width.Fold.String(s))
}

// ContainsFold reports whether substr occurs in s, ignoring case and width.
func ContainsFold(s, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(Fold(s), Fold(substr))
}

// SplitKeywords splits a user-supplied keyword list on ASCII and full-width
// commas, trimming blanks.
func SplitKeywords(s string) []string {
	s = strings.ReplaceAll(s, "，", ",")
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
