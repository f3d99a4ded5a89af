// Package utils provides shared helpers for text, vectors, and logging.
package utils

import "strings"

// Truncate returns s cut to maxLen characters (runes), with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

// Excerpt flattens whitespace in s to single spaces and truncates the result,
// for one-line previews of retrieved chunks.
func Excerpt(s string, maxLen int) string {
	return Truncate(strings.Join(strings.Fields(s), " "), maxLen)
}
