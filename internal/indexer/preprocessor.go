package indexer

import (
	"strings"
)

// Preprocess normalizes extracted text before chunking: CRLF and CR become LF, runs of
// spaces and tabs collapse to one space, trailing spaces are dropped from every line,
// more than one blank line in a row collapses to a single blank line, and the result is trimmed.
// Paragraph and line breaks survive so the chunker can split on them.
func Preprocess(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	var b strings.Builder
	b.Grow(len(text))
	blank := 0
	for _, line := range lines {
		line = collapseSpaces(line)
		if line == "" {
			blank++
			continue
		}
		if b.Len() > 0 {
			if blank > 0 {
				b.WriteString("\n\n")
			} else {
				b.WriteByte('\n')
			}
		}
		blank = 0
		b.WriteString(line)
	}
	return b.String()
}

// collapseSpaces trims line and replaces each run of horizontal whitespace with one space.
func collapseSpaces(line string) string {
	var b strings.Builder
	wasSpace := false
	for _, r := range strings.TrimSpace(line) {
		if r == ' ' || r == '\t' || r == '\v' || r == '\f' || r == '\u00a0' {
			if !wasSpace {
				b.WriteByte(' ')
				wasSpace = true
			}
			continue
		}
		b.WriteRune(r)
		wasSpace = false
	}
	return b.String()
}
