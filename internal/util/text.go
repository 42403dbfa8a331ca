package util

import (
	"regexp"
	"strings"
)

var (
	blankRuns   = regexp.MustCompile(`\n{3,}`)
	spaceBefore = regexp.MustCompile(`[ \t]+\n`)
)

// SanitizePostgresText removes invalid UTF-8 and NUL bytes, which
// Postgres rejects in text columns.
func SanitizePostgresText(value string) string {
	if value == "" {
		return value
	}

	sanitized := strings.ToValidUTF8(value, "")
	return strings.ReplaceAll(sanitized, "\x00", "")
}

// CleanText normalizes loaded document text: CRLF to LF, no trailing
// blanks on a line, at most one empty line between paragraphs.
func CleanText(value string) string {
	value = strings.ReplaceAll(value, "\r\n", "\n")
	value = strings.ReplaceAll(value, "\r", "\n")
	value = strings.ReplaceAll(value, "\u00a0", " ")
	value = spaceBefore.ReplaceAllString(value, "\n")
	value = blankRuns.ReplaceAllString(value, "\n\n")
	return strings.TrimSpace(value)
}
