package pipeline

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DefaultFilenamePrefix is used when a request names no prefix.
const DefaultFilenamePrefix = "card"

var whitespace = regexp.MustCompile(`\s+`)

// Filename is {prefix}-{unix ms}, sanitized.
func Filename(prefix string, t time.Time) string {
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultFilenamePrefix
	}
	return SanitizeFilename(fmt.Sprintf("%s-%d", prefix, t.UnixMilli()))
}

// SanitizeFilename replaces whitespace runs with "_" and neutralises path
// separators so the result is a single key segment.
func SanitizeFilename(s string) string {
	s = whitespace.ReplaceAllString(s, "_")
	s = strings.ReplaceAll(s, "..", "")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, "?", "_")
	s = strings.ReplaceAll(s, "#", "_")
	if s == "" {
		return DefaultFilenamePrefix
	}
	return s
}
