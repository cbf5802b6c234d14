package utils

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	invalidFilenameChars   = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F\s]`)
	consecutiveUnderscores = regexp.MustCompile(`_+`)
)

// DefaultMaxFilenameLength bounds names produced by SanitizeFilename when
// the caller passes a non-positive limit.
const DefaultMaxFilenameLength = 100

// SanitizeFilename turns an arbitrary label (a batch prompt, a batch ID)
// into a single path component. Output is at most maxLen bytes and never
// splits a multi-byte rune.
func SanitizeFilename(name string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxFilenameLength
	}
	sanitized := invalidFilenameChars.ReplaceAllString(name, "_")
	sanitized = consecutiveUnderscores.ReplaceAllString(sanitized, "_")
	sanitized = strings.Trim(sanitized, "_. ")

	if len(sanitized) > maxLen {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(sanitized[cut]) {
			cut--
		}
		sanitized = strings.Trim(sanitized[:cut], "_. ")
	}

	if sanitized == "" {
		sanitized = "untitled"
	}
	return sanitized
}
