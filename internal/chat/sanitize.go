package chat

import (
	"html"
	"regexp"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

// textPolicy strips every tag. Server-relayed text was written for an HTML
// client, so markup is removed rather than shown.
var textPolicy = bluemonday.StrictPolicy()

// ansiPattern matches CSI and OSC terminal escape sequences.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]|\x1b\][^\x07\x1b]*(?:\x07|\x1b\\)`)

// Sanitize prepares untrusted text for a terminal: markup is stripped,
// entities are decoded and control characters other than newline and tab are
// dropped so escape sequences cannot reach the terminal.
func Sanitize(text string) string {
	if text == "" {
		return ""
	}
	cleaned := ansiPattern.ReplaceAllString(text, "")
	cleaned = html.UnescapeString(textPolicy.Sanitize(cleaned))
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, cleaned)
}

// SanitizeName cleans a username for display. Empty results fall back to
// "anon".
func SanitizeName(name string) string {
	cleaned := strings.TrimSpace(Sanitize(name))
	cleaned = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return ' '
		}
		return r
	}, cleaned)
	if cleaned == "" {
		return "anon"
	}
	return cleaned
}
