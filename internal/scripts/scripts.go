// Package scripts holds the JavaScript injected into rendered pages.
package scripts

import (
	_ "embed"
	"strconv"
	"strings"
)

// Kind identifies an injected script by its marker line
type Kind string

const (
	KindUnknown   Kind = ""
	KindSanitize  Kind = "sanitize"
	KindReadiness Kind = "readiness"
	KindOuterHTML Kind = "outer-html"
)

const markerPrefix = "// pagerender:"

// SanitizeResult is returned by the sanitize script once cleanup ran
const SanitizeResult = "cleanup-done"

var (
	//go:embed sanitize.js
	sanitizeJS string

	//go:embed readiness.js
	readinessJS string

	//go:embed outer_html.js
	outerHTMLJS string
)

// Sanitize removes paywall overlays, clears blur filters, unhides
// subscriber blocks and re-enables scrolling. Always returns SanitizeResult.
func Sanitize() string {
	return sanitizeJS
}

// Readiness returns the script that measures article paragraphs.
// It yields JSON {"paragraphCount":n,"totalTextLength":n} as a string.
func Readiness(minParagraphLength int) string {
	return strings.Replace(readinessJS, "__MIN_PARAGRAPH_LENGTH__", strconv.Itoa(minParagraphLength), 1)
}

// OuterHTML returns the script that serializes the whole document
func OuterHTML() string {
	return outerHTMLJS
}

// Identify reports which injected script src is, from its marker line
func Identify(src string) Kind {
	line, _, _ := strings.Cut(strings.TrimSpace(src), "\n")
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, markerPrefix) {
		return KindUnknown
	}
	switch kind := Kind(strings.TrimPrefix(line, markerPrefix)); kind {
	case KindSanitize, KindReadiness, KindOuterHTML:
		return kind
	default:
		return KindUnknown
	}
}

// MinParagraphLength extracts the threshold baked into a readiness script, or -1
func MinParagraphLength(src string) int {
	_, rest, ok := strings.Cut(src, "var minLength = ")
	if !ok {
		return -1
	}
	value, _, _ := strings.Cut(rest, ";")
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return -1
	}
	return n
}
