// Package normalize validates and canonicalizes inbound user messages
// before they enter the conversation pipeline.
package normalize

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxChars caps message length when no limit is configured.
const DefaultMaxChars = 1000

// ValidationError reports an inbound message that failed normalization.
// Requests rejected this way never reach the model and never record a turn.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid message: " + e.Reason
}

// Normalizer canonicalizes raw user input.
type Normalizer struct {
	maxChars int
}

// New returns a Normalizer enforcing the given rune-count cap. A cap of zero
// or less falls back to DefaultMaxChars.
func New(maxChars int) *Normalizer {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Normalizer{maxChars: maxChars}
}

// Normalize trims and canonicalizes raw. It strips control characters other
// than newline and tab, collapses horizontal whitespace runs, and rejects
// messages that are empty, over the length cap, or not valid UTF-8.
func (n *Normalizer) Normalize(raw string) (string, error) {
	if !utf8.ValidString(raw) {
		return "", &ValidationError{Reason: "message is not valid UTF-8"}
	}
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, raw)
	cleaned = collapseSpaces(cleaned)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return "", &ValidationError{Reason: "message is empty"}
	}
	if count := utf8.RuneCountInString(cleaned); count > n.maxChars {
		return "", &ValidationError{Reason: fmt.Sprintf("message exceeds %d characters (got %d)", n.maxChars, count)}
	}
	return cleaned, nil
}

// collapseSpaces reduces each run of spaces and tabs to a single space while
// leaving newlines intact.
func collapseSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inRun := false
	for _, r := range s {
		if r == ' ' || r == '\t' {
			inRun = true
			continue
		}
		if inRun {
			b.WriteByte(' ')
			inRun = false
		}
		b.WriteRune(r)
	}
	if inRun {
		b.WriteByte(' ')
	}
	return b.String()
}
