// Package textnorm normalizes assistant text for display: session names,
// previews, and streamed deltas.
package textnorm

import (
	"strings"
	"unicode/utf8"
)

// Collapse trims text and replaces every whitespace run with one space.
func Collapse(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Truncate shortens collapsed text to at most max runes, cutting at the last
// space when that keeps at least minCut runes. ellipsis is appended when text was cut.
func Truncate(text string, max, minCut int, ellipsis string) string {
	text = Collapse(text)
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	trimmed := string(runes[:max])
	if cut := strings.LastIndex(trimmed, " "); cut >= 0 && utf8.RuneCountInString(trimmed[:cut]) >= minCut {
		trimmed = trimmed[:cut]
	}
	return strings.TrimSpace(trimmed) + ellipsis
}

// LeadingBlankLineTrimmer drops leading blank lines from a streamed response.
// Whitespace-only deltas are held back until real content arrives.
type LeadingBlankLineTrimmer struct {
	seenContent bool
	pending     strings.Builder
}

// Push ingests one delta and returns what should be emitted for it.
func (t *LeadingBlankLineTrimmer) Push(delta string) string {
	if delta == "" {
		return ""
	}
	if t.seenContent {
		return delta
	}

	t.pending.WriteString(delta)
	pending := t.pending.String()
	if strings.TrimSpace(pending) == "" {
		return ""
	}

	t.pending.Reset()
	t.seenContent = true
	return TrimLeadingBlankLines(pending)
}

// TrimLeadingBlankLines removes blank lines at the start of text but keeps
// indentation on the first line with content. Whitespace-only text becomes "",
// matching what the trimmer emits for it.
func TrimLeadingBlankLines(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	rest := text
	for {
		line, after, found := strings.Cut(rest, "\n")
		if !found || strings.TrimSpace(line) != "" {
			return rest
		}
		rest = after
	}
}
