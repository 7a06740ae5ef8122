// Package reply splits a sent message body into the chain of replies quoted
// inside it, newest first.
package reply

import (
	"regexp"
	"strings"
	"unicode"
)

// Segment is one message of a quoted reply chain. Position 0 is the outermost
// (newest) message, whose Header is always empty; its metadata comes from the
// mail item itself.
type Segment struct {
	Header   string
	Body     string
	Position int
}

const (
	maxWroteLines  = 3
	maxHeaderLines = 12
	headerWindow   = 6
)

var (
	reWroteEnd  = regexp.MustCompile(`(?i)\bwrote\s*:\s*$`)
	reOnStart   = regexp.MustCompile(`(?i)^on\s+\S`)
	reDateHint  = regexp.MustCompile(`\b\d{4}\b|\b\d{1,2}:\d{2}\b`)
	reSeparator = regexp.MustCompile(`(?i)^-{2,}\s*(?:original message|forwarded message)\s*-{2,}\s*$`)
	reRule      = regexp.MustCompile(`^_{10,}\s*$`)
	reFromField = regexp.MustCompile(`(?i)^\**from\**\s*:`)
	reSentField = regexp.MustCompile(`(?i)^\**(?:sent|date)\**\s*:`)
	reToField   = regexp.MustCompile(`(?i)^\**(?:to|cc|subject)\**\s*:`)
)

// boundary is a detected reply header spanning lines [start, end).
type boundary struct {
	start, end int
	depth      int
}

type line struct {
	raw   string
	text  string // with all quote markers removed
	depth int
}

// Split decomposes body into reply segments. A body with no reply markers
// yields a single segment holding the whole body. Segments after the first
// whose header is empty once sanitised are dropped; positions stay dense.
func Split(body string) []Segment {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	lines := scanLines(body)

	bounds := findBoundaries(lines)
	if len(bounds) == 0 {
		return []Segment{{Body: body}}
	}

	segments := []Segment{{Body: joinRaw(lines[:bounds[0].start])}}
	for i, b := range bounds {
		stop := len(lines)
		if i+1 < len(bounds) {
			stop = bounds[i+1].start
		}

		header := sanitizeHeader(joinText(lines[b.start:b.end]))
		if header == "" {
			continue
		}
		segments = append(segments, Segment{
			Header:   header,
			Body:     Unwrap(dequoteLines(lines[b.end:stop], b.depth)),
			Position: len(segments),
		})
	}
	return segments
}

func scanLines(body string) []line {
	raw := strings.Split(body, "\n")
	out := make([]line, len(raw))
	for i, r := range raw {
		text, depth := stripQuotes(r)
		out[i] = line{raw: r, text: text, depth: depth}
	}
	return out
}

// stripQuotes removes every leading '>' marker and reports how many there were.
func stripQuotes(s string) (string, int) {
	depth := 0
	for {
		t := strings.TrimLeft(s, " \t")
		if !strings.HasPrefix(t, ">") {
			return strings.TrimSpace(t), depth
		}
		s = t[1:]
		depth++
	}
}

func findBoundaries(lines []line) []boundary {
	var out []boundary
	for i := 0; i < len(lines); {
		b, ok := boundaryAt(lines, i)
		if !ok {
			i++
			continue
		}
		out = append(out, b)
		i = b.end
	}
	return out
}

func boundaryAt(lines []line, i int) (boundary, bool) {
	l := lines[i]
	if l.text == "" {
		return boundary{}, false
	}

	// "On <date>, <sender> wrote:" possibly wrapped over a few lines. The
	// quoted text it introduces sits one level deeper. A lone "... wrote:"
	// line needs the "On" lead or a date, so prose like "my professor
	// wrote:" stays in the body.
	if reWroteEnd.MatchString(l.text) && (reOnStart.MatchString(l.text) || reDateHint.MatchString(l.text)) {
		return boundary{start: i, end: i + 1, depth: l.depth + 1}, true
	}
	if reOnStart.MatchString(l.text) {
		for j := i + 1; j < len(lines) && j < i+maxWroteLines; j++ {
			if lines[j].text == "" {
				break
			}
			if reWroteEnd.MatchString(lines[j].text) {
				return boundary{start: i, end: j + 1, depth: l.depth + 1}, true
			}
		}
	}

	if reSeparator.MatchString(l.text) {
		return boundary{start: i, end: headerEnd(lines, i+1), depth: l.depth}, true
	}
	if reRule.MatchString(l.text) && i+1 < len(lines) && reFromField.MatchString(lines[i+1].text) {
		return boundary{start: i, end: headerEnd(lines, i+1), depth: l.depth}, true
	}
	if reFromField.MatchString(l.text) && looksLikeHeaderBlock(lines, i) {
		return boundary{start: i, end: headerEnd(lines, i), depth: l.depth}, true
	}
	return boundary{}, false
}

// looksLikeHeaderBlock reports whether the From: line at i is followed by a
// Sent/Date line and a To/Cc/Subject line.
func looksLikeHeaderBlock(lines []line, i int) bool {
	var sent, to bool
	for j := i + 1; j < len(lines) && j <= i+headerWindow; j++ {
		switch {
		case reSentField.MatchString(lines[j].text):
			sent = true
		case reToField.MatchString(lines[j].text):
			to = true
		}
	}
	return sent && to
}

// headerEnd returns the index just past a header block starting at i: the
// first blank line, capped at maxHeaderLines.
func headerEnd(lines []line, i int) int {
	j := i
	for j < len(lines) && j < i+maxHeaderLines && lines[j].text != "" {
		j++
	}
	return j
}

func joinRaw(lines []line) string {
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = l.raw
	}
	return strings.TrimRight(strings.Join(parts, "\n"), " \t\n")
}

func joinText(lines []line) string {
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = l.text
	}
	return strings.Join(parts, "\n")
}

// dequoteLines removes up to depth quote levels from each line.
func dequoteLines(lines []line, depth int) string {
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = dequote(l.raw, depth)
	}
	return strings.Trim(strings.Join(parts, "\n"), " \t\n")
}

func dequote(s string, depth int) string {
	for n := 0; n < depth; n++ {
		t := strings.TrimLeft(s, " \t")
		if !strings.HasPrefix(t, ">") {
			break
		}
		s = strings.TrimPrefix(t[1:], " ")
	}
	return s
}

// sanitizeHeader folds unicode whitespace to ASCII spaces and drops every
// other non-ASCII rune.
func sanitizeHeader(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r <= unicode.MaxASCII:
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}
	return strings.TrimSpace(b.String())
}
