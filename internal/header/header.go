// Package header infers sender, recipient, subject and date from the header
// text that precedes a quoted reply.
package header

import (
	"errors"
	"regexp"
	"strings"
	"time"

	dps "github.com/markusmobius/go-dateparser"
)

// ErrNoDate reports a header in which no date expression could be parsed.
// The other fields are still populated on a best-effort basis.
var ErrNoDate = errors.New("no date found in reply header")

// Fields is the metadata recovered from one reply header. Empty strings and a
// zero Date mean "not found".
type Fields struct {
	From    string
	To      string
	Subject string
	Date    time.Time
	// Inline is set for "On <date>, X wrote:" headers.
	Inline bool
}

var (
	reWrote = regexp.MustCompile(`(?i)\bwrote\s*:`)
	reOn    = regexp.MustCompile(`(?i)^\s*on\s+`)

	reFromLine    = regexp.MustCompile(`(?im)^\W*from\b\**:?\**[ \t]*(.*)$`)
	reToLine      = regexp.MustCompile(`(?im)^\W*(?:to|cc)\b\**:?\**[ \t]*(.*)$`)
	reSentLine    = regexp.MustCompile(`(?im)^\W*(?:sent|date)\b\**:?\**[ \t]*(.*)$`)
	reSubjectLine = regexp.MustCompile(`(?i)^\W*subject\b\**:?\**[ \t]*(.*)$`)
	reFieldLine   = regexp.MustCompile(`(?i)^\W*(?:from|sent|date|to|cc|bcc|reply-to|importance|attachments)\b\**:`)
)

// Parser infers header fields. Dates without an explicit zone are read in the
// parser's location.
type Parser struct {
	dates *dps.Configuration
}

// NewParser returns a parser that places zone-less dates in loc (UTC if nil).
func NewParser(loc *time.Location) *Parser {
	if loc == nil {
		loc = time.UTC
	}
	return &Parser{dates: newDateConfig(loc)}
}

// Parse extracts what it can from raw. The returned Fields are always usable;
// a non-nil error only reports that the date could not be recovered.
func (p *Parser) Parse(raw string) (Fields, error) {
	if loc := reWrote.FindStringIndex(raw); loc != nil {
		return p.parseInline(raw, loc[0])
	}
	return p.parseBlock(raw)
}

// parseInline handles "On Mon, Mar 4, 2024 at 10:15 AM Jane Doe <jane@x.com> wrote:".
// The sender is whatever sits between the date expression and "wrote:".
func (p *Parser) parseInline(raw string, wroteAt int) (Fields, error) {
	f := Fields{Inline: true}
	prefix := raw[:wroteAt]

	dates := p.SearchDates(prefix)
	if len(dates) == 0 {
		f.From = cleanSender(reOn.ReplaceAllString(prefix, ""))
		return f, ErrNoDate
	}

	first := dates[0]
	f.Date = first.Time
	f.From = cleanSender(prefix[first.End:])
	return f, nil
}

func (p *Parser) parseBlock(raw string) (Fields, error) {
	var f Fields
	if m := reFromLine.FindStringSubmatch(raw); m != nil {
		f.From = strings.TrimSpace(m[1])
	}
	if m := reToLine.FindStringSubmatch(raw); m != nil {
		f.To = strings.TrimSpace(m[1])
	}
	f.Subject = subject(raw)

	if m := reSentLine.FindStringSubmatch(raw); m != nil {
		if t, err := p.ParseDate(m[1]); err == nil {
			f.Date = t
		}
	}
	if f.Date.IsZero() {
		if dates := p.SearchDates(raw); len(dates) > 0 {
			f.Date = dates[0].Time
		}
	}
	if f.Date.IsZero() {
		return f, ErrNoDate
	}
	return f, nil
}

// subject returns the Subject value, including wrapped continuation lines up
// to the next header field or the end of the block.
func subject(raw string) string {
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		m := reSubjectLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		parts := []string{strings.TrimSpace(m[1])}
		for _, next := range lines[i+1:] {
			if reFieldLine.MatchString(next) {
				break
			}
			parts = append(parts, strings.TrimSpace(next))
		}
		return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
	}
	return ""
}

func cleanSender(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.Trim(s, " ,;")
}
