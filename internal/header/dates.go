package header

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	dps "github.com/markusmobius/go-dateparser"
)

// DateMatch is a date expression located inside a larger text.
type DateMatch struct {
	Text  string
	Start int
	End   int
	Time  time.Time
	// HasTime is set when the expression carried a time of day.
	HasTime bool
}

func newDateConfig(loc *time.Location) *dps.Configuration {
	return &dps.Configuration{
		Languages:           []string{"en"},
		DefaultTimezone:     loc,
		ReturnTimeAsPeriod:  true,
		PreferredDayOfMonth: dps.First,
	}
}

// ParseDate parses one date expression. Expressions without an explicit zone
// are placed in p's location so every result is zone-aware.
func (p *Parser) ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	d, err := dps.Parse(p.dates, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	if d.IsZero() {
		return time.Time{}, fmt.Errorf("parse date %q: no date", s)
	}
	return d.Time, nil
}

// SearchDates returns every date expression in text, in order of
// appearance. Expressions without a digit ("today", "till date") are not
// header dates and are skipped. Neighbouring expressions separated only by
// punctuation or "at", such as "Mon, Mar 4, 2024" and "10:15 AM", are merged
// into one match.
func (p *Parser) SearchDates(text string) []DateMatch {
	_, results, err := dps.Search(p.dates, text)
	if err != nil {
		return nil
	}

	var found []DateMatch
	from := 0
	for _, r := range results {
		if r.Text == "" {
			continue
		}
		i := strings.Index(text[from:], r.Text)
		if i < 0 {
			continue
		}
		start := from + i
		m := DateMatch{
			Text:    r.Text,
			Start:   start,
			End:     start + len(r.Text),
			Time:    r.Date.Time,
			HasTime: r.Date.Period.IsTime(),
		}
		from = m.End
		if !strings.ContainsFunc(m.Text, unicode.IsDigit) {
			continue
		}

		if n := len(found); n > 0 && adjacent(text[found[n-1].End:m.Start]) {
			if merged, ok := p.merge(text, found[n-1], m); ok {
				found[n-1] = merged
				continue
			}
		}
		found = append(found, m)
	}
	return found
}

func (p *Parser) merge(text string, a, b DateMatch) (DateMatch, bool) {
	span := text[a.Start:b.End]
	t, err := p.ParseDate(span)
	if err != nil {
		return DateMatch{}, false
	}
	return DateMatch{
		Text:    span,
		Start:   a.Start,
		End:     b.End,
		Time:    t,
		HasTime: a.HasTime || b.HasTime,
	}, true
}

// adjacent reports whether gap holds nothing but separators.
func adjacent(gap string) bool {
	gap = strings.Trim(gap, " \t\n,;")
	return gap == "" || strings.EqualFold(strings.TrimSpace(gap), "at")
}
