// Package scrub redacts personal information from message text before it is
// stored.
package scrub

import (
	"bufio"
	"fmt"
	"net/mail"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Replacement tokens written in place of detected values.
const (
	TokenEmail     = "{{EMAIL}}"
	TokenPhone     = "{{PHONE}}"
	TokenStudentID = "{{STUDENT_ID}}"
	TokenDOB       = "{{DOB}}"
	TokenName      = "{{NAME}}"
)

// Scrubber redacts a piece of text. Implementations must be deterministic for
// a given internal state.
type Scrubber interface {
	Scrub(text string) string
}

// Detector finds one kind of personal information and replaces it.
type Detector interface {
	Replace(text string) string
}

// RegexDetector replaces every match of Pattern using Template, which may
// reference capture groups as in regexp.Regexp.ReplaceAllString.
type RegexDetector struct {
	Pattern  *regexp.Regexp
	Template string
}

func (d RegexDetector) Replace(text string) string {
	return d.Pattern.ReplaceAllString(text, d.Template)
}

// DigitRunDetector replaces matches of Pattern that are not glued to other
// digits. Matching resumes right after each candidate, so neighbouring values
// separated by a single character are all replaced.
type DigitRunDetector struct {
	Pattern *regexp.Regexp
	Token   string
}

func (d DigitRunDetector) Replace(text string) string {
	var b strings.Builder
	last := 0
	for pos := 0; pos < len(text); {
		loc := d.Pattern.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		if !digitBounded(text, start, end) {
			pos = start + 1
			continue
		}
		b.WriteString(text[last:start])
		b.WriteString(d.Token)
		last, pos = end, end
	}
	if last == 0 {
		return text
	}
	b.WriteString(text[last:])
	return b.String()
}

func digitBounded(text string, start, end int) bool {
	if start > 0 && isDigit(text[start-1]) {
		return false
	}
	return end >= len(text) || !isDigit(text[end])
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

var (
	reEmail     = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	rePhone     = regexp.MustCompile(`(?:\+?1[\-.\s]?)?\(?\b\d{3}\)?[\-.\s]?\d{3}[\-.\s]\d{4}\b`)
	reStudentID = regexp.MustCompile(`\d{8}|\d{4}-\d{4}|\d{4}\s\d{4}`)
	reDOB       = regexp.MustCompile(`(?i)(\b(?:birth\w*|born|dob)\b[^\n\d]{0,20})(\d{1,4}[/\-.]\d{1,2}[/\-.]\d{1,4})`)
)

// DefaultDetectors returns the pattern detectors applied before name
// matching. URLs are left alone.
func DefaultDetectors() []Detector {
	return []Detector{
		RegexDetector{Pattern: reEmail, Template: TokenEmail},
		RegexDetector{Pattern: rePhone, Template: TokenPhone},
		DigitRunDetector{Pattern: reStudentID, Token: TokenStudentID},
		RegexDetector{Pattern: reDOB, Template: "${1}" + TokenDOB},
	}
}

// Pipeline applies a fixed list of detectors followed by a name detector
// whose vocabulary can grow while a run progresses.
type Pipeline struct {
	detectors []Detector
	names     *NameDetector
}

// New builds a pipeline from detectors and an initial list of names.
func New(detectors []Detector, names []string) *Pipeline {
	return &Pipeline{detectors: detectors, names: NewNameDetector(names)}
}

// Scrub redacts text with every detector in order.
func (p *Pipeline) Scrub(text string) string {
	for _, d := range p.detectors {
		text = d.Replace(text)
	}
	return p.names.Replace(text)
}

// LearnAddress adds the words of an address's display name to the name
// vocabulary. Unparseable addresses and bare addresses are ignored.
func (p *Pipeline) LearnAddress(addr string) {
	a, err := mail.ParseAddress(addr)
	if err != nil || a.Name == "" {
		return
	}
	for _, word := range strings.Fields(a.Name) {
		p.names.Add(word)
	}
}

// NameDetector replaces whole-word, case-insensitive occurrences of known
// names.
type NameDetector struct {
	names map[string]struct{}
	re    *regexp.Regexp
	dirty bool
}

// NewNameDetector returns a detector seeded with names.
func NewNameDetector(names []string) *NameDetector {
	d := &NameDetector{names: make(map[string]struct{})}
	for _, n := range names {
		d.Add(n)
	}
	return d
}

// Add registers a name. Words shorter than two letters are ignored.
func (d *NameDetector) Add(name string) {
	name = strings.TrimFunc(name, func(r rune) bool { return !unicode.IsLetter(r) })
	if len([]rune(name)) < 2 {
		return
	}
	key := strings.ToLower(name)
	if _, ok := d.names[key]; ok {
		return
	}
	d.names[key] = struct{}{}
	d.dirty = true
}

// Len returns the number of known names.
func (d *NameDetector) Len() int { return len(d.names) }

func (d *NameDetector) Replace(text string) string {
	if d.dirty {
		d.compile()
	}
	if d.re == nil {
		return text
	}

	var b strings.Builder
	last := 0
	for _, loc := range d.re.FindAllStringIndex(text, -1) {
		if !wordBounded(text, loc[0], loc[1]) {
			continue
		}
		b.WriteString(text[last:loc[0]])
		b.WriteString(TokenName)
		last = loc[1]
	}
	if last == 0 {
		return text
	}
	b.WriteString(text[last:])
	return b.String()
}

// wordBounded reports whether text[start:end] is not glued to surrounding
// letters or digits. regexp's \b only understands ASCII word characters.
func wordBounded(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

func (d *NameDetector) compile() {
	d.dirty = false
	if len(d.names) == 0 {
		d.re = nil
		return
	}

	alts := make([]string, 0, len(d.names))
	for n := range d.names {
		alts = append(alts, regexp.QuoteMeta(n))
	}
	// Longest first so "Annabel" is not consumed as "Anna".
	sort.Slice(alts, func(i, j int) bool {
		if len(alts[i]) != len(alts[j]) {
			return len(alts[i]) > len(alts[j])
		}
		return alts[i] < alts[j]
	})
	d.re = regexp.MustCompile(`(?i)(?:` + strings.Join(alts, "|") + `)`)
}

// ReadNames loads a names file, one name per line. Blank lines are skipped.
func ReadNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open names file: %w", err)
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			names = append(names, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan names file: %w", err)
	}
	return names, nil
}
