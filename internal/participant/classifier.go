package participant

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Role is the participant category of a mail address. The integer values are
// the role codes written to the checkpoint table.
type Role int

const (
	Student              Role = 1
	Advising             Role = 2
	InternalOrganization Role = 3
	Unknown              Role = 4
)

func (r Role) String() string {
	switch r {
	case Student:
		return "student"
	case Advising:
		return "advising"
	case InternalOrganization:
		return "internal"
	default:
		return "unknown"
	}
}

// ParseRole converts a checkpoint role code back into a Role.
func ParseRole(code int) (Role, error) {
	switch Role(code) {
	case Student, Advising, InternalOrganization, Unknown:
		return Role(code), nil
	}
	return Unknown, fmt.Errorf("invalid role code %d", code)
}

// Config identifies the advising mailbox and the organisation's own domains.
type Config struct {
	AdvisingName    string
	AdvisingAddress string
	// InternalDomains are bare domains ("example.edu"); each is matched as "@example.edu".
	InternalDomains []string
}

// Classifier maps raw address or display-name text to a Role. It is immutable
// once built and safe to share.
type Classifier struct {
	advisingName    string
	advisingAddress string
	internal        *regexp.Regexp
}

// NewClassifier compiles the internal-domain pattern from cfg.
func NewClassifier(cfg Config) *Classifier {
	c := &Classifier{
		advisingName:    cfg.AdvisingName,
		advisingAddress: cfg.AdvisingAddress,
	}

	var alts []string
	for _, d := range cfg.InternalDomains {
		d = strings.TrimPrefix(strings.TrimSpace(d), "@")
		if d == "" {
			continue
		}
		alts = append(alts, regexp.QuoteMeta("@"+d))
	}
	if len(alts) > 0 {
		c.internal = regexp.MustCompile("(" + strings.Join(alts, "|") + ")")
	}
	return c
}

// Classify returns the role for an address line such as
// "From: Jane Doe <jane@example.com>" or a bare display name.
func (c *Classifier) Classify(line string) Role {
	if strings.TrimSpace(line) == "" {
		return Unknown
	}
	if c.advisingName != "" && strings.Contains(line, c.advisingName) {
		return Advising
	}
	if c.advisingAddress != "" && strings.Contains(line, c.advisingAddress) {
		return Advising
	}
	if c.internal != nil && c.internal.MatchString(line) {
		return InternalOrganization
	}
	return Student
}

// ReadDomains reads an internal-domains file, one domain per line.
func ReadDomains(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open domains file: %w", err)
	}
	defer f.Close()

	var domains []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		domains = append(domains, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan domains file: %w", err)
	}
	return domains, nil
}
