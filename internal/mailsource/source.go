// Package mailsource reads sent messages from a mail store. Two stores are
// supported: an IMAP account and a directory of mbox files.
package mailsource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"
)

var (
	// ErrFolderNotFound is returned by List when the folder does not exist.
	ErrFolderNotFound = errors.New("mail folder not found")
	// ErrNotMail is returned by Fetch for items that are not ordinary mail,
	// such as calendar invitations and delivery reports.
	ErrNotMail = errors.New("not a mail item")
)

// Ref identifies one message in a folder listing.
type Ref struct {
	ID        uint32
	SentAt    time.Time
	Recipient string
}

// Message is a fetched message with its plain-text body decoded.
type Message struct {
	SentAt    time.Time
	Subject   string
	Body      string
	Recipient string // primary recipient address, may be empty
	Folder    string
}

// Filter excludes a date range that an earlier run already ingested.
type Filter struct {
	Active   bool
	Min, Max time.Time
}

// Keep reports whether a message sent at t should be read: strictly before
// Min or strictly after Max. An inactive filter keeps everything.
func (f Filter) Keep(t time.Time) bool {
	if !f.Active {
		return true
	}
	return t.Before(f.Min) || t.After(f.Max)
}

// Source lists and fetches messages. List returns refs newest first.
type Source interface {
	List(ctx context.Context, folder string, f Filter) ([]Ref, error)
	Fetch(ctx context.Context, ref Ref) (*Message, error)
	Close() error
}

func sortNewestFirst(refs []Ref) {
	sort.SliceStable(refs, func(i, j int) bool {
		return refs[i].SentAt.After(refs[j].SentAt)
	})
}

// parseMessage decodes a raw RFC 5322 message. Fields missing from the
// message fall back to what the listing already knew.
func parseMessage(raw []byte, ref Ref, folder string) (*Message, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}
	if isNonMail(env) {
		return nil, ErrNotMail
	}

	m := &Message{
		SentAt:    ref.SentAt,
		Subject:   env.GetHeader("Subject"),
		Body:      env.Text,
		Recipient: ref.Recipient,
		Folder:    folder,
	}
	if d, err := mail.ParseDate(env.GetHeader("Date")); err == nil {
		m.SentAt = d
	}
	if m.Recipient == "" {
		m.Recipient = firstRecipient(env)
	}
	return m, nil
}

func isNonMail(env *enmime.Envelope) bool {
	ct := strings.ToLower(env.GetHeader("Content-Type"))
	return strings.HasPrefix(ct, "multipart/report") || strings.HasPrefix(ct, "text/calendar")
}

func firstRecipient(env *enmime.Envelope) string {
	for _, h := range []string{"To", "Cc"} {
		list, err := env.AddressList(h)
		if err == nil && len(list) > 0 {
			return list[0].Address
		}
	}
	return ""
}

// RecipientDomains lists every distinct recipient domain in folder, sorted.
// It is used to assemble the internal-domains file.
func RecipientDomains(ctx context.Context, src Source, folder string) ([]string, error) {
	refs, err := src.List(ctx, folder, Filter{})
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{})
	for _, r := range refs {
		if d := domainOf(r.Recipient); d != "" {
			set[d] = struct{}{}
		}
	}

	domains := make([]string, 0, len(set))
	for d := range set {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	return domains, nil
}

func domainOf(addr string) string {
	i := strings.LastIndex(addr, "@")
	if i < 0 {
		return ""
	}
	d := strings.ToLower(strings.Trim(addr[i+1:], " >"))
	if !strings.Contains(d, ".") || strings.ContainsAny(d, " \t") {
		return ""
	}
	return d
}
