package mailsource

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	// Charset decoders for envelope subjects and addresses.
	_ "github.com/emersion/go-message/charset"
)

// IMAPConfig holds the account used to read the sent folder.
type IMAPConfig struct {
	Server   string // host:port, TLS
	Username string
	Password string
}

// IMAPSource reads messages over IMAP. Folders are opened read-only and
// message bodies are fetched with PEEK so no flags change.
type IMAPSource struct {
	client   *imapclient.Client
	selected string
	logger   *slog.Logger
}

// DialIMAP connects and logs in.
func DialIMAP(cfg IMAPConfig, logger *slog.Logger) (*IMAPSource, error) {
	c, err := imapclient.DialTLS(cfg.Server, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Server, err)
	}
	if err := c.Login(cfg.Username, cfg.Password).Wait(); err != nil {
		c.Close()
		return nil, fmt.Errorf("login: %w", err)
	}
	logger.Info("imap connected", "server", cfg.Server, "user", cfg.Username)
	return &IMAPSource{client: c, logger: logger}, nil
}

// List selects folder and returns the refs the filter keeps, newest first.
func (s *IMAPSource) List(ctx context.Context, folder string, f Filter) ([]Ref, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	boxes, err := s.client.List("", folder, nil).Collect()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", folder, err)
	}
	if len(boxes) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrFolderNotFound, folder)
	}

	sel, err := s.client.Select(folder, &imap.SelectOptions{ReadOnly: true}).Wait()
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", folder, err)
	}
	s.selected = folder
	if sel.NumMessages == 0 {
		return nil, nil
	}

	data, err := s.client.UIDSearch(searchCriteria(f), nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", folder, err)
	}
	uids := data.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	var set imap.UIDSet
	set.AddNum(uids...)
	msgs, err := s.client.Fetch(set, &imap.FetchOptions{UID: true, Envelope: true}).Collect()
	if err != nil {
		return nil, fmt.Errorf("fetch envelopes: %w", err)
	}

	refs := make([]Ref, 0, len(msgs))
	for _, m := range msgs {
		if m.Envelope == nil {
			continue
		}
		// SENTBEFORE/SENTSINCE are day-granular; apply the exact bounds here.
		if !f.Keep(m.Envelope.Date) {
			continue
		}
		ref := Ref{ID: uint32(m.UID), SentAt: m.Envelope.Date}
		if len(m.Envelope.To) > 0 {
			ref.Recipient = m.Envelope.To[0].Addr()
		}
		refs = append(refs, ref)
	}
	sortNewestFirst(refs)

	s.logger.Debug("imap folder listed", "folder", folder, "uids", len(uids), "kept", len(refs))
	return refs, nil
}

// searchCriteria widens the excluded range to whole days; List trims the
// result to the exact bounds.
func searchCriteria(f Filter) *imap.SearchCriteria {
	c := &imap.SearchCriteria{}
	if !f.Active {
		return c
	}
	before := truncateDay(f.Min).AddDate(0, 0, 1)
	since := truncateDay(f.Max)
	c.Or = append(c.Or, [2]imap.SearchCriteria{
		{SentBefore: before},
		{SentSince: since},
	})
	return c
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Fetch downloads and decodes one message from the selected folder.
func (s *IMAPSource) Fetch(ctx context.Context, ref Ref) (*Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var set imap.UIDSet
	set.AddNum(imap.UID(ref.ID))
	section := &imap.FetchItemBodySection{Peek: true}
	msgs, err := s.client.Fetch(set, &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{section},
	}).Collect()
	if err != nil {
		return nil, fmt.Errorf("fetch uid %d: %w", ref.ID, err)
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("message uid %d not found", ref.ID)
	}

	raw := msgs[0].FindBodySection(section)
	if len(raw) == 0 {
		return nil, fmt.Errorf("message uid %d has no body", ref.ID)
	}
	return parseMessage(raw, ref, s.selected)
}

// Close logs out and closes the connection.
func (s *IMAPSource) Close() error {
	if err := s.client.Logout().Wait(); err != nil {
		s.logger.Debug("imap logout failed", "error", err)
	}
	return s.client.Close()
}
