package mailsource

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// MboxSource reads folders stored as mbox files under a directory. Folder
// "Sent Items" is read from "<dir>/Sent Items.mbox" or "<dir>/Sent Items".
type MboxSource struct {
	dir    string
	logger *slog.Logger

	folder string
	msgs   []*Message
}

// NewMboxSource returns a source rooted at dir.
func NewMboxSource(dir string, logger *slog.Logger) *MboxSource {
	return &MboxSource{dir: dir, logger: logger}
}

func (s *MboxSource) path(folder string) (string, error) {
	for _, p := range []string{
		filepath.Join(s.dir, folder+".mbox"),
		filepath.Join(s.dir, folder),
	} {
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %s in %s", ErrFolderNotFound, folder, s.dir)
}

// List parses the folder's mbox file and returns the kept refs, newest first.
// Items that are not ordinary mail are left out.
func (s *MboxSource) List(ctx context.Context, folder string, f Filter) ([]Ref, error) {
	p, err := s.path(folder)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFolderNotFound, p)
		}
		return nil, fmt.Errorf("open mbox: %w", err)
	}
	defer file.Close()

	s.folder = folder
	s.msgs = nil

	var refs []Ref
	skipped := 0
	err = scanMbox(file, func(raw []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		m, err := parseMessage(raw, Ref{}, folder)
		if err != nil {
			skipped++
			if !errors.Is(err, ErrNotMail) {
				s.logger.Warn("skipping unparseable mbox message", "folder", folder, "error", err)
			}
			return nil
		}
		if !f.Keep(m.SentAt) {
			return nil
		}
		refs = append(refs, Ref{ID: uint32(len(s.msgs)), SentAt: m.SentAt, Recipient: m.Recipient})
		s.msgs = append(s.msgs, m)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read mbox %s: %w", p, err)
	}

	sortNewestFirst(refs)
	s.logger.Debug("mbox folder listed", "folder", folder, "kept", len(refs), "skipped", skipped)
	return refs, nil
}

// Fetch returns a message parsed by the last List call.
func (s *MboxSource) Fetch(ctx context.Context, ref Ref) (*Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if int(ref.ID) >= len(s.msgs) {
		return nil, fmt.Errorf("message %d not found in %s", ref.ID, s.folder)
	}
	return s.msgs[ref.ID], nil
}

// Close releases the parsed messages.
func (s *MboxSource) Close() error {
	s.msgs = nil
	return nil
}

// scanMbox splits an mboxrd stream on "From " separator lines and passes each
// raw message to fn with ">From " quoting undone.
func scanMbox(r io.Reader, fn func(raw []byte) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var (
		buf     bytes.Buffer
		started bool
		prevBlank = true
	)
	flush := func() error {
		if !started || buf.Len() == 0 {
			return nil
		}
		raw := bytes.Clone(buf.Bytes())
		buf.Reset()
		return fn(raw)
	}

	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "From ") && prevBlank {
			if err := flush(); err != nil {
				return err
			}
			started = true
			prevBlank = false
			continue
		}
		prevBlank = strings.TrimRight(line, "\r") == ""
		if !started {
			continue
		}
		if unq := strings.TrimLeft(line, ">"); len(unq) < len(line) && strings.HasPrefix(unq, "From ") {
			line = line[1:]
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return flush()
}
