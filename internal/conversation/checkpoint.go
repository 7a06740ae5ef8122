package conversation

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/MikeSquared-Agency/mailpairs/internal/participant"
	"github.com/MikeSquared-Agency/mailpairs/internal/tablefile"
)

// DateLayout is the checkpoint date format. Dates are written in UTC.
const DateLayout = "02-01-2006 15:04:05"

// Columns is the checkpoint header, one row per turn.
var Columns = []string{"conversation", "turn", "body", "header", "date", "from", "to", "folder_path"}

// ErrNoCheckpoint is returned by Load when the checkpoint file does not exist.
var ErrNoCheckpoint = errors.New("checkpoint not found")

// Row is one checkpoint record.
type Row struct {
	Conversation int
	Turn         int
	Body         string
	Header       string
	Date         time.Time
	From         participant.Role
	To           participant.Role
	FolderPath   string
}

// ReadRows loads every row of a checkpoint-shaped table. Extra columns, such
// as a leading index column, are ignored.
func ReadRows(path, enc string) ([]Row, error) {
	t, err := tablefile.Read(path, enc)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoCheckpoint
		}
		return nil, err
	}
	idx, err := t.Columns(Columns...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	rows := make([]Row, 0, len(t.Rows))
	for n, rec := range t.Rows {
		row, err := parseRow(rec, idx)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, n+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRow(rec []string, idx []int) (Row, error) {
	var (
		r   Row
		err error
	)
	if r.Conversation, err = strconv.Atoi(rec[idx[0]]); err != nil {
		return r, fmt.Errorf("conversation: %w", err)
	}
	if r.Turn, err = strconv.Atoi(rec[idx[1]]); err != nil {
		return r, fmt.Errorf("turn: %w", err)
	}
	r.Body = rec[idx[2]]
	r.Header = rec[idx[3]]
	if d := rec[idx[4]]; d != "" {
		if r.Date, err = time.ParseInLocation(DateLayout, d, time.UTC); err != nil {
			return r, fmt.Errorf("date: %w", err)
		}
	}
	if r.From, err = parseRole(rec[idx[5]]); err != nil {
		return r, fmt.Errorf("from: %w", err)
	}
	if r.To, err = parseRole(rec[idx[6]]); err != nil {
		return r, fmt.Errorf("to: %w", err)
	}
	r.FolderPath = rec[idx[7]]
	return r, nil
}

func parseRole(s string) (participant.Role, error) {
	code, err := strconv.Atoi(s)
	if err != nil {
		return participant.Unknown, err
	}
	return participant.ParseRole(code)
}

// WriteRows writes rows as a checkpoint table, replacing path atomically.
func WriteRows(path, enc string, rows []Row) error {
	t := &tablefile.Table{Header: Columns, Rows: make([][]string, len(rows))}
	for i, r := range rows {
		date := ""
		if !r.Date.IsZero() {
			date = r.Date.UTC().Format(DateLayout)
		}
		t.Rows[i] = []string{
			strconv.Itoa(r.Conversation),
			strconv.Itoa(r.Turn),
			r.Body,
			r.Header,
			date,
			strconv.Itoa(int(r.From)),
			strconv.Itoa(int(r.To)),
			r.FolderPath,
		}
	}
	return tablefile.Write(path, enc, t)
}

// Rows flattens the store into checkpoint rows ordered by conversation and turn.
func (s *Store) Rows() []Row {
	var rows []Row
	for _, c := range s.Conversations() {
		for i, t := range c.Turns {
			rows = append(rows, Row{
				Conversation: c.ID,
				Turn:         i,
				Body:         t.Body,
				Header:       t.Header,
				Date:         t.Timestamp,
				From:         t.From,
				To:           t.To,
				FolderPath:   t.Source,
			})
		}
	}
	return rows
}

// Save writes the store to path.
func (s *Store) Save(path, enc string) error {
	if err := WriteRows(path, enc, s.Rows()); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Load replaces the store's contents with the checkpoint at path and records
// the opening-turn date range for resumption. New conversations continue
// numbering after the highest loaded id.
//
// Loaded bodies are already redacted, so they are not entered into the
// identity index.
func (s *Store) Load(path, enc string) error {
	rows, err := ReadRows(path, enc)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Conversation != rows[j].Conversation {
			return rows[i].Conversation < rows[j].Conversation
		}
		return rows[i].Turn < rows[j].Turn
	})

	s.conversations = make(map[int]*Conversation)
	s.identities = make(map[string]holder)
	s.current = nil
	s.loaded = nil
	s.nextID = 0

	for _, r := range rows {
		c, ok := s.conversations[r.Conversation]
		if !ok {
			c = &Conversation{ID: r.Conversation}
			s.conversations[r.Conversation] = c
		}
		c.Turns = append(c.Turns, Turn{
			Body:      r.Body,
			Header:    r.Header,
			Timestamp: r.Date,
			From:      r.From,
			To:        r.To,
			Source:    r.FolderPath,
		})
		if r.Conversation >= s.nextID {
			s.nextID = r.Conversation + 1
		}

		if r.Turn != 0 || r.Date.IsZero() {
			continue
		}
		if s.loaded == nil {
			s.loaded = &DateRange{Min: r.Date, Max: r.Date}
			continue
		}
		if r.Date.Before(s.loaded.Min) {
			s.loaded.Min = r.Date
		}
		if r.Date.After(s.loaded.Max) {
			s.loaded.Max = r.Date
		}
	}
	return nil
}

// Exists reports whether a checkpoint file is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
