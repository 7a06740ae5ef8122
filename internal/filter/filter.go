// Package filter removes conversations that are out of scope for the QA
// dataset, such as form requests or threads with third parties.
package filter

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/MikeSquared-Agency/mailpairs/internal/conversation"
	"github.com/MikeSquared-Agency/mailpairs/internal/participant"
)

// Keywords lists the phrases that disqualify a conversation.
type Keywords struct {
	Header []string // matched case-insensitively against subjects
	Body   []string // matched case-sensitively against bodies
}

// Predicate reports whether a conversation's rows should be removed.
type Predicate func(rows []conversation.Row) bool

// Predicates returns the removal rules in the order they are applied.
func Predicates(kw Keywords) []Predicate {
	header := make([]string, 0, len(kw.Header))
	for _, k := range kw.Header {
		header = append(header, strings.ToLower(k))
	}
	return []Predicate{
		func(rows []conversation.Row) bool {
			for _, r := range rows {
				if containsAny(strings.ToLower(r.Header), header) {
					return true
				}
			}
			return false
		},
		func(rows []conversation.Row) bool {
			for _, r := range rows {
				if containsAny(r.Body, kw.Body) {
					return true
				}
			}
			return false
		},
		func(rows []conversation.Row) bool { return !anyFrom(rows, participant.Student) },
		func(rows []conversation.Row) bool { return anyFrom(rows, participant.InternalOrganization) },
	}
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func anyFrom(rows []conversation.Row, role participant.Role) bool {
	for _, r := range rows {
		if r.From == role {
			return true
		}
	}
	return false
}

// Apply drops every conversation matched by a predicate and returns the
// remaining rows in their original order, plus the removed conversation ids.
func Apply(rows []conversation.Row, preds []Predicate) ([]conversation.Row, []int) {
	groups := make(map[int][]conversation.Row)
	for _, r := range rows {
		groups[r.Conversation] = append(groups[r.Conversation], r)
	}

	removed := make(map[int]bool)
	for id, g := range groups {
		for _, p := range preds {
			if p(g) {
				removed[id] = true
				break
			}
		}
	}

	kept := make([]conversation.Row, 0, len(rows))
	for _, r := range rows {
		if !removed[r.Conversation] {
			kept = append(kept, r)
		}
	}
	ids := make([]int, 0, len(removed))
	for id := range removed {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return kept, ids
}

// Result counts what a filter pass removed.
type Result struct {
	Rows          int
	RemovedRows   int
	Conversations []int // removed conversation ids
}

// File filters the checkpoint table at in and writes the kept rows to out.
func File(in, out, enc string, preds []Predicate) (Result, error) {
	rows, err := conversation.ReadRows(in, enc)
	if err != nil {
		return Result{}, fmt.Errorf("read %s: %w", in, err)
	}
	kept, ids := Apply(rows, preds)
	if err := conversation.WriteRows(out, enc, kept); err != nil {
		return Result{}, fmt.Errorf("write %s: %w", out, err)
	}
	return Result{Rows: len(rows), RemovedRows: len(rows) - len(kept), Conversations: ids}, nil
}

// ReadKeywords reads a keyword file, one phrase per line. Trailing
// whitespace is trimmed and blank lines are skipped.
func ReadKeywords(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open keyword file: %w", err)
	}
	defer f.Close()

	var kws []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if line == "" {
			continue
		}
		kws = append(kws, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan keyword file: %w", err)
	}
	return kws, nil
}
