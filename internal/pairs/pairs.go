// Package pairs flattens conversations into question and answer records.
package pairs

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/MikeSquared-Agency/mailpairs/internal/conversation"
	"github.com/MikeSquared-Agency/mailpairs/internal/participant"
	"github.com/MikeSquared-Agency/mailpairs/internal/tablefile"
)

// Columns is the header of a pairs table.
var Columns = []string{"conversation", "turn", "question", "answer"}

// Pair is one student question with the advising answer that followed it.
type Pair struct {
	Conversation int
	Turn         int // index of the pair within its conversation
	Question     string
	Answer       string
}

// FromRows groups rows by conversation and emits its pairs. Conversations not
// opened by a student, or by an unattributed sender, produce nothing.
func FromRows(rows []conversation.Row) []Pair {
	groups := make(map[int][]conversation.Row)
	for _, r := range rows {
		groups[r.Conversation] = append(groups[r.Conversation], r)
	}
	ids := make([]int, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var out []Pair
	for _, id := range ids {
		g := groups[id]
		sort.SliceStable(g, func(i, j int) bool { return g[i].Turn < g[j].Turn })
		out = append(out, conversationPairs(id, g)...)
	}
	return out
}

func conversationPairs(id int, rows []conversation.Row) []Pair {
	if first := rows[0].From; first != participant.Student && first != participant.Unknown {
		return nil
	}

	var (
		out              []Pair
		question, answer string
		n                int
	)
	for _, r := range rows {
		if strings.TrimSpace(r.Body) == "" {
			continue
		}
		switch r.From {
		case participant.Student:
			if answer != "" {
				if question != "" {
					out = append(out, Pair{Conversation: id, Turn: n, Question: question, Answer: answer})
				}
				question, answer = "", ""
				n++
			}
			question = r.Body
		case participant.Advising:
			answer = r.Body
		}
	}
	if question != "" && answer != "" {
		out = append(out, Pair{Conversation: id, Turn: n, Question: question, Answer: answer})
	}
	return out
}

// Write stores pairs as a table at path.
func Write(path, enc string, pairs []Pair) error {
	t := &tablefile.Table{Header: Columns, Rows: make([][]string, len(pairs))}
	for i, p := range pairs {
		t.Rows[i] = []string{strconv.Itoa(p.Conversation), strconv.Itoa(p.Turn), p.Question, p.Answer}
	}
	return tablefile.Write(path, enc, t)
}

// Read loads a pairs table. Extra columns are ignored.
func Read(path, enc string) ([]Pair, error) {
	t, err := tablefile.Read(path, enc)
	if err != nil {
		return nil, err
	}
	idx, err := t.Columns(Columns...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	out := make([]Pair, 0, len(t.Rows))
	for n, rec := range t.Rows {
		conv, err := strconv.Atoi(rec[idx[0]])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: conversation: %w", path, n+2, err)
		}
		turn, err := strconv.Atoi(rec[idx[1]])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: turn: %w", path, n+2, err)
		}
		out = append(out, Pair{Conversation: conv, Turn: turn, Question: rec[idx[2]], Answer: rec[idx[3]]})
	}
	return out, nil
}

// File reads the conversation table at in and writes its pairs to out.
func File(in, out, enc string) ([]Pair, error) {
	rows, err := conversation.ReadRows(in, enc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", in, err)
	}
	ps := FromRows(rows)
	if err := Write(out, enc, ps); err != nil {
		return nil, fmt.Errorf("write %s: %w", out, err)
	}
	return ps, nil
}
