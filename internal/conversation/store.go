package conversation

import (
	"sort"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/mailpairs/internal/participant"
	"github.com/MikeSquared-Agency/mailpairs/internal/scrub"
)

// Store owns every conversation of a run. It is driven by a single ingestion
// pass and is not safe for concurrent use.
type Store struct {
	scrubber      scrub.Scrubber
	conversations map[int]*Conversation
	identities    map[string]holder

	nextID  int
	current *Conversation
	loaded  *DateRange

	evicted      int
	dropped      int
	skippedEmpty int
}

// NewStore returns an empty store that redacts turn text with s.
func NewStore(s scrub.Scrubber) *Store {
	return &Store{
		scrubber:      s,
		conversations: make(map[int]*Conversation),
		identities:    make(map[string]holder),
	}
}

// BeginConversation allocates the next conversation id and makes it current.
// A conversation is only kept once it receives a turn.
func (s *Store) BeginConversation() int {
	s.current = &Conversation{ID: s.nextID}
	s.nextID++
	return s.current.ID
}

// AddTurn prepends a turn to the current conversation. Messages whose subject
// and body are both blank are skipped and reported as accepted.
//
// It returns false when the current conversation lost an identity collision
// and was dropped; the caller should stop feeding it the rest of the message.
func (s *Store) AddTurn(ts time.Time, from, to participant.Role, subject, body, source string) bool {
	subject = strings.TrimSpace(subject)
	body = strings.TrimSpace(body)
	if subject == "" && body == "" {
		s.skippedEmpty++
		return true
	}
	if s.current == nil {
		s.BeginConversation()
	}

	c := s.current
	turn := Turn{
		Body:      s.scrubber.Scrub(body),
		Header:    s.scrubber.Scrub(subject),
		Timestamp: ts,
		From:      from,
		To:        to,
		Source:    source,
	}
	c.Turns = append([]Turn{turn}, c.Turns...)
	s.conversations[c.ID] = c

	return s.claim(body, c)
}

// LoadedDateRange returns the opening-turn date range of the checkpoint this
// store was loaded from.
func (s *Store) LoadedDateRange() (DateRange, bool) {
	if s.loaded == nil {
		return DateRange{}, false
	}
	return *s.loaded, true
}

// Conversations returns a copy of every retained conversation, ordered by id.
func (s *Store) Conversations() []Conversation {
	ids := make([]int, 0, len(s.conversations))
	for id, c := range s.conversations {
		if len(c.Turns) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)

	out := make([]Conversation, len(ids))
	for i, id := range ids {
		out[i] = s.conversations[id].clone()
	}
	return out
}

// Len returns the number of retained conversations.
func (s *Store) Len() int { return len(s.conversations) }

// Stats summarises the store's contents and dedup outcomes so far.
func (s *Store) Stats() Stats {
	st := Stats{
		Conversations: len(s.conversations),
		Evicted:       s.evicted,
		Dropped:       s.dropped,
		SkippedEmpty:  s.skippedEmpty,
	}
	for _, c := range s.conversations {
		st.Turns += len(c.Turns)
	}
	return st
}
