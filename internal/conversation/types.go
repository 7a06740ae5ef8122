// Package conversation holds the reconstructed, deduplicated thread table:
// conversations of redacted, role-classified turns ordered oldest first.
package conversation

import (
	"time"

	"github.com/MikeSquared-Agency/mailpairs/internal/participant"
)

// Turn is one redacted message inside a conversation. Body and Header have
// already been scrubbed; a zero Timestamp means the date was unknown.
type Turn struct {
	Body      string
	Header    string
	Timestamp time.Time
	From      participant.Role
	To        participant.Role
	Source    string
}

// Conversation is an ordered run of turns, oldest first.
type Conversation struct {
	ID    int
	Turns []Turn
}

// clone returns a copy that shares no turn storage with c.
func (c *Conversation) clone() Conversation {
	turns := make([]Turn, len(c.Turns))
	copy(turns, c.Turns)
	return Conversation{ID: c.ID, Turns: turns}
}

// DateRange is the span of opening-turn dates already held by a checkpoint.
type DateRange struct {
	Min time.Time
	Max time.Time
}

// Covers reports whether t falls inside the range, bounds included. Resumed
// runs only ingest messages the range does not cover.
func (r DateRange) Covers(t time.Time) bool {
	return !t.Before(r.Min) && !t.After(r.Max)
}

// Stats counts store outcomes over a run.
type Stats struct {
	Conversations int
	Turns         int
	Evicted       int
	Dropped       int
	SkippedEmpty  int
}
