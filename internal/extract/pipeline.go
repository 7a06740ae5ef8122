// Package extract drives one ingestion pass: sent messages are split into
// their quoted replies, each reply is attributed and classified, and the
// resulting turns are folded into a conversation store.
package extract

import (
	"log/slog"

	"github.com/MikeSquared-Agency/mailpairs/internal/conversation"
	"github.com/MikeSquared-Agency/mailpairs/internal/header"
	"github.com/MikeSquared-Agency/mailpairs/internal/mailsource"
	"github.com/MikeSquared-Agency/mailpairs/internal/participant"
	"github.com/MikeSquared-Agency/mailpairs/internal/reply"
)

// NameLearner is told about correspondent addresses so their display names
// can be redacted. scrub.Pipeline implements it.
type NameLearner interface {
	LearnAddress(addr string)
}

// Pipeline turns one message into conversation turns.
type Pipeline struct {
	store      *conversation.Store
	classifier *participant.Classifier
	headers    *header.Parser
	names      NameLearner
	logger     *slog.Logger
}

// NewPipeline wires the stages together. names may be nil.
func NewPipeline(store *conversation.Store, classifier *participant.Classifier, headers *header.Parser, names NameLearner, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		store:      store,
		classifier: classifier,
		headers:    headers,
		names:      names,
		logger:     logger,
	}
}

type turn struct {
	fields   header.Fields
	from, to participant.Role
	body     string
}

// HandleMessage opens a conversation for m and adds its replies newest first.
// It reports false when the store rejected the chain as a duplicate of a
// conversation it already holds.
func (p *Pipeline) HandleMessage(m *mailsource.Message) bool {
	segments := reply.Split(m.Body)
	turns := make([]turn, len(segments))

	turns[0] = turn{
		fields: header.Fields{Subject: m.Subject, Date: m.SentAt},
		from:   participant.Advising,
		to:     p.classifier.Classify(m.Recipient),
		body:   segments[0].Body,
	}
	for i, seg := range segments[1:] {
		turns[i+1] = p.inferTurn(seg)
	}

	p.store.BeginConversation()
	for _, t := range turns {
		if !p.store.AddTurn(t.fields.Date, t.from, t.to, t.fields.Subject, t.body, m.Folder) {
			return false
		}
	}
	return true
}

// inferTurn attributes one quoted reply. Header parse failures leave the
// best-effort fields in place.
func (p *Pipeline) inferTurn(seg reply.Segment) turn {
	f, err := p.headers.Parse(seg.Header)
	if err != nil {
		p.logger.Debug("reply header incomplete", "position", seg.Position, "error", err)
	}

	t := turn{fields: f, body: seg.Body}
	t.from = p.classifier.Classify(f.From)
	if f.Inline {
		t.to = participant.Unknown
		t.fields.Subject = ""
	} else {
		t.to = p.classifier.Classify(f.To)
	}

	if p.names != nil && t.from == participant.Student {
		p.names.LearnAddress(f.From)
	}
	return t
}
