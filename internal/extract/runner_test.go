package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/mailpairs/internal/conversation"
	"github.com/MikeSquared-Agency/mailpairs/internal/events"
	"github.com/MikeSquared-Agency/mailpairs/internal/mailsource"
)

// fakeSource serves messages from memory, newest first, honouring the filter.
type fakeSource struct {
	msgs    []*mailsource.Message
	listErr error
	filter  mailsource.Filter
}

func (s *fakeSource) List(_ context.Context, _ string, f mailsource.Filter) ([]mailsource.Ref, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.filter = f
	var refs []mailsource.Ref
	for i, m := range s.msgs {
		var sent time.Time
		if m != nil {
			sent = m.SentAt
		}
		if f.Keep(sent) {
			refs = append(refs, mailsource.Ref{ID: uint32(i), SentAt: sent})
		}
	}
	return refs, nil
}

func (s *fakeSource) Fetch(_ context.Context, ref mailsource.Ref) (*mailsource.Message, error) {
	m := s.msgs[ref.ID]
	if m == nil {
		return nil, mailsource.ErrNotMail
	}
	return m, nil
}

func (s *fakeSource) Close() error { return nil }

type fakePrompter struct {
	resume  ResumeChoice
	retries int // RetrySave answers yes this many times
	asked   int
}

func (p *fakePrompter) RetrySave(error) bool {
	p.asked++
	return p.asked <= p.retries
}

func (p *fakePrompter) Resume(string) ResumeChoice { return p.resume }

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (p *recordingPublisher) Publish(subject string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	return nil
}

type recordingNotifier struct{ texts []string }

func (n *recordingNotifier) PostSummary(_ context.Context, text string) error {
	n.texts = append(n.texts, text)
	return nil
}

var day0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func msgAt(days int, body string) *mailsource.Message {
	return &mailsource.Message{
		SentAt:    day0.AddDate(0, 0, days),
		Subject:   "Subject",
		Body:      body,
		Recipient: "student@gmail.com",
		Folder:    "Sent Items",
	}
}

func newTestRunner(t *testing.T, src mailsource.Source, cfg Config, prompter Prompter) (*Runner, *conversation.Store) {
	t.Helper()
	p, store := newTestPipeline(t)
	if cfg.Folder == "" {
		cfg.Folder = "Sent Items"
	}
	if cfg.Encoding == "" {
		cfg.Encoding = "utf-8"
	}
	return NewRunner(cfg, src, store, p, prompter, testLogger()), store
}

func TestRunner_Run(t *testing.T) {
	out := filepath.Join(t.TempDir(), "emails.csv")
	src := &fakeSource{msgs: []*mailsource.Message{
		msgAt(3, "Please update my address"),
		nil, // calendar item
		msgAt(2, "Thanks, see attached\n\nOn 1 March 2024 09:00, Jane Doe wrote:\n> Hello, I need help\n"),
		msgAt(1, "Hello, I need help"),
	}}
	pub := &recordingPublisher{}
	notifier := &recordingNotifier{}

	r, _ := newTestRunner(t, src, Config{OutPath: out, SaveInterval: 2}, nil)
	r.WithEvents(pub).WithNotifier(notifier)

	sum, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Processed != 3 || sum.Skipped != 1 {
		t.Errorf("processed=%d skipped=%d", sum.Processed, sum.Skipped)
	}
	if sum.Stats.Conversations != 2 || sum.Stats.Dropped != 1 {
		t.Errorf("stats = %+v", sum.Stats)
	}

	rows, err := conversation.ReadRows(out, "utf-8")
	if err != nil {
		t.Fatalf("checkpoint not readable: %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("checkpoint rows = %d, want 3", len(rows))
	}

	// One interval checkpoint after 2 messages, the final one, then completion.
	want := []string{events.SubjectCheckpoint, events.SubjectCheckpoint, events.SubjectCompleted}
	if strings.Join(pub.subjects, ",") != strings.Join(want, ",") {
		t.Errorf("events = %v, want %v", pub.subjects, want)
	}
	if len(notifier.texts) != 1 || !strings.Contains(notifier.texts[0], "Conversations: 2") {
		t.Errorf("summary = %q", notifier.texts)
	}

	snap := r.progress.Snapshot()
	if snap.State != StateComplete || snap.Total != 4 || snap.Processed != 3 || snap.LastCheckpoint == nil {
		t.Errorf("progress = %+v", snap)
	}
}

func TestRunner_FolderNotFound(t *testing.T) {
	out := filepath.Join(t.TempDir(), "emails.csv")
	src := &fakeSource{listErr: mailsource.ErrFolderNotFound}

	r, _ := newTestRunner(t, src, Config{OutPath: out}, nil)
	_, err := r.Run(context.Background())
	if !errors.Is(err, mailsource.ErrFolderNotFound) {
		t.Fatalf("expected ErrFolderNotFound, got %v", err)
	}
	if conversation.Exists(out) {
		t.Error("no checkpoint should be written when the folder is missing")
	}
}

func TestRunner_ResumeUsesWatermark(t *testing.T) {
	out := filepath.Join(t.TempDir(), "emails.csv")

	first := &fakeSource{msgs: []*mailsource.Message{msgAt(2, "two"), msgAt(1, "one")}}
	r1, _ := newTestRunner(t, first, Config{OutPath: out}, nil)
	if _, err := r1.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	second := &fakeSource{msgs: []*mailsource.Message{
		msgAt(3, "three"), msgAt(2, "two"), msgAt(1, "one"), msgAt(0, "zero"),
	}}
	r2, store := newTestRunner(t, second, Config{OutPath: out}, &fakePrompter{resume: ResumeContinue})
	sum, err := r2.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if !second.filter.Active || !second.filter.Min.Equal(day0.AddDate(0, 0, 1)) || !second.filter.Max.Equal(day0.AddDate(0, 0, 2)) {
		t.Errorf("filter = %+v", second.filter)
	}
	if sum.Processed != 2 {
		t.Errorf("processed = %d, want only the two new messages", sum.Processed)
	}
	if got := store.Len(); got != 4 {
		t.Errorf("conversations = %d, want 4", got)
	}

	ids := map[int]bool{}
	for _, c := range store.Conversations() {
		ids[c.ID] = true
	}
	for _, id := range []int{0, 1, 2, 3} {
		if !ids[id] {
			t.Errorf("missing conversation id %d in %v", id, ids)
		}
	}
}

func TestRunner_QuitLeavesCheckpoint(t *testing.T) {
	out := filepath.Join(t.TempDir(), "emails.csv")
	if err := os.WriteFile(out, []byte("keep me"), 0o644); err != nil {
		t.Fatal(err)
	}

	r, _ := newTestRunner(t, &fakeSource{}, Config{OutPath: out}, &fakePrompter{resume: ResumeQuit})
	if _, err := r.Run(context.Background()); !errors.Is(err, ErrQuit) {
		t.Fatalf("expected ErrQuit, got %v", err)
	}
	data, _ := os.ReadFile(out)
	if string(data) != "keep me" {
		t.Errorf("checkpoint modified: %q", data)
	}
}

func TestRunner_OverwriteIgnoresCheckpoint(t *testing.T) {
	out := filepath.Join(t.TempDir(), "emails.csv")
	if err := os.WriteFile(out, []byte("not a checkpoint"), 0o644); err != nil {
		t.Fatal(err)
	}

	src := &fakeSource{msgs: []*mailsource.Message{msgAt(1, "one")}}
	r, _ := newTestRunner(t, src, Config{OutPath: out, Mode: ModeOverwrite}, nil)
	if _, err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if src.filter.Active {
		t.Error("overwrite must not apply the old watermark")
	}
	rows, err := conversation.ReadRows(out, "utf-8")
	if err != nil || len(rows) != 1 {
		t.Fatalf("rows=%v err=%v", rows, err)
	}
}

func TestRunner_SaveRetry(t *testing.T) {
	// The output path is a directory, so every save fails.
	out := t.TempDir()
	src := &fakeSource{msgs: []*mailsource.Message{msgAt(1, "one")}}
	prompter := &fakePrompter{retries: 2}

	r, store := newTestRunner(t, src, Config{OutPath: out, Mode: ModeOverwrite}, prompter)
	_, err := r.Run(context.Background())
	if err == nil {
		t.Fatal("expected the final save to fail")
	}
	if prompter.asked != 3 {
		t.Errorf("retry prompt asked %d times, want 3", prompter.asked)
	}
	if store.Len() != 1 {
		t.Error("in-memory store lost after failed save")
	}
}

func TestRunner_CancelledSavesCheckpoint(t *testing.T) {
	out := filepath.Join(t.TempDir(), "emails.csv")
	src := &fakeSource{msgs: []*mailsource.Message{msgAt(1, "one")}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, _ := newTestRunner(t, src, Config{OutPath: out}, nil)
	if _, err := r.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !conversation.Exists(out) {
		t.Error("interrupted run should still write a checkpoint")
	}
}

func TestFormatSummary(t *testing.T) {
	text := FormatSummary(&Summary{
		RunID:     "abc",
		Folder:    "Sent Items",
		Processed: 10,
		Skipped:   1,
		Stats:     conversation.Stats{Conversations: 4, Turns: 9, Evicted: 1, Dropped: 2},
		Path:      "/data/emails.csv",
	})
	for _, want := range []string{"Sent Items", "Messages processed: 10 (1 skipped, 0 failed)", "Conversations: 4 (9 turns)", "1 evicted, 2 dropped", "/data/emails.csv"} {
		if !strings.Contains(text, want) {
			t.Errorf("summary missing %q:\n%s", want, text)
		}
	}
}
