package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/mailpairs/internal/conversation"
	"github.com/MikeSquared-Agency/mailpairs/internal/events"
	"github.com/MikeSquared-Agency/mailpairs/internal/mailsource"
)

// ErrQuit is returned by Run when the operator chose not to touch an
// existing checkpoint.
var ErrQuit = errors.New("extraction cancelled by operator")

// Mode decides what happens when the output checkpoint already exists.
type Mode int

const (
	ModeAsk Mode = iota
	ModeResume
	ModeOverwrite
)

// Config holds the extraction settings.
type Config struct {
	Folder       string
	OutPath      string
	Encoding     string
	SaveInterval int // messages between checkpoints
	Mode         Mode
}

// Publisher sends run events. events.Client implements it.
type Publisher interface {
	Publish(subject string, data any) error
}

// Notifier posts the end-of-run summary. slack.Poster implements it.
type Notifier interface {
	PostSummary(ctx context.Context, text string) error
}

// Runner drains one folder into the store, checkpointing as it goes.
type Runner struct {
	cfg      Config
	src      mailsource.Source
	store    *conversation.Store
	pipeline *Pipeline
	prompter Prompter
	progress *Progress
	events   Publisher
	notifier Notifier
	logger   *slog.Logger

	runID string
}

// NewRunner creates a runner. The store must be the one the pipeline writes to.
func NewRunner(cfg Config, src mailsource.Source, store *conversation.Store, pipeline *Pipeline, prompter Prompter, logger *slog.Logger) *Runner {
	if cfg.SaveInterval <= 0 {
		cfg.SaveInterval = 100
	}
	return &Runner{
		cfg:      cfg,
		src:      src,
		store:    store,
		pipeline: pipeline,
		prompter: prompter,
		progress: NewProgress(),
		logger:   logger,
		runID:    uuid.New().String(),
	}
}

// WithEvents enables run event publishing.
func (r *Runner) WithEvents(p Publisher) *Runner {
	r.events = p
	return r
}

// WithNotifier enables the end-of-run summary post.
func (r *Runner) WithNotifier(n Notifier) *Runner {
	r.notifier = n
	return r
}

// WithProgress replaces the progress tracker, so a status server can share it.
func (r *Runner) WithProgress(p *Progress) *Runner {
	r.progress = p
	return r
}

// RunID identifies this run in logs, events and exports.
func (r *Runner) RunID() string { return r.runID }

// Summary describes a finished run.
type Summary struct {
	RunID     string
	Folder    string
	Processed int
	Skipped   int // non-mail items
	Failed    int // fetch errors
	Stats     conversation.Stats
	Path      string
	Duration  time.Duration
}

// Run ingests the folder. A missing folder aborts before anything is read.
// A cancelled context saves a checkpoint and returns ctx.Err().
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	started := time.Now()
	logger := r.logger.With("run_id", r.runID, "folder", r.cfg.Folder)

	filter, err := r.prepare(logger)
	if err != nil {
		return nil, err
	}

	refs, err := r.src.List(ctx, r.cfg.Folder, filter)
	if err != nil {
		return nil, fmt.Errorf("list folder: %w", err)
	}
	logger.Info("messages to process", "total", len(refs), "resumed", filter.Active)

	r.progress.update(func(s *Snapshot) {
		*s = Snapshot{
			RunID:     r.runID,
			Folder:    r.cfg.Folder,
			State:     StateRunning,
			Total:     len(refs),
			StartedAt: started.UTC(),
		}
	})

	sum := &Summary{RunID: r.runID, Folder: r.cfg.Folder, Path: r.cfg.OutPath}
	for _, ref := range refs {
		select {
		case <-ctx.Done():
			logger.Info("extraction interrupted, saving checkpoint")
			if err := r.checkpoint(sum.Processed, logger); err != nil {
				logger.Error("checkpoint failed", "error", err)
			}
			r.progress.update(func(s *Snapshot) { s.State = StateFailed })
			return sum, ctx.Err()
		default:
		}

		msg, err := r.src.Fetch(ctx, ref)
		switch {
		case errors.Is(err, mailsource.ErrNotMail):
			sum.Skipped++
			continue
		case err != nil:
			logger.Warn("failed to fetch message", "id", ref.ID, "error", err)
			sum.Failed++
			continue
		}

		r.pipeline.HandleMessage(msg)
		sum.Processed++

		st := r.store.Stats()
		r.progress.update(func(s *Snapshot) {
			s.Processed = sum.Processed
			s.Conversations = st.Conversations
			s.Evicted = st.Evicted
			s.Dropped = st.Dropped
		})

		if sum.Processed%r.cfg.SaveInterval == 0 {
			if err := r.checkpoint(sum.Processed, logger); err != nil {
				logger.Error("checkpoint failed, continuing in memory", "error", err)
			}
		}
	}

	if err := r.checkpoint(sum.Processed, logger); err != nil {
		r.progress.update(func(s *Snapshot) { s.State = StateFailed })
		return sum, err
	}

	sum.Stats = r.store.Stats()
	sum.Duration = time.Since(started)
	r.progress.update(func(s *Snapshot) { s.State = StateComplete })

	logger.Info("extraction complete",
		"processed", sum.Processed,
		"skipped", sum.Skipped,
		"failed", sum.Failed,
		"conversations", sum.Stats.Conversations,
		"turns", sum.Stats.Turns,
		"evicted", sum.Stats.Evicted,
		"dropped", sum.Stats.Dropped,
		"skipped_empty", sum.Stats.SkippedEmpty,
	)
	r.publish(events.SubjectCompleted, events.Completed{
		RunID:         sum.RunID,
		Folder:        sum.Folder,
		Processed:     sum.Processed,
		Skipped:       sum.Skipped,
		Failed:        sum.Failed,
		Conversations: sum.Stats.Conversations,
		Turns:         sum.Stats.Turns,
		Evicted:       sum.Stats.Evicted,
		Dropped:       sum.Stats.Dropped,
		SkippedEmpty:  sum.Stats.SkippedEmpty,
		Path:          sum.Path,
		Duration:      sum.Duration,
	}, logger)
	r.postSummary(ctx, sum, logger)

	return sum, nil
}

// prepare settles an existing checkpoint and returns the resulting filter.
func (r *Runner) prepare(logger *slog.Logger) (mailsource.Filter, error) {
	if !conversation.Exists(r.cfg.OutPath) {
		return mailsource.Filter{}, nil
	}

	mode := r.cfg.Mode
	if mode == ModeAsk {
		if r.prompter == nil {
			return mailsource.Filter{}, ErrQuit
		}
		switch r.prompter.Resume(r.cfg.OutPath) {
		case ResumeOverwrite:
			mode = ModeOverwrite
		case ResumeContinue:
			mode = ModeResume
		default:
			return mailsource.Filter{}, ErrQuit
		}
	}
	if mode == ModeOverwrite {
		logger.Info("overwriting existing checkpoint", "path", r.cfg.OutPath)
		return mailsource.Filter{}, nil
	}

	if err := r.store.Load(r.cfg.OutPath, r.cfg.Encoding); err != nil {
		return mailsource.Filter{}, err
	}
	rng, ok := r.store.LoadedDateRange()
	logger.Info("resuming from checkpoint",
		"path", r.cfg.OutPath,
		"conversations", r.store.Len(),
		"min", rng.Min,
		"max", rng.Max,
	)
	if !ok {
		return mailsource.Filter{}, nil
	}
	return mailsource.Filter{Active: true, Min: rng.Min, Max: rng.Max}, nil
}

// checkpoint saves the store, asking the operator to retry on failure. The
// in-memory store is untouched either way.
func (r *Runner) checkpoint(processed int, logger *slog.Logger) error {
	for {
		err := r.store.Save(r.cfg.OutPath, r.cfg.Encoding)
		if err == nil {
			break
		}
		if r.prompter == nil || !r.prompter.RetrySave(err) {
			return err
		}
	}

	now := time.Now().UTC()
	conversations := r.store.Len()
	r.progress.update(func(s *Snapshot) { s.LastCheckpoint = &now })
	logger.Info("checkpoint saved", "path", r.cfg.OutPath, "processed", processed, "conversations", conversations)

	r.publish(events.SubjectCheckpoint, events.Checkpoint{
		RunID:         r.runID,
		Folder:        r.cfg.Folder,
		Processed:     processed,
		Conversations: conversations,
		Path:          r.cfg.OutPath,
		At:            now,
	}, logger)
	return nil
}

func (r *Runner) publish(subject string, data any, logger *slog.Logger) {
	if r.events == nil {
		return
	}
	if err := r.events.Publish(subject, data); err != nil {
		logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}

// postSummary posts the run summary, or logs it when no notifier is set.
func (r *Runner) postSummary(ctx context.Context, sum *Summary, logger *slog.Logger) {
	text := FormatSummary(sum)
	if r.notifier == nil {
		logger.Info("extraction summary (no Slack configured)", "summary", text)
		return
	}
	if err := r.notifier.PostSummary(ctx, text); err != nil {
		logger.Warn("failed to post summary to Slack, logging instead", "error", err, "summary", text)
	}
}

// FormatSummary renders a run summary as Slack mrkdwn.
func FormatSummary(sum *Summary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "*Mail extraction complete* (%s)\n", sum.Folder)
	fmt.Fprintf(&sb, "Messages processed: %d", sum.Processed)
	if sum.Skipped > 0 || sum.Failed > 0 {
		fmt.Fprintf(&sb, " (%d skipped, %d failed)", sum.Skipped, sum.Failed)
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Conversations: %d (%d turns)\n", sum.Stats.Conversations, sum.Stats.Turns)
	fmt.Fprintf(&sb, "Duplicates: %d evicted, %d dropped\n", sum.Stats.Evicted, sum.Stats.Dropped)
	fmt.Fprintf(&sb, "Checkpoint: %s\n", sum.Path)
	fmt.Fprintf(&sb, "Run: %s", sum.RunID)
	return sb.String()
}
