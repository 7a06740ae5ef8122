package extract

import (
	"sync"
	"time"
)

// Snapshot is a point-in-time view of a running extraction.
type Snapshot struct {
	RunID          string     `json:"run_id"`
	Folder         string     `json:"folder"`
	State          string     `json:"state"`
	Processed      int        `json:"processed"`
	Total          int        `json:"total"`
	Conversations  int        `json:"conversations"`
	Evicted        int        `json:"evicted"`
	Dropped        int        `json:"dropped"`
	StartedAt      time.Time  `json:"started_at"`
	LastCheckpoint *time.Time `json:"last_checkpoint,omitempty"`
}

// Run states reported in Snapshot.State.
const (
	StateIdle     = "idle"
	StateRunning  = "running"
	StateComplete = "complete"
	StateFailed   = "failed"
)

// Progress is shared between the runner and the status endpoint.
type Progress struct {
	mu   sync.Mutex
	snap Snapshot
}

// NewProgress returns an idle tracker.
func NewProgress() *Progress {
	return &Progress{snap: Snapshot{State: StateIdle}}
}

// Snapshot returns a copy of the current progress.
func (p *Progress) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.snap
	if s.LastCheckpoint != nil {
		t := *s.LastCheckpoint
		s.LastCheckpoint = &t
	}
	return s
}

func (p *Progress) update(fn func(s *Snapshot)) {
	p.mu.Lock()
	fn(&p.snap)
	p.mu.Unlock()
}
