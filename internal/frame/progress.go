package frame

import (
	"sync"
	"time"
)

// Progress is a point-in-time snapshot of a long-running operation.
// Current never decreases within one run.
type Progress struct {
	Current       int           `json:"current"`
	Total         int           `json:"total"`
	EstimatedTime time.Duration `json:"estimatedTimeMs,omitempty"`
}

// ProgressFunc receives progress snapshots. Implementations must not
// block; they are called from the worker's loop.
type ProgressFunc func(Progress)

// Tracker turns raw counter updates into monotone Progress snapshots
// with a simple rate-based time estimate. It is safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	current int
	total   int
	started time.Time
	fn      ProgressFunc
}

// NewTracker creates a tracker for total units of work. fn may be nil.
func NewTracker(total int, fn ProgressFunc) *Tracker {
	return &Tracker{
		total:   total,
		started: time.Now(),
		fn:      fn,
	}
}

// Set advances the counter to current. Values lower than an earlier
// update are ignored so observers always see a non-decreasing sequence.
func (t *Tracker) Set(current int) {
	t.mu.Lock()
	if current < t.current {
		current = t.current
	}
	if current > t.total {
		current = t.total
	}
	t.current = current
	snap := t.snapshotLocked()
	fn := t.fn
	t.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
}

// Add advances the counter by n.
func (t *Tracker) Add(n int) {
	t.mu.Lock()
	current := t.current + n
	if current > t.total {
		current = t.total
	}
	t.current = current
	snap := t.snapshotLocked()
	fn := t.fn
	t.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
}

// Snapshot returns the current progress.
func (t *Tracker) Snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Progress {
	p := Progress{Current: t.current, Total: t.total}
	if t.current > 0 && t.current < t.total {
		elapsed := time.Since(t.started)
		perUnit := elapsed / time.Duration(t.current)
		p.EstimatedTime = perUnit * time.Duration(t.total-t.current)
	}
	return p
}
