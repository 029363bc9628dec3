package frame

import (
	"sync"
	"testing"
	"time"
)

// TestTrackerMonotone tests that observers never see the counter go
// backwards, even with out-of-order Set calls.
func TestTrackerMonotone(t *testing.T) {
	t.Parallel()

	var snaps []Progress
	tr := NewTracker(100, func(p Progress) {
		snaps = append(snaps, p)
	})

	tr.Set(10)
	tr.Set(5) // out of order, must be ignored
	tr.Set(20)
	tr.Add(3)
	tr.Set(500) // over total, must clamp

	prev := -1
	for _, s := range snaps {
		if s.Current < prev {
			t.Fatalf("progress went backwards: %d after %d", s.Current, prev)
		}
		prev = s.Current
	}

	final := tr.Snapshot()
	if final.Current != 100 {
		t.Errorf("final current = %d, want 100 (clamped)", final.Current)
	}
	if final.Total != 100 {
		t.Errorf("total = %d, want 100", final.Total)
	}
}

// TestTrackerEstimate tests that a time estimate appears mid-run and
// disappears at completion.
func TestTrackerEstimate(t *testing.T) {
	t.Parallel()

	tr := NewTracker(10, nil)

	time.Sleep(5 * time.Millisecond) // ensure measurable elapsed time
	tr.Set(5)
	mid := tr.Snapshot()
	if mid.EstimatedTime <= 0 {
		t.Error("mid-run snapshot should carry a time estimate")
	}

	tr.Set(10)
	done := tr.Snapshot()
	if done.EstimatedTime != 0 {
		t.Errorf("completed snapshot estimate = %v, want 0", done.EstimatedTime)
	}
}

// TestTrackerConcurrent tests concurrent Add calls land exactly once each.
func TestTrackerConcurrent(t *testing.T) {
	t.Parallel()

	tr := NewTracker(1000, nil)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				tr.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := tr.Snapshot().Current; got != 1000 {
		t.Errorf("current = %d, want 1000", got)
	}
}

// TestTrackerNilCallback tests that a nil callback does not panic.
func TestTrackerNilCallback(t *testing.T) {
	t.Parallel()

	tr := NewTracker(3, nil)
	tr.Add(1)
	tr.Set(3)
}
