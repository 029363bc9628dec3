package selection

import (
	"fmt"
	"math"
	"testing"

	"framepick/internal/frame"
)

// makeFrames builds a scored sequence with the given scores, in order.
func makeFrames(scores ...float64) []frame.Frame {
	frames := make([]frame.Frame, len(scores))
	for i, s := range scores {
		frames[i] = frame.Frame{
			ID:   frame.ID("test", i),
			Name: fmt.Sprintf("frame_%05d.jpg", i),
		}
		frames[i].SetScore(s)
	}
	return frames
}

// uniformFrames builds n frames all scored the same.
func uniformFrames(n int, score float64) []frame.Frame {
	scores := make([]float64, n)
	for i := range scores {
		scores[i] = score
	}
	return makeFrames(scores...)
}

// indexOf recovers the extraction index from the zero-padded id suffix.
func indexOf(t *testing.T, f frame.Frame) int {
	t.Helper()
	var idx int
	if _, err := fmt.Sscanf(f.ID, "test-%d", &idx); err != nil {
		t.Fatalf("cannot parse index from id %q: %v", f.ID, err)
	}
	return idx
}

// TestBatchedCardinality tests that batched selection returns exactly
// one frame per window.
func TestBatchedCardinality(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		frames      int
		batchSize   int
		batchBuffer int
		want        int
	}{
		{name: "exact windows", frames: 20, batchSize: 5, batchBuffer: 0, want: 4},
		{name: "partial last window", frames: 22, batchSize: 5, batchBuffer: 0, want: 5},
		{name: "with buffer", frames: 20, batchSize: 5, batchBuffer: 5, want: 2},
		{name: "buffer straddles end", frames: 23, batchSize: 5, batchBuffer: 5, want: 3},
		{name: "single frame", frames: 1, batchSize: 5, batchBuffer: 0, want: 1},
		{name: "batch larger than input", frames: 3, batchSize: 10, batchBuffer: 0, want: 1},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Batched(uniformFrames(tt.frames, 50), tt.batchSize, tt.batchBuffer)
			if len(got) != tt.want {
				t.Errorf("Batched(%d frames, size %d, buffer %d) = %d picks, want %d",
					tt.frames, tt.batchSize, tt.batchBuffer, len(got), tt.want)
			}
		})
	}
}

// TestBatchedPicksWindowMax tests that each pick is its window's
// highest-scoring frame and ties go to the earlier frame.
func TestBatchedPicksWindowMax(t *testing.T) {
	t.Parallel()

	frames := makeFrames(10, 90, 20, 30, 40, 80, 80, 10, 5, 5)
	got := Batched(frames, 5, 0)

	if len(got) != 2 {
		t.Fatalf("got %d picks, want 2", len(got))
	}
	if i := indexOf(t, got[0]); i != 1 {
		t.Errorf("first window pick = index %d, want 1 (score 90)", i)
	}
	if i := indexOf(t, got[1]); i != 5 {
		t.Errorf("second window pick = index %d, want 5 (first of tied 80s)", i)
	}
}

// TestBatchedDegenerate tests empty and invalid inputs.
func TestBatchedDegenerate(t *testing.T) {
	t.Parallel()

	if got := Batched(nil, 5, 0); got != nil {
		t.Errorf("Batched(nil) = %v, want nil", got)
	}
	if got := Batched(uniformFrames(10, 50), 0, 0); got != nil {
		t.Errorf("Batched with zero batch size = %v, want nil", got)
	}
	if got := Batched(uniformFrames(10, 50), 5, -3); len(got) != 2 {
		t.Errorf("negative buffer should act as zero, got %d picks", len(got))
	}
}

// TestTopPercentileCount tests the ceil(len*threshold/100) contract.
func TestTopPercentileCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		frames    int
		threshold float64
		want      int
	}{
		{name: "quarter of 20", frames: 20, threshold: 25, want: 5},
		{name: "rounds up", frames: 10, threshold: 25, want: 3},
		{name: "tiny threshold keeps one", frames: 100, threshold: 0.5, want: 1},
		{name: "full", frames: 7, threshold: 100, want: 7},
		{name: "over 100 clamps", frames: 7, threshold: 150, want: 7},
		{name: "zero threshold", frames: 7, threshold: 0, want: 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := TopPercentile(uniformFrames(tt.frames, 50), tt.threshold)
			if len(got) != tt.want {
				t.Errorf("TopPercentile(%d frames, %v%%) = %d, want %d",
					tt.frames, tt.threshold, len(got), tt.want)
			}
		})
	}
}

// TestTopPercentileKeepsSharpest tests that only the highest scores
// survive and equal scores resolve to earlier frames.
func TestTopPercentileKeepsSharpest(t *testing.T) {
	t.Parallel()

	frames := makeFrames(10, 90, 20, 90, 80, 30, 70, 60, 50, 40)
	got := TopPercentile(frames, 30) // keep 3

	if len(got) != 3 {
		t.Fatalf("got %d frames, want 3", len(got))
	}
	wantIdx := []int{1, 3, 4} // 90, 90 (earlier first), 80
	for i, f := range got {
		if idx := indexOf(t, f); idx != wantIdx[i] {
			t.Errorf("pick %d = index %d, want %d", i, idx, wantIdx[i])
		}
	}
}

// TestBestNGapInvariant tests that every pair of picks is at least
// minGap indices apart, across a range of shapes.
func TestBestNGapInvariant(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		frames int
		n      int
		minGap int
	}{
		{name: "comfortable", frames: 100, n: 10, minGap: 5},
		{name: "tight", frames: 50, n: 10, minGap: 5},
		{name: "exact fit", frames: 50, n: 10, minGap: 4},
		{name: "single", frames: 30, n: 1, minGap: 10},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			scores := make([]float64, tt.frames)
			for i := range scores {
				// Deterministic but uneven score surface.
				scores[i] = 50 + 40*math.Sin(float64(i)*0.7)
			}

			got := BestN(makeFrames(scores...), tt.n, tt.minGap)
			if len(got) == 0 || len(got) > tt.n {
				t.Fatalf("got %d picks, want 1..%d", len(got), tt.n)
			}

			prev := -1
			for _, f := range got {
				f := f
				idx := indexOf(t, f)
				if prev >= 0 {
					if idx <= prev {
						t.Fatalf("picks not in index order: %d after %d", idx, prev)
					}
					if idx-prev < tt.minGap {
						t.Fatalf("gap violation: indices %d and %d closer than %d", prev, idx, tt.minGap)
					}
				}
				prev = idx
			}
		})
	}
}

// TestBestNUnderFill tests that an unreachable n under-fills instead of
// violating the gap.
func TestBestNUnderFill(t *testing.T) {
	t.Parallel()

	got := BestN(uniformFrames(10, 50), 5, 10)
	if len(got) != 1 {
		t.Errorf("10 frames with gap 10 should yield 1 pick, got %d", len(got))
	}
}

// TestBestNClampToLength tests n larger than the input.
func TestBestNClampToLength(t *testing.T) {
	t.Parallel()

	got := BestN(uniformFrames(3, 50), 10, 0)
	if len(got) != 3 {
		t.Errorf("got %d picks, want all 3", len(got))
	}
}

// TestScoredFilter tests that unscored frames are invisible to the
// algorithms.
func TestScoredFilter(t *testing.T) {
	t.Parallel()

	frames := makeFrames(10, 20, 30)
	frames = append(frames, frame.Frame{ID: frame.ID("test", 3)}) // unscored

	scored := Scored(frames)
	if len(scored) != 3 {
		t.Fatalf("Scored kept %d frames, want 3", len(scored))
	}
	for _, f := range scored {
		if !f.Scored() {
			t.Errorf("unscored frame %s leaked through", f.ID)
		}
	}
}

// TestApplyUnionsManualPicks tests that manual selections always
// survive and duplicates collapse.
func TestApplyUnionsManualPicks(t *testing.T) {
	t.Parallel()

	frames := makeFrames(10, 90, 20, 30, 40, 80, 15, 10, 5, 5)
	frames[2].Selected = true // low score, manual pick
	frames[1].Selected = true // also wins its batch, must not duplicate

	state := frame.DefaultSelectionState()
	state.Mode = frame.SelectionBatched
	state.BatchSize = 5

	got := Apply(frames, state)

	seen := map[string]int{}
	for _, f := range got {
		seen[f.ID]++
	}
	for id, n := range seen {
		if n > 1 {
			t.Errorf("frame %s appears %d times", id, n)
		}
	}
	if _, ok := seen[frames[2].ID]; !ok {
		t.Error("manual pick dropped from result")
	}
	if _, ok := seen[frames[1].ID]; !ok {
		t.Error("batch winner missing from result")
	}

	// Result must preserve original order.
	prev := -1
	for _, f := range got {
		idx := indexOf(t, f)
		if idx <= prev {
			t.Fatalf("result out of order: %d after %d", idx, prev)
		}
		prev = idx
	}
}

// TestApplyManualMode tests that manual mode returns only manual picks.
func TestApplyManualMode(t *testing.T) {
	t.Parallel()

	frames := makeFrames(90, 80, 70)
	frames[2].Selected = true

	got := Apply(frames, frame.DefaultSelectionState())
	if len(got) != 1 {
		t.Fatalf("manual mode returned %d frames, want 1", len(got))
	}
	if got[0].ID != frames[2].ID {
		t.Errorf("wrong frame selected: %s", got[0].ID)
	}
}
