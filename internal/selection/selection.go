// Package selection implements the automatic frame selection
// algorithms. All functions are pure: they never mutate their input and
// depend only on frame order and sharpness scores.
//
// Unscored frames are invisible to every algorithm. The result of an
// algorithm is always unioned with manually selected frames and
// de-duplicated by id.
package selection

import (
	"math"
	"sort"

	"framepick/internal/frame"
)

// Apply runs the algorithm named by state over frames (in extraction
// order) and unions the result with manual picks.
func Apply(frames []frame.Frame, state frame.SelectionState) []frame.Frame {
	scored := Scored(frames)

	var auto []frame.Frame
	switch state.Mode {
	case frame.SelectionBatched:
		auto = Batched(scored, state.BatchSize, state.BatchBuffer)
	case frame.SelectionBestN:
		auto = BestN(scored, state.BestNCount, state.BestNMinGap)
	case frame.SelectionTopPercentile:
		auto = TopPercentile(scored, state.PercentageThreshold)
	}

	return union(frames, auto)
}

// Scored filters frames down to those with a sharpness score, keeping
// order.
func Scored(frames []frame.Frame) []frame.Frame {
	out := make([]frame.Frame, 0, len(frames))
	for _, f := range frames {
		if f.Scored() {
			out = append(out, f)
		}
	}
	return out
}

// Batched partitions frames into non-overlapping windows of batchSize
// frames followed by batchBuffer skipped frames and keeps the single
// highest-scoring frame per window (ties go to the first occurrence).
// This deliberately spreads selections across time rather than taking a
// global top-K.
func Batched(frames []frame.Frame, batchSize, batchBuffer int) []frame.Frame {
	if batchSize <= 0 || len(frames) == 0 {
		return nil
	}
	if batchBuffer < 0 {
		batchBuffer = 0
	}

	stride := batchSize + batchBuffer
	var out []frame.Frame

	for start := 0; start < len(frames); start += stride {
		end := start + batchSize
		if end > len(frames) {
			end = len(frames)
		}

		best := start
		for i := start + 1; i < end; i++ {
			if frames[i].Score() > frames[best].Score() {
				best = i
			}
		}
		out = append(out, frames[best])
	}

	return out
}

// TopPercentile keeps the sharpest ceil(len*threshold/100) frames.
// Ties at the cutoff resolve by stable sort order, so earlier frames
// win among equals.
func TopPercentile(frames []frame.Frame, threshold float64) []frame.Frame {
	if len(frames) == 0 || threshold <= 0 {
		return nil
	}
	if threshold > 100 {
		threshold = 100
	}

	keep := int(math.Ceil(float64(len(frames)) * threshold / 100))

	byScore := make([]frame.Frame, len(frames))
	copy(byScore, frames)
	sort.SliceStable(byScore, func(i, j int) bool {
		return byScore[i].Score() > byScore[j].Score()
	})

	return byScore[:keep]
}

// BestN picks up to n frames at least minGap indices apart, balancing
// sharpness against temporal spread. Under-fill is possible when minGap
// is too large for the requested n; that is not an error.
func BestN(frames []frame.Frame, n, minGap int) []frame.Frame {
	if n <= 0 || len(frames) == 0 {
		return nil
	}
	if n > len(frames) {
		n = len(frames)
	}
	if minGap < 0 {
		minGap = 0
	}

	selected := make([]int, 0, n)

	// Phase 1: one pick per contiguous segment, best score first,
	// respecting the gap against everything already chosen.
	segSize := int(math.Ceil(float64(len(frames)) / float64(n)))
	for start := 0; start < len(frames) && len(selected) < n; start += segSize {
		end := start + segSize
		if end > len(frames) {
			end = len(frames)
		}

		best := -1
		for i := start; i < end; i++ {
			if !gapOK(i, selected, minGap) {
				continue
			}
			if best == -1 || frames[i].Score() > frames[best].Score() {
				best = i
			}
		}
		if best >= 0 {
			selected = append(selected, best)
		}
	}

	// Phase 2: greedy fill with a composite of sharpness and
	// distribution quality until n are chosen or no eligible candidate
	// remains.
	for len(selected) < n {
		best, bestScore := -1, -1.0
		segment := float64(len(frames)) / float64(len(selected)+1)

		for i := range frames {
			if contains(selected, i) || !gapOK(i, selected, minGap) {
				continue
			}
			s := 0.7*frames[i].Score()/100 + 0.3*distributionScore(i, selected, minGap, segment)
			if s > bestScore {
				best, bestScore = i, s
			}
		}

		if best == -1 {
			break // minGap makes n unreachable; under-fill
		}
		selected = append(selected, best)
	}

	sort.Ints(selected)
	out := make([]frame.Frame, len(selected))
	for i, idx := range selected {
		out[i] = frames[idx]
	}
	return out
}

// distributionScore rewards distance from the nearest already-selected
// index (normalized and capped at minGap) and proximity to an ideal
// evenly-spaced position for the current selection count.
func distributionScore(i int, selected []int, minGap int, segment float64) float64 {
	spread := 1.0
	if len(selected) > 0 && minGap > 0 {
		nearest := math.MaxInt
		for _, j := range selected {
			if d := abs(i - j); d < nearest {
				nearest = d
			}
		}
		if nearest > minGap {
			nearest = minGap
		}
		spread = float64(nearest) / float64(minGap)
	}

	ideal := 1.0
	if segment > 0 {
		pos := float64(i)
		nearestIdeal := math.Round(pos/segment) * segment
		dist := math.Abs(pos - nearestIdeal)
		if dist > segment {
			dist = segment
		}
		ideal = 1 - dist/segment
	}

	return 0.5*spread + 0.5*ideal
}

func gapOK(i int, selected []int, minGap int) bool {
	for _, j := range selected {
		if abs(i-j) < minGap {
			return false
		}
	}
	return true
}

// union merges algorithmic picks with manual selections, de-duplicated
// by id, in the original frame order.
func union(all, auto []frame.Frame) []frame.Frame {
	keep := make(map[string]struct{}, len(auto))
	for _, f := range auto {
		keep[f.ID] = struct{}{}
	}

	var out []frame.Frame
	for _, f := range all {
		_, picked := keep[f.ID]
		if picked || f.Selected {
			out = append(out, f)
		}
	}
	return out
}

func contains(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
