package frame

// SelectionMode names the active frame selection algorithm.
type SelectionMode string

const (
	SelectionManual        SelectionMode = "manual"
	SelectionBatched       SelectionMode = "batched"
	SelectionBestN         SelectionMode = "best-n"
	SelectionTopPercentile SelectionMode = "top-percentile"
)

// SelectionState holds the per-session selection parameters. It is
// created with defaults at session start, mutated by user input, and
// never persisted.
type SelectionState struct {
	Mode SelectionMode `json:"mode"`

	// Batched mode: keep the best frame out of every BatchSize frames,
	// then skip BatchBuffer frames before the next window.
	BatchSize   int `json:"batchSize"`
	BatchBuffer int `json:"batchBuffer"`

	// Best-N mode: pick BestNCount frames at least BestNMinGap indices
	// apart.
	BestNCount  int `json:"bestNCount"`
	BestNMinGap int `json:"bestNMinGap"`

	// Top-percentile mode: keep the sharpest PercentageThreshold
	// percent of frames.
	PercentageThreshold float64 `json:"percentageThreshold"`
}

// DefaultSelectionState returns the session-start defaults.
func DefaultSelectionState() SelectionState {
	return SelectionState{
		Mode:                SelectionManual,
		BatchSize:           5,
		BatchBuffer:         0,
		BestNCount:          10,
		BestNMinGap:         5,
		PercentageThreshold: 25,
	}
}
