// Package workers sizes bounded worker pools for the pipeline's
// parallel stages (batch encoding, scoring, background thumbnails).
package workers

import (
	"os"
	"runtime"
	"strconv"
)

// Count returns the worker count for a given task type. It respects
// container CPU limits via GOMAXPROCS (Go 1.19+).
//
// The multiplier adjusts for task characteristics:
//   - 1.0 for CPU-bound tasks (encoding, scoring)
//   - 2.0 for I/O-bound tasks (store writes, thumbnail loads)
//   - 1.5 for mixed tasks
//
// The limit parameter caps the worker count; 0 means no cap.
//
// Can be overridden with the FRAMEPICK_WORKERS environment variable.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv("FRAMEPICK_WORKERS"); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if limit > 0 && count > limit {
				return limit
			}
			return count
		}
	}

	available := runtime.GOMAXPROCS(0)

	count := int(float64(available) * multiplier)
	if count < 1 {
		count = 1
	}
	if limit > 0 && count > limit {
		count = limit
	}

	return count
}

// ForCPU returns the worker count for CPU-bound tasks (1 per CPU).
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO returns the worker count for I/O-bound tasks (2 per CPU).
func ForIO(limit int) int {
	return Count(2.0, limit)
}

// ForMixed returns the worker count for mixed tasks (1.5 per CPU).
func ForMixed(limit int) int {
	return Count(1.5, limit)
}
