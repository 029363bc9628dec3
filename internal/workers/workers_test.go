package workers

import (
	"runtime"
	"testing"
)

// TestCount tests multiplier and limit behavior.
func TestCount(t *testing.T) {
	available := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		multiplier float64
		limit      int
		want       int
	}{
		{name: "cpu bound", multiplier: 1.0, limit: 0, want: available},
		{name: "io bound", multiplier: 2.0, limit: 0, want: available * 2},
		{name: "limit caps", multiplier: 2.0, limit: 1, want: 1},
		{name: "tiny multiplier floors to one", multiplier: 0.001, limit: 0, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Count(tt.multiplier, tt.limit); got != tt.want {
				t.Errorf("Count(%v, %d) = %d, want %d", tt.multiplier, tt.limit, got, tt.want)
			}
		})
	}
}

// TestCountEnvOverride tests the FRAMEPICK_WORKERS override.
func TestCountEnvOverride(t *testing.T) {
	t.Setenv("FRAMEPICK_WORKERS", "7")

	if got := Count(1.0, 0); got != 7 {
		t.Errorf("override ignored: got %d, want 7", got)
	}
	if got := Count(1.0, 3); got != 3 {
		t.Errorf("limit should cap the override: got %d, want 3", got)
	}
}

// TestCountEnvInvalid tests that garbage overrides fall through.
func TestCountEnvInvalid(t *testing.T) {
	t.Setenv("FRAMEPICK_WORKERS", "banana")

	want := runtime.GOMAXPROCS(0)
	if got := Count(1.0, 0); got != want {
		t.Errorf("invalid override changed count: got %d, want %d", got, want)
	}
}

// TestHelpers tests the named pool sizers agree with Count.
func TestHelpers(t *testing.T) {
	if ForCPU(0) != Count(1.0, 0) {
		t.Error("ForCPU disagrees with Count")
	}
	if ForIO(0) != Count(2.0, 0) {
		t.Error("ForIO disagrees with Count")
	}
	if ForMixed(0) != Count(1.5, 0) {
		t.Error("ForMixed disagrees with Count")
	}
	if ForIO(4) > 4 {
		t.Error("ForIO ignored its limit")
	}
}
