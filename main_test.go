package main

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// TestFinish tests that a shutdown-cancelled stage exits clean while a
// real failure reports exit code 1.
func TestFinish(t *testing.T) {
	if got := finish("Extraction", context.Canceled); got != 0 {
		t.Errorf("cancellation exit code = %d, want 0", got)
	}

	wrapped := fmt.Errorf("decode loop: %w", context.Canceled)
	if got := finish("Extraction", wrapped); got != 0 {
		t.Errorf("wrapped cancellation exit code = %d, want 0", got)
	}

	if got := finish("Extraction", errors.New("no such file")); got != 1 {
		t.Errorf("failure exit code = %d, want 1", got)
	}
}

// TestBaseName tests archive base name derivation from a video path.
func TestBaseName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "/videos/clip.mp4", want: "clip"},
		{path: "clip.mkv", want: "clip"},
		{path: "/videos/no_ext", want: "no_ext"},
		{path: "a.b.c.mov", want: "a.b.c"},
	}
	for _, tt := range tests {
		if got := baseName(tt.path); got != tt.want {
			t.Errorf("baseName(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
