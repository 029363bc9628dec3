package frame

import (
	"strings"
	"testing"
)

// TestParseFormat tests format string normalization.
func TestParseFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    Format
		wantErr bool
	}{
		{name: "jpeg", input: "jpeg", want: FormatJPEG},
		{name: "jpg alias", input: "jpg", want: FormatJPEG},
		{name: "png", input: "png", want: FormatPNG},
		{name: "unknown", input: "webp", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "case sensitive", input: "JPEG", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseFormat(%q) = %v, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFormat(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// TestFormatExt tests extension and MIME type mapping.
func TestFormatExt(t *testing.T) {
	t.Parallel()

	if got := FormatJPEG.Ext(); got != ".jpg" {
		t.Errorf("jpeg ext = %q, want .jpg", got)
	}
	if got := FormatPNG.Ext(); got != ".png" {
		t.Errorf("png ext = %q, want .png", got)
	}
	if got := FormatJPEG.MIMEType(); got != "image/jpeg" {
		t.Errorf("jpeg mime = %q", got)
	}
	if got := FormatPNG.MIMEType(); got != "image/png" {
		t.Errorf("png mime = %q", got)
	}
	if !FormatJPEG.Valid() || !FormatPNG.Valid() {
		t.Error("supported formats should be valid")
	}
	if Format("gif").Valid() {
		t.Error("gif should not be valid")
	}
}

// TestID tests that frame identifiers sort in extraction order.
func TestID(t *testing.T) {
	t.Parallel()

	session := "abc123"
	prev := ""
	for i := 0; i < 150; i++ {
		id := ID(session, i)
		if !strings.HasPrefix(id, session+"-") {
			t.Fatalf("ID %q missing session prefix", id)
		}
		if prev != "" && id <= prev {
			t.Fatalf("ID %q does not sort after %q", id, prev)
		}
		prev = id
	}
}

// TestFrameScore tests the nil-score accessors.
func TestFrameScore(t *testing.T) {
	t.Parallel()

	var f Frame
	if f.Scored() {
		t.Error("new frame should be unscored")
	}
	if f.Score() != 0 {
		t.Errorf("unscored frame score = %v, want 0", f.Score())
	}

	f.SetScore(42.5)
	if !f.Scored() {
		t.Error("frame should be scored after SetScore")
	}
	if f.Score() != 42.5 {
		t.Errorf("score = %v, want 42.5", f.Score())
	}
}

// TestDefaultSelectionState tests the defaults used before any user input.
func TestDefaultSelectionState(t *testing.T) {
	t.Parallel()

	s := DefaultSelectionState()
	if s.Mode != SelectionManual {
		t.Errorf("default mode = %v, want manual", s.Mode)
	}
	if s.BatchSize != 5 || s.BatchBuffer != 0 {
		t.Errorf("default batch = %d/%d, want 5/0", s.BatchSize, s.BatchBuffer)
	}
	if s.BestNCount != 10 || s.BestNMinGap != 5 {
		t.Errorf("default best-n = %d gap %d, want 10 gap 5", s.BestNCount, s.BestNMinGap)
	}
	if s.PercentageThreshold != 25 {
		t.Errorf("default percentile = %v, want 25", s.PercentageThreshold)
	}
}
