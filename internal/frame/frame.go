package frame

import (
	"fmt"
	"time"
)

// Format identifies the raster encoding used for extracted frames.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

// Ext returns the filename extension for the format, including the dot.
func (f Format) Ext() string {
	switch f {
	case FormatPNG:
		return ".png"
	default:
		return ".jpg"
	}
}

// MIMEType returns the MIME type for the format.
func (f Format) MIMEType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	default:
		return "image/jpeg"
	}
}

// Valid reports whether f is one of the supported encodings.
func (f Format) Valid() bool {
	return f == FormatJPEG || f == FormatPNG
}

// ParseFormat normalizes a user-supplied format string.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	default:
		return "", fmt.Errorf("unsupported frame format %q (want jpeg or png)", s)
	}
}

// Frame is the in-memory view of an extracted frame. The full encoded
// payload lives in the store, not here; Timestamp is relative to the
// start of the source video.
type Frame struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Format    Format        `json:"format"`
	Timestamp time.Duration `json:"timestamp"`

	// SharpnessScore is nil until the frame has been scored. Unscored
	// frames are excluded from every automatic selection algorithm.
	SharpnessScore *float64 `json:"sharpnessScore,omitempty"`

	// Selected is the manual override flag, independent of any
	// algorithmic selection.
	Selected bool `json:"selected"`
}

// Scored reports whether a sharpness score has been attached.
func (f *Frame) Scored() bool {
	return f.SharpnessScore != nil
}

// Score returns the sharpness score, or 0 if the frame is unscored.
func (f *Frame) Score() float64 {
	if f.SharpnessScore == nil {
		return 0
	}
	return *f.SharpnessScore
}

// SetScore attaches a sharpness score to the frame.
func (f *Frame) SetScore(score float64) {
	f.SharpnessScore = &score
}

// StoredFrame is the persisted superset of Frame: the full encoded
// payload plus the wall-clock insert time used by age-based sweeps.
type StoredFrame struct {
	Frame
	Data     []byte    `json:"-"`
	StoredAt time.Time `json:"storedAt"`
}

// ID formats a stable frame identifier. Zero-padding keeps string
// ordering identical to extraction order within a session.
func ID(session string, index int) string {
	return fmt.Sprintf("%s-%06d", session, index)
}
