package extract

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyWindow is returned when the clamped extraction window and fps
// yield zero frames.
var ErrEmptyWindow = errors.New("extraction window contains no frames")

// CapabilityError classifies codec, track, and decoder-initialization
// failures. The pipeline extractor surfaces it to trigger a one-time
// fallback to seek-and-grab; the reason string is shown to the caller.
type CapabilityError struct {
	Reason string
	Err    error
}

func (e *CapabilityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *CapabilityError) Unwrap() error {
	return e.Err
}

// IsCapabilityError reports whether err carries a CapabilityError.
func IsCapabilityError(err error) bool {
	var ce *CapabilityError
	return errors.As(err, &ce)
}

// capabilityReason extracts the human-readable reason, or "" when err
// is not a capability failure.
func capabilityReason(err error) string {
	var ce *CapabilityError
	if errors.As(err, &ce) {
		return ce.Reason
	}
	return ""
}

// classifyDecoderStderr maps known ffmpeg failure messages onto the
// capability taxonomy. Anything unrecognized is left as a plain error
// (treated as a per-timestamp transient by the caller).
func classifyDecoderStderr(stderr string, err error) error {
	lower := strings.ToLower(stderr)
	for _, marker := range []string{
		"decoder not found",
		"no decoder",
		"could not find codec",
		"codec not currently supported",
		"moov atom not found",
		"invalid data found when processing input",
		"does not contain any stream",
	} {
		if strings.Contains(lower, marker) {
			return &CapabilityError{
				Reason: "decoder rejected source: " + marker,
				Err:    err,
			}
		}
	}
	return err
}
