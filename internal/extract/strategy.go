package extract

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"framepick/internal/logging"
	"framepick/internal/media"
)

// Method names an extraction implementation.
type Method string

const (
	// MethodPipeline is the batch decode path.
	MethodPipeline Method = "pipeline"
	// MethodSeek is the per-timestamp seek-and-grab fallback.
	MethodSeek Method = "seek"
)

// probePrefixBytes is how much of the file the compatibility probe
// reads. Enough for the container header and track table.
const probePrefixBytes = 64 * 1024

// Capabilities describes the ambient platform: whether the pipeline
// decoder is present at all, and which codecs it is trusted with.
type Capabilities struct {
	PipelineAvailable bool
	AllowedCodecs     map[string]bool
}

// DetectCapabilities inspects the environment once at startup.
func DetectCapabilities() Capabilities {
	_, err := exec.LookPath("ffmpeg")
	return Capabilities{
		PipelineAvailable: err == nil,
		AllowedCodecs:     defaultAllowedCodecs(),
	}
}

func defaultAllowedCodecs() map[string]bool {
	return map[string]bool{
		"h264":  true,
		"hevc":  true,
		"vp8":   true,
		"vp9":   true,
		"av1":   true,
		"mpeg4": true,
	}
}

// HeaderProber opens only the head of a file, cheap enough to run
// before every extraction.
type HeaderProber interface {
	ProbePrefix(ctx context.Context, path string, maxBytes int64) (*media.Info, error)
}

// Strategy is the outcome of strategy selection. FallbackReason is
// empty when the pipeline method was chosen.
type Strategy struct {
	Method         Method
	FallbackReason string
}

// SelectStrategy decides which extractor runs for one video. Pipeline
// decode is selected only if the decoder exists, the codec is
// allow-listed, and a lightweight probe of the first few KB opens the
// container, finds a video track, and reports a positive duration. Any
// probe failure yields the seek method with a recorded reason. The
// function has no side effects beyond the probe and never touches the
// store.
func SelectStrategy(ctx context.Context, path string, caps Capabilities, prober HeaderProber) Strategy {
	if !caps.PipelineAvailable {
		return seekFallback("pipeline decoder not available")
	}

	info, err := prober.ProbePrefix(ctx, path, probePrefixBytes)
	if err != nil {
		return seekFallback(fmt.Sprintf("compatibility probe failed: %v", err))
	}
	if info.Duration <= 0 {
		return seekFallback("probe reported zero duration")
	}
	if !caps.AllowedCodecs[info.Codec] {
		return seekFallback(fmt.Sprintf("codec %q not on pipeline allow-list", info.Codec))
	}

	logging.Debug("Strategy: pipeline decode (codec=%s, duration=%v)", info.Codec, info.Duration)
	return Strategy{Method: MethodPipeline}
}

func seekFallback(reason string) Strategy {
	logging.Info("Strategy: seek-and-grab (%s)", reason)
	return Strategy{Method: MethodSeek, FallbackReason: reason}
}

// clampWindow bounds [start, end) to the source duration.
func clampWindow(start, end, duration time.Duration) (time.Duration, time.Duration) {
	if start < 0 {
		start = 0
	}
	if end <= 0 || end > duration {
		end = duration
	}
	if end < start {
		end = start
	}
	return start, end
}
