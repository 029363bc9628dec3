package extract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os/exec"
	"sync"
	"time"

	"framepick/internal/logging"
	"framepick/internal/workers"
)

// BatchDecoder is the pipeline decode capability: retrieve decoded
// frames for a batch of timestamps in one pass. The returned slice is
// aligned with the input; a nil entry means no frame was available at
// that timestamp.
type BatchDecoder interface {
	DecodeBatch(ctx context.Context, path string, timestamps []time.Duration) ([]image.Image, error)
}

// Grabber is the seek-and-grab capability: position the source at a
// timestamp and draw the current frame. The returned duration is where
// the seek actually landed.
type Grabber interface {
	Grab(ctx context.Context, path string, ts time.Duration) (image.Image, time.Duration, error)
}

// FFmpegDecoder implements BatchDecoder with bounded parallel ffmpeg
// grabs.
type FFmpegDecoder struct {
	parallelism int
}

// NewFFmpegDecoder returns a decoder, or an error when ffmpeg is not on
// PATH (a decoder-initialization failure in the capability taxonomy).
func NewFFmpegDecoder() (*FFmpegDecoder, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, &CapabilityError{Reason: "ffmpeg not found", Err: err}
	}
	return &FFmpegDecoder{parallelism: workers.ForMixed(8)}, nil
}

// DecodeBatch grabs every timestamp in parallel. Capability failures
// abort the batch; a timestamp that simply yields no frame stays nil.
func (d *FFmpegDecoder) DecodeBatch(ctx context.Context, path string, timestamps []time.Duration) ([]image.Image, error) {
	out := make([]image.Image, len(timestamps))
	errs := make([]error, len(timestamps))

	sem := make(chan struct{}, d.parallelism)
	var wg sync.WaitGroup

	for i, ts := range timestamps {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(i int, ts time.Duration) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			img, err := grabFrame(ctx, path, ts)
			out[i], errs[i] = img, err
		}(i, ts)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i, err := range errs {
		if err == nil {
			continue
		}
		if IsCapabilityError(err) {
			return nil, err
		}
		// Transient: leave the slot nil and keep the batch.
		logging.Debug("no frame at %v: %v", timestamps[i], err)
	}

	return out, nil
}

// FFmpegGrabber implements Grabber with one ffmpeg invocation per
// timestamp.
type FFmpegGrabber struct{}

// NewFFmpegGrabber returns a grabber, or an error when ffmpeg is not on
// PATH.
func NewFFmpegGrabber() (*FFmpegGrabber, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}
	return &FFmpegGrabber{}, nil
}

// Grab seeks to ts and decodes one frame. ffmpeg's output seek is
// exact, so the landed time is the requested time whenever a frame
// comes back.
func (g *FFmpegGrabber) Grab(ctx context.Context, path string, ts time.Duration) (image.Image, time.Duration, error) {
	img, err := grabFrame(ctx, path, ts)
	if err != nil {
		return nil, 0, err
	}
	if img == nil {
		return nil, 0, fmt.Errorf("no frame available at %v", ts)
	}
	return img, ts, nil
}

// grabFrame decodes the single frame nearest ts. A clean run with no
// output means the timestamp is past the last frame; callers treat the
// nil image as "unavailable".
func grabFrame(ctx context.Context, path string, ts time.Duration) (image.Image, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-ss", formatTimestamp(ts),
		"-i", path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, classifyDecoderStderr(stderr.String(), fmt.Errorf("ffmpeg grab failed: %w", err))
	}

	if stdout.Len() == 0 {
		return nil, nil
	}

	img, _, err := image.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to decode grabbed frame: %w", err)
	}
	return img, nil
}

// formatTimestamp renders a duration as ffmpeg's seconds syntax.
func formatTimestamp(ts time.Duration) string {
	return fmt.Sprintf("%.3f", ts.Seconds())
}
