package extract

import (
	"context"
	"fmt"
	"math"
	"time"

	"framepick/internal/frame"
	"framepick/internal/media"
)

// defaultBatchSize is how many frames are decoded, encoded, and
// committed together. Bounds peak memory: at most one batch of raster
// surfaces is alive at a time.
const defaultBatchSize = 20

// Request describes one extraction run.
type Request struct {
	VideoPath string
	SessionID string

	// FPS is the sampling rate within the window.
	FPS float64

	// Format is the output encoding for extracted frames.
	Format frame.Format

	// Start and End bound the extraction window; they are clamped to
	// [0, Info.Duration]. End <= 0 means "to the end of the source".
	Start time.Duration
	End   time.Duration

	// Info is the probed source metadata.
	Info *media.Info

	// BatchSize overrides the store batch size (0 = default).
	BatchSize int

	// OnProgress, if set, receives a snapshot after every committed
	// batch and every skipped timestamp.
	OnProgress frame.ProgressFunc

	// SourceFrameNumbers switches exported frame naming from the
	// sequential index to round(timestamp * source fps), so names match
	// the original source's frame numbers.
	SourceFrameNumbers bool
}

func (r *Request) batchSize() int {
	if r.BatchSize > 0 {
		return r.BatchSize
	}
	return defaultBatchSize
}

// timestamps computes the sampling plan for the clamped window. It
// fails fast when the window and fps yield no frames.
func (r *Request) timestamps() ([]time.Duration, error) {
	if r.Info == nil {
		return nil, fmt.Errorf("extraction request missing probed source info")
	}
	if r.FPS <= 0 {
		return nil, fmt.Errorf("invalid extraction fps %v", r.FPS)
	}

	start, end := clampWindow(r.Start, r.End, r.Info.Duration)
	window := end - start

	count := int(math.Floor(window.Seconds() * r.FPS))
	if count <= 0 {
		return nil, ErrEmptyWindow
	}

	step := time.Duration(float64(time.Second) / r.FPS)
	out := make([]time.Duration, count)
	for i := range out {
		out[i] = start + time.Duration(i)*step
	}
	return out, nil
}

// frameName formats the export filename for the frame at plan index i
// with timestamp ts.
func (r *Request) frameName(i int, ts time.Duration) string {
	number := i
	if r.SourceFrameNumbers && r.Info != nil && r.Info.FPS > 0 {
		number = int(math.Round(ts.Seconds() * r.Info.FPS))
	}
	return fmt.Sprintf("frame_%05d%s", number, r.Format.Ext())
}

// Sink receives committed frame batches. *store.Store satisfies it.
type Sink interface {
	PutBatch(ctx context.Context, frames []frame.StoredFrame) error
}

// Extractor is the contract both implementations share: produce frames
// for the request, writing through the sink in bounded batches,
// reporting progress after every batch and every skipped timestamp, and
// honoring ctx cancellation between frames without committing a partial
// batch.
type Extractor interface {
	Extract(ctx context.Context, req *Request, sink Sink) ([]frame.Frame, error)
	Method() Method
}
