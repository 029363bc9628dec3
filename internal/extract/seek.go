package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"framepick/internal/frame"
	"framepick/internal/logging"
	"framepick/internal/media"
	"framepick/internal/metrics"
	"framepick/internal/retry"
)

// errSeekStuck marks a grab whose landed position did not advance past
// the previous successful grab. Retried, then skipped.
var errSeekStuck = errors.New("seek position did not advance")

// SeekExtractor is the fallback path: seek to each timestamp and grab
// the current frame. Per-timestamp failures are retried with short
// backoff and then skipped; they never fail the run and never trigger a
// second-level fallback.
type SeekExtractor struct {
	grabber Grabber
	policy  retry.Policy
}

// NewSeekExtractor wires the grabber with the shared transient retry
// policy (3 attempts, 50ms backoff).
func NewSeekExtractor(grabber Grabber) *SeekExtractor {
	return &SeekExtractor{grabber: grabber, policy: retry.Default()}
}

// Method identifies the seek implementation.
func (e *SeekExtractor) Method() Method {
	return MethodSeek
}

// Extract walks the plan one timestamp at a time, committing in bounded
// batches.
func (e *SeekExtractor) Extract(ctx context.Context, req *Request, sink Sink) ([]frame.Frame, error) {
	plan, err := req.timestamps()
	if err != nil {
		return nil, err
	}

	tracker := frame.NewTracker(len(plan), req.OnProgress)
	start := time.Now()
	batchSize := req.batchSize()

	var (
		out        []frame.Frame
		pending    []frame.StoredFrame
		lastLanded = time.Duration(-1)
	)

	flush := func(processed int) error {
		if len(pending) == 0 {
			tracker.Set(processed)
			return nil
		}
		if err := sink.PutBatch(ctx, pending); err != nil {
			return fmt.Errorf("failed to commit frame batch: %w", err)
		}
		for i := range pending {
			out = append(out, pending[i].Frame)
		}
		metrics.ExtractionFramesTotal.WithLabelValues(string(MethodSeek)).Add(float64(len(pending)))
		metrics.ExtractionBatchesTotal.WithLabelValues(string(MethodSeek)).Inc()
		pending = pending[:0]
		tracker.Set(processed)
		return nil
	}

	skip := func(ts time.Duration, reason error) {
		metrics.ExtractionSkippedTimestamps.WithLabelValues(string(MethodSeek)).Inc()
		logging.Debug("skipping timestamp %v: %v", ts, reason)
		tracker.Add(1)
	}

	for i, ts := range plan {
		// Cancellation discards the uncommitted tail of the batch.
		if err := ctx.Err(); err != nil {
			return out, err
		}

		var (
			data   []byte
			landed time.Duration
		)
		err := e.policy.Do(ctx, "seek_grab", func() error {
			img, l, gerr := e.grabber.Grab(ctx, req.VideoPath, ts)
			if gerr != nil {
				return gerr
			}
			if l == lastLanded {
				return errSeekStuck
			}
			encoded, eerr := media.Encode(img, req.Format)
			if eerr != nil {
				return eerr
			}
			data, landed = encoded, l
			return nil
		}, nil)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			skip(ts, err)
			continue
		}
		lastLanded = landed

		f := frame.Frame{
			ID:        frame.ID(req.SessionID, i),
			Name:      req.frameName(i, ts),
			Format:    req.Format,
			Timestamp: ts,
		}
		pending = append(pending, frame.StoredFrame{Frame: f, Data: data})

		if len(pending) >= batchSize {
			if err := flush(i + 1); err != nil {
				return out, err
			}
		}
	}

	if err := flush(len(plan)); err != nil {
		return out, err
	}

	metrics.ExtractionDuration.WithLabelValues(string(MethodSeek)).Observe(time.Since(start).Seconds())
	logging.Info("Seek extraction complete: %d/%d frames in %v", len(out), len(plan), time.Since(start))
	return out, nil
}
