package extract

import (
	"context"
	"errors"

	"framepick/internal/frame"
	"framepick/internal/logging"
	"framepick/internal/metrics"
)

// ClearingSink is a Sink whose contents can be wiped. Each extraction
// run clears it first: the store is single-writer and a new run must
// never interleave with a previous run's draining writes.
type ClearingSink interface {
	Sink
	Clear(ctx context.Context) error
}

// Result reports a completed extraction run.
type Result struct {
	Frames         []frame.Frame
	Method         Method
	FallbackReason string
}

// Runner selects a strategy and runs the matching extractor, falling
// back from the pipeline to seek-and-grab exactly once when the
// pipeline reports a capability failure.
type Runner struct {
	caps     Capabilities
	prober   HeaderProber
	pipeline Extractor
	seek     Extractor
}

// NewRunner wires the strategy inputs and both implementations.
func NewRunner(caps Capabilities, prober HeaderProber, pipeline, seek Extractor) *Runner {
	return &Runner{caps: caps, prober: prober, pipeline: pipeline, seek: seek}
}

// Run executes one extraction. Cancellation is returned as ctx.Err();
// everything committed before the cancellation was observed remains in
// the sink.
func (r *Runner) Run(ctx context.Context, req *Request, sink ClearingSink) (*Result, error) {
	if err := sink.Clear(ctx); err != nil {
		return nil, err
	}

	strategy := SelectStrategy(ctx, req.VideoPath, r.caps, r.prober)

	if strategy.Method == MethodPipeline {
		frames, err := r.pipeline.Extract(ctx, req, sink)
		switch {
		case err == nil:
			return &Result{Frames: frames, Method: MethodPipeline}, nil
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return &Result{Frames: frames, Method: MethodPipeline}, err
		case IsCapabilityError(err):
			// One-time whole-run fallback: wipe the partial pipeline
			// output and redo everything with the seek path.
			reason := capabilityReason(err)
			logging.Warn("Pipeline extraction failed (%s), falling back to seek-and-grab", reason)
			metrics.ExtractionFallbacksTotal.Inc()
			strategy = Strategy{Method: MethodSeek, FallbackReason: reason}
			if err := sink.Clear(ctx); err != nil {
				return nil, err
			}
		default:
			return nil, err
		}
	}

	frames, err := r.seek.Extract(ctx, req, sink)
	result := &Result{Frames: frames, Method: MethodSeek, FallbackReason: strategy.FallbackReason}
	if err != nil {
		return result, err
	}
	return result, nil
}
