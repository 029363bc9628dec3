package extract

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"framepick/internal/frame"
	"framepick/internal/logging"
	"framepick/internal/media"
	"framepick/internal/memory"
	"framepick/internal/metrics"
	"framepick/internal/workers"
)

// PipelineExtractor is the batch decode path: decode a batch of
// timestamps, encode the rasters in parallel, commit the batch as one
// store transaction, release, repeat.
type PipelineExtractor struct {
	decoder BatchDecoder
	monitor *memory.Monitor
}

// NewPipelineExtractor wires the batch decoder and an optional memory
// monitor consulted between batches.
func NewPipelineExtractor(decoder BatchDecoder, monitor *memory.Monitor) *PipelineExtractor {
	return &PipelineExtractor{decoder: decoder, monitor: monitor}
}

// Method identifies the pipeline implementation.
func (e *PipelineExtractor) Method() Method {
	return MethodPipeline
}

// Extract runs the full plan. Frames from batches that committed before
// a cancellation remain in the sink; the in-progress batch is
// discarded.
func (e *PipelineExtractor) Extract(ctx context.Context, req *Request, sink Sink) ([]frame.Frame, error) {
	plan, err := req.timestamps()
	if err != nil {
		return nil, err
	}

	tracker := frame.NewTracker(len(plan), req.OnProgress)
	start := time.Now()
	batchSize := req.batchSize()

	var out []frame.Frame

	for batchStart := 0; batchStart < len(plan); batchStart += batchSize {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if e.monitor != nil && !e.monitor.WaitIfPaused() {
			return out, fmt.Errorf("memory monitor stopped during extraction")
		}

		batchEnd := batchStart + batchSize
		if batchEnd > len(plan) {
			batchEnd = len(plan)
		}
		batchTS := plan[batchStart:batchEnd]

		images, err := e.decoder.DecodeBatch(ctx, req.VideoPath, batchTS)
		if err != nil {
			return out, err
		}

		// Unavailable timestamps advance progress without producing a
		// frame.
		for _, img := range images {
			if img == nil {
				tracker.Add(1)
				metrics.ExtractionSkippedTimestamps.WithLabelValues(string(MethodPipeline)).Inc()
			}
		}

		encoded := e.encodeBatch(ctx, images, req.Format)

		var stored []frame.StoredFrame
		for j, data := range encoded {
			if data == nil {
				continue
			}
			i := batchStart + j
			f := frame.Frame{
				ID:        frame.ID(req.SessionID, i),
				Name:      req.frameName(i, plan[i]),
				Format:    req.Format,
				Timestamp: plan[i],
			}
			stored = append(stored, frame.StoredFrame{Frame: f, Data: data})
		}

		// Cancellation observed here discards the whole batch: nothing
		// below has been committed yet.
		if err := ctx.Err(); err != nil {
			return out, err
		}

		if len(stored) > 0 {
			if err := sink.PutBatch(ctx, stored); err != nil {
				return out, fmt.Errorf("failed to commit frame batch: %w", err)
			}
			for i := range stored {
				out = append(out, stored[i].Frame)
			}
			metrics.ExtractionFramesTotal.WithLabelValues(string(MethodPipeline)).Add(float64(len(stored)))
			metrics.ExtractionBatchesTotal.WithLabelValues(string(MethodPipeline)).Inc()
		}

		tracker.Set(batchEnd)
	}

	metrics.ExtractionDuration.WithLabelValues(string(MethodPipeline)).Observe(time.Since(start).Seconds())
	logging.Info("Pipeline extraction complete: %d/%d frames in %v", len(out), len(plan), time.Since(start))
	return out, nil
}

// encodeBatch converts a batch of rasters to the output encoding in
// parallel. A nil or failed entry stays nil.
func (e *PipelineExtractor) encodeBatch(ctx context.Context, images []image.Image, format frame.Format) [][]byte {
	encoded := make([][]byte, len(images))

	sem := make(chan struct{}, workers.ForCPU(0))
	var wg sync.WaitGroup

	for j, img := range images {
		if img == nil || ctx.Err() != nil {
			continue
		}

		wg.Add(1)
		go func(j int, img image.Image) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			data, err := media.Encode(img, format)
			if err != nil {
				logging.Warn("frame encode failed: %v", err)
				return
			}
			encoded[j] = data
		}(j, img)
	}
	wg.Wait()

	return encoded
}
