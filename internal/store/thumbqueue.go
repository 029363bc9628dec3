package store

import (
	"context"
	"sync"
	"sync/atomic"

	"framepick/internal/frame"
	"framepick/internal/logging"
	"framepick/internal/media"
	"framepick/internal/workers"
)

// thumbSubBatch is how many thumbnails one background task generates
// before yielding the slot back to the pool.
const thumbSubBatch = 8

// thumbnailFor produces the stored rendition for a full frame payload.
var thumbnailFor = media.Thumbnail

// thumbQueue runs best-effort background thumbnail generation with
// bounded concurrency. Tasks carry the store generation they were
// enqueued under; Clear/Recreate bumps the generation so stale tasks
// from a cancelled extraction never write into a fresh session.
type thumbQueue struct {
	store *Store
	gen   atomic.Int64

	slots chan struct{}
	wg    sync.WaitGroup
}

func newThumbQueue(s *Store) *thumbQueue {
	return &thumbQueue{
		store: s,
		slots: make(chan struct{}, workers.ForIO(4)),
	}
}

func (q *thumbQueue) generation() int64 {
	return q.gen.Load()
}

// invalidate marks all queued and running tasks stale.
func (q *thumbQueue) invalidate() {
	q.gen.Add(1)
}

// enqueue schedules thumbnail generation for a committed batch,
// split into sub-batches so one large batch cannot monopolize a slot.
func (q *thumbQueue) enqueue(gen int64, frames []frame.StoredFrame) {
	for start := 0; start < len(frames); start += thumbSubBatch {
		end := start + thumbSubBatch
		if end > len(frames) {
			end = len(frames)
		}

		// Copy ids and payloads out of the caller's slice, which is
		// released after the batch commit.
		sub := make([]frame.StoredFrame, end-start)
		copy(sub, frames[start:end])

		q.wg.Add(1)
		go func(sub []frame.StoredFrame) {
			defer q.wg.Done()

			q.slots <- struct{}{}
			defer func() { <-q.slots }()

			if q.gen.Load() != gen {
				logging.Debug("dropping stale thumbnail sub-batch (%d frames)", len(sub))
				return
			}

			for i := range sub {
				if q.gen.Load() != gen {
					return
				}
				q.store.writeThumbnail(context.Background(), gen, sub[i].ID, sub[i].Data)
			}
		}(sub)
	}
}

// drain blocks until all scheduled tasks have finished.
func (q *thumbQueue) drain() {
	q.wg.Wait()
}
