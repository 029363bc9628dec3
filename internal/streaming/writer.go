// Package streaming provides a timeout-protected, chunked write-through
// sink. The streamed export mode writes archive bytes through it so a
// stalled destination turns into a bounded error instead of a hang.
package streaming

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"framepick/internal/logging"
)

// Sentinel errors for streaming operations.
var (
	// ErrWriteTimeout indicates that a write operation exceeded the
	// configured timeout; the destination is draining too slowly.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrStreamCanceled indicates that the stream was canceled, either
	// by calling Close or via context cancellation.
	ErrStreamCanceled = errors.New("stream canceled")
)

// Flusher is optionally implemented by destinations that buffer.
type Flusher interface {
	Flush() error
}

// Config configures the timeout writer behavior.
type Config struct {
	// WriteTimeout is the maximum time to wait for a single write.
	WriteTimeout time.Duration
	// MaxDuration is the absolute maximum streaming duration (0 = unlimited).
	MaxDuration time.Duration
	// ChunkSize is the size of chunks to write (0 = write as received).
	ChunkSize int
	// OnProgress is called periodically with bytes written.
	OnProgress func(bytesWritten int64, duration time.Duration)
}

// DefaultConfig returns sensible defaults for archive streaming.
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 30 * time.Second,
		MaxDuration:  0,
		ChunkSize:    64 * 1024,
		OnProgress:   nil,
	}
}

// Writer wraps an io.Writer with timeout protection and chunking.
type Writer struct {
	w            io.Writer
	ctx          context.Context
	cancel       context.CancelFunc
	config       Config
	startTime    time.Time
	bytesWritten int64
	mu           sync.Mutex
	closed       bool
	flusher      Flusher
}

// NewWriter creates a timeout-protected writer around w.
func NewWriter(ctx context.Context, w io.Writer, config Config) *Writer {
	writerCtx, cancel := context.WithCancel(ctx)

	tw := &Writer{
		w:         w,
		ctx:       writerCtx,
		cancel:    cancel,
		config:    config,
		startTime: time.Now(),
	}

	if flusher, ok := w.(Flusher); ok {
		tw.flusher = flusher
	}

	return tw
}

// Write implements io.Writer with timeout protection.
func (tw *Writer) Write(p []byte) (int, error) {
	tw.mu.Lock()
	if tw.closed {
		tw.mu.Unlock()
		return 0, ErrStreamCanceled
	}
	tw.mu.Unlock()

	select {
	case <-tw.ctx.Done():
		return 0, ErrStreamCanceled
	default:
	}

	if tw.config.MaxDuration > 0 && time.Since(tw.startTime) > tw.config.MaxDuration {
		return 0, ErrWriteTimeout
	}

	if tw.config.ChunkSize > 0 && len(p) > tw.config.ChunkSize {
		return tw.writeChunked(p)
	}

	return tw.writeWithTimeout(p)
}

// writeChunked writes data in smaller chunks, flushing between them.
func (tw *Writer) writeChunked(p []byte) (int, error) {
	totalWritten := 0

	for len(p) > 0 {
		select {
		case <-tw.ctx.Done():
			return totalWritten, ErrStreamCanceled
		default:
		}

		chunkSize := tw.config.ChunkSize
		if len(p) < chunkSize {
			chunkSize = len(p)
		}

		n, err := tw.writeWithTimeout(p[:chunkSize])
		totalWritten += n
		if err != nil {
			return totalWritten, err
		}

		p = p[chunkSize:]

		if tw.flusher != nil {
			if err := tw.flusher.Flush(); err != nil {
				return totalWritten, err
			}
		}
	}

	return totalWritten, nil
}

// writeWithTimeout performs a single write bounded by WriteTimeout.
func (tw *Writer) writeWithTimeout(p []byte) (int, error) {
	type writeResult struct {
		n   int
		err error
	}
	resultCh := make(chan writeResult, 1)

	go func() {
		n, err := tw.w.Write(p)
		resultCh <- writeResult{n, err}
	}()

	timeout := tw.config.WriteTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	select {
	case result := <-resultCh:
		if result.err == nil {
			tw.mu.Lock()
			tw.bytesWritten += int64(result.n)
			bytesWritten := tw.bytesWritten
			tw.mu.Unlock()

			if tw.config.OnProgress != nil && bytesWritten%(1024*1024) < int64(len(p)) {
				tw.config.OnProgress(bytesWritten, time.Since(tw.startTime))
			}
		}
		return result.n, result.err

	case <-time.After(timeout):
		tw.cancel()
		return 0, ErrWriteTimeout

	case <-tw.ctx.Done():
		return 0, ErrStreamCanceled
	}
}

// Close marks the writer as closed.
func (tw *Writer) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.closed {
		return nil
	}

	tw.closed = true
	tw.cancel()
	return nil
}

// Stats returns streaming statistics.
func (tw *Writer) Stats() (bytesWritten int64, duration time.Duration) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.bytesWritten, time.Since(tw.startTime)
}

// Stream copies r to w through a timeout-protected writer.
func Stream(ctx context.Context, w io.Writer, r io.Reader, config Config) error {
	tw := NewWriter(ctx, w, config)
	defer func() {
		if err := tw.Close(); err != nil {
			logging.Warn("Failed to close timeout writer: %v", err)
		}
	}()

	_, err := io.Copy(tw, r)

	bytesWritten, duration := tw.Stats()
	logging.Debug("Stream completed: %d bytes in %v", bytesWritten, duration)

	return err
}
