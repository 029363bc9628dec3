package streaming

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// flushRecorder counts flushes between chunks.
type flushRecorder struct {
	bytes.Buffer
	flushes int
}

func (f *flushRecorder) Flush() error {
	f.flushes++
	return nil
}

// slowWriter blocks every write until released.
type slowWriter struct {
	release chan struct{}
}

func (w *slowWriter) Write(p []byte) (int, error) {
	<-w.release
	return len(p), nil
}

// TestWriterPassThrough tests that small writes land intact.
func TestWriterPassThrough(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewWriter(context.Background(), &buf, DefaultConfig())
	defer w.Close()

	data := []byte("hello frames")
	n, err := w.Write(data)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != len(data) {
		t.Errorf("wrote %d bytes, want %d", n, len(data))
	}
	if buf.String() != string(data) {
		t.Errorf("destination holds %q", buf.String())
	}

	written, _ := w.Stats()
	if written != int64(len(data)) {
		t.Errorf("stats report %d bytes, want %d", written, len(data))
	}
}

// TestWriterChunksLargePayloads tests chunk splitting and inter-chunk
// flushing.
func TestWriterChunksLargePayloads(t *testing.T) {
	t.Parallel()

	dest := &flushRecorder{}
	config := DefaultConfig()
	config.ChunkSize = 10

	w := NewWriter(context.Background(), dest, config)
	defer w.Close()

	data := []byte(strings.Repeat("x", 35))
	n, err := w.Write(data)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != 35 {
		t.Errorf("wrote %d bytes, want 35", n)
	}
	if dest.Len() != 35 {
		t.Errorf("destination holds %d bytes, want 35", dest.Len())
	}
	// 10+10+10+5 chunks, each followed by a flush.
	if dest.flushes != 4 {
		t.Errorf("flushed %d times, want 4", dest.flushes)
	}
}

// TestWriterTimeout tests that a stalled destination yields
// ErrWriteTimeout instead of hanging.
func TestWriterTimeout(t *testing.T) {
	t.Parallel()

	dest := &slowWriter{release: make(chan struct{})}
	defer close(dest.release)

	config := DefaultConfig()
	config.WriteTimeout = 50 * time.Millisecond

	w := NewWriter(context.Background(), dest, config)
	defer w.Close()

	_, err := w.Write([]byte("stall"))
	if !errors.Is(err, ErrWriteTimeout) {
		t.Errorf("Write returned %v, want ErrWriteTimeout", err)
	}
}

// TestWriterClosed tests that writes after Close are refused.
func TestWriterClosed(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewWriter(context.Background(), &buf, DefaultConfig())
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := w.Write([]byte("late")); !errors.Is(err, ErrStreamCanceled) {
		t.Errorf("Write after close = %v, want ErrStreamCanceled", err)
	}
	// Double close is a no-op.
	if err := w.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
}

// TestWriterContextCancel tests cancellation through the parent ctx.
func TestWriterContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	var buf bytes.Buffer
	w := NewWriter(ctx, &buf, DefaultConfig())
	defer w.Close()

	cancel()
	if _, err := w.Write([]byte("after cancel")); !errors.Is(err, ErrStreamCanceled) {
		t.Errorf("Write after cancel = %v, want ErrStreamCanceled", err)
	}
}

// TestWriterMaxDuration tests the absolute streaming deadline.
func TestWriterMaxDuration(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	config := DefaultConfig()
	config.MaxDuration = 10 * time.Millisecond

	w := NewWriter(context.Background(), &buf, config)
	defer w.Close()

	if _, err := w.Write([]byte("a")); err != nil {
		t.Fatalf("first write failed: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if _, err := w.Write([]byte("b")); !errors.Is(err, ErrWriteTimeout) {
		t.Errorf("Write past deadline = %v, want ErrWriteTimeout", err)
	}
}

// TestStream tests the reader-to-writer convenience wrapper.
func TestStream(t *testing.T) {
	t.Parallel()

	src := strings.Repeat("frame-bytes ", 1000)
	var dst bytes.Buffer

	if err := Stream(context.Background(), &dst, strings.NewReader(src), DefaultConfig()); err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	if dst.String() != src {
		t.Error("streamed content mismatch")
	}
}
