// Package export packages selected frames into downloadable zip
// archives. Three strategies trade peak memory against complexity:
// build-in-memory, write-through streaming, and sequential fixed-size
// chunks for very large selections.
package export

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"framepick/internal/frame"
	"framepick/internal/logging"
	"framepick/internal/metrics"
	"framepick/internal/streaming"
)

// Mode names an export strategy.
type Mode string

const (
	// ModeSingle builds one archive fully in memory.
	ModeSingle Mode = "single"
	// ModeStreamed writes the archive through a chunked sink in frame
	// batches, falling back to ModeSingle when no sink is available.
	ModeStreamed Mode = "streamed"
	// ModeChunked splits the selection into fixed-size chunks exported
	// as independent archives.
	ModeChunked Mode = "chunked"
)

const (
	// streamBatchSize is how many frames are written between yields in
	// streamed mode.
	streamBatchSize = 200

	// chunkFrames is the selection size per archive in chunked mode.
	chunkFrames = 1000

	// chunkDelay lets the platform's download machinery drain between
	// chunk archives.
	chunkDelay = 500 * time.Millisecond
)

// BlobSource supplies full frame payloads by id. *store.Store
// satisfies it.
type BlobSource interface {
	GetBlob(ctx context.Context, id string) ([]byte, error)
}

// StreamSink opens a write-through destination for a named archive.
// Returning an error marks the intermediary unavailable; the packager
// falls back to single-shot export.
type StreamSink func(name string) (io.WriteCloser, error)

// Packager exports selections from a blob source into archives under
// an output directory.
type Packager struct {
	source   BlobSource
	outDir   string
	baseName string
	sink     StreamSink
}

// New creates a packager writing archives named after baseName into
// outDir.
func New(source BlobSource, outDir, baseName string) *Packager {
	return &Packager{
		source:   source,
		outDir:   outDir,
		baseName: SanitizeFilename(baseName),
	}
}

// SetStreamSink installs the write-through intermediary used by
// ModeStreamed.
func (p *Packager) SetStreamSink(sink StreamSink) {
	p.sink = sink
}

// Auto picks a strategy for the selection size: chunked beyond one
// chunk's worth of frames, otherwise single-shot.
func (p *Packager) Auto(frames []frame.Frame) Mode {
	if len(frames) > chunkFrames {
		return ModeChunked
	}
	return ModeSingle
}

// Export packages frames using the requested mode and returns the paths
// of the archives produced. onProgress receives cumulative counts
// across the whole operation, never resetting per chunk.
func (p *Packager) Export(ctx context.Context, frames []frame.Frame, mode Mode, onProgress frame.ProgressFunc) ([]string, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("nothing to export: empty selection")
	}
	if err := os.MkdirAll(p.outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export dir: %w", err)
	}

	switch mode {
	case ModeChunked:
		return p.exportChunked(ctx, frames, frame.NewTracker(len(frames), onProgress))
	case ModeStreamed:
		return p.exportStreamed(ctx, frames, onProgress)
	default:
		path, err := p.exportSingle(ctx, frames, frame.NewTracker(len(frames), onProgress), p.baseName+".zip", ModeSingle)
		if err != nil {
			return nil, err
		}
		return []string{path}, nil
	}
}

// exportSingle builds one archive fully in memory and writes it out.
func (p *Packager) exportSingle(ctx context.Context, frames []frame.Frame, tracker *frame.Tracker, name string, mode Mode) (string, error) {
	var buf bytes.Buffer
	if err := p.writeArchive(ctx, &buf, frames, tracker); err != nil {
		return "", err
	}

	path := filepath.Join(p.outDir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write archive %s: %w", name, err)
	}

	metrics.ExportArchivesTotal.WithLabelValues(string(mode)).Inc()
	metrics.ExportFramesTotal.WithLabelValues(string(mode)).Add(float64(len(frames)))
	metrics.ExportBytesTotal.WithLabelValues(string(mode)).Add(float64(buf.Len()))
	logging.Info("Exported %d frames to %s (%d bytes)", len(frames), path, buf.Len())
	return path, nil
}

// exportStreamed writes the archive through the installed sink in frame
// batches. Any sink failure falls back to a single-shot export.
func (p *Packager) exportStreamed(ctx context.Context, frames []frame.Frame, onProgress frame.ProgressFunc) ([]string, error) {
	name := p.baseName + ".zip"

	paths, err := p.tryStreamed(ctx, frames, frame.NewTracker(len(frames), onProgress), name)
	if err == nil {
		return paths, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	logging.Warn("Streamed export unavailable (%v), falling back to single archive", err)
	// The abandoned stream's progress is void; the fallback counts its
	// own work from zero.
	path, err := p.exportSingle(ctx, frames, frame.NewTracker(len(frames), onProgress), name, ModeSingle)
	if err != nil {
		return nil, err
	}
	return []string{path}, nil
}

func (p *Packager) tryStreamed(ctx context.Context, frames []frame.Frame, tracker *frame.Tracker, name string) ([]string, error) {
	if p.sink == nil {
		return nil, fmt.Errorf("no stream sink installed")
	}

	dest, err := p.sink(name)
	if err != nil {
		return nil, fmt.Errorf("stream sink rejected %s: %w", name, err)
	}

	var bytesOut int64
	cfg := streaming.DefaultConfig()
	cfg.OnProgress = func(written int64, _ time.Duration) { bytesOut = written }

	sw := streaming.NewWriter(ctx, dest, cfg)
	zw := zip.NewWriter(sw)

	fail := func(err error) ([]string, error) {
		// Abandoning mid-stream must not leak the sink handle.
		_ = zw.Close()
		_ = sw.Close()
		_ = dest.Close()
		return nil, err
	}

	written := 0
	names := newNameSet()
	for start := 0; start < len(frames); start += streamBatchSize {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		end := start + streamBatchSize
		if end > len(frames) {
			end = len(frames)
		}

		for _, f := range frames[start:end] {
			if err := p.addFrame(ctx, zw, names, f); err != nil {
				return fail(err)
			}
			written++
		}
		tracker.Set(written)

		// Yield between batches so the host stays responsive.
		if err := zw.Flush(); err != nil {
			return fail(err)
		}
	}

	if err := zw.Close(); err != nil {
		return fail(err)
	}
	if err := sw.Close(); err != nil {
		return nil, err
	}
	if err := dest.Close(); err != nil {
		return nil, err
	}

	sent, _ := sw.Stats()
	if bytesOut < sent {
		bytesOut = sent
	}
	metrics.ExportArchivesTotal.WithLabelValues(string(ModeStreamed)).Inc()
	metrics.ExportFramesTotal.WithLabelValues(string(ModeStreamed)).Add(float64(written))
	metrics.ExportBytesTotal.WithLabelValues(string(ModeStreamed)).Add(float64(bytesOut))
	logging.Info("Streamed %d frames into %s (%d bytes)", written, name, sent)
	return []string{name}, nil
}

// exportChunked splits the selection into fixed-size chunks exported as
// sequential single-shot archives with zero-padded part names.
func (p *Packager) exportChunked(ctx context.Context, frames []frame.Frame, tracker *frame.Tracker) ([]string, error) {
	var paths []string

	totalChunks := (len(frames) + chunkFrames - 1) / chunkFrames
	for chunk := 0; chunk < totalChunks; chunk++ {
		if err := ctx.Err(); err != nil {
			return paths, err
		}

		start := chunk * chunkFrames
		end := start + chunkFrames
		if end > len(frames) {
			end = len(frames)
		}

		name := fmt.Sprintf("%s_part_%04d.zip", p.baseName, chunk+1)
		path, err := p.exportSingle(ctx, frames[start:end], tracker, name, ModeChunked)
		if err != nil {
			return paths, fmt.Errorf("chunk %d/%d: %w", chunk+1, totalChunks, err)
		}
		paths = append(paths, path)

		if chunk < totalChunks-1 {
			select {
			case <-ctx.Done():
				return paths, ctx.Err()
			case <-time.After(chunkDelay):
			}
		}
	}

	return paths, nil
}

// writeArchive streams every frame into one zip writer.
func (p *Packager) writeArchive(ctx context.Context, w io.Writer, frames []frame.Frame, tracker *frame.Tracker) error {
	zw := zip.NewWriter(w)
	names := newNameSet()

	for _, f := range frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.addFrame(ctx, zw, names, f); err != nil {
			return err
		}
		tracker.Add(1)
	}

	return zw.Close()
}

// addFrame fetches one frame's payload and appends it to the archive.
func (p *Packager) addFrame(ctx context.Context, zw *zip.Writer, names *nameSet, f frame.Frame) error {
	data, err := p.source.GetBlob(ctx, f.ID)
	if err != nil {
		return fmt.Errorf("frame %s: %w", f.ID, err)
	}

	name := names.unique(SanitizeFilename(f.Name))
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("archive entry %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("archive entry %s: %w", name, err)
	}
	return nil
}
