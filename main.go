package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"framepick/internal/export"
	"framepick/internal/extract"
	"framepick/internal/frame"
	"framepick/internal/logging"
	"framepick/internal/media"
	"framepick/internal/memory"
	"framepick/internal/score"
	"framepick/internal/selection"
	"framepick/internal/startup"
	"framepick/internal/store"
	"framepick/internal/thumbcache"
	"framepick/internal/workers"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// cliOptions carries the parsed command line into the run.
type cliOptions struct {
	videoPath   string
	start       time.Duration
	end         time.Duration
	fps         float64
	format      string
	sourceNums  bool
	selectMode  string
	batchSize   int
	batchBuffer int
	bestN       int
	minGap      int
	percentile  float64
	exportMode  string
	name        string
	prune       time.Duration
}

func main() {
	var (
		startFlag   = flag.Duration("start", 0, "extraction window start")
		endFlag     = flag.Duration("end", 0, "extraction window end (0 = end of source)")
		fpsFlag     = flag.Float64("fps", 0, "frames per second to extract (overrides FPS env)")
		formatFlag  = flag.String("format", "", "frame format: jpeg or png (overrides FORMAT env)")
		sourceNums  = flag.Bool("source-frame-numbers", false, "name frames by source frame number instead of sequence")
		selectFlag  = flag.String("select", "manual", "selection mode: manual, batched, best-n, top-percentile")
		batchSize   = flag.Int("select-batch-size", 5, "batched mode: frames per batch")
		batchBuffer = flag.Int("select-batch-buffer", 0, "batched mode: frames skipped between batches")
		bestN       = flag.Int("best-n", 10, "best-n mode: number of frames to select")
		minGap      = flag.Int("min-gap", 5, "best-n mode: minimum index gap between selections")
		percentile  = flag.Float64("percentile", 25, "top-percentile mode: percentage of frames to keep")
		exportFlag  = flag.String("export", "auto", "export mode: auto, single, streamed, chunked, none")
		nameFlag    = flag.String("name", "", "base name for export archives (default: video file name)")
		pruneFlag   = flag.Duration("prune", 0, "delete stored frames older than this before running")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <video-file>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}

	os.Exit(run(cliOptions{
		videoPath:   flag.Arg(0),
		start:       *startFlag,
		end:         *endFlag,
		fps:         *fpsFlag,
		format:      *formatFlag,
		sourceNums:  *sourceNums,
		selectMode:  *selectFlag,
		batchSize:   *batchSize,
		batchBuffer: *batchBuffer,
		bestN:       *bestN,
		minGap:      *minGap,
		percentile:  *percentile,
		exportMode:  *exportFlag,
		name:        *nameFlag,
		prune:       *pruneFlag,
	}))
}

// run executes the pipeline and returns the process exit code. It never
// exits directly so every deferred cleanup runs, including on signal
// cancellation.
func run(opts cliOptions) int {
	startTime := time.Now()

	config, err := startup.LoadConfig()
	if err != nil {
		logging.Error("Configuration error: %v", err)
		return 1
	}
	if opts.fps > 0 {
		config.FPS = opts.fps
	}
	if opts.format != "" {
		f, err := frame.ParseFormat(opts.format)
		if err != nil {
			logging.Error("Invalid -format: %v", err)
			return 1
		}
		config.Format = f
	}

	media.InitVips()
	defer media.ShutdownVips()

	if config.MetricsEnabled {
		go serveMetrics(config.MetricsPort)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		sig := <-sigCh
		startup.LogShutdownInitiated(sig.String())
		cancel()
	}()

	// Runs after the resource defers below; ctx is cancelled only when a
	// shutdown signal arrived.
	defer func() {
		if ctx.Err() != nil {
			startup.LogShutdownComplete()
		}
	}()

	// Frame store
	storeStart := time.Now()
	st, err := store.New(ctx, config.DatabasePath)
	if err != nil {
		logging.Error("Failed to initialize frame store: %v", err)
		return 1
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Warn("Frame store close: %v", err)
		} else if ctx.Err() != nil {
			startup.LogShutdownStepComplete("Frame store closed")
		}
	}()
	startup.LogStoreInit(time.Since(storeStart))

	if opts.prune > 0 {
		pruned, err := st.DeleteOlderThan(ctx, opts.prune)
		if err != nil {
			logging.Warn("Prune failed: %v", err)
		} else if pruned > 0 {
			logging.Info("Pruned %d frames older than %v", pruned, opts.prune)
		}
	}

	startup.LogExtractionInit()

	prober, err := media.NewFFProber()
	if err != nil {
		logging.Error("Cannot probe video: %v", err)
		return 1
	}
	info, err := prober.Probe(ctx, opts.videoPath)
	if err != nil {
		return finish("Probe", err)
	}
	logging.Info("Source: %s (%v, %dx%d, %.2f fps, codec %s)",
		opts.videoPath, info.Duration, info.Width, info.Height, info.FPS, info.Codec)

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()
	defer func() {
		monitor.Stop()
		if ctx.Err() != nil {
			startup.LogShutdownStepComplete("Memory monitor stopped")
		}
	}()

	runner, err := buildRunner(prober, monitor)
	if err != nil {
		logging.Error("No extraction method available: %v", err)
		return 1
	}

	sessionID := uuid.NewString()
	req := &extract.Request{
		VideoPath:          opts.videoPath,
		SessionID:          sessionID,
		FPS:                config.FPS,
		Format:             config.Format,
		Start:              opts.start,
		End:                opts.end,
		Info:               info,
		BatchSize:          config.BatchSize,
		OnProgress:         progressLogger("Extracting"),
		SourceFrameNumbers: opts.sourceNums,
	}

	result, err := runner.Run(ctx, req, st)
	if err != nil {
		return finish("Extraction", err)
	}
	if result.FallbackReason != "" {
		logging.Warn("Extraction fell back to seeking: %s", result.FallbackReason)
	}
	logging.Info("Extracted %d frames via %s", len(result.Frames), result.Method)

	frames, err := scoreFrames(ctx, st, result.Frames)
	if err != nil {
		return finish("Scoring", err)
	}

	state := selectionState(opts.selectMode, opts.batchSize, opts.batchBuffer, opts.bestN, opts.minGap, opts.percentile)
	selected := selection.Apply(frames, state)
	logging.Info("Selected %d of %d frames (%s)", len(selected), len(frames), state.Mode)
	for _, f := range selected {
		if err := st.SetSelected(ctx, f.ID, true); err != nil {
			logging.Warn("Failed to persist selection for %s: %v", f.ID, err)
		}
	}

	warmThumbnails(ctx, st, config, selected)

	if opts.exportMode != "none" && len(selected) > 0 {
		if err := runExport(ctx, st, config, opts.videoPath, opts.name, opts.exportMode, selected); err != nil {
			return finish("Export", err)
		}
	}

	startup.LogRunComplete(len(frames), time.Since(startTime))
	return 0
}

// finish maps a stage failure to an exit code. A shutdown signal cancels
// the context mid-stage; that is an orderly stop, not an error, so it
// exits clean after the deferred cleanup runs.
func finish(stage string, err error) int {
	if errors.Is(err, context.Canceled) {
		logging.Info("%s cancelled", stage)
		return 0
	}
	logging.Error("%s failed: %v", stage, err)
	return 1
}

// buildRunner wires the extraction strategies. A missing ffmpeg decoder
// is not fatal here; strategy selection routes around it. A missing
// grabber leaves no extraction method at all.
func buildRunner(prober *media.FFProber, monitor *memory.Monitor) (*extract.Runner, error) {
	caps := extract.DetectCapabilities()

	var pipeline extract.Extractor
	decoder, err := extract.NewFFmpegDecoder()
	if err != nil {
		logging.Warn("Batch decoding unavailable: %v", err)
		caps.PipelineAvailable = false
	} else {
		pipeline = extract.NewPipelineExtractor(decoder, monitor)
	}

	grabber, err := extract.NewFFmpegGrabber()
	if err != nil {
		return nil, err
	}
	seek := extract.NewSeekExtractor(grabber)

	return extract.NewRunner(caps, prober, pipeline, seek), nil
}

// scoreFrames computes sharpness for every stored frame in parallel and
// persists the scores. Frames whose blobs cannot be scored keep a nil
// score and stay eligible for manual selection only.
func scoreFrames(ctx context.Context, st *store.Store, frames []frame.Frame) ([]frame.Frame, error) {
	if len(frames) == 0 {
		return frames, nil
	}

	tracker := frame.NewTracker(len(frames), progressLogger("Scoring"))
	sem := make(chan struct{}, workers.ForCPU(0))
	var wg sync.WaitGroup

	for i := range frames {
		if err := ctx.Err(); err != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(f *frame.Frame) {
			defer wg.Done()
			defer func() { <-sem }()
			defer tracker.Add(1)

			data, err := st.GetBlob(ctx, f.ID)
			if err != nil {
				logging.Warn("Cannot load %s for scoring: %v", f.ID, err)
				return
			}
			s, err := score.Score(data)
			if err != nil {
				logging.Warn("Cannot score %s: %v", f.ID, err)
				return
			}
			f.SetScore(s)
			if err := st.UpdateScore(ctx, f.ID, s); err != nil {
				logging.Warn("Cannot persist score for %s: %v", f.ID, err)
			}
		}(&frames[i])
	}
	wg.Wait()

	return frames, ctx.Err()
}

func selectionState(mode string, batchSize, batchBuffer, bestN, minGap int, percentile float64) frame.SelectionState {
	state := frame.DefaultSelectionState()
	state.Mode = frame.SelectionMode(mode)
	state.BatchSize = batchSize
	state.BatchBuffer = batchBuffer
	state.BestNCount = bestN
	state.BestNMinGap = minGap
	state.PercentageThreshold = percentile
	return state
}

// warmThumbnails preloads thumbnails for the selection so review tools
// reading the cache directory find them materialized.
func warmThumbnails(ctx context.Context, st *store.Store, config *startup.Config, selected []frame.Frame) {
	cache, err := thumbcache.New(st, media.Thumbnail, config.ThumbDir, config.ThumbCacheSize)
	if err != nil {
		logging.Warn("Thumbnail cache unavailable: %v", err)
		return
	}
	ids := make([]string, len(selected))
	for i, f := range selected {
		ids[i] = f.ID
	}
	cache.Preload(ctx, ids)
}

func runExport(ctx context.Context, st *store.Store, config *startup.Config, videoPath, name, mode string, selected []frame.Frame) error {
	if name == "" {
		name = baseName(videoPath)
	}

	packager := export.New(st, config.OutputDir, name)
	packager.SetStreamSink(func(archive string) (io.WriteCloser, error) {
		return os.Create(filepath.Join(config.OutputDir, archive))
	})

	exportMode := export.Mode(mode)
	if mode == "auto" {
		exportMode = packager.Auto(selected)
	}

	paths, err := packager.Export(ctx, selected, exportMode, progressLogger("Exporting"))
	if err != nil {
		return err
	}
	for _, p := range paths {
		logging.Info("Wrote %s", p)
	}
	return nil
}

func baseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// progressLogger returns a callback that logs at 10% increments.
func progressLogger(verb string) frame.ProgressFunc {
	lastDecile := -1
	var mu sync.Mutex
	return func(p frame.Progress) {
		if p.Total == 0 {
			return
		}
		decile := p.Current * 10 / p.Total
		mu.Lock()
		defer mu.Unlock()
		if decile == lastDecile {
			return
		}
		lastDecile = decile
		if p.EstimatedTime > 0 {
			logging.Info("%s: %d/%d (~%v remaining)", verb, p.Current, p.Total, p.EstimatedTime.Round(time.Second))
		} else {
			logging.Info("%s: %d/%d", verb, p.Current, p.Total)
		}
	}
}

func serveMetrics(port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logging.Info("Metrics server listening on :%s", port)
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		logging.Error("Metrics server error: %v", err)
	}
}

