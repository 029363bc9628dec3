package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Extraction metrics
var (
	ExtractionFramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framepick_extraction_frames_total",
			Help: "Total number of frames extracted",
		},
		[]string{"method"},
	)

	ExtractionBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framepick_extraction_batches_total",
			Help: "Total number of frame batches committed to the store",
		},
		[]string{"method"},
	)

	ExtractionSkippedTimestamps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framepick_extraction_skipped_timestamps_total",
			Help: "Timestamps that produced no frame after retries",
		},
		[]string{"method"},
	)

	ExtractionFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "framepick_extraction_fallbacks_total",
			Help: "Extractions that fell back from the pipeline decoder to seek-and-grab",
		},
	)

	ExtractionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "framepick_extraction_duration_seconds",
			Help:    "Wall-clock duration of whole extraction runs",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"method"},
	)
)

// Scoring metrics
var (
	ScoringTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framepick_scoring_total",
			Help: "Total number of sharpness scoring attempts",
		},
		[]string{"status"},
	)

	ScoringDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "framepick_scoring_duration_seconds",
			Help:    "Per-frame sharpness scoring duration",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)
)

// Store metrics
var (
	StoreQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framepick_store_queries_total",
			Help: "Total number of frame store queries",
		},
		[]string{"operation", "status"},
	)

	StoreTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "framepick_store_transaction_duration_seconds",
			Help:    "Frame store batch transaction duration",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"outcome"},
	)

	StoreThumbnailWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framepick_store_thumbnail_writes_total",
			Help: "Best-effort thumbnail writes by outcome",
		},
		[]string{"status"},
	)

	StoreRecreations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "framepick_store_recreations_total",
			Help: "Destructive store recreations after corruption or schema bump",
		},
	)
)

// Thumbnail cache metrics
var (
	ThumbCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "framepick_thumbcache_hits_total",
			Help: "Thumbnail cache hits",
		},
	)

	ThumbCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "framepick_thumbcache_misses_total",
			Help: "Thumbnail cache misses",
		},
	)

	ThumbCacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "framepick_thumbcache_evictions_total",
			Help: "Thumbnail cache entries evicted",
		},
	)

	ThumbCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "framepick_thumbcache_entries",
			Help: "Current number of cached thumbnail handles",
		},
	)

	ThumbCacheLoadFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "framepick_thumbcache_load_failures_total",
			Help: "Thumbnail loads that failed validation or generation",
		},
	)
)

// Export metrics
var (
	ExportArchivesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framepick_export_archives_total",
			Help: "Completed export archives by mode",
		},
		[]string{"mode"},
	)

	ExportFramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framepick_export_frames_total",
			Help: "Frames written into export archives",
		},
		[]string{"mode"},
	)

	ExportBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framepick_export_bytes_total",
			Help: "Archive bytes produced",
		},
		[]string{"mode"},
	)
)

// Retry metrics, shared by every call site of the retry policy
var (
	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framepick_retry_attempts_total",
			Help: "Retry attempts by operation",
		},
		[]string{"operation"},
	)

	RetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framepick_retry_success_total",
			Help: "Operations that succeeded after at least one retry",
		},
		[]string{"operation"},
	)

	RetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framepick_retry_failures_total",
			Help: "Operations that exhausted all retry attempts",
		},
		[]string{"operation"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "framepick_memory_usage_ratio",
			Help: "Current heap usage as a fraction of the configured limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "framepick_memory_paused",
			Help: "1 when processing is paused due to memory pressure",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "framepick_memory_gc_pauses_total",
			Help: "Forced GC runs triggered by critical memory pressure",
		},
	)
)
