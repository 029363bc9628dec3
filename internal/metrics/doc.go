// Package metrics provides Prometheus instrumentation for the framepick
// pipeline.
//
// All metrics are prefixed with "framepick_" to avoid naming collisions
// with other applications. Collectors are registered at init time via
// promauto; consumers only increment/observe them.
//
// # Metric Categories
//
//   - Extraction: frames, batches, skipped timestamps, fallbacks, run duration
//   - Scoring: attempts by status, per-frame duration
//   - Store: queries, transaction durations, best-effort thumbnail writes
//   - Thumbnail cache: hits, misses, evictions, size, load failures
//   - Export: archives, frames, and bytes by export mode
//   - Retry: attempts, post-retry successes, and exhaustions per operation
//   - Memory: usage ratio and pressure-pause state
package metrics
