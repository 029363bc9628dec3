// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// This package centralizes all application configuration and provides consistent
// logging throughout the application lifecycle.
//
// # Configuration
//
// Configuration is loaded from environment variables via [LoadConfig]. A .env
// file in the working directory is read first when present, and an optional
// TOML file named by FRAMEPICK_CONFIG supplies defaults that environment
// variables override. The following environment variables are supported:
//
//   - OUTPUT_DIR: Path for exported archives (default: ./output)
//   - CACHE_DIR: Path for materialized thumbnails (default: ./cache)
//   - DATABASE_DIR: Path to database directory (default: ./data)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable the metrics server (default: false)
//   - FPS: Extraction rate in frames per second (default: 1)
//   - FORMAT: Frame image format, jpeg or png (default: jpeg)
//   - BATCH_SIZE: Frames per storage batch (default: 20)
//   - THUMB_CACHE_SIZE: In-memory thumbnail cache capacity (default: 200)
//   - LOG_LEVEL: Logging verbosity (default: INFO)
//   - DEBUG: Shorthand for LOG_LEVEL=DEBUG
package startup
