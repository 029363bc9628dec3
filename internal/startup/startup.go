package startup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"framepick/internal/frame"
	"framepick/internal/logging"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// Config holds all application configuration
type Config struct {
	OutputDir      string
	CacheDir       string
	DatabaseDir    string
	MetricsPort    string
	MetricsEnabled bool

	FPS            float64
	Format         frame.Format
	BatchSize      int
	ThumbCacheSize int

	// Derived paths
	DatabasePath string
	ThumbDir     string
}

// fileConfig mirrors Config for the optional TOML config file. Values
// from the file act as defaults that environment variables override.
type fileConfig struct {
	OutputDir      string  `toml:"output_dir"`
	CacheDir       string  `toml:"cache_dir"`
	DatabaseDir    string  `toml:"database_dir"`
	MetricsPort    string  `toml:"metrics_port"`
	MetricsEnabled *bool   `toml:"metrics_enabled"`
	FPS            float64 `toml:"fps"`
	Format         string  `toml:"format"`
	BatchSize      int     `toml:"batch_size"`
	ThumbCacheSize int     `toml:"thumb_cache_size"`
}

// LoadConfig loads and validates configuration from the environment, an
// optional .env file, and an optional TOML file named by FRAMEPICK_CONFIG.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logging.Warn("Failed to load .env file: %v", err)
	}

	printBanner()
	logSystemInfo()

	defaults, err := loadFileConfig()
	if err != nil {
		return nil, err
	}

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	outputDir := getEnv("OUTPUT_DIR", orDefault(defaults.OutputDir, "./output"))
	cacheDir := getEnv("CACHE_DIR", orDefault(defaults.CacheDir, "./cache"))
	databaseDir := getEnv("DATABASE_DIR", orDefault(defaults.DatabaseDir, "./data"))
	metricsPort := getEnv("METRICS_PORT", orDefault(defaults.MetricsPort, "9090"))

	metricsDefault := false
	if defaults.MetricsEnabled != nil {
		metricsDefault = *defaults.MetricsEnabled
	}
	metricsEnabled := getEnvBool("METRICS_ENABLED", metricsDefault)

	fpsDefault := 1.0
	if defaults.FPS > 0 {
		fpsDefault = defaults.FPS
	}
	fps := getEnvFloat("FPS", fpsDefault)

	formatStr := getEnv("FORMAT", orDefault(defaults.Format, string(frame.FormatJPEG)))
	format, err := frame.ParseFormat(formatStr)
	if err != nil {
		logging.Warn("  Invalid FORMAT %q, using default: %s", formatStr, frame.FormatJPEG)
		format = frame.FormatJPEG
	}

	batchDefault := 20
	if defaults.BatchSize > 0 {
		batchDefault = defaults.BatchSize
	}
	batchSize := getEnvInt("BATCH_SIZE", batchDefault)
	if batchSize < 1 {
		logging.Warn("  Invalid BATCH_SIZE %d, using default: 20", batchSize)
		batchSize = 20
	}

	cacheSizeDefault := 200
	if defaults.ThumbCacheSize > 0 {
		cacheSizeDefault = defaults.ThumbCacheSize
	}
	thumbCacheSize := getEnvInt("THUMB_CACHE_SIZE", cacheSizeDefault)

	logging.Info("  OUTPUT_DIR:       %s", outputDir)
	logging.Info("  CACHE_DIR:        %s", cacheDir)
	logging.Info("  DATABASE_DIR:     %s", databaseDir)
	logging.Info("  METRICS_PORT:     %s", metricsPort)
	logging.Info("  METRICS_ENABLED:  %v", metricsEnabled)
	logging.Info("  FPS:              %g", fps)
	logging.Info("  FORMAT:           %s", format)
	logging.Info("  BATCH_SIZE:       %d", batchSize)
	logging.Info("  THUMB_CACHE_SIZE: %d", thumbCacheSize)
	logging.Info("  LOG_LEVEL:        %s", logging.GetLevel())

	// Resolve paths
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	outputDir, err = filepath.Abs(outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output directory path: %w", err)
	}
	logging.Info("  Output directory (absolute): %s", outputDir)

	cacheDir, err = filepath.Abs(cacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache directory path: %w", err)
	}
	logging.Info("  Cache directory (absolute): %s", cacheDir)

	databaseDir, err = filepath.Abs(databaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	logging.Info("  Database directory (absolute): %s", databaseDir)

	config := &Config{
		OutputDir:      outputDir,
		CacheDir:       cacheDir,
		DatabaseDir:    databaseDir,
		MetricsPort:    metricsPort,
		MetricsEnabled: metricsEnabled,
		FPS:            fps,
		Format:         format,
		BatchSize:      batchSize,
		ThumbCacheSize: thumbCacheSize,
		DatabasePath:   filepath.Join(databaseDir, "frames.db"),
		ThumbDir:       filepath.Join(cacheDir, "thumbnails"),
	}

	for _, dir := range []struct {
		path, name string
	}{
		{databaseDir, "database"},
		{outputDir, "output"},
		{config.ThumbDir, "thumbnail"},
	} {
		if err := ensureDirectory(dir.path, dir.name); err != nil {
			return nil, fmt.Errorf("%s directory error: %w", dir.name, err)
		}
		if err := testWriteAccess(dir.path); err != nil {
			return nil, fmt.Errorf("%s directory is not writable: %w", dir.name, err)
		}
	}
	logging.Info("  [OK] All directories are writable")

	return config, nil
}

func loadFileConfig() (fileConfig, error) {
	var fc fileConfig
	path := os.Getenv("FRAMEPICK_CONFIG")
	if path == "" {
		return fc, nil
	}
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return fc, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	logging.Info("Loaded config file: %s", path)
	return fc, nil
}

// LogStoreInit logs frame store initialization
func LogStoreInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("FRAME STORE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Store initialized in %v", duration)
}

// LogExtractionInit logs extraction setup and checks the FFmpeg tools
func LogExtractionInit() {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("EXTRACTION SETUP")
	logging.Info("------------------------------------------------------------")

	if err := checkTool("ffmpeg"); err != nil {
		logging.Warn("  FFmpeg check failed: %v", err)
		logging.Warn("  Frame extraction will fall back to per-frame seeking")
	} else {
		logging.Info("  [OK] FFmpeg is available")
	}

	if err := checkTool("ffprobe"); err != nil {
		logging.Warn("  FFprobe check failed: %v", err)
		logging.Warn("  Video metadata probing will not work")
	} else {
		logging.Info("  [OK] FFprobe is available")
	}
}

// LogRunComplete logs a finished extraction run
func LogRunComplete(frames int, duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("RUN COMPLETE")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Frames stored: %d", frames)
	logging.Info("  Elapsed:       %v", duration)
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
    ____                             ____  _      __
   / __/______ _____ ___  ___  ___  /  _/_| |____/ /__
  / /_/ ___/ _ '/ __ '__ \/ _ \/ _ \ / / ___/ //_/ ___/
 / __/ /  / /_/ / / / / / /  __/ /_/ / / /__/ ,< (__  )
/_/ /_/   \__,_/_/ /_/ /_/\___/ .___/_/\___/_/|_/____/
                             /_/
------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		logging.Debug("  Goroutines:      %d", runtime.NumGoroutine())

		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}

		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
		// Don't return error since write access was confirmed
	}
	return nil
}

func checkTool(name string) error {
	path, err := exec.LookPath(name)
	if err != nil {
		return fmt.Errorf("%s not found in PATH", name)
	}
	logging.Debug("  %s path: %s", name, path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, "-version")
	output, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("failed to get %s version: %w", name, err)
	}

	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		logging.Debug("  %s version: %s", name, strings.TrimSpace(lines[0]))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed <= 0 {
		logging.Warn("Invalid value for %s: %q, using default: %g", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
