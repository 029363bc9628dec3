package memory

import (
	"testing"
	"time"
)

func TestNewMonitor(t *testing.T) {
	t.Run("With explicit limit", func(t *testing.T) {
		config := Config{
			MemoryLimitBytes:  1024 * 1024 * 100, // 100 MB
			HighWaterMark:     0.7,
			CriticalWaterMark: 0.85,
			CheckInterval:     5 * time.Second,
		}

		monitor := NewMonitor(config)
		if monitor == nil {
			t.Fatal("NewMonitor returned nil")
		}

		if monitor.limit != config.MemoryLimitBytes {
			t.Errorf("Expected limit %d, got %d", config.MemoryLimitBytes, monitor.limit)
		}

		if monitor.config.HighWaterMark != config.HighWaterMark {
			t.Errorf("Expected high water mark %.2f, got %.2f", config.HighWaterMark, monitor.config.HighWaterMark)
		}
	})

	t.Run("Without limit", func(t *testing.T) {
		config := Config{
			MemoryLimitBytes:  0,
			HighWaterMark:     0.7,
			CriticalWaterMark: 0.85,
			CheckInterval:     5 * time.Second,
		}

		monitor := NewMonitor(config)
		if monitor == nil {
			t.Fatal("NewMonitor returned nil")
		}

		// Limit may be set from GOMEMLIMIT or remain 0
		if monitor.config.CheckInterval != config.CheckInterval {
			t.Errorf("Expected check interval %v, got %v", config.CheckInterval, monitor.config.CheckInterval)
		}
	})
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.HighWaterMark <= 0 || config.HighWaterMark >= 1 {
		t.Errorf("HighWaterMark out of range: %f", config.HighWaterMark)
	}
	if config.CriticalWaterMark <= config.HighWaterMark {
		t.Errorf("CriticalWaterMark %f should exceed HighWaterMark %f",
			config.CriticalWaterMark, config.HighWaterMark)
	}
	if config.CheckInterval <= 0 {
		t.Errorf("CheckInterval should be positive, got %v", config.CheckInterval)
	}
}

func TestMonitorStartStop(_ *testing.T) {
	config := Config{
		MemoryLimitBytes:  1024 * 1024 * 100, // 100 MB
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     50 * time.Millisecond,
	}

	monitor := NewMonitor(config)
	monitor.Start()

	// Let it run briefly
	time.Sleep(100 * time.Millisecond)

	// Stop should not panic
	monitor.Stop()

	// Give goroutine time to exit
	time.Sleep(50 * time.Millisecond)
}

func TestMonitorGetStats(t *testing.T) {
	config := Config{
		MemoryLimitBytes:  1024 * 1024 * 100, // 100 MB
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     5 * time.Second,
	}

	monitor := NewMonitor(config)

	current, limit, usage := monitor.GetStats()

	if current < 0 {
		t.Errorf("Expected non-negative current, got %d", current)
	}

	if limit != config.MemoryLimitBytes {
		t.Errorf("Expected limit %d, got %d", config.MemoryLimitBytes, limit)
	}

	if usage < 0 || usage > 1 {
		t.Errorf("Expected usage between 0 and 1, got %f", usage)
	}
}

func TestMonitorIsPaused(t *testing.T) {
	config := Config{
		MemoryLimitBytes:  1024 * 1024 * 100, // 100 MB
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     50 * time.Millisecond,
	}

	monitor := NewMonitor(config)

	// Initially should not be paused
	if monitor.IsPaused() {
		t.Error("Expected monitor to not be paused initially")
	}

	monitor.Start()
	time.Sleep(150 * time.Millisecond)
	monitor.Stop()

	// IsPaused should not panic after stop
	_ = monitor.IsPaused()
}

func TestMonitorShouldThrottle(t *testing.T) {
	t.Run("Without limit", func(t *testing.T) {
		monitor := &Monitor{
			config: Config{HighWaterMark: 0.7, CriticalWaterMark: 0.85},
		}

		if monitor.ShouldThrottle() {
			t.Error("Expected ShouldThrottle to return false when no limit")
		}
	})

	t.Run("With generous limit", func(t *testing.T) {
		config := Config{
			MemoryLimitBytes:  1 << 50, // far above any realistic heap
			HighWaterMark:     0.7,
			CriticalWaterMark: 0.85,
			CheckInterval:     5 * time.Second,
		}

		monitor := NewMonitor(config)
		if monitor.ShouldThrottle() {
			t.Error("Expected no throttling under a huge limit")
		}
	})
}

func TestMonitorWaitIfPaused(t *testing.T) {
	config := Config{
		MemoryLimitBytes:  1024 * 1024 * 100, // 100 MB
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     50 * time.Millisecond,
	}

	monitor := NewMonitor(config)
	monitor.Start()

	// Should return true when not paused
	if !monitor.WaitIfPaused() {
		t.Error("Expected WaitIfPaused to return true when not paused")
	}

	monitor.Stop()

	// After stop, WaitIfPaused may return either value depending on
	// timing; it must not block.
	_ = monitor.WaitIfPaused()
}

func TestMonitorConcurrency(_ *testing.T) {
	config := Config{
		MemoryLimitBytes:  1024 * 1024 * 100, // 100 MB
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     10 * time.Millisecond,
	}

	monitor := NewMonitor(config)
	monitor.Start()

	done := make(chan bool, 3)

	go func() {
		for i := 0; i < 10; i++ {
			monitor.IsPaused()
			time.Sleep(5 * time.Millisecond)
		}
		done <- true
	}()

	go func() {
		for i := 0; i < 10; i++ {
			monitor.ShouldThrottle()
			time.Sleep(5 * time.Millisecond)
		}
		done <- true
	}()

	go func() {
		for i := 0; i < 10; i++ {
			monitor.GetStats()
			time.Sleep(5 * time.Millisecond)
		}
		done <- true
	}()

	for i := 0; i < 3; i++ {
		<-done
	}

	monitor.Stop()
}
