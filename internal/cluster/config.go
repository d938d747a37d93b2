package cluster

import (
	"fmt"
	"runtime"
	"time"
)

// Config holds the configuration for the process supervisor.
type Config struct {
	// Workers is the number of worker processes to keep alive.
	// 0 means one per CPU available to this process.
	Workers int

	// ShutdownTimeout is how long to wait for workers to exit after SIGTERM
	// before they are killed.
	// Default: 30 seconds
	ShutdownTimeout time.Duration

	// StatsInterval is how often worker resource usage is sampled.
	// 0 disables sampling.
	// Default: 15 seconds
	StatsInterval time.Duration
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Workers:         0,
		ShutdownTimeout: 30 * time.Second,
		StatsInterval:   15 * time.Second,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.Workers > 1024 {
		return fmt.Errorf("workers too high (max 1024), got %d", c.Workers)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive, got %v", c.ShutdownTimeout)
	}
	if c.StatsInterval < 0 {
		return fmt.Errorf("stats interval must not be negative, got %v", c.StatsInterval)
	}
	return nil
}

// WorkerCount resolves the target number of workers. It is at least 1.
func (c Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return 1
}
