package cluster

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/DukeRupert/prefork/internal/metrics"
	"github.com/shirou/gopsutil/process"
)

// ProcessStats is a sample of one worker's resource usage.
type ProcessStats struct {
	RSS     uint64
	OpenFDs int32
}

// Sampler reads resource usage for a pid.
type Sampler func(pid int) (ProcessStats, error)

// SampleProcess reads resident memory and open descriptors from the OS.
func SampleProcess(pid int) (ProcessStats, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return ProcessStats{}, fmt.Errorf("open process %d: %w", pid, err)
	}

	mem, err := p.MemoryInfo()
	if err != nil {
		return ProcessStats{}, fmt.Errorf("memory info %d: %w", pid, err)
	}

	fds, err := p.NumFDs()
	if err != nil {
		return ProcessStats{}, fmt.Errorf("open fds %d: %w", pid, err)
	}

	return ProcessStats{RSS: mem.RSS, OpenFDs: fds}, nil
}

// StatsCollector periodically samples the supervisor's live workers and
// publishes the results as gauges.
type StatsCollector struct {
	sup    *Supervisor
	sample Sampler
	logger *slog.Logger
}

// NewStatsCollector samples sup's workers at its configured StatsInterval.
// A nil sampler uses SampleProcess.
func NewStatsCollector(sup *Supervisor, sample Sampler, logger *slog.Logger) *StatsCollector {
	if sample == nil {
		sample = SampleProcess
	}
	return &StatsCollector{
		sup:    sup,
		sample: sample,
		logger: logger,
	}
}

// Run samples until ctx is cancelled. It returns immediately when sampling is
// disabled.
func (c *StatsCollector) Run(ctx context.Context) {
	interval := c.sup.config.StatsInterval
	if interval <= 0 {
		return
	}

	ticker := c.sup.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			c.Collect()
		}
	}
}

// Collect samples every live worker once. Workers that cannot be sampled,
// typically because they exited in the meantime, are skipped.
func (c *StatsCollector) Collect() {
	for _, w := range c.sup.Workers() {
		stats, err := c.sample(w.PID)
		if err != nil {
			c.logger.Debug("Failed to sample worker", "worker_id", w.ID, "worker_pid", w.PID, "error", err)
			continue
		}
		metrics.WorkerResources(w.ID, stats.RSS, stats.OpenFDs)
	}
}
