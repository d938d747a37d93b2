package cluster

import (
	"context"
	"fmt"
	"os"
	"time"
)

// Process is a running worker process.
type Process interface {
	Pid() int
	// Wait blocks until the process exits. It is called exactly once.
	Wait() ExitStatus
	Signal(sig os.Signal) error
}

// Spawner creates worker processes.
type Spawner interface {
	Spawn(ctx context.Context, workerID int) (Process, error)
}

// ExitStatus describes how a worker ended.
type ExitStatus struct {
	Code   int    // exit code, -1 when killed by a signal
	Signal string // terminating signal name, empty on a normal exit
	Err    error  // set when the exit could not be observed
}

// Reason classifies the exit for metrics.
func (s ExitStatus) Reason() string {
	switch {
	case s.Signal != "":
		return "signal"
	case s.Code != 0 || s.Err != nil:
		return "error"
	default:
		return "clean"
	}
}

func (s ExitStatus) String() string {
	if s.Signal != "" {
		return fmt.Sprintf("signal %s", s.Signal)
	}
	if s.Err != nil {
		return fmt.Sprintf("code %d (%v)", s.Code, s.Err)
	}
	return fmt.Sprintf("code %d", s.Code)
}

// Worker is a snapshot of a live worker.
type Worker struct {
	ID        int // slot number, stable across replacements
	PID       int
	StartedAt time.Time
	Restarts  int // replacements made in this slot so far
}
