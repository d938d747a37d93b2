package cluster

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"syscall"
)

// fakeProcess exits when Exit is called, or on SIGTERM/SIGKILL unless it
// ignores SIGTERM.
type fakeProcess struct {
	pid        int
	workerID   int
	ignoreTerm bool

	once   sync.Once
	exitCh chan ExitStatus

	mu      sync.Mutex
	signals []os.Signal
}

func (p *fakeProcess) Pid() int { return p.pid }

func (p *fakeProcess) Wait() ExitStatus { return <-p.exitCh }

func (p *fakeProcess) Signal(sig os.Signal) error {
	p.mu.Lock()
	p.signals = append(p.signals, sig)
	p.mu.Unlock()

	switch {
	case sig == os.Kill:
		p.Exit(ExitStatus{Code: -1, Signal: "killed"})
	case sig == syscall.SIGTERM && !p.ignoreTerm:
		p.Exit(ExitStatus{Code: -1, Signal: "terminated"})
	}
	return nil
}

// Exit makes Wait return status. Only the first call has an effect.
func (p *fakeProcess) Exit(status ExitStatus) {
	p.once.Do(func() {
		p.exitCh <- status
	})
}

func (p *fakeProcess) received() []os.Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]os.Signal(nil), p.signals...)
}

// fakeSpawner records every process it creates.
type fakeSpawner struct {
	mu         sync.Mutex
	nextPID    int
	procs      []*fakeProcess
	failAfter  int // fail once this many processes exist; 0 never fails
	ignoreTerm bool
}

var errSpawnFailed = errors.New("fork: resource temporarily unavailable")

func (s *fakeSpawner) Spawn(_ context.Context, workerID int) (Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failAfter > 0 && len(s.procs) >= s.failAfter {
		return nil, errSpawnFailed
	}

	s.nextPID++
	p := &fakeProcess{
		pid:        1000 + s.nextPID,
		workerID:   workerID,
		ignoreTerm: s.ignoreTerm,
		exitCh:     make(chan ExitStatus, 1),
	}
	s.procs = append(s.procs, p)
	return p, nil
}

func (s *fakeSpawner) spawned() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.procs)
}

func (s *fakeSpawner) proc(i int) *fakeProcess {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.procs[i]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
