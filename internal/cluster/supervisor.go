package cluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"syscall"

	"github.com/DukeRupert/prefork/internal/metrics"
	"github.com/jonboulle/clockwork"
)

// ErrAlreadyRunning is returned by Run when the supervisor is already running.
var ErrAlreadyRunning = errors.New("cluster: supervisor already running")

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithClock replaces the clock used for start times and shutdown timeouts.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Supervisor) {
		s.clock = clock
	}
}

// Supervisor keeps a fixed number of worker processes alive.
//
// While Run is active every worker exit is followed by exactly one replacement
// in the same slot, with no delay and no limit on the number of restarts.
// Workers created with Spawn outside Run are tracked and reported but not
// replaced.
type Supervisor struct {
	spawner Spawner
	config  Config
	logger  *slog.Logger
	clock   clockwork.Clock

	// spawnMu serialises slot selection and process creation.
	spawnMu sync.Mutex

	mu          sync.Mutex
	workers     map[int]*handle
	restarts    map[int]int
	reserved    map[int]bool // slots held for a pending replacement
	onOnline    []func(Worker)
	onExit      []func(Worker, ExitStatus)
	supervising bool
	stopping    bool
	runCtx      context.Context

	// wg counts wait goroutines, one per live worker.
	wg    sync.WaitGroup
	fatal chan error
}

type handle struct {
	info Worker
	proc Process
}

// New creates a Supervisor that creates workers through spawner.
func New(spawner Spawner, config Config, logger *slog.Logger, opts ...Option) (*Supervisor, error) {
	if spawner == nil {
		return nil, errors.New("cluster: spawner is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := &Supervisor{
		spawner:  spawner,
		config:   config,
		logger:   logger,
		clock:    clockwork.NewRealClock(),
		workers:  make(map[int]*handle),
		restarts: make(map[int]int),
		reserved: make(map[int]bool),
		fatal:    make(chan error, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// OnOnline registers h to be called after each worker is created.
func (s *Supervisor) OnOnline(h func(Worker)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onOnline = append(s.onOnline, h)
}

// OnExit registers h to be called after each worker exits, before any
// replacement is created.
func (s *Supervisor) OnExit(h func(Worker, ExitStatus)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExit = append(s.onExit, h)
}

// Count returns the number of live workers.
func (s *Supervisor) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.workers)
}

// Workers returns a snapshot of the live workers ordered by slot.
func (s *Supervisor) Workers() []Worker {
	s.mu.Lock()
	out := make([]Worker, 0, len(s.workers))
	for _, h := range s.workers {
		out = append(out, h.info)
	}
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b Worker) int { return a.ID - b.ID })
	return out
}

// Spawn creates one worker in the lowest free slot.
func (s *Supervisor) Spawn(ctx context.Context) (Worker, error) {
	return s.spawnSlot(ctx, 0)
}

// Run creates the configured number of workers and replaces each one that
// exits until ctx is cancelled. On cancellation it stops all workers and
// returns nil. A failure to create a worker is fatal: the remaining workers
// are stopped and the error is returned.
func (s *Supervisor) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.supervising {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.supervising = true
	s.stopping = false
	s.runCtx = ctx
	s.mu.Unlock()

	// A replacement that failed while the previous Run was stopping must not
	// end this one.
	select {
	case <-s.fatal:
	default:
	}

	n := s.config.WorkerCount()
	s.logger.Info("Primary started", "workers", n)

	for i := 0; i < n; i++ {
		if _, err := s.Spawn(ctx); err != nil {
			s.logger.Error("Failed to create worker", "error", err)
			s.shutdown()
			return err
		}
	}

	select {
	case <-ctx.Done():
		s.logger.Info("Shutdown signal received, stopping workers")
		s.shutdown()
		return nil
	case err := <-s.fatal:
		s.logger.Error("Failed to replace worker, stopping", "error", err)
		s.shutdown()
		return err
	}
}

// spawnSlot creates a worker in slot id, or in the lowest free slot when id
// is 0.
func (s *Supervisor) spawnSlot(ctx context.Context, id int) (Worker, error) {
	s.spawnMu.Lock()

	if id == 0 {
		id = s.freeSlot()
	}

	proc, err := s.spawner.Spawn(ctx, id)
	if err != nil {
		s.mu.Lock()
		delete(s.reserved, id)
		s.mu.Unlock()
		s.spawnMu.Unlock()
		return Worker{}, fmt.Errorf("spawn worker %d: %w", id, err)
	}

	s.mu.Lock()
	delete(s.reserved, id)
	w := Worker{
		ID:        id,
		PID:       proc.Pid(),
		StartedAt: s.clock.Now(),
		Restarts:  s.restarts[id],
	}
	s.workers[id] = &handle{info: w, proc: proc}
	live := len(s.workers)
	handlers := slices.Clone(s.onOnline)
	stopping := s.stopping
	s.wg.Add(1)
	s.mu.Unlock()
	s.spawnMu.Unlock()

	metrics.WorkerSpawned(live)
	s.logger.Info("Worker online", "worker_id", w.ID, "worker_pid", w.PID, "restarts", w.Restarts)

	// A replacement that raced with shutdown is stopped straight away.
	if stopping {
		s.terminate(w, proc, syscall.SIGTERM)
	}

	for _, h := range handlers {
		h(w)
	}

	go s.wait(w, proc)
	return w, nil
}

// freeSlot returns the lowest slot number that is neither held by a live
// worker nor reserved for a replacement.
func (s *Supervisor) freeSlot() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := 1; ; id++ {
		if _, taken := s.workers[id]; !taken && !s.reserved[id] {
			return id
		}
	}
}

func (s *Supervisor) wait(w Worker, proc Process) {
	defer s.wg.Done()

	status := proc.Wait()

	s.mu.Lock()
	if h, ok := s.workers[w.ID]; ok && h.proc == proc {
		delete(s.workers, w.ID)
	}
	live := len(s.workers)
	handlers := slices.Clone(s.onExit)
	replace := s.supervising && !s.stopping
	ctx := s.runCtx
	if replace {
		s.restarts[w.ID]++
		s.reserved[w.ID] = true
	}
	s.mu.Unlock()

	metrics.WorkerExited(status.Reason(), live)

	attrs := []any{
		"worker_id", w.ID,
		"worker_pid", w.PID,
		"code", status.Code,
		"signal", status.Signal,
		"uptime", s.clock.Since(w.StartedAt).String(),
	}
	if status.Err != nil {
		attrs = append(attrs, "error", status.Err)
	}
	if replace {
		s.logger.Warn("Worker exited, starting a replacement", attrs...)
	} else {
		s.logger.Info("Worker exited", attrs...)
	}

	for _, h := range handlers {
		h(w, status)
	}

	if !replace {
		return
	}
	if _, err := s.spawnSlot(ctx, w.ID); err != nil {
		select {
		case s.fatal <- err:
		default:
		}
	}
}

// shutdown sends SIGTERM to every worker, waits up to ShutdownTimeout, then
// kills whatever is left.
func (s *Supervisor) shutdown() {
	s.mu.Lock()
	s.stopping = true
	live := s.liveLocked()
	s.mu.Unlock()

	s.logger.Info("Stopping workers", "count", len(live))
	for _, h := range live {
		s.terminate(h.info, h.proc, syscall.SIGTERM)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Workers stopped gracefully")
	case <-s.clock.After(s.config.ShutdownTimeout):
		s.mu.Lock()
		live = s.liveLocked()
		s.mu.Unlock()

		s.logger.Warn("Worker shutdown timeout exceeded, killing remaining workers", "count", len(live))
		for _, h := range live {
			s.terminate(h.info, h.proc, os.Kill)
		}
		<-done
	}

	s.mu.Lock()
	s.supervising = false
	s.runCtx = nil
	s.mu.Unlock()
}

func (s *Supervisor) liveLocked() []*handle {
	out := make([]*handle, 0, len(s.workers))
	for _, h := range s.workers {
		out = append(out, h)
	}
	return out
}

func (s *Supervisor) terminate(w Worker, proc Process, sig os.Signal) {
	if err := proc.Signal(sig); err != nil {
		s.logger.Debug("Failed to signal worker", "worker_id", w.ID, "worker_pid", w.PID, "signal", sig.String(), "error", err)
	}
}
