package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BoronSpoon/equipment-reservation/internal/logging"
)

// DefaultQueueSize bounds the number of pending jobs.
const DefaultQueueSize = 64

var (
	// ErrQueueFull is returned by Submit when the queue has no room.
	ErrQueueFull = errors.New("dispatch queue full")
	// ErrDispatcherClosed is returned by Submit after Close.
	ErrDispatcherClosed = errors.New("dispatcher closed")
)

// Job is a unit of work run by the Dispatcher.
type Job struct {
	// Key coalesces jobs: while a job with the same key is still queued,
	// submitting another is a no-op. Empty keys never coalesce.
	Key string
	// Kind names the job in logs.
	Kind string
	Run  func(ctx context.Context) error
}

// Dispatcher runs jobs one at a time in submission order.
//
// A sync pass is not safe to run concurrently with another pass on the same
// calendar, so every notification is funnelled through a single worker.
type Dispatcher struct {
	jobs   chan Job
	logger *slog.Logger

	mu      sync.Mutex
	queued  map[string]struct{}
	closed  bool
	lastErr error

	processed atomic.Int64
	failed    atomic.Int64
}

// NewDispatcher creates a Dispatcher holding at most size pending jobs.
func NewDispatcher(size int, logger *slog.Logger) *Dispatcher {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		jobs:   make(chan Job, size),
		logger: logger,
		queued: make(map[string]struct{}),
	}
}

// Submit queues job without blocking. It reports whether the job was merged
// into an identical pending one.
func (d *Dispatcher) Submit(job Job) (coalesced bool, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return false, ErrDispatcherClosed
	}
	if job.Key != "" {
		if _, ok := d.queued[job.Key]; ok {
			return true, nil
		}
	}

	select {
	case d.jobs <- job:
		if job.Key != "" {
			d.queued[job.Key] = struct{}{}
		}
		return false, nil
	default:
		return false, ErrQueueFull
	}
}

// Run executes jobs until ctx is done or the dispatcher is closed and drained.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case job, ok := <-d.jobs:
			if !ok {
				return nil
			}
			d.run(ctx, job)
		}
	}
}

func (d *Dispatcher) run(ctx context.Context, job Job) {
	// Release the key first so a notification arriving mid-run queues a
	// follow-up pass instead of being merged into this one.
	d.mu.Lock()
	delete(d.queued, job.Key)
	d.mu.Unlock()

	logger := d.logger.With(logging.Operation(job.Kind), slog.String("job", job.Key))
	start := time.Now()
	err := job.Run(ctx)
	d.processed.Add(1)

	d.mu.Lock()
	d.lastErr = err
	d.mu.Unlock()

	if err != nil {
		d.failed.Add(1)
		logger.Error("job failed", logging.Err(err), slog.Duration("duration", time.Since(start)))
		return
	}
	logger.Debug("job done", slog.Duration("duration", time.Since(start)))
}

// Close stops accepting jobs. Jobs already queued are still run by Run.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
}

// Pending returns the number of queued jobs.
func (d *Dispatcher) Pending() int {
	return len(d.jobs)
}

// Capacity returns the queue bound.
func (d *Dispatcher) Capacity() int {
	return cap(d.jobs)
}

// Processed returns the number of jobs run and how many of them failed.
func (d *Dispatcher) Processed() (total, failed int64) {
	return d.processed.Load(), d.failed.Load()
}

// LastError returns the error of the most recent job, nil if it succeeded.
func (d *Dispatcher) LastError() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}
