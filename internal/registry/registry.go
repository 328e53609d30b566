// Package registry tracks the runs that have not yet reached a terminal
// status: lifecycle transitions, progress counters, and cancellation signals.
// Terminal runs are evicted after a retention window; their durable form
// lives in the result store.
package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/eddygk/dns-bench-sub000/internal/model"
)

var (
	// ErrNotFound is returned when a run is not in the registry.
	ErrNotFound = errors.New("run not found")
	// ErrInvalidTransition is returned for a lifecycle edge that is not allowed.
	ErrInvalidTransition = errors.New("invalid run status transition")
)

// DefaultRetention is how long a terminal run stays observable in memory.
const DefaultRetention = 5 * time.Minute

// Active is the in-memory handle of one run. The scheduler is the single
// writer of its status; progress counters are updated atomically.
type Active struct {
	mu     sync.Mutex
	run    model.Run
	status model.RunStatus

	completed atomic.Int64
	total     int

	ctx    context.Context
	cancel context.CancelFunc
}

// Run returns the run snapshot with its current status filled in.
func (a *Active) Run() model.Run {
	a.mu.Lock()
	defer a.mu.Unlock()
	r := a.run
	r.Status = a.status
	return r
}

// Status returns the current lifecycle status.
func (a *Active) Status() model.RunStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Context is cancelled when the run is cancelled or force-failed. Every probe
// deadline derives from it.
func (a *Active) Context() context.Context { return a.ctx }

// AddCompleted bumps the completed-probe counter and returns the new value.
func (a *Active) AddCompleted() int { return int(a.completed.Add(1)) }

// Progress returns the completed and total probe counts.
func (a *Active) Progress() (completed, total int) {
	return int(a.completed.Load()), a.total
}

// Snapshot is the observable state of a run.
type Snapshot struct {
	RunID          string          `json:"run_id"`
	Status         model.RunStatus `json:"status"`
	CompletedCount int             `json:"completed_count"`
	TotalProbes    int             `json:"total_probes"`
}

// Registry holds all non-terminal runs. Concurrent runs are permitted; there
// is no global one-run-at-a-time constraint.
type Registry struct {
	runs      *xsync.Map[string, *Active]
	retention time.Duration
}

// New creates a Registry with the given terminal-run retention window.
func New(retention time.Duration) *Registry {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Registry{
		runs:      xsync.NewMap[string, *Active](),
		retention: retention,
	}
}

// Create assigns a run ID, stores the run as pending, and returns its handle.
// The run's Resolvers, Domains, and Profile must already be snapshotted.
func (r *Registry) Create(run model.Run) *Active {
	run.ID = uuid.NewString()
	run.Status = model.StatusPending
	run.StartedAt = time.Now().UTC()

	ctx, cancel := context.WithCancel(context.Background())
	a := &Active{
		run:    run,
		status: model.StatusPending,
		total:  run.TotalProbes(),
		ctx:    ctx,
		cancel: cancel,
	}
	r.runs.Store(run.ID, a)
	return a
}

// allowed lifecycle edges per status.
var allowedEdges = map[model.RunStatus][]model.RunStatus{
	model.StatusPending: {model.StatusRunning, model.StatusCancelled, model.StatusFailed},
	model.StatusRunning: {model.StatusCompleted, model.StatusCancelled, model.StatusFailed},
}

// Transition moves a run to a new status, enforcing the allowed edges. On a
// terminal transition the run's context is cancelled and eviction from the
// in-memory map is scheduled.
func (r *Registry) Transition(runID string, next model.RunStatus) error {
	a, ok := r.runs.Load(runID)
	if !ok {
		return ErrNotFound
	}

	a.mu.Lock()
	if !edgeAllowed(a.status, next) {
		cur := a.status
		a.mu.Unlock()
		return errors.Join(ErrInvalidTransition,
			errors.New(string(cur)+" -> "+string(next)))
	}
	a.status = next
	if next.Terminal() {
		now := time.Now().UTC()
		a.run.CompletedAt = &now
	}
	a.mu.Unlock()

	if next.Terminal() {
		a.cancel()
		time.AfterFunc(r.retention, func() { r.runs.Delete(runID) })
	}
	return nil
}

func edgeAllowed(from, to model.RunStatus) bool {
	for _, allowed := range allowedEdges[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Cancel transitions a run to cancelled and signals its context so in-flight
// probes observe the cancellation through their deadline contexts.
func (r *Registry) Cancel(runID string) error {
	a, ok := r.runs.Load(runID)
	if !ok {
		return ErrNotFound
	}
	if err := r.Transition(runID, model.StatusCancelled); err != nil {
		return err
	}
	a.cancel()
	return nil
}

// Get returns the active handle for a run.
func (r *Registry) Get(runID string) (*Active, bool) {
	return r.runs.Load(runID)
}

// Forget drops a run from the registry immediately, without waiting for the
// retention window.
func (r *Registry) Forget(runID string) {
	r.runs.Delete(runID)
}

// Observe returns the status and progress counters of a run.
func (r *Registry) Observe(runID string) (Snapshot, error) {
	a, ok := r.runs.Load(runID)
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	completed, total := a.Progress()
	return Snapshot{
		RunID:          runID,
		Status:         a.Status(),
		CompletedCount: completed,
		TotalProbes:    total,
	}, nil
}
