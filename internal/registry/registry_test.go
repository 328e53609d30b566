package registry

import (
	"errors"
	"testing"
	"time"

	"github.com/eddygk/dns-bench-sub000/internal/model"
)

func newRun() model.Run {
	return model.Run{
		Kind:      model.RunCustom,
		Resolvers: []model.Resolver{{Address: "8.8.8.8", DisplayName: "Google"}},
		Domains:   []string{"a.com", "b.com"},
	}
}

func TestCreate_AssignsIDAndPending(t *testing.T) {
	r := New(time.Minute)
	a := r.Create(newRun())

	run := a.Run()
	if run.ID == "" {
		t.Fatalf("run ID not assigned")
	}
	if run.Status != model.StatusPending {
		t.Fatalf("status: got %s, want pending", run.Status)
	}
	if _, total := a.Progress(); total != 2 {
		t.Fatalf("total probes: got %d, want 2", total)
	}
}

func TestTransition_AllowedEdges(t *testing.T) {
	tests := []struct {
		name  string
		steps []model.RunStatus
		fails bool
	}{
		{"pending-running-completed", []model.RunStatus{model.StatusRunning, model.StatusCompleted}, false},
		{"pending-running-cancelled", []model.RunStatus{model.StatusRunning, model.StatusCancelled}, false},
		{"pending-running-failed", []model.RunStatus{model.StatusRunning, model.StatusFailed}, false},
		{"pending-cancelled", []model.RunStatus{model.StatusCancelled}, false},
		{"pending-failed", []model.RunStatus{model.StatusFailed}, false},
		{"pending-completed", []model.RunStatus{model.StatusCompleted}, true},
		{"terminal-is-final", []model.RunStatus{model.StatusRunning, model.StatusCompleted, model.StatusRunning}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(time.Minute)
			a := r.Create(newRun())
			var err error
			for _, next := range tt.steps {
				if err = r.Transition(a.Run().ID, next); err != nil {
					break
				}
			}
			if tt.fails && !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("expected ErrInvalidTransition, got %v", err)
			}
			if !tt.fails && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestCancel_SignalsContext(t *testing.T) {
	r := New(time.Minute)
	a := r.Create(newRun())
	if err := r.Transition(a.Run().ID, model.StatusRunning); err != nil {
		t.Fatalf("transition: %v", err)
	}

	if err := r.Cancel(a.Run().ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	select {
	case <-a.Context().Done():
	case <-time.After(time.Second):
		t.Fatalf("run context not cancelled")
	}
	if a.Status() != model.StatusCancelled {
		t.Fatalf("status: got %s, want cancelled", a.Status())
	}
}

func TestCancel_Unknown(t *testing.T) {
	r := New(time.Minute)
	if err := r.Cancel("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestObserve_ProgressCounters(t *testing.T) {
	r := New(time.Minute)
	a := r.Create(newRun())
	a.AddCompleted()

	snap, err := r.Observe(a.Run().ID)
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if snap.CompletedCount != 1 || snap.TotalProbes != 2 {
		t.Fatalf("snapshot: %+v", snap)
	}
}

func TestEviction_AfterRetention(t *testing.T) {
	r := New(20 * time.Millisecond)
	a := r.Create(newRun())
	id := a.Run().ID
	if err := r.Transition(id, model.StatusRunning); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if err := r.Transition(id, model.StatusCompleted); err != nil {
		t.Fatalf("transition: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := r.Get(id); !ok {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("terminal run not evicted after retention")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestConcurrentRuns_IndependentCounters(t *testing.T) {
	r := New(time.Minute)
	a := r.Create(newRun())
	b := r.Create(newRun())

	a.AddCompleted()
	a.AddCompleted()
	b.AddCompleted()

	if got, _ := a.Progress(); got != 2 {
		t.Fatalf("run a completed: got %d, want 2", got)
	}
	if got, _ := b.Progress(); got != 1 {
		t.Fatalf("run b completed: got %d, want 1", got)
	}
}
