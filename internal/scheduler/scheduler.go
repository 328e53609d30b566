// Package scheduler executes benchmark runs: it fans out per (resolver,
// domain) probes under the profile's concurrency bounds, feeds outcomes to
// the aggregator and the event bus, and persists everything when the run
// reaches a terminal state.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eddygk/dns-bench-sub000/internal/eventbus"
	"github.com/eddygk/dns-bench-sub000/internal/model"
	"github.com/eddygk/dns-bench-sub000/internal/registry"
	"github.com/eddygk/dns-bench-sub000/internal/stats"
)

// ProbeFunc issues one probe attempt. Injectable for testing; production
// wires probe.Prober.Probe.
type ProbeFunc func(ctx context.Context, address, domain string, deadline time.Duration) model.ProbeResult

// ResultStore is the persistence sink for finished runs.
type ResultStore interface {
	PersistRun(run model.Run, summaries []model.ServerSummary, probes []model.ProbeResult, analyses []model.FailureAnalysis) error
}

const (
	// DefaultWallclockCap fails a run that outlives it.
	DefaultWallclockCap = 10 * time.Minute
	// retryDelay separates attempts of the same probe.
	retryDelay = 100 * time.Millisecond
	// persistAttempts bounds the store-write retry loop.
	persistAttempts = 3
)

// Scheduler drives runs to completion. One Scheduler serves all runs.
type Scheduler struct {
	probe        ProbeFunc
	registry     *registry.Registry
	bus          *eventbus.Bus
	store        ResultStore
	wallclockCap time.Duration
}

// Config wires a Scheduler.
type Config struct {
	Probe        ProbeFunc
	Registry     *registry.Registry
	Bus          *eventbus.Bus
	Store        ResultStore
	WallclockCap time.Duration
}

// New creates a Scheduler.
func New(cfg Config) *Scheduler {
	cap := cfg.WallclockCap
	if cap <= 0 {
		cap = DefaultWallclockCap
	}
	return &Scheduler{
		probe:        cfg.Probe,
		registry:     cfg.Registry,
		bus:          cfg.Bus,
		store:        cfg.Store,
		wallclockCap: cap,
	}
}

// Start begins executing a run asynchronously and returns immediately. The
// run must be pending in the registry.
func (s *Scheduler) Start(a *registry.Active) {
	go s.execute(a)
}

// serverWorker tracks one resolver's progress for server_progress events.
type serverWorker struct {
	resolver model.Resolver
	results  []model.ProbeResult

	mu         sync.Mutex
	successful int
	done       int
	elapsedSum float64
}

func (w *serverWorker) record(res model.ProbeResult) eventbus.ServerProgress {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.done++
	if res.Success {
		w.successful++
		w.elapsedSum += res.ElapsedMs
	}
	progress := eventbus.ServerProgress{
		ResolverAddress: w.resolver.Address,
		Successful:      w.successful,
		Total:           w.done,
	}
	if w.successful > 0 {
		avg := w.elapsedSum / float64(w.successful)
		progress.RunningAvgMs = &avg
	}
	return progress
}

func (s *Scheduler) execute(a *registry.Active) {
	run := a.Run()
	runStart := time.Now()

	if err := s.registry.Transition(run.ID, model.StatusRunning); err != nil {
		// Cancelled before the first probe was issued.
		log.Printf("[scheduler] run %s: not starting: %v", run.ID, err)
		s.finalize(a, runStart, nil)
		return
	}

	s.bus.Publish(run.ID, eventbus.Event{
		Type: eventbus.EventRunStarted,
		Payload: eventbus.RunStarted{
			RunID:       run.ID,
			TotalProbes: run.TotalProbes(),
			Resolvers:   resolverAddresses(run.Resolvers),
			Domains:     run.Domains,
		},
	})

	runCtx, cancel := context.WithTimeout(a.Context(), s.wallclockCap)
	defer cancel()

	perf := run.Profile.Performance
	timeout := time.Duration(perf.QueryTimeoutMs) * time.Millisecond
	delay := time.Duration(perf.InterQueryDelayMs) * time.Millisecond

	workers := make([]*serverWorker, len(run.Resolvers))
	g := new(errgroup.Group)
	g.SetLimit(max(perf.MaxConcurrentServers, 1))

	emitMu := new(sync.Mutex)
	for i, resolver := range run.Resolvers {
		w := &serverWorker{resolver: resolver}
		workers[i] = w
		g.Go(func() error {
			s.probeServer(runCtx, a, run, w, emitMu, timeout, delay, perf.MaxRetries)
			return nil
		})
	}
	_ = g.Wait()

	var probes []model.ProbeResult
	for _, w := range workers {
		probes = append(probes, w.results...)
	}

	s.finalize(a, runStart, probes)
}

// probeServer drives one resolver through the domain list in order, serially,
// with the configured delay between distinct probes. Probes interrupted by
// run cancellation are discarded rather than recorded as failures.
func (s *Scheduler) probeServer(ctx context.Context, a *registry.Active, run model.Run, w *serverWorker, emitMu *sync.Mutex, timeout, delay time.Duration, maxRetries int) {
	for i, domain := range run.Domains {
		if ctx.Err() != nil {
			return
		}

		res := s.probeWithRetries(ctx, w.resolver.Address, domain, timeout, maxRetries)
		if !res.Success && ctx.Err() != nil {
			// The run was cancelled or capped mid-probe; this outcome
			// measures the cancellation, not the resolver.
			return
		}
		res.RunID = run.ID
		w.results = append(w.results, res)

		// completed_count must be non-decreasing across probe_result events;
		// the increment and the publish form one critical section so another
		// worker cannot publish a later count first.
		emitMu.Lock()
		completed := a.AddCompleted()
		s.bus.Publish(run.ID, eventbus.Event{
			Type: eventbus.EventProbeResult,
			Payload: eventbus.ProbeCompleted{
				RunID:               run.ID,
				ResolverAddress:     w.resolver.Address,
				ResolverDisplayName: w.resolver.DisplayName,
				Domain:              domain,
				Success:             res.Success,
				ElapsedMs:           res.ElapsedMs,
				TimingSource:        res.TimingSource,
				ErrorKind:           res.ErrorKind,
				ResponseCode:        res.ResponseCode,
				ResolvedIP:          res.ResolvedIP,
				CompletedCount:      completed,
				TotalProbes:         run.TotalProbes(),
			},
		})
		emitMu.Unlock()

		progress := w.record(res)
		progress.RunID = run.ID
		progress.InFlight = i < len(run.Domains)-1
		s.bus.Publish(run.ID, eventbus.Event{Type: eventbus.EventServerProgress, Payload: progress})

		if delay > 0 && i < len(run.Domains)-1 {
			if !sleepCtx(ctx, delay) {
				return
			}
		}
	}
}

// probeWithRetries issues up to 1+maxRetries attempts with the same timeout.
// It returns the first successful attempt, otherwise the last attempt.
func (s *Scheduler) probeWithRetries(ctx context.Context, address, domain string, timeout time.Duration, maxRetries int) model.ProbeResult {
	var res model.ProbeResult
	for attempt := 0; ; attempt++ {
		res = s.probe(ctx, address, domain, timeout)
		if res.Success || attempt >= maxRetries || ctx.Err() != nil {
			return res
		}
		if !sleepCtx(ctx, retryDelay) {
			return res
		}
	}
}

// finalize computes summaries, persists the run, and emits the terminal
// event. Exactly one terminal event is published per run.
func (s *Scheduler) finalize(a *registry.Active, runStart time.Time, probes []model.ProbeResult) {
	run := a.Run()

	status := run.Status
	var failReason string
	switch {
	case status == model.StatusCancelled:
		// Cancel already transitioned the registry entry.
	case time.Since(runStart) >= s.wallclockCap:
		status = model.StatusFailed
		failReason = "run_wallclock_exceeded"
	default:
		status = model.StatusCompleted
	}

	summaries, analyses := stats.Summarize(run, probes)

	if status != model.StatusCancelled {
		if err := s.registry.Transition(run.ID, status); err != nil {
			log.Printf("[scheduler] run %s: transition to %s: %v", run.ID, status, err)
		}
	}
	run = a.Run()

	if err := s.persistWithRetry(run, summaries, probes, analyses); err != nil {
		log.Printf("[scheduler] run %s: persist failed: %v", run.ID, err)
		if status != model.StatusFailed {
			if terr := s.registry.Transition(run.ID, model.StatusFailed); terr == nil {
				run = a.Run()
			}
			// A failed run still carries whatever we managed to compute; one
			// last best-effort write so history is not silently empty.
			_ = s.store.PersistRun(run, summaries, probes, analyses)
		}
		s.bus.Publish(run.ID, eventbus.Event{
			Type:    eventbus.EventRunError,
			Payload: eventbus.RunError{RunID: run.ID, Message: "failed to persist run results"},
		})
		return
	}

	switch status {
	case model.StatusCancelled:
		s.bus.Publish(run.ID, eventbus.Event{
			Type:    eventbus.EventRunCancelled,
			Payload: eventbus.RunCancelled{RunID: run.ID},
		})
	case model.StatusFailed:
		s.bus.Publish(run.ID, eventbus.Event{
			Type:    eventbus.EventRunError,
			Payload: eventbus.RunError{RunID: run.ID, Message: failReason},
		})
	default:
		s.bus.Publish(run.ID, eventbus.Event{
			Type: eventbus.EventRunComplete,
			Payload: eventbus.RunCompleted{
				RunID:      run.ID,
				DurationMs: float64(time.Since(runStart)) / float64(time.Millisecond),
				Summaries:  summaries,
			},
		})
	}
	log.Printf("[scheduler] run %s: %s (%d probes)", run.ID, status, len(probes))
}

// persistWithRetry writes the run with bounded backoff. Store hiccups are
// transient engine errors; only exhausting the attempts fails the run.
func (s *Scheduler) persistWithRetry(run model.Run, summaries []model.ServerSummary, probes []model.ProbeResult, analyses []model.FailureAnalysis) error {
	var err error
	for attempt := 1; attempt <= persistAttempts; attempt++ {
		if err = s.store.PersistRun(run, summaries, probes, analyses); err == nil {
			return nil
		}
		if attempt < persistAttempts {
			time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
		}
	}
	return fmt.Errorf("persist run after %d attempts: %w", persistAttempts, err)
}

// sleepCtx sleeps for d or until ctx is done, reporting whether the full
// sleep elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func resolverAddresses(resolvers []model.Resolver) []string {
	out := make([]string, 0, len(resolvers))
	for _, r := range resolvers {
		out = append(out, r.Address)
	}
	return out
}
