package service

import (
	"log"

	"github.com/robfig/cron/v3"

	"github.com/eddygk/dns-bench-sub000/internal/model"
)

// ScheduledRunner triggers quick benchmark runs on a cron schedule. An empty
// schedule disables it entirely.
type ScheduledRunner struct {
	svc  *BenchmarkService
	cron *cron.Cron
}

// NewScheduledRunner registers a quick-run job on the given cron expression.
// An invalid expression is logged and leaves the runner idle rather than
// failing startup.
func NewScheduledRunner(svc *BenchmarkService, schedule string) *ScheduledRunner {
	r := &ScheduledRunner{svc: svc, cron: cron.New()}
	if schedule == "" {
		return r
	}
	_, err := r.cron.AddFunc(schedule, func() {
		runID, err := svc.StartRun(StartRequest{Kind: model.RunQuick})
		if err != nil {
			log.Printf("[cron] scheduled benchmark failed to start: %v", err)
			return
		}
		log.Printf("[cron] scheduled quick benchmark started: run %s", runID)
	})
	if err != nil {
		log.Printf("[cron] invalid schedule %q: %v", schedule, err)
	}
	return r
}

// Start begins the cron scheduler. A no-op when no job was registered.
func (r *ScheduledRunner) Start() {
	if len(r.cron.Entries()) == 0 {
		return
	}
	r.cron.Start()
}

// Stop stops the cron scheduler. Jobs already running are not interrupted.
func (r *ScheduledRunner) Stop() {
	r.cron.Stop()
}
