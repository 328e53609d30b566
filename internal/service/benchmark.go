package service

import (
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/maypok86/otter"

	"github.com/eddygk/dns-bench-sub000/internal/domains"
	"github.com/eddygk/dns-bench-sub000/internal/eventbus"
	"github.com/eddygk/dns-bench-sub000/internal/model"
	"github.com/eddygk/dns-bench-sub000/internal/registry"
	"github.com/eddygk/dns-bench-sub000/internal/scheduler"
	"github.com/eddygk/dns-bench-sub000/internal/settings"
	"github.com/eddygk/dns-bench-sub000/internal/stats"
	"github.com/eddygk/dns-bench-sub000/internal/store"
)

// detailCacheSize bounds the terminal-run detail cache.
const detailCacheSize = 128

// BenchmarkService coordinates runs end to end: configuration snapshots,
// registry bookkeeping, scheduling, and result reads.
type BenchmarkService struct {
	Settings  *settings.Store
	Registry  *registry.Registry
	Scheduler *scheduler.Scheduler
	Store     *store.Store
	Bus       *eventbus.Bus

	detailCache otter.Cache[string, RunDetail]
}

// NewBenchmarkService wires a BenchmarkService.
func NewBenchmarkService(cfg *settings.Store, reg *registry.Registry, sched *scheduler.Scheduler, st *store.Store, bus *eventbus.Bus) *BenchmarkService {
	cache, err := otter.MustBuilder[string, RunDetail](detailCacheSize).
		Cost(func(_ string, _ RunDetail) uint32 { return 1 }).
		Build()
	if err != nil {
		panic("service: build run detail cache: " + err.Error())
	}
	return &BenchmarkService{
		Settings:    cfg,
		Registry:    reg,
		Scheduler:   sched,
		Store:       st,
		Bus:         bus,
		detailCache: cache,
	}
}

// PerformanceOverrides carries per-request overrides of the persisted
// profile's scheduler knobs. Nil fields keep the persisted value.
type PerformanceOverrides struct {
	MaxConcurrentServers *int `json:"max_concurrent_servers,omitempty"`
	QueryTimeoutMs       *int `json:"query_timeout_ms,omitempty"`
	MaxRetries           *int `json:"max_retries,omitempty"`
	InterQueryDelayMs    *int `json:"inter_query_delay_ms,omitempty"`
}

// StartRequest describes a run submission.
type StartRequest struct {
	Kind             model.RunKind         `json:"kind"`
	Resolvers        []model.Resolver      `json:"resolvers,omitempty"`
	Domains          []string              `json:"domains,omitempty"`
	ProfileOverrides *PerformanceOverrides `json:"profile_overrides,omitempty"`
}

// StartRun validates the request, snapshots configuration, and starts the
// run asynchronously. It returns the assigned run ID immediately.
func (s *BenchmarkService) StartRun(req StartRequest) (string, error) {
	if !req.Kind.IsValid() {
		return "", invalidArg("unknown run kind: " + string(req.Kind))
	}

	profile, err := s.Settings.TestProfile()
	if err != nil {
		return "", internal("load test profile", err)
	}
	applyOverrides(&profile, req.ProfileOverrides)
	if err := settings.ValidateTestProfile(profile); err != nil {
		return "", invalidArg(err.Error())
	}

	resolvers, err := s.resolveServers(req)
	if err != nil {
		return "", err
	}
	domainList, err := s.resolveDomains(req, profile)
	if err != nil {
		return "", err
	}

	run := model.Run{
		Kind:      req.Kind,
		Resolvers: resolvers,
		Domains:   domainList,
		Profile:   profile,
	}
	run.Fingerprint = model.SnapshotFingerprint(resolvers, domainList, profile)

	active := s.Registry.Create(run)
	s.Scheduler.Start(active)

	created := active.Run()
	log.Printf("[service] run %s started: kind=%s resolvers=%d domains=%d",
		created.ID, created.Kind, len(resolvers), len(domainList))
	return created.ID, nil
}

// resolveServers picks the run's resolver set: the explicit list when given,
// otherwise the settings-derived default for the kind. Loopback addresses are
// filtered out of the benchmark path.
func (s *BenchmarkService) resolveServers(req StartRequest) ([]model.Resolver, error) {
	if len(req.Resolvers) == 0 {
		if req.Kind == model.RunCustom {
			return nil, invalidArg("custom runs require an explicit resolver list")
		}
		selected, err := s.Settings.SelectResolvers(req.Kind)
		if err != nil {
			return nil, invalidArg(err.Error())
		}
		return selected, nil
	}

	out := make([]model.Resolver, 0, len(req.Resolvers))
	for _, r := range req.Resolvers {
		if !r.ValidAddress() {
			return nil, invalidArg("resolver " + r.Address + " is not a valid IP address")
		}
		if r.IsLoopback() {
			continue
		}
		if r.DisplayName == "" {
			r.DisplayName = r.Address
		}
		if !r.Origin.IsValid() {
			r.Origin = model.OriginCustomPublic
		}
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		r.Enabled = true
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, invalidArg("resolver list must contain at least one non-loopback resolver")
	}
	return out, nil
}

// resolveDomains picks the run's domain list: explicit when given (required
// for custom runs), otherwise the built-in profile clamped by the configured
// count.
func (s *BenchmarkService) resolveDomains(req StartRequest, profile model.TestProfile) ([]string, error) {
	if len(req.Domains) > 0 {
		maxCount := profile.DomainCounts.Custom
		if maxCount <= 0 || maxCount > 500 {
			maxCount = 500
		}
		if err := domains.ValidateList(req.Domains, maxCount); err != nil {
			return nil, invalidArg(err.Error())
		}
		return req.Domains, nil
	}
	if req.Kind == model.RunCustom {
		return nil, invalidArg("custom runs require an explicit domain list")
	}

	count := profile.DomainCounts.Quick
	if req.Kind == model.RunFull {
		count = profile.DomainCounts.Full
	}
	list, err := domains.ForKind(req.Kind, count)
	if err != nil {
		return nil, invalidArg(err.Error())
	}
	return list, nil
}

func applyOverrides(profile *model.TestProfile, o *PerformanceOverrides) {
	if o == nil {
		return
	}
	if o.MaxConcurrentServers != nil {
		profile.Performance.MaxConcurrentServers = *o.MaxConcurrentServers
	}
	if o.QueryTimeoutMs != nil {
		profile.Performance.QueryTimeoutMs = *o.QueryTimeoutMs
	}
	if o.MaxRetries != nil {
		profile.Performance.MaxRetries = *o.MaxRetries
	}
	if o.InterQueryDelayMs != nil {
		profile.Performance.InterQueryDelayMs = *o.InterQueryDelayMs
	}
}

// CancelRun cancels an active run.
func (s *BenchmarkService) CancelRun(runID string) error {
	err := s.Registry.Cancel(runID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, registry.ErrNotFound):
		return notFound("run " + runID + " is not active")
	case errors.Is(err, registry.ErrInvalidTransition):
		return conflict("run " + runID + " is already finished")
	}
	return internal("cancel run", err)
}

// DeleteRun removes a finished run from history: its stored rows, registry
// entry, bus topic, and cached detail. Active runs must be cancelled first.
func (s *BenchmarkService) DeleteRun(runID string) error {
	if snap, err := s.Registry.Observe(runID); err == nil && !snap.Status.Terminal() {
		return conflict("run " + runID + " is still active; cancel it first")
	}
	if _, err := s.Store.GetRun(runID); errors.Is(err, store.ErrNotFound) {
		return notFound("run " + runID + " not found")
	} else if err != nil {
		return internal("load run", err)
	}
	if err := s.Store.DeleteRun(runID); err != nil {
		return internal("delete run", err)
	}
	s.Registry.Forget(runID)
	s.Bus.Forget(runID)
	s.detailCache.Delete(runID)
	log.Printf("[service] run %s deleted", runID)
	return nil
}

// RunStatus returns the status and progress counters of a run, consulting
// the registry first and falling back to the store for evicted terminal runs.
func (s *BenchmarkService) RunStatus(runID string) (registry.Snapshot, error) {
	snap, err := s.Registry.Observe(runID)
	if err == nil {
		return snap, nil
	}

	run, err := s.Store.GetRun(runID)
	if errors.Is(err, store.ErrNotFound) {
		return registry.Snapshot{}, notFound("run " + runID + " not found")
	}
	if err != nil {
		return registry.Snapshot{}, internal("load run", err)
	}

	probes, err := s.Store.GetProbes(runID)
	if err != nil {
		return registry.Snapshot{}, internal("load probes", err)
	}
	return registry.Snapshot{
		RunID:          runID,
		Status:         run.Status,
		CompletedCount: len(probes),
		TotalProbes:    run.TotalProbes(),
	}, nil
}

// RunDetail is the full result view of one run.
type RunDetail struct {
	Run             model.Run                      `json:"run"`
	Summaries       []model.ServerSummary          `json:"summaries"`
	Analyses        []model.FailureAnalysis        `json:"analyses"`
	RepeatOffenders []string                       `json:"repeat_offenders"`
	ErrorBreakdown  []stats.ErrorKindCount         `json:"error_breakdown"`
	ServerFailures  []stats.ServerFailureBreakdown `json:"server_failures"`
}

// GetRunDetail loads the full result view, serving terminal runs from a
// bounded cache.
func (s *BenchmarkService) GetRunDetail(runID string) (RunDetail, error) {
	if detail, ok := s.detailCache.Get(runID); ok {
		return detail, nil
	}

	export, err := s.Store.LoadExport(runID)
	if errors.Is(err, store.ErrNotFound) {
		return RunDetail{}, notFound("run " + runID + " not found")
	}
	if err != nil {
		return RunDetail{}, internal("load run", err)
	}

	detail := RunDetail{
		Run:             export.Run,
		Summaries:       export.Summaries,
		Analyses:        export.Analyses,
		RepeatOffenders: stats.RepeatOffenders(export.Probes),
		ErrorBreakdown:  stats.ErrorHistogram(export.Probes),
		ServerFailures:  stats.FailureBreakdown(export.Run, export.Probes),
	}
	if export.Run.Status.Terminal() {
		s.detailCache.Set(runID, detail)
	}
	return detail, nil
}

// ListRuns returns a history page, newest first, plus the total count.
func (s *BenchmarkService) ListRuns(limit, offset int) ([]model.Run, int, error) {
	runs, total, err := s.Store.ListRuns(limit, offset)
	if err != nil {
		return nil, 0, internal("list runs", err)
	}
	return runs, total, nil
}

// GetProbes returns all probe rows of a run.
func (s *BenchmarkService) GetProbes(runID string) ([]model.ProbeResult, error) {
	if _, err := s.Store.GetRun(runID); errors.Is(err, store.ErrNotFound) {
		return nil, notFound("run " + runID + " not found")
	} else if err != nil {
		return nil, internal("load run", err)
	}
	probes, err := s.Store.GetProbes(runID)
	if err != nil {
		return nil, internal("load probes", err)
	}
	return probes, nil
}

// GetFailures returns a run's failure analyses.
func (s *BenchmarkService) GetFailures(runID string) ([]model.FailureAnalysis, error) {
	if _, err := s.Store.GetRun(runID); errors.Is(err, store.ErrNotFound) {
		return nil, notFound("run " + runID + " not found")
	} else if err != nil {
		return nil, internal("load run", err)
	}
	analyses, err := s.Store.GetFailures(runID)
	if err != nil {
		return nil, internal("load failures", err)
	}
	return analyses, nil
}

// ExportRun renders a run in the requested format.
func (s *BenchmarkService) ExportRun(runID, format string) (data []byte, contentType string, err error) {
	switch format {
	case "json", "":
		data, err = s.Store.ExportJSON(runID)
		contentType = "application/json; charset=utf-8"
	case "csv":
		data, err = s.Store.ExportCSV(runID)
		contentType = "text/csv; charset=utf-8"
	default:
		return nil, "", invalidArg("format must be json or csv")
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, "", notFound("run " + runID + " not found")
	}
	if err != nil {
		return nil, "", internal("export run", err)
	}
	return data, contentType, nil
}
