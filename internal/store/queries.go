package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/eddygk/dns-bench-sub000/internal/model"
)

// ErrNotFound is returned when a run does not exist in the store.
var ErrNotFound = errors.New("run not found")

const runColumns = `id, kind, status, started_at_ns, completed_at_ns, fingerprint,
	resolver_snapshot_json, domain_snapshot_json, profile_snapshot_json`

func scanRun(scan func(dest ...any) error) (model.Run, error) {
	var (
		run          model.Run
		kind, status string
		startedNs    int64
		completedNs  sql.NullInt64
		resolverJSON string
		domainJSON   string
		profileJSON  string
	)
	if err := scan(&run.ID, &kind, &status, &startedNs, &completedNs, &run.Fingerprint,
		&resolverJSON, &domainJSON, &profileJSON); err != nil {
		return run, err
	}
	run.Kind = model.RunKind(kind)
	run.Status = model.RunStatus(status)
	run.StartedAt = time.Unix(0, startedNs).UTC()
	if completedNs.Valid {
		t := time.Unix(0, completedNs.Int64).UTC()
		run.CompletedAt = &t
	}
	if err := json.Unmarshal([]byte(resolverJSON), &run.Resolvers); err != nil {
		return run, fmt.Errorf("unmarshal resolver snapshot: %w", err)
	}
	if err := json.Unmarshal([]byte(domainJSON), &run.Domains); err != nil {
		return run, fmt.Errorf("unmarshal domain snapshot: %w", err)
	}
	if err := json.Unmarshal([]byte(profileJSON), &run.Profile); err != nil {
		return run, fmt.Errorf("unmarshal profile snapshot: %w", err)
	}
	return run, nil
}

// GetRun loads one run by ID.
func (s *Store) GetRun(id string) (model.Run, error) {
	row := s.db.QueryRow("SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return run, ErrNotFound
	}
	if err != nil {
		return run, fmt.Errorf("scan run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns a page of runs ordered by start time descending, plus the
// total run count.
func (s *Store) ListRuns(limit, offset int) ([]model.Run, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count runs: %w", err)
	}

	rows, err := s.db.Query(
		"SELECT "+runColumns+" FROM runs ORDER BY started_at_ns DESC, id LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]model.Run, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, total, rows.Err()
}

// GetSummaries returns a run's server summaries in rank order.
func (s *Store) GetSummaries(runID string) ([]model.ServerSummary, error) {
	rows, err := s.db.Query(`
		SELECT run_id, resolver_address, display_name, total, successful, failed,
		       success_rate_pct, avg_ms, min_ms, max_ms, median_ms, timing_precision
		FROM server_summaries WHERE run_id = ? ORDER BY rank
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()

	var out []model.ServerSummary
	for rows.Next() {
		var (
			sum                   model.ServerSummary
			avg, min, max, median sql.NullFloat64
			precision             string
		)
		if err := rows.Scan(&sum.RunID, &sum.ResolverAddress, &sum.DisplayName, &sum.Total,
			&sum.Successful, &sum.Failed, &sum.SuccessRatePct, &avg, &min, &max, &median,
			&precision); err != nil {
			return nil, fmt.Errorf("scan summary row: %w", err)
		}
		sum.AvgMs = floatPtr(avg)
		sum.MinMs = floatPtr(min)
		sum.MaxMs = floatPtr(max)
		sum.MedianMs = floatPtr(median)
		sum.TimingPrecision = model.TimingSource(precision)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// GetProbes returns all probe rows for a run in insertion order.
func (s *Store) GetProbes(runID string) ([]model.ProbeResult, error) {
	rows, err := s.db.Query(`
		SELECT run_id, resolver_address, domain, success, elapsed_ms, timing_source,
		       response_code, error_kind, resolved_ip, raw_summary, observed_at_ns
		FROM probe_results WHERE run_id = ? ORDER BY rowid
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query probes: %w", err)
	}
	defer rows.Close()

	var out []model.ProbeResult
	for rows.Next() {
		var (
			p                  model.ProbeResult
			success            int
			timing, code, kind string
			observedNs         int64
		)
		if err := rows.Scan(&p.RunID, &p.ResolverAddress, &p.Domain, &success, &p.ElapsedMs,
			&timing, &code, &kind, &p.ResolvedIP, &p.RawSummary, &observedNs); err != nil {
			return nil, fmt.Errorf("scan probe row: %w", err)
		}
		p.Success = success != 0
		p.TimingSource = model.TimingSource(timing)
		p.ResponseCode = model.ResponseCode(code)
		p.ErrorKind = model.ErrorKind(kind)
		p.ObservedAt = time.Unix(0, observedNs).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetFailures returns a run's failure analyses in domain order.
func (s *Store) GetFailures(runID string) ([]model.FailureAnalysis, error) {
	rows, err := s.db.Query(`
		SELECT run_id, domain, failed_on_all_resolvers, failure_pattern, upstream_hint
		FROM failure_analyses WHERE run_id = ? ORDER BY domain
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	var out []model.FailureAnalysis
	for rows.Next() {
		var (
			a             model.FailureAnalysis
			failedAll     int
			pattern, hint string
		)
		if err := rows.Scan(&a.RunID, &a.Domain, &failedAll, &pattern, &hint); err != nil {
			return nil, fmt.Errorf("scan failure row: %w", err)
		}
		a.FailedOnAllResolvers = failedAll != 0
		a.FailurePattern = model.FailurePattern(pattern)
		a.UpstreamHint = model.UpstreamHint(hint)
		out = append(out, a)
	}
	return out, rows.Err()
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
