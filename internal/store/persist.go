package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/eddygk/dns-bench-sub000/internal/model"
)

// PersistRun writes a run and all of its child rows in one transaction.
// Either every row for the run becomes visible or none does. Re-persisting
// the same run is an idempotent replace: existing child rows are removed
// first. Summaries must be supplied in rank order.
func (s *Store) PersistRun(run model.Run, summaries []model.ServerSummary, probes []model.ProbeResult, analyses []model.FailureAnalysis) error {
	resolverJSON, err := json.Marshal(run.Resolvers)
	if err != nil {
		return fmt.Errorf("marshal resolver snapshot: %w", err)
	}
	domainJSON, err := json.Marshal(run.Domains)
	if err != nil {
		return fmt.Errorf("marshal domain snapshot: %w", err)
	}
	profileJSON, err := json.Marshal(run.Profile)
	if err != nil {
		return fmt.Errorf("marshal profile snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin persist tx: %w", err)
	}
	defer tx.Rollback()

	var completedNs sql.NullInt64
	if run.CompletedAt != nil {
		completedNs = sql.NullInt64{Int64: run.CompletedAt.UnixNano(), Valid: true}
	}
	if _, err := tx.Exec(`
		INSERT INTO runs (id, kind, status, started_at_ns, completed_at_ns, fingerprint,
		                  resolver_snapshot_json, domain_snapshot_json, profile_snapshot_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind                   = excluded.kind,
			status                 = excluded.status,
			started_at_ns          = excluded.started_at_ns,
			completed_at_ns        = excluded.completed_at_ns,
			fingerprint            = excluded.fingerprint,
			resolver_snapshot_json = excluded.resolver_snapshot_json,
			domain_snapshot_json   = excluded.domain_snapshot_json,
			profile_snapshot_json  = excluded.profile_snapshot_json
	`, run.ID, string(run.Kind), string(run.Status), run.StartedAt.UnixNano(), completedNs,
		run.Fingerprint, string(resolverJSON), string(domainJSON), string(profileJSON)); err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}

	for _, table := range []string{"server_summaries", "probe_results", "failure_analyses"} {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE run_id = ?", run.ID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for rank, sum := range summaries {
		if _, err := tx.Exec(`
			INSERT INTO server_summaries (run_id, resolver_address, display_name, rank, total,
			                              successful, failed, success_rate_pct, avg_ms, min_ms,
			                              max_ms, median_ms, timing_precision)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, run.ID, sum.ResolverAddress, sum.DisplayName, rank+1, sum.Total,
			sum.Successful, sum.Failed, sum.SuccessRatePct, nullable(sum.AvgMs), nullable(sum.MinMs),
			nullable(sum.MaxMs), nullable(sum.MedianMs), string(sum.TimingPrecision)); err != nil {
			return fmt.Errorf("insert summary for %s: %w", sum.ResolverAddress, err)
		}
	}

	for _, p := range probes {
		if _, err := tx.Exec(`
			INSERT INTO probe_results (run_id, resolver_address, domain, success, elapsed_ms,
			                           timing_source, response_code, error_kind, resolved_ip,
			                           raw_summary, observed_at_ns)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, run.ID, p.ResolverAddress, p.Domain, boolInt(p.Success), p.ElapsedMs,
			string(p.TimingSource), string(p.ResponseCode), string(p.ErrorKind), p.ResolvedIP,
			p.RawSummary, p.ObservedAt.UnixNano()); err != nil {
			return fmt.Errorf("insert probe row: %w", err)
		}
	}

	for _, a := range analyses {
		if _, err := tx.Exec(`
			INSERT INTO failure_analyses (run_id, domain, failed_on_all_resolvers, failure_pattern, upstream_hint)
			VALUES (?, ?, ?, ?, ?)
		`, run.ID, a.Domain, boolInt(a.FailedOnAllResolvers), string(a.FailurePattern), string(a.UpstreamHint)); err != nil {
			return fmt.Errorf("insert failure analysis for %s: %w", a.Domain, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit persist tx: %w", err)
	}
	return nil
}

// DeleteRun removes a run and its child rows. Supports bounded retention
// sweeps; the engine never calls it on its own.
func (s *Store) DeleteRun(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec("DELETE FROM runs WHERE id = ?", runID)
	return err
}

func nullable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
