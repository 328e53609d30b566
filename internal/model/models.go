// Package model defines domain structs shared across the engine, the
// persistence layer, and the API surface.
package model

import (
	"net/netip"
	"time"
)

// ResolverOrigin describes where a resolver entry came from.
type ResolverOrigin string

const (
	OriginBuiltInPublic ResolverOrigin = "built_in_public"
	OriginCustomPublic  ResolverOrigin = "custom_public"
	OriginLocal         ResolverOrigin = "local"
)

// IsValid reports whether the origin is one of the known values.
func (o ResolverOrigin) IsValid() bool {
	switch o {
	case OriginBuiltInPublic, OriginCustomPublic, OriginLocal:
		return true
	}
	return false
}

// Resolver is a recursive DNS endpoint under test.
type Resolver struct {
	ID            string         `json:"id"`
	Address       string         `json:"address"`
	DisplayName   string         `json:"display_name"`
	ProviderLabel string         `json:"provider_label"`
	Origin        ResolverOrigin `json:"origin"`
	Enabled       bool           `json:"enabled"`
	IsPrimary     bool           `json:"is_primary"`
}

// ValidAddress reports whether the resolver address parses as an IP literal.
func (r Resolver) ValidAddress() bool {
	_, err := netip.ParseAddr(r.Address)
	return err == nil
}

// IsLoopback reports whether the resolver address is a loopback address.
// Loopback resolvers may be configured but are filtered out of benchmark runs.
func (r Resolver) IsLoopback() bool {
	addr, err := netip.ParseAddr(r.Address)
	if err != nil {
		return false
	}
	return addr.IsLoopback()
}

// RunKind selects the domain profile for a run.
type RunKind string

const (
	RunQuick  RunKind = "quick"
	RunFull   RunKind = "full"
	RunCustom RunKind = "custom"
)

// IsValid reports whether the kind is one of the known values.
func (k RunKind) IsValid() bool {
	switch k {
	case RunQuick, RunFull, RunCustom:
		return true
	}
	return false
}

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusCancelled RunStatus = "cancelled"
	StatusFailed    RunStatus = "failed"
)

// Terminal reports whether the status is final. Runs are immutable once terminal.
func (s RunStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// DomainCounts bounds the cardinality of each domain profile.
type DomainCounts struct {
	Quick  int `json:"quick"`
	Full   int `json:"full"`
	Custom int `json:"custom"`
}

// QueryTypes are persisted operator toggles. Their probe-shaping semantics are
// intentionally left to the analyses; the scheduler ignores them.
type QueryTypes struct {
	Cached   bool `json:"cached"`
	Uncached bool `json:"uncached"`
	Dotcom   bool `json:"dotcom"`
}

// Performance holds the scheduler-affecting knobs of a TestProfile.
type Performance struct {
	MaxConcurrentServers int `json:"max_concurrent_servers"`
	QueryTimeoutMs       int `json:"query_timeout_ms"`
	MaxRetries           int `json:"max_retries"`
	InterQueryDelayMs    int `json:"inter_query_delay_ms"`
}

// Analysis holds persisted analysis toggles surfaced to the UI.
type Analysis struct {
	DetectNXDomainRedirection bool `json:"detect_nxdomain_redirection"`
	DetectMalwareBlocking     bool `json:"detect_malware_blocking"`
	TestDNSSEC                bool `json:"test_dnssec"`
	MinReliabilityPct         int  `json:"min_reliability_pct"`
}

// TestProfile is the operator's persisted test-parameter profile.
type TestProfile struct {
	DomainCounts DomainCounts `json:"domain_counts"`
	QueryTypes   QueryTypes   `json:"query_types"`
	Performance  Performance  `json:"performance"`
	Analysis     Analysis     `json:"analysis"`
}

// TimingSource records which clock produced an elapsed-time measurement.
type TimingSource string

const (
	TimingHighPrecision TimingSource = "high_precision"
	TimingFallback      TimingSource = "fallback"
	// TimingMixed appears only in ServerSummary when a server's probes used
	// both sources.
	TimingMixed TimingSource = "mixed"
)

// ResponseCode is the coarse DNS response classification of a probe.
type ResponseCode string

const (
	CodeNoError  ResponseCode = "NOERROR"
	CodeNXDomain ResponseCode = "NXDOMAIN"
	CodeServFail ResponseCode = "SERVFAIL"
	CodeTimeout  ResponseCode = "TIMEOUT"
	CodeRefused  ResponseCode = "REFUSED"
	CodeOther    ResponseCode = "OTHER"
)

// ErrorKind is the probe failure taxonomy.
type ErrorKind string

const (
	ErrNone       ErrorKind = "none"
	ErrDNSTimeout ErrorKind = "DNS_TIMEOUT"
	ErrNoData     ErrorKind = "NO_DATA"
	ErrNXDomain   ErrorKind = "NX_DOMAIN"
	ErrServerFail ErrorKind = "SERVER_FAIL"
	ErrRefused    ErrorKind = "REFUSED"
	ErrNetwork    ErrorKind = "NETWORK"
	ErrUnknown    ErrorKind = "UNKNOWN"
)

// ProbeResult is the recorded outcome of one (run, resolver, domain) query
// attempt group after retries.
//
// Invariant: Success ⇔ ErrorKind==ErrNone ∧ ResponseCode==CodeNoError ∧
// ResolvedIP != "".
type ProbeResult struct {
	RunID           string       `json:"run_id"`
	ResolverAddress string       `json:"resolver_address"`
	Domain          string       `json:"domain"`
	Success         bool         `json:"success"`
	ElapsedMs       float64      `json:"elapsed_ms"`
	TimingSource    TimingSource `json:"timing_source"`
	ResponseCode    ResponseCode `json:"response_code"`
	ErrorKind       ErrorKind    `json:"error_kind"`
	ResolvedIP      string       `json:"resolved_ip,omitempty"`
	RawSummary      string       `json:"raw_summary,omitempty"`
	ObservedAt      time.Time    `json:"observed_at"`
}

// ServerSummary is the per-(run, resolver) statistical rollup. Latency fields
// are computed over successful probes only and are nil when none succeeded.
type ServerSummary struct {
	RunID           string       `json:"run_id"`
	ResolverAddress string       `json:"resolver_address"`
	DisplayName     string       `json:"display_name"`
	Total           int          `json:"total"`
	Successful      int          `json:"successful"`
	Failed          int          `json:"failed"`
	SuccessRatePct  float64      `json:"success_rate_pct"`
	AvgMs           *float64     `json:"avg_ms"`
	MinMs           *float64     `json:"min_ms"`
	MaxMs           *float64     `json:"max_ms"`
	MedianMs        *float64     `json:"median_ms"`
	TimingPrecision TimingSource `json:"timing_precision"`
}

// FailurePattern classifies how a domain failed across a run's resolvers.
type FailurePattern string

const (
	PatternConsistentTimeout  FailurePattern = "consistent_timeout"
	PatternConsistentNXDomain FailurePattern = "consistent_nxdomain"
	PatternMixedErrors        FailurePattern = "mixed_errors"
	PatternServerSpecific     FailurePattern = "server_specific"
)

// UpstreamHint is the heuristic root-cause classification for a failing domain.
type UpstreamHint string

const (
	HintLikelyUpstreamBlocked UpstreamHint = "likely_upstream_blocked"
	HintLikelyLocalIssue      UpstreamHint = "likely_local_issue"
	HintUnknown               UpstreamHint = "unknown"
)

// FailureAnalysis is the per-(run, domain) failure classification. One row
// exists per domain with at least one failed probe.
type FailureAnalysis struct {
	RunID                string         `json:"run_id"`
	Domain               string         `json:"domain"`
	FailedOnAllResolvers bool           `json:"failed_on_all_resolvers"`
	FailurePattern       FailurePattern `json:"failure_pattern"`
	UpstreamHint         UpstreamHint   `json:"upstream_hint"`
}

// Run is a batch of probes over a (resolvers × domains) matrix. Resolver and
// domain snapshots are taken at run start so later configuration edits never
// mutate historical runs.
type Run struct {
	ID          string      `json:"id"`
	Kind        RunKind     `json:"kind"`
	Status      RunStatus   `json:"status"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt *time.Time  `json:"completed_at"`
	Resolvers   []Resolver  `json:"resolvers"`
	Domains     []string    `json:"domains"`
	Profile     TestProfile `json:"profile"`
	Fingerprint string      `json:"fingerprint"`
}

// TotalProbes is the size of the run's probe matrix.
func (r Run) TotalProbes() int {
	return len(r.Resolvers) * len(r.Domains)
}
