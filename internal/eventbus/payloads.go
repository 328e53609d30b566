package eventbus

import "github.com/eddygk/dns-bench-sub000/internal/model"

// RunStarted is the payload of a run_started event.
type RunStarted struct {
	RunID       string   `json:"run_id"`
	TotalProbes int      `json:"total_probes"`
	Resolvers   []string `json:"resolvers"`
	Domains     []string `json:"domains"`
}

// ProbeCompleted is the payload of a probe_result event.
type ProbeCompleted struct {
	RunID               string             `json:"run_id"`
	ResolverAddress     string             `json:"resolver_address"`
	ResolverDisplayName string             `json:"resolver_display_name"`
	Domain              string             `json:"domain"`
	Success             bool               `json:"success"`
	ElapsedMs           float64            `json:"elapsed_ms"`
	TimingSource        model.TimingSource `json:"timing_source"`
	ErrorKind           model.ErrorKind    `json:"error_kind,omitempty"`
	ResponseCode        model.ResponseCode `json:"response_code,omitempty"`
	ResolvedIP          string             `json:"resolved_ip,omitempty"`
	CompletedCount      int                `json:"completed_count"`
	TotalProbes         int                `json:"total_probes"`
}

// ServerProgress is the payload of a server_progress event, coalesced to at
// most one per resolver per probe completion.
type ServerProgress struct {
	RunID           string   `json:"run_id"`
	ResolverAddress string   `json:"resolver_address"`
	RunningAvgMs    *float64 `json:"running_avg_ms"`
	Successful      int      `json:"successful"`
	Total           int      `json:"total"`
	InFlight        bool     `json:"in_flight"`
}

// RunCompleted is the payload of a run_complete event. Summaries are in rank
// order.
type RunCompleted struct {
	RunID      string                `json:"run_id"`
	DurationMs float64               `json:"duration_ms"`
	Summaries  []model.ServerSummary `json:"summaries"`
}

// RunCancelled is the payload of a run_cancelled event.
type RunCancelled struct {
	RunID string `json:"run_id"`
}

// RunError is the payload of a run_error event.
type RunError struct {
	RunID   string `json:"run_id"`
	Message string `json:"message"`
}
