package store

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/eddygk/dns-bench-sub000/internal/model"
)

// RunExport is the full nested run object returned by the JSON export.
type RunExport struct {
	Run       model.Run               `json:"run"`
	Summaries []model.ServerSummary   `json:"summaries"`
	Probes    []model.ProbeResult     `json:"probes"`
	Analyses  []model.FailureAnalysis `json:"analyses"`
}

// LoadExport assembles the full run object from the store.
func (s *Store) LoadExport(runID string) (RunExport, error) {
	run, err := s.GetRun(runID)
	if err != nil {
		return RunExport{}, err
	}
	summaries, err := s.GetSummaries(runID)
	if err != nil {
		return RunExport{}, err
	}
	probes, err := s.GetProbes(runID)
	if err != nil {
		return RunExport{}, err
	}
	analyses, err := s.GetFailures(runID)
	if err != nil {
		return RunExport{}, err
	}
	return RunExport{Run: run, Summaries: summaries, Probes: probes, Analyses: analyses}, nil
}

// ExportJSON renders the full run object as indented JSON.
func (s *Store) ExportJSON(runID string) ([]byte, error) {
	export, err := s.LoadExport(runID)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal export: %w", err)
	}
	return data, nil
}

// csvHeader is the fixed column set of the CSV export.
var csvHeader = []string{
	"rank", "server_address", "display_name", "success_rate_pct",
	"avg_ms", "min_ms", "max_ms", "median_ms", "successful", "total", "timing_precision",
}

// ExportCSV renders the run's server summaries one row per resolver, sorted
// by rank. CRLF line endings, header row, UTF-8 without BOM.
func (s *Store) ExportCSV(runID string) ([]byte, error) {
	if _, err := s.GetRun(runID); err != nil {
		return nil, err
	}
	summaries, err := s.GetSummaries(runID)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString(strings.Join(csvHeader, ","))
	b.WriteString("\r\n")
	for i, sum := range summaries {
		fields := []string{
			strconv.Itoa(i + 1),
			csvEscape(sum.ResolverAddress),
			csvEscape(sum.DisplayName),
			formatFloat(sum.SuccessRatePct),
			formatFloatPtr(sum.AvgMs),
			formatFloatPtr(sum.MinMs),
			formatFloatPtr(sum.MaxMs),
			formatFloatPtr(sum.MedianMs),
			strconv.Itoa(sum.Successful),
			strconv.Itoa(sum.Total),
			string(sum.TimingPrecision),
		}
		b.WriteString(strings.Join(fields, ","))
		b.WriteString("\r\n")
	}
	return []byte(b.String()), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func csvEscape(s string) string {
	if !strings.ContainsAny(s, ",\"\r\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
