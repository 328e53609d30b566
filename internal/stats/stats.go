// Package stats folds a run's probe results into per-server summaries and
// whole-run failure analyses. Everything here is a pure function of its
// inputs: re-running aggregation on stored probes reproduces identical rows.
package stats

import (
	"slices"
	"sort"
	"strings"

	"github.com/eddygk/dns-bench-sub000/internal/model"
)

// Summarize computes ranked per-server summaries and per-domain failure
// analyses for the run's probes. Summaries come back in rank order; analyses
// in domain order.
func Summarize(run model.Run, probes []model.ProbeResult) ([]model.ServerSummary, []model.FailureAnalysis) {
	summaries := Summaries(run, probes)
	Rank(summaries)
	analyses := AnalyzeFailures(run, probes)
	return summaries, analyses
}

// Summaries computes one ServerSummary per resolver in the run's snapshot,
// in snapshot order. Latency stats cover successful probes only.
func Summaries(run model.Run, probes []model.ProbeResult) []model.ServerSummary {
	byResolver := make(map[string][]model.ProbeResult, len(run.Resolvers))
	for _, p := range probes {
		byResolver[p.ResolverAddress] = append(byResolver[p.ResolverAddress], p)
	}

	summaries := make([]model.ServerSummary, 0, len(run.Resolvers))
	for _, r := range run.Resolvers {
		summaries = append(summaries, summarizeServer(run.ID, r, byResolver[r.Address]))
	}
	return summaries
}

func summarizeServer(runID string, r model.Resolver, probes []model.ProbeResult) model.ServerSummary {
	s := model.ServerSummary{
		RunID:           runID,
		ResolverAddress: r.Address,
		DisplayName:     r.DisplayName,
		Total:           len(probes),
		TimingPrecision: model.TimingHighPrecision,
	}

	var elapsed []float64
	sawHigh, sawFallback := false, false
	for _, p := range probes {
		switch p.TimingSource {
		case model.TimingFallback:
			sawFallback = true
		default:
			sawHigh = true
		}
		if p.Success {
			s.Successful++
			elapsed = append(elapsed, p.ElapsedMs)
		} else {
			s.Failed++
		}
	}
	switch {
	case sawHigh && sawFallback:
		s.TimingPrecision = model.TimingMixed
	case sawFallback:
		s.TimingPrecision = model.TimingFallback
	}

	if s.Total > 0 {
		s.SuccessRatePct = 100 * float64(s.Successful) / float64(s.Total)
	}
	if len(elapsed) == 0 {
		return s
	}

	sort.Float64s(elapsed)
	min := elapsed[0]
	max := elapsed[len(elapsed)-1]
	var sum float64
	for _, v := range elapsed {
		sum += v
	}
	avg := sum / float64(len(elapsed))
	med := lowerMedian(elapsed)

	s.MinMs, s.MaxMs, s.AvgMs, s.MedianMs = &min, &max, &avg, &med
	return s
}

// lowerMedian returns the median of a sorted slice, taking the lower of the
// two middle values for even-sized input.
func lowerMedian(sorted []float64) float64 {
	return sorted[(len(sorted)-1)/2]
}

// Rank sorts summaries in place: avg ascending, ties broken by success rate
// descending, then median ascending, then display name ascending. Servers
// with zero successful probes sort last regardless of avg.
func Rank(summaries []model.ServerSummary) {
	slices.SortStableFunc(summaries, compareSummaries)
}

func compareSummaries(a, b model.ServerSummary) int {
	aDead, bDead := a.Successful == 0, b.Successful == 0
	if aDead != bDead {
		if aDead {
			return 1
		}
		return -1
	}
	if !aDead {
		if c := compareFloat(*a.AvgMs, *b.AvgMs); c != 0 {
			return c
		}
		if c := compareFloat(b.SuccessRatePct, a.SuccessRatePct); c != 0 {
			return c
		}
		if c := compareFloat(*a.MedianMs, *b.MedianMs); c != 0 {
			return c
		}
	}
	return strings.Compare(a.DisplayName, b.DisplayName)
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// RepeatOffenders returns the domains with at least two failing probes across
// at least two distinct resolvers, sorted by domain.
func RepeatOffenders(probes []model.ProbeResult) []string {
	failures := make(map[string]map[string]int)
	for _, p := range probes {
		if p.Success {
			continue
		}
		if failures[p.Domain] == nil {
			failures[p.Domain] = make(map[string]int)
		}
		failures[p.Domain][p.ResolverAddress]++
	}

	var offenders []string
	for domain, byResolver := range failures {
		total := 0
		for _, n := range byResolver {
			total += n
		}
		if total >= 2 && len(byResolver) >= 2 {
			offenders = append(offenders, domain)
		}
	}
	sort.Strings(offenders)
	return offenders
}

// ServerFailureBreakdown is the per-resolver failure view of a run.
type ServerFailureBreakdown struct {
	ResolverAddress string   `json:"resolver_address"`
	FailedCount     int      `json:"failed_count"`
	FailureRatePct  float64  `json:"failure_rate_pct"`
	FailedDomains   []string `json:"failed_domains"`
}

// FailureBreakdown computes the per-resolver failure breakdown in the run's
// resolver snapshot order. Failed domains are sorted and deduplicated.
func FailureBreakdown(run model.Run, probes []model.ProbeResult) []ServerFailureBreakdown {
	type tally struct {
		total   int
		failed  int
		domains map[string]struct{}
	}
	tallies := make(map[string]*tally, len(run.Resolvers))
	for _, r := range run.Resolvers {
		tallies[r.Address] = &tally{domains: make(map[string]struct{})}
	}
	for _, p := range probes {
		t := tallies[p.ResolverAddress]
		if t == nil {
			continue
		}
		t.total++
		if !p.Success {
			t.failed++
			t.domains[p.Domain] = struct{}{}
		}
	}

	out := make([]ServerFailureBreakdown, 0, len(run.Resolvers))
	for _, r := range run.Resolvers {
		t := tallies[r.Address]
		b := ServerFailureBreakdown{
			ResolverAddress: r.Address,
			FailedCount:     t.failed,
			FailedDomains:   make([]string, 0, len(t.domains)),
		}
		if t.total > 0 {
			b.FailureRatePct = 100 * float64(t.failed) / float64(t.total)
		}
		for d := range t.domains {
			b.FailedDomains = append(b.FailedDomains, d)
		}
		sort.Strings(b.FailedDomains)
		out = append(out, b)
	}
	return out
}

// ErrorKindCount is one bucket of the run-wide error histogram.
type ErrorKindCount struct {
	Kind  model.ErrorKind `json:"kind"`
	Count int             `json:"count"`
}

// ErrorHistogram counts error kinds over failed probes, sorted by count
// descending with kind ascending as the deterministic tie-break.
func ErrorHistogram(probes []model.ProbeResult) []ErrorKindCount {
	counts := make(map[model.ErrorKind]int)
	for _, p := range probes {
		if !p.Success {
			counts[p.ErrorKind]++
		}
	}
	out := make([]ErrorKindCount, 0, len(counts))
	for kind, n := range counts {
		out = append(out, ErrorKindCount{Kind: kind, Count: n})
	}
	slices.SortFunc(out, func(a, b ErrorKindCount) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		return strings.Compare(string(a.Kind), string(b.Kind))
	})
	return out
}

// AnalyzeFailures classifies every domain with at least one failed probe,
// sorted by domain.
func AnalyzeFailures(run model.Run, probes []model.ProbeResult) []model.FailureAnalysis {
	localResolvers := make(map[string]bool)
	for _, r := range run.Resolvers {
		if r.Origin == model.OriginLocal {
			localResolvers[r.Address] = true
		}
	}

	type domainView struct {
		failedResolvers   map[string]bool
		succeededAnywhere bool
		localFailed       int
		kinds             map[model.ErrorKind]bool
	}
	views := make(map[string]*domainView)
	for _, p := range probes {
		v := views[p.Domain]
		if v == nil {
			v = &domainView{failedResolvers: make(map[string]bool), kinds: make(map[model.ErrorKind]bool)}
			views[p.Domain] = v
		}
		if p.Success {
			v.succeededAnywhere = true
			continue
		}
		v.failedResolvers[p.ResolverAddress] = true
		v.kinds[p.ErrorKind] = true
		if localResolvers[p.ResolverAddress] {
			v.localFailed++
		}
	}

	var analyses []model.FailureAnalysis
	for domain, v := range views {
		if len(v.failedResolvers) == 0 {
			continue
		}
		a := model.FailureAnalysis{
			RunID:                run.ID,
			Domain:               domain,
			FailedOnAllResolvers: len(v.failedResolvers) == len(run.Resolvers),
			FailurePattern:       classifyPattern(v.failedResolvers, v.kinds, len(run.Resolvers)),
		}
		a.UpstreamHint = classifyHint(a, v.succeededAnywhere, v.localFailed, countTrue(localResolvers))
		analyses = append(analyses, a)
	}
	slices.SortFunc(analyses, func(a, b model.FailureAnalysis) int {
		return strings.Compare(a.Domain, b.Domain)
	})
	return analyses
}

func classifyPattern(failedResolvers map[string]bool, kinds map[model.ErrorKind]bool, resolverCount int) model.FailurePattern {
	switch {
	case len(kinds) == 1 && kinds[model.ErrDNSTimeout]:
		return model.PatternConsistentTimeout
	case len(kinds) == 1 && kinds[model.ErrNXDomain]:
		return model.PatternConsistentNXDomain
	case len(failedResolvers) < resolverCount:
		return model.PatternServerSpecific
	}
	return model.PatternMixedErrors
}

func classifyHint(a model.FailureAnalysis, succeededAnywhere bool, localFailed, localCount int) model.UpstreamHint {
	if a.FailedOnAllResolvers &&
		(a.FailurePattern == model.PatternConsistentNXDomain || a.FailurePattern == model.PatternConsistentTimeout) {
		return model.HintLikelyUpstreamBlocked
	}
	if succeededAnywhere && localCount > 0 && localFailed >= localCount {
		return model.HintLikelyLocalIssue
	}
	return model.HintUnknown
}

func countTrue(m map[string]bool) int {
	n := 0
	for _, v := range m {
		if v {
			n++
		}
	}
	return n
}
