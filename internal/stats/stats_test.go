package stats

import (
	"reflect"
	"testing"
	"time"

	"github.com/eddygk/dns-bench-sub000/internal/model"
)

func testRun(resolvers ...model.Resolver) model.Run {
	return model.Run{
		ID:        "run-1",
		Kind:      model.RunCustom,
		Status:    model.StatusRunning,
		StartedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Resolvers: resolvers,
	}
}

func resolver(addr, name string, origin model.ResolverOrigin) model.Resolver {
	return model.Resolver{Address: addr, DisplayName: name, Origin: origin, Enabled: true}
}

func ok(resolver, domain string, ms float64) model.ProbeResult {
	return model.ProbeResult{
		RunID:           "run-1",
		ResolverAddress: resolver,
		Domain:          domain,
		Success:         true,
		ElapsedMs:       ms,
		TimingSource:    model.TimingHighPrecision,
		ResponseCode:    model.CodeNoError,
		ErrorKind:       model.ErrNone,
		ResolvedIP:      "192.0.2.10",
	}
}

func fail(resolver, domain string, kind model.ErrorKind) model.ProbeResult {
	code := model.CodeOther
	switch kind {
	case model.ErrDNSTimeout:
		code = model.CodeTimeout
	case model.ErrNXDomain:
		code = model.CodeNXDomain
	case model.ErrServerFail:
		code = model.CodeServFail
	}
	return model.ProbeResult{
		RunID:           "run-1",
		ResolverAddress: resolver,
		Domain:          domain,
		TimingSource:    model.TimingHighPrecision,
		ResponseCode:    code,
		ErrorKind:       kind,
	}
}

func TestSummaries_LatencyStats(t *testing.T) {
	run := testRun(resolver("8.8.8.8", "Google", model.OriginBuiltInPublic))
	probes := []model.ProbeResult{
		ok("8.8.8.8", "a.com", 10),
		ok("8.8.8.8", "b.com", 30),
		ok("8.8.8.8", "c.com", 20),
		ok("8.8.8.8", "d.com", 40),
		fail("8.8.8.8", "e.com", model.ErrDNSTimeout),
	}

	got := Summaries(run, probes)
	if len(got) != 1 {
		t.Fatalf("summaries: got %d, want 1", len(got))
	}
	s := got[0]
	if s.Total != 5 || s.Successful != 4 || s.Failed != 1 {
		t.Fatalf("counts: got total=%d successful=%d failed=%d", s.Total, s.Successful, s.Failed)
	}
	if s.SuccessRatePct != 80 {
		t.Fatalf("success rate: got %v, want 80", s.SuccessRatePct)
	}
	if *s.MinMs != 10 || *s.MaxMs != 40 || *s.AvgMs != 25 {
		t.Fatalf("latency: min=%v avg=%v max=%v", *s.MinMs, *s.AvgMs, *s.MaxMs)
	}
	// Even-sized set takes the lower median.
	if *s.MedianMs != 20 {
		t.Fatalf("median: got %v, want 20", *s.MedianMs)
	}
}

func TestSummaries_AllFailedHasNilLatency(t *testing.T) {
	run := testRun(resolver("192.0.2.1", "Dead", model.OriginCustomPublic))
	probes := []model.ProbeResult{
		fail("192.0.2.1", "a.com", model.ErrDNSTimeout),
		fail("192.0.2.1", "b.com", model.ErrDNSTimeout),
	}

	s := Summaries(run, probes)[0]
	if s.SuccessRatePct != 0 {
		t.Fatalf("success rate: got %v, want 0", s.SuccessRatePct)
	}
	if s.AvgMs != nil || s.MinMs != nil || s.MaxMs != nil || s.MedianMs != nil {
		t.Fatalf("latency fields should be nil when no probe succeeded: %+v", s)
	}
	if s.Successful+s.Failed != s.Total {
		t.Fatalf("successful+failed != total: %+v", s)
	}
}

func TestSummaries_MixedTimingPrecision(t *testing.T) {
	run := testRun(resolver("8.8.8.8", "Google", model.OriginBuiltInPublic))
	fallback := ok("8.8.8.8", "b.com", 12)
	fallback.TimingSource = model.TimingFallback
	probes := []model.ProbeResult{ok("8.8.8.8", "a.com", 10), fallback}

	s := Summaries(run, probes)[0]
	if s.TimingPrecision != model.TimingMixed {
		t.Fatalf("timing precision: got %s, want mixed", s.TimingPrecision)
	}
}

func TestRank_Ordering(t *testing.T) {
	avg := func(v float64) *float64 { return &v }
	summaries := []model.ServerSummary{
		{DisplayName: "slow", Successful: 5, SuccessRatePct: 100, AvgMs: avg(50), MedianMs: avg(50)},
		{DisplayName: "dead", Successful: 0, SuccessRatePct: 0},
		{DisplayName: "fast-flaky", Successful: 3, SuccessRatePct: 60, AvgMs: avg(10), MedianMs: avg(10)},
		{DisplayName: "fast", Successful: 5, SuccessRatePct: 100, AvgMs: avg(10), MedianMs: avg(10)},
	}

	Rank(summaries)

	want := []string{"fast", "fast-flaky", "slow", "dead"}
	for i, name := range want {
		if summaries[i].DisplayName != name {
			t.Fatalf("rank %d: got %q, want %q (full: %+v)", i, summaries[i].DisplayName, name, summaries)
		}
	}
}

func TestRank_ZeroSuccessAlwaysLast(t *testing.T) {
	avg := func(v float64) *float64 { return &v }
	summaries := []model.ServerSummary{
		{DisplayName: "dead-a", Successful: 0},
		{DisplayName: "alive", Successful: 1, SuccessRatePct: 10, AvgMs: avg(900), MedianMs: avg(900)},
	}
	Rank(summaries)
	if summaries[0].DisplayName != "alive" {
		t.Fatalf("zero-success server ranked before a live one: %+v", summaries)
	}
}

func TestRepeatOffenders(t *testing.T) {
	probes := []model.ProbeResult{
		fail("1.1.1.1", "bad.com", model.ErrDNSTimeout),
		fail("8.8.8.8", "bad.com", model.ErrDNSTimeout),
		fail("1.1.1.1", "one-resolver.com", model.ErrDNSTimeout),
		fail("1.1.1.1", "one-resolver.com", model.ErrDNSTimeout),
		fail("8.8.8.8", "single.com", model.ErrNXDomain),
		ok("1.1.1.1", "fine.com", 5),
	}

	got := RepeatOffenders(probes)
	// one-resolver.com failed twice but only on one resolver; single.com only once.
	want := []string{"bad.com"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("repeat offenders: got %v, want %v", got, want)
	}
}

func TestFailureBreakdown(t *testing.T) {
	run := testRun(
		resolver("1.1.1.1", "Cloudflare", model.OriginBuiltInPublic),
		resolver("8.8.8.8", "Google", model.OriginBuiltInPublic),
	)
	probes := []model.ProbeResult{
		ok("1.1.1.1", "a.com", 5),
		fail("1.1.1.1", "b.com", model.ErrDNSTimeout),
		ok("8.8.8.8", "a.com", 6),
		ok("8.8.8.8", "b.com", 7),
	}

	got := FailureBreakdown(run, probes)
	if len(got) != 2 {
		t.Fatalf("breakdown rows: got %d, want 2", len(got))
	}
	if got[0].FailedCount != 1 || got[0].FailureRatePct != 50 {
		t.Fatalf("cloudflare breakdown: %+v", got[0])
	}
	if !reflect.DeepEqual(got[0].FailedDomains, []string{"b.com"}) {
		t.Fatalf("cloudflare failed domains: %v", got[0].FailedDomains)
	}
	if got[1].FailedCount != 0 || len(got[1].FailedDomains) != 0 {
		t.Fatalf("google breakdown: %+v", got[1])
	}
}

func TestErrorHistogram(t *testing.T) {
	probes := []model.ProbeResult{
		fail("1.1.1.1", "a.com", model.ErrDNSTimeout),
		fail("1.1.1.1", "b.com", model.ErrDNSTimeout),
		fail("8.8.8.8", "c.com", model.ErrNXDomain),
		fail("8.8.8.8", "d.com", model.ErrServerFail),
		ok("8.8.8.8", "e.com", 4),
	}

	got := ErrorHistogram(probes)
	want := []ErrorKindCount{
		{Kind: model.ErrDNSTimeout, Count: 2},
		{Kind: model.ErrNXDomain, Count: 1},
		{Kind: model.ErrServerFail, Count: 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("histogram: got %v, want %v", got, want)
	}
}

func TestAnalyzeFailures_ConsistentNXDomain(t *testing.T) {
	run := testRun(
		resolver("1.1.1.1", "Cloudflare", model.OriginBuiltInPublic),
		resolver("8.8.8.8", "Google", model.OriginBuiltInPublic),
		resolver("9.9.9.9", "Quad9", model.OriginBuiltInPublic),
	)
	probes := []model.ProbeResult{
		fail("1.1.1.1", "gone.example", model.ErrNXDomain),
		fail("8.8.8.8", "gone.example", model.ErrNXDomain),
		fail("9.9.9.9", "gone.example", model.ErrNXDomain),
	}

	got := AnalyzeFailures(run, probes)
	if len(got) != 1 {
		t.Fatalf("analyses: got %d, want 1", len(got))
	}
	a := got[0]
	if !a.FailedOnAllResolvers {
		t.Fatalf("failed_on_all_resolvers: got false")
	}
	if a.FailurePattern != model.PatternConsistentNXDomain {
		t.Fatalf("pattern: got %s", a.FailurePattern)
	}
	if a.UpstreamHint != model.HintLikelyUpstreamBlocked {
		t.Fatalf("hint: got %s", a.UpstreamHint)
	}
}

func TestAnalyzeFailures_ServerSpecific(t *testing.T) {
	run := testRun(
		resolver("1.1.1.1", "Cloudflare", model.OriginBuiltInPublic),
		resolver("8.8.8.8", "Google", model.OriginBuiltInPublic),
	)
	probes := []model.ProbeResult{
		fail("1.1.1.1", "flaky.com", model.ErrServerFail),
		ok("8.8.8.8", "flaky.com", 12),
	}

	a := AnalyzeFailures(run, probes)[0]
	if a.FailedOnAllResolvers {
		t.Fatalf("failed_on_all_resolvers: got true")
	}
	if a.FailurePattern != model.PatternServerSpecific {
		t.Fatalf("pattern: got %s", a.FailurePattern)
	}
	if a.UpstreamHint != model.HintUnknown {
		t.Fatalf("hint: got %s", a.UpstreamHint)
	}
}

func TestAnalyzeFailures_LocalIssueHint(t *testing.T) {
	run := testRun(
		resolver("192.168.1.1", "Router", model.OriginLocal),
		resolver("8.8.8.8", "Google", model.OriginBuiltInPublic),
	)
	probes := []model.ProbeResult{
		fail("192.168.1.1", "site.com", model.ErrServerFail),
		ok("8.8.8.8", "site.com", 15),
	}

	a := AnalyzeFailures(run, probes)[0]
	if a.UpstreamHint != model.HintLikelyLocalIssue {
		t.Fatalf("hint: got %s, want likely_local_issue", a.UpstreamHint)
	}
}

func TestAnalyzeFailures_MixedErrors(t *testing.T) {
	run := testRun(
		resolver("1.1.1.1", "Cloudflare", model.OriginBuiltInPublic),
		resolver("8.8.8.8", "Google", model.OriginBuiltInPublic),
	)
	probes := []model.ProbeResult{
		fail("1.1.1.1", "odd.com", model.ErrDNSTimeout),
		fail("8.8.8.8", "odd.com", model.ErrServerFail),
	}

	a := AnalyzeFailures(run, probes)[0]
	if a.FailurePattern != model.PatternMixedErrors {
		t.Fatalf("pattern: got %s, want mixed_errors", a.FailurePattern)
	}
}

func TestSummarize_Deterministic(t *testing.T) {
	run := testRun(
		resolver("1.1.1.1", "Cloudflare", model.OriginBuiltInPublic),
		resolver("8.8.8.8", "Google", model.OriginBuiltInPublic),
	)
	probes := []model.ProbeResult{
		ok("1.1.1.1", "a.com", 8),
		fail("1.1.1.1", "b.com", model.ErrDNSTimeout),
		ok("8.8.8.8", "a.com", 6),
		fail("8.8.8.8", "b.com", model.ErrNXDomain),
	}

	s1, a1 := Summarize(run, probes)
	s2, a2 := Summarize(run, probes)
	if !reflect.DeepEqual(s1, s2) {
		t.Fatalf("summaries differ between invocations:\n%+v\n%+v", s1, s2)
	}
	if !reflect.DeepEqual(a1, a2) {
		t.Fatalf("analyses differ between invocations:\n%+v\n%+v", a1, a2)
	}
}
