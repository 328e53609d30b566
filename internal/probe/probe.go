// Package probe issues single A-record queries against one resolver with a
// deadline and converts the outcome into the engine's failure taxonomy.
//
// Each probe builds its own dns.Client so concurrent probes never share
// mutable resolver state and never touch the host's default resolver.
package probe

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/eddygk/dns-bench-sub000/internal/model"
)

// Exchanger performs one DNS exchange. Injectable for testing; the default
// builds a fresh UDP dns.Client per call.
type Exchanger func(ctx context.Context, msg *dns.Msg, addr string, timeout time.Duration) (*dns.Msg, time.Duration, error)

// Prober executes probes against resolvers.
type Prober struct {
	exchange Exchanger
}

// New creates a Prober using the real UDP exchanger.
func New() *Prober {
	return &Prober{exchange: udpExchange}
}

// NewWithExchanger creates a Prober with a custom exchange function.
func NewWithExchanger(ex Exchanger) *Prober {
	return &Prober{exchange: ex}
}

// udpExchange sends msg to addr over UDP with a per-call client. The client
// is constructed per exchange: a resolver per query, never shared.
func udpExchange(ctx context.Context, msg *dns.Msg, addr string, timeout time.Duration) (*dns.Msg, time.Duration, error) {
	client := &dns.Client{
		Net:          "udp",
		Timeout:      timeout,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
	return client.ExchangeContext(ctx, msg, addr)
}

// Probe issues exactly one A-record recursive query for domain against the
// resolver at address. On timeout it returns promptly with ElapsedMs equal to
// the deadline. The elapsed time comes from the monotonic clock; if the
// monotonic reading is unusable the probe remeasures with the wall clock and
// records TimingFallback.
func (p *Prober) Probe(ctx context.Context, address, domain string, deadline time.Duration) model.ProbeResult {
	result := model.ProbeResult{
		ResolverAddress: address,
		Domain:          domain,
		TimingSource:    model.TimingHighPrecision,
		ObservedAt:      time.Now().UTC(),
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domain), dns.TypeA)
	msg.RecursionDesired = true

	target := address
	if _, _, err := net.SplitHostPort(target); err != nil {
		target = net.JoinHostPort(address, "53")
	}

	start := time.Now()
	resp, _, err := p.exchange(ctx, msg, target, deadline)
	elapsed := time.Since(start)

	if elapsed <= 0 {
		// Monotonic reading unusable; remeasure at wall-clock millisecond
		// resolution. Success classification is unaffected.
		result.TimingSource = model.TimingFallback
		elapsed = time.Now().Round(time.Millisecond).Sub(start.Round(time.Millisecond))
		if elapsed < 0 {
			elapsed = 0
		}
	}
	result.ElapsedMs = float64(elapsed) / float64(time.Millisecond)

	if err != nil {
		classifyError(&result, err, deadline)
		return result
	}
	if resp == nil {
		result.ErrorKind = model.ErrUnknown
		result.ResponseCode = model.CodeOther
		result.RawSummary = "no response received"
		return result
	}

	classifyResponse(&result, resp)
	return result
}

// classifyError maps transport-level failures into the taxonomy.
func classifyError(r *model.ProbeResult, err error, deadline time.Duration) {
	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout(),
		errors.Is(err, context.DeadlineExceeded):
		r.ErrorKind = model.ErrDNSTimeout
		r.ResponseCode = model.CodeTimeout
		// The timeout is the measurement: report the deadline, not whatever
		// the clock happened to read when the error surfaced.
		r.ElapsedMs = float64(deadline) / float64(time.Millisecond)
	case errors.Is(err, context.Canceled):
		r.ErrorKind = model.ErrNetwork
		r.ResponseCode = model.CodeOther
	case isNetworkError(err):
		r.ErrorKind = model.ErrNetwork
		r.ResponseCode = model.CodeOther
	default:
		r.ErrorKind = model.ErrUnknown
		r.ResponseCode = model.CodeOther
	}
	r.RawSummary = err.Error()
}

// classifyResponse maps a DNS response into the taxonomy and extracts the
// first A record on success.
func classifyResponse(r *model.ProbeResult, resp *dns.Msg) {
	switch resp.Rcode {
	case dns.RcodeSuccess:
		ip := firstARecord(resp)
		if ip == "" {
			r.ErrorKind = model.ErrNoData
			r.ResponseCode = model.CodeNoError
			r.RawSummary = "NOERROR with no A records"
			return
		}
		r.Success = true
		r.ErrorKind = model.ErrNone
		r.ResponseCode = model.CodeNoError
		r.ResolvedIP = ip
	case dns.RcodeNameError:
		r.ErrorKind = model.ErrNXDomain
		r.ResponseCode = model.CodeNXDomain
	case dns.RcodeServerFailure:
		r.ErrorKind = model.ErrServerFail
		r.ResponseCode = model.CodeServFail
	case dns.RcodeRefused:
		r.ErrorKind = model.ErrRefused
		r.ResponseCode = model.CodeRefused
	default:
		r.ErrorKind = model.ErrUnknown
		r.ResponseCode = model.CodeOther
		if s, ok := dns.RcodeToString[resp.Rcode]; ok {
			r.RawSummary = "rcode " + s
		}
	}
}

func firstARecord(resp *dns.Msg) string {
	for _, rr := range resp.Answer {
		if a, ok := rr.(*dns.A); ok {
			return a.A.String()
		}
	}
	return ""
}

func isNetworkError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	// miekg/dns wraps some socket errors as plain strings.
	s := err.Error()
	return strings.Contains(s, "connection refused") ||
		strings.Contains(s, "network is unreachable") ||
		strings.Contains(s, "no route to host")
}
