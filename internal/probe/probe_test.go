package probe

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"

	"github.com/eddygk/dns-bench-sub000/internal/model"
)

func aResponse(msg *dns.Msg, ip string) *dns.Msg {
	resp := new(dns.Msg)
	resp.SetReply(msg)
	resp.Answer = append(resp.Answer, &dns.A{
		Hdr: dns.RR_Header{Name: msg.Question[0].Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 300},
		A:   net.ParseIP(ip),
	})
	return resp
}

func rcodeResponse(msg *dns.Msg, rcode int) *dns.Msg {
	resp := new(dns.Msg)
	resp.SetReply(msg)
	resp.Rcode = rcode
	return resp
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestProbe_Success(t *testing.T) {
	p := NewWithExchanger(func(_ context.Context, msg *dns.Msg, addr string, _ time.Duration) (*dns.Msg, time.Duration, error) {
		if addr != "8.8.8.8:53" {
			t.Fatalf("exchange addr: got %q, want %q", addr, "8.8.8.8:53")
		}
		if msg.Question[0].Qtype != dns.TypeA {
			t.Fatalf("qtype: got %d, want A", msg.Question[0].Qtype)
		}
		return aResponse(msg, "142.250.1.1"), 3 * time.Millisecond, nil
	})

	res := p.Probe(context.Background(), "8.8.8.8", "google.com", 2*time.Second)
	if !res.Success {
		t.Fatalf("success: got false, want true (%+v)", res)
	}
	if res.ErrorKind != model.ErrNone || res.ResponseCode != model.CodeNoError {
		t.Fatalf("taxonomy: got (%s, %s)", res.ErrorKind, res.ResponseCode)
	}
	if res.ResolvedIP != "142.250.1.1" {
		t.Fatalf("resolved ip: got %q", res.ResolvedIP)
	}
	if res.TimingSource != model.TimingHighPrecision {
		t.Fatalf("timing source: got %s", res.TimingSource)
	}
}

func TestProbe_Timeout(t *testing.T) {
	p := NewWithExchanger(func(_ context.Context, _ *dns.Msg, _ string, _ time.Duration) (*dns.Msg, time.Duration, error) {
		return nil, 0, timeoutErr{}
	})

	res := p.Probe(context.Background(), "192.0.2.1", "google.com", 1500*time.Millisecond)
	if res.Success {
		t.Fatal("success: got true, want false")
	}
	if res.ErrorKind != model.ErrDNSTimeout || res.ResponseCode != model.CodeTimeout {
		t.Fatalf("taxonomy: got (%s, %s)", res.ErrorKind, res.ResponseCode)
	}
	if res.ElapsedMs != 1500 {
		t.Fatalf("elapsed on timeout: got %v, want deadline 1500", res.ElapsedMs)
	}
}

func TestProbe_RcodeTaxonomy(t *testing.T) {
	cases := []struct {
		rcode    int
		wantKind model.ErrorKind
		wantCode model.ResponseCode
	}{
		{dns.RcodeNameError, model.ErrNXDomain, model.CodeNXDomain},
		{dns.RcodeServerFailure, model.ErrServerFail, model.CodeServFail},
		{dns.RcodeRefused, model.ErrRefused, model.CodeRefused},
		{dns.RcodeNotImplemented, model.ErrUnknown, model.CodeOther},
	}
	for _, tc := range cases {
		p := NewWithExchanger(func(_ context.Context, msg *dns.Msg, _ string, _ time.Duration) (*dns.Msg, time.Duration, error) {
			return rcodeResponse(msg, tc.rcode), time.Millisecond, nil
		})
		res := p.Probe(context.Background(), "1.1.1.1", "blocked.example", time.Second)
		if res.Success {
			t.Fatalf("rcode %d: success got true", tc.rcode)
		}
		if res.ErrorKind != tc.wantKind || res.ResponseCode != tc.wantCode {
			t.Fatalf("rcode %d: got (%s, %s), want (%s, %s)",
				tc.rcode, res.ErrorKind, res.ResponseCode, tc.wantKind, tc.wantCode)
		}
	}
}

func TestProbe_NoErrorWithoutAnswerIsNoData(t *testing.T) {
	p := NewWithExchanger(func(_ context.Context, msg *dns.Msg, _ string, _ time.Duration) (*dns.Msg, time.Duration, error) {
		return rcodeResponse(msg, dns.RcodeSuccess), time.Millisecond, nil
	})
	res := p.Probe(context.Background(), "9.9.9.9", "cname-only.example", time.Second)
	if res.Success {
		t.Fatal("success: got true, want false")
	}
	if res.ErrorKind != model.ErrNoData || res.ResponseCode != model.CodeNoError {
		t.Fatalf("taxonomy: got (%s, %s), want (NO_DATA, NOERROR)", res.ErrorKind, res.ResponseCode)
	}
}

func TestProbe_NetworkError(t *testing.T) {
	p := NewWithExchanger(func(_ context.Context, _ *dns.Msg, _ string, _ time.Duration) (*dns.Msg, time.Duration, error) {
		return nil, 0, &net.OpError{Op: "write", Net: "udp", Err: timeoutErr{}}
	})
	res := p.Probe(context.Background(), "203.0.113.1", "google.com", time.Second)
	// net.OpError with a timeout inner error still counts as a timeout.
	if res.ErrorKind != model.ErrDNSTimeout {
		t.Fatalf("error kind: got %s, want DNS_TIMEOUT", res.ErrorKind)
	}
}

func TestProbe_PortAlreadyPresent(t *testing.T) {
	var gotAddr string
	p := NewWithExchanger(func(_ context.Context, msg *dns.Msg, addr string, _ time.Duration) (*dns.Msg, time.Duration, error) {
		gotAddr = addr
		return aResponse(msg, "1.2.3.4"), time.Millisecond, nil
	})
	p.Probe(context.Background(), "8.8.8.8:5353", "example.com", time.Second)
	if gotAddr != "8.8.8.8:5353" {
		t.Fatalf("addr: got %q, want explicit port preserved", gotAddr)
	}
}

func TestProbe_SuccessInvariant(t *testing.T) {
	p := NewWithExchanger(func(_ context.Context, msg *dns.Msg, _ string, _ time.Duration) (*dns.Msg, time.Duration, error) {
		return aResponse(msg, "10.0.0.1"), time.Millisecond, nil
	})
	res := p.Probe(context.Background(), "8.8.4.4", "example.com", time.Second)
	ok := res.ErrorKind == model.ErrNone && res.ResponseCode == model.CodeNoError && res.ResolvedIP != ""
	if res.Success != ok {
		t.Fatalf("success invariant violated: %+v", res)
	}
}
