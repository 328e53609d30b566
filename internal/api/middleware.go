package api

import (
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/time/rate"

	"github.com/eddygk/dns-bench-sub000/internal/settings"
)

// RequestBodyLimitMiddleware enforces a max request body size for downstream handlers.
func RequestBodyLimitMiddleware(maxBytes int64, next http.Handler) http.Handler {
	if maxBytes <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r != nil && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// PolicySource yields the current network-access policy. The settings store
// satisfies it; tests inject fixed policies.
type PolicySource interface {
	NetworkPolicy() (settings.NetworkPolicy, error)
}

// OriginPolicyMiddleware matches each request's Origin header against the
// network policy. Requests without an Origin header and requests from
// localhost origins are always permitted. hostIP, when set, is treated as an
// additional allowed IP origin.
func OriginPolicyMiddleware(policies PolicySource, hostIP string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		policy, err := policies.NetworkPolicy()
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "INTERNAL", "load network policy")
			return
		}
		if !originAllowed(origin, policy, hostIP) {
			WriteError(w, http.StatusForbidden, "ORIGIN_FORBIDDEN", "origin not permitted by network policy")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// originAllowed decides whether an Origin header value passes the policy.
func originAllowed(origin string, policy settings.NetworkPolicy, hostIP string) bool {
	for _, allowed := range policy.CustomOrigins {
		if origin == allowed {
			return true
		}
	}

	u, err := url.Parse(origin)
	if err != nil || u.Hostname() == "" {
		return false
	}
	host := u.Hostname()

	if host == "localhost" {
		return true
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		if addr.IsLoopback() {
			return true
		}
		if hostIP != "" && host == hostIP {
			return true
		}
		return policy.AllowIPAccess
	}
	return policy.AllowHostnameAccess
}

// rateWindow is the accounting window for the per-client budget.
const rateWindow = 15 * time.Minute

// RateLimiter enforces a per-client-IP request budget over a fixed window.
type RateLimiter struct {
	limiters *xsync.Map[string, *rate.Limiter]
	interval time.Duration
	burst    int
}

// NewRateLimiter builds a limiter granting budget requests per 15-minute
// window per client IP.
func NewRateLimiter(budget int) *RateLimiter {
	if budget <= 0 {
		budget = 1
	}
	return &RateLimiter{
		limiters: xsync.NewMap[string, *rate.Limiter](),
		interval: rateWindow / time.Duration(budget),
		burst:    budget,
	}
}

// Allow reports whether a request from clientIP fits the budget.
func (l *RateLimiter) Allow(clientIP string) bool {
	limiter, _ := l.limiters.LoadOrCompute(clientIP, func() (*rate.Limiter, bool) {
		return rate.NewLimiter(rate.Every(l.interval), l.burst), false
	})
	return limiter.Allow()
}

// RateLimitMiddleware rejects clients that exceed their request budget.
func RateLimitMiddleware(limiter *RateLimiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !limiter.Allow(ip) {
			WriteError(w, http.StatusTooManyRequests, "RATE_LIMITED", "request budget exceeded, retry later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
