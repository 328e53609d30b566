package api

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"github.com/eddygk/dns-bench-sub000/internal/eventbus"
	"github.com/eddygk/dns-bench-sub000/internal/hostdns"
	"github.com/eddygk/dns-bench-sub000/internal/service"
	"github.com/eddygk/dns-bench-sub000/internal/settings"
)

// Server wraps the HTTP server and mux for the benchmark API.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
}

// ServerConfig wires the API server.
type ServerConfig struct {
	ListenAddress   string
	Port            int
	APIMaxBodyBytes int64
	RateLimitBudget int // requests per client IP per 15-minute window
	HostIP          string
	ResolvConfPath  string // defaults to hostdns.DefaultConfigPath

	Service  *service.BenchmarkService
	Settings *settings.Store
	Bus      *eventbus.Bus

	// RequestShutdown triggers an administrative shutdown (exit code 2).
	RequestShutdown func()
}

// NewServer creates an API server wired with all routes.
func NewServer(cfg ServerConfig) *Server {
	if cfg.ResolvConfPath == "" {
		cfg.ResolvConfPath = hostdns.DefaultConfigPath
	}
	if cfg.RequestShutdown == nil {
		cfg.RequestShutdown = func() {}
	}

	routes := http.NewServeMux()
	routes.Handle("GET /health", HandleHealth())
	routes.Handle("GET /dns/current", HandleCurrentDNS(cfg.ResolvConfPath))

	routes.Handle("GET /settings/local-dns", HandleGetLocalDNS(cfg.Settings))
	routes.Handle("PUT /settings/local-dns", HandlePutLocalDNS(cfg.Settings))
	routes.Handle("GET /settings/public-dns", HandleGetPublicDNS(cfg.Settings))
	routes.Handle("PUT /settings/public-dns", HandlePutPublicDNS(cfg.Settings))
	routes.Handle("GET /settings/test-config", HandleGetTestConfig(cfg.Settings))
	routes.Handle("PUT /settings/test-config", HandlePutTestConfig(cfg.Settings))
	routes.Handle("GET /settings/network-policy", HandleGetNetworkPolicy(cfg.Settings))
	routes.Handle("PUT /settings/network-policy", HandlePutNetworkPolicy(cfg.Settings))

	routes.Handle("POST /benchmark/start", HandleStartBenchmark(cfg.Service))
	routes.Handle("GET /benchmark/{id}/status", HandleBenchmarkStatus(cfg.Service))
	routes.Handle("POST /benchmark/{id}/cancel", HandleCancelBenchmark(cfg.Service))

	routes.Handle("GET /results", HandleListResults(cfg.Service))
	routes.Handle("GET /results/{id}", HandleGetResult(cfg.Service))
	routes.Handle("GET /results/{id}/domains", HandleGetResultDomains(cfg.Service))
	routes.Handle("GET /results/{id}/failures", HandleGetResultFailures(cfg.Service))
	routes.Handle("GET /results/{id}/export", HandleExportResult(cfg.Service))
	routes.Handle("DELETE /results/{id}", HandleDeleteResult(cfg.Service))

	routes.Handle("POST /admin/shutdown", HandleAdminShutdown(cfg.RequestShutdown))

	limiter := NewRateLimiter(cfg.RateLimitBudget)
	guarded := OriginPolicyMiddleware(cfg.Settings, cfg.HostIP,
		RateLimitMiddleware(limiter,
			RequestBodyLimitMiddleware(cfg.APIMaxBodyBytes, routes)))

	mux := http.NewServeMux()
	for _, prefix := range []string{
		"/health", "/dns/", "/settings/", "/benchmark/", "/results", "/results/", "/admin/",
	} {
		mux.Handle(prefix, guarded)
	}
	// The websocket upgrade enforces the origin policy itself; rate limiting
	// and body limits do not apply to the long-lived stream.
	mux.Handle("GET /ws/benchmark", HandleBenchmarkWS(cfg.Bus, cfg.Settings, cfg.HostIP))
	registerEmbeddedWebUI(mux)

	srv := &http.Server{
		Addr:    net.JoinHostPort(cfg.ListenAddress, strconv.Itoa(cfg.Port)),
		Handler: mux,
	}
	return &Server{
		httpServer: srv,
		mux:        mux,
	}
}

// ListenAndServe starts the HTTP server. It blocks until the server stops.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.mux
}
