package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/eddygk/dns-bench-sub000/internal/api"
	"github.com/eddygk/dns-bench-sub000/internal/buildinfo"
	"github.com/eddygk/dns-bench-sub000/internal/config"
	"github.com/eddygk/dns-bench-sub000/internal/eventbus"
	"github.com/eddygk/dns-bench-sub000/internal/probe"
	"github.com/eddygk/dns-bench-sub000/internal/registry"
	"github.com/eddygk/dns-bench-sub000/internal/scheduler"
	"github.com/eddygk/dns-bench-sub000/internal/service"
	"github.com/eddygk/dns-bench-sub000/internal/settings"
	"github.com/eddygk/dns-bench-sub000/internal/store"
)

// Exit codes: 0 clean shutdown, 1 fatal startup error, 2 administrative shutdown.
func main() {
	os.Exit(run())
}

func run() int {
	// 1. Load and validate environment config
	envCfg, err := config.LoadEnvConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 1
	}

	// 2. Open persistence: configuration documents + result database
	cfg, err := settings.NewStore(envCfg.StateDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 1
	}
	st, err := store.Open(filepath.Join(envCfg.StateDir, "results.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 1
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Printf("Result store close error: %v", err)
		}
	}()

	// 3. Wire the engine
	reg := registry.New(envCfg.RegistryRetention)
	bus := eventbus.New(eventbus.DefaultBacklog, envCfg.RegistryRetention)
	sched := scheduler.New(scheduler.Config{
		Probe:        probe.New().Probe,
		Registry:     reg,
		Bus:          bus,
		Store:        st,
		WallclockCap: envCfg.RunWallclockCap,
	})
	svc := service.NewBenchmarkService(cfg, reg, sched, st, bus)

	cronRunner := service.NewScheduledRunner(svc, envCfg.BenchmarkSchedule)
	cronRunner.Start()
	defer cronRunner.Stop()

	// 4. Create and start the API server
	adminQuit := make(chan struct{}, 1)
	srv := api.NewServer(api.ServerConfig{
		ListenAddress:   envCfg.ListenAddress,
		Port:            envCfg.Port,
		APIMaxBodyBytes: int64(envCfg.APIMaxBodyBytes),
		RateLimitBudget: envCfg.RateLimitBudget(),
		HostIP:          envCfg.HostIP,
		Service:         svc,
		Settings:        cfg,
		Bus:             bus,
		RequestShutdown: func() {
			select {
			case adminQuit <- struct{}{}:
			default:
			}
		},
	})

	serverErrCh := make(chan error, 1)
	go func() {
		log.Printf("DNS benchmark server %s starting on %s:%d", buildinfo.String(), envCfg.ListenAddress, envCfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	// 5. Wait for a stop reason, then shut down gracefully
	exitCode := waitForShutdown(serverErrCh, adminQuit)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Server stopped")
	return exitCode
}

// waitForShutdown blocks until a shutdown signal, an administrative shutdown
// request, or a server runtime error, and returns the process exit code.
func waitForShutdown(serverErrCh <-chan error, adminQuit <-chan struct{}) int {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		log.Printf("Received signal %s, shutting down...", sig)
		return 0
	case <-adminQuit:
		log.Println("Administrative shutdown requested, shutting down...")
		return 2
	case err := <-serverErrCh:
		log.Printf("Server runtime error (%v), shutting down...", err)
		return 1
	}
}
