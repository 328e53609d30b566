// Package config handles environment-based configuration loading.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// EnvConfig holds all environment-variable-driven settings (not hot-updatable).
type EnvConfig struct {
	// Directories
	StateDir string

	// Network
	ListenAddress string
	Port          int

	// API
	APIMaxBodyBytes int
	Environment     string // "dev" or "prod"; controls the rate limit budget
	HostIP          string // optional; added to the allowed-origin set

	// Engine
	RunWallclockCap   time.Duration
	RegistryRetention time.Duration
	BenchmarkSchedule string // cron expression; empty disables scheduled runs
}

// Rate limit budgets per 15-minute window, by environment.
const (
	RateLimitDev  = 1000
	RateLimitProd = 100
)

// RateLimitBudget returns the per-client request budget for a 15-minute
// window in the configured environment.
func (c *EnvConfig) RateLimitBudget() int {
	if c.Environment == "dev" {
		return RateLimitDev
	}
	return RateLimitProd
}

// LoadEnvConfig reads environment variables and returns a validated EnvConfig.
// Returns an error listing every invalid value rather than just the first.
func LoadEnvConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	var errs []string

	cfg.StateDir = envStr("DNSBENCH_STATE_DIR", "/var/lib/dnsbench")
	cfg.ListenAddress = strings.TrimSpace(envStr("DNSBENCH_LISTEN_ADDRESS", "0.0.0.0"))
	cfg.Port = envInt("DNSBENCH_PORT", 3377, &errs)

	cfg.APIMaxBodyBytes = envInt("DNSBENCH_API_MAX_BODY_BYTES", 1<<20, &errs)
	cfg.Environment = envStr("DNSBENCH_ENV", "prod")
	cfg.HostIP = strings.TrimSpace(envStr("HOST_IP", ""))

	cfg.RunWallclockCap = envDuration("DNSBENCH_RUN_WALLCLOCK_CAP", 10*time.Minute, &errs)
	cfg.RegistryRetention = envDuration("DNSBENCH_REGISTRY_RETENTION", 5*time.Minute, &errs)
	cfg.BenchmarkSchedule = strings.TrimSpace(envStr("DNSBENCH_BENCHMARK_SCHEDULE", ""))

	if cfg.ListenAddress == "" {
		errs = append(errs, "DNSBENCH_LISTEN_ADDRESS must not be empty")
	}
	validatePort("DNSBENCH_PORT", cfg.Port, &errs)
	validatePositive("DNSBENCH_API_MAX_BODY_BYTES", cfg.APIMaxBodyBytes, &errs)
	if cfg.Environment != "dev" && cfg.Environment != "prod" {
		errs = append(errs, fmt.Sprintf("DNSBENCH_ENV: invalid value %q (allowed: dev, prod)", cfg.Environment))
	}
	if cfg.RunWallclockCap <= 0 {
		errs = append(errs, "DNSBENCH_RUN_WALLCLOCK_CAP must be positive")
	}
	if cfg.RegistryRetention <= 0 {
		errs = append(errs, "DNSBENCH_REGISTRY_RETENTION must be positive")
	}
	if cfg.BenchmarkSchedule != "" {
		if _, err := cron.ParseStandard(cfg.BenchmarkSchedule); err != nil {
			errs = append(errs, fmt.Sprintf("DNSBENCH_BENCHMARK_SCHEDULE: invalid cron expression %q: %v", cfg.BenchmarkSchedule, err))
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return cfg, nil
}

// --- helpers ---

func envStr(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int, errs *[]string) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid integer %q", key, v))
		return defaultVal
	}
	return n
}

func envDuration(key string, defaultVal time.Duration, errs *[]string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid duration %q", key, v))
		return defaultVal
	}
	return d
}

func validatePort(name string, value int, errs *[]string) {
	if value < 1 || value > 65535 {
		*errs = append(*errs, fmt.Sprintf("%s: port must be 1-65535, got %d", name, value))
	}
}

func validatePositive(name string, value int, errs *[]string) {
	if value <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s: must be positive, got %d", name, value))
	}
}
