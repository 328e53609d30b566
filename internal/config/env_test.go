package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadEnvConfig_Defaults(t *testing.T) {
	cfg, err := LoadEnvConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertEqual(t, "StateDir", cfg.StateDir, "/var/lib/dnsbench")
	assertEqual(t, "ListenAddress", cfg.ListenAddress, "0.0.0.0")
	assertEqual(t, "Port", cfg.Port, 3377)
	assertEqual(t, "APIMaxBodyBytes", cfg.APIMaxBodyBytes, 1<<20)
	assertEqual(t, "Environment", cfg.Environment, "prod")
	assertEqual(t, "HostIP", cfg.HostIP, "")
	assertEqual(t, "RunWallclockCap", cfg.RunWallclockCap, 10*time.Minute)
	assertEqual(t, "RegistryRetention", cfg.RegistryRetention, 5*time.Minute)
	assertEqual(t, "BenchmarkSchedule", cfg.BenchmarkSchedule, "")
}

func TestLoadEnvConfig_Overrides(t *testing.T) {
	t.Setenv("DNSBENCH_STATE_DIR", "/tmp/bench-state")
	t.Setenv("DNSBENCH_PORT", "8080")
	t.Setenv("DNSBENCH_ENV", "dev")
	t.Setenv("DNSBENCH_RUN_WALLCLOCK_CAP", "2m")
	t.Setenv("DNSBENCH_BENCHMARK_SCHEDULE", "0 */6 * * *")
	t.Setenv("HOST_IP", " 192.168.1.10 ")

	cfg, err := LoadEnvConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertEqual(t, "StateDir", cfg.StateDir, "/tmp/bench-state")
	assertEqual(t, "Port", cfg.Port, 8080)
	assertEqual(t, "Environment", cfg.Environment, "dev")
	assertEqual(t, "RunWallclockCap", cfg.RunWallclockCap, 2*time.Minute)
	assertEqual(t, "BenchmarkSchedule", cfg.BenchmarkSchedule, "0 */6 * * *")
	assertEqual(t, "HostIP", cfg.HostIP, "192.168.1.10")
}

func TestLoadEnvConfig_RateLimitBudget(t *testing.T) {
	dev := &EnvConfig{Environment: "dev"}
	prod := &EnvConfig{Environment: "prod"}
	assertEqual(t, "dev budget", dev.RateLimitBudget(), RateLimitDev)
	assertEqual(t, "prod budget", prod.RateLimitBudget(), RateLimitProd)
}

func TestLoadEnvConfig_InvalidPort(t *testing.T) {
	t.Setenv("DNSBENCH_PORT", "99999")

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error for port out of range")
	}
	assertContains(t, err.Error(), "DNSBENCH_PORT")
}

func TestLoadEnvConfig_InvalidPortNotNumber(t *testing.T) {
	t.Setenv("DNSBENCH_PORT", "abc")

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error for non-numeric port")
	}
	assertContains(t, err.Error(), "DNSBENCH_PORT")
}

func TestLoadEnvConfig_InvalidEnvironment(t *testing.T) {
	t.Setenv("DNSBENCH_ENV", "staging")

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error for unknown environment")
	}
	assertContains(t, err.Error(), "DNSBENCH_ENV")
}

func TestLoadEnvConfig_InvalidDuration(t *testing.T) {
	t.Setenv("DNSBENCH_RUN_WALLCLOCK_CAP", "not-a-duration")

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error for invalid duration")
	}
	assertContains(t, err.Error(), "DNSBENCH_RUN_WALLCLOCK_CAP")
}

func TestLoadEnvConfig_InvalidSchedule(t *testing.T) {
	t.Setenv("DNSBENCH_BENCHMARK_SCHEDULE", "not-a-cron")

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error for invalid schedule")
	}
	assertContains(t, err.Error(), "DNSBENCH_BENCHMARK_SCHEDULE")
}

func TestLoadEnvConfig_CollectsAllErrors(t *testing.T) {
	t.Setenv("DNSBENCH_PORT", "0")
	t.Setenv("DNSBENCH_API_MAX_BODY_BYTES", "-1")
	t.Setenv("DNSBENCH_ENV", "wat")

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error")
	}
	assertContains(t, err.Error(), "DNSBENCH_PORT")
	assertContains(t, err.Error(), "DNSBENCH_API_MAX_BODY_BYTES")
	assertContains(t, err.Error(), "DNSBENCH_ENV")
}

func assertEqual[T comparable](t *testing.T, name string, got, want T) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %v, want %v", name, got, want)
	}
}

func assertContains(t *testing.T, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("expected %q to contain %q", s, substr)
	}
}
