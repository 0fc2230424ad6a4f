package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestDefaults verifies all default values apply when no config file exists.
func TestDefaults(t *testing.T) {
	cfg, err := loadFromPath(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Redis.Addr = %q, want %q", cfg.Redis.Addr, "localhost:6379")
	}
	if cfg.Limits.GuestDailyCap != 5 {
		t.Errorf("Limits.GuestDailyCap = %d, want 5", cfg.Limits.GuestDailyCap)
	}
	if cfg.Engine.BaseURL != "http://localhost:8090" {
		t.Errorf("Engine.BaseURL = %q, want %q", cfg.Engine.BaseURL, "http://localhost:8090")
	}
	if cfg.Engine.Model != "bert-base-chinese" {
		t.Errorf("Engine.Model = %q, want %q", cfg.Engine.Model, "bert-base-chinese")
	}
	if cfg.Worker.PollInterval != "500ms" {
		t.Errorf("Worker.PollInterval = %q, want %q", cfg.Worker.PollInterval, "500ms")
	}
	if cfg.Worker.MaxAttempts != 3 {
		t.Errorf("Worker.MaxAttempts = %d, want 3", cfg.Worker.MaxAttempts)
	}
}

// TestFileValues verifies TOML file values override defaults.
func TestFileValues(t *testing.T) {
	path := writeTempConfig(t, `[server]
port = 9100

[limits]
guest_daily_cap = 3

[engine]
model = "bert-large-chinese"
`)

	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Limits.GuestDailyCap != 3 {
		t.Errorf("Limits.GuestDailyCap = %d, want 3", cfg.Limits.GuestDailyCap)
	}
	if cfg.Engine.Model != "bert-large-chinese" {
		t.Errorf("Engine.Model = %q, want %q", cfg.Engine.Model, "bert-large-chinese")
	}
	// Untouched sections keep defaults.
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Redis.Addr = %q, want default", cfg.Redis.Addr)
	}
}

// TestEnvOverride verifies environment variables override file values.
func TestEnvOverride(t *testing.T) {
	path := writeTempConfig(t, `[redis]
addr = "file-redis:6379"

[limits]
guest_daily_cap = 3
`)

	t.Setenv("ASKD_REDIS_ADDR", "env-redis:6380")
	t.Setenv("ASKD_GUEST_DAILY_CAP", "7")
	t.Setenv("ASKD_TOKEN_SECRET", "env-secret")
	t.Setenv("ASKD_WORKER_POLL_INTERVAL", "2s")
	t.Setenv("ASKD_WORKER_LEASE_TTL", "10m")
	t.Setenv("ASKD_WORKER_MAX_ATTEMPTS", "5")
	t.Setenv("ASKD_AUTH_TOKEN_TTL", "12h")

	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Redis.Addr != "env-redis:6380" {
		t.Errorf("Redis.Addr = %q, want env override", cfg.Redis.Addr)
	}
	if cfg.Limits.GuestDailyCap != 7 {
		t.Errorf("Limits.GuestDailyCap = %d, want 7", cfg.Limits.GuestDailyCap)
	}
	if cfg.Auth.TokenSecret != "env-secret" {
		t.Errorf("Auth.TokenSecret = %q, want env override", cfg.Auth.TokenSecret)
	}
	if cfg.Worker.PollInterval != "2s" || cfg.Worker.LeaseTTL != "10m" || cfg.Worker.MaxAttempts != 5 {
		t.Errorf("Worker = %+v, want env overrides applied", cfg.Worker)
	}
	if cfg.Auth.TokenTTL != "12h" {
		t.Errorf("Auth.TokenTTL = %q, want 12h", cfg.Auth.TokenTTL)
	}
}

// TestInvalidValues verifies out-of-range values are rejected.
func TestInvalidValues(t *testing.T) {
	path := writeTempConfig(t, `[limits]
guest_daily_cap = -1
`)
	if _, err := loadFromPath(path); err == nil {
		t.Fatal("expected error for negative guest_daily_cap")
	}

	path = writeTempConfig(t, `[worker]
max_attempts = 0
`)
	if _, err := loadFromPath(path); err == nil {
		t.Fatal("expected error for zero max_attempts")
	}
}
