package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadWithNoPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "info" || cfg.Scheduler.ThrottlePieces != 8 {
		t.Fatalf("cfg = %+v, want defaults", cfg)
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Path != "__bot.db" {
		t.Fatalf("cfg.Store.Path = %q, want default", cfg.Store.Path)
	}
}

func TestLoadDecodesTOMLOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.toml")
	content := `
log_level = "debug"

[scheduler]
throttle_pieces = 4
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.Scheduler.ThrottlePieces != 4 {
		t.Fatalf("ThrottlePieces = %d, want 4", cfg.Scheduler.ThrottlePieces)
	}
	// Fields untouched by the file keep their defaults.
	if cfg.Platform.BaseURL != "https://www.kookapp.cn/api/v3" {
		t.Fatalf("BaseURL = %q, want default preserved", cfg.Platform.BaseURL)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("KSBOT_LOG_LEVEL", "warn")
	t.Setenv("KSBOT_SCHEDULER_THROTTLE_PIECES", "2")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("LogLevel = %q, want warn (from env)", cfg.LogLevel)
	}
	if cfg.Scheduler.ThrottlePieces != 2 {
		t.Fatalf("ThrottlePieces = %d, want 2 (from env)", cfg.Scheduler.ThrottlePieces)
	}
}

func TestValidateRejectsNonPositiveThrottlePieces(t *testing.T) {
	cfg := Defaults()
	cfg.Scheduler.ThrottlePieces = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate with zero throttle pieces returned nil error")
	}
}

func TestValidateRejectsBackoffBaseBelowTwo(t *testing.T) {
	cfg := Defaults()
	cfg.Gateway.BackoffBase = 1
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate with backoff base 1 returned nil error")
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate on defaults: %v", err)
	}
}

func TestMinIntervalSwitchesOnDevFlag(t *testing.T) {
	cfg := Defaults()
	cfg.Dev = false
	if cfg.MinInterval() != cfg.Scheduler.MinIntervalProd.Duration {
		t.Fatal("MinInterval in prod mode did not return MinIntervalProd")
	}

	cfg.Dev = true
	if cfg.MinInterval() != cfg.Scheduler.MinIntervalDev.Duration {
		t.Fatal("MinInterval in dev mode did not return MinIntervalDev")
	}
}
