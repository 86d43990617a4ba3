package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/newthinker/turtle/internal/core"
	"github.com/shopspring/decimal"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return cfgPath
}

func TestLoad_FromFile(t *testing.T) {
	cfgPath := writeConfig(t, `
backtest:
  from: "2024-01-02"
  to: "20241231"
  instruments: ["000001", "600000"]
  concurrency: 4
  timeout: 5m

capital:
  use: true
  initial: "500000"

data:
  path: "/tmp/turtle/market.db"

report:
  enabled: true
  type: localfs
  path: "/tmp/turtle/reports"
`)

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Backtest.Concurrency != 4 {
		t.Errorf("expected concurrency 4, got %d", cfg.Backtest.Concurrency)
	}
	if cfg.Backtest.Timeout != 5*time.Minute {
		t.Errorf("expected timeout 5m, got %v", cfg.Backtest.Timeout)
	}
	if len(cfg.Backtest.Instruments) != 2 {
		t.Errorf("expected 2 instruments, got %v", cfg.Backtest.Instruments)
	}
	if cfg.Report.Type != "localfs" {
		t.Errorf("expected localfs, got %s", cfg.Report.Type)
	}

	// keys absent from the file keep their defaults
	if cfg.Strategy.Open != "breakout" {
		t.Errorf("expected default open strategy, got %q", cfg.Strategy.Open)
	}
	if cfg.Journal.Driver != "sqlite" {
		t.Errorf("expected default journal driver, got %q", cfg.Journal.Driver)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("TURTLE_TEST_SECRET", "s3cr3t")
	cfgPath := writeConfig(t, `
report:
  type: s3
  s3:
    bucket: reports
    secret_key: "${TURTLE_TEST_SECRET}"
`)

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Report.S3.SecretKey != "s3cr3t" {
		t.Errorf("expected expanded secret, got %q", cfg.Report.S3.SecretKey)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Capital.Sizing != "fixed" {
		t.Errorf("expected default sizing fixed, got %q", cfg.Capital.Sizing)
	}
	if cfg.Strategy.BreakOpenDay != 20 || cfg.Strategy.BreakCloseDay != 10 {
		t.Errorf("unexpected default windows %d/%d", cfg.Strategy.BreakOpenDay, cfg.Strategy.BreakCloseDay)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr *core.Error
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:    "missing data path",
			mutate:  func(c *Config) { c.Data.Path = "" },
			wantErr: core.ErrConfigMissing,
		},
		{
			name:    "unknown journal driver",
			mutate:  func(c *Config) { c.Journal.Driver = "postgres" },
			wantErr: core.ErrConfigInvalid,
		},
		{
			name:   "memory journal needs no path",
			mutate: func(c *Config) { c.Journal.Driver = "memory"; c.Journal.Path = "" },
		},
		{
			name: "s3 report without bucket",
			mutate: func(c *Config) {
				c.Report.Enabled = true
				c.Report.Type = "s3"
			},
			wantErr: core.ErrConfigMissing,
		},
		{
			name: "disabled report is not checked",
			mutate: func(c *Config) {
				c.Report.Type = "ftp"
			},
		},
		{
			name:    "unknown sizing",
			mutate:  func(c *Config) { c.Capital.Sizing = "kelly" },
			wantErr: core.ErrConfigInvalid,
		},
		{
			name:    "negative concurrency",
			mutate:  func(c *Config) { c.Backtest.Concurrency = -1 },
			wantErr: core.ErrConfigInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_RunConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Backtest.From = "2024-01-02"
	cfg.Backtest.To = "20240630"
	cfg.Backtest.Instruments = []string{"AAA"}
	cfg.Capital.Use = true

	rc, err := cfg.RunConfig()
	if err != nil {
		t.Fatalf("RunConfig: %v", err)
	}

	if !rc.From.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("From = %v", rc.From)
	}
	if !rc.To.Equal(time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("To = %v", rc.To)
	}
	if !rc.InitialCapital.Equal(decimal.NewFromInt(1000000)) {
		t.Errorf("InitialCapital = %s", rc.InitialCapital)
	}
	if !rc.RiskParameter.Equal(decimal.RequireFromString("0.01")) {
		t.Errorf("RiskParameter = %s", rc.RiskParameter)
	}
	if rc.OpenCode != "breakout" || rc.CloseCode != "channel_exit" {
		t.Errorf("codes = %s/%s", rc.OpenCode, rc.CloseCode)
	}
	if err := rc.Validate(); err != nil {
		t.Errorf("converted config should validate: %v", err)
	}
}

func TestConfig_RunConfig_BadValues(t *testing.T) {
	cfg := Defaults()
	cfg.Backtest.From = "02/01/2024"
	if _, err := cfg.RunConfig(); !errors.Is(err, core.ErrConfigInvalid) {
		t.Errorf("expected ErrConfigInvalid for bad date, got %v", err)
	}

	cfg = Defaults()
	cfg.Capital.Unit = "one hundred"
	if _, err := cfg.RunConfig(); !errors.Is(err, core.ErrConfigInvalid) {
		t.Errorf("expected ErrConfigInvalid for bad amount, got %v", err)
	}
}
