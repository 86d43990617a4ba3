package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/newthinker/turtle/internal/backtest"
	"github.com/newthinker/turtle/internal/core"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Backtest BacktestConfig `mapstructure:"backtest"`
	Capital  CapitalConfig  `mapstructure:"capital"`
	Strategy StrategyConfig `mapstructure:"strategy"`
	Data     DataConfig     `mapstructure:"data"`
	Journal  JournalConfig  `mapstructure:"journal"`
	Report   ReportConfig   `mapstructure:"report"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Log      LogConfig      `mapstructure:"log"`
}

// BacktestConfig selects the date range and universe of a run.
type BacktestConfig struct {
	From          string        `mapstructure:"from"`
	To            string        `mapstructure:"to"`
	Instruments   []string      `mapstructure:"instruments"`
	All           bool          `mapstructure:"all"`
	Concurrency   int           `mapstructure:"concurrency"`
	Deterministic bool          `mapstructure:"deterministic"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Today         string        `mapstructure:"today"`
}

// CapitalConfig holds money settings. Amounts are strings so they reach the
// ledger as exact decimals.
type CapitalConfig struct {
	Use       bool   `mapstructure:"use"`
	Initial   string `mapstructure:"initial"`
	Risk      string `mapstructure:"risk"`
	Unit      string `mapstructure:"unit"`
	Sizing    string `mapstructure:"sizing"` // "fixed" or "atr"
	ATRPeriod int    `mapstructure:"atr_period"`
}

type StrategyConfig struct {
	Open          string `mapstructure:"open"`
	Close         string `mapstructure:"close"`
	Filter        string `mapstructure:"filter"`
	BreakOpenDay  int    `mapstructure:"break_open_day"`
	BreakCloseDay int    `mapstructure:"break_close_day"`
	FilterDay     int    `mapstructure:"filter_day"`
}

// DataConfig points at the SQLite market database.
type DataConfig struct {
	Path string `mapstructure:"path"`
}

type JournalConfig struct {
	Driver string `mapstructure:"driver"` // "sqlite" or "memory"
	Path   string `mapstructure:"path"`
}

type ReportConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Type    string   `mapstructure:"type"` // "localfs" or "s3"
	Path    string   `mapstructure:"path"` // For localfs
	S3      S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Textfile is written after every run when set.
	Textfile string `mapstructure:"textfile"`
}

// NotifyConfig announces finished runs. An empty webhook URL disables it.
type NotifyConfig struct {
	Webhook WebhookConfig `mapstructure:"webhook"`
}

type WebhookConfig struct {
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load reads configuration from file on top of Defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	// Support environment variable overrides
	v.SetEnvPrefix("TURTLE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// setDefaults mirrors Defaults into v so that keys absent from the file
// still resolve and can be overridden from the environment.
func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("backtest.concurrency", d.Backtest.Concurrency)
	v.SetDefault("capital.initial", d.Capital.Initial)
	v.SetDefault("capital.risk", d.Capital.Risk)
	v.SetDefault("capital.unit", d.Capital.Unit)
	v.SetDefault("capital.sizing", d.Capital.Sizing)
	v.SetDefault("capital.atr_period", d.Capital.ATRPeriod)
	v.SetDefault("strategy.open", d.Strategy.Open)
	v.SetDefault("strategy.close", d.Strategy.Close)
	v.SetDefault("strategy.filter", d.Strategy.Filter)
	v.SetDefault("strategy.break_open_day", d.Strategy.BreakOpenDay)
	v.SetDefault("strategy.break_close_day", d.Strategy.BreakCloseDay)
	v.SetDefault("strategy.filter_day", d.Strategy.FilterDay)
	v.SetDefault("data.path", d.Data.Path)
	v.SetDefault("journal.driver", d.Journal.Driver)
	v.SetDefault("journal.path", d.Journal.Path)
	v.SetDefault("report.type", d.Report.Type)
	v.SetDefault("report.path", d.Report.Path)
	v.SetDefault("log.level", d.Log.Level)
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Capital: CapitalConfig{
			Initial:   "1000000",
			Risk:      "0.01",
			Unit:      "100",
			Sizing:    "fixed",
			ATRPeriod: 20,
		},
		Strategy: StrategyConfig{
			Open:          "breakout",
			Close:         "channel_exit",
			Filter:        "sma_distance",
			BreakOpenDay:  20,
			BreakCloseDay: 10,
			FilterDay:     60,
		},
		Data: DataConfig{
			Path: "data/market.db",
		},
		Journal: JournalConfig{
			Driver: "sqlite",
			Path:   "data/journal.db",
		},
		Report: ReportConfig{
			Type: "localfs",
			Path: "data/reports",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks the configuration for errors. Run parameters are checked
// again by backtest.RunConfig.Validate once flags have been applied.
func (c *Config) Validate() error {
	if c.Data.Path == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("data.path is required"))
	}

	switch c.Journal.Driver {
	case "memory":
	case "sqlite":
		if c.Journal.Path == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("journal.path required when driver is sqlite"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("journal.driver must be sqlite or memory, got %q", c.Journal.Driver))
	}

	if c.Report.Enabled {
		switch c.Report.Type {
		case "localfs":
			if c.Report.Path == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("report.path required when type is localfs"))
			}
		case "s3":
			if c.Report.S3.Bucket == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("report.s3.bucket required when type is s3"))
			}
		default:
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("report.type must be localfs or s3, got %q", c.Report.Type))
		}
	}

	switch c.Capital.Sizing {
	case "", "fixed", "atr":
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("capital.sizing must be fixed or atr, got %q", c.Capital.Sizing))
	}

	if c.Backtest.Concurrency < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("backtest.concurrency cannot be negative, got %d", c.Backtest.Concurrency))
	}

	return nil
}

// RunConfig converts the file settings into a backtest run configuration.
func (c *Config) RunConfig() (backtest.RunConfig, error) {
	rc := backtest.RunConfig{
		Instruments:   c.Backtest.Instruments,
		All:           c.Backtest.All,
		UseCapital:    c.Capital.Use,
		Sizing:        c.Capital.Sizing,
		ATRPeriod:     c.Capital.ATRPeriod,
		OpenCode:      c.Strategy.Open,
		CloseCode:     c.Strategy.Close,
		FilterCode:    c.Strategy.Filter,
		BreakOpenDay:  c.Strategy.BreakOpenDay,
		BreakCloseDay: c.Strategy.BreakCloseDay,
		FilterDay:     c.Strategy.FilterDay,
		Concurrency:   c.Backtest.Concurrency,
		Deterministic: c.Backtest.Deterministic,
		Timeout:       c.Backtest.Timeout,
	}

	dates := []struct {
		key string
		val string
		dst *time.Time
	}{
		{"backtest.from", c.Backtest.From, &rc.From},
		{"backtest.to", c.Backtest.To, &rc.To},
		{"backtest.today", c.Backtest.Today, &rc.Today},
	}
	for _, d := range dates {
		if d.val == "" {
			continue
		}
		t, err := core.ParseDate(d.val)
		if err != nil {
			return backtest.RunConfig{}, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("%s: %w", d.key, err))
		}
		*d.dst = t
	}

	amounts := []struct {
		key string
		val string
		dst *decimal.Decimal
	}{
		{"capital.initial", c.Capital.Initial, &rc.InitialCapital},
		{"capital.risk", c.Capital.Risk, &rc.RiskParameter},
		{"capital.unit", c.Capital.Unit, &rc.Unit},
	}
	for _, a := range amounts {
		if a.val == "" {
			continue
		}
		v, err := decimal.NewFromString(a.val)
		if err != nil {
			return backtest.RunConfig{}, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("%s: %w", a.key, err))
		}
		*a.dst = v
	}

	return rc, nil
}
