package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"curtailment-alerts/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Portal    PortalConfig    `mapstructure:"portal"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Notify    NotifyConfig    `mapstructure:"notify"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity for the notification
// ledger. Optional: without a DSN every run delivers unconditionally.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SchedulerConfig governs polling cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// PortalConfig covers Portal Access connectivity.
type PortalConfig struct {
	BaseURL               string        `mapstructure:"base_url"`
	ListingPath           string        `mapstructure:"listing_path"`
	ExtraListingPaths     []string      `mapstructure:"extra_listing_paths"`
	Format                string        `mapstructure:"format"`
	RequestTimeout        time.Duration `mapstructure:"request_timeout"`
	UserAgent             string        `mapstructure:"user_agent"`
	DisableTimestampParse bool          `mapstructure:"disable_timestamp_parse"`
}

// WindowConfig selects the evaluation window policy.
type WindowConfig struct {
	Mode      string        `mapstructure:"mode"`
	Rows      int           `mapstructure:"rows"`
	Lookahead time.Duration `mapstructure:"lookahead"`
}

// PipelineConfig defines threshold evaluation and payload labelling.
// Comparator 与窗口策略在历史部署中并不一致，因此都是显式配置。
type PipelineConfig struct {
	Threshold     float64      `mapstructure:"threshold"`
	Comparator    string       `mapstructure:"comparator"`
	Window        WindowConfig `mapstructure:"window"`
	TimezoneLabel string       `mapstructure:"timezone_label"`
	SheetLabel    string       `mapstructure:"sheet_label"`
	DedupeBypass  bool         `mapstructure:"dedupe_bypass"`
}

// NotifyConfig captures Notification Sink connectivity.
type NotifyConfig struct {
	WebhookURL     string        `mapstructure:"webhook_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LMPWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "lmpwatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "30m")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x6C6D7077))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("portal.listing_path", "/api/forecasts")
	v.SetDefault("portal.format", "auto")
	v.SetDefault("portal.request_timeout", "30s")
	v.SetDefault("portal.user_agent", "lmpwatcher/1.0")
	v.SetDefault("portal.disable_timestamp_parse", false)

	v.SetDefault("pipeline.threshold", 80.0)
	v.SetDefault("pipeline.comparator", "gte")
	v.SetDefault("pipeline.window.mode", "rows")
	v.SetDefault("pipeline.window.rows", 48)
	v.SetDefault("pipeline.window.lookahead", "6h")
	v.SetDefault("pipeline.timezone_label", "America/Chicago")
	v.SetDefault("pipeline.sheet_label", "Forecast")
	v.SetDefault("pipeline.dedupe_bypass", false)

	v.SetDefault("notify.request_timeout", "10s")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Pipeline.Threshold < 0 {
		return fmt.Errorf("pipeline.threshold cannot be negative")
	}
	switch c.Pipeline.Comparator {
	case "gte", "gt":
	default:
		return fmt.Errorf("pipeline.comparator must be gte or gt, got %q", c.Pipeline.Comparator)
	}
	switch c.Pipeline.Window.Mode {
	case "rows":
		if c.Pipeline.Window.Rows <= 0 {
			return fmt.Errorf("pipeline.window.rows must be greater than zero")
		}
	case "lookahead":
		if c.Pipeline.Window.Lookahead <= 0 {
			return fmt.Errorf("pipeline.window.lookahead must be greater than zero")
		}
	default:
		return fmt.Errorf("pipeline.window.mode must be rows or lookahead, got %q", c.Pipeline.Window.Mode)
	}
	switch c.Portal.Format {
	case "auto", "delimited", "spreadsheet":
	default:
		return fmt.Errorf("portal.format must be auto, delimited, or spreadsheet, got %q", c.Portal.Format)
	}
	return nil
}
