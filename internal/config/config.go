package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
	Notify    NotifyConfig    `mapstructure:"notify"`
}

type APIConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	APIKey        string `mapstructure:"api_key"`
	TimeoutSec    int    `mapstructure:"timeout_sec"`
	RatePerSecond int    `mapstructure:"rate_per_second"`
}

type DashboardConfig struct {
	DefaultTicker   string `mapstructure:"default_ticker"`
	LookbackDays    int    `mapstructure:"lookback_days"`
	Timeframes      []int  `mapstructure:"timeframes"`
	PollIntervalSec int    `mapstructure:"poll_interval_sec"`
	Timezone        string `mapstructure:"timezone"`
	CycleTimeoutSec int    `mapstructure:"cycle_timeout_sec"`
}

type ServerConfig struct {
	Port      string `mapstructure:"port"`
	WSEnabled bool   `mapstructure:"ws_enabled"`
}

type LoggingConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Directory  string `mapstructure:"directory"`
	Level      string `mapstructure:"level"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type SnapshotConfig struct {
	OutputDir string   `mapstructure:"output_dir"`
	Workers   int      `mapstructure:"workers"`
	Tickers   []string `mapstructure:"tickers"`
}

// NotifyConfig configures ntfy notifications for snapshot runs.
type NotifyConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Server   string `mapstructure:"server"`
	Topic    string `mapstructure:"topic"`
	Priority string `mapstructure:"priority"`
	Tags     string `mapstructure:"tags"`
	Token    string `mapstructure:"token"`
}

func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSec) * time.Second
}

func (d DashboardConfig) PollInterval() time.Duration {
	return time.Duration(d.PollIntervalSec) * time.Second
}

func (d DashboardConfig) CycleTimeout() time.Duration {
	return time.Duration(d.CycleTimeoutSec) * time.Second
}

func Load(configPath string) (*Config, error) {
	// A missing .env is normal outside local development
	_ = godotenv.Load()

	v := viper.New()

	// Set defaults
	v.SetDefault("api.base_url", "http://localhost:8000")
	v.SetDefault("api.timeout_sec", 30)
	v.SetDefault("api.rate_per_second", 10)
	v.SetDefault("dashboard.default_ticker", "SPY")
	v.SetDefault("dashboard.lookback_days", 30)
	v.SetDefault("dashboard.timeframes", []int{5, 30, 90, 180})
	v.SetDefault("dashboard.poll_interval_sec", 5)
	v.SetDefault("dashboard.timezone", "America/New_York")
	v.SetDefault("dashboard.cycle_timeout_sec", 60)
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.ws_enabled", true)
	v.SetDefault("logging.enabled", false)
	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 14)
	v.SetDefault("snapshot.output_dir", "snapshots")
	v.SetDefault("snapshot.workers", 2)
	v.SetDefault("snapshot.tickers", []string{"SPY", "QQQ"})
	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.server", "https://ntfy.sh")
	v.SetDefault("notify.priority", "default")
	v.SetDefault("notify.tags", "chart_with_upwards_trend")

	// Environment variable support
	v.SetEnvPrefix("GEXDASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Explicitly bind nested keys to env vars
	_ = v.BindEnv("api.api_key", "GEXDASH_API_KEY")
	_ = v.BindEnv("api.base_url", "GEXDASH_API_BASE_URL")
	_ = v.BindEnv("notify.topic", "NTFY_TOPIC")
	_ = v.BindEnv("notify.token", "NTFY_TOKEN")

	// Load config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("default")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required (set GEXDASH_API_BASE_URL env var)")
	}
	if c.Dashboard.PollIntervalSec < 1 {
		return fmt.Errorf("poll_interval_sec must be >= 1")
	}
	if c.Dashboard.LookbackDays < 1 {
		return fmt.Errorf("lookback_days must be >= 1")
	}
	if err := ValidateTicker(c.Dashboard.DefaultTicker); err != nil {
		return fmt.Errorf("default_ticker: %w", err)
	}
	if c.Snapshot.Workers < 1 {
		return fmt.Errorf("snapshot.workers must be >= 1")
	}
	for _, t := range c.Snapshot.Tickers {
		if err := ValidateTicker(NormalizeTicker(t)); err != nil {
			return fmt.Errorf("snapshot.tickers: %w", err)
		}
	}
	if err := c.Notify.Validate(); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}

// Validate checks the ntfy settings when notifications are enabled.
func (n NotifyConfig) Validate() error {
	if !n.Enabled {
		return nil
	}

	if n.Topic == "" {
		return errors.New("topic is required when notifications are enabled (set NTFY_TOPIC)")
	}

	validPriorities := map[string]bool{
		"min": true, "low": true, "default": true, "high": true, "urgent": true,
	}
	if !validPriorities[n.Priority] {
		return fmt.Errorf("invalid priority: %s (valid: min, low, default, high, urgent)", n.Priority)
	}

	return nil
}
