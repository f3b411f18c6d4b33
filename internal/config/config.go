// Package config loads and validates progtree configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/progress-tree/internal/simulate"
)

// EnvPrefix is prepended to environment overrides, e.g. PROGTREE_SERVER_ADDR.
const EnvPrefix = "PROGTREE"

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Progress ProgressConfig `mapstructure:"progress"`
	Hub      HubConfig      `mapstructure:"hub"`
	Server   ServerConfig   `mapstructure:"server"`
	Simulate SimulateConfig `mapstructure:"simulate"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// ProgressConfig shapes the progress tree.
type ProgressConfig struct {
	Separator string `mapstructure:"separator"`
}

// HubConfig controls record batching between the tree and the sinks.
type HubConfig struct {
	BufferSize     int           `mapstructure:"buffer_size"`
	MaxBatchEvents int           `mapstructure:"max_batch_events"`
	MaxBatchWait   time.Duration `mapstructure:"max_batch_wait"`
	SinkTimeout    time.Duration `mapstructure:"sink_timeout"`
}

// ServerConfig controls the optional status/metrics HTTP server. An empty
// Addr disables it.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// SimulateConfig drives the demo workload.
type SimulateConfig struct {
	Title         string        `mapstructure:"title"`
	Plan          string        `mapstructure:"plan"`
	StepDelay     time.Duration `mapstructure:"step_delay"`
	ActivityEvery int           `mapstructure:"activity_every"`
	// Linger keeps the status server up after the run so the final state can be scraped.
	Linger        time.Duration `mapstructure:"linger"`
}

// New returns a Viper instance with defaults and environment binding applied.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	return FromViper(v)
}

// FromViper unmarshals and validates the configuration held by v.
func FromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("progress.separator", " > ")
	v.SetDefault("hub.buffer_size", 1024)
	v.SetDefault("hub.max_batch_events", 256)
	v.SetDefault("hub.max_batch_wait", "250ms")
	v.SetDefault("hub.sink_timeout", "5s")
	v.SetDefault("server.addr", "")
	v.SetDefault("server.shutdown_timeout", "5s")
	v.SetDefault("simulate.title", "simulation")
	v.SetDefault("simulate.plan", "3x4x10")
	v.SetDefault("simulate.step_delay", "20ms")
	v.SetDefault("simulate.activity_every", 5)
	v.SetDefault("simulate.linger", "0s")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Hub.BufferSize <= 0 {
		return fmt.Errorf("hub.buffer_size must be > 0")
	}
	if c.Hub.MaxBatchEvents <= 0 {
		return fmt.Errorf("hub.max_batch_events must be > 0")
	}
	if c.Hub.MaxBatchWait <= 0 {
		return fmt.Errorf("hub.max_batch_wait must be > 0")
	}
	if c.Hub.SinkTimeout <= 0 {
		return fmt.Errorf("hub.sink_timeout must be > 0")
	}
	if c.Simulate.StepDelay < 0 {
		return fmt.Errorf("simulate.step_delay must be >= 0")
	}
	if c.Simulate.Linger < 0 {
		return fmt.Errorf("simulate.linger must be >= 0")
	}
	if c.Simulate.ActivityEvery < 0 {
		return fmt.Errorf("simulate.activity_every must be >= 0")
	}
	if _, err := simulate.ParsePlan(c.Simulate.Plan); err != nil {
		return fmt.Errorf("simulate.plan: %w", err)
	}
	return nil
}
