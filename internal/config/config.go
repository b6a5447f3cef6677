// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the full application configuration.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	Resilience ResilienceConfig `mapstructure:"resilience" yaml:"resilience"`
}

// LoggerConfig configures the global zap logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig maps log levels to terminal colors for the console encoder.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// ResilienceConfig configures the failure classifier, the adaptive retry
// strategy, and the analytics component.
type ResilienceConfig struct {
	// DataDir is where the retry and analytics journals are persisted.
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`

	// MaxHistory bounds the retry strategy's FIFO failure journal.
	MaxHistory int `mapstructure:"max_history" yaml:"max_history"`

	// MaxRecords bounds the analytics FIFO failure journal.
	MaxRecords int `mapstructure:"max_records" yaml:"max_records"`

	// RetentionDays controls how long analytics records survive before the
	// hourly maintenance pass evicts them.
	RetentionDays int `mapstructure:"retention_days" yaml:"retention_days"`

	// MaintenanceInterval is how often the analytics maintenance pass runs.
	MaintenanceInterval time.Duration `mapstructure:"maintenance_interval" yaml:"maintenance_interval"`

	// NoResultsSelectors and NoResultsPatterns extend the built-in
	// empty-result detection with site-specific markers.
	NoResultsSelectors []string `mapstructure:"no_results_selectors" yaml:"no_results_selectors"`
	NoResultsPatterns  []string `mapstructure:"no_results_patterns" yaml:"no_results_patterns"`
}

// SetDefaults initializes default values on the given viper instance.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "gleaner")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Resilience --
	v.SetDefault("resilience.data_dir", "data")
	v.SetDefault("resilience.max_history", 1000)
	v.SetDefault("resilience.max_records", 5000)
	v.SetDefault("resilience.retention_days", 30)
	v.SetDefault("resilience.maintenance_interval", time.Hour)
}

// NewDefaultConfig returns a Config populated with defaults only.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults always unmarshal; a failure here is a programming error.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// Load reads configuration from an optional file path, layered over
// defaults and GLEANER_* environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("GLEANER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %q: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks for sane values.
func (c *Config) Validate() error {
	if c.Resilience.MaxHistory <= 0 {
		return fmt.Errorf("resilience.max_history must be a positive integer")
	}
	if c.Resilience.MaxRecords <= 0 {
		return fmt.Errorf("resilience.max_records must be a positive integer")
	}
	if c.Resilience.RetentionDays <= 0 {
		return fmt.Errorf("resilience.retention_days must be a positive integer")
	}
	if c.Resilience.MaintenanceInterval <= 0 {
		return fmt.Errorf("resilience.maintenance_interval must be a positive duration")
	}
	return nil
}
