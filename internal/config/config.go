// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration. Flag overrides are
// applied through viper before unmarshaling, so the struct is the single
// source of truth once a command starts running.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Network NetworkConfig `mapstructure:"network" yaml:"network"`
	Harvest HarvestConfig `mapstructure:"harvest" yaml:"harvest"`
}

// LoggerConfig holds all the configuration for the logger.
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

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the headless browser instance.
type BrowserConfig struct {
	Headless     bool     `mapstructure:"headless" yaml:"headless"`
	ExecPath     string   `mapstructure:"exec_path" yaml:"exec_path"`
	WindowWidth  int      `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight int      `mapstructure:"window_height" yaml:"window_height"`
	Args         []string `mapstructure:"args" yaml:"args"`
}

// NetworkConfig tunes the wait budgets of browser operations.
type NetworkConfig struct {
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	FrameTimeout      time.Duration `mapstructure:"frame_timeout" yaml:"frame_timeout"`
	ElementTimeout    time.Duration `mapstructure:"element_timeout" yaml:"element_timeout"`
}

// HarvestConfig configures a harvest run: where the route definitions
// live, where artifacts go, which partition keys to iterate, and the
// traversal recovery knobs.
type HarvestConfig struct {
	RoutesFile  string        `mapstructure:"routes_file" yaml:"routes_file"`
	OutputDir   string        `mapstructure:"output_dir" yaml:"output_dir"`
	Years       []string      `mapstructure:"years" yaml:"years"`
	SettleDelay time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
}

// SetDefaults initializes default values for all configuration sections.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "framewalk")
	v.SetDefault("logger.log_file", "framewalk.log")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)

	// -- Network --
	v.SetDefault("network.navigation_timeout", "90s")
	v.SetDefault("network.frame_timeout", "20s")
	v.SetDefault("network.element_timeout", "10s")

	// -- Harvest --
	v.SetDefault("harvest.routes_file", "routes.yaml")
	v.SetDefault("harvest.output_dir", "data")
	v.SetDefault("harvest.settle_delay", "500ms")
	v.SetDefault("harvest.max_attempts", 3)
}

// NewConfigFromViper creates a validated configuration from a viper
// instance that has already read its sources.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if c.Harvest.MaxAttempts <= 0 {
		return fmt.Errorf("harvest.max_attempts must be a positive integer")
	}
	if c.Harvest.RoutesFile == "" {
		return fmt.Errorf("harvest.routes_file is required")
	}
	if c.Network.ElementTimeout <= 0 || c.Network.FrameTimeout <= 0 || c.Network.NavigationTimeout <= 0 {
		return fmt.Errorf("network timeouts must be positive durations")
	}
	if c.Browser.WindowWidth <= 0 || c.Browser.WindowHeight <= 0 {
		return fmt.Errorf("browser.window_width and browser.window_height must be positive")
	}
	return nil
}

// OutputDir returns the artifact directory with any ~ prefix expanded.
func (c *Config) OutputDir() (string, error) {
	dir, err := homedir.Expand(c.Harvest.OutputDir)
	if err != nil {
		return "", fmt.Errorf("expanding output dir %q: %w", c.Harvest.OutputDir, err)
	}
	return dir, nil
}
