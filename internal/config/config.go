// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/xkilldash9x/pagewright/internal/driver"
	"github.com/xkilldash9x/pagewright/internal/readiness"
)

// Interface defines the contract for accessing run configuration.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Timeouts() TimeoutsConfig
	Readiness() ReadinessConfig
	Artifacts() ArtifactsConfig
	Run() RunConfig

	SetBrowserHeadless(bool)
	SetRunWorkers(int)
	SetRunBaseURL(string)
}

// Config holds the entire run configuration.
type Config struct {
	LoggerCfg    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	BrowserCfg   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	TimeoutsCfg  TimeoutsConfig  `mapstructure:"timeouts" yaml:"timeouts"`
	ReadinessCfg ReadinessConfig `mapstructure:"readiness" yaml:"readiness"`
	ArtifactsCfg ArtifactsConfig `mapstructure:"artifacts" yaml:"artifacts"`
	RunCfg       RunConfig       `mapstructure:"run" yaml:"run"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig       { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig     { return c.BrowserCfg }
func (c *Config) Timeouts() TimeoutsConfig   { return c.TimeoutsCfg }
func (c *Config) Readiness() ReadinessConfig { return c.ReadinessCfg }
func (c *Config) Artifacts() ArtifactsConfig { return c.ArtifactsCfg }
func (c *Config) Run() RunConfig             { return c.RunCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBrowserHeadless(b bool) { c.BrowserCfg.Headless = b }
func (c *Config) SetRunWorkers(n int)       { c.RunCfg.Workers = n }
func (c *Config) SetRunBaseURL(u string)    { c.RunCfg.BaseURL = u }

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
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig selects and shapes the browser the session manager launches.
type BrowserConfig struct {
	Kind     string       `mapstructure:"kind" yaml:"kind"`
	Headless bool         `mapstructure:"headless" yaml:"headless"`
	Window   WindowConfig `mapstructure:"window" yaml:"window"`
	Args     []string     `mapstructure:"args" yaml:"args"`
	ExecPath string       `mapstructure:"exec_path" yaml:"exec_path"`
}

// WindowConfig is the browser window size in pixels. Zero leaves the browser default.
type WindowConfig struct {
	Width  int `mapstructure:"width" yaml:"width"`
	Height int `mapstructure:"height" yaml:"height"`
}

// TimeoutsConfig holds every wait budget.
type TimeoutsConfig struct {
	Implicit     time.Duration `mapstructure:"implicit" yaml:"implicit"`
	Explicit     time.Duration `mapstructure:"explicit" yaml:"explicit"`
	PageLoad     time.Duration `mapstructure:"page_load" yaml:"page_load"`
	Script       time.Duration `mapstructure:"script" yaml:"script"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// ReadinessConfig names the application readiness probe.
type ReadinessConfig struct {
	Probe  string `mapstructure:"probe" yaml:"probe"`
	Script string `mapstructure:"script" yaml:"script"`
}

// ArtifactsConfig controls what is captured when a unit fails.
type ArtifactsConfig struct {
	ScreenshotOnFailure bool   `mapstructure:"screenshot_on_failure" yaml:"screenshot_on_failure"`
	ScreenshotPath      string `mapstructure:"screenshot_path" yaml:"screenshot_path"`
}

// RunConfig holds settings for a test run.
type RunConfig struct {
	BaseURL  string `mapstructure:"base_url" yaml:"base_url"`
	Landmark string `mapstructure:"landmark" yaml:"landmark"`
	Workers  int    `mapstructure:"workers" yaml:"workers"`
}

// DriverOptions converts the browser and timeout sections into factory options.
func (c *Config) DriverOptions() (driver.Options, error) {
	kind, err := driver.ParseKind(c.BrowserCfg.Kind)
	if err != nil {
		return driver.Options{}, err
	}
	return driver.Options{
		Browser:  kind,
		Headless: c.BrowserCfg.Headless,
		Timeouts: driver.Timeouts{
			Implicit: c.TimeoutsCfg.Implicit,
			Explicit: c.TimeoutsCfg.Explicit,
			PageLoad: c.TimeoutsCfg.PageLoad,
			Script:   c.TimeoutsCfg.Script,
		},
		Window:   driver.WindowSize{Width: c.BrowserCfg.Window.Width, Height: c.BrowserCfg.Window.Height},
		Args:     c.BrowserCfg.Args,
		ExecPath: c.BrowserCfg.ExecPath,
	}, nil
}

// Probe resolves the configured readiness probe.
func (c *Config) Probe() (readiness.Probe, error) {
	return readiness.Lookup(c.ReadinessCfg.Probe, c.ReadinessCfg.Script)
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for every configuration parameter.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "pagewright")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.kind", "chrome")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.window.width", 1920)
	v.SetDefault("browser.window.height", 1080)
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.exec_path", "")

	// -- Timeouts --
	v.SetDefault("timeouts.implicit", "5s")
	v.SetDefault("timeouts.explicit", "10s")
	v.SetDefault("timeouts.page_load", "30s")
	v.SetDefault("timeouts.script", "5s")
	v.SetDefault("timeouts.poll_interval", "100ms")

	// -- Readiness --
	v.SetDefault("readiness.probe", readiness.ProbeDocument)
	v.SetDefault("readiness.script", "")

	// -- Artifacts --
	v.SetDefault("artifacts.screenshot_on_failure", true)
	v.SetDefault("artifacts.screenshot_path", "./artifacts")

	// -- Run --
	v.SetDefault("run.base_url", "")
	v.SetDefault("run.landmark", "body")
	v.SetDefault("run.workers", 1)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.ArtifactsCfg.ScreenshotPath != "" {
		expanded, err := homedir.Expand(cfg.ArtifactsCfg.ScreenshotPath)
		if err != nil {
			return nil, fmt.Errorf("invalid artifacts.screenshot_path: %w", err)
		}
		cfg.ArtifactsCfg.ScreenshotPath = expanded
	}
	if cfg.BrowserCfg.ExecPath != "" {
		expanded, err := homedir.Expand(cfg.BrowserCfg.ExecPath)
		if err != nil {
			return nil, fmt.Errorf("invalid browser.exec_path: %w", err)
		}
		cfg.BrowserCfg.ExecPath = expanded
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if _, err := driver.ParseKind(c.BrowserCfg.Kind); err != nil {
		return fmt.Errorf("browser.kind: %w", err)
	}
	if c.BrowserCfg.Window.Width < 0 || c.BrowserCfg.Window.Height < 0 {
		return fmt.Errorf("browser.window dimensions must not be negative")
	}
	if err := c.TimeoutsCfg.Validate(); err != nil {
		return fmt.Errorf("timeouts configuration invalid: %w", err)
	}
	if _, err := c.Probe(); err != nil {
		return fmt.Errorf("readiness configuration invalid: %w", err)
	}
	if c.ArtifactsCfg.ScreenshotOnFailure && strings.TrimSpace(c.ArtifactsCfg.ScreenshotPath) == "" {
		return fmt.Errorf("artifacts.screenshot_path is required when screenshot_on_failure is enabled")
	}
	if c.RunCfg.Workers <= 0 {
		return fmt.Errorf("run.workers must be a positive integer")
	}
	return nil
}

// Validate checks the wait budgets.
func (t *TimeoutsConfig) Validate() error {
	if t.Implicit < 0 {
		return fmt.Errorf("implicit must not be negative")
	}
	if t.Explicit <= 0 || t.PageLoad <= 0 || t.Script <= 0 {
		return fmt.Errorf("explicit, page_load and script must be positive durations")
	}
	if t.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be a positive duration")
	}
	if t.PollInterval > t.Explicit {
		return fmt.Errorf("poll_interval (%s) must not exceed explicit (%s)", t.PollInterval, t.Explicit)
	}
	return nil
}
