// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for every environment variable override,
// e.g. GHOSTDRIVER_LAUNCH_PORT_MIN.
const EnvPrefix = "GHOSTDRIVER"

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Driver() DriverConfig
	Network() NetworkConfig
	Launch() LaunchConfig
	Connect() ConnectConfig
	Capabilities() CapabilitiesConfig

	// Driver Setters
	SetDriverWorkDir(dir string)
	SetDriverReleaseURL(url string)

	// Connect Setters
	SetConnectMaxAttempts(n int)
	SetConnectRetryInterval(d time.Duration)
	SetConnectDevToolsPersona(b bool)

	// Capabilities Setters
	SetCapabilitiesHeadless(b bool)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg       LoggerConfig       `mapstructure:"logger" yaml:"logger"`
	DriverCfg       DriverConfig       `mapstructure:"driver" yaml:"driver"`
	NetworkCfg      NetworkConfig      `mapstructure:"network" yaml:"network"`
	LaunchCfg       LaunchConfig       `mapstructure:"launch" yaml:"launch"`
	ConnectCfg      ConnectConfig      `mapstructure:"connect" yaml:"connect"`
	CapabilitiesCfg CapabilitiesConfig `mapstructure:"capabilities" yaml:"capabilities"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig             { return c.LoggerCfg }
func (c *Config) Driver() DriverConfig             { return c.DriverCfg }
func (c *Config) Network() NetworkConfig           { return c.NetworkCfg }
func (c *Config) Launch() LaunchConfig             { return c.LaunchCfg }
func (c *Config) Connect() ConnectConfig           { return c.ConnectCfg }
func (c *Config) Capabilities() CapabilitiesConfig { return c.CapabilitiesCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetDriverWorkDir(dir string)    { c.DriverCfg.WorkDir = dir }
func (c *Config) SetDriverReleaseURL(url string) { c.DriverCfg.ReleaseURL = url }

func (c *Config) SetConnectMaxAttempts(n int) { c.ConnectCfg.MaxAttempts = n }
func (c *Config) SetConnectRetryInterval(d time.Duration) {
	c.ConnectCfg.RetryInterval = d
}
func (c *Config) SetConnectDevToolsPersona(b bool) { c.ConnectCfg.DevToolsPersona = b }

func (c *Config) SetCapabilitiesHeadless(b bool) { c.CapabilitiesCfg.Headless = b }

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

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// DriverConfig controls where the driver binary is provisioned from and to.
type DriverConfig struct {
	// WorkDir receives the extracted archive and both binaries. "~" is expanded.
	WorkDir       string `mapstructure:"work_dir" yaml:"work_dir"`
	ReleaseURL    string `mapstructure:"release_url" yaml:"release_url"`
	ExeName       string `mapstructure:"exe_name" yaml:"exe_name"`
	PatchedSuffix string `mapstructure:"patched_suffix" yaml:"patched_suffix"`
}

// NetworkConfig tunes the HTTP client used for the release index and archive.
type NetworkConfig struct {
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
	IgnoreTLSErrors bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	ForceHTTP2      bool          `mapstructure:"force_http2" yaml:"force_http2"`
	ProxyURL        string        `mapstructure:"proxy_url" yaml:"proxy_url"`
}

// LaunchConfig bounds the local port the driver listens on.
type LaunchConfig struct {
	PortMin int `mapstructure:"port_min" yaml:"port_min"`
	PortMax int `mapstructure:"port_max" yaml:"port_max"`
}

// ConnectConfig is the session connect retry policy.
type ConnectConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	RetryInterval   time.Duration `mapstructure:"retry_interval" yaml:"retry_interval"`
	DevToolsPersona bool          `mapstructure:"devtools_persona" yaml:"devtools_persona"`
}

// NOTE: CapabilitiesConfig is defined in internal/config/capabilities_config.go

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "ghostdriver")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 20)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Driver --
	v.SetDefault("driver.work_dir", ".")
	v.SetDefault("driver.release_url", "https://chromedriver.storage.googleapis.com")
	v.SetDefault("driver.exe_name", "chromedriver")
	v.SetDefault("driver.patched_suffix", "_PATCHED")

	// -- Network --
	v.SetDefault("network.timeout", "60s")
	v.SetDefault("network.ignore_tls_errors", false)
	v.SetDefault("network.force_http2", true)
	v.SetDefault("network.proxy_url", "")

	// -- Launch --
	v.SetDefault("launch.port_min", 2000)
	v.SetDefault("launch.port_max", 4999)

	// -- Connect --
	v.SetDefault("connect.max_attempts", 20)
	v.SetDefault("connect.retry_interval", "250ms")
	v.SetDefault("connect.devtools_persona", false)

	// Capability defaults live next to their struct.
	setCapabilityDefaults(v)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	dir, err := homedir.Expand(cfg.DriverCfg.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("error expanding driver.work_dir: %w", err)
	}
	cfg.DriverCfg.WorkDir = dir

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.DriverCfg.WorkDir == "" {
		return fmt.Errorf("driver.work_dir is a required configuration field")
	}
	if c.DriverCfg.ReleaseURL == "" {
		return fmt.Errorf("driver.release_url is a required configuration field")
	}
	if c.DriverCfg.ExeName == "" || c.DriverCfg.PatchedSuffix == "" {
		return fmt.Errorf("driver.exe_name and driver.patched_suffix must be non-empty")
	}
	if err := c.LaunchCfg.Validate(); err != nil {
		return fmt.Errorf("launch configuration invalid: %w", err)
	}
	if err := c.ConnectCfg.Validate(); err != nil {
		return fmt.Errorf("connect configuration invalid: %w", err)
	}
	if err := c.CapabilitiesCfg.Validate(); err != nil {
		return fmt.Errorf("capabilities configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the port range.
func (l *LaunchConfig) Validate() error {
	if l.PortMin < 1 || l.PortMax > 65535 {
		return fmt.Errorf("port range must lie within 1-65535")
	}
	if l.PortMin > l.PortMax {
		return fmt.Errorf("port_min (%d) must not exceed port_max (%d)", l.PortMin, l.PortMax)
	}
	return nil
}

// Validate checks the retry policy.
func (c *ConnectConfig) Validate() error {
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts must be greater than 0")
	}
	if c.RetryInterval < 0 {
		return fmt.Errorf("retry_interval must not be negative")
	}
	return nil
}
