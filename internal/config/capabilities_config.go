// File: internal/config/capabilities_config.go
// This file defines CapabilitiesConfig, the browser launch options handed to
// the driver when a session is created. The defaults strip the usual
// automation indicators: sandbox and shared memory flags, the
// AutomationControlled blink feature, the infobar, and the enable-automation
// switch.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// DefaultUserAgent is the user-agent reported by the launched browser.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/102.0.0.0 Safari/537.36"

// CapabilitiesConfig holds the browser flags used to build the capability profile.
type CapabilitiesConfig struct {
	UserAgent       string   `mapstructure:"user_agent" yaml:"user_agent"`
	WindowWidth     int      `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight    int      `mapstructure:"window_height" yaml:"window_height"`
	Headless        bool     `mapstructure:"headless" yaml:"headless"`
	ExtraArgs       []string `mapstructure:"extra_args" yaml:"extra_args"`
	ExcludeSwitches []string `mapstructure:"exclude_switches" yaml:"exclude_switches"`

	// Persona applied over DevTools when connect.devtools_persona is set.
	Timezone string `mapstructure:"timezone" yaml:"timezone"`
	Locale   string `mapstructure:"locale" yaml:"locale"`
}

func setCapabilityDefaults(v *viper.Viper) {
	v.SetDefault("capabilities.user_agent", DefaultUserAgent)
	v.SetDefault("capabilities.window_width", 1920)
	v.SetDefault("capabilities.window_height", 1080)
	v.SetDefault("capabilities.headless", false)
	v.SetDefault("capabilities.extra_args", []string{})
	v.SetDefault("capabilities.exclude_switches", []string{"enable-automation"})
	v.SetDefault("capabilities.timezone", "America/Los_Angeles")
	v.SetDefault("capabilities.locale", "en-US")
}

// Validate checks the window geometry.
func (c *CapabilitiesConfig) Validate() error {
	if c.WindowWidth <= 0 || c.WindowHeight <= 0 {
		return fmt.Errorf("window_width and window_height must be positive")
	}
	return nil
}
