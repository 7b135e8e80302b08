// File: internal/session/capabilities.go
package session

import (
	"fmt"

	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"

	"github.com/xkilldash9x/ghostdriver/internal/config"
)

// CapabilityProfile is the set of browser launch options sent with every
// session request. It strips the automation indicators the binary patch
// cannot reach.
type CapabilityProfile struct {
	UserAgent       string
	WindowWidth     int
	WindowHeight    int
	Headless        bool
	ExtraArgs       []string
	ExcludeSwitches []string
}

// DefaultProfile mirrors the defaults of the capabilities config section.
func DefaultProfile() CapabilityProfile {
	return CapabilityProfile{
		UserAgent:       config.DefaultUserAgent,
		WindowWidth:     1920,
		WindowHeight:    1080,
		ExcludeSwitches: []string{"enable-automation"},
	}
}

// ProfileFrom builds a profile from configuration.
func ProfileFrom(cfg config.CapabilitiesConfig) CapabilityProfile {
	return CapabilityProfile{
		UserAgent:       cfg.UserAgent,
		WindowWidth:     cfg.WindowWidth,
		WindowHeight:    cfg.WindowHeight,
		Headless:        cfg.Headless,
		ExtraArgs:       append([]string(nil), cfg.ExtraArgs...),
		ExcludeSwitches: append([]string(nil), cfg.ExcludeSwitches...),
	}
}

// ChromeArgs is the browser command line carried in goog:chromeOptions.
func (p CapabilityProfile) ChromeArgs() []string {
	args := []string{
		"--no-sandbox",
		"--disable-dev-shm-usage",
		// Keeps navigator.webdriver from being set.
		"--disable-blink-features=AutomationControlled",
		fmt.Sprintf("window-size=%d,%d", p.WindowWidth, p.WindowHeight),
	}
	if p.UserAgent != "" {
		args = append(args, "user-agent="+p.UserAgent)
	}
	args = append(args, "disable-infobars")
	if p.Headless {
		args = append(args, "--headless=new")
	}
	return append(args, p.ExtraArgs...)
}

// Capabilities renders the profile as a new-session payload.
func (p CapabilityProfile) Capabilities() selenium.Capabilities {
	caps := selenium.Capabilities{"browserName": "chrome"}
	caps.AddChrome(chrome.Capabilities{
		Args:            p.ChromeArgs(),
		ExcludeSwitches: append([]string(nil), p.ExcludeSwitches...),
		W3C:             true,
	})
	return caps
}
