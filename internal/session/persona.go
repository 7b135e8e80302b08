package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/tebeka/selenium"
	"go.uber.org/zap"
)

// ErrNoDebuggerAddress is returned when the session capabilities do not
// advertise a DevTools endpoint.
var ErrNoDebuggerAddress = errors.New("session capabilities carry no debugger address")

// Persona is the identity pushed into the browser over DevTools once the
// session is up.
type Persona struct {
	UserAgent string
	Timezone  string
	Locale    string
}

// DebuggerAddress reads goog:chromeOptions.debuggerAddress from the
// capabilities returned by the driver.
func DebuggerAddress(caps selenium.Capabilities) (string, error) {
	opts, ok := caps["goog:chromeOptions"].(map[string]interface{})
	if !ok {
		return "", ErrNoDebuggerAddress
	}
	addr, ok := opts["debuggerAddress"].(string)
	if !ok || strings.TrimSpace(addr) == "" {
		return "", ErrNoDebuggerAddress
	}
	return addr, nil
}

// Tasks builds the CDP actions for the persona. Empty fields are skipped.
func (p Persona) Tasks(logger *zap.Logger) chromedp.Tasks {
	var tasks chromedp.Tasks
	if p.UserAgent != "" {
		override := emulation.SetUserAgentOverride(p.UserAgent)
		if p.Locale != "" {
			override = override.WithAcceptLanguage(p.Locale)
		}
		tasks = append(tasks, override)
	}
	if p.Timezone != "" {
		tasks = append(tasks, emulation.SetTimezoneOverride(p.Timezone))
	}
	if p.Locale != "" {
		tasks = append(tasks, emulation.SetLocaleOverride().WithLocale(strings.ReplaceAll(p.Locale, "_", "-")))
	}
	logger.Debug("Built DevTools persona",
		zap.String("userAgent", p.UserAgent),
		zap.String("timezone", p.Timezone),
		zap.Int("tasks", len(tasks)),
	)
	return tasks
}

// DevTools is an open DevTools attachment to the session's page. Emulation
// overrides last only while it stays attached.
type DevTools struct {
	cancel context.CancelFunc
}

// Close detaches from the browser.
func (d *DevTools) Close() {
	if d != nil && d.cancel != nil {
		d.cancel()
	}
}

// AttachPersona connects to the DevTools endpoint at addr, attaches to the
// first page target and applies the persona. Cancelling ctx aborts the
// setup; once attached the connection outlives ctx and is released by Close.
// The returned DevTools is non-nil whenever a page was attached, even if
// applying the persona failed, and must be closed after the session quits.
func AttachPersona(ctx context.Context, addr string, p Persona, logger *zap.Logger) (*DevTools, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("devtools")

	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(context.WithoutCancel(ctx), "http://"+addr)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	cancel := func() {
		cancelBrowser()
		cancelAlloc()
	}
	// ctx bounds the setup only.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	targets, err := chromedp.Targets(browserCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("devtools: failed to list targets at %s: %w", addr, err)
	}
	var page *target.Info
	for _, t := range targets {
		if t.Type == "page" {
			page = t
			break
		}
	}
	if page == nil {
		cancel()
		return nil, fmt.Errorf("devtools: no page target at %s", addr)
	}

	// Releasing the tab context closes the page, so it lives as long as the
	// session does.
	tabCtx, cancelTab := chromedp.NewContext(browserCtx, chromedp.WithTargetID(page.TargetID))
	dt := &DevTools{cancel: func() {
		cancelTab()
		cancel()
	}}
	if err := chromedp.Run(tabCtx, p.Tasks(logger)); err != nil {
		return dt, fmt.Errorf("devtools: failed to apply persona: %w", err)
	}

	logger.Info("Applied DevTools persona", zap.String("addr", addr), zap.String("target", string(page.TargetID)))
	return dt, nil
}
