// Package session opens a WebDriver session against the local driver,
// polling until the driver's HTTP listener is up.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tebeka/selenium"
	"go.uber.org/zap"
)

// Default retry policy. The driver exposes no readiness signal, so the
// connector polls its endpoint.
const (
	DefaultMaxAttempts   = 20
	DefaultRetryInterval = 250 * time.Millisecond
)

// ConnectionExhaustedError reports that every connection attempt failed.
// The driver process is left running.
type ConnectionExhaustedError struct {
	URL      string
	Attempts int
	Last     error
}

func (e *ConnectionExhaustedError) Error() string {
	return fmt.Sprintf("could not establish a session at %s after %d attempts: %v", e.URL, e.Attempts, e.Last)
}

func (e *ConnectionExhaustedError) Unwrap() error { return e.Last }

// Factory opens a WebDriver session.
type Factory interface {
	NewSession(caps selenium.Capabilities, urlPrefix string) (selenium.WebDriver, error)
}

// SeleniumFactory creates sessions with github.com/tebeka/selenium.
type SeleniumFactory struct{}

// NewSession implements Factory.
func (SeleniumFactory) NewSession(caps selenium.Capabilities, urlPrefix string) (selenium.WebDriver, error) {
	return selenium.NewRemote(caps, urlPrefix)
}

// RetryPolicy bounds the connection attempts.
type RetryPolicy struct {
	MaxAttempts int
	Interval    time.Duration
}

// DefaultRetryPolicy is 20 attempts, 250ms apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts, Interval: DefaultRetryInterval}
}

// Connector repeatedly tries to open a session until one succeeds.
type Connector struct {
	factory Factory
	policy  RetryPolicy
	profile CapabilityProfile
	logger  *zap.Logger
}

// NewConnector returns a Connector. A nil factory selects SeleniumFactory and
// a non-positive MaxAttempts selects the default policy.
func NewConnector(factory Factory, policy RetryPolicy, profile CapabilityProfile, logger *zap.Logger) *Connector {
	if factory == nil {
		factory = SeleniumFactory{}
	}
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Connector{factory: factory, policy: policy, profile: profile, logger: logger.Named("session")}
}

// Endpoint is the driver URL for port.
func Endpoint(port int) string {
	return fmt.Sprintf("http://localhost:%d", port)
}

// Connect opens a session against the driver on port. It returns on the first
// success and sleeps the policy interval after each failure. ctx only
// interrupts the sleep between attempts.
func (c *Connector) Connect(ctx context.Context, port int) (selenium.WebDriver, error) {
	url := Endpoint(port)
	caps := c.profile.Capabilities()

	var last error
	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		wd, err := c.factory.NewSession(caps, url)
		if err == nil {
			c.logger.Info("Session established", zap.String("url", url), zap.Int("attempt", attempt))
			return wd, nil
		}
		last = err
		c.logger.Debug("Session attempt failed", zap.Int("attempt", attempt), zap.Error(err))

		if attempt == c.policy.MaxAttempts {
			break
		}
		if err := sleep(ctx, c.policy.Interval); err != nil {
			return nil, errors.Join(err, &ConnectionExhaustedError{URL: url, Attempts: attempt, Last: last})
		}
	}
	return nil, &ConnectionExhaustedError{URL: url, Attempts: c.policy.MaxAttempts, Last: last}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
