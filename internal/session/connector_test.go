package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tebeka/selenium"
	"go.uber.org/zap/zaptest"
)

// fakeWebDriver satisfies selenium.WebDriver; only the methods the package
// calls are implemented.
type fakeWebDriver struct {
	selenium.WebDriver
	id     string
	caps   selenium.Capabilities
	quits  int
	quitFn func() error
}

func (f *fakeWebDriver) SessionID() string { return f.id }

func (f *fakeWebDriver) Capabilities() (selenium.Capabilities, error) { return f.caps, nil }

func (f *fakeWebDriver) Quit() error {
	f.quits++
	if f.quitFn != nil {
		return f.quitFn()
	}
	return nil
}

// scriptedFactory fails until failures is exhausted and then succeeds.
type scriptedFactory struct {
	mu       sync.Mutex
	failures int
	calls    int
	urls     []string
	caps     []selenium.Capabilities
}

func (f *scriptedFactory) NewSession(caps selenium.Capabilities, urlPrefix string) (selenium.WebDriver, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.urls = append(f.urls, urlPrefix)
	f.caps = append(f.caps, caps)
	if f.calls <= f.failures {
		return nil, fmt.Errorf("dial tcp: connection refused (attempt %d)", f.calls)
	}
	return &fakeWebDriver{id: "session-1"}, nil
}

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, Interval: time.Millisecond}
}

func TestConnect_ImmediateSuccess(t *testing.T) {
	factory := &scriptedFactory{}
	c := NewConnector(factory, fastPolicy(20), DefaultProfile(), zaptest.NewLogger(t))

	wd, err := c.Connect(context.Background(), 3456)
	require.NoError(t, err)
	assert.Equal(t, "session-1", wd.SessionID())
	assert.Equal(t, 1, factory.calls)
	assert.Equal(t, []string{"http://localhost:3456"}, factory.urls)
}

func TestConnect_SucceedsAfterFailures(t *testing.T) {
	factory := &scriptedFactory{failures: 2}
	c := NewConnector(factory, fastPolicy(20), DefaultProfile(), zaptest.NewLogger(t))

	wd, err := c.Connect(context.Background(), 2000)
	require.NoError(t, err)
	require.NotNil(t, wd)
	assert.Equal(t, 3, factory.calls, "the connector stops at the first success")
}

func TestConnect_Exhausted(t *testing.T) {
	factory := &scriptedFactory{failures: 1000}
	c := NewConnector(factory, RetryPolicy{MaxAttempts: 20, Interval: 5 * time.Millisecond}, DefaultProfile(), zaptest.NewLogger(t))

	start := time.Now()
	_, err := c.Connect(context.Background(), 4999)
	elapsed := time.Since(start)

	var exhausted *ConnectionExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 20, exhausted.Attempts)
	assert.Equal(t, "http://localhost:4999", exhausted.URL)
	assert.ErrorContains(t, exhausted.Last, "attempt 20")
	assert.Equal(t, 20, factory.calls)
	// 19 sleeps between 20 attempts, none after the last.
	assert.GreaterOrEqual(t, elapsed, 19*5*time.Millisecond)
}

func TestConnect_CapabilitiesSentOnEveryAttempt(t *testing.T) {
	factory := &scriptedFactory{failures: 1}
	c := NewConnector(factory, fastPolicy(3), DefaultProfile(), nil)

	_, err := c.Connect(context.Background(), 2500)
	require.NoError(t, err)
	require.Len(t, factory.caps, 2)
	assert.Equal(t, factory.caps[0], factory.caps[1])
	assert.Equal(t, "chrome", factory.caps[0]["browserName"])
}

func TestConnect_ContextCancelledDuringBackoff(t *testing.T) {
	factory := &scriptedFactory{failures: 1000}
	c := NewConnector(factory, RetryPolicy{MaxAttempts: 20, Interval: time.Hour}, DefaultProfile(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Connect(ctx, 2001)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	var exhausted *ConnectionExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 1, exhausted.Attempts)
	assert.Equal(t, 1, factory.calls)
}

func TestNewConnector_Defaults(t *testing.T) {
	c := NewConnector(nil, RetryPolicy{}, DefaultProfile(), nil)
	assert.IsType(t, SeleniumFactory{}, c.factory)
	assert.Equal(t, DefaultMaxAttempts, c.policy.MaxAttempts)
	assert.Equal(t, DefaultRetryInterval, c.policy.Interval)
}

func TestConnectionExhaustedError_Unwrap(t *testing.T) {
	cause := errors.New("refused")
	err := &ConnectionExhaustedError{URL: "http://localhost:1", Attempts: 20, Last: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "20 attempts")
}

func TestSeleniumFactory_NoListener(t *testing.T) {
	// Grab a free port and release it so nothing is listening.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	c := NewConnector(SeleniumFactory{}, fastPolicy(3), DefaultProfile(), zaptest.NewLogger(t))
	_, err = c.Connect(context.Background(), port)

	var exhausted *ConnectionExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
}
