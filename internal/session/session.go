package session

import (
	"errors"
	"fmt"

	"github.com/tebeka/selenium"
)

// Process is the driver process backing a session.
type Process interface {
	Kill() error
}

// Session is a live WebDriver session bound to a local driver process.
type Session struct {
	selenium.WebDriver

	Port     int
	Process  Process
	DevTools *DevTools
}

// ID is the WebDriver session id.
func (s *Session) ID() string {
	if s.WebDriver == nil {
		return ""
	}
	return s.WebDriver.SessionID()
}

// Close quits the browser, detaches DevTools and kills the driver process.
// All three are attempted; their errors are joined.
func (s *Session) Close() error {
	var errs []error
	if s.WebDriver != nil {
		if err := s.WebDriver.Quit(); err != nil {
			errs = append(errs, fmt.Errorf("quit session: %w", err))
		}
	}
	s.DevTools.Close()
	if s.Process != nil {
		if err := s.Process.Kill(); err != nil {
			errs = append(errs, fmt.Errorf("kill driver: %w", err))
		}
	}
	return errors.Join(errs...)
}
