// Package platform resolves the host-specific details of the driver pipeline
// once, so the rest of the code never branches on the operating system.
package platform

import (
	"errors"
	"fmt"
	"os"
	"runtime"
)

// ErrUnsupportedPlatform is returned for any OS without a published driver archive.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// ExecutableMode is applied to the driver binary on POSIX hosts.
const ExecutableMode os.FileMode = 0o755

// Profile describes how the driver is named, fetched and made runnable on one OS.
type Profile struct {
	// Name is the GOOS value the profile was resolved from.
	Name string
	// ExecSuffix is appended to every executable name ("" or ".exe").
	ExecSuffix string
	// ArchiveSuffix selects the release archive, e.g. chromedriver_linux64.zip.
	ArchiveSuffix string
	// POSIX reports whether permission bits must be set before exec.
	POSIX bool
}

// Resolve maps an operating system identifier to its profile. Both the Go name
// "darwin" and "macos" select the mac archive.
func Resolve(goos string) (Profile, error) {
	switch goos {
	case "linux":
		return Profile{Name: goos, ArchiveSuffix: "linux64", POSIX: true}, nil
	case "windows":
		return Profile{Name: goos, ExecSuffix: ".exe", ArchiveSuffix: "win32"}, nil
	case "darwin", "macos":
		return Profile{Name: goos, ArchiveSuffix: "mac64", POSIX: true}, nil
	default:
		return Profile{}, fmt.Errorf("%w: %q", ErrUnsupportedPlatform, goos)
	}
}

// Host resolves the profile of the running process.
func Host() (Profile, error) {
	return Resolve(runtime.GOOS)
}

// Executable returns name with the platform's executable suffix.
func (p Profile) Executable(name string) string {
	return name + p.ExecSuffix
}

// MakeExecutable sets ExecutableMode on path. It is a no-op where the OS has
// no permission bits.
func (p Profile) MakeExecutable(path string) error {
	if !p.POSIX {
		return nil
	}
	if err := os.Chmod(path, ExecutableMode); err != nil {
		return fmt.Errorf("failed to set executable permissions on '%s': %w", path, err)
	}
	return nil
}
