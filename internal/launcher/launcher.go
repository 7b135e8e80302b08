// Package launcher starts the patched driver as a background process on a
// randomly chosen local port.
package launcher

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/xkilldash9x/ghostdriver/internal/patcher"
	"github.com/xkilldash9x/ghostdriver/internal/platform"
)

// Port range the driver is bound to. No bind check is made here; a taken
// port surfaces as failed connection attempts.
const (
	DefaultPortMin = 2000
	DefaultPortMax = 4999
)

// LaunchError reports that the driver process could not be started.
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to start chromedriver '%s': %v", e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// Config is the per-launch record: where the binary lives and which port it gets.
type Config struct {
	Platform platform.Profile
	Dir      string
	Name     string
	Port     int
}

// Path is the binary's location on disk.
func (c Config) Path() string { return filepath.Join(c.Dir, c.Name) }

// Args is the argument vector, argv[0] included.
func (c Config) Args() []string {
	return []string{"./" + c.Name, PortArg(c.Port)}
}

// PortArg is the single flag passed to the driver.
func PortArg(port int) string {
	return "--port=" + strconv.Itoa(port)
}

// Options configures a Launcher.
type Options struct {
	Platform platform.Profile
	PortMin  int
	PortMax  int
	Rand     patcher.Rand
	// Stdout and Stderr receive the driver's output; nil discards it.
	Stdout io.Writer
	Stderr io.Writer
	Logger *zap.Logger
}

// Launcher owns the platform specific steps of starting the driver.
type Launcher struct {
	profile platform.Profile
	portMin int
	portMax int
	rng     patcher.Rand
	stdout  io.Writer
	stderr  io.Writer
	logger  *zap.Logger
}

// New returns a Launcher. Zero port bounds fall back to the defaults.
func New(opts Options) (*Launcher, error) {
	if opts.PortMin == 0 && opts.PortMax == 0 {
		opts.PortMin, opts.PortMax = DefaultPortMin, DefaultPortMax
	}
	if opts.PortMin < 1 || opts.PortMax > 65535 || opts.PortMin > opts.PortMax {
		return nil, fmt.Errorf("launcher: invalid port range %d-%d", opts.PortMin, opts.PortMax)
	}
	if opts.Rand == nil {
		opts.Rand = patcher.DefaultRand
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Launcher{
		profile: opts.Platform,
		portMin: opts.PortMin,
		portMax: opts.PortMax,
		rng:     opts.Rand,
		stdout:  opts.Stdout,
		stderr:  opts.Stderr,
		logger:  opts.Logger.Named("launcher"),
	}, nil
}

// PickPort draws a port uniformly from the configured inclusive range.
func (l *Launcher) PickPort() int {
	return l.portMin + l.rng.IntN(l.portMax-l.portMin+1)
}

// Launch marks the binary at dir/name executable and starts it on a fresh
// random port. Any failure is a *LaunchError; nothing is retried.
func (l *Launcher) Launch(dir, name string) (*Process, error) {
	cfg := Config{Platform: l.profile, Dir: dir, Name: name, Port: l.PickPort()}
	return l.Start(cfg)
}

// Start launches the driver described by cfg.
func (l *Launcher) Start(cfg Config) (*Process, error) {
	path := cfg.Path()
	if err := cfg.Platform.MakeExecutable(path); err != nil {
		return nil, &LaunchError{Path: path, Err: err}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &LaunchError{Path: path, Err: err}
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, &LaunchError{Path: path, Err: err}
	}

	args := cfg.Args()
	cmd := &exec.Cmd{
		Path:   abs,
		Args:   args,
		Dir:    cfg.Dir,
		Stdout: l.stdout,
		Stderr: l.stderr,
	}
	detach(cmd)

	l.logger.Info("Starting chromedriver...", zap.String("path", path), zap.Int("port", cfg.Port))
	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Path: path, Err: err}
	}

	proc := newProcess(cmd, cfg)
	l.logger.Debug("Chromedriver process started", zap.Int("pid", cmd.Process.Pid), zap.Strings("args", args))
	return proc, nil
}

// Process is a running driver.
type Process struct {
	Port int
	Path string

	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

func newProcess(cmd *exec.Cmd, cfg Config) *Process {
	p := &Process{Port: cfg.Port, Path: cfg.Path(), cmd: cmd, done: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()
	return p
}

// PID is the operating system process id.
func (p *Process) PID() int { return p.cmd.Process.Pid }

// Args returns the argument vector the process was started with.
func (p *Process) Args() []string { return append([]string(nil), p.cmd.Args...) }

// Done is closed once the process has exited.
func (p *Process) Done() <-chan struct{} { return p.done }

// Err is the exit error; valid after Done is closed.
func (p *Process) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Kill terminates the process and waits for it to be reaped.
func (p *Process) Kill() error {
	select {
	case <-p.done:
		return nil
	default:
	}
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	<-p.done
	return nil
}
