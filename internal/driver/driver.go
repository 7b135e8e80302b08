// Package driver runs the full pipeline: provision and patch the driver
// binary, launch it, and open a WebDriver session against it.
package driver

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ghostdriver/internal/config"
	"github.com/xkilldash9x/ghostdriver/internal/launcher"
	"github.com/xkilldash9x/ghostdriver/internal/network"
	"github.com/xkilldash9x/ghostdriver/internal/observability"
	"github.com/xkilldash9x/ghostdriver/internal/patcher"
	"github.com/xkilldash9x/ghostdriver/internal/platform"
	"github.com/xkilldash9x/ghostdriver/internal/provision"
	"github.com/xkilldash9x/ghostdriver/internal/session"
)

// Options overrides the collaborators of a Driver. Zero values select the
// production implementations.
type Options struct {
	// GOOS overrides runtime.GOOS for platform resolution.
	GOOS    string
	Fetcher provision.Fetcher
	Factory session.Factory
	Rand    patcher.Rand
	Stdout  io.Writer
	Stderr  io.Writer
	Logger  *zap.Logger
}

// Driver owns one pipeline run. It is not safe to run two Drivers against
// the same working directory at once.
type Driver struct {
	cfg    config.Interface
	opts   Options
	runID  string
	logger *zap.Logger
	proc   *launcher.Process
}

// New prepares a Driver. Nothing touches the disk or network until a method
// is called.
func New(cfg config.Interface, opts Options) *Driver {
	if opts.GOOS == "" {
		opts.GOOS = runtime.GOOS
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	logger := opts.Logger
	if logger == nil {
		logger = observability.GetLogger()
	}
	runID := uuid.NewString()
	return &Driver{
		cfg:    cfg,
		opts:   opts,
		runID:  runID,
		logger: logger.With(zap.String("run_id", runID)),
	}
}

// Start runs the pipeline with production collaborators.
func Start(ctx context.Context, cfg config.Interface) (*session.Session, error) {
	return New(cfg, Options{}).Start(ctx)
}

// RunID identifies this run in the logs.
func (d *Driver) RunID() string { return d.runID }

// Process is the driver process started by Start, or nil before launch. It
// stays reachable when connecting fails so callers can decide to kill it.
func (d *Driver) Process() *launcher.Process { return d.proc }

// Platform resolves the host profile. It fails before any network access.
func (d *Driver) Platform() (platform.Profile, error) {
	return platform.Resolve(d.opts.GOOS)
}

// Provisioner builds the provisioner for the configured working directory.
func (d *Driver) Provisioner() (*provision.Provisioner, error) {
	profile, err := d.Platform()
	if err != nil {
		return nil, err
	}
	return d.provisioner(profile)
}

func (d *Driver) provisioner(profile platform.Profile) (*provision.Provisioner, error) {
	fetcher := d.opts.Fetcher
	if fetcher == nil {
		clientCfg, err := network.ClientConfigFrom(d.cfg.Network(), d.logger)
		if err != nil {
			return nil, err
		}
		fetcher = network.NewClient(clientCfg)
	}

	drv := d.cfg.Driver()
	return provision.New(provision.Options{
		Dir:           drv.WorkDir,
		ReleaseURL:    drv.ReleaseURL,
		ExeName:       drv.ExeName,
		PatchedSuffix: drv.PatchedSuffix,
		Platform:      profile,
		Fetcher:       fetcher,
		Patcher:       patcher.New(d.opts.Rand, d.logger),
		Logger:        d.logger,
	})
}

// Provision ensures the patched binary exists.
func (d *Driver) Provision(ctx context.Context) (provision.Binary, error) {
	p, err := d.Provisioner()
	if err != nil {
		return provision.Binary{}, err
	}
	return p.Ensure(ctx)
}

// Start provisions, launches and connects. On a connection failure the
// driver process is left running and the error carries its port.
func (d *Driver) Start(ctx context.Context) (*session.Session, error) {
	profile, err := d.Platform()
	if err != nil {
		return nil, err
	}
	d.logger.Info("Starting driver pipeline", zap.String("platform", profile.Name))

	prov, err := d.provisioner(profile)
	if err != nil {
		return nil, err
	}
	bin, err := prov.Ensure(ctx)
	if err != nil {
		return nil, err
	}
	if !bin.Patched {
		// The patch write failed; launching below reports the missing file.
		d.logger.Warn("Patched executable is missing", zap.String("path", bin.PatchedPath()))
	}

	launchCfg := d.cfg.Launch()
	l, err := launcher.New(launcher.Options{
		Platform: profile,
		PortMin:  launchCfg.PortMin,
		PortMax:  launchCfg.PortMax,
		Rand:     d.opts.Rand,
		Stdout:   d.opts.Stdout,
		Stderr:   d.opts.Stderr,
		Logger:   d.logger,
	})
	if err != nil {
		return nil, err
	}
	proc, err := l.Launch(bin.Dir, bin.PatchedName)
	if err != nil {
		return nil, err
	}
	d.proc = proc

	connectCfg := d.cfg.Connect()
	connector := session.NewConnector(
		d.opts.Factory,
		session.RetryPolicy{MaxAttempts: connectCfg.MaxAttempts, Interval: connectCfg.RetryInterval},
		session.ProfileFrom(d.cfg.Capabilities()),
		d.logger,
	)
	wd, err := connector.Connect(ctx, proc.Port)
	if err != nil {
		return nil, fmt.Errorf("driver left running on port %d: %w", proc.Port, err)
	}

	s := &session.Session{WebDriver: wd, Port: proc.Port, Process: proc}
	d.logger.Info("Session ready", zap.String("session_id", s.ID()), zap.Int("port", s.Port))

	if connectCfg.DevToolsPersona {
		s.DevTools = d.attachPersona(ctx, s)
	}
	return s, nil
}

// attachPersona never fails the run.
func (d *Driver) attachPersona(ctx context.Context, s *session.Session) *session.DevTools {
	caps, err := s.Capabilities()
	if err != nil {
		d.logger.Warn("Could not read session capabilities; skipping DevTools persona", zap.Error(err))
		return nil
	}
	addr, err := session.DebuggerAddress(caps)
	if err != nil {
		d.logger.Warn("Skipping DevTools persona", zap.Error(err))
		return nil
	}

	c := d.cfg.Capabilities()
	dt, err := session.AttachPersona(ctx, addr, session.Persona{
		UserAgent: c.UserAgent,
		Timezone:  c.Timezone,
		Locale:    c.Locale,
	}, d.logger)
	if err != nil {
		d.logger.Warn("DevTools persona failed", zap.Error(err))
	}
	return dt
}
