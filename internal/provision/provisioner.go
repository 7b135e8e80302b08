// Package provision makes sure a patched chromedriver binary exists in the
// working directory, downloading and patching it only when needed.
package provision

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/ghostdriver/internal/patcher"
	"github.com/xkilldash9x/ghostdriver/internal/platform"
)

const (
	// DefaultReleaseURL hosts LATEST_RELEASE and the versioned driver archives.
	DefaultReleaseURL = "https://chromedriver.storage.googleapis.com"
	// DefaultExeName is the base name of the driver inside the archive.
	DefaultExeName = "chromedriver"
	// DefaultPatchedSuffix marks the patched sibling of the driver.
	DefaultPatchedSuffix = "_PATCHED"

	latestReleasePath = "LATEST_RELEASE"
)

// State is a step of the provisioning state machine.
type State int

const (
	StateCheckPatched State = iota
	StateCheckRaw
	StateDownload
	StatePatch
	StateReady
)

func (s State) String() string {
	switch s {
	case StateCheckPatched:
		return "check_patched"
	case StateCheckRaw:
		return "check_raw"
	case StateDownload:
		return "download"
	case StatePatch:
		return "patch"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Fetcher retrieves the body of a URL. *network.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Binary locates the raw and patched driver files. Patched reflects whether
// the patched file exists on disk; the binary itself is never inspected.
type Binary struct {
	Dir         string
	RawName     string
	PatchedName string
	Patched     bool
	// Report is set when Ensure ran the patch step.
	Report *patcher.Report
}

// RawPath is the path of the unpatched driver.
func (b Binary) RawPath() string { return filepath.Join(b.Dir, b.RawName) }

// PatchedPath is the path of the patched driver.
func (b Binary) PatchedPath() string { return filepath.Join(b.Dir, b.PatchedName) }

// Options configures a Provisioner. Zero string fields take the defaults above.
type Options struct {
	Dir           string
	ReleaseURL    string
	ExeName       string
	PatchedSuffix string
	Platform      platform.Profile
	Fetcher       Fetcher
	Patcher       *patcher.Patcher
	Logger        *zap.Logger
}

// Provisioner drives a driver binary from absent to patched.
type Provisioner struct {
	dir        string
	releaseURL string
	binary     Binary
	profile    platform.Profile
	fetcher    Fetcher
	patcher    *patcher.Patcher
	logger     *zap.Logger
}

// New builds a Provisioner from opts.
func New(opts Options) (*Provisioner, error) {
	if opts.Fetcher == nil {
		return nil, errors.New("provision: a Fetcher is required")
	}
	if opts.Platform.ArchiveSuffix == "" {
		return nil, fmt.Errorf("provision: %w: empty platform profile", platform.ErrUnsupportedPlatform)
	}
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if opts.ReleaseURL == "" {
		opts.ReleaseURL = DefaultReleaseURL
	}
	if opts.ExeName == "" {
		opts.ExeName = DefaultExeName
	}
	if opts.PatchedSuffix == "" {
		opts.PatchedSuffix = DefaultPatchedSuffix
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Patcher == nil {
		opts.Patcher = patcher.New(nil, opts.Logger)
	}

	return &Provisioner{
		dir:        opts.Dir,
		releaseURL: strings.TrimRight(opts.ReleaseURL, "/"),
		binary: Binary{
			Dir:         opts.Dir,
			RawName:     opts.Platform.Executable(opts.ExeName),
			PatchedName: opts.Platform.Executable(opts.ExeName + opts.PatchedSuffix),
		},
		profile: opts.Platform,
		fetcher: opts.Fetcher,
		patcher: opts.Patcher,
		logger:  opts.Logger.Named("provision"),
	}, nil
}

// Binary reports the current on-disk state of the driver.
func (p *Provisioner) Binary() Binary {
	b := p.binary
	b.Patched = fileExists(b.PatchedPath())
	return b
}

// Ensure walks CheckPatched, CheckRaw, Download, Patch and Ready. When the
// patched file already exists it returns without any network or patch work.
// A failure to write the patched file is logged and does not fail Ensure;
// the returned Binary then reports whatever is on disk.
func (p *Provisioner) Ensure(ctx context.Context) (Binary, error) {
	var report *patcher.Report
	state := StateCheckPatched
	for {
		p.logger.Debug("Provisioning state", zap.Stringer("state", state))

		switch state {
		case StateCheckPatched:
			if fileExists(p.binary.PatchedPath()) {
				p.logger.Info("Detected patched chromedriver executable!", zap.String("path", p.binary.PatchedPath()))
				state = StateReady
			} else {
				state = StateCheckRaw
			}

		case StateCheckRaw:
			if fileExists(p.binary.RawPath()) {
				p.logger.Info("ChromeDriver already exists!", zap.String("path", p.binary.RawPath()))
				state = StatePatch
			} else {
				p.logger.Info("ChromeDriver does not exist! Fetching...")
				state = StateDownload
			}

		case StateDownload:
			if _, err := p.Download(ctx); err != nil {
				return p.Binary(), err
			}
			state = StatePatch

		case StatePatch:
			r, err := p.patcher.PatchFile(p.binary.RawPath(), p.binary.PatchedPath())
			var writeErr *patcher.PatchWriteError
			switch {
			case errors.As(err, &writeErr):
				p.logger.Error("Error when writing patch to file!", zap.Error(err))
			case err != nil:
				return p.Binary(), err
			}
			report = &r
			state = StateReady

		case StateReady:
			b := p.Binary()
			b.Report = report
			return b, nil
		}
	}
}

// LatestRelease fetches the release identifier from the version index.
func (p *Provisioner) LatestRelease(ctx context.Context) (string, error) {
	url := p.releaseURL + "/" + latestReleasePath
	body, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		return "", &DownloadError{URL: url, Err: err}
	}
	version := strings.TrimSpace(string(body))
	if version == "" {
		return "", &DownloadError{URL: url, Err: errors.New("empty release identifier")}
	}
	return version, nil
}

// ArchiveURL is the platform archive for version.
func (p *Provisioner) ArchiveURL(version string) string {
	return fmt.Sprintf("%s/%s/chromedriver_%s.zip", p.releaseURL, version, p.profile.ArchiveSuffix)
}

// Download resolves the latest release, fetches its archive and extracts it
// into the working directory. It returns the release identifier.
func (p *Provisioner) Download(ctx context.Context) (string, error) {
	version, err := p.LatestRelease(ctx)
	if err != nil {
		return "", err
	}

	url := p.ArchiveURL(version)
	p.logger.Info("Downloading chromedriver archive", zap.String("version", version), zap.String("url", url))

	archive, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		return version, &DownloadError{URL: url, Err: err}
	}

	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return version, &ExtractionError{Err: err}
	}
	files, err := Extract(archive, p.dir)
	if err != nil {
		return version, err
	}
	p.logger.Info("Extracted chromedriver archive", zap.Int("files", len(files)), zap.String("dir", p.dir))
	return version, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
