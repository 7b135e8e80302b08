// File: internal/patcher/patcher.go
package patcher

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

// outputMode is the permission set for the written binary. The launcher sets
// it again before exec since the file may predate this run.
const outputMode os.FileMode = 0o755

// PatchWriteError reports that the patched binary could not be persisted.
// It is not fatal: an older patched file may still be usable.
type PatchWriteError struct {
	Path string
	Err  error
}

func (e *PatchWriteError) Error() string {
	return fmt.Sprintf("failed to write patched driver to '%s': %v", e.Path, e.Err)
}

func (e *PatchWriteError) Unwrap() error { return e.Err }

// Report summarizes one patch run.
type Report struct {
	Source  string `json:"source"`
	Output  string `json:"output"`
	Size    int    `json:"size"`
	Offsets []int  `json:"offsets"`
	Patched int    `json:"patched"`
	Written bool   `json:"written"`
}

// Patcher rewrites a driver binary on disk.
type Patcher struct {
	sig    Signature
	rng    Rand
	logger *zap.Logger
}

// New returns a Patcher for DriverSignature. A nil rng selects DefaultRand.
func New(rng Rand, logger *zap.Logger) *Patcher {
	if rng == nil {
		rng = DefaultRand
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Patcher{sig: DriverSignature, rng: rng, logger: logger.Named("patcher")}
}

// PatchFile reads src, rewrites every marker window and writes the result to
// dst. src is left untouched. A failed write is returned as *PatchWriteError
// alongside a Report whose Written field is false.
func (p *Patcher) PatchFile(src, dst string) (Report, error) {
	report := Report{Source: src, Output: dst}
	p.logger.Info("Starting ChromeDriver executable patch...", zap.String("source", src))

	original, err := os.ReadFile(src)
	if err != nil {
		return report, fmt.Errorf("failed to read driver binary '%s': %w", src, err)
	}
	report.Size = len(original)

	report.Offsets = p.sig.Scan(original)
	if len(report.Offsets) == 0 {
		p.logger.Info("No cdcs were found!")
	} else {
		p.logger.Info("Found cdcs!", zap.Int("count", len(report.Offsets)))
	}

	patched, count := p.sig.Patch(original, report.Offsets, p.rng)
	report.Patched = count
	p.logger.Info("Patched cdcs", zap.Int("patch_ct", count))

	p.logger.Debug("Starting to write to binary file...", zap.String("output", dst))
	if err := os.WriteFile(dst, patched, outputMode); err != nil {
		return report, &PatchWriteError{Path: dst, Err: err}
	}
	report.Written = true
	p.logger.Info("Successfully wrote patched executable", zap.String("output", dst))
	return report, nil
}
