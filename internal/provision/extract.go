// File: internal/provision/extract.go
package provision

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const defaultFileMode os.FileMode = 0o644

var errOutsideDir = errors.New("entry resolves outside the destination directory")

// Extract writes every entry of the zip archive in data below dir. Directory
// entries are created, parent directories are created as needed, and existing
// files are overwritten. It returns the paths written, in archive order.
func Extract(data []byte, dir string) ([]string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &ExtractionError{Err: err}
	}

	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, &ExtractionError{Err: err}
	}

	written := make([]string, 0, len(reader.File))
	for _, f := range reader.File {
		target, err := entryPath(root, f.Name)
		if err != nil {
			return written, &ExtractionError{Entry: f.Name, Err: err}
		}

		if strings.HasSuffix(f.Name, "/") {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return written, &ExtractionError{Entry: f.Name, Err: err}
			}
			continue
		}

		if err := extractFile(f, target); err != nil {
			return written, &ExtractionError{Entry: f.Name, Err: err}
		}
		written = append(written, target)
	}
	return written, nil
}

// entryPath joins name onto root and rejects anything escaping root.
func entryPath(root, name string) (string, error) {
	target := filepath.Join(root, filepath.FromSlash(name))
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", errOutsideDir
	}
	return target, nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = defaultFileMode
	}
	dst, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("copy: %w", err)
	}
	return dst.Close()
}
