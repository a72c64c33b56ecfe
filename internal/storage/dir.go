package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidName is returned for names that would escape the directory.
var ErrInvalidName = errors.New("invalid file name")

// Dir writes output files under a root directory. Writes are atomic: a
// reader never observes a partially written file.
type Dir struct {
	root string
}

// NewDir creates root if needed and returns a Dir writing into it.
func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", root, err)
	}
	return &Dir{root: root}, nil
}

// Path returns the location of name inside the directory.
func (d *Dir) Path(name string) string {
	return filepath.Join(d.root, name)
}

// Write copies data into name via a temp file and rename, replacing any
// existing file. It returns the number of bytes written.
func (d *Dir) Write(name string, data io.Reader) (int64, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return 0, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	tmp, err := os.CreateTemp(d.root, ".write-*")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	// Clean up the temp file on any error path.
	defer func() {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()

	n, err := io.Copy(tmp, data)
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("writing data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("closing temp file: %w", err)
	}

	dst := d.Path(name)
	if err := os.Rename(tmpPath, dst); err != nil {
		return 0, fmt.Errorf("renaming temp file to %s: %w", dst, err)
	}
	tmpPath = ""

	return n, nil
}

// Exists reports whether name is present in the directory.
func (d *Dir) Exists(name string) (bool, error) {
	_, err := os.Stat(d.Path(name))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("checking file %s: %w", name, err)
}
