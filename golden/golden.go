// Package golden compares test output, such as screenshots, against expected files.
package golden

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/afero"
)

// ErrMismatch is wrapped by the error that Compare returns when the output differs from the
// golden file.
var ErrMismatch = errors.New("output does not match golden file")

// ErrMissing is wrapped by the error that Compare returns when there is no golden file.
var ErrMissing = errors.New("golden file not found")

var textExtensions = map[string]bool{
	".txt":  true,
	".html": true,
	".json": true,
	".css":  true,
	".js":   true,
	".svg":  true,
}

// Store reads golden files from one directory and writes the artifacts of failed comparisons to
// another.
type Store struct {
	fs        afero.Fs
	goldenDir string
	outputDir string

	// Update makes Compare overwrite golden files with the actual output instead of comparing.
	Update bool
}

// New creates a Store.
func New(fs afero.Fs, goldenDir, outputDir string) *Store {
	return &Store{fs: fs, goldenDir: goldenDir, outputDir: outputDir}
}

// GoldenDir returns the directory that golden files are read from.
func (s *Store) GoldenDir() string { return s.goldenDir }

// OutputDir returns the directory that mismatch artifacts are written to.
func (s *Store) OutputDir() string { return s.outputDir }

// ClearOutput removes the output directory and everything in it.
func (s *Store) ClearOutput() error {
	if err := s.fs.RemoveAll(s.outputDir); err != nil {
		return fmt.Errorf("failed to clear golden output directory %s: %w", s.outputDir, err)
	}
	return nil
}

// Has returns true if there is a golden file called name, or if the Store is in update mode and
// Compare would create one.
func (s *Store) Has(name string) bool {
	if s.Update {
		return true
	}
	exists, err := afero.Exists(s.fs, filepath.Join(s.goldenDir, filepath.FromSlash(name)))
	return err == nil && exists
}

// Compare checks actual against the golden file called name. If they differ, or if there is
// no golden file, the actual output (and for a mismatch, the expected output and a diff) is
// written to the output directory and an error is returned.
func (s *Store) Compare(name string, actual []byte) error {
	goldenPath := filepath.Join(s.goldenDir, filepath.FromSlash(name))

	if s.Update {
		if err := s.write(goldenPath, actual); err != nil {
			return fmt.Errorf("failed to update golden file: %w", err)
		}
		return nil
	}

	expected, err := afero.ReadFile(s.fs, goldenPath)
	if err != nil {
		if os.IsNotExist(err) {
			actualPath := s.outputPath(name, "")
			if werr := s.write(actualPath, actual); werr != nil {
				return werr
			}
			return fmt.Errorf("%w: %s (actual output written to %s)", ErrMissing, goldenPath, actualPath)
		}
		return fmt.Errorf("failed to read golden file %s: %w", goldenPath, err)
	}

	if bytes.Equal(expected, actual) {
		return nil
	}

	actualPath := s.outputPath(name, "-actual")
	if err := s.write(actualPath, actual); err != nil {
		return err
	}
	if err := s.write(s.outputPath(name, "-expected"), expected); err != nil {
		return err
	}

	if !isText(name) {
		return fmt.Errorf("%w: %s (%d bytes expected, %d bytes actual; see %s)",
			ErrMismatch, name, len(expected), len(actual), actualPath)
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(expected)),
		B:        difflib.SplitLines(string(actual)),
		FromFile: "expected",
		ToFile:   "actual",
		Context:  3,
	})
	if err != nil {
		return err
	}
	diffPath := filepath.Join(s.outputDir, filepath.FromSlash(strings.TrimSuffix(name, path.Ext(name))+".diff"))
	if err := s.write(diffPath, []byte(diff)); err != nil {
		return err
	}
	return fmt.Errorf("%w: %s\n%s", ErrMismatch, name, diff)
}

// outputPath inserts a suffix before the extension of name, so "page.png" with "-actual"
// becomes "<output>/page-actual.png".
func (s *Store) outputPath(name, suffix string) string {
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return filepath.Join(s.outputDir, filepath.FromSlash(base+suffix+ext))
}

func (s *Store) write(filePath string, data []byte) error {
	if err := s.fs.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", filePath, err)
	}
	if err := afero.WriteFile(s.fs, filePath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filePath, err)
	}
	return nil
}

func isText(name string) bool {
	return textExtensions[strings.ToLower(path.Ext(name))]
}
