// Package upload stores chat attachments on a filesystem.
package upload

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
)

var (
	// ErrEmptyName is returned when an upload carries no usable file name.
	ErrEmptyName = errors.New("upload: empty file name")
	// ErrInvalidName is returned when a requested name is not a plain file in the upload dir.
	ErrInvalidName = errors.New("upload: invalid file name")
)

var whitespace = regexp.MustCompile(`\s+`)

// Store writes uploads into a single directory.
type Store struct {
	fs  afero.Fs
	dir string
	now func() time.Time
}

// NewStore returns a store rooted at dir on fs. The directory is created if needed.
func NewStore(fs afero.Fs, dir string) (*Store, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{fs: fs, dir: dir, now: time.Now}, nil
}

// NewOsStore is NewStore on the real filesystem.
func NewOsStore(dir string) (*Store, error) {
	return NewStore(afero.NewOsFs(), dir)
}

// Save copies r into "<unix millis>_<name>" with whitespace runs replaced by "_".
// It returns the stored path and the original base name.
func (s *Store) Save(name string, r io.Reader) (string, string, error) {
	original := filepath.Base(filepath.Clean("/" + name))
	if original == "/" || original == "." {
		return "", "", ErrEmptyName
	}
	stored := strconv.FormatInt(s.now().UnixMilli(), 10) + "_" + whitespace.ReplaceAllString(original, "_")
	target := path.Join(filepath.ToSlash(s.dir), stored)

	f, err := s.fs.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", "", fmt.Errorf("create %s: %w", stored, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = s.fs.Remove(target)
		return "", "", fmt.Errorf("write %s: %w", stored, err)
	}
	if err := f.Close(); err != nil {
		return "", "", fmt.Errorf("close %s: %w", stored, err)
	}
	return target, original, nil
}

// Open returns the stored file with the given base name for reading.
// Names carrying a directory component are rejected.
func (s *Store) Open(name string) (afero.File, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return nil, ErrInvalidName
	}
	f, err := s.fs.Open(path.Join(filepath.ToSlash(s.dir), name))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat %s: %w", name, err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("open %s: %w", name, os.ErrNotExist)
	}
	return f, nil
}

// Remove deletes a stored file. A missing file is not an error.
func (s *Store) Remove(storedPath string) error {
	if err := s.fs.Remove(storedPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", storedPath, err)
	}
	return nil
}

// Dir is the directory uploads are written to.
func (s *Store) Dir() string {
	return s.dir
}
