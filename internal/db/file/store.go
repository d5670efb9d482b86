// Package file implements db.Store on the local filesystem, one file per key.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kailas-cloud/patentscope/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Store keeps each key as a file under root. Writes go to a temp file and are renamed into place,
// so readers never observe a partial value.
type Store struct {
	root string
}

// NewStore creates a filesystem store rooted at dir.
func NewStore(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("root directory is required")
	}
	return &Store{root: filepath.Clean(dir)}, nil
}

// Root returns the root directory.
func (s *Store) Root() string { return s.root }

// Ping checks that the root directory exists and is a directory.
func (s *Store) Ping(_ context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	if !info.IsDir() {
		return &db.Error{Op: db.OpPing, Err: fmt.Errorf("%s is not a directory", s.root)}
	}
	return nil
}

// Close is a no-op.
func (s *Store) Close() {}

// WaitForReady creates the root directory if needed.
func (s *Store) WaitForReady(_ context.Context, _ time.Duration) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create storage root: %w", err)
	}
	return nil
}

// Get reads the file for key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, db.ErrKeyNotFound
		}
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	return data, nil
}

// Set atomically replaces the file for key.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // already renamed on success

	if _, err := tmp.Write(value); err != nil {
		tmp.Close() //nolint:errcheck,gosec // write error takes precedence
		return &db.Error{Op: db.OpSet, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}

// Del removes the file for key. Missing keys are not an error.
func (s *Store) Del(_ context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &db.Error{Op: db.OpDel, Err: err}
	}
	return nil
}

// Exists reports whether the file for key is present.
func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	path, err := s.path(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, &db.Error{Op: db.OpExists, Err: err}
	}
}

// path maps key to a file below root. Keys may use '/' for subdirectories but may not escape root.
func (s *Store) path(key string) (string, error) {
	if key == "" || filepath.IsAbs(key) {
		return "", fmt.Errorf("%w: %q", db.ErrInvalidKey, key)
	}
	rel := filepath.Clean(filepath.FromSlash(key))
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", db.ErrInvalidKey, key)
	}
	return filepath.Join(s.root, rel), nil
}
