// Package fs provides the filesystem-backed store.
//
// Layout on disk is <root>/<username>/<filename>, defaulting to ./users.
// All access goes through an afero.Fs confined to the root with
// afero.BasePathFs, so a hostile name cannot reach outside it.
package fs

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/marmos91/dittopad/pkg/store"
)

// tempSuffix names in-flight writes. ListDir shows every entry; only the
// owning session writes to a namespace, and it never lists mid-save.
const tempSuffix = ".tmp"

// Config holds configuration for the filesystem store.
type Config struct {
	// Root is the directory holding one subdirectory per user.
	Root string

	// CreateRoot creates Root if it does not exist.
	CreateRoot bool

	// DirMode is the permission mode for created directories. Default 0755.
	DirMode os.FileMode

	// FileMode is the permission mode for written files. Default 0644.
	FileMode os.FileMode
}

// DefaultConfig returns a Config rooted at root.
func DefaultConfig(root string) Config {
	return Config{
		Root:       root,
		CreateRoot: true,
		DirMode:    0755,
		FileMode:   0644,
	}
}

// Store implements store.Store on an afero filesystem.
type Store struct {
	fs       afero.Fs
	dirMode  os.FileMode
	fileMode os.FileMode
	label    string

	mu     sync.RWMutex
	closed bool
}

var _ store.Store = (*Store)(nil)

// New creates a Store on the host filesystem.
func New(cfg Config) (*Store, error) {
	if cfg.Root == "" {
		return nil, errors.New("filesystem store requires a root directory")
	}
	applyDefaults(&cfg)

	if cfg.CreateRoot {
		if err := os.MkdirAll(cfg.Root, cfg.DirMode); err != nil {
			return nil, fmt.Errorf("create store root: %w", err)
		}
	}
	info, err := os.Stat(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("stat store root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("store root %q is not a directory", cfg.Root)
	}

	abs, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve store root: %w", err)
	}

	return NewWithFs(afero.NewBasePathFs(afero.NewOsFs(), abs), cfg), nil
}

// NewMemory creates a Store backed by afero.MemMapFs. Nothing is persisted.
func NewMemory() *Store {
	s := NewWithFs(afero.NewMemMapFs(), DefaultConfig("/"))
	s.label = "memory"
	return s
}

// NewWithFs creates a Store on an arbitrary afero.Fs, treating its root as
// the store root. Tests use it to inject read-only or failing filesystems.
func NewWithFs(fsys afero.Fs, cfg Config) *Store {
	applyDefaults(&cfg)
	return &Store{
		fs:       fsys,
		dirMode:  cfg.DirMode,
		fileMode: cfg.FileMode,
		label:    "filesystem",
	}
}

func applyDefaults(cfg *Config) {
	if cfg.DirMode == 0 {
		cfg.DirMode = 0755
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = 0644
	}
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.ErrStoreClosed
	}
	return nil
}

func userDir(username string) string {
	return string(filepath.Separator) + username
}

// EnsureDir creates the user's directory and any missing parents.
func (s *Store) EnsureDir(ctx context.Context, username string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := store.ValidateUsername(username); err != nil {
		return err
	}

	dir := userDir(username)
	if info, err := s.fs.Stat(dir); err == nil && info.IsDir() {
		return nil
	}
	if err := s.fs.MkdirAll(dir, s.dirMode); err != nil {
		return fmt.Errorf("create user directory: %w", err)
	}
	return nil
}

// WriteFile writes contents to a temp file in the user's directory and
// renames it over the target.
func (s *Store) WriteFile(ctx context.Context, username, filename string, contents []byte) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := store.ValidateUsername(username); err != nil {
		return err
	}
	if err := store.ValidateFilename(filename); err != nil {
		return err
	}

	dir := userDir(username)
	target := filepath.Join(dir, filename)
	tmp := filepath.Join(dir, "."+uuid.NewString()+tempSuffix)

	if err := afero.WriteFile(s.fs, tmp, contents, s.fileMode); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("write %s: %w", filename, err)
	}
	if err := s.fs.Rename(tmp, target); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("rename %s: %w", filename, err)
	}
	return nil
}

// ReadFile returns the content of a user's file.
func (s *Store) ReadFile(ctx context.Context, username, filename string) ([]byte, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := store.ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := store.ValidateFilename(filename); err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(s.fs, filepath.Join(userDir(username), filename))
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", store.ErrNotFound, filename)
		}
		return nil, err
	}
	return data, nil
}

// ListDir returns the names in the user's directory, sorted.
func (s *Store) ListDir(ctx context.Context, username string) ([]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := store.ValidateUsername(username); err != nil {
		return nil, err
	}

	infos, err := afero.ReadDir(s.fs, userDir(username))
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	sort.Strings(names)
	return names, nil
}

// HealthCheck stats the store root.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.fs.Stat(string(filepath.Separator)); err != nil {
		return fmt.Errorf("filesystem store health check: %w", err)
	}
	return nil
}

// Type returns "filesystem", or "memory" for stores made by NewMemory.
func (s *Store) Type() string { return s.label }

// Close marks the store closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
