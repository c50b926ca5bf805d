// Package badger stores notepad files in an embedded BadgerDB.
//
// Key layout:
//
//	dir:<username>              namespace marker, empty value
//	file:<username>/<filename>  whole file content
//
// Usernames never contain "/", so a file prefix cannot match another
// user's keys. Every write is one transaction.
package badger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/dittopad/internal/logger"
	"github.com/marmos91/dittopad/pkg/store"
)

const (
	dirKeyPrefix  = "dir:"
	fileKeyPrefix = "file:"
)

// Config holds configuration for the BadgerDB store.
type Config struct {
	// Path is the database directory. Required unless InMemory is set.
	Path string `mapstructure:"path"`

	// InMemory keeps the whole database in memory.
	InMemory bool `mapstructure:"in_memory"`

	// SyncWrites fsyncs every commit.
	SyncWrites bool `mapstructure:"sync_writes"`
}

// Store implements store.Store on BadgerDB.
type Store struct {
	db *badgerdb.DB

	mu     sync.RWMutex
	closed bool
}

var _ store.Store = (*Store)(nil)

// New opens the database described by cfg.
func New(cfg Config) (*Store, error) {
	if cfg.Path == "" && !cfg.InMemory {
		return nil, errors.New("badger store requires a path or in_memory")
	}

	opts := badgerdb.DefaultOptions(cfg.Path).
		WithLogger(badgerLogger{}).
		WithSyncWrites(cfg.SyncWrites)
	if cfg.InMemory {
		opts = opts.WithDir("").WithValueDir("").WithInMemory(true)
	}

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &Store{db: db}, nil
}

func dirKey(username string) []byte {
	return []byte(dirKeyPrefix + username)
}

func filePrefix(username string) []byte {
	return []byte(fileKeyPrefix + username + "/")
}

func fileKey(username, filename string) []byte {
	return append(filePrefix(username), filename...)
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.ErrStoreClosed
	}
	return nil
}

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

	return s.db.Update(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(dirKey(username))
		if err == nil {
			return nil
		}
		if !errors.Is(err, badgerdb.ErrKeyNotFound) {
			return err
		}
		return txn.Set(dirKey(username), nil)
	})
}

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

	value := append([]byte(nil), contents...)
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(fileKey(username, filename), value)
	})
	if err != nil {
		return fmt.Errorf("badger write %s: %w", filename, err)
	}
	return nil
}

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

	var data []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(fileKey(username, filename))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, filename)
	}
	if err != nil {
		return nil, fmt.Errorf("badger read %s: %w", filename, err)
	}
	return data, nil
}

// ListDir returns the user's file names, sorted. For the root namespace
// (empty username) other users' namespaces are listed too, matching the
// filesystem layout.
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

	var names []string
	err := s.db.View(func(txn *badgerdb.Txn) error {
		if username != "" {
			if _, err := txn.Get(dirKey(username)); err != nil {
				if errors.Is(err, badgerdb.ErrKeyNotFound) {
					return fmt.Errorf("%w: directory %s", store.ErrNotFound, username)
				}
				return err
			}
		}

		prefix := filePrefix(username)
		names = append(names, scanKeys(txn, prefix)...)

		if username == "" {
			seen := make(map[string]struct{}, len(names))
			for _, name := range names {
				seen[name] = struct{}{}
			}
			for _, user := range scanKeys(txn, []byte(dirKeyPrefix)) {
				if _, dup := seen[user]; user != "" && !dup {
					names = append(names, user)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// scanKeys returns the suffixes of every key under prefix.
func scanKeys(txn *badgerdb.Txn, prefix []byte) []string {
	opts := badgerdb.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false

	it := txn.NewIterator(opts)
	defer it.Close()

	var out []string
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		out = append(out, strings.TrimPrefix(string(it.Item().Key()), string(prefix)))
	}
	return out
}

// HealthCheck opens a read transaction.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.View(func(*badgerdb.Txn) error { return nil }); err != nil {
		return fmt.Errorf("healthcheck failed: %w", err)
	}
	return nil
}

func (s *Store) Type() string { return "badger" }

// Close closes the database. It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// badgerLogger routes BadgerDB's internal logging into the process logger.
// Badger is chatty at info level, so info is demoted to debug.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...any) {
	logger.Errorf("badger: "+strings.TrimSuffix(format, "\n"), args...)
}

func (badgerLogger) Warningf(format string, args ...any) {
	logger.Warnf("badger: "+strings.TrimSuffix(format, "\n"), args...)
}

func (badgerLogger) Infof(format string, args ...any) {
	logger.Debugf("badger: "+strings.TrimSuffix(format, "\n"), args...)
}

func (badgerLogger) Debugf(format string, args ...any) {
	logger.Debugf("badger: "+strings.TrimSuffix(format, "\n"), args...)
}
