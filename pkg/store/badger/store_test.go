package badger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittopad/pkg/store"
	"github.com/marmos91/dittopad/pkg/store/storetest"
)

func newInMemory(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConformance(t *testing.T) {
	t.Run("InMemory", func(t *testing.T) {
		storetest.RunConformanceSuite(t, func(t *testing.T) store.Store {
			return newInMemory(t)
		})
	})

	t.Run("OnDisk", func(t *testing.T) {
		storetest.RunConformanceSuite(t, func(t *testing.T) store.Store {
			s, err := New(Config{Path: filepath.Join(t.TempDir(), "db")})
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		})
	})
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	ctx := t.Context()

	s, err := New(Config{Path: path, SyncWrites: true})
	require.NoError(t, err)
	require.NoError(t, s.EnsureDir(ctx, "alice"))
	require.NoError(t, s.WriteFile(ctx, "alice", "notes.txt", []byte("kept\n")))
	require.NoError(t, s.Close())

	s, err = New(Config{Path: path})
	require.NoError(t, err)
	defer s.Close()

	data, err := s.ReadFile(ctx, "alice", "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "kept\n", string(data))
}

func TestPrefixIsolation(t *testing.T) {
	s := newInMemory(t)
	ctx := t.Context()

	require.NoError(t, s.EnsureDir(ctx, "al"))
	require.NoError(t, s.EnsureDir(ctx, "alice"))
	require.NoError(t, s.WriteFile(ctx, "alice", "a.txt", []byte("1")))

	names, err := s.ListDir(ctx, "al")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestRootNamespaceListsUsers(t *testing.T) {
	s := newInMemory(t)
	ctx := t.Context()

	require.NoError(t, s.EnsureDir(ctx, "alice"))
	require.NoError(t, s.EnsureDir(ctx, ""))
	require.NoError(t, s.WriteFile(ctx, "", "notepad.txt", []byte("x")))

	names, err := s.ListDir(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "notepad.txt"}, names)
}

func TestRootNamespaceListsSharedNameOnce(t *testing.T) {
	s := newInMemory(t)
	ctx := t.Context()

	require.NoError(t, s.EnsureDir(ctx, "a"))
	require.NoError(t, s.EnsureDir(ctx, ""))
	require.NoError(t, s.WriteFile(ctx, "", "a", []byte("root file")))
	require.NoError(t, s.WriteFile(ctx, "", "b", []byte("other")))

	names, err := s.ListDir(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestListUnknownUser(t *testing.T) {
	s := newInMemory(t)
	_, err := s.ListDir(t.Context(), "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestNewRequiresPath(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestKeyLayout(t *testing.T) {
	assert.Equal(t, "dir:bob", string(dirKey("bob")))
	assert.Equal(t, "file:bob/", string(filePrefix("bob")))
	assert.Equal(t, "file:bob/notes.txt", string(fileKey("bob", "notes.txt")))
}
