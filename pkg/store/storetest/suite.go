// Package storetest is a conformance suite for store.Store implementations.
//
// Backends run it from their own tests:
//
//	func TestConformance(t *testing.T) {
//		storetest.RunConformanceSuite(t, func(t *testing.T) store.Store {
//			return fs.NewMemory()
//		})
//	}
package storetest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittopad/pkg/store"
)

// StoreFactory creates a fresh, empty Store for each test. It can use
// t.TempDir() and t.Cleanup() for setup and teardown.
type StoreFactory func(t *testing.T) store.Store

// RunConformanceSuite runs every conformance test against factory.
func RunConformanceSuite(t *testing.T, factory StoreFactory) {
	t.Helper()

	t.Run("EnsureDir", func(t *testing.T) { runEnsureDirTests(t, factory) })
	t.Run("ReadWrite", func(t *testing.T) { runReadWriteTests(t, factory) })
	t.Run("ListDir", func(t *testing.T) { runListDirTests(t, factory) })
	t.Run("Names", func(t *testing.T) { runNameTests(t, factory) })
	t.Run("Lifecycle", func(t *testing.T) { runLifecycleTests(t, factory) })
}

func runEnsureDirTests(t *testing.T, factory StoreFactory) {
	t.Run("CreatesEmptyNamespace", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()

		require.NoError(t, s.EnsureDir(ctx, "alice"))
		names, err := s.ListDir(ctx, "alice")
		require.NoError(t, err)
		assert.Empty(t, names)
	})

	t.Run("Idempotent", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()

		require.NoError(t, s.EnsureDir(ctx, "alice"))
		require.NoError(t, s.WriteFile(ctx, "alice", "keep.txt", []byte("x")))
		require.NoError(t, s.EnsureDir(ctx, "alice"))

		data, err := s.ReadFile(ctx, "alice", "keep.txt")
		require.NoError(t, err)
		assert.Equal(t, "x", string(data))
	})
}

func runReadWriteTests(t *testing.T, factory StoreFactory) {
	t.Run("RoundTrip", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()
		require.NoError(t, s.EnsureDir(ctx, "bob"))

		require.NoError(t, s.WriteFile(ctx, "bob", "notes.txt", []byte("a\nb\n")))
		data, err := s.ReadFile(ctx, "bob", "notes.txt")
		require.NoError(t, err)
		assert.Equal(t, "a\nb\n", string(data))
	})

	t.Run("OverwriteReplacesWholeFile", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()
		require.NoError(t, s.EnsureDir(ctx, "bob"))

		require.NoError(t, s.WriteFile(ctx, "bob", "f.txt", []byte("a much longer first version\n")))
		require.NoError(t, s.WriteFile(ctx, "bob", "f.txt", []byte("short\n")))

		data, err := s.ReadFile(ctx, "bob", "f.txt")
		require.NoError(t, err)
		assert.Equal(t, "short\n", string(data))
	})

	t.Run("EmptyContent", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()
		require.NoError(t, s.EnsureDir(ctx, "bob"))

		require.NoError(t, s.WriteFile(ctx, "bob", store.DefaultFilename, nil))
		data, err := s.ReadFile(ctx, "bob", store.DefaultFilename)
		require.NoError(t, err)
		assert.Empty(t, data)
	})

	t.Run("MissingFile", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()
		require.NoError(t, s.EnsureDir(ctx, "bob"))

		_, err := s.ReadFile(ctx, "bob", "missing.txt")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("UsersAreIsolated", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()
		require.NoError(t, s.EnsureDir(ctx, "alice"))
		require.NoError(t, s.EnsureDir(ctx, "bob"))

		require.NoError(t, s.WriteFile(ctx, "alice", "secret.txt", []byte("alice only")))

		_, err := s.ReadFile(ctx, "bob", "secret.txt")
		assert.ErrorIs(t, err, store.ErrNotFound)

		names, err := s.ListDir(ctx, "bob")
		require.NoError(t, err)
		assert.Empty(t, names)
	})

	t.Run("BinarySafe", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()
		require.NoError(t, s.EnsureDir(ctx, "carol"))

		payload := []byte{0x00, 0xff, 'h', 'i', 0x1b, '\n'}
		require.NoError(t, s.WriteFile(ctx, "carol", "raw.bin", payload))
		data, err := s.ReadFile(ctx, "carol", "raw.bin")
		require.NoError(t, err)
		assert.Equal(t, payload, data)
	})
}

func runListDirTests(t *testing.T, factory StoreFactory) {
	t.Run("ListsSavedFiles", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()
		require.NoError(t, s.EnsureDir(ctx, "dave"))

		require.NoError(t, s.WriteFile(ctx, "dave", "x.txt", []byte("1")))
		require.NoError(t, s.WriteFile(ctx, "dave", "y.txt", []byte("2")))

		names, err := s.ListDir(ctx, "dave")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"x.txt", "y.txt"}, names)
	})

	t.Run("OverwriteDoesNotDuplicate", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()
		require.NoError(t, s.EnsureDir(ctx, "dave"))

		for i := 0; i < 3; i++ {
			require.NoError(t, s.WriteFile(ctx, "dave", "same.txt", []byte{byte('0' + i)}))
		}

		names, err := s.ListDir(ctx, "dave")
		require.NoError(t, err)
		assert.Equal(t, []string{"same.txt"}, names)
	})
}

func runNameTests(t *testing.T, factory StoreFactory) {
	bad := []string{"", ".", "..", "../escape.txt", "sub/file.txt", `sub\file.txt`, "nul\x00.txt"}

	for _, name := range bad {
		t.Run("Reject"+sanitize(name), func(t *testing.T) {
			s := factory(t)
			ctx := t.Context()
			require.NoError(t, s.EnsureDir(ctx, "erin"))

			assert.ErrorIs(t, s.WriteFile(ctx, "erin", name, []byte("x")), store.ErrInvalidName)
			_, err := s.ReadFile(ctx, "erin", name)
			assert.ErrorIs(t, err, store.ErrInvalidName)
		})
	}

	t.Run("RejectTraversalUsername", func(t *testing.T) {
		s := factory(t)
		assert.ErrorIs(t, s.EnsureDir(t.Context(), ".."), store.ErrInvalidName)
		assert.ErrorIs(t, s.EnsureDir(t.Context(), "a/b"), store.ErrInvalidName)
	})

	t.Run("SpacesAndUnicode", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()
		require.NoError(t, s.EnsureDir(ctx, "zoë"))

		require.NoError(t, s.WriteFile(ctx, "zoë", "my notes ✓.txt", []byte("ok")))
		data, err := s.ReadFile(ctx, "zoë", "my notes ✓.txt")
		require.NoError(t, err)
		assert.Equal(t, "ok", string(data))
	})
}

func runLifecycleTests(t *testing.T, factory StoreFactory) {
	t.Run("HealthCheck", func(t *testing.T) {
		s := factory(t)
		assert.NoError(t, s.HealthCheck(t.Context()))
		assert.NotEmpty(t, s.Type())
	})

	t.Run("ClosedStoreRejectsCalls", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()
		require.NoError(t, s.EnsureDir(ctx, "frank"))
		require.NoError(t, s.Close())

		assert.ErrorIs(t, s.EnsureDir(ctx, "frank"), store.ErrStoreClosed)
		assert.ErrorIs(t, s.WriteFile(ctx, "frank", "a.txt", nil), store.ErrStoreClosed)
		_, err := s.ReadFile(ctx, "frank", "a.txt")
		assert.ErrorIs(t, err, store.ErrStoreClosed)
		_, err = s.ListDir(ctx, "frank")
		assert.ErrorIs(t, err, store.ErrStoreClosed)
		assert.ErrorIs(t, s.HealthCheck(ctx), store.ErrStoreClosed)
	})

	t.Run("CloseIsIdempotent", func(t *testing.T) {
		s := factory(t)
		require.NoError(t, s.Close())
		assert.NoError(t, s.Close())
	})
}

func sanitize(name string) string {
	switch name {
	case "":
		return "Empty"
	case ".":
		return "Dot"
	case "..":
		return "DotDot"
	}
	out := make([]rune, 0, len(name))
	for _, r := range name {
		if r == '/' || r == '\\' || r == 0 || r == '.' {
			out = append(out, '_')
			continue
		}
		out = append(out, r)
	}
	return "_" + string(out)
}
