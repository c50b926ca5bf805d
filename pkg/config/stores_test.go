package config

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateStore(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		cfg      StorageConfig
		wantType string
	}{
		{"filesystem", StorageConfig{
			Type:       StorageFilesystem,
			Filesystem: FilesystemStoreConfig{Root: filepath.Join(t.TempDir(), "users"), CreateRoot: true},
		}, "filesystem"},
		{"memory", StorageConfig{Type: StorageMemory}, "memory"},
		{"badger", StorageConfig{Type: StorageBadger, Badger: map[string]any{"in_memory": true}}, "badger"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := CreateStore(ctx, tt.cfg)
			require.NoError(t, err)
			t.Cleanup(func() { _ = st.Close() })

			assert.Equal(t, tt.wantType, st.Type())
			require.NoError(t, st.EnsureDir(ctx, "alice"))
			require.NoError(t, st.WriteFile(ctx, "alice", "a.txt", []byte("hi")))
			data, err := st.ReadFile(ctx, "alice", "a.txt")
			require.NoError(t, err)
			assert.Equal(t, "hi", string(data))
		})
	}
}

func TestCreateStoreErrors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		cfg  StorageConfig
		want string
	}{
		{"unknown", StorageConfig{Type: "tape"}, "unknown storage type"},
		{"filesystem without root", StorageConfig{Type: StorageFilesystem}, "requires root"},
		{"missing root not created", StorageConfig{
			Type:       StorageFilesystem,
			Filesystem: FilesystemStoreConfig{Root: filepath.Join(t.TempDir(), "absent")},
		}, "filesystem store"},
		{"s3 without bucket", StorageConfig{Type: StorageS3}, "requires bucket"},
		{"badger without path", StorageConfig{Type: StorageBadger}, "badger"},
		{"badger bad option", StorageConfig{Type: StorageBadger, Badger: map[string]any{"in_memory": "maybe"}}, "invalid badger config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := CreateStore(ctx, tt.cfg)
			assert.Nil(t, st)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestCreateStoreFromDefaults(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Storage.Filesystem.Root = filepath.Join(t.TempDir(), "users")

	st, err := CreateStore(context.Background(), cfg.Storage)
	require.NoError(t, err)
	defer func() { _ = st.Close() }()
	assert.NoError(t, st.HealthCheck(context.Background()))
}
