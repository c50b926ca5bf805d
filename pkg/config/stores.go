package config

import (
	"context"
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"

	"github.com/marmos91/dittopad/pkg/store"
	"github.com/marmos91/dittopad/pkg/store/badger"
	"github.com/marmos91/dittopad/pkg/store/fs"
	"github.com/marmos91/dittopad/pkg/store/s3"
)

// Storage backend names accepted in storage.type.
const (
	StorageFilesystem = "filesystem"
	StorageMemory     = "memory"
	StorageS3         = "s3"
	StorageBadger     = "badger"
)

// Default locations relative to the working directory.
const (
	DefaultStorageRoot = "./users"
	DefaultBadgerPath  = "./dittopad-data"
)

// StorageConfig selects the backend holding user files. Only the section
// matching Type is used.
type StorageConfig struct {
	// Type is one of filesystem, memory, s3, badger
	// Default: filesystem
	Type string `mapstructure:"type" validate:"required,oneof=filesystem memory s3 badger" json:"type" yaml:"type"`

	Filesystem FilesystemStoreConfig `mapstructure:"filesystem" json:"filesystem" yaml:"filesystem"`
	S3         S3StoreConfig         `mapstructure:"s3" json:"s3" yaml:"s3"`

	// Badger holds the BadgerDB options: path, in_memory, sync_writes.
	Badger map[string]any `mapstructure:"badger" json:"badger,omitempty" yaml:"badger,omitempty"`
}

// FilesystemStoreConfig configures the directory-per-user backend.
type FilesystemStoreConfig struct {
	// Root holds one subdirectory per user
	// Default: ./users
	Root string `mapstructure:"root" json:"root" yaml:"root"`

	// CreateRoot creates Root on startup when missing
	// Default: true
	CreateRoot bool `mapstructure:"create_root" json:"create_root" yaml:"create_root"`

	// DirMode and FileMode are the permissions of created entries
	DirMode  uint32 `mapstructure:"dir_mode" json:"dir_mode" yaml:"dir_mode"`
	FileMode uint32 `mapstructure:"file_mode" json:"file_mode" yaml:"file_mode"`
}

// S3StoreConfig configures the object storage backend.
type S3StoreConfig struct {
	Bucket   string `mapstructure:"bucket" json:"bucket" yaml:"bucket"`
	Region   string `mapstructure:"region" json:"region" yaml:"region"`
	Endpoint string `mapstructure:"endpoint" json:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	// KeyPrefix is prepended to every object key
	// Default: users/
	KeyPrefix      string `mapstructure:"key_prefix" json:"key_prefix" yaml:"key_prefix"`
	ForcePathStyle bool   `mapstructure:"force_path_style" json:"force_path_style" yaml:"force_path_style"`

	// Static credentials. When empty the AWS default chain is used.
	AccessKeyID     string `mapstructure:"access_key_id" json:"access_key_id,omitempty" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" json:"secret_access_key,omitempty" yaml:"secret_access_key,omitempty"`
}

// CreateStore opens the backend selected by cfg.Type.
func CreateStore(ctx context.Context, cfg StorageConfig) (store.Store, error) {
	switch cfg.Type {
	case StorageFilesystem, "":
		return createFilesystemStore(cfg.Filesystem)
	case StorageMemory:
		return fs.NewMemory(), nil
	case StorageS3:
		return createS3Store(ctx, cfg.S3)
	case StorageBadger:
		return createBadgerStore(cfg.Badger)
	default:
		return nil, fmt.Errorf("unknown storage type: %q", cfg.Type)
	}
}

func createFilesystemStore(cfg FilesystemStoreConfig) (store.Store, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("filesystem storage requires root to be set")
	}

	st, err := fs.New(fs.Config{
		Root:       cfg.Root,
		CreateRoot: cfg.CreateRoot,
		DirMode:    os.FileMode(cfg.DirMode),
		FileMode:   os.FileMode(cfg.FileMode),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem store: %w", err)
	}
	return st, nil
}

func createS3Store(ctx context.Context, cfg S3StoreConfig) (store.Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 storage requires bucket to be set")
	}

	st, err := s3.NewFromConfig(ctx, s3.Config{
		Bucket:          cfg.Bucket,
		Region:          cfg.Region,
		Endpoint:        cfg.Endpoint,
		KeyPrefix:       cfg.KeyPrefix,
		ForcePathStyle:  cfg.ForcePathStyle,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 store: %w", err)
	}
	return st, nil
}

func createBadgerStore(options map[string]any) (store.Store, error) {
	var badgerCfg badger.Config
	if err := decodeBadgerConfig(options, &badgerCfg); err != nil {
		return nil, err
	}

	st, err := badger.New(badgerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create badger store: %w", err)
	}
	return st, nil
}

// decodeBadgerConfig accepts the loosely typed values viper produces,
// e.g. "true" from an environment variable.
func decodeBadgerConfig(options map[string]any, out *badger.Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(options); err != nil {
		return fmt.Errorf("invalid badger config: %w", err)
	}
	return nil
}
