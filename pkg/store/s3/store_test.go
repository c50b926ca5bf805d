package s3

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittopad/pkg/store"
)

func TestKeys(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		username string
		filename string
		wantUser string
		wantKey  string
	}{
		{"no prefix", "", "alice", "notepad.txt", "alice/", "alice/notepad.txt"},
		{"with prefix", "dittopad/users/", "bob", "a.txt", "dittopad/users/bob/", "dittopad/users/bob/a.txt"},
		{"empty username", "p/", "", "x.txt", "p/", "p/x.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(nil, Config{Bucket: "b", KeyPrefix: tt.prefix})
			assert.Equal(t, tt.wantUser, s.userPrefix(tt.username))
			assert.Equal(t, tt.wantKey, s.objectKey(tt.username, tt.filename))
		})
	}
}

func TestEntryNames(t *testing.T) {
	objects := []types.Object{
		{Key: aws.String("users/alice/")},
		{Key: aws.String("users/alice/notes.txt")},
		{Key: aws.String("users/alice/notepad.txt")},
	}
	prefixes := []types.CommonPrefix{
		{Prefix: aws.String("users/alice/nested/")},
	}

	names := entryNames("users/alice/", objects, prefixes)
	assert.Equal(t, []string{"notes.txt", "notepad.txt", "nested"}, names)
}

func TestEntryNamesEmpty(t *testing.T) {
	names := entryNames("users/bob/", []types.Object{{Key: aws.String("users/bob/")}}, nil)
	assert.Empty(t, names)
}

func TestIsNotFoundError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"typed no such key", &types.NoSuchKey{}, true},
		{"typed not found", fmt.Errorf("wrapped: %w", &types.NotFound{}), true},
		{"api code", &smithy.GenericAPIError{Code: "NoSuchKey"}, true},
		{"api 404", &smithy.GenericAPIError{Code: "404"}, true},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, false},
		{"plain", errors.New("connection reset"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isNotFoundError(tt.err))
		})
	}
}

func TestValidationBeforeNetwork(t *testing.T) {
	// A nil client would panic if any request were attempted.
	s := New(nil, Config{Bucket: "b"})
	ctx := t.Context()

	assert.ErrorIs(t, s.WriteFile(ctx, "alice", "../x", nil), store.ErrInvalidName)
	_, err := s.ReadFile(ctx, "alice", "a/b")
	assert.ErrorIs(t, err, store.ErrInvalidName)
	assert.ErrorIs(t, s.EnsureDir(ctx, ".."), store.ErrInvalidName)
	assert.NoError(t, s.EnsureDir(ctx, ""), "root namespace needs no marker")

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.HealthCheck(ctx), store.ErrStoreClosed)
	_, err = s.ListDir(ctx, "alice")
	assert.ErrorIs(t, err, store.ErrStoreClosed)
}

func TestNewFromConfigRequiresBucket(t *testing.T) {
	_, err := NewFromConfig(t.Context(), Config{})
	assert.Error(t, err)
}

func TestType(t *testing.T) {
	assert.Equal(t, "s3", New(nil, Config{}).Type())
}
