// Package s3 stores notepad files as objects in an S3 bucket.
//
// A file lives at <key_prefix><username>/<filename>. EnsureDir writes a
// zero-byte marker object at <key_prefix><username>/ so that an empty
// namespace is visible to ListDir, the way the S3 console models folders.
// Each WriteFile is a single PutObject and therefore atomic.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/marmos91/dittopad/pkg/store"
)

// Config holds configuration for the S3 store.
type Config struct {
	// Bucket is the S3 bucket name. It must already exist.
	Bucket string

	// Region is the AWS region. Empty uses the SDK default chain.
	Region string

	// Endpoint overrides the S3 endpoint, for LocalStack or MinIO.
	Endpoint string

	// KeyPrefix is prepended to every key. Should end with "/" if set.
	KeyPrefix string

	// ForcePathStyle selects path-style addressing.
	ForcePathStyle bool

	// AccessKeyID and SecretAccessKey select static credentials. When
	// empty the default credential chain is used.
	AccessKeyID     string
	SecretAccessKey string
}

// Store implements store.Store on S3.
type Store struct {
	client    *s3.Client
	bucket    string
	keyPrefix string

	mu     sync.RWMutex
	closed bool
}

var _ store.Store = (*Store)(nil)

// New creates a Store from an existing client.
func New(client *s3.Client, cfg Config) *Store {
	return &Store{
		client:    client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
	}
}

// NewFromConfig builds an S3 client from cfg and returns a Store using it.
func NewFromConfig(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 store requires a bucket")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return New(client, cfg), nil
}

// userPrefix returns the key prefix of a user namespace. The empty
// username maps to the store root.
func (s *Store) userPrefix(username string) string {
	if username == "" {
		return s.keyPrefix
	}
	return s.keyPrefix + username + "/"
}

func (s *Store) objectKey(username, filename string) string {
	return s.userPrefix(username) + filename
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.ErrStoreClosed
	}
	return nil
}

// EnsureDir writes the namespace marker object.
func (s *Store) EnsureDir(ctx context.Context, username string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := store.ValidateUsername(username); err != nil {
		return err
	}
	if username == "" {
		return nil
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.userPrefix(username)),
		Body:   bytes.NewReader(nil),
	})
	if err != nil {
		return fmt.Errorf("s3 put directory marker: %w", err)
	}
	return nil
}

// WriteFile uploads contents with one PutObject.
func (s *Store) WriteFile(ctx context.Context, username, filename string, contents []byte) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := store.ValidateUsername(username); err != nil {
		return err
	}
	if err := store.ValidateFilename(filename); err != nil {
		return err
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(username, filename)),
		Body:        bytes.NewReader(contents),
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}

// ReadFile downloads a whole object.
func (s *Store) ReadFile(ctx context.Context, username, filename string) ([]byte, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := store.ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := store.ValidateFilename(filename); err != nil {
		return nil, err
	}

	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(username, filename)),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("%w: %s", store.ErrNotFound, filename)
		}
		return nil, fmt.Errorf("s3 get object: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3 object body: %w", err)
	}
	return data, nil
}

// ListDir lists one level under the user prefix. Nested prefixes are
// reported by their first path element.
func (s *Store) ListDir(ctx context.Context, username string) ([]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := store.ValidateUsername(username); err != nil {
		return nil, err
	}

	prefix := s.userPrefix(username)
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	var names []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list objects: %w", err)
		}
		names = append(names, entryNames(prefix, page.Contents, page.CommonPrefixes)...)
	}
	sort.Strings(names)
	return names, nil
}

// entryNames converts one ListObjectsV2 page into entry names relative to
// prefix, dropping the namespace marker itself.
func entryNames(prefix string, objects []types.Object, prefixes []types.CommonPrefix) []string {
	names := make([]string, 0, len(objects)+len(prefixes))
	for _, obj := range objects {
		name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	for _, cp := range prefixes {
		name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	return names
}

// HealthCheck performs a HeadBucket call.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("S3 health check failed: %w", err)
	}
	return nil
}

// Type returns "s3".
func (s *Store) Type() string { return "s3" }

// Close marks the store closed. The SDK client holds no resources that
// need releasing.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// isNotFoundError reports whether err means the object does not exist.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}

	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "404":
			return true
		}
	}
	return false
}
