package media

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config holds S3-compatible media storage configuration.
type Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	// PublicBaseURL is the URL prefix served to clients. Defaults to
	// path-style endpoint/bucket when empty.
	PublicBaseURL string
}

// Object identifies a stored asset: the opaque key used for deletion and
// the public URL handed to clients.
type Object struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Store uploads and deletes course media in S3-compatible object storage.
// A Store without credentials is disabled: uploads fail with a clear error
// and deletes of placeholder ids are no-ops.
type Store struct {
	cfg    Config
	client s3Client
}

func New(cfg Config) *Store {
	s := &Store{cfg: cfg}
	if cfg.Bucket != "" && cfg.AccessKey != "" && cfg.SecretKey != "" {
		s.client = newS3Client(cfg)
	}
	return s
}

func newS3Client(cfg Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

func (s *Store) Enabled() bool {
	return s.client != nil
}

func (s *Store) publicURL(key string) string {
	base := s.cfg.PublicBaseURL
	if base == "" {
		base = strings.TrimSuffix(s.cfg.Endpoint, "/") + "/" + s.cfg.Bucket
	}
	return strings.TrimSuffix(base, "/") + "/" + key
}

// Upload stores the body under a fresh opaque key inside folder and returns
// the stored object reference.
func (s *Store) Upload(ctx context.Context, folder, filename, contentType string, body io.Reader, size int64) (Object, error) {
	if s.client == nil {
		return Object{}, fmt.Errorf("media store not configured")
	}

	key := folder + "/" + uuid.NewString() + strings.ToLower(path.Ext(filename))
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return Object{}, fmt.Errorf("upload media: %w", err)
	}

	return Object{ID: key, URL: s.publicURL(key)}, nil
}

// Delete removes a stored object. Deleting the empty placeholder id is a
// no-op so callers can cascade without checking.
func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if s.client == nil {
		return fmt.Errorf("media store not configured")
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return fmt.Errorf("delete media %s: %w", id, err)
	}
	return nil
}
