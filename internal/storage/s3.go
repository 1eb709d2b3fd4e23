// Package storage stores pattern images and PDFs in an S3-compatible bucket
// (MinIO, AWS S3, R2) and mints time-limited download links for paid files.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/tbourn/quilt-shop-backend/internal/config"
)

// ErrValidation is returned for empty keys or bodies.
var ErrValidation = errors.New("invalid storage request")

const defaultPresignTTL = 15 * time.Minute

// Object describes a stored file.
type Object struct {
	Key string
	URL string
}

// S3Store is a bucket-scoped object store.
type S3Store struct {
	client    *minio.Client
	bucket    string
	publicURL string
	ttl       time.Duration

	ensureOnce sync.Once
	ensureErr  error
}

// NewClient builds a MinIO client from cfg.
func NewClient(cfg config.StorageConfig) (*minio.Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return client, nil
}

// New returns a store over client. Public links are built from
// cfg.PublicURL when set, otherwise from the client endpoint.
func New(client *minio.Client, cfg config.StorageConfig) *S3Store {
	base := strings.TrimRight(cfg.PublicURL, "/")
	if base == "" && client != nil {
		base = strings.TrimRight(client.EndpointURL().String(), "/") + "/" + strings.TrimSpace(cfg.Bucket)
	}
	return &S3Store{
		client:    client,
		bucket:    strings.TrimSpace(cfg.Bucket),
		publicURL: base,
		ttl:       cfg.DownloadURLTTL,
	}
}

// EnsureBucket creates the bucket on first use.
func (s *S3Store) EnsureBucket(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("s3 client is nil")
	}
	if s.bucket == "" {
		return fmt.Errorf("s3 bucket is empty")
	}

	s.ensureOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.ensureErr = err
			return
		}
		if exists {
			return
		}
		s.ensureErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
	})

	if s.ensureErr != nil {
		return fmt.Errorf("ensure s3 bucket %q: %w", s.bucket, s.ensureErr)
	}
	return nil
}

// Put uploads body under a fresh key in folder and returns the key and its
// public URL. ext is the file extension including the leading dot.
func (s *S3Store) Put(ctx context.Context, folder, ext string, body io.Reader, size int64, contentType string) (*Object, error) {
	if s.client == nil {
		return nil, fmt.Errorf("s3 client is nil")
	}
	if body == nil || size <= 0 {
		return nil, ErrValidation
	}
	key := ObjectKey(folder, ext)
	_, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("put object to s3: %w", err)
	}
	return &Object{Key: key, URL: s.PublicURL(key)}, nil
}

// PresignGet returns a signed GET URL for key valid for the configured TTL.
func (s *S3Store) PresignGet(ctx context.Context, key string) (string, time.Time, error) {
	if s.client == nil {
		return "", time.Time{}, fmt.Errorf("s3 client is nil")
	}
	if key == "" {
		return "", time.Time{}, ErrValidation
	}
	ttl := s.ttl
	if ttl <= 0 {
		ttl = defaultPresignTTL
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("presign get object: %w", err)
	}
	return u.String(), time.Now().Add(ttl), nil
}

// PublicURL is the unsigned link for key.
func (s *S3Store) PublicURL(key string) string {
	return s.publicURL + "/" + strings.TrimLeft(key, "/")
}

// ObjectKey builds "<folder>/<uuid><ext>".
func ObjectKey(folder, ext string) string {
	folder = strings.Trim(folder, "/")
	if folder == "" {
		folder = "uploads"
	}
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return path.Join(folder, uuid.NewString()+ext)
}
