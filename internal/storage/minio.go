package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOConfig holds the configuration for MinIO storage.
type MinIOConfig struct {
	Endpoint      string // host:port, no scheme
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	UseSSL        bool
	PublicBaseURL string        // Optional: serve objects from this prefix instead of presigning
	PresignExpiry time.Duration // Lifetime of presigned URLs; defaults to 72h
}

// MinIOStorage stores blobs in a MinIO bucket and keeps the render workspace on local disk.
type MinIOStorage struct {
	*LocalStorage
	client        *minio.Client
	bucket        string
	publicBaseURL string
	presignExpiry time.Duration
}

var _ BlobStore = (*MinIOStorage)(nil)

// NewMinIOStorage connects to MinIO and creates the bucket when it does not exist.
func NewMinIOStorage(ctx context.Context, tempDir string, cfg MinIOConfig) (*MinIOStorage, error) {
	local, err := NewLocalStorage(LocalConfig{TempDir: tempDir})
	if err != nil {
		return nil, err
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}

	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = 72 * time.Hour
	}

	return &MinIOStorage{
		LocalStorage:  local,
		client:        client,
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		presignExpiry: expiry,
	}, nil
}

// Put uploads data and returns either the public URL or a presigned GET URL.
func (s *MinIOStorage) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = ContentTypeFor(k)
	}

	_, err = s.client.PutObject(ctx, s.bucket, k, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload to MinIO: %w", err)
	}

	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + s.bucket + "/" + k, nil
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, k, s.presignExpiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", k, err)
	}
	return u.String(), nil
}

// Get downloads the object stored under key.
func (s *MinIOStorage) Get(ctx context.Context, key string) ([]byte, error) {
	k, err := cleanKey(key)
	if err != nil {
		return nil, err
	}

	obj, err := s.client.GetObject(ctx, s.bucket, k, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.mapErr(k, err)
	}
	defer func() { _ = obj.Close() }()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.mapErr(k, err)
	}
	return data, nil
}

// List returns the keys under prefix.
func (s *MinIOStorage) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list MinIO objects: %w", obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete removes the object stored under key.
func (s *MinIOStorage) Delete(ctx context.Context, key string) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, k, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete from MinIO: %w", err)
	}
	return nil
}

func (s *MinIOStorage) mapErr(key string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return fmt.Errorf("download from MinIO: %w", err)
}
