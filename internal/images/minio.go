package images

import (
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioConfig struct {
	Endpoint string
	User     string
	Password string
	Bucket   string
	UseSSL   bool
}

type MinioStore struct {
	Client *minio.Client
	Bucket string
	// BaseURL is the public address objects are served from, without bucket.
	BaseURL string
}

func NewMinioStore(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.User, cfg.Password, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	if err := EnsureBucket(ctx, client, cfg.Bucket); err != nil {
		return nil, fmt.Errorf("minio bucket %s: %w", cfg.Bucket, err)
	}

	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return &MinioStore{Client: client, Bucket: cfg.Bucket, BaseURL: scheme + "://" + cfg.Endpoint}, nil
}

func EnsureBucket(ctx context.Context, client *minio.Client, bucketName string) error {
	exists, err := client.BucketExists(ctx, bucketName)
	if err != nil {
		return err
	}

	if !exists {
		return client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{})
	}

	return nil
}

func (s *MinioStore) Save(ctx context.Context, up Upload) (string, error) {
	if !Allowed(up.ContentType) {
		return "", ErrNotImage
	}

	name := objectName(up)
	size := up.Size
	if size <= 0 {
		size = -1
	}
	if _, err := s.Client.PutObject(ctx, s.Bucket, name, up.Body, size, minio.PutObjectOptions{
		ContentType: strings.ToLower(up.ContentType),
	}); err != nil {
		return "", fmt.Errorf("put object %s: %w", name, err)
	}
	return s.objectURL(name), nil
}

func (s *MinioStore) Delete(ctx context.Context, url string) error {
	prefix := s.objectURL("")
	if !strings.HasPrefix(url, prefix) {
		return nil
	}
	name := strings.TrimPrefix(url, prefix)
	if err := s.Client.RemoveObject(ctx, s.Bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", name, err)
	}
	return nil
}

func (s *MinioStore) objectURL(name string) string {
	return strings.TrimRight(s.BaseURL, "/") + "/" + s.Bucket + "/" + name
}
