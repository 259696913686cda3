package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/stashpipe/stashpipe/core"
)

// MinIOConfig wires an S3-compatible object store as the content archive.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinIO is a durable core.ContentArchive backed by an S3-compatible bucket.
// Objects are laid out as <entryID>/<name>.
type MinIO struct {
	client *minio.Client
	bucket string
}

// NewMinIO connects to the object store and ensures the bucket exists.
func NewMinIO(ctx context.Context, cfg MinIOConfig) (*MinIO, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("archive: minio endpoint is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("archive: connect minio: %w", err)
	}
	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "stashpipe-content"
	}
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("archive: check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("archive: create bucket: %w", err)
		}
	}
	return &MinIO{client: client, bucket: bucket}, nil
}

// Save uploads the payload and returns an s3-style reference.
func (a *MinIO) Save(ctx context.Context, entryID, name string, data []byte) (string, error) {
	key := fmt.Sprintf("%s/%s", entryID, name)
	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return "", fmt.Errorf("archive: upload %s: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", a.bucket, key), nil
}

// Get downloads a stored payload or returns core.ErrNotFound.
func (a *MinIO) Get(ctx context.Context, entryID, name string) ([]byte, error) {
	key := fmt.Sprintf("%s/%s", entryID, name)
	obj, err := a.client.GetObject(ctx, a.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("archive: download %s: %w", key, err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("archive: read %s: %w", key, err)
	}
	return data, nil
}
