package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore keeps blobs in an S3-compatible bucket. Downloads still go
// through the API so the bucket can stay private.
type MinioStore struct {
	client     *minio.Client
	bucketName string
	baseURL    string
}

func NewMinioStore(endpoint, accessKey, secretKey string, useSSL bool, bucket, baseURL string) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &MinioStore{client: client, bucketName: bucket, baseURL: baseURL}, nil
}

func (s *MinioStore) Put(ctx context.Context, filename, contentType string, data []byte) (Blob, error) {
	pathname := newPathname(filename)
	size := int64(len(data))

	_, err := s.client.PutObject(ctx, s.bucketName, pathname, bytes.NewReader(data), size, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: map[string]string{"filename": filename},
	})
	if err != nil {
		return Blob{}, fmt.Errorf("failed to put object: %w", err)
	}

	return Blob{
		URL:         PublicURL(s.baseURL, pathname),
		Pathname:    pathname,
		ContentType: contentType,
		Size:        size,
	}, nil
}

func (s *MinioStore) Get(ctx context.Context, pathname string) (io.ReadCloser, int64, error) {
	if !validPathname(pathname) {
		return nil, 0, ErrNotFound
	}
	obj, err := s.client.GetObject(ctx, s.bucketName, pathname, minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, err
	}
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, 0, ErrNotFound
		}
		return nil, 0, err
	}
	return obj, info.Size, nil
}

func (s *MinioStore) Delete(ctx context.Context, pathname string) error {
	return s.client.RemoveObject(ctx, s.bucketName, pathname, minio.RemoveObjectOptions{})
}
