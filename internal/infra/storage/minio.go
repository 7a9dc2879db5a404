package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	domain "github.com/bryanwahyu/deepfake-detector/internal/domain/detection"
)

const defaultPresignExpiry = time.Hour

// MinioStore keeps object-reference previews in a bucket and hands out
// presigned GET URLs. Releasing removes the object.
type MinioStore struct {
	client     *minio.Client
	bucketName string
	region     string
	prefix     string
	expiry     time.Duration
}

// NewMinio buat koneksi MinIO
func NewMinio(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string, useSSL bool, prefix string, expiry time.Duration) (*MinioStore, error) {
	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, err
	}

	// pastikan bucket ada
	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, err
		}
	}

	if expiry <= 0 {
		expiry = defaultPresignExpiry
	}
	return &MinioStore{client: cli, bucketName: bucket, region: region, prefix: prefix, expiry: expiry}, nil
}

func (s *MinioStore) Acquire(ctx context.Context, file domain.SubmittedFile) (domain.Preview, error) {
	key := path.Join(s.prefix, uuid.New().String()+extFor(file.MIMEType))

	contentType := file.MIMEType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(file.Content), int64(len(file.Content)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return domain.Preview{}, fmt.Errorf("put preview object: %w", err)
	}

	params := url.Values{}
	if file.Name != "" {
		params.Set("response-content-disposition", fmt.Sprintf("inline; filename=%q", file.Name))
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucketName, key, s.expiry, params)
	if err != nil {
		// object without a URL is useless; do not leak it
		_ = s.client.RemoveObject(ctx, s.bucketName, key, minio.RemoveObjectOptions{})
		return domain.Preview{}, fmt.Errorf("presign preview object: %w", err)
	}

	return domain.Preview{Kind: domain.PreviewObjectRef, URI: u.String(), Key: key}, nil
}

func (s *MinioStore) Release(ctx context.Context, p domain.Preview) error {
	if p.Key == "" {
		return domain.ErrPreviewReleased
	}
	if err := s.client.RemoveObject(ctx, s.bucketName, p.Key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove preview object %s: %w", p.Key, err)
	}
	return nil
}

// Check implements the health checker.
func (s *MinioStore) Check(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bucket %s missing", s.bucketName)
	}
	return nil
}

func extFor(mimeType string) string {
	switch mimeType {
	case "audio/mpeg":
		return ".mp3"
	case "audio/wav":
		return ".wav"
	case "audio/ogg":
		return ".ogg"
	case "audio/mp4", "audio/x-m4a":
		return ".m4a"
	case "audio/flac":
		return ".flac"
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	return ""
}
