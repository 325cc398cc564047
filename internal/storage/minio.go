package storage

import (
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	appErr "github.com/manasamancharla/deployly/pkg/errors"
)

// MinioStore is the S3-compatible ArtifactStore implementation used in
// production. The bucket is expected to be web-servable so the routing
// proxy can fetch objects over plain HTTP.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// MinioOptions carries what NewMinioStore needs from configuration.
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func NewMinioStore(opts MinioOptions) (*MinioStore, error) {
	if opts.Endpoint == "" {
		return nil, appErr.New(appErr.CodeInvalid, "minio endpoint not configured")
	}
	if opts.Bucket == "" {
		return nil, appErr.New(appErr.CodeInvalid, "minio bucket not configured")
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeUnavailable, "init minio client failed")
	}

	return &MinioStore{client: client, bucket: opts.Bucket}, nil
}

// EnsureBucket creates the artifact bucket if it does not exist yet.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return appErr.Wrap(err, appErr.CodeUnavailable, "check artifact bucket failed")
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return appErr.Wrap(err, appErr.CodeUnavailable, "create artifact bucket failed")
	}
	return nil
}

func (s *MinioStore) Put(ctx context.Context, key, contentType string, r io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return appErr.Wrap(err, appErr.CodePublishFailed, "put artifact failed").WithMeta("key", key)
	}
	return nil
}
