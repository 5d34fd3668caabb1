package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/errors"
)

// MinIOStore keeps the snapshot as one object in an S3-compatible bucket.
type MinIOStore struct {
	client *minio.Client
	bucket string
	key    string
}

// NewMinIOStore connects to cfg.Endpoint and creates the bucket if needed.
// The object key is cfg.Prefix joined with the base name of name.
func NewMinIOStore(ctx context.Context, cfg config.MinIOConfig, name string) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("creating bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &MinIOStore{
		client: client,
		bucket: cfg.Bucket,
		key:    path.Join(cfg.Prefix, path.Base(name)),
	}, nil
}

func (s *MinIOStore) Location() string {
	return "s3://" + s.bucket + "/" + s.key
}

func (s *MinIOStore) Save(ctx context.Context, blob []byte) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, s.key, bytes.NewReader(blob), int64(len(blob)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return "", fmt.Errorf("putting %s: %w", s.Location(), err)
	}
	return s.Location(), nil
}

func (s *MinIOStore) Load(ctx context.Context) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.mapErr(err)
	}
	defer obj.Close()
	blob, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.mapErr(err)
	}
	return blob, nil
}

func (s *MinIOStore) mapErr(err error) error {
	code := minio.ToErrorResponse(err).Code
	if code == "NoSuchKey" || code == "NotFound" {
		return fmt.Errorf("%w: %s", apperrors.ErrSnapshotNotFound, s.Location())
	}
	return fmt.Errorf("getting %s: %w", s.Location(), err)
}
