// Package objectstore keeps image binaries in a MinIO/S3 bucket, one prefix
// per tenant folder.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/anttijankeri/object-image-server/internal/config"
	"github.com/anttijankeri/object-image-server/internal/ids"
	"github.com/anttijankeri/object-image-server/internal/storage"
)

type Store struct {
	client *minio.Client
	cfg    config.BlobConfig
}

var _ storage.Store = (*Store)(nil)

func New(cfg config.BlobConfig) (*Store, error) {
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL

	if strings.HasPrefix(endpoint, "http") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	return &Store{
		client: client,
		cfg:    cfg,
	}, nil
}

func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", s.cfg.Bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.cfg.Bucket, err)
		}
	}
	return nil
}

func (s *Store) Upload(ctx context.Context, req storage.UploadRequest) (storage.UploadResult, error) {
	key := objectKey(req.Tenant, ids.New()+req.Format)

	size := req.Size
	if size <= 0 {
		size = -1
	}

	_, err := s.client.PutObject(ctx, s.cfg.Bucket, key, req.Data, size, minio.PutObjectOptions{
		ContentType: req.MIME,
	})
	if err != nil {
		return storage.UploadResult{}, fmt.Errorf("put object: %w", err)
	}

	return storage.UploadResult{FilePath: key}, nil
}

func (s *Store) Fetch(ctx context.Context, tenant, fileName, mime string) (io.ReadCloser, error) {
	key := objectKey(tenant, fileName)

	// GetObject is lazy; Stat surfaces a missing key before the body is handed out.
	object, err := s.client.GetObject(ctx, s.cfg.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object: %w", translate(err))
	}
	if _, err := object.Stat(); err != nil {
		object.Close()
		return nil, fmt.Errorf("stat object: %w", translate(err))
	}
	return object, nil
}

func (s *Store) Remove(ctx context.Context, tenant, fileName string) error {
	key := objectKey(tenant, fileName)

	if _, err := s.client.StatObject(ctx, s.cfg.Bucket, key, minio.StatObjectOptions{}); err != nil {
		return fmt.Errorf("stat object: %w", translate(err))
	}
	if err := s.client.RemoveObject(ctx, s.cfg.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object: %w", translate(err))
	}
	return nil
}

func objectKey(tenant, fileName string) string {
	return path.Join(tenant, path.Base(fileName))
}

func translate(err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == 404 {
		return &storage.StatusError{
			Op:         "object store",
			StatusCode: 404,
			Status:     "404 " + resp.Code,
		}
	}
	return err
}
