// Package driver picks the blob store implementation named in configuration.
package driver

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/anttijankeri/object-image-server/internal/config"
	"github.com/anttijankeri/object-image-server/internal/storage"
	"github.com/anttijankeri/object-image-server/internal/storage/fileserver"
	"github.com/anttijankeri/object-image-server/internal/storage/objectstore"
)

const (
	FileServer = "fileserver"
	MinIO      = "minio"
)

func Open(ctx context.Context, cfg config.BlobConfig, log zerolog.Logger) (storage.Store, error) {
	switch cfg.Driver {
	case FileServer:
		return fileserver.New(cfg.FileServerURL, cfg.Timeout, log), nil
	case MinIO:
		store, err := objectstore.New(cfg)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			log.Warn().Err(err).Str("bucket", cfg.Bucket).Msg("ensure bucket failed")
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}
