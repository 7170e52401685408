package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
)

var ErrObjectNotFound = errors.New("object not found")

type UploadRequest struct {
	Data   io.Reader
	Size   int64
	Format string // extension with leading dot, e.g. ".png"
	MIME   string
	Tenant string
}

type UploadResult struct {
	FilePath string `json:"filePath"`
}

// Store is a binary store addressed by tenant folder and file name.
// Implementations make a single request per call and never retry.
type Store interface {
	Upload(ctx context.Context, req UploadRequest) (UploadResult, error)
	Fetch(ctx context.Context, tenant, fileName, mime string) (io.ReadCloser, error)
	Remove(ctx context.Context, tenant, fileName string) error
}

// StatusError reports a non-success answer from the remote store.
type StatusError struct {
	Op         string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: remote store answered %s", e.Op, e.Status)
}

// Is lets errors.Is(err, ErrObjectNotFound) match 404 answers.
func (e *StatusError) Is(target error) bool {
	return target == ErrObjectNotFound && e.StatusCode == 404
}

// FileName is the last element of a file path returned by Upload.
func FileName(filePath string) string {
	return path.Base(filePath)
}
