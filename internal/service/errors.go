package service

import (
	"errors"
	"fmt"

	"github.com/anttijankeri/object-image-server/internal/validation"
)

var (
	ErrMissingFile       = errors.New("image file missing")
	ErrUnsupportedFormat = errors.New("only images (png/bmp/webp/jpg) allowed")
	ErrNotFound          = errors.New("not found")
)

// ValidationError is returned before any side effect took place.
type ValidationError struct {
	Issues []validation.Issue
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %d issue(s)", len(e.Issues))
}

type BlobOp string

const (
	BlobUpload BlobOp = "upload"
	BlobFetch  BlobOp = "fetch"
	BlobDelete BlobOp = "delete"
)

// BlobError wraps a failed blob store call.
type BlobError struct {
	Op  BlobOp
	Err error
}

func (e *BlobError) Error() string {
	return fmt.Sprintf("blob %s: %v", e.Op, e.Err)
}

func (e *BlobError) Unwrap() error { return e.Err }

// MetadataWriteError wraps a failed document store write.
type MetadataWriteError struct {
	Err error
}

func (e *MetadataWriteError) Error() string {
	return fmt.Sprintf("metadata write: %v", e.Err)
}

func (e *MetadataWriteError) Unwrap() error { return e.Err }

// LinkReconciliationFailure records why an image could not be linked to its
// object. It never reaches callers of CreateImage; the image is returned
// unlinked instead.
type LinkReconciliationFailure struct {
	ObjectID string
	ImageID  string
	Reason   string
}

func (e *LinkReconciliationFailure) Error() string {
	return fmt.Sprintf("link image %s to object %s: %s", e.ImageID, e.ObjectID, e.Reason)
}
