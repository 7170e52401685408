package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/anttijankeri/object-image-server/internal/middleware"
	"github.com/anttijankeri/object-image-server/internal/models"
	"github.com/anttijankeri/object-image-server/internal/service"
)

const imageField = "image"

// badRequestError marks a request the client got wrong before any service
// call was made.
type badRequestError struct {
	err error
}

func (e badRequestError) Error() string { return e.err.Error() }

func (e badRequestError) Unwrap() error { return e.err }

func (h HandlerSet) ListImages(c *gin.Context) {
	images, err := h.images.ListImages(c.Request.Context(), middleware.TenantFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, images)
}

func (h HandlerSet) GetImage(c *gin.Context) {
	image, err := h.images.GetImage(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, image)
}

func (h HandlerSet) CreateImage(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(h.cfg.Upload.MaxBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		h.fail(c, badRequestError{err})
		return
	}

	var desc models.ImageDescriptor
	if err := c.ShouldBindWith(&desc, binding.Form); err != nil {
		h.fail(c, badRequestError{err})
		return
	}

	payload, declared, err := readImageField(c.Request)
	if err != nil {
		h.fail(c, err)
		return
	}

	image, err := h.images.CreateImage(c.Request.Context(), service.CreateInput{
		Descriptor:   desc,
		Payload:      payload,
		DeclaredMIME: declared,
		Tenant:       middleware.TenantFrom(c),
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, image)
}

// readImageField returns the uploaded image and its declared content type.
// A missing field yields a nil payload.
func readImageField(req *http.Request) ([]byte, string, error) {
	if req.MultipartForm == nil || len(req.MultipartForm.File[imageField]) == 0 {
		return nil, "", nil
	}
	header := req.MultipartForm.File[imageField][0]

	file, err := header.Open()
	if err != nil {
		return nil, "", fmt.Errorf("open upload: %w", err)
	}
	defer closeQuietly(file)

	payload, err := io.ReadAll(file)
	if err != nil {
		return nil, "", fmt.Errorf("read upload: %w", err)
	}
	return payload, header.Header.Get("Content-Type"), nil
}

func (h HandlerSet) UpdateImage(c *gin.Context) {
	var patch models.ImagePatch
	if err := c.ShouldBindJSON(&patch); err != nil && !errors.Is(err, io.EOF) {
		h.fail(c, badRequestError{err})
		return
	}

	if err := h.images.UpdateImage(c.Request.Context(), c.Param("id"), patch); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) DeleteImage(c *gin.Context) {
	if err := h.images.DeleteImage(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) GetImageFile(c *gin.Context) {
	file, err := h.images.FetchFile(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	defer closeQuietly(file.Body)

	c.DataFromReader(http.StatusOK, -1, file.MIME, file.Body, map[string]string{
		"Content-Disposition": fmt.Sprintf("inline; filename=%q", file.FileName),
	})
}

func (h HandlerSet) DeleteImageFile(c *gin.Context) {
	id := c.Param("id")
	if err := h.images.DeleteFile(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": "file_deleted"})
}

// fail maps service errors onto HTTP responses. Anything unexpected is
// logged and reported as a bare 500.
func (h HandlerSet) fail(c *gin.Context, err error) {
	var (
		validationErr *service.ValidationError
		tooLarge      *http.MaxBytesError
		badRequest    badRequestError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "issues": validationErr.Issues})
	case errors.Is(err, service.ErrMissingFile):
		c.JSON(http.StatusBadRequest, gin.H{"error": "image_missing", "message": err.Error()})
	case errors.Is(err, service.ErrUnsupportedFormat):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported_format", "message": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.As(err, &tooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload_too_large"})
	case errors.As(err, &badRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
	default:
		h.log.Error().
			Err(err).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("tenant", middleware.TenantFrom(c)).
			Str("request_id", middleware.RequestIDFrom(c)).
			Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
	}
}
