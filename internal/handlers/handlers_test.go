package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/anttijankeri/object-image-server/internal/config"
	"github.com/anttijankeri/object-image-server/internal/models"
	"github.com/anttijankeri/object-image-server/internal/service"
	"github.com/anttijankeri/object-image-server/internal/validation"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeImageOps struct {
	created    service.CreateInput
	createErr  error
	patched    models.ImagePatch
	patchErr   error
	deleteErr  error
	fileErr    error
	image      models.Image
	listTenant string
}

func (f *fakeImageOps) CreateImage(_ context.Context, in service.CreateInput) (models.Image, error) {
	f.created = in
	if f.createErr != nil {
		return models.Image{}, f.createErr
	}
	return models.Image{
		ID:         bson.NewObjectID(),
		Tenant:     in.Tenant,
		Name:       in.Descriptor.Name,
		FileFormat: ".png",
		FilePath:   in.Tenant + "/abc.png",
	}, nil
}

func (f *fakeImageOps) GetImage(_ context.Context, id string) (models.Image, error) {
	if id != f.image.ID.Hex() {
		return models.Image{}, service.ErrNotFound
	}
	return f.image, nil
}

func (f *fakeImageOps) ListImages(_ context.Context, tenant string) ([]models.Image, error) {
	f.listTenant = tenant
	return []models.Image{f.image}, nil
}

func (f *fakeImageOps) UpdateImage(_ context.Context, _ string, patch models.ImagePatch) error {
	f.patched = patch
	return f.patchErr
}

func (f *fakeImageOps) DeleteImage(_ context.Context, _ string) error {
	return f.deleteErr
}

func (f *fakeImageOps) FetchFile(_ context.Context, _ string) (service.FileContent, error) {
	if f.fileErr != nil {
		return service.FileContent{}, f.fileErr
	}
	return service.FileContent{
		Body:     io.NopCloser(strings.NewReader("binary")),
		MIME:     "image/png",
		FileName: "abc.png",
	}, nil
}

func (f *fakeImageOps) DeleteFile(_ context.Context, _ string) error {
	return f.fileErr
}

func newTestRouter(ops ImageOperations, dbErr error) *gin.Engine {
	cfg := &config.AppConfig{
		Environment: "test",
		Security:    config.SecurityConfig{DefaultTenant: "tenant-a"},
		Upload:      config.UploadConfig{MaxBytes: 1 << 20},
	}
	h := HandlerSet{
		log:      zerolog.Nop(),
		cfg:      cfg,
		images:   ops,
		database: func(context.Context) error { return dbErr },
		cache:    func(context.Context) error { return nil },
	}
	r := gin.New()
	h.Register(r.Group("/api"))
	return r
}

func multipartBody(t *testing.T, fields map[string]string, file []byte, fileMIME string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if file != nil {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", `form-data; name="image"; filename="photo.exe"`)
		header.Set("Content-Type", fileMIME)
		part, err := w.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestCreateImage(t *testing.T) {
	ops := &fakeImageOps{}
	body, contentType := multipartBody(t, map[string]string{
		"name":       "sunset",
		"author":     "someone",
		"fileFormat": ".exe",
	}, []byte("payload"), "application/octet-stream")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/images", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	newTestRouter(ops, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "sunset", ops.created.Descriptor.Name)
	assert.Equal(t, "someone", ops.created.Descriptor.Author)
	assert.Equal(t, []byte("payload"), ops.created.Payload)
	assert.Equal(t, "application/octet-stream", ops.created.DeclaredMIME)
	assert.Equal(t, "tenant-a", ops.created.Tenant)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, ".png", resp["fileFormat"])
	assert.NotEmpty(t, resp["_id"])
}

func TestCreateImageWithoutFilePassesNilPayload(t *testing.T) {
	ops := &fakeImageOps{createErr: service.ErrMissingFile}
	body, contentType := multipartBody(t, map[string]string{"name": "x"}, nil, "")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/images", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	newTestRouter(ops, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, ops.created.Payload)
	assert.Contains(t, rec.Body.String(), "image_missing")
}

func TestCreateImageErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", &service.ValidationError{Issues: []validation.Issue{{Field: "name", Rule: "required"}}}, http.StatusBadRequest, "validation_failed"},
		{"unsupported", service.ErrUnsupportedFormat, http.StatusBadRequest, "unsupported_format"},
		{"blob", &service.BlobError{Op: service.BlobUpload, Err: errors.New("refused")}, http.StatusInternalServerError, "internal_server_error"},
		{"metadata", &service.MetadataWriteError{Err: errors.New("timeout")}, http.StatusInternalServerError, "internal_server_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ops := &fakeImageOps{createErr: tc.err}
			body, contentType := multipartBody(t, map[string]string{"name": "x"}, []byte("p"), "image/png")
			req := httptest.NewRequest(http.MethodPost, "/api/v1/images", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()
			newTestRouter(ops, nil).ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.code)
			assert.NotContains(t, rec.Body.String(), "refused")
		})
	}
}

func TestCreateImageTooLarge(t *testing.T) {
	ops := &fakeImageOps{}
	body, contentType := multipartBody(t, map[string]string{"name": "x"}, bytes.Repeat([]byte("a"), 2<<20), "image/png")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/images", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	newTestRouter(ops, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, ops.created.Tenant, "service not called")
}

func TestGetAndListImages(t *testing.T) {
	ops := &fakeImageOps{image: models.Image{ID: bson.NewObjectID(), Name: "sunset"}}
	router := newTestRouter(ops, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/images/"+ops.image.ID.Hex(), nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sunset")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/images/"+bson.NewObjectID().Hex(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/images", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tenant-a", ops.listTenant)
}

func TestUpdateImage(t *testing.T) {
	ops := &fakeImageOps{}
	router := newTestRouter(ops, nil)

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/images/abc", strings.NewReader(`{"name":"renamed","tags":["a"]}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, ops.patched.Name)
	assert.Equal(t, "renamed", *ops.patched.Name)
	assert.Nil(t, ops.patched.Author)

	req = httptest.NewRequest(http.MethodPatch, "/api/v1/images/abc", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, ops.patched.IsEmpty())

	req = httptest.NewRequest(http.MethodPatch, "/api/v1/images/abc", strings.NewReader(`{"name":`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ops.patchErr = service.ErrNotFound
	req = httptest.NewRequest(http.MethodPatch, "/api/v1/images/abc", strings.NewReader(`{}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteImage(t *testing.T) {
	ops := &fakeImageOps{}
	router := newTestRouter(ops, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/images/abc", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	ops.deleteErr = service.ErrNotFound
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/images/abc", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImageFileRoutes(t *testing.T) {
	ops := &fakeImageOps{}
	router := newTestRouter(ops, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/images/file/abc", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "binary", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "abc.png")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/images/file/abc", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	ops.fileErr = service.ErrNotFound
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/images/file/abc", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/images/file/abc", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(&fakeImageOps{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","database":"ok","cache":"ok","environment":"test"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	newTestRouter(&fakeImageOps{}, errors.New("down")).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database":"error"`)
}
