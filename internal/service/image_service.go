package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/anttijankeri/object-image-server/internal/ledger"
	"github.com/anttijankeri/object-image-server/internal/media/sniffer"
	"github.com/anttijankeri/object-image-server/internal/models"
	"github.com/anttijankeri/object-image-server/internal/repository"
	"github.com/anttijankeri/object-image-server/internal/storage"
	"github.com/anttijankeri/object-image-server/internal/validation"
)

var tracer = otel.Tracer("github.com/anttijankeri/object-image-server/internal/service")

type ImageStore interface {
	Create(ctx context.Context, image models.Image) (bson.ObjectID, error)
	GetByID(ctx context.Context, id string) (models.Image, error)
	List(ctx context.Context, tenant string) ([]models.Image, error)
	Update(ctx context.Context, id string, patch models.ImagePatch) (int64, error)
	SetObjectLink(ctx context.Context, id, objectLink string) (int64, error)
	Delete(ctx context.Context, id string) (int64, error)
	ExistsByFilePath(ctx context.Context, filePath string) (bool, error)
}

type Validator interface {
	ValidateFull(desc models.ImageDescriptor) []validation.Issue
	ValidatePartial(patch models.ImagePatch) []validation.Issue
}

type UploadLedger interface {
	Track(ctx context.Context, entry ledger.Entry) error
	Resolve(ctx context.Context, entry ledger.Entry) error
	Due(ctx context.Context, olderThan time.Time, limit int) ([]ledger.Entry, error)
}

type CreateInput struct {
	Descriptor   models.ImageDescriptor
	Payload      []byte
	DeclaredMIME string
	Tenant       string
}

type FileContent struct {
	Body     io.ReadCloser
	MIME     string
	FileName string
}

// ImageService ingests images across the blob store and the metadata store.
// The two stores share no transaction; every step runs strictly after the
// previous one and failures after the upload are compensated where possible.
type ImageService struct {
	images    ImageStore
	blobs     storage.Store
	linker    *Linker
	ledger    UploadLedger
	validator Validator
	log       zerolog.Logger
	now       func() time.Time
}

// NewImageService wires the orchestrator. ledger may be nil, in which case
// uploads are not tracked for the orphan sweep.
func NewImageService(images ImageStore, blobs storage.Store, linker *Linker, ledger UploadLedger, validator Validator, log zerolog.Logger) *ImageService {
	return &ImageService{
		images:    images,
		blobs:     blobs,
		linker:    linker,
		ledger:    ledger,
		validator: validator,
		log:       log,
		now:       time.Now,
	}
}

func (s *ImageService) CreateImage(ctx context.Context, in CreateInput) (models.Image, error) {
	ctx, span := tracer.Start(ctx, "images.create", trace.WithAttributes(
		attribute.String("tenant", in.Tenant),
	))
	defer span.End()

	if issues := s.validator.ValidateFull(in.Descriptor); len(issues) > 0 {
		return models.Image{}, &ValidationError{Issues: issues}
	}

	if len(in.Payload) == 0 {
		return models.Image{}, ErrMissingFile
	}

	format, err := sniffer.DetectBytes(in.Payload)
	if err != nil {
		return models.Image{}, ErrUnsupportedFormat
	}
	if in.DeclaredMIME != "" && in.DeclaredMIME != format.MIME {
		s.log.Debug().
			Str("declared", in.DeclaredMIME).
			Str("actual", format.MIME).
			Msg("declared content type ignored")
	}

	// objectLink and filePath are outputs of this operation, never inputs.
	requestedLink := in.Descriptor.ObjectLink
	desc := in.Descriptor
	image := models.Image{
		Tenant:      in.Tenant,
		Name:        desc.Name,
		Description: desc.Description,
		Author:      desc.Author,
		AltText:     desc.AltText,
		Tags:        desc.Tags,
		DateAdded:   s.now().UTC(),
		FileFormat:  format.Extension,
		MimeType:    format.MIME,
		SizeBytes:   int64(len(in.Payload)),
	}

	uploaded, err := s.upload(ctx, in, format)
	if err != nil {
		span.SetStatus(codes.Error, "blob upload failed")
		return models.Image{}, &BlobError{Op: BlobUpload, Err: err}
	}
	image.FilePath = uploaded.FilePath

	entry := ledger.Entry{Tenant: in.Tenant, FilePath: uploaded.FilePath, UploadedAt: image.DateAdded}
	s.track(ctx, entry)

	id, err := s.insert(ctx, image)
	if err != nil {
		span.SetStatus(codes.Error, "metadata insert failed")
		s.compensate(ctx, entry)
		return models.Image{}, &MetadataWriteError{Err: err}
	}
	s.resolve(ctx, entry)
	image.ID = id

	if requestedLink != "" {
		image.ObjectLink = s.link(ctx, image, requestedLink)
	}

	s.log.Info().
		Str("image_id", id.Hex()).
		Str("tenant", image.Tenant).
		Str("file_path", image.FilePath).
		Str("format", image.FileFormat).
		Str("object_link", image.ObjectLink).
		Msg("image created")

	return image, nil
}

func (s *ImageService) upload(ctx context.Context, in CreateInput, format sniffer.Result) (storage.UploadResult, error) {
	ctx, span := tracer.Start(ctx, "images.create.upload")
	defer span.End()

	result, err := s.blobs.Upload(ctx, storage.UploadRequest{
		Data:   bytes.NewReader(in.Payload),
		Size:   int64(len(in.Payload)),
		Format: format.Extension,
		MIME:   format.MIME,
		Tenant: in.Tenant,
	})
	if err != nil {
		span.RecordError(err)
		s.log.Error().Err(err).Str("tenant", in.Tenant).Msg("blob upload failed")
	}
	return result, err
}

func (s *ImageService) insert(ctx context.Context, image models.Image) (bson.ObjectID, error) {
	ctx, span := tracer.Start(ctx, "images.create.insert")
	defer span.End()

	id, err := s.images.Create(ctx, image)
	if err != nil {
		span.RecordError(err)
		s.log.Error().Err(err).Str("file_path", image.FilePath).Msg("metadata insert failed")
	}
	return id, err
}

// link is best effort: any failure leaves the image unlinked.
func (s *ImageService) link(ctx context.Context, image models.Image, objectID string) string {
	ctx, span := tracer.Start(ctx, "images.create.link")
	defer span.End()

	imageID := image.ID.Hex()
	linked := s.linker.AppendImageLink(ctx, objectID, imageID, image.Tenant)
	if linked == "" {
		s.linkFailed(&LinkReconciliationFailure{ObjectID: objectID, ImageID: imageID, Reason: "object not updated"}, nil)
		return ""
	}

	matched, err := s.images.SetObjectLink(ctx, imageID, linked)
	if err != nil || matched != 1 {
		s.linkFailed(&LinkReconciliationFailure{ObjectID: objectID, ImageID: imageID, Reason: "image not updated"}, err)
		return ""
	}
	return linked
}

func (s *ImageService) linkFailed(failure *LinkReconciliationFailure, cause error) {
	s.log.Warn().
		Err(cause).
		Str("image_id", failure.ImageID).
		Str("object_id", failure.ObjectID).
		Str("reason", failure.Reason).
		Msg("link reconciliation failed")
}

// compensate removes a blob whose metadata insert failed. If that fails too
// the ledger entry stays behind for the sweeper.
func (s *ImageService) compensate(ctx context.Context, entry ledger.Entry) {
	ctx = context.WithoutCancel(ctx)

	err := s.blobs.Remove(ctx, entry.Tenant, storage.FileName(entry.FilePath))
	if err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		s.log.Warn().
			Err(err).
			Str("file_path", entry.FilePath).
			Msg("compensating blob delete failed, left for sweep")
		return
	}
	s.resolve(ctx, entry)
}

func (s *ImageService) track(ctx context.Context, entry ledger.Entry) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.Track(ctx, entry); err != nil {
		s.log.Warn().Err(err).Str("file_path", entry.FilePath).Msg("ledger track failed")
	}
}

func (s *ImageService) resolve(ctx context.Context, entry ledger.Entry) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.Resolve(ctx, entry); err != nil {
		s.log.Warn().Err(err).Str("file_path", entry.FilePath).Msg("ledger resolve failed")
	}
}

func (s *ImageService) GetImage(ctx context.Context, id string) (models.Image, error) {
	image, err := s.images.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrImageNotFound) {
			return models.Image{}, ErrNotFound
		}
		return models.Image{}, err
	}
	return image, nil
}

func (s *ImageService) ListImages(ctx context.Context, tenant string) ([]models.Image, error) {
	return s.images.List(ctx, tenant)
}

// UpdateImage merges the present patch fields. An empty patch changes
// nothing and succeeds as long as the image exists.
func (s *ImageService) UpdateImage(ctx context.Context, id string, patch models.ImagePatch) error {
	if issues := s.validator.ValidatePartial(patch); len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}

	matched, err := s.images.Update(ctx, id, patch)
	if err != nil {
		return &MetadataWriteError{Err: err}
	}
	if matched == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteImage removes the blob first and the metadata only after that
// succeeded, so a failure never leaves an unreferenced blob behind.
func (s *ImageService) DeleteImage(ctx context.Context, id string) error {
	image, err := s.GetImage(ctx, id)
	if err != nil {
		return err
	}

	err = s.blobs.Remove(ctx, image.Tenant, storage.FileName(image.FilePath))
	if err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		return &BlobError{Op: BlobDelete, Err: err}
	}

	deleted, err := s.images.Delete(ctx, id)
	if err != nil {
		return &MetadataWriteError{Err: err}
	}
	if deleted != 1 {
		return ErrNotFound
	}

	s.log.Info().Str("image_id", id).Str("file_path", image.FilePath).Msg("image deleted")
	return nil
}

// FetchFile streams the binary of an image. The caller closes Body.
func (s *ImageService) FetchFile(ctx context.Context, id string) (FileContent, error) {
	image, err := s.GetImage(ctx, id)
	if err != nil {
		return FileContent{}, err
	}

	fileName := storage.FileName(image.FilePath)
	body, err := s.blobs.Fetch(ctx, image.Tenant, fileName, image.MimeType)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return FileContent{}, ErrNotFound
		}
		return FileContent{}, &BlobError{Op: BlobFetch, Err: err}
	}

	return FileContent{Body: body, MIME: image.MimeType, FileName: fileName}, nil
}

// DeleteFile removes only the binary; the metadata document is kept.
func (s *ImageService) DeleteFile(ctx context.Context, id string) error {
	image, err := s.GetImage(ctx, id)
	if err != nil {
		return err
	}

	if err := s.blobs.Remove(ctx, image.Tenant, storage.FileName(image.FilePath)); err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return ErrNotFound
		}
		return &BlobError{Op: BlobDelete, Err: err}
	}
	return nil
}
