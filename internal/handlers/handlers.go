package handlers

import (
	"context"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/anttijankeri/object-image-server/internal/config"
	"github.com/anttijankeri/object-image-server/internal/middleware"
	"github.com/anttijankeri/object-image-server/internal/models"
	"github.com/anttijankeri/object-image-server/internal/service"
)

// ImageOperations is the part of *service.ImageService the HTTP surface uses.
type ImageOperations interface {
	CreateImage(ctx context.Context, in service.CreateInput) (models.Image, error)
	GetImage(ctx context.Context, id string) (models.Image, error)
	ListImages(ctx context.Context, tenant string) ([]models.Image, error)
	UpdateImage(ctx context.Context, id string, patch models.ImagePatch) error
	DeleteImage(ctx context.Context, id string) error
	FetchFile(ctx context.Context, id string) (service.FileContent, error)
	DeleteFile(ctx context.Context, id string) error
}

type PingFunc func(ctx context.Context) error

type HandlerSet struct {
	log      zerolog.Logger
	cfg      *config.AppConfig
	images   ImageOperations
	database PingFunc
	cache    PingFunc
}

func NewHandlerSet(log zerolog.Logger, cfg *config.AppConfig, images ImageOperations, db *mongo.Client, cache *redis.Client) HandlerSet {
	return HandlerSet{
		log:    log,
		cfg:    cfg,
		images: images,
		database: func(ctx context.Context) error {
			return db.Ping(ctx, readpref.Primary())
		},
		cache: func(ctx context.Context) error {
			return cache.Ping(ctx).Err()
		},
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	images := router.Group("/v1/images")
	images.Use(
		middleware.Tenant(h.cfg.Security),
		middleware.BodyLimit(h.cfg.Upload.MaxBytes),
	)
	images.GET("", h.ListImages)
	images.POST("", h.CreateImage)
	images.GET("/file/:id", h.GetImageFile)
	images.DELETE("/file/:id", h.DeleteImageFile)
	images.GET("/:id", h.GetImage)
	images.PATCH("/:id", h.UpdateImage)
	images.DELETE("/:id", h.DeleteImage)
}

func closeQuietly(c io.Closer) {
	_ = c.Close()
}
