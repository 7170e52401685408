package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/anttijankeri/object-image-server/internal/cache"
	"github.com/anttijankeri/object-image-server/internal/config"
	"github.com/anttijankeri/object-image-server/internal/database"
	"github.com/anttijankeri/object-image-server/internal/handlers"
	"github.com/anttijankeri/object-image-server/internal/jobs"
	"github.com/anttijankeri/object-image-server/internal/ledger"
	"github.com/anttijankeri/object-image-server/internal/log"
	"github.com/anttijankeri/object-image-server/internal/repository"
	"github.com/anttijankeri/object-image-server/internal/server"
	"github.com/anttijankeri/object-image-server/internal/service"
	"github.com/anttijankeri/object-image-server/internal/storage/driver"
	"github.com/anttijankeri/object-image-server/internal/tracing"
	"github.com/anttijankeri/object-image-server/internal/validation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment)

	ctx := context.Background()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init tracing")
	}

	mongoClient, err := database.NewMongoClient(ctx, cfg.Mongo)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect mongo")
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	blobs, err := driver.Open(ctx, cfg.Blob, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init blob store")
	}

	images := repository.NewImageRepository(mongoClient.Database(cfg.Mongo.Database), cfg.Mongo.ImagesCollection)
	if err := images.EnsureIndexes(ctx); err != nil {
		logger.Warn().Err(err).Msg("ensure indexes failed")
	}
	objects := repository.NewObjectRepository(mongoClient.Database(cfg.Mongo.ObjectsDatabase))

	imageService := service.NewImageService(
		images,
		blobs,
		service.NewLinker(objects, logger),
		ledger.New(redisClient, cfg.Sweep.LedgerKey),
		validation.New(),
		logger,
	)

	handlerSet := handlers.NewHandlerSet(logger, cfg, imageService, mongoClient, redisClient)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(redisClient, cfg.Worker.Stream, cfg.Sweep.Schedule, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, mongoClient, redisClient, shutdownTracing)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, mongoClient *mongo.Client, redisClient *redis.Client, shutdownTracing tracing.ShutdownFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn().Msg("scheduler did not stop in time")
	}

	if err := mongoClient.Disconnect(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("mongo disconnect error")
	}
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("tracing shutdown error")
	}

	logger.Info().Msg("server exited cleanly")
}
