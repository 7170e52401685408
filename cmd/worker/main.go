package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/anttijankeri/object-image-server/internal/cache"
	"github.com/anttijankeri/object-image-server/internal/config"
	"github.com/anttijankeri/object-image-server/internal/database"
	"github.com/anttijankeri/object-image-server/internal/ledger"
	"github.com/anttijankeri/object-image-server/internal/log"
	"github.com/anttijankeri/object-image-server/internal/queue"
	"github.com/anttijankeri/object-image-server/internal/repository"
	"github.com/anttijankeri/object-image-server/internal/service"
	"github.com/anttijankeri/object-image-server/internal/storage/driver"
	"github.com/anttijankeri/object-image-server/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment).With().Str("process", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mongoClient, err := database.NewMongoClient(ctx, cfg.Mongo)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect mongo")
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(disconnectCtx)
	}()

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	blobs, err := driver.Open(ctx, cfg.Blob, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init blob store")
	}

	images := repository.NewImageRepository(mongoClient.Database(cfg.Mongo.Database), cfg.Mongo.ImagesCollection)
	sweeper := service.NewSweeper(
		ledger.New(client, cfg.Sweep.LedgerKey),
		images,
		blobs,
		cfg.Sweep.GracePeriod,
		cfg.Sweep.BatchSize,
		logger,
	)

	if _, err := sweeper.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("startup sweep failed")
	}

	processor := tasks.NewProcessor(logger, sweeper)
	consumer := queue.NewConsumer(
		client,
		cfg.Worker.Stream,
		cfg.Worker.Group,
		cfg.Worker.Consumer,
		cfg.Worker.ClaimInterval,
		logger,
		processor,
	)

	logger.Info().Str("stream", cfg.Worker.Stream).Msg("worker started")
	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("consumer stopped unexpectedly")
		return
	}
	logger.Info().Msg("worker exited cleanly")
}
