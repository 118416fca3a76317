package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/steinsgo/personal-site/internal/cache"
	"github.com/steinsgo/personal-site/internal/config"
	"github.com/steinsgo/personal-site/internal/database"
	"github.com/steinsgo/personal-site/internal/log"
	"github.com/steinsgo/personal-site/internal/queue"
	"github.com/steinsgo/personal-site/internal/repository"
	"github.com/steinsgo/personal-site/internal/service"
	"github.com/steinsgo/personal-site/internal/storage"
	"github.com/steinsgo/personal-site/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.LogLevel).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer dbPool.Close()

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}

	sessions := service.NewSessionService(
		repository.NewSessionRepository(dbPool),
		cache.NewSessionCache(client, cfg.Security.SessionCacheTTL),
		cfg.Security.SessionTTL,
		logger,
	)
	uploads := service.NewUploadService(
		repository.NewUploadRepository(dbPool),
		objectStore,
		nil,
		cfg.Upload.PublicPrefix,
		cfg.Upload.MaxBytes,
		logger,
	)

	processor := tasks.NewProcessor(sessions, uploads, logger)
	consumer := queue.NewConsumer(client, queue.Options{
		Stream:        cfg.Worker.Stream,
		Group:         cfg.Worker.Group,
		Consumer:      cfg.Worker.Consumer,
		ClaimInterval: cfg.Worker.ClaimInterval,
	}, logger, processor)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("consumer stopped unexpectedly")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logger.Warn().Msg("consumer did not stop in time")
	}
}
