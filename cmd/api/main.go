package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/steinsgo/personal-site/internal/cache"
	"github.com/steinsgo/personal-site/internal/config"
	"github.com/steinsgo/personal-site/internal/database"
	"github.com/steinsgo/personal-site/internal/handlers"
	"github.com/steinsgo/personal-site/internal/jobs"
	"github.com/steinsgo/personal-site/internal/log"
	"github.com/steinsgo/personal-site/internal/middleware"
	"github.com/steinsgo/personal-site/internal/ratelimit"
	"github.com/steinsgo/personal-site/internal/repository"
	"github.com/steinsgo/personal-site/internal/security"
	"github.com/steinsgo/personal-site/internal/server"
	"github.com/steinsgo/personal-site/internal/service"
	"github.com/steinsgo/personal-site/internal/storage"
	"github.com/steinsgo/personal-site/internal/stream"
	"github.com/steinsgo/personal-site/internal/tasks"
	"github.com/steinsgo/personal-site/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.LogLevel)

	ctx := context.Background()

	shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init tracing")
	}

	if cfg.Postgres.AutoMigrate {
		if err := database.Migrate(ctx, cfg.Postgres.DSN); err != nil {
			logger.Fatal().Err(err).Msg("failed to migrate database")
		}
	}

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}

	// Redis backs the session cache, rate limits and the task queue. The
	// site keeps serving without it.
	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, running without cache, rate limits and background tasks")
		redisClient = nil
	}

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}
	if err := objectStore.EnsureBucket(ctx); err != nil {
		logger.Warn().Err(err).Msg("ensure bucket failed")
	}

	users := repository.NewUserRepository(dbPool)
	rooms := repository.NewRoomRepository(dbPool)
	messages := repository.NewMessageRepository(dbPool)

	var (
		sessionCache service.SessionCache
		limiter      middleware.Allower
		taskQueue    service.TaskEnqueuer
		scheduler    *jobs.Scheduler
	)
	if redisClient != nil {
		sessionCache = cache.NewSessionCache(redisClient, cfg.Security.SessionCacheTTL)
		queue := tasks.NewQueue(redisClient, cfg.Worker.Stream)
		taskQueue = queue
		scheduler = jobs.NewScheduler(queue, cfg.Worker.SweepSchedule, logger)
		if cfg.RateLimit.Enabled {
			limiter = ratelimit.NewLimiter(redisClient, logger)
		}
	}

	sessions := service.NewSessionService(repository.NewSessionRepository(dbPool), sessionCache, cfg.Security.SessionTTL, logger)
	auth := service.NewAuthService(users, sessions, security.NewPasswordHasher(security.DefaultParams), logger)

	dispatcher := stream.New(messages, stream.Options{
		PollInterval:      cfg.Stream.PollInterval,
		KeepaliveInterval: cfg.Stream.KeepaliveInterval,
		BatchSize:         cfg.Stream.BatchSize,
	}, logger)

	checks := map[string]handlers.HealthCheck{
		"database": dbPool.Ping,
		"storage": func(ctx context.Context) error {
			return objectStore.EnsureBucket(ctx)
		},
	}
	if redisClient != nil {
		checks["cache"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}

	handlerSet := handlers.NewHandlerSet(handlers.Deps{
		Log:        logger,
		Config:     cfg,
		Sessions:   sessions,
		Auth:       auth,
		Rooms:      service.NewRoomService(rooms, logger),
		Messages:   service.NewMessageService(messages, rooms, cfg.Upload.PublicPrefix, logger),
		Guestbook:  service.NewGuestbookService(repository.NewGuestbookRepository(dbPool), auth, cfg.Security.InlineSessionTTL, logger),
		Uploads:    service.NewUploadService(repository.NewUploadRepository(dbPool), objectStore, taskQueue, cfg.Upload.PublicPrefix, cfg.Upload.MaxBytes, logger),
		Dispatcher: dispatcher,
		Limiter:    limiter,
		Checks:     checks,
	})
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	if scheduler != nil {
		if err := scheduler.Start(); err != nil {
			logger.Error().Err(err).Msg("scheduler start failed")
		}
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, dispatcher, scheduler, dbPool, redisClient, shutdownTracing)
}

func waitForShutdown(
	logger zerolog.Logger,
	srv *server.HTTPServer,
	dispatcher *stream.Dispatcher,
	scheduler *jobs.Scheduler,
	db *pgxpool.Pool,
	redisClient *redis.Client,
	shutdownTracing func(context.Context) error,
) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Open streams would otherwise hold Shutdown until the deadline.
	dispatcher.Close()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	if scheduler != nil {
		scheduler.Stop()
	}

	db.Close()
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("redis close error")
		}
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("tracer shutdown error")
	}

	logger.Info().Msg("server exited cleanly")
}
