package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/manasamancharla/deployly/internal/builder"
	"github.com/manasamancharla/deployly/internal/queue/tasks"
	"github.com/manasamancharla/deployly/internal/repository"
	"github.com/manasamancharla/deployly/internal/storage"
	"github.com/manasamancharla/deployly/pkg/config"
	"github.com/manasamancharla/deployly/pkg/database"
	"github.com/manasamancharla/deployly/pkg/logger"
)

func main() {
	cfg := config.MustLoad()

	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal("redis connection failed", zap.Error(err))
	}

	ctx := context.Background()
	db, err := database.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}

	store, err := storage.NewMinioStore(storage.MinioOptions{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		log.Fatal("failed to init artifact store", zap.Error(err))
	}
	if err := store.EnsureBucket(ctx); err != nil {
		log.Fatal("failed to ensure artifact bucket", zap.Error(err))
	}

	if err := os.MkdirAll(cfg.WorkRoot, 0o755); err != nil {
		log.Fatal("failed to create work root", zap.Error(err))
	}

	deployRepo := repository.NewDeploymentRepository(db)
	reporter := tasks.NewStatusReporter(deployRepo)
	defer reporter.Close()

	pipeline := builder.NewPipeline(cfg.WorkRoot, cfg.BuildCommand, cfg.BuildOutputDir, cfg.BuildTimeout, store)
	handler := tasks.NewBuildTaskHandler(pipeline, reporter, deployRepo, cfg.ServingDomain)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		},
		asynq.Config{
			Concurrency: cfg.WorkerConcurrency,
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeBuild, handler.HandleBuild)

	errCh := make(chan error, 1)
	go func() {
		logger.L().Info("build worker starting",
			zap.Int("concurrency", cfg.WorkerConcurrency),
			zap.String("work_root", cfg.WorkRoot),
		)
		if err := srv.Run(mux); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.L().Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.L().Error("worker stopped with error", zap.Error(err))
	}

	// Allow in-flight builds to finish gracefully.
	srv.Shutdown()
}
