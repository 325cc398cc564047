package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/manasamancharla/deployly/internal/api"
	"github.com/manasamancharla/deployly/internal/api/handlers"
	"github.com/manasamancharla/deployly/internal/repository"
	"github.com/manasamancharla/deployly/internal/services"
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

	log.Info("starting deployly api",
		zap.String("env", cfg.AppEnv),
		zap.String("addr", cfg.HTTPAddr),
		zap.String("serving_domain", cfg.ServingDomain),
	)

	ctx := context.Background()
	db, err := database.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	log.Info("database connected")

	// Process-scoped dispatch client, released on shutdown.
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer asynqClient.Close()

	projectRepo := repository.NewProjectRepository(db)
	deployRepo := repository.NewDeploymentRepository(db)
	deploySvc := services.NewDeploymentService(projectRepo, deployRepo, asynqClient, cfg.ServingDomain)

	router := api.NewRouter(api.Dependencies{
		DeployHandler:      handlers.NewDeployHandler(deploySvc),
		ProjectsHandler:    handlers.NewProjectsHandler(deploySvc),
		DeploymentsHandler: handlers.NewDeploymentsHandler(deploySvc),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	} else {
		log.Info("server exited gracefully")
	}
}
