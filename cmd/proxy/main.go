package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	mw "github.com/manasamancharla/deployly/internal/api/middleware"
	"github.com/manasamancharla/deployly/internal/proxy"
	"github.com/manasamancharla/deployly/pkg/config"
	"github.com/manasamancharla/deployly/pkg/logger"
)

func main() {
	cfg := config.MustLoad()

	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	log.Info("starting deployly proxy",
		zap.String("env", cfg.AppEnv),
		zap.String("addr", cfg.ProxyAddr),
	)

	resolver := proxy.NewResolver(cfg.ArtifactEndpoint, proxy.SubdomainLookup{}, &http.Client{
		Timeout: 30 * time.Second,
	})

	var handler http.Handler = resolver
	handler = mw.Logging(handler)
	handler = mw.Recovery(handler)
	handler = mw.RequestID(handler)

	srv := &http.Server{
		Addr:              cfg.ProxyAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("proxy server starting", zap.String("addr", cfg.ProxyAddr))
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
