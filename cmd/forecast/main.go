package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"forecast/internal/cli"
	apphttp "forecast/internal/http"
	"forecast/internal/log"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	b := cli.InitBackend(context.Background(), logger, cfg, false)
	defer func() {
		if err := b.Cleanup(); err != nil {
			logger.Error("Cleanup failed", log.FieldError, err)
		}
	}()

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Projections:    b.Projections,
		Recalculations: b.Publisher,
		Statements:     b.Statements,
		Budgets:        b.Budgets,
		Ready:          b.Repo,
		Metrics:        b.Metrics,
		Logger:         logger.WithComponent(log.ComponentHTTP),
	})
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	go b.Caches.Run(ctx, time.Minute)

	logger.Info("Starting forecast server",
		"port", cfg.Port,
		"queue_enabled", b.Queue != nil,
		"export_enabled", b.Exporter != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	<-b.Caches.Done()
	logger.Info("Server stopped gracefully")
}
