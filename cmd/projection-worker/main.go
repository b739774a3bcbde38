package main

import (
	"context"
	"errors"
	"os"
	"time"

	"forecast/internal/cli"
	"forecast/internal/log"
	"forecast/internal/services"
	"forecast/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker)
	logger.Info("Starting projection-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the projection worker")
		os.Exit(1)
	}

	b := cli.InitBackend(context.Background(), logger, cfg, true)
	defer func() {
		if err := b.Cleanup(); err != nil {
			logger.Error("Cleanup failed", log.FieldError, err)
		}
	}()

	processor := services.NewRecalcProcessor(b.Projections, services.RecalcProcessorConfig{
		Schedule:      cfg.RecalcSchedule,
		HorizonMonths: cfg.ProjectionHorizonMonths,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		logger.Info("Shutting down worker...")
		if err := processor.Stop(ctx); err != nil {
			logger.Error("Recalc processor stop failed", log.FieldError, err)
		}
	})

	recalcWorker := worker.NewRecalcWorker(b.Projections, cfg.ProjectionHorizonMonths)

	// A failed startup check is not fatal; the schedule catches up.
	logger.Info("Performing startup ledger check...", log.FieldOperation, log.OpStartup)
	if err := recalcWorker.StartupCheck(ctx); err != nil {
		logger.Error("Failed startup ledger check", log.FieldError, err)
	}

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start recalc processor", log.FieldError, err)
		os.Exit(1)
	}

	go b.Caches.Run(ctx, time.Minute)

	go func() {
		err := b.Queue.ConsumeRecalc(ctx, recalcWorker.HandleRecalcMessage)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err, log.FieldOperation, log.OpConsume)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	<-b.Caches.Done()
	logger.Info("Worker shutdown complete")
}
