// Command dispatch-worker consumes fan-out jobs from RabbitMQ and creates
// notifications and Web Push deliveries for each stored message.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/group-chat-backend/internal/config"
	"github.com/tbourn/group-chat-backend/internal/fanout"
	"github.com/tbourn/group-chat-backend/internal/observability"
	"github.com/tbourn/group-chat-backend/internal/queue"
	"github.com/tbourn/group-chat-backend/internal/repo"
	"github.com/tbourn/group-chat-backend/internal/sysutil"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	service := sysutil.FirstNonEmpty(os.Getenv("WORKER_SERVICE_NAME"), cfg.OTEL.ServiceName+"-worker")
	logger := sysutil.SetupLogger(service, cfg.LogLevel, cfg.LogPretty, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	flushSentry, err := observability.SetupSentry(cfg.Sentry, version)
	if err != nil {
		logger.Fatal().Err(err).Msg("sentry init")
	}
	defer flushSentry(2 * time.Second)

	otelCfg := cfg.OTEL
	otelCfg.ServiceName = service
	shutdownOTel, err := observability.SetupOTel(ctx, otelCfg, version)
	if err != nil {
		logger.Fatal().Err(err).Msg("otel init")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownOTel(sctx)
	}()

	db, err := repo.OpenDB(cfg.DB)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.DB.Driver).Msg("open database")
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()

	coord, closeFanout, err := fanout.FromConfig(ctx, cfg, db, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("build fan-out")
	}
	defer closeFanout()

	consumer, err := queue.NewRabbitConsumer(cfg.Queue.RabbitURL, cfg.Queue.RabbitQueue, cfg.Queue.Workers, coord.HandleJob, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect to rabbitmq")
	}
	defer consumer.Close()

	if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error().Err(err).Msg("consumer stopped")
		return
	}
	logger.Info().Msg("worker shut down")
}
