// Command server runs the group chat HTTP API. With QUEUE_DRIVER=memory it
// also runs notification fan-out in-process; with QUEUE_DRIVER=rabbitmq it
// only publishes jobs for cmd/dispatch-worker.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/group-chat-backend/internal/config"
	"github.com/tbourn/group-chat-backend/internal/fanout"
	httpapi "github.com/tbourn/group-chat-backend/internal/http"
	"github.com/tbourn/group-chat-backend/internal/observability"
	"github.com/tbourn/group-chat-backend/internal/queue"
	"github.com/tbourn/group-chat-backend/internal/repo"
	"github.com/tbourn/group-chat-backend/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const purgeEvery = time.Hour

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := sysutil.SetupLogger(cfg.OTEL.ServiceName, cfg.LogLevel, cfg.LogPretty, os.Stdout)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	flushSentry, err := observability.SetupSentry(cfg.Sentry, version)
	if err != nil {
		logger.Fatal().Err(err).Msg("sentry init")
	}
	defer flushSentry(2 * time.Second)

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		logger.Fatal().Err(err).Msg("otel init")
	}

	db, err := repo.OpenDB(cfg.DB)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.DB.Driver).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}

	q, closeFanout, err := newQueue(ctx, cfg, db, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("queue", cfg.Queue.Driver).Msg("start dispatch queue")
	}

	go purgeIdempotency(ctx, db, logger)

	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{DB: db, Config: cfg, Queue: q, Log: logger})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Str("version", version).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	// Stop taking requests first so no job is enqueued after the queue closes.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	if err := q.Close(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("queue drain")
	}
	if err := closeFanout(); err != nil {
		logger.Error().Err(err).Msg("fanout close")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("otel shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// newQueue returns the configured dispatch queue. The memory driver carries
// its own fan-out coordinator; the returned func releases what it opened.
func newQueue(ctx context.Context, cfg config.Config, db *gorm.DB, logger zerolog.Logger) (queue.Queue, func() error, error) {
	if cfg.Queue.Driver == "rabbitmq" {
		p, err := queue.NewRabbitPublisher(cfg.Queue.RabbitURL, cfg.Queue.RabbitQueue)
		if err != nil {
			return nil, nil, err
		}
		return p, func() error { return nil }, nil
	}

	coord, closeFn, err := fanout.FromConfig(ctx, cfg, db, logger)
	if err != nil {
		return nil, nil, err
	}
	return queue.NewMemoryQueue(cfg.Queue.Workers, cfg.Queue.Buffer, coord.HandleJob, logger), closeFn, nil
}

// purgeIdempotency drops expired Idempotency-Key records until ctx ends.
func purgeIdempotency(ctx context.Context, db *gorm.DB, logger zerolog.Logger) {
	t := time.NewTicker(purgeEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeExpiredIdempotency(ctx, db, now.UTC())
			if err != nil {
				logger.Warn().Err(err).Msg("purge idempotency keys")
				continue
			}
			if n > 0 {
				logger.Debug().Int64("purged", n).Msg("expired idempotency keys removed")
			}
		}
	}
}
