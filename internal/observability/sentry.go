package observability

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tbourn/group-chat-backend/internal/config"
)

// SetupSentry initializes the global Sentry client. With an empty DSN it
// does nothing. The returned flush func waits up to timeout for buffered
// events and is always safe to call.
func SetupSentry(cfg config.SentryConfig, release string) (flush func(timeout time.Duration), err error) {
	noop := func(time.Duration) {}
	if cfg.DSN == "" {
		return noop, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     release,
	}); err != nil {
		return noop, err
	}
	return func(timeout time.Duration) { sentry.Flush(timeout) }, nil
}
