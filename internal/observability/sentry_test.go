package observability

import (
	"testing"
	"time"

	"github.com/tbourn/group-chat-backend/internal/config"
)

func TestSetupSentry_EmptyDSNIsNoop(t *testing.T) {
	flush, err := SetupSentry(config.SentryConfig{}, "v1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	flush(10 * time.Millisecond)
}

func TestSetupSentry_BadDSN(t *testing.T) {
	flush, err := SetupSentry(config.SentryConfig{DSN: "not a dsn"}, "v1")
	if err == nil {
		t.Fatalf("expected error for malformed DSN")
	}
	if flush == nil {
		t.Fatalf("flush must never be nil")
	}
	flush(time.Millisecond)
}

func TestSetupSentry_ValidDSN(t *testing.T) {
	flush, err := SetupSentry(config.SentryConfig{
		DSN:         "https://public@sentry.example.com/1",
		Environment: "test",
	}, "v1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	flush(time.Millisecond)
}
