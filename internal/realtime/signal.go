// Package realtime tells connected clients that something changed for them.
// It only signals; the client refetches its inbox over HTTP.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/tbourn/group-chat-backend/internal/domain"
)

// Signaler announces freshly created notifications.
type Signaler interface {
	NotificationCreated(ctx context.Context, n *domain.Notification, unread int64)
}

// Noop discards every signal.
type Noop struct{}

// NotificationCreated implements Signaler.
func (Noop) NotificationCreated(context.Context, *domain.Notification, int64) {}

// Event is the JSON published on a user's channel.
type Event struct {
	Type           string `json:"type"`
	NotificationID string `json:"notification_id"`
	UserID         string `json:"user_id"`
	UnreadHint     int64  `json:"unread_hint"`
}

// RedisSignaler publishes events over Redis Pub/Sub on
// "{prefix}users.{id}.notifications".
type RedisSignaler struct {
	client *redis.Client
	prefix string
	log    zerolog.Logger
}

// NewRedisSignaler connects to the Redis instance at url (redis://...) and
// checks it answers.
func NewRedisSignaler(ctx context.Context, url, prefix string, log zerolog.Logger) (*RedisSignaler, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	client := redis.NewClient(opts)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisSignaler{
		client: client,
		prefix: prefix,
		log:    log.With().Str("component", "realtime").Logger(),
	}, nil
}

// Channel returns the Pub/Sub channel for userID.
func (s *RedisSignaler) Channel(userID string) string {
	return s.prefix + "users." + userID + ".notifications"
}

// NotificationCreated implements Signaler. Failures are logged only; the
// notification row is already durable.
func (s *RedisSignaler) NotificationCreated(ctx context.Context, n *domain.Notification, unread int64) {
	body, err := json.Marshal(Event{
		Type:           n.Type,
		NotificationID: n.ID,
		UserID:         n.UserID,
		UnreadHint:     unread,
	})
	if err != nil {
		return
	}
	if err := s.client.Publish(ctx, s.Channel(n.UserID), body).Err(); err != nil {
		s.log.Warn().Err(err).
			Str("recipient_id", n.UserID).
			Str("notification_id", n.ID).
			Msg("publish realtime signal")
	}
}

// Close releases the Redis connection pool.
func (s *RedisSignaler) Close() error {
	return s.client.Close()
}
