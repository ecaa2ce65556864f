package fanout

import (
	"context"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/group-chat-backend/internal/config"
	"github.com/tbourn/group-chat-backend/internal/push"
	"github.com/tbourn/group-chat-backend/internal/realtime"
)

// FromConfig builds a Coordinator with the optional parts cfg enables: Web
// Push when both VAPID keys are set and the Redis signal when REDIS_URL is.
// The returned close func releases the Redis client.
func FromConfig(ctx context.Context, cfg config.Config, db *gorm.DB, log zerolog.Logger) (*Coordinator, func() error, error) {
	closeFn := func() error { return nil }

	var pusher Pusher
	if cfg.Push.Enabled() {
		reg := push.NewRegistry(db, log)
		pusher = push.NewWorker(reg, push.NewWebPushTransport(cfg.Push, nil), cfg.Push, log)
	} else {
		log.Warn().Msg("VAPID keys not configured; web push disabled")
	}

	var sig realtime.Signaler
	if cfg.Redis.URL != "" {
		rs, err := realtime.NewRedisSignaler(ctx, cfg.Redis.URL, cfg.Redis.ChannelPrefix, log)
		if err != nil {
			return nil, closeFn, err
		}
		sig, closeFn = rs, rs.Close
	}

	c := NewCoordinator(db, pusher, sig, cfg.Queue.FanoutWorkers, log)
	c.Icon = cfg.Push.Icon
	return c, closeFn, nil
}
