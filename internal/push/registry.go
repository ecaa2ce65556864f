package push

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/group-chat-backend/internal/domain"
	"github.com/tbourn/group-chat-backend/internal/repo"
)

const maxEndpointLen = 500

// SubscriptionInput is what a browser hands over from PushManager.subscribe.
type SubscriptionInput struct {
	Endpoint        string
	PublicKey       string // p256dh
	AuthSecret      string // auth
	ContentEncoding string
	Raw             []byte // original JSON, kept for diagnostics
}

// Registry stores push subscriptions, one per (user, endpoint).
type Registry struct {
	DB  *gorm.DB
	Log zerolog.Logger
}

// NewRegistry returns a Registry backed by db.
func NewRegistry(db *gorm.DB, log zerolog.Logger) *Registry {
	return &Registry{DB: db, Log: log.With().Str("component", "push_registry").Logger()}
}

// Upsert stores the subscription for userID. Registering an endpoint the user
// already has replaces its keys in place. It returns the subscription ID.
func (r *Registry) Upsert(ctx context.Context, userID string, in SubscriptionInput) (string, error) {
	in.Endpoint = strings.TrimSpace(in.Endpoint)
	if err := ValidateEndpoint(in.Endpoint); err != nil {
		return "", err
	}
	if strings.TrimSpace(in.PublicKey) == "" || strings.TrimSpace(in.AuthSecret) == "" {
		return "", fmt.Errorf("%w: keys.p256dh and keys.auth are required", ErrInvalidSubscription)
	}
	enc := strings.ToLower(strings.TrimSpace(in.ContentEncoding))
	if enc == "" {
		enc = "aes128gcm"
	}

	sub := &domain.PushSubscription{
		ID:              uuid.NewString(),
		UserID:          userID,
		Endpoint:        in.Endpoint,
		PublicKey:       strings.TrimSpace(in.PublicKey),
		AuthToken:       strings.TrimSpace(in.AuthSecret),
		ContentEncoding: enc,
	}
	if len(in.Raw) > 0 {
		sub.Raw = datatypes.JSON(in.Raw)
	}

	stored, err := repo.UpsertPushSubscription(ctx, r.DB, sub)
	if err != nil {
		return "", err
	}
	r.Log.Debug().
		Str("user_id", userID).
		Str("subscription_id", stored.ID).
		Str("endpoint_host", EndpointHost(stored.Endpoint)).
		Msg("push subscription stored")
	return stored.ID, nil
}

// Remove deletes userID's subscription for endpoint. It reports false when
// there was nothing to delete.
func (r *Registry) Remove(ctx context.Context, userID, endpoint string) (bool, error) {
	return repo.DeletePushSubscription(ctx, r.DB, userID, strings.TrimSpace(endpoint))
}

// ListForUser returns userID's subscriptions, possibly none.
func (r *Registry) ListForUser(ctx context.Context, userID string) ([]domain.PushSubscription, error) {
	return repo.ListPushSubscriptions(ctx, r.DB, userID)
}

// Invalidate deletes a subscription after its endpoint reported it is gone.
// A subscription already removed yields ErrSubscriptionNotFound.
func (r *Registry) Invalidate(ctx context.Context, id string) error {
	ok, err := repo.DeletePushSubscriptionByID(ctx, r.DB, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSubscriptionNotFound
	}
	return nil
}

// ValidateEndpoint accepts absolute https URLs up to 500 characters. Plain
// http is allowed for loopback hosts so local push servers work.
func ValidateEndpoint(endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("%w: endpoint is required", ErrInvalidSubscription)
	}
	if len(endpoint) > maxEndpointLen {
		return fmt.Errorf("%w: endpoint longer than %d characters", ErrInvalidSubscription, maxEndpointLen)
	}
	u, err := url.Parse(endpoint)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%w: endpoint must be an absolute URL", ErrInvalidSubscription)
	}
	switch u.Scheme {
	case "https":
		return nil
	case "http":
		if isLoopback(u.Hostname()) {
			return nil
		}
	}
	return fmt.Errorf("%w: endpoint must use https", ErrInvalidSubscription)
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// EndpointHost returns only the host of an endpoint. Full endpoints are
// capabilities and stay out of logs and API responses.
func EndpointHost(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return "invalid"
	}
	return u.Host
}

// IsNotFound reports whether err means the subscription does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSubscriptionNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}
