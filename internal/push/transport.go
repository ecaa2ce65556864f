package push

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/tbourn/group-chat-backend/internal/config"
	"github.com/tbourn/group-chat-backend/internal/domain"
)

// Transport sends one encrypted payload to one subscription and returns the
// push service's HTTP status. err is non-nil only when no response was
// obtained.
type Transport interface {
	Send(ctx context.Context, sub *domain.PushSubscription, payload []byte) (status int, err error)
}

// WebPushTransport signs requests with the server's VAPID key pair and
// encrypts payloads per subscription (RFC 8291, aes128gcm).
type WebPushTransport struct {
	Client     webpush.HTTPClient
	PublicKey  string
	PrivateKey string
	// Subscriber is the VAPID "sub" contact, an email address or https URL.
	Subscriber string
	TTL        time.Duration
	Urgency    webpush.Urgency
}

// NewWebPushTransport builds a transport from push configuration. A nil
// client defaults to one bounded by cfg.Timeout.
func NewWebPushTransport(cfg config.PushConfig, client webpush.HTTPClient) *WebPushTransport {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &WebPushTransport{
		Client:     client,
		PublicKey:  cfg.VAPIDPublicKey,
		PrivateKey: cfg.VAPIDPrivateKey,
		Subscriber: subscriber(cfg.Subject),
		TTL:        cfg.TTL,
		Urgency:    webpush.UrgencyNormal,
	}
}

// Send implements Transport.
func (t *WebPushTransport) Send(ctx context.Context, sub *domain.PushSubscription, payload []byte) (int, error) {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			Auth:   sub.AuthToken,
			P256dh: sub.PublicKey,
		},
	}, &webpush.Options{
		HTTPClient:      t.Client,
		Subscriber:      t.Subscriber,
		TTL:             int(t.TTL / time.Second),
		Urgency:         t.Urgency,
		VAPIDPublicKey:  t.PublicKey,
		VAPIDPrivateKey: t.PrivateKey,
	})
	if err != nil {
		if isNetworkErr(err) {
			return 0, err
		}
		// Failures before the request is sent come from key decoding or
		// payload encryption.
		return 0, fmt.Errorf("%w: %v", ErrInvalidSubscription, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	return resp.StatusCode, nil
}

// subscriber strips the "mailto:" scheme; the library adds it back for
// anything that is not an https URL.
func subscriber(subject string) string {
	return strings.TrimPrefix(strings.TrimSpace(subject), "mailto:")
}

func isNetworkErr(err error) bool {
	var uerr *url.Error
	var nerr net.Error
	return errors.As(err, &uerr) || errors.As(err, &nerr) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

// GenerateVAPIDKeys returns a fresh base64url VAPID key pair.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	privateKey, publicKey, err = webpush.GenerateVAPIDKeys()
	return publicKey, privateKey, err
}
