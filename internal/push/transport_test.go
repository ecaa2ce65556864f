package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/group-chat-backend/internal/config"
	"github.com/tbourn/group-chat-backend/internal/domain"
)

// browserKeys returns a p256dh/auth pair shaped like the ones a browser
// hands out from PushManager.subscribe.
func browserKeys(t *testing.T) (p256dh, auth string) {
	t.Helper()
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	secret := make([]byte, 16)
	_, err = rand.Read(secret)
	require.NoError(t, err)
	return base64.RawURLEncoding.EncodeToString(priv.PublicKey().Bytes()),
		base64.RawURLEncoding.EncodeToString(secret)
}

func newTestTransport(t *testing.T) *WebPushTransport {
	t.Helper()
	pub, priv, err := GenerateVAPIDKeys()
	require.NoError(t, err)
	return NewWebPushTransport(config.PushConfig{
		VAPIDPublicKey:  pub,
		VAPIDPrivateKey: priv,
		Subject:         "mailto:ops@example.com",
		Timeout:         2 * time.Second,
		TTL:             12 * time.Hour,
	}, nil)
}

func TestWebPushTransport_SendsEncryptedSignedRequest(t *testing.T) {
	var (
		mu   sync.Mutex
		got  *http.Request
		body []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		got = r.Clone(context.Background())
		body, _ = io.ReadAll(r.Body)
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	p256dh, auth := browserKeys(t)
	tr := newTestTransport(t)
	status, err := tr.Send(context.Background(), &domain.PushSubscription{
		Endpoint:  srv.URL + "/push/abc",
		PublicKey: p256dh,
		AuthToken: auth,
	}, []byte(`{"title":"New message from Alice"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, OutcomeDelivered, Classify(status, err))

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, got)
	assert.Equal(t, "/push/abc", got.URL.Path)
	assert.Equal(t, "aes128gcm", got.Header.Get("Content-Encoding"))
	assert.Equal(t, "43200", got.Header.Get("TTL"))
	assert.Equal(t, "normal", got.Header.Get("Urgency"))
	assert.True(t, strings.HasPrefix(got.Header.Get("Authorization"), "vapid t="))
	assert.NotContains(t, string(body), "New message from Alice", "payload must be encrypted")
}

func TestWebPushTransport_ReportsGoneStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	p256dh, auth := browserKeys(t)
	status, err := newTestTransport(t).Send(context.Background(), &domain.PushSubscription{
		Endpoint: srv.URL, PublicKey: p256dh, AuthToken: auth,
	}, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, OutcomePruned, Classify(status, err))
}

func TestWebPushTransport_NetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	p256dh, auth := browserKeys(t)
	status, err := newTestTransport(t).Send(context.Background(), &domain.PushSubscription{
		Endpoint: url, PublicKey: p256dh, AuthToken: auth,
	}, []byte(`{}`))
	require.Error(t, err)
	assert.Equal(t, OutcomeTransient, Classify(status, err))
}

func TestWebPushTransport_BadKeysAreRejected(t *testing.T) {
	status, err := newTestTransport(t).Send(context.Background(), &domain.PushSubscription{
		Endpoint: "https://push.example.com/x", PublicKey: "not-a-key", AuthToken: "%%%",
	}, []byte(`{}`))
	assert.ErrorIs(t, err, ErrInvalidSubscription)
	assert.Equal(t, OutcomeRejected, Classify(status, err))
}

func TestSubscriberStripsMailto(t *testing.T) {
	assert.Equal(t, "ops@example.com", subscriber(" mailto:ops@example.com "))
	assert.Equal(t, "https://example.com/contact", subscriber("https://example.com/contact"))
}
