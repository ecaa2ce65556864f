package push

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tbourn/group-chat-backend/internal/config"
	"github.com/tbourn/group-chat-backend/internal/domain"
	"github.com/tbourn/group-chat-backend/internal/repo"
)

func newPushDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), fmt.Sprintf("push_%d.db", time.Now().UnixNano()))
	db, err := repo.OpenDB(config.DBConfig{Driver: "sqlite", Path: path})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	require.NoError(t, repo.AutoMigrate(db))
	return db
}

func TestRegistry_UpsertSameEndpointKeepsOneRowWithLatestKeys(t *testing.T) {
	db := newPushDB(t)
	reg := NewRegistry(db, zerolog.Nop())
	ctx := context.Background()
	endpoint := "https://push.example.com/send/abc"

	id1, err := reg.Upsert(ctx, "bob", SubscriptionInput{Endpoint: endpoint, PublicKey: "p1", AuthSecret: "a1"})
	require.NoError(t, err)
	id2, err := reg.Upsert(ctx, "bob", SubscriptionInput{Endpoint: endpoint, PublicKey: "p2", AuthSecret: "a2", Raw: []byte(`{"endpoint":"x"}`)})
	require.NoError(t, err)
	assert.Equal(t, id1, id2, "re-registering updates in place")

	var count int64
	require.NoError(t, db.Model(&domain.PushSubscription{}).Where("user_id = ?", "bob").Count(&count).Error)
	assert.EqualValues(t, 1, count)

	subs, err := reg.ListForUser(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "p2", subs[0].PublicKey)
	assert.Equal(t, "a2", subs[0].AuthToken)
	assert.Equal(t, "aes128gcm", subs[0].ContentEncoding)
}

func TestRegistry_SameEndpointDifferentUsersAreSeparate(t *testing.T) {
	db := newPushDB(t)
	reg := NewRegistry(db, zerolog.Nop())
	ctx := context.Background()
	endpoint := "https://push.example.com/send/shared"

	a, err := reg.Upsert(ctx, "alice", SubscriptionInput{Endpoint: endpoint, PublicKey: "p", AuthSecret: "a"})
	require.NoError(t, err)
	b, err := reg.Upsert(ctx, "bob", SubscriptionInput{Endpoint: endpoint, PublicKey: "p", AuthSecret: "a"})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	removed, err := reg.Remove(ctx, "alice", endpoint)
	require.NoError(t, err)
	assert.True(t, removed)

	subs, _ := reg.ListForUser(ctx, "bob")
	assert.Len(t, subs, 1, "bob's row is untouched")
}

func TestRegistry_RemoveAndInvalidate(t *testing.T) {
	db := newPushDB(t)
	reg := NewRegistry(db, zerolog.Nop())
	ctx := context.Background()

	removed, err := reg.Remove(ctx, "bob", "https://push.example.com/none")
	require.NoError(t, err)
	assert.False(t, removed, "missing subscription is not an error")

	id, err := reg.Upsert(ctx, "bob", SubscriptionInput{Endpoint: "https://push.example.com/1", PublicKey: "p", AuthSecret: "a"})
	require.NoError(t, err)
	require.NoError(t, reg.Invalidate(ctx, id))
	assert.ErrorIs(t, reg.Invalidate(ctx, id), ErrSubscriptionNotFound)

	subs, err := reg.ListForUser(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestRegistry_UpsertRejectsInvalidInput(t *testing.T) {
	reg := NewRegistry(newPushDB(t), zerolog.Nop())
	ctx := context.Background()

	_, err := reg.Upsert(ctx, "bob", SubscriptionInput{Endpoint: "ftp://x", PublicKey: "p", AuthSecret: "a"})
	assert.ErrorIs(t, err, ErrInvalidSubscription)

	_, err = reg.Upsert(ctx, "bob", SubscriptionInput{Endpoint: "https://push.example.com/1"})
	assert.ErrorIs(t, err, ErrInvalidSubscription)
}

func TestValidateEndpoint(t *testing.T) {
	ok := []string{
		"https://fcm.googleapis.com/fcm/send/abc",
		"http://localhost:8080/push",
		"http://127.0.0.1:9999/x",
	}
	for _, e := range ok {
		assert.NoError(t, ValidateEndpoint(e), e)
	}
	bad := []string{
		"",
		"not a url",
		"/relative/path",
		"http://push.example.com/x",
		"https://" + strings.Repeat("a", 500) + ".com",
	}
	for _, e := range bad {
		assert.ErrorIs(t, ValidateEndpoint(e), ErrInvalidSubscription, e)
	}
}

func TestEndpointHost(t *testing.T) {
	assert.Equal(t, "push.example.com", EndpointHost("https://push.example.com/secret/token"))
	assert.Equal(t, "invalid", EndpointHost("::"))
}
