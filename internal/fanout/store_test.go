package fanout

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/group-chat-backend/internal/domain"
)

func TestStore_CreateNotification_Idempotent(t *testing.T) {
	db := newFanoutDB(t)
	ctx := context.Background()
	msg := seedChat(t, db, "a", "a", "b")
	room := &domain.ChatRoom{ID: msg.ChatRoomID, Title: "Room", Slug: "room"}
	r := Render(room, &domain.User{ID: "a", Name: "Alice"}, msg)
	s := NewStore(db)

	first, created, err := s.CreateNotification(ctx, "b", msg, r)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "b", first.UserID)
	assert.Equal(t, domain.NotificationTypeNewMessage, first.Type)
	assert.Equal(t, "New message from Alice", first.Title)
	require.NotNil(t, first.MessageID)
	assert.Equal(t, msg.ID, *first.MessageID)

	var payload Payload
	require.NoError(t, json.Unmarshal(first.Data, &payload))
	assert.Equal(t, msg.ID, payload.MessageID)
	assert.Equal(t, "/chats/room", payload.URL)

	again, created, err := s.CreateNotification(ctx, "b", msg, r)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID, "the stored row is returned on conflict")
	assert.Equal(t, int64(1), countNotifications(t, db, msg.ID))
}
