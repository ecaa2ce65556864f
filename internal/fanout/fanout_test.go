package fanout

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tbourn/group-chat-backend/internal/config"
	"github.com/tbourn/group-chat-backend/internal/domain"
	"github.com/tbourn/group-chat-backend/internal/repo"
)

func newFanoutDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), fmt.Sprintf("fanout_%d.db", time.Now().UnixNano()))
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

// seedChat creates users named after their IDs, a room created by the first
// one, memberships for all of them and a message from author.
func seedChat(t *testing.T, db *gorm.DB, author string, members ...string) *domain.Message {
	t.Helper()
	ctx := context.Background()
	require.NotEmpty(t, members)
	for _, id := range members {
		require.NoError(t, repo.UpsertUser(ctx, db, id, id))
	}
	room, err := repo.CreateChatRoom(ctx, db, "Room", fmt.Sprintf("room-%d", time.Now().UnixNano()), members[0])
	require.NoError(t, err)
	for _, id := range members {
		_, err := repo.AddMember(ctx, db, room.ID, id)
		require.NoError(t, err)
	}
	msg, err := repo.CreateMessage(ctx, db, room.ID, author, "hello")
	require.NoError(t, err)
	return msg
}

func countNotifications(t *testing.T, db *gorm.DB, messageID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&domain.Notification{}).Where("message_id = ?", messageID).Count(&n).Error)
	return n
}
