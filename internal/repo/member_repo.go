package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/group-chat-backend/internal/domain"
)

// AddMember links userID to chatID. Joining twice is a no-op; added reports
// whether a new membership row was written.
func AddMember(ctx context.Context, db *gorm.DB, chatID, userID string) (added bool, err error) {
	m := &domain.ChatMember{ChatRoomID: chatID, UserID: userID, JoinedAt: time.Now().UTC()}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "chat_room_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(m)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RemoveMember deletes the membership row. removed is false when the user was
// not a member.
func RemoveMember(ctx context.Context, db *gorm.DB, chatID, userID string) (removed bool, err error) {
	res := db.WithContext(ctx).
		Where("chat_room_id = ? AND user_id = ?", chatID, userID).
		Delete(&domain.ChatMember{})
	return res.RowsAffected > 0, res.Error
}

// IsMember reports whether userID belongs to chatID.
func IsMember(ctx context.Context, db *gorm.DB, chatID, userID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.ChatMember{}).
		Where("chat_room_id = ? AND user_id = ?", chatID, userID).
		Count(&n).Error
	return n > 0, err
}

// ListMemberIDs returns the IDs of every member of chatID, in join order.
// This is the membership provider consumed by message fan-out.
func ListMemberIDs(ctx context.Context, db *gorm.DB, chatID string) ([]string, error) {
	var ids []string
	err := db.WithContext(ctx).
		Model(&domain.ChatMember{}).
		Where("chat_room_id = ?", chatID).
		Order("joined_at asc, user_id asc").
		Pluck("user_id", &ids).Error
	return ids, err
}
