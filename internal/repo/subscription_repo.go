package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/group-chat-backend/internal/domain"
)

// UpsertPushSubscription inserts sub or, when (user_id, endpoint) already
// exists, updates its keys and raw blob in place. It returns the stored row,
// whose ID is the pre-existing one on update.
func UpsertPushSubscription(ctx context.Context, db *gorm.DB, sub *domain.PushSubscription) (*domain.PushSubscription, error) {
	now := time.Now().UTC()
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.ContentEncoding == "" {
		sub.ContentEncoding = "aes128gcm"
	}
	sub.CreatedAt, sub.UpdatedAt = now, now

	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"public_key", "auth_token", "content_encoding", "raw", "updated_at"}),
		}).
		Create(sub).Error
	if err != nil {
		return nil, err
	}

	var stored domain.PushSubscription
	if err := db.WithContext(ctx).
		Where("user_id = ? AND endpoint = ?", sub.UserID, sub.Endpoint).
		First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// DeletePushSubscription removes userID's subscription for endpoint.
func DeletePushSubscription(ctx context.Context, db *gorm.DB, userID, endpoint string) (bool, error) {
	res := db.WithContext(ctx).
		Where("user_id = ? AND endpoint = ?", userID, endpoint).
		Delete(&domain.PushSubscription{})
	return res.RowsAffected > 0, res.Error
}

// DeletePushSubscriptionByID removes a subscription by primary key.
func DeletePushSubscriptionByID(ctx context.Context, db *gorm.DB, id string) (bool, error) {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.PushSubscription{})
	return res.RowsAffected > 0, res.Error
}

// ListPushSubscriptions returns every subscription owned by userID, oldest first.
func ListPushSubscriptions(ctx context.Context, db *gorm.DB, userID string) ([]domain.PushSubscription, error) {
	var out []domain.PushSubscription
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at asc, id asc").
		Find(&out).Error
	return out, err
}
