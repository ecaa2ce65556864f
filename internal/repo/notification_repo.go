package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/group-chat-backend/internal/domain"
)

// InsertNotificationIfAbsent writes n unless a notification for the same
// (message_id, user_id) already exists. created is false on conflict, in which
// case n is left as passed and the stored row should be loaded with
// GetNotificationForMessage.
func InsertNotificationIfAbsent(ctx context.Context, db *gorm.DB, n *domain.Notification) (created bool, err error) {
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(n)
	if res.Error != nil {
		if IsDuplicate(res.Error) {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// GetNotificationForMessage loads the notification userID received for messageID.
func GetNotificationForMessage(ctx context.Context, db *gorm.DB, messageID, userID string) (*domain.Notification, error) {
	var n domain.Notification
	err := db.WithContext(ctx).
		Where("message_id = ? AND user_id = ?", messageID, userID).
		First(&n).Error
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// CountNotifications counts userID's notifications, optionally unread only.
func CountNotifications(ctx context.Context, db *gorm.DB, userID string, unreadOnly bool) (int64, error) {
	var total int64
	err := notificationsQuery(ctx, db, userID, unreadOnly).Count(&total).Error
	return total, err
}

// ListNotificationsPage returns a page of userID's notifications, newest first.
func ListNotificationsPage(ctx context.Context, db *gorm.DB, userID string, unreadOnly bool, offset, limit int) ([]domain.Notification, error) {
	var out []domain.Notification
	err := notificationsQuery(ctx, db, userID, unreadOnly).
		Order("created_at desc, id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// MarkNotificationRead sets read_at on an unread notification owned by userID.
// Marking an already-read notification is a no-op. ErrNotFound is returned
// when the notification does not exist or belongs to someone else.
func MarkNotificationRead(ctx context.Context, db *gorm.DB, userID, id string, now time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("id = ? AND user_id = ? AND read_at IS NULL", id, userID).
		Update("read_at", now)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var n int64
	if err := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkAllNotificationsRead marks every unread notification of userID as read
// and returns how many changed.
func MarkAllNotificationsRead(ctx context.Context, db *gorm.DB, userID string, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Update("read_at", now)
	return res.RowsAffected, res.Error
}

// NotificationsStats returns the count of userID's notifications and the
// number of unread ones, for ETag derivation.
func NotificationsStats(ctx context.Context, db *gorm.DB, userID string) (total, unread int64, err error) {
	if total, err = CountNotifications(ctx, db, userID, false); err != nil {
		return 0, 0, err
	}
	if unread, err = CountNotifications(ctx, db, userID, true); err != nil {
		return 0, 0, err
	}
	return total, unread, nil
}

func notificationsQuery(ctx context.Context, db *gorm.DB, userID string, unreadOnly bool) *gorm.DB {
	q := db.WithContext(ctx).Model(&domain.Notification{}).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("read_at IS NULL")
	}
	return q
}
