package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/group-chat-backend/internal/domain"
	"github.com/tbourn/group-chat-backend/internal/repo"
	"github.com/tbourn/group-chat-backend/internal/utils"
)

// NotificationService exposes a user's notification inbox.
type NotificationService struct {
	DB  *gorm.DB
	Now func() time.Time
}

// NewNotificationService returns a NotificationService using the wall clock.
func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{DB: db, Now: func() time.Time { return time.Now().UTC() }}
}

// ListPage returns a page of userID's notifications, newest first.
func (s *NotificationService) ListPage(ctx context.Context, userID string, unreadOnly bool, page, pageSize int) ([]domain.Notification, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	total, err := repo.CountNotifications(ctx, s.DB, userID, unreadOnly)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Notification{}, 0, nil
	}
	items, err := repo.ListNotificationsPage(ctx, s.DB, userID, unreadOnly, utils.Offset(page, pageSize), pageSize)
	return items, total, err
}

// UnreadCount returns how many of userID's notifications are unread.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return repo.CountNotifications(ctx, s.DB, userID, true)
}

// Stats returns total and unread counts for ETag derivation.
func (s *NotificationService) Stats(ctx context.Context, userID string) (total, unread int64, err error) {
	return repo.NotificationsStats(ctx, s.DB, userID)
}

// MarkRead marks one notification read. Read state only moves forward, so
// repeating the call succeeds without changing read_at. Notifications owned
// by someone else are reported as ErrNotificationNotFound.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	err := repo.MarkNotificationRead(ctx, s.DB, userID, id, s.now())
	return mapNotFound(err, ErrNotificationNotFound)
}

// MarkAllRead marks every unread notification of userID read and reports how
// many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return repo.MarkAllNotificationsRead(ctx, s.DB, userID, s.now())
}

func (s *NotificationService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}
