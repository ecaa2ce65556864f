package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/group-chat-backend/internal/domain"
	"github.com/tbourn/group-chat-backend/internal/repo"
)

// Store persists in-app notifications.
type Store struct {
	DB  *gorm.DB
	Now func() time.Time
}

// NewStore returns a Store using the wall clock.
func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db, Now: func() time.Time { return time.Now().UTC() }}
}

// CreateNotification stores the notification for (msg, recipientID). When one
// already exists it is returned with created=false; a conflict is success.
func (s *Store) CreateNotification(ctx context.Context, recipientID string, msg *domain.Message, r Rendered) (n *domain.Notification, created bool, err error) {
	data, err := json.Marshal(r.Payload)
	if err != nil {
		return nil, false, fmt.Errorf("encode payload: %w", err)
	}
	chatID, messageID := msg.ChatRoomID, msg.ID
	n = &domain.Notification{
		ID:         uuid.NewString(),
		UserID:     recipientID,
		Type:       domain.NotificationTypeNewMessage,
		Title:      r.Title,
		Body:       r.Body,
		Data:       datatypes.JSON(data),
		ChatRoomID: &chatID,
		MessageID:  &messageID,
		CreatedAt:  s.now(),
	}

	created, err = repo.InsertNotificationIfAbsent(ctx, s.DB, n)
	if err != nil {
		notificationsCreated.WithLabelValues("error").Inc()
		return nil, false, err
	}
	if created {
		notificationsCreated.WithLabelValues("created").Inc()
		return n, true, nil
	}

	notificationsCreated.WithLabelValues("exists").Inc()
	existing, err := repo.GetNotificationForMessage(ctx, s.DB, messageID, recipientID)
	if err != nil {
		return nil, false, fmt.Errorf("load existing notification: %w", err)
	}
	return existing, false, nil
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}
