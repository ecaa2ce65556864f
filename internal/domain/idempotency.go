package domain

import "time"

// Idempotency records the message produced by a POST carrying an
// Idempotency-Key, scoped to (user_id, chat_room_id, key). A retried request
// with the same key replays the stored message instead of posting again, so
// fan-out is never triggered twice for one client action.
type Idempotency struct {
	ID         string    `gorm:"type:char(36);primaryKey"`
	UserID     string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_user_room_key,priority:1"`
	ChatRoomID string    `gorm:"type:char(36);not null;uniqueIndex:ux_user_room_key,priority:2"`
	Key        string    `gorm:"type:varchar(200);not null;uniqueIndex:ux_user_room_key,priority:3"`
	MessageID  string    `gorm:"type:char(36);not null"`
	Status     int       `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt  time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
