// Package domain defines the persistence models for users, chat rooms,
// memberships, messages, notifications and push subscriptions. These types
// are mapped with GORM and form the core data layer of the group chat backend.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationTypeNewMessage tags notifications produced by message fan-out.
const NotificationTypeNewMessage = "new_message"

// User is the minimal identity record the chat core needs: a stable ID and a
// display name. Rows are upserted from the authenticated request identity.
type User struct {
	ID        string    `json:"id"         gorm:"type:varchar(64);primaryKey"`
	Name      string    `json:"name"       gorm:"type:varchar(120);not null;default:''"`
	Email     *string   `json:"email,omitempty" gorm:"type:varchar(255)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// DisplayName returns the name to show for a user, falling back to the ID.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.ID
}

// ChatRoom represents a group conversation.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Title: human-readable title given at creation.
//   - Slug: URL-safe unique identifier derived from the title. It is assigned
//     once at creation (collisions resolved with -1, -2, ...) and never changes.
//   - CreatorID: user who created the room; only the creator may deactivate it.
//   - Active: inactive rooms reject new messages.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type ChatRoom struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Title     string    `json:"title"      gorm:"type:varchar(255);not null;default:'New chat'"`
	Slug      string    `json:"slug"       gorm:"type:varchar(160);not null;uniqueIndex:ux_chat_rooms_slug"`
	CreatorID string    `json:"creator_id" gorm:"type:varchar(64);not null;index"`
	Active    bool      `json:"active"     gorm:"not null;default:true"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for ChatRoom.
func (ChatRoom) TableName() string { return "chat_rooms" }

// ChatMember is the timestamped N-N link between users and chat rooms.
type ChatMember struct {
	ChatRoomID string    `json:"chat_room_id" gorm:"type:char(36);primaryKey"`
	UserID     string    `json:"user_id"      gorm:"type:varchar(64);primaryKey;index"`
	JoinedAt   time.Time `json:"joined_at"`

	ChatRoom ChatRoom `json:"-" gorm:"foreignKey:ChatRoomID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ChatMember.
func (ChatMember) TableName() string { return "chat_members" }

// Message is a single post in a chat room. Messages are created once and never
// edited; deleting the room removes its messages.
type Message struct {
	ID         string    `json:"id"           gorm:"type:char(36);primaryKey"`
	ChatRoomID string    `json:"chat_room_id" gorm:"type:char(36);not null;index:idx_room_msgs,priority:1"`
	UserID     string    `json:"user_id"      gorm:"type:varchar(64);not null;index"`
	Content    string    `json:"content"      gorm:"type:text;not null"`
	CreatedAt  time.Time `json:"created_at"   gorm:"index:idx_room_msgs,priority:2"`
	UpdatedAt  time.Time `json:"updated_at"`

	ChatRoom ChatRoom `json:"-" gorm:"foreignKey:ChatRoomID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Notification is a durable per-recipient in-app notification.
//
// At most one notification exists per (message, recipient): the pair is
// guarded by the ux_notifications_message_user unique index so that fan-out
// retries are idempotent. ReadAt moves from nil to a timestamp exactly once.
type Notification struct {
	ID         string         `json:"id"                     gorm:"type:char(36);primaryKey"`
	UserID     string         `json:"user_id"                gorm:"type:varchar(64);not null;index:idx_user_notifications,priority:1;uniqueIndex:ux_notifications_message_user,priority:2"`
	Type       string         `json:"type"                   gorm:"type:varchar(32);not null"`
	Title      string         `json:"title"                  gorm:"type:varchar(255);not null"`
	Body       string         `json:"body"                   gorm:"type:text;not null"`
	Data       datatypes.JSON `json:"data"                   swaggertype:"object"`
	ChatRoomID *string        `json:"chat_room_id,omitempty" gorm:"type:char(36);index"`
	MessageID  *string        `json:"message_id,omitempty"   gorm:"type:char(36);uniqueIndex:ux_notifications_message_user,priority:1"`
	ReadAt     *time.Time     `json:"read_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"             gorm:"index:idx_user_notifications,priority:2"`
}

// TableName returns the database table name for Notification.
func (Notification) TableName() string { return "notifications" }

// IsRead reports whether the notification has been marked read.
func (n Notification) IsRead() bool { return n.ReadAt != nil }

// PushSubscription is a browser Web Push registration. Endpoint is a bearer
// capability for the push service and is unique per user.
type PushSubscription struct {
	ID              string         `json:"id"               gorm:"type:char(36);primaryKey"`
	UserID          string         `json:"user_id"          gorm:"type:varchar(64);not null;uniqueIndex:ux_push_user_endpoint,priority:1"`
	Endpoint        string         `json:"-"                gorm:"type:varchar(500);not null;uniqueIndex:ux_push_user_endpoint,priority:2"`
	PublicKey       string         `json:"-"                gorm:"type:varchar(255);not null"`
	AuthToken       string         `json:"-"                gorm:"type:varchar(255);not null"`
	ContentEncoding string         `json:"content_encoding" gorm:"type:varchar(32);not null;default:'aes128gcm'"`
	Raw             datatypes.JSON `json:"-"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// TableName returns the database table name for PushSubscription.
func (PushSubscription) TableName() string { return "push_subscriptions" }
