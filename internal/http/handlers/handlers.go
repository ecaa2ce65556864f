package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/group-chat-backend/internal/domain"
	"github.com/tbourn/group-chat-backend/internal/http/middleware"
	"github.com/tbourn/group-chat-backend/internal/push"
	"github.com/tbourn/group-chat-backend/internal/utils"
)

// ChatService is the chat-room surface used by the handlers.
type ChatService interface {
	Create(ctx context.Context, creatorID, title string) (*domain.ChatRoom, error)
	Get(ctx context.Context, userID, chatID string) (*domain.ChatRoom, error)
	GetBySlug(ctx context.Context, userID, slug string) (*domain.ChatRoom, error)
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.ChatRoom, int64, error)
	Stats(ctx context.Context, userID string) (int64, *time.Time, error)
	Join(ctx context.Context, userID, chatID string) (*domain.ChatRoom, error)
	Leave(ctx context.Context, userID, chatID string) error
	Deactivate(ctx context.Context, userID, chatID string) error
}

// MessageService is the message surface used by the handlers.
type MessageService interface {
	Post(ctx context.Context, authorID, chatID, content string) (*domain.Message, error)
	PostIdempotent(ctx context.Context, authorID, chatID, key, content string) (*domain.Message, bool, error)
	ListPage(ctx context.Context, userID, chatID string, page, pageSize int) ([]domain.Message, int64, error)
	Stats(ctx context.Context, userID, chatID string) (int64, *time.Time, error)
}

// NotificationService is the in-app notification surface.
type NotificationService interface {
	ListPage(ctx context.Context, userID string, unreadOnly bool, page, pageSize int) ([]domain.Notification, int64, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	Stats(ctx context.Context, userID string) (total, unread int64, err error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

// PushRegistry stores browser push subscriptions.
type PushRegistry interface {
	Upsert(ctx context.Context, userID string, in push.SubscriptionInput) (string, error)
	Remove(ctx context.Context, userID, endpoint string) (bool, error)
	ListForUser(ctx context.Context, userID string) ([]domain.PushSubscription, error)
}

// Deps are the services the handlers are built from.
type Deps struct {
	Chats         ChatService
	Messages      MessageService
	Notifications NotificationService
	Push          PushRegistry
	// VAPIDPublicKey is echoed to browsers; empty means push is disabled.
	VAPIDPublicKey string
	// MaxContentRunes is enforced at the edge before the service sees the
	// body. Zero means 4000.
	MaxContentRunes int
}

// Handlers groups all API endpoints.
type Handlers struct {
	chatSvc  ChatService
	msgSvc   MessageService
	notifSvc NotificationService
	pushReg  PushRegistry

	vapidPublicKey  string
	maxContentRunes int
}

// New builds Handlers from d.
func New(d Deps) *Handlers {
	max := d.MaxContentRunes
	if max <= 0 {
		max = 4000
	}
	return &Handlers{
		chatSvc:         d.Chats,
		msgSvc:          d.Messages,
		notifSvc:        d.Notifications,
		pushReg:         d.Push,
		vapidPublicKey:  d.VAPIDPublicKey,
		maxContentRunes: max,
	}
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := utils.TotalPages(total, pageSize)
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

func clampPagination(c *gin.Context) (page, pageSize int) {
	return utils.ClampPage(c.Query("page"), c.Query("page_size"))
}

// notModified sets a weak ETag and reports whether If-None-Match matched.
func notModified(c *gin.Context, kind, scope string, count int64, ts *time.Time) bool {
	var unix int64
	if ts != nil {
		unix = ts.UnixNano()
	}
	etag := fmt.Sprintf(`W/"%s:%s:%d:%d"`, kind, scope, count, unix)
	c.Header("ETag", etag)
	return c.GetHeader("If-None-Match") == etag
}

// validID reports whether the path parameter is a UUID.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func userID(c *gin.Context) string { return middleware.UserID(c) }
