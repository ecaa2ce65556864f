// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for chat rooms.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a room is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Functions:
//
//   - CreateChatRoom(ctx, db, title, slug, creatorID) -> *domain.ChatRoom, error
//     Inserts a new room with UUID primary key and UTC timestamp.
//
//   - SlugsWithPrefix(ctx, db, base) -> []string, error
//     Returns existing slugs equal to base or starting with "base-".
//
//   - GetChatRoom / GetChatRoomBySlug(ctx, db, key) -> *domain.ChatRoom, error
//     Fetches a single room, or ErrNotFound if missing.
//
//   - CountMemberChats / ListMemberChatsPage(ctx, db, userID, ...)
//     Rooms the user belongs to, newest first.
//
//   - SetChatRoomActive(ctx, db, id, active) -> error
//     Flips the active flag. Returns ErrNotFound if the room does not exist.
//
// This repository is wrapped by services.ChatService which enforces slug
// derivation, membership and creator-only rules.
package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/group-chat-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateChatRoom inserts a new active room. A unique violation on the slug is
// returned as-is so callers can detect it with IsDuplicate and retry.
func CreateChatRoom(ctx context.Context, db *gorm.DB, title, slug, creatorID string) (*domain.ChatRoom, error) {
	now := time.Now().UTC()
	r := &domain.ChatRoom{
		ID:        uuid.NewString(),
		Title:     title,
		Slug:      slug,
		CreatorID: creatorID,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, err
	}
	return r, nil
}

// SlugsWithPrefix returns every stored slug that equals base or looks like a
// numbered variant of it ("base-1", "base-2", ...).
func SlugsWithPrefix(ctx context.Context, db *gorm.DB, base string) ([]string, error) {
	var out []string
	err := db.WithContext(ctx).
		Model(&domain.ChatRoom{}).
		Where("slug = ? OR slug LIKE ?", base, escapeLike(base)+"-%").
		Pluck("slug", &out).Error
	return out, err
}

// GetChatRoom fetches a room by ID.
func GetChatRoom(ctx context.Context, db *gorm.DB, id string) (*domain.ChatRoom, error) {
	var r domain.ChatRoom
	if err := db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// GetChatRoomBySlug fetches a room by its slug.
func GetChatRoomBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.ChatRoom, error) {
	var r domain.ChatRoom
	if err := db.WithContext(ctx).Where("slug = ?", slug).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// CountMemberChats returns how many rooms userID belongs to.
func CountMemberChats(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := memberChatsQuery(ctx, db, userID).Count(&total).Error
	return total, err
}

// ListMemberChatsPage returns a page of the rooms userID belongs to, newest
// first. The caller computes offset and limit.
func ListMemberChatsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.ChatRoom, error) {
	var out []domain.ChatRoom
	err := memberChatsQuery(ctx, db, userID).
		Order("chat_rooms.created_at desc, chat_rooms.id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// SetChatRoomActive updates the active flag of a room.
func SetChatRoomActive(ctx context.Context, db *gorm.DB, id string, active bool) error {
	res := db.WithContext(ctx).
		Model(&domain.ChatRoom{}).
		Where("id = ?", id).
		Updates(map[string]any{"active": active, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func memberChatsQuery(ctx context.Context, db *gorm.DB, userID string) *gorm.DB {
	return db.WithContext(ctx).
		Model(&domain.ChatRoom{}).
		Joins("JOIN chat_members ON chat_members.chat_room_id = chat_rooms.id").
		Where("chat_members.user_id = ?", userID)
}

// escapeLike strips LIKE wildcards.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "%", "")
	return strings.ReplaceAll(s, "_", "")
}
