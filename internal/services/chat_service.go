// Package services – ChatService
//
// This file implements the ChatService, which manages the lifecycle of chat
// rooms. It normalizes titles, derives unique immutable slugs, enforces
// membership and creator-only rules, and coordinates repository operations
// for creating, listing (with pagination), joining, leaving and deactivating
// rooms.
//
// Service-level errors (e.g., ErrChatNotFound, ErrNotMember) are returned for
// predictable cases so handlers can map them to HTTP results consistently.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/group-chat-backend/internal/domain"
	"github.com/tbourn/group-chat-backend/internal/repo"
	"github.com/tbourn/group-chat-backend/internal/utils"
)

// ChatRepo defines the repository contract required by ChatService.
// Implementations are responsible for persistence of rooms and memberships.
type ChatRepo interface {
	// CreateChatRoom inserts a new active room.
	CreateChatRoom(ctx context.Context, db *gorm.DB, title, slug, creatorID string) (*domain.ChatRoom, error)

	// SlugsWithPrefix lists stored slugs equal to base or numbered variants of it.
	SlugsWithPrefix(ctx context.Context, db *gorm.DB, base string) ([]string, error)

	// GetChatRoom fetches a room by ID.
	GetChatRoom(ctx context.Context, db *gorm.DB, id string) (*domain.ChatRoom, error)

	// GetChatRoomBySlug fetches a room by slug.
	GetChatRoomBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.ChatRoom, error)

	// CountMemberChats returns the number of rooms the user belongs to.
	CountMemberChats(ctx context.Context, db *gorm.DB, userID string) (int64, error)

	// ListMemberChatsPage returns a page of the rooms the user belongs to.
	ListMemberChatsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.ChatRoom, error)

	// SetChatRoomActive flips the active flag.
	SetChatRoomActive(ctx context.Context, db *gorm.DB, id string, active bool) error

	// AddMember links a user to a room (no-op when already linked).
	AddMember(ctx context.Context, db *gorm.DB, chatID, userID string) (bool, error)

	// RemoveMember unlinks a user from a room.
	RemoveMember(ctx context.Context, db *gorm.DB, chatID, userID string) (bool, error)

	// IsMember reports whether the user belongs to the room.
	IsMember(ctx context.Context, db *gorm.DB, chatID, userID string) (bool, error)
}

// ChatService provides chat-room operations.
type ChatService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the chat repository used by this service.
	Repo ChatRepo

	// TitleMaxLen caps stored titles by rune length.
	TitleMaxLen int
	// SlugAttempts bounds retries when a concurrent insert claims the same slug.
	SlugAttempts int
}

// NewChatService constructs a ChatService with sane defaults.
func NewChatService(db *gorm.DB, r ChatRepo) *ChatService {
	return &ChatService{
		DB:           db,
		Repo:         r,
		TitleMaxLen:  120,
		SlugAttempts: 5,
	}
}

// Create inserts a new room created by creatorID and makes the creator its
// first member. The slug is derived from the title; collisions are resolved
// by appending -1, -2, ... inside a transaction, retrying when a concurrent
// create wins the same slug.
func (s *ChatService) Create(ctx context.Context, creatorID, title string) (*domain.ChatRoom, error) {
	ctx, span := otel.Tracer("services/ChatService").Start(ctx, "Create",
		trace.WithAttributes(attribute.String("user.id", creatorID)),
	)
	defer span.End()

	title = s.clip(normalizeTitle(title))
	if title == "" {
		title = "New chat"
	}
	base := Slugify(title)

	attempts := s.SlugAttempts
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		var room *domain.ChatRoom
		err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			taken, err := s.Repo.SlugsWithPrefix(ctx, tx, base)
			if err != nil {
				return err
			}
			r, err := s.Repo.CreateChatRoom(ctx, tx, title, nextSlug(base, taken), creatorID)
			if err != nil {
				return err
			}
			if _, err := s.Repo.AddMember(ctx, tx, r.ID, creatorID); err != nil {
				return err
			}
			room = r
			return nil
		})
		if err == nil {
			span.SetAttributes(attribute.String("chat.slug", room.Slug))
			return room, nil
		}
		if !repo.IsDuplicate(err) {
			return nil, err
		}
	}
	return nil, ErrSlugUnavailable
}

// Get returns a room the caller is a member of.
func (s *ChatService) Get(ctx context.Context, userID, chatID string) (*domain.ChatRoom, error) {
	room, err := s.Repo.GetChatRoom(ctx, s.DB, chatID)
	if err != nil {
		return nil, mapNotFound(err, ErrChatNotFound)
	}
	if err := s.requireMember(ctx, room.ID, userID); err != nil {
		return nil, err
	}
	return room, nil
}

// GetBySlug returns a room by slug if the caller is a member of it.
func (s *ChatService) GetBySlug(ctx context.Context, userID, slug string) (*domain.ChatRoom, error) {
	room, err := s.Repo.GetChatRoomBySlug(ctx, s.DB, strings.ToLower(strings.TrimSpace(slug)))
	if err != nil {
		return nil, mapNotFound(err, ErrChatNotFound)
	}
	if err := s.requireMember(ctx, room.ID, userID); err != nil {
		return nil, err
	}
	return room, nil
}

// ListPage returns a page of rooms the user belongs to (newest first).
// It applies defaults for invalid page/pageSize and returns total count.
func (s *ChatService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.ChatRoom, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := utils.Offset(page, pageSize)

	total, err := s.Repo.CountMemberChats(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.ChatRoom{}, 0, nil
	}

	items, err := s.Repo.ListMemberChatsPage(ctx, s.DB, userID, offset, pageSize)
	return items, total, err
}

// Stats returns how many rooms the user belongs to and the newest update
// among them. Handlers derive list ETags from it.
func (s *ChatService) Stats(ctx context.Context, userID string) (int64, *time.Time, error) {
	return repo.ChatsStats(ctx, s.DB, userID)
}

// Join adds userID to the room. Joining a room twice is a no-op. Inactive
// rooms accept no new members.
func (s *ChatService) Join(ctx context.Context, userID, chatID string) (*domain.ChatRoom, error) {
	room, err := s.Repo.GetChatRoom(ctx, s.DB, chatID)
	if err != nil {
		return nil, mapNotFound(err, ErrChatNotFound)
	}
	if !room.Active {
		return nil, ErrChatInactive
	}
	if _, err := s.Repo.AddMember(ctx, s.DB, room.ID, userID); err != nil {
		return nil, err
	}
	return room, nil
}

// Leave removes userID from the room.
func (s *ChatService) Leave(ctx context.Context, userID, chatID string) error {
	if _, err := s.Repo.GetChatRoom(ctx, s.DB, chatID); err != nil {
		return mapNotFound(err, ErrChatNotFound)
	}
	removed, err := s.Repo.RemoveMember(ctx, s.DB, chatID, userID)
	if err != nil {
		return err
	}
	if !removed {
		return ErrNotMember
	}
	return nil
}

// Deactivate marks a room inactive. Only its creator may do this.
func (s *ChatService) Deactivate(ctx context.Context, userID, chatID string) error {
	room, err := s.Repo.GetChatRoom(ctx, s.DB, chatID)
	if err != nil {
		return mapNotFound(err, ErrChatNotFound)
	}
	if room.CreatorID != userID {
		return ErrNotCreator
	}
	if !room.Active {
		return nil
	}
	return s.Repo.SetChatRoomActive(ctx, s.DB, room.ID, false)
}

func (s *ChatService) requireMember(ctx context.Context, chatID, userID string) error {
	ok, err := s.Repo.IsMember(ctx, s.DB, chatID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotMember
	}
	return nil
}

// clip truncates a chat title to the configured maximum rune length.
func (s *ChatService) clip(title string) string {
	if s.TitleMaxLen > 0 && utf8.RuneCountInString(title) > s.TitleMaxLen {
		return strings.TrimSpace(string([]rune(title)[:s.TitleMaxLen]))
	}
	return title
}

// normalizeTitle trims whitespace and collapses multiple spaces to one.
func normalizeTitle(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)

// mapNotFound converts a record-not-found error into the given sentinel.
func mapNotFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}
