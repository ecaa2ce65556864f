package fanout

import (
	"context"
	"errors"
	"sort"

	"gorm.io/gorm"

	"github.com/tbourn/group-chat-backend/internal/domain"
	"github.com/tbourn/group-chat-backend/internal/repo"
)

// MembershipProvider lists the user IDs belonging to a room.
type MembershipProvider interface {
	GetMembers(ctx context.Context, chatID string) ([]string, error)
}

// DBMembers reads membership from the chat_members table.
type DBMembers struct {
	DB *gorm.DB
}

// GetMembers implements MembershipProvider.
func (m DBMembers) GetMembers(ctx context.Context, chatID string) ([]string, error) {
	return repo.ListMemberIDs(ctx, m.DB, chatID)
}

// Resolution is everything the coordinator needs to notify a message's
// audience.
type Resolution struct {
	Room       *domain.ChatRoom
	Author     *domain.User
	Recipients []string
}

// Resolver computes who gets notified about a message.
type Resolver struct {
	DB      *gorm.DB
	Members MembershipProvider
}

// NewResolver returns a Resolver reading membership from db.
func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{DB: db, Members: DBMembers{DB: db}}
}

// ResolveRecipients returns the room's members minus the author, sorted and
// without duplicates. A room with no other members yields an empty set. A
// missing room or author is a *DataIntegrityError.
func (r *Resolver) ResolveRecipients(ctx context.Context, msg *domain.Message) (*Resolution, error) {
	integrity := func(field string, err error) error {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = ErrMissingReference
		}
		return &DataIntegrityError{
			MessageID: msg.ID,
			ChatID:    msg.ChatRoomID,
			AuthorID:  msg.UserID,
			Field:     field,
			Err:       err,
		}
	}

	room, err := repo.GetChatRoom(ctx, r.DB, msg.ChatRoomID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, integrity("chat", err)
	}
	if err != nil {
		return nil, err
	}
	author, err := repo.GetUser(ctx, r.DB, msg.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, integrity("author", err)
	}
	if err != nil {
		return nil, err
	}

	members, err := r.Members.GetMembers(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(members))
	recipients := make([]string, 0, len(members))
	for _, id := range members {
		if id == "" || id == author.ID {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		recipients = append(recipients, id)
	}
	sort.Strings(recipients)

	return &Resolution{Room: room, Author: author, Recipients: recipients}, nil
}
