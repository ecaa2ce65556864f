// Package services – MessageService
//
// MessageService owns the write path for chat messages. It validates content,
// enforces membership and the room's active flag, persists the message (and
// an idempotency record when the client supplied a key) in one transaction,
// and then hands a dispatch job to the queue so notification fan-out runs in
// the background. Fan-out problems never fail the post.
package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/group-chat-backend/internal/domain"
	"github.com/tbourn/group-chat-backend/internal/queue"
	"github.com/tbourn/group-chat-backend/internal/repo"
	"github.com/tbourn/group-chat-backend/internal/utils"
)

// errIdempotencyRace is raised inside the write transaction when a concurrent
// request stored the same key first.
var errIdempotencyRace = errors.New("idempotency key claimed concurrently")

// MessageService coordinates message persistence and fan-out scheduling.
type MessageService struct {
	DB    *gorm.DB
	Queue queue.Queue
	Log   zerolog.Logger

	// MaxContentRunes caps message length. Zero disables the check.
	MaxContentRunes int
	// IdempotencyTTL is how long an Idempotency-Key replays its message.
	IdempotencyTTL time.Duration
}

// NewMessageService builds a MessageService with a 4000-rune content cap and
// a 24h idempotency window.
func NewMessageService(db *gorm.DB, q queue.Queue, log zerolog.Logger) *MessageService {
	return &MessageService{
		DB:              db,
		Queue:           q,
		Log:             log,
		MaxContentRunes: 4000,
		IdempotencyTTL:  24 * time.Hour,
	}
}

// Post stores a message from authorID in chatID and schedules its fan-out.
func (s *MessageService) Post(ctx context.Context, authorID, chatID, content string) (*domain.Message, error) {
	msg, _, err := s.post(ctx, authorID, chatID, "", content)
	return msg, err
}

// PostIdempotent behaves like Post but replays the stored message when the
// same (author, chat, key) was already used within IdempotencyTTL. A replay
// does not schedule a second fan-out.
func (s *MessageService) PostIdempotent(ctx context.Context, authorID, chatID, key, content string) (msg *domain.Message, replayed bool, err error) {
	return s.post(ctx, authorID, chatID, strings.TrimSpace(key), content)
}

func (s *MessageService) post(ctx context.Context, authorID, chatID, key, content string) (*domain.Message, bool, error) {
	ctx, span := otel.Tracer("services/MessageService").Start(ctx, "Post",
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.String("user.id", authorID),
			attribute.Bool("idempotent", key != ""),
		),
	)
	defer span.End()

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, false, ErrEmptyContent
	}
	if s.MaxContentRunes > 0 && utf8.RuneCountInString(content) > s.MaxContentRunes {
		return nil, false, ErrTooLong
	}

	room, err := repo.GetChatRoom(ctx, s.DB, chatID)
	if err != nil {
		return nil, false, mapNotFound(err, ErrChatNotFound)
	}
	member, err := repo.IsMember(ctx, s.DB, room.ID, authorID)
	if err != nil {
		return nil, false, err
	}
	if !member {
		return nil, false, ErrNotMember
	}
	if !room.Active {
		return nil, false, ErrChatInactive
	}

	if key != "" {
		if prev, err := s.replay(ctx, authorID, room.ID, key); err != nil || prev != nil {
			return prev, prev != nil, err
		}
	}

	var msg *domain.Message
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := repo.CreateMessage(ctx, tx, room.ID, authorID, content)
		if err != nil {
			return err
		}
		if key != "" {
			_, err := repo.CreateIdempotency(ctx, tx, authorID, room.ID, key, m.ID, http.StatusCreated, s.ttl())
			if errors.Is(err, repo.ErrDuplicate) {
				return errIdempotencyRace
			}
			if err != nil {
				return err
			}
		}
		msg = m
		return nil
	})
	if errors.Is(err, errIdempotencyRace) {
		prev, rerr := s.replay(ctx, authorID, room.ID, key)
		if rerr != nil {
			return nil, false, rerr
		}
		if prev != nil {
			return prev, true, nil
		}
	}
	if err != nil {
		return nil, false, err
	}

	span.SetAttributes(attribute.String("message.id", msg.ID))
	s.schedule(ctx, msg)
	return msg, false, nil
}

// replay returns the message stored under key, or nil when the key is unused.
func (s *MessageService) replay(ctx context.Context, authorID, chatID, key string) (*domain.Message, error) {
	rec, err := repo.GetIdempotency(ctx, s.DB, authorID, chatID, key, time.Now().UTC())
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	msg, err := repo.GetMessage(ctx, s.DB, rec.MessageID)
	if err != nil {
		return nil, mapNotFound(err, ErrMessageNotFound)
	}
	return msg, nil
}

// schedule enqueues the fan-out job. The message is already committed, so a
// failure here is logged and swallowed.
func (s *MessageService) schedule(ctx context.Context, msg *domain.Message) {
	if s.Queue == nil {
		return
	}
	job := queue.NewJob(msg.ID)
	if err := s.Queue.Enqueue(context.WithoutCancel(ctx), job); err != nil {
		s.Log.Error().Err(err).
			Str("message_id", msg.ID).
			Str("chat_id", msg.ChatRoomID).
			Str("job_id", job.ID).
			Msg("enqueue fan-out job")
	}
}

func (s *MessageService) ttl() time.Duration {
	if s.IdempotencyTTL > 0 {
		return s.IdempotencyTTL
	}
	return 24 * time.Hour
}

// ListPage returns a page of a room's messages, oldest first. Only members
// may read a room.
func (s *MessageService) ListPage(ctx context.Context, userID, chatID string, page, pageSize int) ([]domain.Message, int64, error) {
	ctx, span := otel.Tracer("services/MessageService").Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := utils.Offset(page, pageSize)

	if err := s.requireReadable(ctx, userID, chatID); err != nil {
		return nil, 0, err
	}

	total, err := repo.CountMessages(ctx, s.DB, chatID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}
	items, err := repo.ListMessagesPage(ctx, s.DB, chatID, offset, pageSize)
	return items, total, err
}

// Stats returns the message count and newest timestamp of a room the caller
// belongs to. Handlers derive ETags from it.
func (s *MessageService) Stats(ctx context.Context, userID, chatID string) (int64, *time.Time, error) {
	if err := s.requireReadable(ctx, userID, chatID); err != nil {
		return 0, nil, err
	}
	return repo.MessagesStats(ctx, s.DB, chatID)
}

func (s *MessageService) requireReadable(ctx context.Context, userID, chatID string) error {
	if _, err := repo.GetChatRoom(ctx, s.DB, chatID); err != nil {
		return mapNotFound(err, ErrChatNotFound)
	}
	ok, err := repo.IsMember(ctx, s.DB, chatID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotMember
	}
	return nil
}
