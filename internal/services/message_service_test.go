package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/group-chat-backend/internal/domain"
	"github.com/tbourn/group-chat-backend/internal/queue"
	"github.com/tbourn/group-chat-backend/internal/repo"
)

// recordingQueue captures enqueued jobs.
type recordingQueue struct {
	mu   sync.Mutex
	jobs []queue.Job
	err  error
}

func (q *recordingQueue) Enqueue(_ context.Context, job queue.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *recordingQueue) Close(context.Context) error { return nil }

func (q *recordingQueue) messageIDs() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(q.jobs))
	for _, j := range q.jobs {
		out = append(out, j.MessageID)
	}
	return out
}

// dbChatRepo routes ChatRepo calls to the real repository functions.
type dbChatRepo struct{}

func (dbChatRepo) CreateChatRoom(ctx context.Context, db *gorm.DB, title, slug, creatorID string) (*domain.ChatRoom, error) {
	return repo.CreateChatRoom(ctx, db, title, slug, creatorID)
}
func (dbChatRepo) SlugsWithPrefix(ctx context.Context, db *gorm.DB, base string) ([]string, error) {
	return repo.SlugsWithPrefix(ctx, db, base)
}
func (dbChatRepo) GetChatRoom(ctx context.Context, db *gorm.DB, id string) (*domain.ChatRoom, error) {
	return repo.GetChatRoom(ctx, db, id)
}
func (dbChatRepo) GetChatRoomBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.ChatRoom, error) {
	return repo.GetChatRoomBySlug(ctx, db, slug)
}
func (dbChatRepo) CountMemberChats(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	return repo.CountMemberChats(ctx, db, userID)
}
func (dbChatRepo) ListMemberChatsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.ChatRoom, error) {
	return repo.ListMemberChatsPage(ctx, db, userID, offset, limit)
}
func (dbChatRepo) SetChatRoomActive(ctx context.Context, db *gorm.DB, id string, active bool) error {
	return repo.SetChatRoomActive(ctx, db, id, active)
}
func (dbChatRepo) AddMember(ctx context.Context, db *gorm.DB, chatID, userID string) (bool, error) {
	return repo.AddMember(ctx, db, chatID, userID)
}
func (dbChatRepo) RemoveMember(ctx context.Context, db *gorm.DB, chatID, userID string) (bool, error) {
	return repo.RemoveMember(ctx, db, chatID, userID)
}
func (dbChatRepo) IsMember(ctx context.Context, db *gorm.DB, chatID, userID string) (bool, error) {
	return repo.IsMember(ctx, db, chatID, userID)
}

// seedRoom creates a room owned by creator with the extra members joined.
func seedRoom(t *testing.T, db *gorm.DB, creator string, members ...string) string {
	t.Helper()
	ctx := context.Background()
	room, err := NewChatService(db, dbChatRepo{}).Create(ctx, creator, "Room")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, m := range members {
		if _, err := repo.AddMember(ctx, db, room.ID, m); err != nil {
			t.Fatalf("AddMember: %v", err)
		}
	}
	return room.ID
}

func newMessageService(db *gorm.DB, q queue.Queue) *MessageService {
	return NewMessageService(db, q, zerolog.Nop())
}

func TestPost_PersistsAndEnqueues(t *testing.T) {
	db := newSvcDB(t)
	q := &recordingQueue{}
	s := newMessageService(db, q)
	chatID := seedRoom(t, db, "alice", "bob")

	msg, err := s.Post(context.Background(), "alice", chatID, "  hello bob  ")
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if msg.Content != "hello bob" || msg.UserID != "alice" || msg.ChatRoomID != chatID {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if ids := q.messageIDs(); len(ids) != 1 || ids[0] != msg.ID {
		t.Fatalf("expected one job for %s, got %v", msg.ID, ids)
	}
}

func TestPost_Validation(t *testing.T) {
	db := newSvcDB(t)
	s := newMessageService(db, &recordingQueue{})
	s.MaxContentRunes = 5
	chatID := seedRoom(t, db, "alice")
	ctx := context.Background()

	if _, err := s.Post(ctx, "alice", chatID, " \n\t "); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}
	if _, err := s.Post(ctx, "alice", chatID, "ééééééé"); !errors.Is(err, ErrTooLong) {
		t.Fatalf("expected ErrTooLong, got %v", err)
	}
	if _, err := s.Post(ctx, "alice", chatID, "ééééé"); err != nil {
		t.Fatalf("5 runes should fit: %v", err)
	}
	if _, err := s.Post(ctx, "alice", "missing", "hi"); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound, got %v", err)
	}
	if _, err := s.Post(ctx, "mallory", chatID, "hi"); !errors.Is(err, ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}
}

func TestPost_InactiveRoomRejected(t *testing.T) {
	db := newSvcDB(t)
	q := &recordingQueue{}
	s := newMessageService(db, q)
	chatID := seedRoom(t, db, "alice")
	if err := repo.SetChatRoomActive(context.Background(), db, chatID, false); err != nil {
		t.Fatalf("SetChatRoomActive: %v", err)
	}
	if _, err := s.Post(context.Background(), "alice", chatID, "hi"); !errors.Is(err, ErrChatInactive) {
		t.Fatalf("expected ErrChatInactive, got %v", err)
	}
	if len(q.messageIDs()) != 0 {
		t.Fatalf("no job expected for rejected post")
	}
}

func TestPost_EnqueueFailureDoesNotFailWrite(t *testing.T) {
	db := newSvcDB(t)
	s := newMessageService(db, &recordingQueue{err: queue.ErrFull})
	chatID := seedRoom(t, db, "alice")

	msg, err := s.Post(context.Background(), "alice", chatID, "still stored")
	if err != nil {
		t.Fatalf("Post should succeed despite enqueue failure: %v", err)
	}
	if _, err := repo.GetMessage(context.Background(), db, msg.ID); err != nil {
		t.Fatalf("message not persisted: %v", err)
	}
}

func TestPost_NilQueue(t *testing.T) {
	db := newSvcDB(t)
	s := newMessageService(db, nil)
	chatID := seedRoom(t, db, "alice")
	if _, err := s.Post(context.Background(), "alice", chatID, "hi"); err != nil {
		t.Fatalf("Post: %v", err)
	}
}

func TestPostIdempotent_ReplaysWithoutSecondFanout(t *testing.T) {
	db := newSvcDB(t)
	q := &recordingQueue{}
	s := newMessageService(db, q)
	chatID := seedRoom(t, db, "alice")
	ctx := context.Background()

	first, replayed, err := s.PostIdempotent(ctx, "alice", chatID, "key-1", "hello")
	if err != nil || replayed {
		t.Fatalf("first PostIdempotent = %v, %v", replayed, err)
	}
	second, replayed, err := s.PostIdempotent(ctx, "alice", chatID, "key-1", "hello again")
	if err != nil || !replayed {
		t.Fatalf("second PostIdempotent = %v, %v", replayed, err)
	}
	if second.ID != first.ID || second.Content != "hello" {
		t.Fatalf("expected replay of %s, got %+v", first.ID, second)
	}
	if n, _ := repo.CountMessages(ctx, db, chatID); n != 1 {
		t.Fatalf("expected 1 stored message, got %d", n)
	}
	if ids := q.messageIDs(); len(ids) != 1 {
		t.Fatalf("expected one fan-out job, got %v", ids)
	}

	third, replayed, err := s.PostIdempotent(ctx, "alice", chatID, "key-2", "new")
	if err != nil || replayed || third.ID == first.ID {
		t.Fatalf("different key should post: %+v %v %v", third, replayed, err)
	}
}

func TestListPage_MembersOnlyOldestFirst(t *testing.T) {
	db := newSvcDB(t)
	s := newMessageService(db, nil)
	chatID := seedRoom(t, db, "alice", "bob")
	ctx := context.Background()

	for _, c := range []string{"one", "two", "three"} {
		if _, err := s.Post(ctx, "bob", chatID, c); err != nil {
			t.Fatalf("Post: %v", err)
		}
	}
	items, total, err := s.ListPage(ctx, "alice", chatID, 0, 0)
	if err != nil || total != 3 || len(items) != 3 {
		t.Fatalf("ListPage = %d items, total %d, %v", len(items), total, err)
	}
	var got []string
	for _, m := range items {
		got = append(got, m.Content)
	}
	if strings.Join(got, ",") != "one,two,three" {
		t.Fatalf("unexpected order: %v", got)
	}

	items, _, _ = s.ListPage(ctx, "alice", chatID, 2, 2)
	if len(items) != 1 || items[0].Content != "three" {
		t.Fatalf("unexpected page 2: %+v", items)
	}

	if _, _, err := s.ListPage(ctx, "mallory", chatID, 1, 10); !errors.Is(err, ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}
	if _, _, err := s.ListPage(ctx, "alice", "missing", 1, 10); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound, got %v", err)
	}

	empty := seedRoom(t, db, "alice")
	items, total, err = s.ListPage(ctx, "alice", empty, 1, 10)
	if err != nil || total != 0 || len(items) != 0 {
		t.Fatalf("empty room ListPage = %v, %d, %v", items, total, err)
	}
}

func TestStats(t *testing.T) {
	db := newSvcDB(t)
	s := newMessageService(db, nil)
	chatID := seedRoom(t, db, "alice")
	ctx := context.Background()

	if _, err := s.Post(ctx, "alice", chatID, "hi"); err != nil {
		t.Fatalf("Post: %v", err)
	}
	n, last, err := s.Stats(ctx, "alice", chatID)
	if err != nil || n != 1 || last == nil {
		t.Fatalf("Stats = %d, %v, %v", n, last, err)
	}
	if _, _, err := s.Stats(ctx, "mallory", chatID); !errors.Is(err, ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}
}
