package repo

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/group-chat-backend/internal/domain"
)

func TestCreateChatRoom_PersistsAndSetsFields(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	start := time.Now().UTC().Add(-time.Minute)
	r, err := CreateChatRoom(ctx, db, "Test Chat", "test-chat", "u1")
	if err != nil {
		t.Fatalf("CreateChatRoom: %v", err)
	}
	if r.ID == "" || r.Slug != "test-chat" || r.CreatorID != "u1" || !r.Active {
		t.Fatalf("unexpected fields: %+v", r)
	}
	if r.CreatedAt.Before(start) {
		t.Fatalf("CreatedAt seems unset: %v", r.CreatedAt)
	}

	got, err := GetChatRoomBySlug(ctx, db, "test-chat")
	if err != nil || got.ID != r.ID {
		t.Fatalf("GetChatRoomBySlug: got=%+v err=%v", got, err)
	}
}

func TestCreateChatRoom_DuplicateSlug(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	if _, err := CreateChatRoom(ctx, db, "A", "a", "u1"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := CreateChatRoom(ctx, db, "A", "a", "u2")
	if err == nil || !IsDuplicate(err) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestSlugsWithPrefix(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	for _, s := range []string{"test-chat", "test-chat-1", "test-chat-2", "test-chatter", "other"} {
		if _, err := CreateChatRoom(ctx, db, s, s, "u1"); err != nil {
			t.Fatalf("create %s: %v", s, err)
		}
	}
	got, err := SlugsWithPrefix(ctx, db, "test-chat")
	if err != nil {
		t.Fatalf("SlugsWithPrefix: %v", err)
	}
	sort.Strings(got)
	want := []string{"test-chat", "test-chat-1", "test-chat-2"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestGetChatRoom_NotFound(t *testing.T) {
	db := newRepoDB(t)
	_, err := GetChatRoom(context.Background(), db, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListMemberChatsPage_OrderAndFilter(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	t1 := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	rooms := []domain.ChatRoom{
		{ID: "c1", Title: "one", Slug: "one", CreatorID: "u1", Active: true, CreatedAt: t1},
		{ID: "c2", Title: "two", Slug: "two", CreatorID: "u1", Active: true, CreatedAt: t1.Add(time.Hour)},
		{ID: "c3", Title: "three", Slug: "three", CreatorID: "u2", Active: true, CreatedAt: t1.Add(2 * time.Hour)},
	}
	if err := db.Create(&rooms).Error; err != nil {
		t.Fatalf("seed rooms: %v", err)
	}
	for _, m := range [][2]string{{"c1", "u1"}, {"c2", "u1"}, {"c3", "u2"}} {
		if _, err := AddMember(ctx, db, m[0], m[1]); err != nil {
			t.Fatalf("AddMember: %v", err)
		}
	}

	total, err := CountMemberChats(ctx, db, "u1")
	if err != nil || total != 2 {
		t.Fatalf("CountMemberChats = %d, %v; want 2", total, err)
	}
	page, err := ListMemberChatsPage(ctx, db, "u1", 0, 10)
	if err != nil {
		t.Fatalf("ListMemberChatsPage: %v", err)
	}
	if len(page) != 2 || page[0].ID != "c2" || page[1].ID != "c1" {
		t.Fatalf("unexpected order/filter: %+v", page)
	}
	page, _ = ListMemberChatsPage(ctx, db, "u1", 1, 1)
	if len(page) != 1 || page[0].ID != "c1" {
		t.Fatalf("unexpected second page: %+v", page)
	}
}

func TestSetChatRoomActive(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	r, _ := CreateChatRoom(ctx, db, "A", "a", "u1")

	if err := SetChatRoomActive(ctx, db, r.ID, false); err != nil {
		t.Fatalf("SetChatRoomActive: %v", err)
	}
	got, _ := GetChatRoom(ctx, db, r.ID)
	if got.Active {
		t.Fatalf("expected room inactive")
	}
	if err := SetChatRoomActive(ctx, db, "missing", false); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
