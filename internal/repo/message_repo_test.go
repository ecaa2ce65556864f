package repo

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/group-chat-backend/internal/domain"
)

func TestCreateAndGetMessage(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	r, _ := CreateChatRoom(ctx, db, "Room", "room", "u1")

	m, err := CreateMessage(ctx, db, r.ID, "u1", "hello")
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if m.ID == "" || m.ChatRoomID != r.ID || m.UserID != "u1" || m.Content != "hello" {
		t.Fatalf("unexpected message: %+v", m)
	}
	got, err := GetMessage(ctx, db, m.ID)
	if err != nil || got.Content != "hello" {
		t.Fatalf("GetMessage: %+v %v", got, err)
	}
	if _, err := GetMessage(ctx, db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListMessagesPage_OrderAndCount(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	r, _ := CreateChatRoom(ctx, db, "Room", "room", "u1")

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	msgs := []domain.Message{
		{ID: "m3", ChatRoomID: r.ID, UserID: "u1", Content: "third", CreatedAt: base.Add(2 * time.Second)},
		{ID: "m1", ChatRoomID: r.ID, UserID: "u1", Content: "first", CreatedAt: base},
		{ID: "m2", ChatRoomID: r.ID, UserID: "u2", Content: "second", CreatedAt: base.Add(time.Second)},
	}
	if err := db.Create(&msgs).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	total, err := CountMessages(ctx, db, r.ID)
	if err != nil || total != 3 {
		t.Fatalf("CountMessages = %d, %v", total, err)
	}
	page, err := ListMessagesPage(ctx, db, r.ID, 0, 2)
	if err != nil {
		t.Fatalf("ListMessagesPage: %v", err)
	}
	if len(page) != 2 || page[0].ID != "m1" || page[1].ID != "m2" {
		t.Fatalf("unexpected page: %+v", page)
	}
	page, _ = ListMessagesPage(ctx, db, r.ID, 2, 2)
	if len(page) != 1 || page[0].ID != "m3" {
		t.Fatalf("unexpected last page: %+v", page)
	}
}

func TestCountMessages_ErrorWithoutTable(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "empty.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if _, err := CountMessages(context.Background(), db, "c1"); err == nil {
		t.Fatalf("expected error on missing table")
	}
}
