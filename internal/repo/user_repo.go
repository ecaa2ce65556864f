package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/group-chat-backend/internal/domain"
)

// UpsertUser records the identity behind a request. An empty name never
// overwrites a stored one.
func UpsertUser(ctx context.Context, db *gorm.DB, id, name string) error {
	now := time.Now().UTC()
	u := &domain.User{ID: id, Name: name, CreatedAt: now, UpdatedAt: now}

	onConflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}
	if name != "" {
		onConflict = clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
		}
	}
	return db.WithContext(ctx).Clauses(onConflict).Create(u).Error
}

// GetUser fetches a user by ID.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUsers loads the users with the given IDs. Unknown IDs are skipped.
func GetUsers(ctx context.Context, db *gorm.DB, ids []string) ([]domain.User, error) {
	if len(ids) == 0 {
		return []domain.User{}, nil
	}
	var out []domain.User
	err := db.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error
	return out, err
}
