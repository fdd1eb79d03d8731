package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/leaktrack-backend/internal/domain"
)

// GetSession returns the stored session of userID or ErrNotFound.
func GetSession(ctx context.Context, db *gorm.DB, userID string) (*domain.Session, error) {
	var s domain.Session
	if err := db.WithContext(ctx).Where("user_id = ?", userID).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// UpsertSession records role as the selected role of userID.
func UpsertSession(ctx context.Context, db *gorm.DB, userID, role string) (*domain.Session, error) {
	now := time.Now().UTC()
	s := &domain.Session{UserID: userID, SelectedRole: role, CreatedAt: now, UpdatedAt: now}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"selected_role", "updated_at"}),
		}).
		Create(s).Error
	if err != nil {
		return nil, err
	}
	return s, nil
}

// DeleteSession clears the session of userID. Deleting a missing session is
// not an error.
func DeleteSession(ctx context.Context, db *gorm.DB, userID string) error {
	return db.WithContext(ctx).Where("user_id = ?", userID).Delete(&domain.Session{}).Error
}
