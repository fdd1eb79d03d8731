package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/leaktrack-backend/internal/domain"
)

// UserRow is a profile joined with its assigned role, if any.
type UserRow struct {
	ID        string    `json:"id"`
	FullName  string    `json:"full_name"`
	Role      *string   `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// GetProfile fetches a profile by user id or returns ErrNotFound.
func GetProfile(ctx context.Context, db *gorm.DB, id string) (*domain.Profile, error) {
	var p domain.Profile
	if err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// EnsureProfile inserts a profile for id unless one exists, then returns the
// stored row. An existing profile with an empty name picks up fullName.
func EnsureProfile(ctx context.Context, db *gorm.DB, id, fullName string) (*domain.Profile, error) {
	p := &domain.Profile{ID: id, FullName: fullName, CreatedAt: time.Now().UTC()}
	if err := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(p).Error; err != nil {
		return nil, err
	}
	got, err := GetProfile(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if got.FullName == "" && fullName != "" {
		if err := db.WithContext(ctx).Model(got).Update("full_name", fullName).Error; err != nil {
			return nil, err
		}
		got.FullName = fullName
	}
	return got, nil
}

// GetRole returns the role assigned to userID or ErrNotFound.
func GetRole(ctx context.Context, db *gorm.DB, userID string) (string, error) {
	var ur domain.UserRole
	if err := db.WithContext(ctx).Where("user_id = ?", userID).First(&ur).Error; err != nil {
		return "", err
	}
	return ur.Role, nil
}

// SetRole assigns role to userID, replacing any previous assignment.
func SetRole(ctx context.Context, db *gorm.DB, userID, role string) error {
	now := time.Now().UTC()
	ur := &domain.UserRole{UserID: userID, Role: role, CreatedAt: now, UpdatedAt: now}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"role", "updated_at"}),
		}).
		Create(ur).Error
}

// ListUsers returns every profile with its role, ordered by name.
func ListUsers(ctx context.Context, db *gorm.DB) ([]UserRow, error) {
	var out []UserRow
	err := db.WithContext(ctx).
		Table("profiles AS p").
		Select("p.id, p.full_name, r.role, p.created_at").
		Joins("LEFT JOIN user_roles AS r ON r.user_id = p.id").
		Order("p.full_name asc, p.id asc").
		Scan(&out).Error
	return out, err
}
