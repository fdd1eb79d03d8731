package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/leaktrack-backend/internal/domain"
)

// CreateRepair inserts rec, assigning an id and UTC timestamps when unset.
func CreateRepair(ctx context.Context, db *gorm.DB, rec *domain.RepairRecord) error {
	now := time.Now().UTC()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = rec.CreatedAt
	return db.WithContext(ctx).Create(rec).Error
}

// GetRepair fetches a repair by id or returns ErrNotFound.
func GetRepair(ctx context.Context, db *gorm.DB, id string) (*domain.RepairRecord, error) {
	var r domain.RepairRecord
	if err := db.WithContext(ctx).Preload("Repairman").Where("id = ?", id).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRepairsByInspection returns the repairs recorded for an inspection,
// oldest first.
func ListRepairsByInspection(ctx context.Context, db *gorm.DB, inspectionID string) ([]domain.RepairRecord, error) {
	var out []domain.RepairRecord
	err := db.WithContext(ctx).
		Where("inspection_id = ?", inspectionID).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// CountRepairsByRepairman returns the number of repairs filed by repairmanID.
func CountRepairsByRepairman(ctx context.Context, db *gorm.DB, repairmanID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.RepairRecord{}).
		Where("repairman_id = ?", repairmanID).
		Count(&total).Error
	return total, err
}

// ListRepairsByRepairmanPage returns a page of a repairman's history, newest
// first, with the inspected machine preloaded.
func ListRepairsByRepairmanPage(ctx context.Context, db *gorm.DB, repairmanID string, offset, limit int) ([]domain.RepairRecord, error) {
	var out []domain.RepairRecord
	err := db.WithContext(ctx).
		Preload("Inspection.Machine.Model").
		Preload("Inspection.LeakageType").
		Where("repairman_id = ?", repairmanID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
