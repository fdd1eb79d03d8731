package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/leaktrack-backend/internal/domain"
)

// InspectionFilter narrows inspection queries. Zero fields are ignored and
// set fields are ANDed. The time range is half-open: From <= created_at < To.
type InspectionFilter struct {
	TesterID string
	Statuses []string
	From     *time.Time
	To       *time.Time

	// DelayedBefore keeps only delayed inspections: stored Delayed, or
	// Pending and created before the cutoff.
	DelayedBefore *time.Time
}

func (f InspectionFilter) apply(q *gorm.DB) *gorm.DB {
	if f.TesterID != "" {
		q = q.Where("tester_id = ?", f.TesterID)
	}
	switch len(f.Statuses) {
	case 0:
	case 1:
		q = q.Where("status = ?", f.Statuses[0])
	default:
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", f.From.UTC())
	}
	if f.To != nil {
		q = q.Where("created_at < ?", f.To.UTC())
	}
	if f.DelayedBefore != nil {
		q = q.Where("(status = ? OR (status = ? AND created_at < ?))",
			domain.StatusDelayed, domain.StatusPending, f.DelayedBefore.UTC())
	}
	return q
}

// withInspectionDetail preloads everything a detail or export view renders.
func withInspectionDetail(q *gorm.DB) *gorm.DB {
	return q.
		Preload("Machine.Model.ProductLine").
		Preload("LeakageType").
		Preload("Tester")
}

// CreateInspection inserts rec, assigning an id and UTC timestamps when unset.
func CreateInspection(ctx context.Context, db *gorm.DB, rec *domain.InspectionRecord) error {
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

// GetInspection fetches an inspection with machine, catalog, tester and
// repair history preloaded. Repairs are ordered oldest first.
func GetInspection(ctx context.Context, db *gorm.DB, id string) (*domain.InspectionRecord, error) {
	var rec domain.InspectionRecord
	err := withInspectionDetail(db.WithContext(ctx)).
		Preload("Repairs", func(tx *gorm.DB) *gorm.DB { return tx.Order("created_at asc") }).
		Preload("Repairs.Repairman").
		Where("id = ?", id).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetInspectionStatus returns only the stored status of an inspection.
func GetInspectionStatus(ctx context.Context, db *gorm.DB, id string) (string, error) {
	var rec domain.InspectionRecord
	err := db.WithContext(ctx).Select("id", "status").Where("id = ?", id).First(&rec).Error
	return rec.Status, err
}

// CountInspections returns the number of inspections matching f.
func CountInspections(ctx context.Context, db *gorm.DB, f InspectionFilter) (int64, error) {
	var total int64
	err := f.apply(db.WithContext(ctx).Model(&domain.InspectionRecord{})).Count(&total).Error
	return total, err
}

// ListInspectionsPage returns a page of inspections matching f, newest first,
// with detail relations preloaded. Use CountInspections for the total.
func ListInspectionsPage(ctx context.Context, db *gorm.DB, f InspectionFilter, offset, limit int) ([]domain.InspectionRecord, error) {
	var out []domain.InspectionRecord
	err := withInspectionDetail(f.apply(db.WithContext(ctx))).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListInspectionsForReport returns up to limit inspections matching f, newest
// first, with detail relations preloaded. limit <= 0 means no limit.
func ListInspectionsForReport(ctx context.Context, db *gorm.DB, f InspectionFilter, limit int) ([]domain.InspectionRecord, error) {
	var out []domain.InspectionRecord
	q := withInspectionDetail(f.apply(db.WithContext(ctx))).Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// ListRepairQueue returns inspections awaiting repair (stored Pending or
// Delayed), oldest first.
func ListRepairQueue(ctx context.Context, db *gorm.DB, limit int) ([]domain.InspectionRecord, error) {
	var out []domain.InspectionRecord
	q := withInspectionDetail(db.WithContext(ctx)).
		Where("status IN ?", []string{domain.StatusPending, domain.StatusDelayed}).
		Order("created_at asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// MarkInspectionCompleted moves an inspection to Completed. It reports false
// when the inspection does not exist or was already Completed, which lets a
// caller inside a transaction detect a lost race between two repairs.
func MarkInspectionCompleted(ctx context.Context, db *gorm.DB, id string) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.InspectionRecord{}).
		Where("id = ? AND status <> ?", id, domain.StatusCompleted).
		Updates(map[string]any{
			"status":     domain.StatusCompleted,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
