package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/leaktrack-backend/internal/domain"
)

// InspectionsStats returns the number of inspections matching f and the
// greatest UpdatedAt among them. When nothing matches, count is 0 and
// maxUpdatedAt is nil.
func InspectionsStats(ctx context.Context, db *gorm.DB, f InspectionFilter) (count int64, maxUpdatedAt *time.Time, err error) {
	return listStamp(f.apply(db.WithContext(ctx).Model(&domain.InspectionRecord{})))
}

// RepairsStats is InspectionsStats for a repairman's repair history.
func RepairsStats(ctx context.Context, db *gorm.DB, repairmanID string) (count int64, maxUpdatedAt *time.Time, err error) {
	return listStamp(db.WithContext(ctx).Model(&domain.RepairRecord{}).Where("repairman_id = ?", repairmanID))
}

// listStamp counts q and finds its newest updated_at. The pair changes
// whenever a row of the list is added or edited, which is what list ETags
// are built from.
func listStamp(q *gorm.DB) (int64, *time.Time, error) {
	var count int64
	if err := q.Session(&gorm.Session{}).Count(&count).Error; err != nil || count == 0 {
		return 0, nil, err
	}
	// ORDER BY rather than MAX(): SQLite returns MAX over datetimes as TEXT.
	var latest time.Time
	if err := q.Session(&gorm.Session{}).Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&latest).Error; err != nil {
		return 0, nil, err
	}
	return count, &latest, nil
}
