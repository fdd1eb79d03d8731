package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/leaktrack-backend/internal/domain"
)

// FindMachine looks up a machine by chassis number within a model, preloading
// Model.ProductLine. It returns ErrNotFound for an unregistered chassis.
func FindMachine(ctx context.Context, db *gorm.DB, chassis, modelID string) (*domain.Machine, error) {
	var m domain.Machine
	err := db.WithContext(ctx).
		Preload("Model.ProductLine").
		Where("chassis_number = ? AND model_id = ?", chassis, modelID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// FindOrCreateMachine returns the machine for (chassis, modelID), inserting
// it first when unseen. created reports whether a row was inserted. A
// concurrent insert of the same pair is resolved by re-reading the winner.
func FindOrCreateMachine(ctx context.Context, db *gorm.DB, chassis, modelID string) (m *domain.Machine, created bool, err error) {
	m, err = FindMachine(ctx, db, chassis, modelID)
	if err == nil {
		return m, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	now := time.Now().UTC()
	m = &domain.Machine{
		ID:            uuid.NewString(),
		ModelID:       modelID,
		ChassisNumber: chassis,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		if isUniqueViolation(err) {
			again, gerr := FindMachine(ctx, db, chassis, modelID)
			return again, false, gerr
		}
		return nil, false, err
	}
	return m, true, nil
}
