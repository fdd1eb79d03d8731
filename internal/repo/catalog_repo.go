// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the product
// catalog: product lines, models and leakage types.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business logic, only CRUD persistence and query composition.
//
// Error semantics:
//   - Missing rows yield ErrNotFound (gorm.ErrRecordNotFound).
//   - Unique (code) collisions on create yield ErrDuplicate.
//   - Other DB errors are propagated unchanged.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/leaktrack-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ListProductLines returns all product lines ordered by code.
func ListProductLines(ctx context.Context, db *gorm.DB) ([]domain.ProductLine, error) {
	var out []domain.ProductLine
	err := db.WithContext(ctx).Order("code asc").Find(&out).Error
	return out, err
}

// GetProductLine fetches a product line by id or returns ErrNotFound.
func GetProductLine(ctx context.Context, db *gorm.DB, id string) (*domain.ProductLine, error) {
	var pl domain.ProductLine
	if err := db.WithContext(ctx).Where("id = ?", id).First(&pl).Error; err != nil {
		return nil, err
	}
	return &pl, nil
}

// CreateProductLine inserts a product line. Codes are unique.
func CreateProductLine(ctx context.Context, db *gorm.DB, code, name string) (*domain.ProductLine, error) {
	now := time.Now().UTC()
	pl := &domain.ProductLine{ID: uuid.NewString(), Code: code, Name: name, CreatedAt: now, UpdatedAt: now}
	if err := db.WithContext(ctx).Create(pl).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return pl, nil
}

// ListModels returns the models of a product line ordered by code.
func ListModels(ctx context.Context, db *gorm.DB, productLineID string) ([]domain.Model, error) {
	var out []domain.Model
	err := db.WithContext(ctx).
		Where("product_line_id = ?", productLineID).
		Order("code asc").
		Find(&out).Error
	return out, err
}

// GetModel fetches a model with its product line, or returns ErrNotFound.
func GetModel(ctx context.Context, db *gorm.DB, id string) (*domain.Model, error) {
	var m domain.Model
	if err := db.WithContext(ctx).Preload("ProductLine").Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateModel inserts a model under productLineID. Codes are unique per line.
func CreateModel(ctx context.Context, db *gorm.DB, productLineID, code, name string) (*domain.Model, error) {
	now := time.Now().UTC()
	m := &domain.Model{ID: uuid.NewString(), ProductLineID: productLineID, Code: code, Name: name, CreatedAt: now, UpdatedAt: now}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return m, nil
}

// ListLeakageTypes returns the leakage types of a product line ordered by code.
func ListLeakageTypes(ctx context.Context, db *gorm.DB, productLineID string) ([]domain.LeakageType, error) {
	var out []domain.LeakageType
	err := db.WithContext(ctx).
		Where("product_line_id = ?", productLineID).
		Order("code asc").
		Find(&out).Error
	return out, err
}

// GetLeakageType fetches a leakage type by id or returns ErrNotFound.
func GetLeakageType(ctx context.Context, db *gorm.DB, id string) (*domain.LeakageType, error) {
	var lt domain.LeakageType
	if err := db.WithContext(ctx).Where("id = ?", id).First(&lt).Error; err != nil {
		return nil, err
	}
	return &lt, nil
}

// CreateLeakageType inserts a leakage type under productLineID. Codes are
// unique per line.
func CreateLeakageType(ctx context.Context, db *gorm.DB, productLineID, code, name string) (*domain.LeakageType, error) {
	now := time.Now().UTC()
	lt := &domain.LeakageType{ID: uuid.NewString(), ProductLineID: productLineID, Code: code, Name: name, CreatedAt: now, UpdatedAt: now}
	if err := db.WithContext(ctx).Create(lt).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return lt, nil
}
