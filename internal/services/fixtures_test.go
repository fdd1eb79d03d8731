package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/leaktrack-backend/internal/domain"
	"github.com/tbourn/leaktrack-backend/internal/repo"
)

// refNow is the fixed clock used across service tests.
var refNow = time.Date(2026, 3, 18, 14, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return refNow }

// newTestDB returns a migrated per-test in-memory database. A single
// connection keeps every query on the same in-memory schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return db
}

type catalogFixture struct {
	LineID      string
	ModelID     string
	LeakageID   string
	OtherLineID string
	OtherLeakID string
}

// seedCatalog inserts two product lines, one model and one leakage type per
// line.
func seedCatalog(t *testing.T, db *gorm.DB) catalogFixture {
	t.Helper()
	ctx := context.Background()
	pl, err := repo.CreateProductLine(ctx, db, "EXC", "Excavators")
	if err != nil {
		t.Fatalf("CreateProductLine: %v", err)
	}
	m, err := repo.CreateModel(ctx, db, pl.ID, "EX200", "EX 200")
	if err != nil {
		t.Fatalf("CreateModel: %v", err)
	}
	lt, err := repo.CreateLeakageType(ctx, db, pl.ID, "HYD", "Hydraulic")
	if err != nil {
		t.Fatalf("CreateLeakageType: %v", err)
	}
	other, err := repo.CreateProductLine(ctx, db, "WHL", "Wheel loaders")
	if err != nil {
		t.Fatalf("CreateProductLine: %v", err)
	}
	olt, err := repo.CreateLeakageType(ctx, db, other.ID, "OIL", "Engine oil")
	if err != nil {
		t.Fatalf("CreateLeakageType: %v", err)
	}
	return catalogFixture{
		LineID:      pl.ID,
		ModelID:     m.ID,
		LeakageID:   lt.ID,
		OtherLineID: other.ID,
		OtherLeakID: olt.ID,
	}
}

func strPtr(s string) *string { return &s }

// submit stores an inspection through InspectionService and fails the test
// on error.
func submit(t *testing.T, s *InspectionService, tester string, in InspectionInput) *InspectionView {
	t.Helper()
	v, err := s.Submit(context.Background(), tester, "Tess Tester", in)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return v
}

// backdate moves an inspection's created_at; updated_at is left alone.
func backdate(t *testing.T, db *gorm.DB, id string, at time.Time) {
	t.Helper()
	if err := db.Model(&domain.InspectionRecord{}).Where("id = ?", id).UpdateColumn("created_at", at).Error; err != nil {
		t.Fatalf("backdate: %v", err)
	}
}
