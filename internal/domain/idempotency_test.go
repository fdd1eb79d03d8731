package domain

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func TestIdempotency_TableName(t *testing.T) {
	if got := (Idempotency{}).TableName(); got != "idempotency" {
		t.Fatalf("TableName() = %q; want %q", got, "idempotency")
	}
}

func TestIdempotency_Migration_UniqueScopeKey(t *testing.T) {
	db := newTestDB(t)
	if err := db.AutoMigrate(&Idempotency{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()
	if !m.HasIndex(&Idempotency{}, "ux_user_scope_key") {
		t.Fatalf("expected composite index ux_user_scope_key to exist")
	}

	now := time.Now().UTC()
	first := &Idempotency{ID: "a", UserID: "u1", Scope: "inspection.create", Key: "k1", ResourceID: "i1", Status: 201, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := db.Create(first).Error; err != nil {
		t.Fatalf("insert first: %v", err)
	}

	// Same key under a different scope is a different operation.
	other := &Idempotency{ID: "b", UserID: "u1", Scope: "repair.create:i1", Key: "k1", ResourceID: "r1", Status: 201, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := db.Create(other).Error; err != nil {
		t.Fatalf("insert other scope: %v", err)
	}

	// Same (user, scope, key) is rejected.
	dup := &Idempotency{ID: "c", UserID: "u1", Scope: "inspection.create", Key: "k1", ResourceID: "i2", Status: 201, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := db.Create(dup).Error; err == nil {
		t.Fatalf("expected unique violation on (user_id, scope, key)")
	}
}
