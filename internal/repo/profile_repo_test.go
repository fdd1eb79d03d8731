package repo

import (
	"context"
	"errors"
	"testing"
)

func TestEnsureProfile_InsertOnceAndBackfillName(t *testing.T) {
	db := newMigratedDB(t)
	ctx := context.Background()

	p, err := EnsureProfile(ctx, db, "u1", "")
	if err != nil || p.ID != "u1" || p.FullName != "" {
		t.Fatalf("EnsureProfile = %+v, %v", p, err)
	}
	p, err = EnsureProfile(ctx, db, "u1", "Una User")
	if err != nil || p.FullName != "Una User" {
		t.Fatalf("expected name backfill, got %+v, %v", p, err)
	}
	// An existing name is kept.
	p, err = EnsureProfile(ctx, db, "u1", "Someone Else")
	if err != nil || p.FullName != "Una User" {
		t.Fatalf("expected name to be kept, got %+v, %v", p, err)
	}

	var n int64
	db.Table("profiles").Count(&n)
	if n != 1 {
		t.Fatalf("expected one profile row, got %d", n)
	}
}

func TestRoles_SetGetAndList(t *testing.T) {
	db := newMigratedDB(t)
	ctx := context.Background()

	if _, err := GetRole(ctx, db, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unassigned user, got %v", err)
	}

	for id, name := range map[string]string{"u1": "Bea", "u2": "Al"} {
		if _, err := EnsureProfile(ctx, db, id, name); err != nil {
			t.Fatalf("EnsureProfile: %v", err)
		}
	}
	if err := SetRole(ctx, db, "u1", "tester"); err != nil {
		t.Fatalf("SetRole: %v", err)
	}
	if err := SetRole(ctx, db, "u1", "repairman"); err != nil {
		t.Fatalf("SetRole replace: %v", err)
	}
	role, err := GetRole(ctx, db, "u1")
	if err != nil || role != "repairman" {
		t.Fatalf("GetRole = %q, %v", role, err)
	}
	if err := SetRole(ctx, db, "u1", "superuser"); err == nil {
		t.Fatalf("expected CHECK violation for unknown role")
	}

	users, err := ListUsers(ctx, db)
	if err != nil || len(users) != 2 {
		t.Fatalf("ListUsers = %+v, %v", users, err)
	}
	if users[0].ID != "u2" || users[0].Role != nil {
		t.Fatalf("expected Al first without role, got %+v", users[0])
	}
	if users[1].Role == nil || *users[1].Role != "repairman" {
		t.Fatalf("expected Bea with role repairman, got %+v", users[1])
	}
}
