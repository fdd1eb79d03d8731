package repo

import (
	"context"
	"errors"
	"testing"
)

func TestSession_Lifecycle(t *testing.T) {
	db := newMigratedDB(t)
	ctx := context.Background()

	if _, err := GetSession(ctx, db, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before role pick, got %v", err)
	}

	if _, err := UpsertSession(ctx, db, "u1", "tester"); err != nil {
		t.Fatalf("UpsertSession: %v", err)
	}
	if _, err := UpsertSession(ctx, db, "u1", "repairman"); err != nil {
		t.Fatalf("UpsertSession replace: %v", err)
	}
	s, err := GetSession(ctx, db, "u1")
	if err != nil || s.SelectedRole != "repairman" {
		t.Fatalf("GetSession = %+v, %v", s, err)
	}

	if err := DeleteSession(ctx, db, "u1"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, err := GetSession(ctx, db, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after sign-out, got %v", err)
	}
	// Idempotent.
	if err := DeleteSession(ctx, db, "u1"); err != nil {
		t.Fatalf("DeleteSession twice: %v", err)
	}
}
