package repo

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/leaktrack-backend/internal/domain"
)

type fixtures struct {
	LineID      string
	ModelID     string
	LeakageID   string
	MachineID   string
	TesterID    string
	OtherID     string
	RepairmanID string
}

// seedFixtures inserts one product line with a model, a leakage type, a
// machine and three profiles.
func seedFixtures(t *testing.T, db *gorm.DB) fixtures {
	t.Helper()
	ctx := context.Background()

	pl, err := CreateProductLine(ctx, db, "EXC", "Excavators")
	if err != nil {
		t.Fatalf("CreateProductLine: %v", err)
	}
	m, err := CreateModel(ctx, db, pl.ID, "EX200", "EX 200")
	if err != nil {
		t.Fatalf("CreateModel: %v", err)
	}
	lt, err := CreateLeakageType(ctx, db, pl.ID, "HYD", "Hydraulic")
	if err != nil {
		t.Fatalf("CreateLeakageType: %v", err)
	}
	mc, _, err := FindOrCreateMachine(ctx, db, "CH-001", m.ID)
	if err != nil {
		t.Fatalf("FindOrCreateMachine: %v", err)
	}
	for id, name := range map[string]string{"tester-1": "Tess Tester", "tester-2": "Otto Other", "rep-1": "Rae Repair"} {
		if _, err := EnsureProfile(ctx, db, id, name); err != nil {
			t.Fatalf("EnsureProfile: %v", err)
		}
	}
	return fixtures{
		LineID:      pl.ID,
		ModelID:     m.ID,
		LeakageID:   lt.ID,
		MachineID:   mc.ID,
		TesterID:    "tester-1",
		OtherID:     "tester-2",
		RepairmanID: "rep-1",
	}
}

func seedInspection(t *testing.T, db *gorm.DB, fx fixtures, id, severity, status string, at time.Time) *domain.InspectionRecord {
	t.Helper()
	rec := &domain.InspectionRecord{
		ID:        id,
		MachineID: fx.MachineID,
		TesterID:  fx.TesterID,
		Severity:  severity,
		Status:    status,
		CreatedAt: at,
	}
	if severity != domain.SeverityNone {
		lt := fx.LeakageID
		rec.LeakageTypeID = &lt
	}
	if err := CreateInspection(context.Background(), db, rec); err != nil {
		t.Fatalf("CreateInspection: %v", err)
	}
	return rec
}
