package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/leaktrack-backend/internal/auth"
	"github.com/tbourn/leaktrack-backend/internal/config"
	"github.com/tbourn/leaktrack-backend/internal/domain"
	"github.com/tbourn/leaktrack-backend/internal/repo"
	"github.com/tbourn/leaktrack-backend/internal/report"
	"github.com/tbourn/leaktrack-backend/internal/services"
	"github.com/tbourn/leaktrack-backend/internal/storage"
)

// run executes the CLI with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file", ""}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func cliEnv(t *testing.T) string {
	t.Helper()
	origLogger, origLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() { log.Logger = origLogger; zerolog.SetGlobalLevel(origLevel) })

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "leaktrack.db")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", dbPath)
	t.Setenv("PHOTO_DIR", filepath.Join(dir, "photos"))
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("GIN_MODE", "test")
	t.Setenv("REPORT_TIMEZONE", "UTC")
	t.Setenv("AUTH_JWT_SECRET", "")
	return dbPath
}

func seed(t *testing.T, dbPath string) {
	t.Helper()
	db, err := repo.OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer closeDB(db)

	ctx := context.Background()
	pl, err := repo.CreateProductLine(ctx, db, "EXC", "Excavators")
	if err != nil {
		t.Fatalf("line: %v", err)
	}
	m, err := repo.CreateModel(ctx, db, pl.ID, "EX200", "EX 200")
	if err != nil {
		t.Fatalf("model: %v", err)
	}
	lt, err := repo.CreateLeakageType(ctx, db, pl.ID, "HYD", "Hydraulic")
	if err != nil {
		t.Fatalf("leakage type: %v", err)
	}
	svc := &services.InspectionService{DB: db, DelayThreshold: 48 * time.Hour}
	if _, err := svc.Submit(ctx, "tess", "Tess", services.InspectionInput{ChassisNumber: "CLI-1", ModelID: m.ID, Severity: domain.SeverityNone}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := svc.Submit(ctx, "tess", "Tess", services.InspectionInput{ChassisNumber: "CLI-2", ModelID: m.ID, LeakageTypeID: &lt.ID, Severity: domain.SeverityHigh}); err != nil {
		t.Fatalf("submit: %v", err)
	}
}

func TestCLI_MigrateOverviewExport(t *testing.T) {
	dbPath := cliEnv(t)

	if _, err := run(t, "migrate"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	seed(t, dbPath)

	out, err := run(t, "overview")
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	var ov services.Overview
	if err := json.Unmarshal([]byte(out), &ov); err != nil {
		t.Fatalf("overview output is not JSON: %v\n%s", err, out)
	}
	if ov.Summary.Status.Total != 2 || ov.Summary.Status.Completed != 1 || len(ov.Summary.TopLeakages) != 1 {
		t.Fatalf("summary = %+v", ov.Summary)
	}

	// A window entirely in the past is empty.
	out, err = run(t, "overview", "--to", "2000-01-01")
	if err != nil {
		t.Fatalf("overview --to: %v", err)
	}
	if err := json.Unmarshal([]byte(out), &ov); err != nil || ov.Summary.Status.Total != 0 {
		t.Fatalf("past window: err=%v total=%d", err, ov.Summary.Status.Total)
	}

	csvPath := filepath.Join(t.TempDir(), "out.csv")
	if _, err := run(t, "export", "--out", csvPath); err != nil {
		t.Fatalf("export: %v", err)
	}
	f, err := os.Open(csvPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 || strings.Join(rows[0], ",") != strings.Join(report.CSVHeader, ",") {
		t.Fatalf("csv rows = %v", rows)
	}

	out, err = run(t, "export", "--from", "yesterday")
	if err == nil {
		t.Fatalf("expected a range error, got output %q", out)
	}
}

func TestCLI_Token(t *testing.T) {
	cliEnv(t)

	if _, err := run(t, "token", "u1"); err == nil {
		t.Fatal("expected an error in dev mode")
	}

	t.Setenv("AUTH_JWT_SECRET", "cli-secret")
	out, err := run(t, "token", "u1", "--name", "Una", "--ttl", "1m")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	id, err := auth.NewVerifier("cli-secret", "").Verify(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("verify minted token: %v", err)
	}
	if id.UserID != "u1" || id.Name != "Una" {
		t.Fatalf("identity = %+v", id)
	}
}

func TestCLI_BadConfigFailsEarly(t *testing.T) {
	cliEnv(t)
	t.Setenv("DB_DRIVER", "oracle")
	if _, err := run(t, "migrate"); err == nil || !strings.Contains(err.Error(), "config") {
		t.Fatalf("err = %v; want config error", err)
	}
}

func TestNewPhotoStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "p")
	s, err := newPhotoStore(config.PhotoConfig{Store: config.PhotoStoreLocal, Dir: dir, PublicBaseURL: "/photos"})
	if err != nil {
		t.Fatalf("local: %v", err)
	}
	if _, ok := s.(*storage.LocalStore); !ok {
		t.Fatalf("local store type = %T", s)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("photo dir not created: %v", err)
	}

	if s, err := newPhotoStore(config.PhotoConfig{Store: config.PhotoStoreLocal}); err != nil || s != nil {
		t.Fatalf("no dir: store=%v err=%v", s, err)
	}

	s, err = newPhotoStore(config.PhotoConfig{Store: config.PhotoStoreSFTP, SFTP: config.SFTPConfig{Host: "h", User: "u", Password: "p"}})
	if err != nil {
		t.Fatalf("sftp: %v", err)
	}
	if _, ok := s.(*storage.SFTPStore); !ok {
		t.Fatalf("sftp store type = %T", s)
	}

	if _, err := newPhotoStore(config.PhotoConfig{Store: config.PhotoStoreSFTP}); err == nil {
		t.Fatal("expected missing sftp host error")
	}
}
