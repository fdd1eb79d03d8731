// Package services – OverviewService
//
// This file backs the admin dashboard and the CSV export. Both fetch a
// bounded slice of inspections for the requested range and hand it to the
// pure helpers in package report.
package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/leaktrack-backend/internal/report"
	"github.com/tbourn/leaktrack-backend/internal/repo"
)

// Overview is the admin dashboard payload.
type Overview struct {
	Summary report.Summary   `json:"summary"`
	Recent  []InspectionView `json:"recent"`
	// Truncated is set when more inspections matched than were fetched, in
	// which case the summary covers only the newest FetchLimit rows.
	Truncated   bool      `json:"truncated"`
	GeneratedAt time.Time `json:"generated_at"`
}

// OverviewService computes dashboard summaries and exports.
type OverviewService struct {
	DB      *gorm.DB
	Options report.Options

	// FetchLimit caps how many inspections one overview reads; <= 0 means
	// no cap.
	FetchLimit int
	// RecentLimit is how many of the newest inspections the overview lists.
	RecentLimit int

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

func (s *OverviewService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func rangeFilter(from, to *time.Time) (repo.InspectionFilter, error) {
	if from != nil && to != nil && to.Before(*from) {
		return repo.InspectionFilter{}, fmt.Errorf("%w: to must not be before from", ErrInvalidInput)
	}
	return repo.InspectionFilter{From: from, To: to}, nil
}

// Overview summarizes the inspections created in [from, to). Nil bounds are
// open.
func (s *OverviewService) Overview(ctx context.Context, from, to *time.Time) (*Overview, error) {
	tr := otel.Tracer("services/OverviewService")
	ctx, span := tr.Start(ctx, "Overview",
		trace.WithAttributes(attribute.Int("fetch_limit", s.FetchLimit)),
	)
	defer span.End()

	f, err := rangeFilter(from, to)
	if err != nil {
		return nil, err
	}
	limit := s.FetchLimit
	if limit > 0 {
		// One extra row tells us whether the cap cut anything off.
		limit++
	}
	recs, err := repo.ListInspectionsForReport(ctx, s.DB, f, limit)
	if err != nil {
		return nil, err
	}
	truncated := s.FetchLimit > 0 && len(recs) > s.FetchLimit
	if truncated {
		recs = recs[:s.FetchLimit]
	}

	now := s.now()
	out := &Overview{
		Summary:     report.Aggregate(report.FromInspections(recs), now, s.Options),
		Truncated:   truncated,
		GeneratedAt: now,
	}

	n := s.RecentLimit
	if n <= 0 || n > len(recs) {
		n = len(recs)
	}
	iv := InspectionService{DelayThreshold: s.Options.DelayThreshold, Now: func() time.Time { return now }}
	out.Recent = iv.views(recs[:n])
	span.SetAttributes(attribute.Int("records", len(recs)), attribute.Bool("truncated", truncated))
	return out, nil
}

// Export writes every inspection created in [from, to) to w as CSV, newest
// first, and returns the number of data rows.
func (s *OverviewService) Export(ctx context.Context, w io.Writer, from, to *time.Time) (int, error) {
	tr := otel.Tracer("services/OverviewService")
	ctx, span := tr.Start(ctx, "Export")
	defer span.End()

	f, err := rangeFilter(from, to)
	if err != nil {
		return 0, err
	}
	recs, err := repo.ListInspectionsForReport(ctx, s.DB, f, 0)
	if err != nil {
		return 0, err
	}
	rows := make([]report.ExportRow, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, report.ExportRowFromInspection(r))
	}
	if err := report.WriteCSV(w, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}
