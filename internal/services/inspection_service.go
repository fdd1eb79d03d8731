// Package services – InspectionService
//
// This file implements the tester side of the tracker: submitting an
// inspection for a scanned machine, the tester history screen and the
// repair queue that repairmen work through. The service never writes the
// "Delayed" state; views derive it from the stored Pending status and the
// configured threshold, and rows already stored as Delayed count too.
//
// Observability: public methods open OpenTelemetry spans carrying the
// inspection, tester and paging attributes.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/leaktrack-backend/internal/domain"
	"github.com/tbourn/leaktrack-backend/internal/report"
	"github.com/tbourn/leaktrack-backend/internal/repo"
)

// InspectionInput is a tester's submission from the scan screen.
type InspectionInput struct {
	ChassisNumber string  `json:"chassis_number"`
	ModelID       string  `json:"model_id"`
	LeakageTypeID *string `json:"leakage_type_id,omitempty"`
	Severity      string  `json:"severity"`
	Remarks       string  `json:"remarks"`
}

// InspectionView is an inspection as list and detail screens render it.
type InspectionView struct {
	domain.InspectionRecord
	Delayed bool `json:"delayed"`
}

// InspectionQuery filters the inspection list. Status may be Pending,
// Completed or the derived Delayed.
type InspectionQuery struct {
	TesterID string
	Status   string
	From     *time.Time
	To       *time.Time
}

// InspectionService coordinates inspection submission and reads.
type InspectionService struct {
	DB *gorm.DB

	// DelayThreshold is how long an inspection may stay Pending before it is
	// reported as Delayed.
	DelayThreshold time.Duration

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

func (s *InspectionService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *InspectionService) threshold() time.Duration {
	if s.DelayThreshold > 0 {
		return s.DelayThreshold
	}
	return report.DefaultDelayThreshold
}

func (s *InspectionService) view(rec domain.InspectionRecord, now time.Time) InspectionView {
	delayed := rec.Status == domain.StatusDelayed ||
		report.IsDelayed(rec.Status, rec.CreatedAt, now, s.threshold())
	return InspectionView{InspectionRecord: rec, Delayed: delayed}
}

func (s *InspectionService) views(recs []domain.InspectionRecord) []InspectionView {
	now := s.now()
	out := make([]InspectionView, 0, len(recs))
	for _, r := range recs {
		out = append(out, s.view(r, now))
	}
	return out
}

// Submit records an inspection by testerID. The machine is registered on
// first sight of its chassis number; machine and inspection are written in
// one transaction. Leakage-free inspections are stored Completed.
func (s *InspectionService) Submit(ctx context.Context, testerID, testerName string, in InspectionInput) (*InspectionView, error) {
	tr := otel.Tracer("services/InspectionService")
	ctx, span := tr.Start(ctx, "Submit",
		trace.WithAttributes(
			attribute.String("user.id", testerID),
			attribute.String("model.id", in.ModelID),
			attribute.String("severity", in.Severity),
		),
	)
	defer span.End()

	chassis := NormalizeCode(in.ChassisNumber)
	if chassis == "" {
		return nil, fmt.Errorf("%w: chassis_number is required", ErrInvalidInput)
	}
	if len(chassis) > 64 {
		return nil, fmt.Errorf("%w: chassis_number must be at most 64 characters", ErrInvalidInput)
	}
	if in.ModelID == "" {
		return nil, fmt.Errorf("%w: model_id is required", ErrInvalidInput)
	}
	if !domain.ValidSeverity(in.Severity) {
		return nil, ErrInvalidSeverity
	}

	model, err := repo.GetModel(ctx, s.DB, in.ModelID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: model", ErrCatalogNotFound)
		}
		return nil, err
	}

	var leakageID *string
	if in.Severity != domain.SeverityNone {
		if in.LeakageTypeID == nil || *in.LeakageTypeID == "" {
			return nil, fmt.Errorf("%w: leakage_type_id is required unless severity is None", ErrInvalidInput)
		}
		lt, err := repo.GetLeakageType(ctx, s.DB, *in.LeakageTypeID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: leakage type", ErrCatalogNotFound)
			}
			return nil, err
		}
		if lt.ProductLineID != model.ProductLineID {
			return nil, fmt.Errorf("%w: leakage type does not belong to the model's product line", ErrInvalidInput)
		}
		leakageID = &lt.ID
	}

	rec := &domain.InspectionRecord{
		TesterID:      testerID,
		LeakageTypeID: leakageID,
		Severity:      in.Severity,
		Status:        domain.InitialStatus(in.Severity),
		Remarks:       normalizeText(in.Remarks),
		CreatedAt:     s.now(),
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.EnsureProfile(ctx, tx, testerID, normalizeText(testerName)); err != nil {
			return err
		}
		m, _, err := repo.FindOrCreateMachine(ctx, tx, chassis, model.ID)
		if err != nil {
			return err
		}
		rec.MachineID = m.ID
		return repo.CreateInspection(ctx, tx, rec)
	})
	if err != nil {
		return nil, err
	}
	inspectionsSubmitted.WithLabelValues(rec.Severity).Inc()

	return s.Get(ctx, rec.ID)
}

// Get returns one inspection with its machine, catalog entries, tester and
// repair history.
func (s *InspectionService) Get(ctx context.Context, id string) (*InspectionView, error) {
	tr := otel.Tracer("services/InspectionService")
	ctx, span := tr.Start(ctx, "Get", trace.WithAttributes(attribute.String("inspection.id", id)))
	defer span.End()

	rec, err := repo.GetInspection(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInspectionNotFound
		}
		return nil, err
	}
	v := s.view(*rec, s.now())
	return &v, nil
}

// filter turns q into a repository filter. Delayed is derived: it matches
// stored Delayed rows and Pending rows created before now minus the
// threshold, and Pending keeps only the rows that are not delayed yet.
func (s *InspectionService) filter(q InspectionQuery) (repo.InspectionFilter, error) {
	if q.From != nil && q.To != nil && q.To.Before(*q.From) {
		return repo.InspectionFilter{}, fmt.Errorf("%w: to must not be before from", ErrInvalidInput)
	}
	f := repo.InspectionFilter{TesterID: q.TesterID, From: q.From, To: q.To}
	cutoff := s.delayCutoff()
	switch q.Status {
	case "":
	case domain.StatusCompleted:
		f.Statuses = []string{q.Status}
	case domain.StatusPending:
		f.Statuses = []string{q.Status}
		if f.From == nil || f.From.Before(cutoff) {
			f.From = &cutoff
		}
	case domain.StatusDelayed:
		f.DelayedBefore = &cutoff
	default:
		return f, ErrInvalidStatus
	}
	return f, nil
}

// delayCutoff is the creation time before which a Pending inspection is
// delayed.
func (s *InspectionService) delayCutoff() time.Time {
	return s.now().Add(-s.threshold())
}

// ListPage returns a page of inspections matching q, newest first, and the
// total number of matches.
func (s *InspectionService) ListPage(ctx context.Context, q InspectionQuery, page, pageSize int) ([]InspectionView, int64, error) {
	tr := otel.Tracer("services/InspectionService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("user.id", q.TesterID),
			attribute.String("status", q.Status),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	f, err := s.filter(q)
	if err != nil {
		return nil, 0, err
	}

	total, err := repo.CountInspections(ctx, s.DB, f)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []InspectionView{}, 0, nil
	}
	items, err := repo.ListInspectionsPage(ctx, s.DB, f, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, err
	}
	return s.views(items), total, nil
}

// ListStamp summarizes an inspection list for its ETag. Delayed moves with
// the clock, so a list whose rows cross the threshold gets a new stamp
// without any write.
type ListStamp struct {
	Count        int64
	Delayed      int64
	MaxUpdatedAt *time.Time
}

// Stats returns the stamp of the inspections matching q.
func (s *InspectionService) Stats(ctx context.Context, q InspectionQuery) (ListStamp, error) {
	f, err := s.filter(q)
	if err != nil {
		return ListStamp{}, err
	}
	count, maxAt, err := repo.InspectionsStats(ctx, s.DB, f)
	if err != nil || count == 0 {
		return ListStamp{}, err
	}
	if f.DelayedBefore == nil {
		cutoff := s.delayCutoff()
		f.DelayedBefore = &cutoff
	}
	delayed, err := repo.CountInspections(ctx, s.DB, f)
	if err != nil {
		return ListStamp{}, err
	}
	return ListStamp{Count: count, Delayed: delayed, MaxUpdatedAt: maxAt}, nil
}

// Queue returns inspections awaiting repair, oldest first.
func (s *InspectionService) Queue(ctx context.Context, limit int) ([]InspectionView, error) {
	tr := otel.Tracer("services/InspectionService")
	ctx, span := tr.Start(ctx, "Queue", trace.WithAttributes(attribute.Int("limit", limit)))
	defer span.End()

	items, err := repo.ListRepairQueue(ctx, s.DB, limit)
	if err != nil {
		return nil, err
	}
	return s.views(items), nil
}
