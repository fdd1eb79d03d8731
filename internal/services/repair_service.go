// Package services – RepairService
//
// This file implements the repairman side: recording a repair against a
// reported inspection (optionally with a photo) and the repairman history
// screen. A repair completes its inspection; the insert and the status
// change happen in one transaction, so of two concurrent repairs for the
// same inspection exactly one is stored.
//
// Photo uploads are best effort. A failed upload is logged, counted and
// reported back as a warning, and the repair is stored without a photo URL.
// A photo uploaded for a repair that is then not stored is deleted again.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/leaktrack-backend/internal/domain"
	"github.com/tbourn/leaktrack-backend/internal/repo"
	"github.com/tbourn/leaktrack-backend/internal/storage"
)

// DefaultMaxPhotoBytes caps photo uploads when MaxPhotoBytes is unset.
const DefaultMaxPhotoBytes int64 = 8 << 20

// RepairInput is a repairman's submission from the repair form.
type RepairInput struct {
	RepairStatus string     `json:"repair_status"`
	Notes        string     `json:"notes"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// RepairResult is the stored repair plus a warning when the photo could not
// be kept.
type RepairResult struct {
	Repair       *domain.RepairRecord `json:"repair"`
	PhotoWarning string               `json:"photo_warning,omitempty"`
}

// RepairService coordinates repair submission and repair history.
type RepairService struct {
	DB *gorm.DB

	// Photos stores repair photos; nil means uploads are not configured and
	// every photo is dropped with a warning.
	Photos        storage.PhotoStore
	MaxPhotoBytes int64

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

func (s *RepairService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Submit records a repair by repairmanID for inspectionID and completes the
// inspection. photo may be nil.
func (s *RepairService) Submit(ctx context.Context, repairmanID, repairmanName, inspectionID string, in RepairInput, photo io.Reader) (*RepairResult, error) {
	tr := otel.Tracer("services/RepairService")
	ctx, span := tr.Start(ctx, "Submit",
		trace.WithAttributes(
			attribute.String("inspection.id", inspectionID),
			attribute.String("user.id", repairmanID),
			attribute.Bool("photo", photo != nil),
		),
	)
	defer span.End()

	if !domain.ValidRepairStatus(in.RepairStatus) {
		return nil, ErrInvalidRepairStatus
	}
	now := s.now()
	completed := now
	if in.CompletedAt != nil {
		completed = in.CompletedAt.UTC()
	}
	var started *time.Time
	if in.StartedAt != nil {
		st := in.StartedAt.UTC()
		if st.After(completed) {
			return nil, fmt.Errorf("%w: started_at must not be after completed_at", ErrInvalidInput)
		}
		started = &st
	}

	status, err := repo.GetInspectionStatus(ctx, s.DB, inspectionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInspectionNotFound
		}
		return nil, err
	}
	if status == domain.StatusCompleted {
		return nil, ErrAlreadyCompleted
	}

	res := &RepairResult{}
	var photoURL *string
	var photoKey string
	if photo != nil {
		key, url, warn, err := s.storePhoto(ctx, repairmanID, inspectionID, photo, now)
		if err != nil {
			return nil, err
		}
		if warn != "" {
			res.PhotoWarning = warn
		} else {
			photoKey, photoURL = key, &url
		}
	}

	rec := &domain.RepairRecord{
		InspectionID: inspectionID,
		RepairmanID:  repairmanID,
		RepairStatus: in.RepairStatus,
		Notes:        normalizeText(in.Notes),
		PhotoURL:     photoURL,
		StartedAt:    started,
		CompletedAt:  &completed,
		CreatedAt:    now,
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.EnsureProfile(ctx, tx, repairmanID, normalizeText(repairmanName)); err != nil {
			return err
		}
		if err := repo.CreateRepair(ctx, tx, rec); err != nil {
			return err
		}
		ok, err := repo.MarkInspectionCompleted(ctx, tx, inspectionID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyCompleted
		}
		return nil
	})
	if err != nil {
		if photoKey != "" {
			s.discardPhoto(ctx, photoKey, inspectionID)
		}
		return nil, err
	}
	repairsSubmitted.WithLabelValues(rec.RepairStatus).Inc()

	res.Repair = rec
	return res, nil
}

// storePhoto validates and uploads a photo. Invalid payloads are a client
// error; store failures come back as a warning with no error.
func (s *RepairService) storePhoto(ctx context.Context, repairmanID, inspectionID string, r io.Reader, now time.Time) (key, url, warning string, err error) {
	limit := s.MaxPhotoBytes
	if limit <= 0 {
		limit = DefaultMaxPhotoBytes
	}
	p, err := storage.ReadPhoto(r, limit)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) || errors.Is(err, storage.ErrUnsupportedType) {
			return "", "", "", fmt.Errorf("%w: %v", ErrInvalidPhoto, err)
		}
		return "", "", "", err
	}

	if s.Photos == nil {
		err = errors.New("photo store not configured")
	} else {
		key = storage.PhotoKey(repairmanID, inspectionID, p.Ext, now)
		url, err = s.Photos.Put(ctx, key, p.ContentType, p.Reader())
	}
	if err != nil {
		photoUploadFailures.Inc()
		log.Ctx(ctx).Warn().
			Err(err).
			Str("inspection_id", inspectionID).
			Str("user_id", repairmanID).
			Msg("photo upload failed; storing repair without photo")
		return "", "", "photo upload failed; repair saved without photo", nil
	}
	return key, url, "", nil
}

// discardPhoto deletes an uploaded photo whose repair was not stored. It
// runs even when ctx is already canceled; a failure only leaves an
// unreferenced object behind, so it is logged.
func (s *RepairService) discardPhoto(ctx context.Context, key, inspectionID string) {
	if err := s.Photos.Delete(context.WithoutCancel(ctx), key); err != nil {
		log.Ctx(ctx).Warn().
			Err(err).
			Str("inspection_id", inspectionID).
			Str("key", key).
			Msg("could not delete photo of discarded repair")
	}
}

// Get returns one repair with its repairman.
func (s *RepairService) Get(ctx context.Context, id string) (*domain.RepairRecord, error) {
	r, err := repo.GetRepair(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRepairNotFound
		}
		return nil, err
	}
	return r, nil
}

// ListMine returns a page of repairs filed by repairmanID, newest first.
func (s *RepairService) ListMine(ctx context.Context, repairmanID string, page, pageSize int) ([]domain.RepairRecord, int64, error) {
	tr := otel.Tracer("services/RepairService")
	ctx, span := tr.Start(ctx, "ListMine",
		trace.WithAttributes(
			attribute.String("user.id", repairmanID),
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
	total, err := repo.CountRepairsByRepairman(ctx, s.DB, repairmanID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.RepairRecord{}, 0, nil
	}
	items, err := repo.ListRepairsByRepairmanPage(ctx, s.DB, repairmanID, (page-1)*pageSize, pageSize)
	return items, total, err
}

// Stats returns the repair count and newest update time of repairmanID.
func (s *RepairService) Stats(ctx context.Context, repairmanID string) (int64, *time.Time, error) {
	return repo.RepairsStats(ctx, s.DB, repairmanID)
}
