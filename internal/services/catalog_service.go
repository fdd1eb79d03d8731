// Package services – CatalogService
//
// This file implements the product catalog: product lines, their models and
// leakage types, plus the machine lookup used by the scan screen. Catalog
// reads dominate traffic (every scan screen loads them), so list results are
// held in a TTL cache that admin writes flush.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/leaktrack-backend/internal/domain"
	"github.com/tbourn/leaktrack-backend/internal/repo"
)

// CatalogService serves catalog reads and admin catalog writes.
type CatalogService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB

	cache *cache.Cache
}

// NewCatalogService returns a service whose list results live for ttl.
// ttl <= 0 disables caching.
func NewCatalogService(db *gorm.DB, ttl time.Duration) *CatalogService {
	s := &CatalogService{DB: db}
	if ttl > 0 {
		s.cache = cache.New(ttl, 2*ttl)
	}
	return s
}

func (s *CatalogService) cached(key string, load func() (any, error)) (any, error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			return v, nil
		}
	}
	v, err := load()
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.SetDefault(key, v)
	}
	return v, nil
}

func (s *CatalogService) invalidate() {
	if s.cache != nil {
		s.cache.Flush()
	}
}

// ProductLines lists all product lines ordered by code.
func (s *CatalogService) ProductLines(ctx context.Context) ([]domain.ProductLine, error) {
	v, err := s.cached("lines", func() (any, error) {
		items, err := repo.ListProductLines(ctx, s.DB)
		if items == nil {
			items = []domain.ProductLine{}
		}
		return items, err
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.ProductLine), nil
}

// Models lists the models of a product line. An unknown line yields
// ErrCatalogNotFound.
func (s *CatalogService) Models(ctx context.Context, productLineID string) ([]domain.Model, error) {
	v, err := s.cached("models:"+productLineID, func() (any, error) {
		if err := s.requireLine(ctx, productLineID); err != nil {
			return nil, err
		}
		items, err := repo.ListModels(ctx, s.DB, productLineID)
		if items == nil {
			items = []domain.Model{}
		}
		return items, err
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Model), nil
}

// LeakageTypes lists the leakage types of a product line. An unknown line
// yields ErrCatalogNotFound.
func (s *CatalogService) LeakageTypes(ctx context.Context, productLineID string) ([]domain.LeakageType, error) {
	v, err := s.cached("leaks:"+productLineID, func() (any, error) {
		if err := s.requireLine(ctx, productLineID); err != nil {
			return nil, err
		}
		items, err := repo.ListLeakageTypes(ctx, s.DB, productLineID)
		if items == nil {
			items = []domain.LeakageType{}
		}
		return items, err
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.LeakageType), nil
}

func (s *CatalogService) requireLine(ctx context.Context, id string) error {
	if _, err := repo.GetProductLine(ctx, s.DB, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCatalogNotFound
		}
		return err
	}
	return nil
}

// CreateProductLine adds a product line. Codes are normalized to upper case.
func (s *CatalogService) CreateProductLine(ctx context.Context, code, name string) (*domain.ProductLine, error) {
	code, name, err := validCodeName(code, name)
	if err != nil {
		return nil, err
	}
	pl, err := repo.CreateProductLine(ctx, s.DB, code, name)
	if err != nil {
		return nil, mapDuplicate(err)
	}
	s.invalidate()
	return pl, nil
}

// CreateModel adds a model under an existing product line.
func (s *CatalogService) CreateModel(ctx context.Context, productLineID, code, name string) (*domain.Model, error) {
	code, name, err := validCodeName(code, name)
	if err != nil {
		return nil, err
	}
	if err := s.requireLine(ctx, productLineID); err != nil {
		return nil, err
	}
	m, err := repo.CreateModel(ctx, s.DB, productLineID, code, name)
	if err != nil {
		return nil, mapDuplicate(err)
	}
	s.invalidate()
	return m, nil
}

// CreateLeakageType adds a leakage type under an existing product line.
func (s *CatalogService) CreateLeakageType(ctx context.Context, productLineID, code, name string) (*domain.LeakageType, error) {
	code, name, err := validCodeName(code, name)
	if err != nil {
		return nil, err
	}
	if err := s.requireLine(ctx, productLineID); err != nil {
		return nil, err
	}
	lt, err := repo.CreateLeakageType(ctx, s.DB, productLineID, code, name)
	if err != nil {
		return nil, mapDuplicate(err)
	}
	s.invalidate()
	return lt, nil
}

// LookupMachine resolves a scanned chassis number within a model. Unknown
// machines yield ErrMachineNotFound.
func (s *CatalogService) LookupMachine(ctx context.Context, chassis, modelID string) (*domain.Machine, error) {
	tr := otel.Tracer("services/CatalogService")
	ctx, span := tr.Start(ctx, "LookupMachine",
		trace.WithAttributes(attribute.String("model.id", modelID)),
	)
	defer span.End()

	chassis = NormalizeCode(chassis)
	if chassis == "" || modelID == "" {
		return nil, fmt.Errorf("%w: chassis_number and model_id are required", ErrInvalidInput)
	}
	m, err := repo.FindMachine(ctx, s.DB, chassis, modelID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMachineNotFound
		}
		return nil, err
	}
	return m, nil
}

func validCodeName(code, name string) (string, string, error) {
	code = NormalizeCode(code)
	name = normalizeText(name)
	if code == "" {
		return "", "", fmt.Errorf("%w: code is required", ErrInvalidInput)
	}
	if len(code) > 32 {
		return "", "", fmt.Errorf("%w: code must be at most 32 characters", ErrInvalidInput)
	}
	if name == "" {
		return "", "", fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	return code, name, nil
}

func mapDuplicate(err error) error {
	if errors.Is(err, repo.ErrDuplicate) {
		return ErrDuplicateCode
	}
	return err
}
