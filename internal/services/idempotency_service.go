package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/leaktrack-backend/internal/repo"
)

// DefaultIdempotencyTTL is how long a stored key replays when TTL is unset.
const DefaultIdempotencyTTL = 24 * time.Hour

// IdempotencyService remembers which resource a client-supplied
// Idempotency-Key produced so a retried submission returns the original
// resource instead of creating a duplicate.
type IdempotencyService struct {
	DB  *gorm.DB
	TTL time.Duration
}

func (s *IdempotencyService) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return DefaultIdempotencyTTL
}

// Lookup returns the resource id stored for (userID, scope, key) if it has
// not expired at now.
func (s *IdempotencyService) Lookup(ctx context.Context, userID, scope, key string, now time.Time) (resourceID string, status int, found bool, err error) {
	rec, err := repo.GetIdempotency(ctx, s.DB, userID, scope, key, now)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", 0, false, nil
		}
		return "", 0, false, err
	}
	return rec.ResourceID, rec.Status, true, nil
}

// Exists adapts Lookup to the HTTP middleware's replay probe.
func (s *IdempotencyService) Exists(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
	_, _, found, err := s.Lookup(ctx, userID, scope, key, now)
	return found, err
}

// Remember records that (userID, scope, key) produced resourceID with the
// given HTTP status. A key already taken by a concurrent request is not an
// error; the first writer wins.
func (s *IdempotencyService) Remember(ctx context.Context, userID, scope, key, resourceID string, status int) error {
	if key == "" {
		return nil
	}
	_, err := repo.CreateIdempotency(ctx, s.DB, userID, scope, key, resourceID, status, s.ttl())
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return err
}

// Purge deletes keys that expired before now.
func (s *IdempotencyService) Purge(ctx context.Context, now time.Time) (int64, error) {
	return repo.PurgeExpiredIdempotency(ctx, s.DB, now)
}
