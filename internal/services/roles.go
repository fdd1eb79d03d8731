package services

import (
	"context"
	"errors"
	"time"

	"github.com/patrickmn/go-cache"
	"gorm.io/gorm"

	"github.com/tbourn/leaktrack-backend/internal/repo"
)

// RoleLookup loads the assigned role of a user. It returns
// gorm.ErrRecordNotFound when the user has no role.
type RoleLookup func(ctx context.Context, userID string) (string, error)

// RoleResolver answers "which role does this user hold" from the user_roles
// table. Roles are never taken from the access token. Answers are cached
// for a short TTL so role-gated routes do not hit the database on every
// request; admin role changes call Invalidate.
type RoleResolver struct {
	lookup RoleLookup
	cache  *cache.Cache
}

// NewRoleResolver reads roles through db with answers cached for ttl.
// ttl <= 0 disables caching.
func NewRoleResolver(db *gorm.DB, ttl time.Duration) *RoleResolver {
	return NewRoleResolverFunc(func(ctx context.Context, userID string) (string, error) {
		return repo.GetRole(ctx, db, userID)
	}, ttl)
}

// NewRoleResolverFunc is NewRoleResolver over an arbitrary lookup.
func NewRoleResolverFunc(lookup RoleLookup, ttl time.Duration) *RoleResolver {
	r := &RoleResolver{lookup: lookup}
	if ttl > 0 {
		r.cache = cache.New(ttl, 2*ttl)
	}
	return r
}

// Role returns the role of userID, or ErrRoleUnassigned when none exists.
// Unassigned answers are not cached so a freshly assigned user gets in
// without waiting for expiry.
func (r *RoleResolver) Role(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", ErrRoleUnassigned
	}
	if r.cache != nil {
		if v, ok := r.cache.Get(userID); ok {
			return v.(string), nil
		}
	}
	role, err := r.lookup(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrRoleUnassigned
		}
		return "", err
	}
	if r.cache != nil {
		r.cache.SetDefault(userID, role)
	}
	return role, nil
}

// Invalidate drops the cached role of userID.
func (r *RoleResolver) Invalidate(userID string) {
	if r.cache != nil {
		r.cache.Delete(userID)
	}
}
