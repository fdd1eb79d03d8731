// Package services – SessionService and UserService
//
// SessionService backs the role selection screen: it reports who the caller
// is, which role an admin assigned them and which role they last picked.
// The picked role replaces what the mobile client used to keep in local
// storage. UserService is the admin-side counterpart that assigns roles.
package services

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/leaktrack-backend/internal/domain"
	"github.com/tbourn/leaktrack-backend/internal/repo"
)

// SessionView is the caller's identity as the role selection screen needs it.
type SessionView struct {
	UserID       string  `json:"user_id"`
	FullName     string  `json:"full_name"`
	Role         *string `json:"role"`
	SelectedRole *string `json:"selected_role"`
	// NeedsRole is true when no role is assigned yet; the client shows the
	// "ask an admin" notice instead of the role buttons.
	NeedsRole bool `json:"needs_role"`
}

// SessionService manages the per-user session row.
type SessionService struct {
	DB    *gorm.DB
	Roles *RoleResolver
}

// Get ensures the caller has a profile and returns their session view.
func (s *SessionService) Get(ctx context.Context, userID, fullName string) (*SessionView, error) {
	tr := otel.Tracer("services/SessionService")
	ctx, span := tr.Start(ctx, "Get", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	p, err := repo.EnsureProfile(ctx, s.DB, userID, normalizeText(fullName))
	if err != nil {
		return nil, err
	}
	v := &SessionView{UserID: p.ID, FullName: p.FullName}

	role, err := s.Roles.Role(ctx, userID)
	switch {
	case errors.Is(err, ErrRoleUnassigned):
		v.NeedsRole = true
	case err != nil:
		return nil, err
	default:
		v.Role = &role
	}

	sess, err := repo.GetSession(ctx, s.DB, userID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
	case err != nil:
		return nil, err
	default:
		sel := sess.SelectedRole
		v.SelectedRole = &sel
	}
	return v, nil
}

// SelectRole records role as the caller's active role. The caller must hold
// that role; admins may act as any role.
func (s *SessionService) SelectRole(ctx context.Context, userID, role string) (*domain.Session, error) {
	tr := otel.Tracer("services/SessionService")
	ctx, span := tr.Start(ctx, "SelectRole",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("role", role),
		),
	)
	defer span.End()

	if !domain.ValidRole(role) {
		return nil, ErrInvalidRole
	}
	assigned, err := s.Roles.Role(ctx, userID)
	if err != nil {
		return nil, err
	}
	if assigned != role && assigned != domain.RoleAdmin {
		return nil, ErrRoleMismatch
	}
	return repo.UpsertSession(ctx, s.DB, userID, role)
}

// SignOut clears the caller's selected role.
func (s *SessionService) SignOut(ctx context.Context, userID string) error {
	return repo.DeleteSession(ctx, s.DB, userID)
}

// UserService lets admins list users and assign roles.
type UserService struct {
	DB    *gorm.DB
	Roles *RoleResolver
}

// List returns every known profile with its role.
func (s *UserService) List(ctx context.Context) ([]repo.UserRow, error) {
	rows, err := repo.ListUsers(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []repo.UserRow{}
	}
	return rows, nil
}

// SetRole assigns role to userID, creating a profile first when the user
// has never signed in.
func (s *UserService) SetRole(ctx context.Context, userID, fullName, role string) error {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "SetRole",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("role", role),
		),
	)
	defer span.End()

	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if !domain.ValidRole(role) {
		return ErrInvalidRole
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.EnsureProfile(ctx, tx, userID, normalizeText(fullName)); err != nil {
			return err
		}
		return repo.SetRole(ctx, tx, userID, role)
	})
	if err != nil {
		return err
	}
	s.Roles.Invalidate(userID)
	return nil
}
