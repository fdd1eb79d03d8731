// Package services defines the business logic for inspections, repairs, the
// product catalog, sessions and the admin overview. This file centralizes
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import "errors"

// Lookup errors.
var (
	// ErrInspectionNotFound indicates that the requested inspection does not exist.
	ErrInspectionNotFound = errors.New("inspection not found")

	// ErrRepairNotFound indicates that the requested repair does not exist.
	ErrRepairNotFound = errors.New("repair not found")

	// ErrMachineNotFound is returned when a chassis number is not registered
	// for the given model.
	ErrMachineNotFound = errors.New("machine not registered")

	// ErrCatalogNotFound is returned when a referenced product line, model or
	// leakage type does not exist.
	ErrCatalogNotFound = errors.New("catalog entry not found")
)

// Validation errors.
var (
	ErrInvalidSeverity     = errors.New("severity must be one of None, Low, Medium, High")
	ErrInvalidStatus       = errors.New("status must be one of Pending, Completed, Delayed")
	ErrInvalidRepairStatus = errors.New("repair_status must be Repairable or Not Repairable")
	ErrInvalidRole         = errors.New("role must be one of admin, tester, repairman")

	// ErrInvalidInput wraps field-level validation failures; the wrapped
	// message names the field.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidPhoto is returned for uploads that are not images or exceed
	// the size limit.
	ErrInvalidPhoto = errors.New("photo must be an image within the size limit")
)

// State errors.
var (
	// ErrAlreadyCompleted is returned when a repair is submitted for an
	// inspection that is already Completed, including the loser of two
	// concurrent repair submissions.
	ErrAlreadyCompleted = errors.New("inspection already completed")

	// ErrDuplicateCode is returned when a catalog code is already taken.
	ErrDuplicateCode = errors.New("code already exists")
)

// Authorization errors.
var (
	// ErrRoleUnassigned is returned for users without a user_roles row. Such
	// accounts need an admin to assign them a role.
	ErrRoleUnassigned = errors.New("account needs to be assigned a role")

	// ErrRoleMismatch is returned when a user selects a role they do not hold.
	ErrRoleMismatch = errors.New("you don't have access to this role")
)
