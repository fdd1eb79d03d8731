package domain

// Inspection severities.
const (
	SeverityNone   = "None"
	SeverityLow    = "Low"
	SeverityMedium = "Medium"
	SeverityHigh   = "High"
)

// Inspection statuses. StatusDelayed is accepted when reading rows written by
// other tools but is never stored by this service.
const (
	StatusPending   = "Pending"
	StatusCompleted = "Completed"
	StatusDelayed   = "Delayed"
)

// Repair outcomes.
const (
	RepairRepairable    = "Repairable"
	RepairNotRepairable = "Not Repairable"
)

// Authorization roles.
const (
	RoleAdmin     = "admin"
	RoleTester    = "tester"
	RoleRepairman = "repairman"
)

// ValidSeverity reports whether s is a known severity (exact match).
func ValidSeverity(s string) bool {
	switch s {
	case SeverityNone, SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// ValidStatus reports whether s is a known inspection status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusCompleted, StatusDelayed:
		return true
	}
	return false
}

// ValidRepairStatus reports whether s is a known repair outcome.
func ValidRepairStatus(s string) bool {
	return s == RepairRepairable || s == RepairNotRepairable
}

// ValidRole reports whether r is a known authorization role.
func ValidRole(r string) bool {
	switch r {
	case RoleAdmin, RoleTester, RoleRepairman:
		return true
	}
	return false
}

// InitialStatus returns the status a freshly submitted inspection starts in:
// leakage-free inspections need no repair and are completed on submission.
func InitialStatus(severity string) string {
	if severity == SeverityNone {
		return StatusCompleted
	}
	return StatusPending
}
