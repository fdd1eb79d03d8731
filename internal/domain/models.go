// Package domain defines the persistence models for the leakage tracker:
// the product catalog (product lines, models, leakage types), machines,
// inspection and repair records, and user profiles with their roles. These
// types are mapped with GORM and form the core data layer of the service.
package domain

import (
	"time"
)

// ProductLine is the top-level product category (e.g. "EXC" excavators).
type ProductLine struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Code      string    `json:"code"       gorm:"type:varchar(32);not null;uniqueIndex:ux_product_line_code"`
	Name      string    `json:"name"       gorm:"type:varchar(255);not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for ProductLine.
func (ProductLine) TableName() string { return "product_lines" }

// Model is a machine model that belongs to exactly one product line.
type Model struct {
	ID            string    `json:"id"              gorm:"type:char(36);primaryKey"`
	ProductLineID string    `json:"product_line_id" gorm:"type:char(36);not null;index;uniqueIndex:ux_model_line_code,priority:1"`
	Code          string    `json:"code"            gorm:"type:varchar(32);not null;uniqueIndex:ux_model_line_code,priority:2"`
	Name          string    `json:"name"            gorm:"type:varchar(255);not null"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	ProductLine *ProductLine `json:"product_line,omitempty" gorm:"foreignKey:ProductLineID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for Model.
func (Model) TableName() string { return "models" }

// Machine is a physical unit identified by its chassis number. In practice a
// chassis number is only unique within a model, so the pair is indexed.
type Machine struct {
	ID            string    `json:"id"             gorm:"type:char(36);primaryKey"`
	ModelID       string    `json:"model_id"       gorm:"type:char(36);not null;index;uniqueIndex:ux_machine_chassis_model,priority:2"`
	ChassisNumber string    `json:"chassis_number" gorm:"type:varchar(64);not null;uniqueIndex:ux_machine_chassis_model,priority:1"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Model *Model `json:"model,omitempty" gorm:"foreignKey:ModelID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for Machine.
func (Machine) TableName() string { return "machines" }

// LeakageType is a catalog entry describing a defect category, scoped to a
// product line.
type LeakageType struct {
	ID            string    `json:"id"              gorm:"type:char(36);primaryKey"`
	ProductLineID string    `json:"product_line_id" gorm:"type:char(36);not null;index;uniqueIndex:ux_leakage_line_code,priority:1"`
	Code          string    `json:"code"            gorm:"type:varchar(32);not null;uniqueIndex:ux_leakage_line_code,priority:2"`
	Name          string    `json:"name"            gorm:"type:varchar(255);not null"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	ProductLine *ProductLine `json:"-" gorm:"foreignKey:ProductLineID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for LeakageType.
func (LeakageType) TableName() string { return "leakage_types" }

// InspectionRecord is one test event submitted by a tester against a machine.
//
// Fields:
//   - LeakageTypeID: nil when no leakage was found (severity None).
//   - Severity: one of SeverityNone/Low/Medium/High.
//   - Status: Pending until a repair is recorded, then Completed. Inspections
//     with severity None are stored as Completed immediately. "Delayed" is
//     never written here; it is derived at read time (see report.IsDelayed).
type InspectionRecord struct {
	ID            string    `json:"id"                        gorm:"type:char(36);primaryKey"`
	MachineID     string    `json:"machine_id"                gorm:"type:char(36);not null;index"`
	TesterID      string    `json:"tester_id"                 gorm:"type:varchar(64);not null;index"`
	LeakageTypeID *string   `json:"leakage_type_id,omitempty" gorm:"type:char(36);index"`
	Severity      string    `json:"severity"                  gorm:"type:varchar(16);not null;default:'None';check:severity IN ('None','Low','Medium','High')"`
	Status        string    `json:"status"                    gorm:"type:varchar(16);not null;default:'Pending';index:idx_inspection_status_created,priority:1"`
	Remarks       string    `json:"remarks"                   gorm:"type:text"`
	CreatedAt     time.Time `json:"created_at"                gorm:"index:idx_inspection_status_created,priority:2"`
	UpdatedAt     time.Time `json:"updated_at"`

	Machine     *Machine       `json:"machine,omitempty"      gorm:"foreignKey:MachineID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	LeakageType *LeakageType   `json:"leakage_type,omitempty" gorm:"foreignKey:LeakageTypeID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
	Tester      *Profile       `json:"tester,omitempty"       gorm:"foreignKey:TesterID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Repairs     []RepairRecord `json:"repairs,omitempty"      gorm:"foreignKey:InspectionID;references:ID"`
}

// TableName returns the database table name for InspectionRecord.
func (InspectionRecord) TableName() string { return "inspection_records" }

// RepairRecord documents the work done on a reported inspection. At most one
// repair is accepted per inspection; the service refuses repairs on
// inspections that are already Completed.
type RepairRecord struct {
	ID           string     `json:"id"                   gorm:"type:char(36);primaryKey"`
	InspectionID string     `json:"inspection_id"        gorm:"type:char(36);not null;index"`
	RepairmanID  string     `json:"repairman_id"         gorm:"type:varchar(64);not null;index"`
	RepairStatus string     `json:"repair_status"        gorm:"type:varchar(32);not null;check:repair_status IN ('Repairable','Not Repairable')"`
	Notes        string     `json:"notes"                gorm:"type:text"`
	PhotoURL     *string    `json:"photo_url,omitempty"  gorm:"type:varchar(1024)"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	Inspection *InspectionRecord `json:"inspection,omitempty" gorm:"foreignKey:InspectionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Repairman  *Profile          `json:"repairman,omitempty"  gorm:"foreignKey:RepairmanID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for RepairRecord.
func (RepairRecord) TableName() string { return "repair_records" }

// Profile is the display identity of an authenticated user. The ID is the
// subject of the access token.
type Profile struct {
	ID        string    `json:"id"         gorm:"type:varchar(64);primaryKey"`
	FullName  string    `json:"full_name"  gorm:"type:varchar(255);not null"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Profile.
func (Profile) TableName() string { return "profiles" }

// UserRole grants an authorization role to a user. A user holds at most one
// role; users without a row cannot reach role-gated endpoints.
type UserRole struct {
	UserID    string    `json:"user_id"    gorm:"type:varchar(64);primaryKey"`
	Role      string    `json:"role"       gorm:"type:varchar(16);not null;check:role IN ('admin','tester','repairman')"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for UserRole.
func (UserRole) TableName() string { return "user_roles" }

// Session holds per-user client state that used to live on the device: the
// role last picked on the role selection screen. It is created on role pick
// and removed on sign-out.
type Session struct {
	UserID       string    `json:"user_id"       gorm:"type:varchar(64);primaryKey"`
	SelectedRole string    `json:"selected_role" gorm:"type:varchar(16);not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for Session.
func (Session) TableName() string { return "sessions" }
