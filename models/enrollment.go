package models

import (
	"time"

	"gorm.io/gorm"
)

// Enrollment statuses. Completed is terminal.
const (
	EnrollmentStatusActive    = "active"
	EnrollmentStatusCompleted = "completed"
)

// Enrollment associates one lead with one cadence and tracks progress.
// CurrentStep is a StepOrder value and is monotonically non-decreasing;
// only the execution and deferral engines mutate it after creation.
type Enrollment struct {
	gorm.Model
	OrganizationID uint `gorm:"not null;index" json:"organization_id"`
	CadenceID      uint `gorm:"not null;index;uniqueIndex:idx_enrollment_lead_cadence" json:"cadence_id"`
	LeadID         uint `gorm:"not null;index;uniqueIndex:idx_enrollment_lead_cadence" json:"lead_id"`

	CurrentStep int        `gorm:"not null;default:1" json:"current_step"`
	Status      string     `gorm:"default:'active';index" json:"status"` // active, completed
	NextStepDue *time.Time `gorm:"index" json:"next_step_due"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Relations
	Cadence Cadence `json:"-"`
	Lead    Lead    `json:"-"`
}
