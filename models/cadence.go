package models

import "gorm.io/gorm"

// Cadence types
const (
	CadenceTypeManual    = "manual"
	CadenceTypeAutoEmail = "auto_email" // progressed by the background worker, never by the manual queue
)

// Outreach channels
const (
	ChannelEmail    = "email"
	ChannelWhatsApp = "whatsapp"
	ChannelPhone    = "phone"
	ChannelLinkedIn = "linkedin"
	ChannelResearch = "research"
)

// Cadence represents a named, ordered sequence of outreach steps
type Cadence struct {
	gorm.Model
	OrganizationID uint `gorm:"not null;index" json:"organization_id"`
	CreatedBy      uint `gorm:"not null;index" json:"created_by"`

	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	Type        string `gorm:"default:'manual'" json:"type"`   // manual, auto_email
	Status      string `gorm:"default:'active'" json:"status"` // draft, active, paused

	// Relations
	Steps       []CadenceStep `gorm:"foreignKey:CadenceID" json:"steps,omitempty"`
	Enrollments []Enrollment  `gorm:"foreignKey:CadenceID" json:"enrollments,omitempty"`
}

// CadenceStep represents one position in a cadence's sequence.
// Steps are immutable once created; StepOrder defines the total order
// within the cadence and DelayDays/DelayHours apply from the previous step.
type CadenceStep struct {
	gorm.Model
	CadenceID uint `gorm:"not null;index;uniqueIndex:idx_cadence_step_order" json:"cadence_id"`
	StepOrder int  `gorm:"not null;uniqueIndex:idx_cadence_step_order" json:"step_order"`

	Channel           string `gorm:"not null" json:"channel"` // email, whatsapp, phone, linkedin, research
	TemplateID        *uint  `gorm:"index" json:"template_id,omitempty"`
	AIPersonalization bool   `gorm:"default:false" json:"ai_personalization"`

	DelayDays  int `gorm:"default:0" json:"delay_days"`
	DelayHours int `gorm:"default:0" json:"delay_hours"`

	// Relations
	Template *Template `json:"template,omitempty"`
}

// DelayFromPrevious returns the step's relative delay in hours.
func (s *CadenceStep) DelayFromPrevious() int {
	return s.DelayDays*24 + s.DelayHours
}
