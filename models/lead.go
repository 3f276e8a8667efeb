package models

import (
	"time"

	"gorm.io/gorm"
)

// Lead represents a prospect company/account
type Lead struct {
	gorm.Model
	OrganizationID uint `gorm:"not null;index" json:"organization_id"`

	FantasyName string `gorm:"index" json:"fantasy_name"` // trade name
	LegalName   string `json:"legal_name"`
	TaxID       string `gorm:"index" json:"tax_id"`

	Email   string `gorm:"index" json:"email"`
	Phone   string `json:"phone"`
	Website string `json:"website"`
	City    string `json:"city"`
	State   string `json:"state"`
	Segment string `json:"segment"`

	// Status
	IsUnsubscribed bool       `gorm:"default:false" json:"is_unsubscribed"`
	IsDoNotContact bool       `gorm:"default:false" json:"is_do_not_contact"`
	LastContact    *time.Time `json:"last_contact"`

	// Relations
	Contacts     []LeadContact `gorm:"foreignKey:LeadID" json:"contacts,omitempty"`
	Enrollments  []Enrollment  `gorm:"foreignKey:LeadID" json:"enrollments,omitempty"`
	Interactions []Interaction `gorm:"foreignKey:LeadID" json:"interactions,omitempty"`
}

// DisplayName returns the lead's human-facing name: trade name, falling back
// to legal name, falling back to tax id.
func (l *Lead) DisplayName() string {
	if l.FantasyName != "" {
		return l.FantasyName
	}
	if l.LegalName != "" {
		return l.LegalName
	}
	return l.TaxID
}

// FirstContactName returns the first name of the lead's primary contact, or
// of the first contact on record when none is marked primary.
func (l *Lead) FirstContactName() string {
	for _, c := range l.Contacts {
		if c.IsPrimary {
			return c.FirstName
		}
	}
	if len(l.Contacts) > 0 {
		return l.Contacts[0].FirstName
	}
	return ""
}

// LeadContact represents a person at a lead company
type LeadContact struct {
	gorm.Model
	LeadID uint `gorm:"not null;index" json:"lead_id"`

	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Position  string `json:"position"`
	IsPrimary bool   `gorm:"default:false" json:"is_primary"`
}
