package models

import "gorm.io/gorm"

// Organization represents a tenant
type Organization struct {
	gorm.Model
	Name string `gorm:"not null" json:"name"`

	// Outbound email identity
	SenderName  string `json:"sender_name"`
	SenderEmail string `json:"sender_email"`

	// Relations
	Users []User `gorm:"foreignKey:OrganizationID" json:"users,omitempty"`
}

// User represents a member of an organization. Account provisioning and
// password flows live in the external auth service; this row is what the
// session middleware resolves tokens against.
type User struct {
	gorm.Model
	OrganizationID uint `gorm:"not null;index" json:"organization_id"`

	Name  string `json:"name"`
	Email string `gorm:"not null;index" json:"email"`

	IsActive     bool `gorm:"default:true" json:"is_active"`
	TokenVersion int  `gorm:"default:0" json:"-"`

	// Relations
	Organization Organization `json:"-"`
}

// WhatsAppCredit holds an organization's remaining WhatsApp send credits.
// The balance is a counted, non-renewing resource; it is only ever changed
// through a conditional single-statement decrement.
type WhatsAppCredit struct {
	gorm.Model
	OrganizationID uint `gorm:"not null;uniqueIndex" json:"organization_id"`
	Balance        int  `gorm:"not null;default:0" json:"balance"`
}
