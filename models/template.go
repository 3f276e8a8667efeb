package models

import "gorm.io/gorm"

// Template represents a reusable outreach message template. Bodies may
// contain {{placeholder}} tokens resolved from lead fields at send time.
type Template struct {
	gorm.Model
	OrganizationID uint `gorm:"not null;index" json:"organization_id"`

	Name        string `gorm:"not null" json:"name"`
	Channel     string `gorm:"default:'email'" json:"channel"`
	Subject     string `json:"subject"`
	HTMLContent string `gorm:"type:text" json:"html_content"`
	TextContent string `gorm:"type:text" json:"text_content"`

	// Relations
	Organization Organization `json:"-"`
}
