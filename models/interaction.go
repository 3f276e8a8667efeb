package models

import "gorm.io/gorm"

// Interaction types
const (
	InteractionTypeSent    = "sent"
	InteractionTypeReply   = "reply"
	InteractionTypeNote    = "note"
	InteractionTypeSkipped = "skipped"
)

// InteractionMetadata carries the raw message details alongside the
// plain-text projection stored on the row itself.
type InteractionMetadata struct {
	Subject  string `json:"subject,omitempty"`
	HTMLBody string `json:"html_body,omitempty"`
}

// Interaction is the append-only record of an outreach action taken against
// a lead. The composite unique index on (cadence_id, step_id, lead_id, type)
// is the idempotency guard: a concurrent duplicate insert of a "sent" row
// fails with gorm.ErrDuplicatedKey instead of creating a second record.
type Interaction struct {
	gorm.Model
	OrganizationID uint `gorm:"not null;index" json:"organization_id"`
	CadenceID      uint `gorm:"not null;uniqueIndex:idx_interaction_step_key" json:"cadence_id"`
	StepID         uint `gorm:"not null;uniqueIndex:idx_interaction_step_key" json:"step_id"`
	LeadID         uint `gorm:"not null;index;uniqueIndex:idx_interaction_step_key" json:"lead_id"`

	Type    string `gorm:"not null;uniqueIndex:idx_interaction_step_key" json:"type"` // sent, reply, note, skipped
	Channel string `gorm:"not null" json:"channel"`

	MessageContent string              `gorm:"type:text" json:"message_content"` // plain-text projection of the body
	Metadata       InteractionMetadata `gorm:"type:jsonb;serializer:json" json:"metadata"`

	ExternalID         string `gorm:"index" json:"external_id,omitempty"` // provider message id, set after delivery
	AIGenerated        bool   `gorm:"default:false" json:"ai_generated"`
	OriginalTemplateID *uint  `json:"original_template_id,omitempty"`
	PerformedBy        uint   `json:"performed_by"`

	// Relations
	Cadence Cadence `json:"-"`
	Lead    Lead    `json:"-"`
}
