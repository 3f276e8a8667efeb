package engine

import (
	"context"
	"errors"
	"fmt"

	"leadflow/models"

	"github.com/badoux/checkmail"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ExecuteInput identifies one pending activity and carries the already
// rendered message to deliver.
type ExecuteInput struct {
	EnrollmentID     uint   `json:"enrollment_id" validate:"required"`
	CadenceID        uint   `json:"cadence_id" validate:"required"`
	StepID           uint   `json:"step_id" validate:"required"`
	LeadID           uint   `json:"lead_id" validate:"required"`
	OrganizationID   uint   `json:"organization_id" validate:"required"`
	CadenceCreatedBy uint   `json:"cadence_created_by"`
	Channel          string `json:"channel" validate:"required,oneof=email whatsapp phone linkedin research"`
	To               string `json:"to"`
	Subject          string `json:"subject"`
	Body             string `json:"body"`
	AIGenerated      bool   `json:"ai_generated"`
	TemplateID       *uint  `json:"template_id"`
}

// ExecuteResult reports the recorded interaction and whether the enrollment
// reached the end of its cadence.
type ExecuteResult struct {
	InteractionID uint `json:"interaction_id"`
	Completed     bool `json:"completed"`
}

// Execute performs one pending activity exactly once:
//
//  1. idempotency check against the interaction ledger
//  2. WhatsApp only: atomically consume a send credit
//  3. record the interaction (a duplicate-key failure here is the
//     idempotency signal under races)
//  4. dispatch through the channel's send capability; delivery failure is
//     logged, never fatal
//  5. advance the enrollment to the next step, or complete it
//
// Credits are consumed before the ledger write so a credit failure never
// leaves a recorded-but-undelivered interaction behind.
func (e *Engine) Execute(ctx context.Context, input ExecuteInput) (*ExecuteResult, error) {
	log := e.logger.WithFields(logrus.Fields{
		"org_id":        input.OrganizationID,
		"enrollment_id": input.EnrollmentID,
		"cadence_id":    input.CadenceID,
		"step_id":       input.StepID,
		"lead_id":       input.LeadID,
		"channel":       input.Channel,
	})

	// Fast-path idempotency check. The unique ledger index is the real
	// guard; this avoids burning a WhatsApp credit on an obvious retry.
	var existing int64
	if err := e.db.WithContext(ctx).
		Model(&models.Interaction{}).
		Where("cadence_id = ? AND step_id = ? AND lead_id = ?",
			input.CadenceID, input.StepID, input.LeadID).
		Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	if existing > 0 {
		return nil, ErrAlreadyExecuted
	}

	if input.Channel == models.ChannelWhatsApp {
		if err := e.checkAndDeductCredit(ctx, input.OrganizationID); err != nil {
			return nil, err
		}
	}

	interaction := models.Interaction{
		OrganizationID: input.OrganizationID,
		CadenceID:      input.CadenceID,
		StepID:         input.StepID,
		LeadID:         input.LeadID,
		Type:           models.InteractionTypeSent,
		Channel:        input.Channel,
		MessageContent: PlainText(input.Body),
		Metadata: models.InteractionMetadata{
			Subject:  input.Subject,
			HTMLBody: input.Body,
		},
		AIGenerated:        input.AIGenerated,
		OriginalTemplateID: input.TemplateID,
		PerformedBy:        input.CadenceCreatedBy,
	}
	if err := e.db.WithContext(ctx).Create(&interaction).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost the race to a concurrent execution.
			return nil, ErrAlreadyExecuted
		}
		log.WithError(err).Error("failed to record interaction")
		return nil, ErrRecordFailed
	}

	e.dispatch(ctx, log, &interaction, input)

	completed, err := e.advanceEnrollment(ctx, input)
	if err != nil {
		return nil, err
	}

	e.signalQueueChanged(ctx, input.OrganizationID)

	log.WithField("interaction_id", interaction.ID).Info("activity executed")
	return &ExecuteResult{InteractionID: interaction.ID, Completed: completed}, nil
}

// dispatch sends the message through the channel's capability and attaches
// the provider message id to the interaction. Delivery failure leaves the
// step executed; the failure is only logged.
func (e *Engine) dispatch(ctx context.Context, log *logrus.Entry, interaction *models.Interaction, input ExecuteInput) {
	var (
		externalID string
		err        error
	)

	switch input.Channel {
	case models.ChannelWhatsApp:
		if e.whatsapp == nil {
			log.Warn("no whatsapp sender configured, skipping delivery")
			return
		}
		externalID, err = e.whatsapp.Send(ctx, input.OrganizationID, WhatsAppMessage{
			To:   input.To,
			Body: input.Body,
		})
	default:
		if e.email == nil {
			log.Warn("no email sender configured, skipping delivery")
			return
		}
		if ferr := checkmail.ValidateFormat(input.To); ferr != nil {
			log.WithError(ferr).Warn("invalid recipient address, skipping delivery")
			return
		}
		externalID, err = e.email.Send(ctx, input.OrganizationID, EmailMessage{
			To:       input.To,
			Subject:  input.Subject,
			HTMLBody: input.Body,
		}, fmt.Sprintf("%d", interaction.ID))
	}

	if err != nil {
		log.WithError(err).Warn("message delivery failed")
		return
	}

	if externalID != "" {
		if uerr := e.db.WithContext(ctx).
			Model(interaction).
			Update("external_id", externalID).Error; uerr != nil {
			log.WithError(uerr).Warn("failed to attach provider message id")
		}
	}
}

// advanceEnrollment moves the enrollment to the step after the one just
// executed, or completes it when none exists. current_step only ever grows;
// active → completed happens exactly once.
func (e *Engine) advanceEnrollment(ctx context.Context, input ExecuteInput) (bool, error) {
	var executedStep models.CadenceStep
	if err := e.db.WithContext(ctx).
		Where("id = ? AND cadence_id = ?", input.StepID, input.CadenceID).
		First(&executedStep).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}

	var nextStep models.CadenceStep
	err := e.db.WithContext(ctx).
		Where("cadence_id = ? AND step_order > ?", input.CadenceID, executedStep.StepOrder).
		Order("step_order ASC").
		First(&nextStep).Error

	switch {
	case err == nil:
		res := e.db.WithContext(ctx).
			Model(&models.Enrollment{}).
			Where("id = ? AND organization_id = ?", input.EnrollmentID, input.OrganizationID).
			Update("current_step", nextStep.StepOrder)
		if res.Error != nil {
			return false, fmt.Errorf("%w: %v", ErrQueryFailed, res.Error)
		}
		if res.RowsAffected == 0 {
			return false, ErrNotFound
		}
		return false, nil

	case errors.Is(err, gorm.ErrRecordNotFound):
		now := e.clock.Now()
		res := e.db.WithContext(ctx).
			Model(&models.Enrollment{}).
			Where("id = ? AND organization_id = ?", input.EnrollmentID, input.OrganizationID).
			Updates(map[string]interface{}{
				"status":        models.EnrollmentStatusCompleted,
				"completed_at":  now,
				"next_step_due": nil,
			})
		if res.Error != nil {
			return false, fmt.Errorf("%w: %v", ErrQueryFailed, res.Error)
		}
		if res.RowsAffected == 0 {
			return false, ErrNotFound
		}
		return true, nil

	default:
		return false, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
}
