package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"leadflow/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func executeInputFor(org models.Organization, cadence models.Cadence, step models.CadenceStep, lead models.Lead, enr models.Enrollment) ExecuteInput {
	return ExecuteInput{
		EnrollmentID:     enr.ID,
		CadenceID:        cadence.ID,
		StepID:           step.ID,
		LeadID:           lead.ID,
		OrganizationID:   org.ID,
		CadenceCreatedBy: cadence.CreatedBy,
		Channel:          step.Channel,
		To:               lead.Email,
		Subject:          "Quick question",
		Body:             "<p>Hi there,</p><p>Worth a chat?</p>",
	}
}

func TestExecute_HappyPathAdvancesEnrollment(t *testing.T) {
	env := newTestEnv(t)
	org := seedOrg(t, env.db)

	cadence := seedCadence(t, env.db, org.ID, models.CadenceTypeManual, "Happy",
		stepSpec{Channel: models.ChannelEmail},
		stepSpec{Channel: models.ChannelEmail, DelayHours: 4},
		stepSpec{Channel: models.ChannelPhone, DelayDays: 2},
	)
	lead := seedLead(t, env.db, org.ID, "Lead", "lead@test.dev")
	enr := seedEnrollment(t, env.db, org.ID, cadence.ID, lead.ID, 1, env.clock.now)

	result, err := env.engine.Execute(context.Background(), executeInputFor(org, cadence, cadence.Steps[0], lead, enr))
	require.NoError(t, err)
	require.NotZero(t, result.InteractionID)
	assert.False(t, result.Completed)

	after := reloadEnrollment(t, env.db, enr.ID)
	assert.Equal(t, 2, after.CurrentStep)
	assert.Equal(t, models.EnrollmentStatusActive, after.Status)

	require.Len(t, env.email.calls, 1)
	assert.Equal(t, "lead@test.dev", env.email.calls[0].Msg.To)

	var interaction models.Interaction
	require.NoError(t, env.db.First(&interaction, result.InteractionID).Error)
	assert.Equal(t, models.InteractionTypeSent, interaction.Type)
	assert.Equal(t, "Hi there, Worth a chat?", interaction.MessageContent)
	assert.Equal(t, "<p>Hi there,</p><p>Worth a chat?</p>", interaction.Metadata.HTMLBody)
	assert.Equal(t, "<msg-1@test>", interaction.ExternalID)

	assert.Contains(t, env.cache.invalidated, org.ID)
	assert.Contains(t, env.notifier.updated, org.ID)
}

func TestExecute_IsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	org := seedOrg(t, env.db)

	cadence := seedCadence(t, env.db, org.ID, models.CadenceTypeManual, "Twice",
		stepSpec{Channel: models.ChannelEmail},
		stepSpec{Channel: models.ChannelEmail, DelayHours: 1},
	)
	lead := seedLead(t, env.db, org.ID, "Lead", "lead@test.dev")
	enr := seedEnrollment(t, env.db, org.ID, cadence.ID, lead.ID, 1, env.clock.now)

	input := executeInputFor(org, cadence, cadence.Steps[0], lead, enr)

	_, err := env.engine.Execute(context.Background(), input)
	require.NoError(t, err)

	_, err = env.engine.Execute(context.Background(), input)
	require.ErrorIs(t, err, ErrAlreadyExecuted)

	assert.EqualValues(t, 1, countInteractions(t, env.db, cadence.ID, cadence.Steps[0].ID, lead.ID))
	assert.Len(t, env.email.calls, 1)
}

func TestExecute_LastStepCompletesEnrollment(t *testing.T) {
	env := newTestEnv(t)
	org := seedOrg(t, env.db)

	cadence := seedCadence(t, env.db, org.ID, models.CadenceTypeManual, "Final",
		stepSpec{Channel: models.ChannelEmail},
		stepSpec{Channel: models.ChannelEmail, DelayHours: 1},
		stepSpec{Channel: models.ChannelEmail, DelayHours: 1},
	)
	lead := seedLead(t, env.db, org.ID, "Lead", "lead@test.dev")
	enr := seedEnrollment(t, env.db, org.ID, cadence.ID, lead.ID, 3, env.clock.now)

	result, err := env.engine.Execute(context.Background(), executeInputFor(org, cadence, cadence.Steps[2], lead, enr))
	require.NoError(t, err)
	assert.True(t, result.Completed)

	after := reloadEnrollment(t, env.db, enr.ID)
	assert.Equal(t, models.EnrollmentStatusCompleted, after.Status)
	assert.Nil(t, after.NextStepDue)
	require.NotNil(t, after.CompletedAt)
	assert.WithinDuration(t, env.clock.now, *after.CompletedAt, time.Second)
}

func TestExecute_SendFailureIsNonFatal(t *testing.T) {
	env := newTestEnv(t)
	env.email.err = errors.New("smtp connection refused")
	org := seedOrg(t, env.db)

	cadence := seedCadence(t, env.db, org.ID, models.CadenceTypeManual, "Flaky",
		stepSpec{Channel: models.ChannelEmail},
		stepSpec{Channel: models.ChannelEmail, DelayHours: 1},
	)
	lead := seedLead(t, env.db, org.ID, "Lead", "lead@test.dev")
	enr := seedEnrollment(t, env.db, org.ID, cadence.ID, lead.ID, 1, env.clock.now)

	result, err := env.engine.Execute(context.Background(), executeInputFor(org, cadence, cadence.Steps[0], lead, enr))
	require.NoError(t, err)
	require.NotZero(t, result.InteractionID)

	// The step counts as executed and the enrollment advances; only the
	// provider message id is missing.
	after := reloadEnrollment(t, env.db, enr.ID)
	assert.Equal(t, 2, after.CurrentStep)

	var interaction models.Interaction
	require.NoError(t, env.db.First(&interaction, result.InteractionID).Error)
	assert.Empty(t, interaction.ExternalID)
}

func TestExecute_WhatsAppDeductsCredit(t *testing.T) {
	env := newTestEnv(t)
	org := seedOrg(t, env.db)
	seedCredits(t, env.db, org.ID, 2)

	cadence := seedCadence(t, env.db, org.ID, models.CadenceTypeManual, "WA",
		stepSpec{Channel: models.ChannelWhatsApp},
		stepSpec{Channel: models.ChannelWhatsApp, DelayHours: 1},
	)
	lead := seedLead(t, env.db, org.ID, "Lead", "lead@test.dev")
	enr := seedEnrollment(t, env.db, org.ID, cadence.ID, lead.ID, 1, env.clock.now)

	input := executeInputFor(org, cadence, cadence.Steps[0], lead, enr)
	input.To = lead.Phone
	input.Body = "Oi {{first_name}}, tudo bem?"

	result, err := env.engine.Execute(context.Background(), input)
	require.NoError(t, err)
	require.NotZero(t, result.InteractionID)

	require.Len(t, env.whatsapp.calls, 1)
	assert.Equal(t, lead.Phone, env.whatsapp.calls[0].Msg.To)
	assert.Empty(t, env.email.calls)

	var credit models.WhatsAppCredit
	require.NoError(t, env.db.Where("organization_id = ?", org.ID).First(&credit).Error)
	assert.Equal(t, 1, credit.Balance)

	var interaction models.Interaction
	require.NoError(t, env.db.First(&interaction, result.InteractionID).Error)
	assert.Equal(t, "wamid.test.1", interaction.ExternalID)
}

func TestExecute_WhatsAppCreditExhausted(t *testing.T) {
	env := newTestEnv(t)
	org := seedOrg(t, env.db)
	seedCredits(t, env.db, org.ID, 0)

	cadence := seedCadence(t, env.db, org.ID, models.CadenceTypeManual, "Broke",
		stepSpec{Channel: models.ChannelWhatsApp},
	)
	lead := seedLead(t, env.db, org.ID, "Lead", "lead@test.dev")
	enr := seedEnrollment(t, env.db, org.ID, cadence.ID, lead.ID, 1, env.clock.now)

	input := executeInputFor(org, cadence, cadence.Steps[0], lead, enr)
	input.To = lead.Phone

	_, err := env.engine.Execute(context.Background(), input)
	require.ErrorIs(t, err, ErrCreditExhausted)

	// Credit is checked before anything is written: no interaction, no
	// send, no enrollment mutation.
	assert.EqualValues(t, 0, countInteractions(t, env.db, cadence.ID, cadence.Steps[0].ID, lead.ID))
	assert.Empty(t, env.whatsapp.calls)
	after := reloadEnrollment(t, env.db, enr.ID)
	assert.Equal(t, 1, after.CurrentStep)
	assert.Equal(t, models.EnrollmentStatusActive, after.Status)
}

func TestExecute_LookaheadStepKeepsProgressMonotonic(t *testing.T) {
	env := newTestEnv(t)
	org := seedOrg(t, env.db)

	cadence := seedCadence(t, env.db, org.ID, models.CadenceTypeManual, "Ahead",
		stepSpec{Channel: models.ChannelEmail},
		stepSpec{Channel: models.ChannelEmail, DelayHours: 2},
		stepSpec{Channel: models.ChannelEmail, DelayHours: 2},
	)
	lead := seedLead(t, env.db, org.ID, "Lead", "lead@test.dev")
	enr := seedEnrollment(t, env.db, org.ID, cadence.ID, lead.ID, 1, env.clock.now)

	// Executing the lookahead step 2 moves the pointer past it.
	_, err := env.engine.Execute(context.Background(), executeInputFor(org, cadence, cadence.Steps[1], lead, enr))
	require.NoError(t, err)

	after := reloadEnrollment(t, env.db, enr.ID)
	assert.Equal(t, 3, after.CurrentStep)
}

func TestExecute_UnknownStep(t *testing.T) {
	env := newTestEnv(t)
	org := seedOrg(t, env.db)

	cadence := seedCadence(t, env.db, org.ID, models.CadenceTypeManual, "Ghost",
		stepSpec{Channel: models.ChannelEmail},
	)
	lead := seedLead(t, env.db, org.ID, "Lead", "lead@test.dev")
	enr := seedEnrollment(t, env.db, org.ID, cadence.ID, lead.ID, 1, env.clock.now)

	input := executeInputFor(org, cadence, cadence.Steps[0], lead, enr)
	input.StepID = 9999

	_, err := env.engine.Execute(context.Background(), input)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestInteractionLedgerKeyIsUnique(t *testing.T) {
	env := newTestEnv(t)
	org := seedOrg(t, env.db)

	row := models.Interaction{
		OrganizationID: org.ID,
		CadenceID:      1,
		StepID:         1,
		LeadID:         1,
		Type:           models.InteractionTypeSent,
		Channel:        models.ChannelEmail,
	}
	require.NoError(t, env.db.Create(&row).Error)

	dup := models.Interaction{
		OrganizationID: org.ID,
		CadenceID:      1,
		StepID:         1,
		LeadID:         1,
		Type:           models.InteractionTypeSent,
		Channel:        models.ChannelEmail,
	}
	err := env.db.Create(&dup).Error
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	// A different type for the same step is a separate record, not a
	// duplicate.
	reply := models.Interaction{
		OrganizationID: org.ID,
		CadenceID:      1,
		StepID:         1,
		LeadID:         1,
		Type:           models.InteractionTypeReply,
		Channel:        models.ChannelEmail,
	}
	require.NoError(t, env.db.Create(&reply).Error)
}
