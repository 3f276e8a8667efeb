package engine

import (
	"context"
	"testing"
	"time"

	"leadflow/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSkip_DefersTwoHours(t *testing.T) {
	env := newTestEnv(t)
	org := seedOrg(t, env.db)

	cadence := seedCadence(t, env.db, org.ID, models.CadenceTypeManual, "Skip",
		stepSpec{Channel: models.ChannelEmail},
		stepSpec{Channel: models.ChannelEmail, DelayHours: 1},
	)
	lead := seedLead(t, env.db, org.ID, "Lead", "lead@test.dev")
	enr := seedEnrollment(t, env.db, org.ID, cadence.ID, lead.ID, 1, env.clock.now.Add(-time.Hour))

	result, err := env.engine.Skip(context.Background(), enr.ID, org.ID)
	require.NoError(t, err)
	assert.Equal(t, env.clock.now.Add(2*time.Hour), result.NextStepDue)

	after := reloadEnrollment(t, env.db, enr.ID)
	require.NotNil(t, after.NextStepDue)
	assert.WithinDuration(t, env.clock.now.Add(2*time.Hour), *after.NextStepDue, time.Second)

	// Deferral never touches progression state.
	assert.Equal(t, 1, after.CurrentStep)
	assert.Equal(t, models.EnrollmentStatusActive, after.Status)

	assert.Contains(t, env.cache.invalidated, org.ID)
	assert.Contains(t, env.notifier.updated, org.ID)
}

func TestSkip_UnknownEnrollment(t *testing.T) {
	env := newTestEnv(t)
	org := seedOrg(t, env.db)

	_, err := env.engine.Skip(context.Background(), 4242, org.ID)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, env.cache.invalidated)
}

func TestSkip_OtherOrganizationEnrollment(t *testing.T) {
	env := newTestEnv(t)
	org := seedOrg(t, env.db)
	other := models.Organization{Name: "Other Org", SenderName: "Other", SenderEmail: "other@org.test"}
	require.NoError(t, env.db.Create(&other).Error)

	cadence := seedCadence(t, env.db, org.ID, models.CadenceTypeManual, "Owned",
		stepSpec{Channel: models.ChannelEmail},
	)
	lead := seedLead(t, env.db, org.ID, "Lead", "lead@test.dev")
	enr := seedEnrollment(t, env.db, org.ID, cadence.ID, lead.ID, 1, env.clock.now)

	_, err := env.engine.Skip(context.Background(), enr.ID, other.ID)
	require.ErrorIs(t, err, ErrNotFound)

	after := reloadEnrollment(t, env.db, enr.ID)
	assert.WithinDuration(t, env.clock.now, *after.NextStepDue, time.Second)
}
