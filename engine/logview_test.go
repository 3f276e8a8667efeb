package engine

import (
	"context"
	"testing"
	"time"

	"leadflow/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListActivityLog_OverdueBoundary(t *testing.T) {
	env := newTestEnv(t)
	org := seedOrg(t, env.db)

	cadence := seedCadence(t, env.db, org.ID, models.CadenceTypeManual, "Log",
		stepSpec{Channel: models.ChannelEmail},
	)
	exactly := seedLead(t, env.db, org.ID, "Exactly One Hour", "one@lead.test")
	almost := seedLead(t, env.db, org.ID, "Fifty Nine Min", "fiftynine@lead.test")
	seedEnrollment(t, env.db, org.ID, cadence.ID, exactly.ID, 1, env.clock.now.Add(-time.Hour))
	seedEnrollment(t, env.db, org.ID, cadence.ID, almost.ID, 1, env.clock.now.Add(-59*time.Minute))

	entries, err := env.engine.ListActivityLog(context.Background(), org.ID, ActivityLogFilters{})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byLead := map[uint]ActivityLogEntry{}
	for _, e := range entries {
		byLead[e.LeadID] = e
	}
	assert.Equal(t, LogStatusOverdue, byLead[exactly.ID].Status)
	assert.Equal(t, LogStatusDue, byLead[almost.ID].Status)
}

func TestListActivityLog_IncludesAutoEmailCadences(t *testing.T) {
	env := newTestEnv(t)
	org := seedOrg(t, env.db)

	auto := seedCadence(t, env.db, org.ID, models.CadenceTypeAutoEmail, "Drip",
		stepSpec{Channel: models.ChannelEmail},
	)
	lead := seedLead(t, env.db, org.ID, "Auto Lead", "auto@lead.test")
	seedEnrollment(t, env.db, org.ID, auto.ID, lead.ID, 1, env.clock.now)

	entries, err := env.engine.ListActivityLog(context.Background(), org.ID, ActivityLogFilters{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.CadenceTypeAutoEmail, entries[0].CadenceType)
}

func TestListActivityLog_StatusAndChannelFilters(t *testing.T) {
	env := newTestEnv(t)
	org := seedOrg(t, env.db)

	cadence := seedCadence(t, env.db, org.ID, models.CadenceTypeManual, "Mixed",
		stepSpec{Channel: models.ChannelEmail},
		stepSpec{Channel: models.ChannelWhatsApp, DelayHours: 1},
	)
	overdueLead := seedLead(t, env.db, org.ID, "Overdue Lead", "late@lead.test")
	dueLead := seedLead(t, env.db, org.ID, "Due Lead", "due@lead.test")
	seedEnrollment(t, env.db, org.ID, cadence.ID, overdueLead.ID, 1, env.clock.now.Add(-3*time.Hour))
	waEnr := seedEnrollment(t, env.db, org.ID, cadence.ID, dueLead.ID, 2, env.clock.now)

	entries, err := env.engine.ListActivityLog(context.Background(), org.ID, ActivityLogFilters{Status: LogStatusOverdue})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, overdueLead.ID, entries[0].LeadID)

	entries, err = env.engine.ListActivityLog(context.Background(), org.ID, ActivityLogFilters{Channel: models.ChannelWhatsApp})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, waEnr.ID, entries[0].EnrollmentID)
	assert.Equal(t, 2, entries[0].StepOrder)
}

func TestActivityLogFilters_SearchMatchesAnyField(t *testing.T) {
	entry := ActivityLogEntry{
		LeadName:    "Padaria Central",
		CadenceName: "Q2 Prospecting",
		LeadEmail:   "contato@padaria.test",
		LeadPhone:   "+5511988887777",
	}

	assert.True(t, ActivityLogFilters{Search: "padaria"}.Matches(entry))
	assert.True(t, ActivityLogFilters{Search: "PROSPECT"}.Matches(entry))
	assert.True(t, ActivityLogFilters{Search: "contato@"}.Matches(entry))
	assert.True(t, ActivityLogFilters{Search: "8888"}.Matches(entry))
	assert.False(t, ActivityLogFilters{Search: "metalurgica"}.Matches(entry))
	assert.True(t, ActivityLogFilters{}.Matches(entry))
}

func TestListActivityLog_OrderedByDueTime(t *testing.T) {
	env := newTestEnv(t)
	org := seedOrg(t, env.db)

	cadence := seedCadence(t, env.db, org.ID, models.CadenceTypeManual, "Order",
		stepSpec{Channel: models.ChannelEmail},
	)
	later := seedLead(t, env.db, org.ID, "Later", "later@lead.test")
	sooner := seedLead(t, env.db, org.ID, "Sooner", "sooner@lead.test")
	seedEnrollment(t, env.db, org.ID, cadence.ID, later.ID, 1, env.clock.now.Add(-time.Hour))
	seedEnrollment(t, env.db, org.ID, cadence.ID, sooner.ID, 1, env.clock.now.Add(-5*time.Hour))

	entries, err := env.engine.ListActivityLog(context.Background(), org.ID, ActivityLogFilters{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, sooner.ID, entries[0].LeadID)
	assert.Equal(t, later.ID, entries[1].LeadID)
}
