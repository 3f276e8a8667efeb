package engine

import (
	"context"
	"testing"
	"time"

	"leadflow/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	// A single connection keeps every session on the same in-memory
	// database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Organization{},
		&models.User{},
		&models.WhatsAppCredit{},
		&models.Template{},
		&models.Cadence{},
		&models.CadenceStep{},
		&models.Lead{},
		&models.LeadContact{},
		&models.Enrollment{},
		&models.Interaction{},
	))
	return db
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

type emailCall struct {
	OrgID         uint
	Msg           EmailMessage
	CorrelationID string
}

type fakeEmailSender struct {
	calls     []emailCall
	messageID string
	err       error
}

func (f *fakeEmailSender) Send(_ context.Context, orgID uint, msg EmailMessage, correlationID string) (string, error) {
	f.calls = append(f.calls, emailCall{OrgID: orgID, Msg: msg, CorrelationID: correlationID})
	if f.err != nil {
		return "", f.err
	}
	return f.messageID, nil
}

type whatsappCall struct {
	OrgID uint
	Msg   WhatsAppMessage
}

type fakeWhatsAppSender struct {
	calls     []whatsappCall
	messageID string
	err       error
}

func (f *fakeWhatsAppSender) Send(_ context.Context, orgID uint, msg WhatsAppMessage) (string, error) {
	f.calls = append(f.calls, whatsappCall{OrgID: orgID, Msg: msg})
	if f.err != nil {
		return "", f.err
	}
	return f.messageID, nil
}

type fakeCache struct {
	invalidated []uint
}

func (f *fakeCache) Invalidate(_ context.Context, orgID uint) {
	f.invalidated = append(f.invalidated, orgID)
}

type fakeNotifier struct {
	updated []uint
}

func (f *fakeNotifier) QueueUpdated(orgID uint) {
	f.updated = append(f.updated, orgID)
}

type testEnv struct {
	db       *gorm.DB
	engine   *Engine
	clock    fixedClock
	email    *fakeEmailSender
	whatsapp *fakeWhatsAppSender
	cache    *fakeCache
	notifier *fakeNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		db:       newTestDB(t),
		clock:    fixedClock{now: time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)},
		email:    &fakeEmailSender{messageID: "<msg-1@test>"},
		whatsapp: &fakeWhatsAppSender{messageID: "wamid.test.1"},
		cache:    &fakeCache{},
		notifier: &fakeNotifier{},
	}
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	env.engine = NewEngine(env.db, env.clock, env.email, env.whatsapp, env.cache, env.notifier, logrus.NewEntry(logger))
	return env
}

func seedOrg(t *testing.T, db *gorm.DB) models.Organization {
	t.Helper()
	org := models.Organization{Name: "Acme Outbound", SenderName: "Acme", SenderEmail: "sales@acme.test"}
	require.NoError(t, db.Create(&org).Error)
	return org
}

// seedCadence creates a cadence and its steps. Each step spec is
// (channel, delayDays, delayHours); step orders start at 1.
type stepSpec struct {
	Channel    string
	DelayDays  int
	DelayHours int
	TemplateID *uint
}

func seedCadence(t *testing.T, db *gorm.DB, orgID uint, cadenceType, name string, steps ...stepSpec) models.Cadence {
	t.Helper()
	cadence := models.Cadence{
		OrganizationID: orgID,
		CreatedBy:      1,
		Name:           name,
		Type:           cadenceType,
		Status:         "active",
	}
	require.NoError(t, db.Create(&cadence).Error)

	for i, spec := range steps {
		step := models.CadenceStep{
			CadenceID:  cadence.ID,
			StepOrder:  i + 1,
			Channel:    spec.Channel,
			DelayDays:  spec.DelayDays,
			DelayHours: spec.DelayHours,
			TemplateID: spec.TemplateID,
		}
		require.NoError(t, db.Create(&step).Error)
		cadence.Steps = append(cadence.Steps, step)
	}
	return cadence
}

func seedLead(t *testing.T, db *gorm.DB, orgID uint, name, email string) models.Lead {
	t.Helper()
	lead := models.Lead{
		OrganizationID: orgID,
		FantasyName:    name,
		Email:          email,
		Phone:          "+5511999990000",
	}
	require.NoError(t, db.Create(&lead).Error)
	return lead
}

func seedEnrollment(t *testing.T, db *gorm.DB, orgID, cadenceID, leadID uint, currentStep int, due time.Time) models.Enrollment {
	t.Helper()
	enr := models.Enrollment{
		OrganizationID: orgID,
		CadenceID:      cadenceID,
		LeadID:         leadID,
		CurrentStep:    currentStep,
		Status:         models.EnrollmentStatusActive,
		NextStepDue:    &due,
	}
	require.NoError(t, db.Create(&enr).Error)
	return enr
}

func seedCredits(t *testing.T, db *gorm.DB, orgID uint, balance int) {
	t.Helper()
	require.NoError(t, db.Create(&models.WhatsAppCredit{OrganizationID: orgID, Balance: balance}).Error)
}

func reloadEnrollment(t *testing.T, db *gorm.DB, id uint) models.Enrollment {
	t.Helper()
	var enr models.Enrollment
	require.NoError(t, db.First(&enr, id).Error)
	return enr
}

func countInteractions(t *testing.T, db *gorm.DB, cadenceID, stepID, leadID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.Interaction{}).
		Where("cadence_id = ? AND step_id = ? AND lead_id = ?", cadenceID, stepID, leadID).
		Count(&n).Error)
	return n
}
