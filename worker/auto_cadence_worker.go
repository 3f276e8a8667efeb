package worker

import (
	"context"
	"errors"
	"time"

	"leadflow/engine"
	"leadflow/models"
	"leadflow/utils"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const autoBatchSize = 50

// AutoCadenceWorker drives enrollments of auto_email cadences: the manual
// activity queue never surfaces them, so a background loop renders the due
// step's template and pushes it through the same execution engine the queue
// uses. Only email steps are sent automatically; other channels reschedule
// past the step.
type AutoCadenceWorker struct {
	DB           *gorm.DB
	Engine       *engine.Engine
	Personalizer *utils.Personalizer
	Logger       *logrus.Entry
	Interval     time.Duration
}

func NewAutoCadenceWorker(db *gorm.DB, eng *engine.Engine, personalizer *utils.Personalizer, logger *logrus.Entry, interval time.Duration) *AutoCadenceWorker {
	return &AutoCadenceWorker{
		DB:           db,
		Engine:       eng,
		Personalizer: personalizer,
		Logger:       logger,
		Interval:     interval,
	}
}

func (w *AutoCadenceWorker) Start(ctx context.Context) {
	// Initial delay to let the server start up
	time.Sleep(10 * time.Second)

	w.Logger.Info("auto cadence worker started")

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.Logger.Info("auto cadence worker shutting down...")
			return
		case <-ticker.C:
			w.processDueEnrollments(ctx)
		}
	}
}

func (w *AutoCadenceWorker) processDueEnrollments(ctx context.Context) {
	var enrollments []models.Enrollment
	if err := w.DB.WithContext(ctx).
		Joins("JOIN cadences ON cadences.id = enrollments.cadence_id").
		Where("cadences.type = ? AND enrollments.status = ? AND enrollments.next_step_due <= ?",
			models.CadenceTypeAutoEmail, models.EnrollmentStatusActive, time.Now()).
		Order("enrollments.next_step_due ASC").
		Limit(autoBatchSize).
		Find(&enrollments).Error; err != nil {
		w.Logger.WithError(err).Error("failed to fetch due auto enrollments")
		return
	}

	for _, enr := range enrollments {
		if err := w.processEnrollment(ctx, enr); err != nil {
			w.Logger.WithError(err).WithFields(logrus.Fields{
				"enrollment_id": enr.ID,
				"cadence_id":    enr.CadenceID,
			}).Error("failed to process auto enrollment")
		}
	}
}

func (w *AutoCadenceWorker) processEnrollment(ctx context.Context, enr models.Enrollment) error {
	var cadence models.Cadence
	if err := w.DB.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("step_order ASC") }).
		First(&cadence, enr.CadenceID).Error; err != nil {
		return err
	}

	var step *models.CadenceStep
	for i := range cadence.Steps {
		if cadence.Steps[i].StepOrder == enr.CurrentStep {
			step = &cadence.Steps[i]
			break
		}
	}
	if step == nil {
		w.Logger.WithField("enrollment_id", enr.ID).Warn("current step missing, skipping enrollment")
		return nil
	}

	if step.Channel != models.ChannelEmail {
		// Auto cadences only automate the email channel; reschedule so a
		// human picks the step up from the activity log.
		return w.deferStep(ctx, enr)
	}

	var lead models.Lead
	if err := w.DB.WithContext(ctx).Preload("Contacts").First(&lead, enr.LeadID).Error; err != nil {
		return err
	}
	if lead.Email == "" || lead.IsUnsubscribed || lead.IsDoNotContact {
		return w.deferStep(ctx, enr)
	}

	subject, body := w.renderStep(ctx, &cadence, step, &lead)

	_, err := w.Engine.Execute(ctx, engine.ExecuteInput{
		EnrollmentID:     enr.ID,
		CadenceID:        cadence.ID,
		StepID:           step.ID,
		LeadID:           lead.ID,
		OrganizationID:   enr.OrganizationID,
		CadenceCreatedBy: cadence.CreatedBy,
		Channel:          models.ChannelEmail,
		To:               lead.Email,
		Subject:          subject,
		Body:             body,
		AIGenerated:      step.AIPersonalization,
		TemplateID:       step.TemplateID,
	})
	if errors.Is(err, engine.ErrAlreadyExecuted) {
		// Executed elsewhere but the enrollment never advanced past it;
		// push the due time so the batch doesn't spin on this row.
		w.Logger.WithField("enrollment_id", enr.ID).Warn("step already executed, deferring")
		return w.deferStep(ctx, enr)
	}
	if err != nil {
		return err
	}

	return w.scheduleNextStep(ctx, enr.ID)
}

// renderStep produces the subject and body for a step from its template,
// optionally rewritten by the personalization service. Any personalization
// failure falls back to the rendered template.
func (w *AutoCadenceWorker) renderStep(ctx context.Context, cadence *models.Cadence, step *models.CadenceStep, lead *models.Lead) (string, string) {
	subject := cadence.Name
	body := ""

	if step.TemplateID != nil {
		var tpl models.Template
		if err := w.DB.WithContext(ctx).First(&tpl, *step.TemplateID).Error; err == nil {
			subject = tpl.Subject
			body = tpl.HTMLContent
		}
	}

	body = utils.RenderTemplate(body, lead)
	subject = utils.RenderTemplate(subject, lead)

	if step.AIPersonalization && w.Personalizer != nil {
		newBody, newSubject := w.Personalizer.Personalize(ctx, step.Channel, body, lead, cadence.OrganizationID)
		body = newBody
		if newSubject != "" {
			subject = newSubject
		}
	}

	return subject, body
}

// scheduleNextStep computes the new due time from the advanced enrollment's
// current step delay. Completed enrollments have nothing to schedule.
func (w *AutoCadenceWorker) scheduleNextStep(ctx context.Context, enrollmentID uint) error {
	var enr models.Enrollment
	if err := w.DB.WithContext(ctx).First(&enr, enrollmentID).Error; err != nil {
		return err
	}
	if enr.Status != models.EnrollmentStatusActive {
		return nil
	}

	var step models.CadenceStep
	if err := w.DB.WithContext(ctx).
		Where("cadence_id = ? AND step_order = ?", enr.CadenceID, enr.CurrentStep).
		First(&step).Error; err != nil {
		return err
	}

	due := time.Now().Add(time.Duration(step.DelayFromPrevious()) * time.Hour)
	return w.DB.WithContext(ctx).
		Model(&models.Enrollment{}).
		Where("id = ?", enr.ID).
		Update("next_step_due", due).Error
}

func (w *AutoCadenceWorker) deferStep(ctx context.Context, enr models.Enrollment) error {
	return w.DB.WithContext(ctx).
		Model(&models.Enrollment{}).
		Where("id = ?", enr.ID).
		Update("next_step_due", time.Now().Add(2*time.Hour)).Error
}
