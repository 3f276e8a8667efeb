package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"leadflow/models"

	"gorm.io/gorm"
)

const (
	// pendingFetchLimit bounds the bulk enrollment fetch. A safety bound,
	// not a business rule.
	pendingFetchLimit = 200

	// lookaheadHours is the horizon beyond the due step within which future
	// steps are also surfaced for early execution. Inclusive at the bound.
	lookaheadHours = 24
)

// PendingActivity is the derived, non-persisted projection of one executable
// (enrollment, step) pair. Computed fresh on every query.
type PendingActivity struct {
	EnrollmentID uint `json:"enrollment_id"`

	CadenceID        uint   `json:"cadence_id"`
	CadenceName      string `json:"cadence_name"`
	CadenceCreatedBy uint   `json:"cadence_created_by"`
	TotalSteps       int    `json:"total_steps"`

	StepID            uint   `json:"step_id"`
	StepOrder         int    `json:"step_order"`
	Channel           string `json:"channel"`
	TemplateID        *uint  `json:"template_id,omitempty"`
	TemplateSubject   string `json:"template_subject"`
	TemplateBody      string `json:"template_body"`
	AIPersonalization bool   `json:"ai_personalization"`

	LeadID    uint   `json:"lead_id"`
	LeadName  string `json:"lead_name"`
	FirstName string `json:"first_name"`
	LeadEmail string `json:"lead_email"`
	LeadPhone string `json:"lead_phone"`

	NextStepDue   time.Time `json:"next_step_due"`
	IsCurrentStep bool      `json:"is_current_step"`
}

// stepKey identifies a logically unique executable unit of work.
type stepKey struct {
	CadenceID uint
	StepID    uint
	LeadID    uint
}

// ListPendingActivities produces the manual execution queue for an
// organization: the due step of every active enrollment plus look-ahead steps
// inside the 24-hour window, minus anything already executed. Enrollments of
// auto_email cadences belong to the background worker and are excluded.
func (e *Engine) ListPendingActivities(ctx context.Context, orgID uint) ([]PendingActivity, error) {
	var enrollments []models.Enrollment
	if err := e.db.WithContext(ctx).
		Where("organization_id = ? AND status = ? AND next_step_due IS NOT NULL",
			orgID, models.EnrollmentStatusActive).
		Order("next_step_due ASC").
		Limit(pendingFetchLimit).
		Find(&enrollments).Error; err != nil {
		return nil, fmt.Errorf("%w: enrollments: %v", ErrQueryFailed, err)
	}
	if len(enrollments) == 0 {
		return []PendingActivity{}, nil
	}

	cadences, err := e.fetchCadences(ctx, enrollments)
	if err != nil {
		return nil, err
	}
	leads, err := e.fetchLeads(ctx, enrollments)
	if err != nil {
		return nil, err
	}
	templates, err := e.fetchTemplates(ctx, cadences)
	if err != nil {
		return nil, err
	}

	activities := buildPendingActivities(enrollments, cadences, leads, templates)

	executed, err := e.fetchExecutedKeys(ctx, orgID, activities)
	if err != nil {
		return nil, err
	}

	filtered := activities[:0]
	for _, a := range activities {
		if _, done := executed[stepKey{a.CadenceID, a.StepID, a.LeadID}]; !done {
			filtered = append(filtered, a)
		}
	}

	sortPendingActivities(filtered)
	return filtered, nil
}

// buildPendingActivities is the pure projection joining the three fetched
// collections. Enrollments with a missing cadence, lead, or current step are
// skipped; auto_email cadences are excluded from the manual queue.
func buildPendingActivities(
	enrollments []models.Enrollment,
	cadences map[uint]*models.Cadence,
	leads map[uint]*models.Lead,
	templates map[uint]*models.Template,
) []PendingActivity {
	var out []PendingActivity

	for _, enr := range enrollments {
		cadence, ok := cadences[enr.CadenceID]
		if !ok || cadence.Type == models.CadenceTypeAutoEmail {
			continue
		}
		lead, ok := leads[enr.LeadID]
		if !ok {
			continue
		}
		if enr.NextStepDue == nil {
			continue
		}

		// Steps are preloaded sorted by step_order.
		currentIdx := -1
		for i := range cadence.Steps {
			if cadence.Steps[i].StepOrder == enr.CurrentStep {
				currentIdx = i
				break
			}
		}
		if currentIdx == -1 {
			// Dangling current_step; should not happen, skip defensively.
			continue
		}

		cumulativeHours := 0
		for i := currentIdx; i < len(cadence.Steps); i++ {
			step := cadence.Steps[i]
			isCurrent := i == currentIdx
			if !isCurrent {
				cumulativeHours += step.DelayFromPrevious()
				if cumulativeHours > lookaheadHours {
					break
				}
			}

			activity := PendingActivity{
				EnrollmentID:      enr.ID,
				CadenceID:         cadence.ID,
				CadenceName:       cadence.Name,
				CadenceCreatedBy:  cadence.CreatedBy,
				TotalSteps:        len(cadence.Steps),
				StepID:            step.ID,
				StepOrder:         step.StepOrder,
				Channel:           step.Channel,
				TemplateID:        step.TemplateID,
				AIPersonalization: step.AIPersonalization,
				LeadID:            lead.ID,
				LeadName:          lead.DisplayName(),
				FirstName:         lead.FirstContactName(),
				LeadEmail:         lead.Email,
				LeadPhone:         lead.Phone,
				NextStepDue:       *enr.NextStepDue,
				IsCurrentStep:     isCurrent,
			}
			if step.TemplateID != nil {
				if tpl, ok := templates[*step.TemplateID]; ok {
					activity.TemplateSubject = tpl.Subject
					activity.TemplateBody = tpl.HTMLContent
				}
			}
			out = append(out, activity)
		}
	}
	return out
}

// sortPendingActivities orders due steps before look-ahead steps; due steps
// by due date, look-ahead steps by step order. Look-ahead items are not
// compared across enrollments by due date.
func sortPendingActivities(activities []PendingActivity) {
	sort.SliceStable(activities, func(i, j int) bool {
		a, b := activities[i], activities[j]
		if a.IsCurrentStep != b.IsCurrentStep {
			return a.IsCurrentStep
		}
		if a.IsCurrentStep {
			return a.NextStepDue.Before(b.NextStepDue)
		}
		return a.StepOrder < b.StepOrder
	})
}

func (e *Engine) fetchCadences(ctx context.Context, enrollments []models.Enrollment) (map[uint]*models.Cadence, error) {
	ids := make([]uint, 0, len(enrollments))
	seen := make(map[uint]bool)
	for _, enr := range enrollments {
		if !seen[enr.CadenceID] {
			seen[enr.CadenceID] = true
			ids = append(ids, enr.CadenceID)
		}
	}

	var cadences []models.Cadence
	if err := e.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("step_order ASC") }).
		Where("id IN ?", ids).
		Find(&cadences).Error; err != nil {
		return nil, fmt.Errorf("%w: cadences: %v", ErrQueryFailed, err)
	}

	out := make(map[uint]*models.Cadence, len(cadences))
	for i := range cadences {
		out[cadences[i].ID] = &cadences[i]
	}
	return out, nil
}

func (e *Engine) fetchLeads(ctx context.Context, enrollments []models.Enrollment) (map[uint]*models.Lead, error) {
	ids := make([]uint, 0, len(enrollments))
	for _, enr := range enrollments {
		ids = append(ids, enr.LeadID)
	}

	var leads []models.Lead
	if err := e.db.WithContext(ctx).
		Preload("Contacts").
		Where("id IN ?", ids).
		Find(&leads).Error; err != nil {
		return nil, fmt.Errorf("%w: leads: %v", ErrQueryFailed, err)
	}

	out := make(map[uint]*models.Lead, len(leads))
	for i := range leads {
		out[leads[i].ID] = &leads[i]
	}
	return out, nil
}

func (e *Engine) fetchTemplates(ctx context.Context, cadences map[uint]*models.Cadence) (map[uint]*models.Template, error) {
	var ids []uint
	seen := make(map[uint]bool)
	for _, cadence := range cadences {
		for _, step := range cadence.Steps {
			if step.TemplateID != nil && !seen[*step.TemplateID] {
				seen[*step.TemplateID] = true
				ids = append(ids, *step.TemplateID)
			}
		}
	}
	if len(ids) == 0 {
		return map[uint]*models.Template{}, nil
	}

	var tpls []models.Template
	if err := e.db.WithContext(ctx).Where("id IN ?", ids).Find(&tpls).Error; err != nil {
		return nil, fmt.Errorf("%w: templates: %v", ErrQueryFailed, err)
	}

	out := make(map[uint]*models.Template, len(tpls))
	for i := range tpls {
		out[tpls[i].ID] = &tpls[i]
	}
	return out, nil
}

// fetchExecutedKeys loads all interactions matching any candidate's logical
// key, type-independent: a manually logged note blocks re-execution the same
// way a sent record does.
func (e *Engine) fetchExecutedKeys(ctx context.Context, orgID uint, activities []PendingActivity) (map[stepKey]bool, error) {
	if len(activities) == 0 {
		return map[stepKey]bool{}, nil
	}

	leadIDs := make([]uint, 0, len(activities))
	cadenceIDs := make([]uint, 0, len(activities))
	seenLead := make(map[uint]bool)
	seenCadence := make(map[uint]bool)
	for _, a := range activities {
		if !seenLead[a.LeadID] {
			seenLead[a.LeadID] = true
			leadIDs = append(leadIDs, a.LeadID)
		}
		if !seenCadence[a.CadenceID] {
			seenCadence[a.CadenceID] = true
			cadenceIDs = append(cadenceIDs, a.CadenceID)
		}
	}

	var interactions []models.Interaction
	if err := e.db.WithContext(ctx).
		Select("cadence_id", "step_id", "lead_id").
		Where("organization_id = ? AND cadence_id IN ? AND lead_id IN ?", orgID, cadenceIDs, leadIDs).
		Find(&interactions).Error; err != nil {
		return nil, fmt.Errorf("%w: interactions: %v", ErrQueryFailed, err)
	}

	executed := make(map[stepKey]bool, len(interactions))
	for _, it := range interactions {
		executed[stepKey{it.CadenceID, it.StepID, it.LeadID}] = true
	}
	return executed, nil
}
