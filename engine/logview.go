package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"leadflow/models"
)

// Activity log statuses. An activity is overdue once it is at least one hour
// past its due time.
const (
	LogStatusDue     = "due"
	LogStatusOverdue = "overdue"

	overdueThreshold = time.Hour
)

// ActivityLogEntry is one row of the audit-oriented activity log. Unlike the
// execution queue it covers every active enrollment with a due time set,
// including auto_email cadences, and applies no lookahead window.
type ActivityLogEntry struct {
	EnrollmentID uint `json:"enrollment_id"`

	CadenceID   uint   `json:"cadence_id"`
	CadenceName string `json:"cadence_name"`
	CadenceType string `json:"cadence_type"`

	StepID    uint   `json:"step_id"`
	StepOrder int    `json:"step_order"`
	Channel   string `json:"channel"`

	LeadID    uint   `json:"lead_id"`
	LeadName  string `json:"lead_name"`
	LeadEmail string `json:"lead_email"`
	LeadPhone string `json:"lead_phone"`

	NextStepDue time.Time `json:"next_step_due"`
	Status      string    `json:"status"` // due, overdue
}

// ActivityLogFilters are pure predicates evaluated over the fetched page.
type ActivityLogFilters struct {
	Status  string `json:"status"`  // "", due, overdue
	Channel string `json:"channel"` // "", email, whatsapp, phone, linkedin, research
	Search  string `json:"search"`  // free text, OR semantics across fields
}

// Matches reports whether an entry passes every set filter. Search is a
// case-insensitive substring match against lead name, cadence name, email
// and phone; any one field matching is sufficient.
func (f ActivityLogFilters) Matches(entry ActivityLogEntry) bool {
	if f.Status != "" && entry.Status != f.Status {
		return false
	}
	if f.Channel != "" && entry.Channel != f.Channel {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		haystacks := []string{entry.LeadName, entry.CadenceName, entry.LeadEmail, entry.LeadPhone}
		found := false
		for _, h := range haystacks {
			if strings.Contains(strings.ToLower(h), needle) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// classifyLogStatus labels an activity due or overdue relative to now.
func classifyLogStatus(now, due time.Time) string {
	if now.Sub(due) >= overdueThreshold {
		return LogStatusOverdue
	}
	return LogStatusDue
}

// ListActivityLog lists every active enrollment with a due time set,
// projected to its current step and filtered in memory.
func (e *Engine) ListActivityLog(ctx context.Context, orgID uint, filters ActivityLogFilters) ([]ActivityLogEntry, error) {
	var enrollments []models.Enrollment
	if err := e.db.WithContext(ctx).
		Where("organization_id = ? AND status = ? AND next_step_due IS NOT NULL",
			orgID, models.EnrollmentStatusActive).
		Order("next_step_due ASC").
		Find(&enrollments).Error; err != nil {
		return nil, fmt.Errorf("%w: enrollments: %v", ErrQueryFailed, err)
	}
	if len(enrollments) == 0 {
		return []ActivityLogEntry{}, nil
	}

	cadences, err := e.fetchCadences(ctx, enrollments)
	if err != nil {
		return nil, err
	}
	leads, err := e.fetchLeads(ctx, enrollments)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	entries := make([]ActivityLogEntry, 0, len(enrollments))
	for _, enr := range enrollments {
		cadence, ok := cadences[enr.CadenceID]
		if !ok {
			continue
		}
		lead, ok := leads[enr.LeadID]
		if !ok {
			continue
		}

		var current *models.CadenceStep
		for i := range cadence.Steps {
			if cadence.Steps[i].StepOrder == enr.CurrentStep {
				current = &cadence.Steps[i]
				break
			}
		}
		if current == nil {
			continue
		}

		entry := ActivityLogEntry{
			EnrollmentID: enr.ID,
			CadenceID:    cadence.ID,
			CadenceName:  cadence.Name,
			CadenceType:  cadence.Type,
			StepID:       current.ID,
			StepOrder:    current.StepOrder,
			Channel:      current.Channel,
			LeadID:       lead.ID,
			LeadName:     lead.DisplayName(),
			LeadEmail:    lead.Email,
			LeadPhone:    lead.Phone,
			NextStepDue:  *enr.NextStepDue,
			Status:       classifyLogStatus(now, *enr.NextStepDue),
		}
		if filters.Matches(entry) {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}
