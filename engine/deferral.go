package engine

import (
	"context"
	"fmt"
	"time"

	"leadflow/models"
)

// skipDeferral is how far a skipped activity is pushed into the future.
const skipDeferral = 2 * time.Hour

// SkipResult reports the new due time after a deferral.
type SkipResult struct {
	NextStepDue time.Time `json:"next_step_due"`
}

// Skip postpones the enrollment's due step by two hours. current_step and
// status are untouched: the operator is deferring the step, not skipping
// past it.
func (e *Engine) Skip(ctx context.Context, enrollmentID, orgID uint) (*SkipResult, error) {
	due := e.clock.Now().Add(skipDeferral)

	res := e.db.WithContext(ctx).
		Model(&models.Enrollment{}).
		Where("id = ? AND organization_id = ?", enrollmentID, orgID).
		Update("next_step_due", due)
	if res.Error != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	e.signalQueueChanged(ctx, orgID)
	return &SkipResult{NextStepDue: due}, nil
}
