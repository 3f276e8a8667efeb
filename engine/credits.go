package engine

import (
	"context"
	"fmt"

	"leadflow/models"

	"gorm.io/gorm"
)

// checkAndDeductCredit consumes one WhatsApp send credit for the
// organization. The conditional single-statement decrement is what makes the
// deduction safe under concurrent sends: two racing executions can never
// spend the same credit.
func (e *Engine) checkAndDeductCredit(ctx context.Context, orgID uint) error {
	res := e.db.WithContext(ctx).
		Model(&models.WhatsAppCredit{}).
		Where("organization_id = ? AND balance > 0", orgID).
		Update("balance", gorm.Expr("balance - 1"))
	if res.Error != nil {
		return fmt.Errorf("deducting whatsapp credit: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrCreditExhausted
	}
	return nil
}
