package reservation

import (
	"errors"
	"fmt"

	"github.com/siamfx/backoffice/internal/models"
	"gorm.io/gorm"
)

// Guard enforces the approved-amount ceiling at settlement time and moves
// the matching reservation to completed.
type Guard struct {
	db *gorm.DB
}

// NewGuard creates an amount-ceiling guard.
func NewGuard(db *gorm.DB) *Guard {
	return &Guard{db: db}
}

// EnforceAndComplete looks up the approved reservation matching the entry's
// customer, currency and direction in the current branch. If one exists, the
// candidate's |local_amount| must be at or below the approved ceiling; the
// reservation itself is never mutated on violation, so the teller can
// resubmit within the ceiling.
func (g *Guard) EnforceAndComplete(tx *gorm.DB, entry *models.ExchangeTransaction) error {
	var matched models.Reservation
	err := tx.
		Where("branch_id = ? AND customer_id = ? AND currency_id = ? AND direction = ? AND status = ?",
			entry.BranchID, entry.CustomerID, entry.CurrencyID, entry.Direction,
			models.ReservationStatusApproved).
		Order("id ASC").
		First(&matched).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error matching reservation: %w", err)
	}

	actual := entry.LocalAmount.Abs()
	if actual.GreaterThan(matched.LocalAmount) {
		return &AmountExceededError{
			ApprovedAmount: matched.LocalAmount,
			ActualAmount:   actual,
		}
	}

	return tx.Model(&matched).Updates(map[string]interface{}{
		"status":       models.ReservationStatusCompleted,
		"linked_tx_id": entry.ID,
	}).Error
}
