package reservation

import (
	"fmt"
	"time"

	"github.com/siamfx/backoffice/internal/models"
	"gorm.io/gorm"
)

// Audit actions taken by the auditor on a pending reservation.
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// Audit moves a pending reservation to approved or rejected.
func (s *Service) Audit(id, branchID, auditorID uint, action, remarks, rejectionReason string) (*models.Reservation, error) {
	reservation, err := s.Get(id, branchID)
	if err != nil {
		return nil, err
	}
	if reservation.Status != models.ReservationStatusPending {
		return nil, ErrIllegalTransition
	}

	now := time.Now()
	updates := map[string]interface{}{
		"auditor_id": auditorID,
		"audit_time": now,
	}
	switch action {
	case ActionApprove:
		updates["status"] = models.ReservationStatusApproved
		updates["audit_remarks"] = remarks
	case ActionReject:
		updates["status"] = models.ReservationStatusRejected
		updates["audit_remarks"] = remarks
		updates["rejection_reason"] = rejectionReason
	default:
		return nil, fmt.Errorf("unknown audit action %q", action)
	}

	if err := s.db.Model(reservation).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("error auditing reservation: %w", err)
	}
	return s.Get(id, branchID)
}

// ReverseAudit returns an approved reservation to pending. Allowed only
// before settlement; completed and reported are terminal against reversal.
// The audit trace stays in the remarks.
func (s *Service) ReverseAudit(id, branchID uint) (*models.Reservation, error) {
	reservation, err := s.Get(id, branchID)
	if err != nil {
		return nil, err
	}
	if reservation.Status != models.ReservationStatusApproved {
		return nil, ErrIllegalTransition
	}

	trace := reservation.AuditRemarks
	if reservation.AuditTime != nil {
		trace = fmt.Sprintf("reverse-audited at %s; was approved at %s",
			time.Now().Format("2006-01-02 15:04:05"),
			reservation.AuditTime.Format("2006-01-02 15:04:05"))
	}

	updates := map[string]interface{}{
		"status":        models.ReservationStatusPending,
		"audit_time":    nil,
		"audit_remarks": trace,
	}
	if err := s.db.Model(reservation).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("error reversing audit: %w", err)
	}
	return s.Get(id, branchID)
}

// Complete links a settled transaction to an approved reservation. Invoked
// by the settlement path.
func (s *Service) Complete(id, branchID, linkedTxID uint) (*models.Reservation, error) {
	reservation, err := s.Get(id, branchID)
	if err != nil {
		return nil, err
	}
	if reservation.Status != models.ReservationStatusApproved {
		return nil, ErrIllegalTransition
	}

	updates := map[string]interface{}{
		"status":       models.ReservationStatusCompleted,
		"linked_tx_id": linkedTxID,
	}
	if err := s.db.Model(reservation).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("error completing reservation: %w", err)
	}
	return s.Get(id, branchID)
}

// ReopenForCancellation rolls a completed reservation back to approved and
// unlinks its transaction. Reported reservations are never unlinked. Used by
// the cancellation engine inside its transaction.
func (s *Service) ReopenForCancellation(tx *gorm.DB, linkedTxID uint) error {
	var rows []models.Reservation
	err := tx.
		Where("linked_tx_id = ? AND status = ?", linkedTxID, models.ReservationStatusCompleted).
		Find(&rows).Error
	if err != nil {
		return fmt.Errorf("error loading linked reservations: %w", err)
	}
	for i := range rows {
		err := tx.Model(&rows[i]).Updates(map[string]interface{}{
			"status":       models.ReservationStatusApproved,
			"linked_tx_id": nil,
		}).Error
		if err != nil {
			return fmt.Errorf("error reopening reservation: %w", err)
		}
	}
	return nil
}
