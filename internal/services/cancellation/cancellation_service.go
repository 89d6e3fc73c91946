// Package cancellation implements cascade-aware undo of settled business
// groups, including the reservation fallout.
package cancellation

import (
	"github.com/siamfx/backoffice/internal/models"
	"github.com/siamfx/backoffice/internal/services/exchange"
	"github.com/siamfx/backoffice/internal/services/reservation"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Service cancels settled business groups.
type Service struct {
	db           *gorm.DB
	splitter     *exchange.SplitterService
	reservations *reservation.Service
	log          *logrus.Entry
}

// NewService creates a cancellation engine.
func NewService(db *gorm.DB, splitter *exchange.SplitterService, reservations *reservation.Service) *Service {
	return &Service{
		db:           db,
		splitter:     splitter,
		reservations: reservations,
		log:          logrus.WithField("component", "cancellation"),
	}
}

// CancelBusinessGroup rolls back a settlement in one transaction: mirrored
// reversal entries are written, balances restored, and any completed
// reservation linked to a rolled-back entry reopens to approved with its
// transaction unlinked. Reported reservations are never unlinked.
func (s *Service) CancelBusinessGroup(groupID string, branchID, operatorID uint) ([]models.ExchangeTransaction, error) {
	var mirrors []models.ExchangeTransaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		reversed, originalIDs, err := s.splitter.ReverseGroupWithTx(tx, groupID, branchID, operatorID)
		if err != nil {
			return err
		}
		mirrors = reversed

		for _, id := range originalIDs {
			if err := s.reservations.ReopenForCancellation(tx, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"business_group": groupID,
		"entries":        len(mirrors),
	}).Info("business group cancelled")
	return mirrors, nil
}
