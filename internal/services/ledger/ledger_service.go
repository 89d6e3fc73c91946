// Package ledger is the single mutation path for per-branch, per-currency
// cash balances.
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/siamfx/backoffice/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerService serializes balance mutations on a (branch, currency) row.
type LedgerService struct {
	db *gorm.DB
}

// NewLedgerService creates a balance ledger service.
func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{db: db}
}

// forUpdate applies a row lock. SQLite (used in tests) has no FOR UPDATE;
// its single-writer transactions serialize adjusters anyway.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// AdjustWithTx applies delta to the (branch, currency) balance inside the
// caller's transaction, creating the row lazily at zero, and returns the
// before/after snapshot.
func (s *LedgerService) AdjustWithTx(tx *gorm.DB, branchID, currencyID uint, delta decimal.Decimal) (before, after decimal.Decimal, err error) {
	var balance models.CurrencyBalance
	err = forUpdate(tx).
		Where("branch_id = ? AND currency_id = ?", branchID, currencyID).
		First(&balance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		balance = models.CurrencyBalance{
			BranchID:   branchID,
			CurrencyID: currencyID,
			Balance:    decimal.Zero,
		}
		if err = tx.Create(&balance).Error; err != nil {
			return decimal.Zero, decimal.Zero, fmt.Errorf("error creating balance row: %w", err)
		}
		// Re-read under lock so concurrent creators converge on one row.
		err = forUpdate(tx).
			Where("branch_id = ? AND currency_id = ?", branchID, currencyID).
			First(&balance).Error
	}
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("error locking balance row: %w", err)
	}

	before = balance.Balance
	after = before.Add(delta)
	if err = tx.Model(&models.CurrencyBalance{}).
		Where("id = ?", balance.ID).
		Update("balance", after).Error; err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("error updating balance: %w", err)
	}
	return before, after, nil
}

// Adjust applies delta in its own transaction.
func (s *LedgerService) Adjust(branchID, currencyID uint, delta decimal.Decimal) (before, after decimal.Decimal, err error) {
	err = s.db.Transaction(func(tx *gorm.DB) error {
		before, after, err = s.AdjustWithTx(tx, branchID, currencyID, delta)
		return err
	})
	return before, after, err
}

// Balance returns the current balance, zero when the row does not exist yet.
func (s *LedgerService) Balance(branchID, currencyID uint) (decimal.Decimal, error) {
	var balance models.CurrencyBalance
	err := s.db.
		Where("branch_id = ? AND currency_id = ?", branchID, currencyID).
		First(&balance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("error reading balance: %w", err)
	}
	return balance.Balance, nil
}

// Balances lists all currency balances of a branch.
func (s *LedgerService) Balances(branchID uint) ([]models.CurrencyBalance, error) {
	var balances []models.CurrencyBalance
	if err := s.db.Where("branch_id = ?", branchID).
		Order("currency_id ASC").
		Find(&balances).Error; err != nil {
		return nil, fmt.Errorf("error listing balances: %w", err)
	}
	return balances, nil
}
