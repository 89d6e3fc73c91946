// Package exchange implements the transaction splitter: it decomposes
// multi-denomination counter transactions into atomic ledger entries,
// computes weighted rates, validates and mutates balances, and hands settled
// entries to the compliance event bus.
package exchange

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/siamfx/backoffice/internal/events"
	"github.com/siamfx/backoffice/internal/models"
	"github.com/siamfx/backoffice/internal/services/ledger"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Exchange modes are the customer's view of the deal.
const (
	ModeBuyForeign  = "buy_foreign"
	ModeSellForeign = "sell_foreign"
)

// ErrInsufficientBalance aborts a settlement whose legs would overdraw the
// branch inventory.
var ErrInsufficientBalance = errors.New("insufficient_balance")

// ErrGroupNotFound is returned when a business group has no completed entries.
var ErrGroupNotFound = errors.New("business group not found")

// CombinationItem is one denomination line of a counter transaction.
type CombinationItem struct {
	CurrencyID uint             `json:"currency_id"`
	Subtotal   decimal.Decimal  `json:"subtotal"`
	Rate       decimal.Decimal  `json:"rate"`
	BuyRate    decimal.Decimal  `json:"buy_rate"`
	SellRate   decimal.Decimal  `json:"sell_rate"`
	Direction  models.Direction `json:"direction,omitempty"`
}

// SplitRequest is the full counter payload handed to the splitter.
type SplitRequest struct {
	Combinations      []CombinationItem `json:"combinations"`
	DefaultCurrencyID uint              `json:"currency_id,omitempty"`
	ExchangeMode      string            `json:"exchange_mode"`
	BranchID          uint              `json:"branch_id"`
	BaseCurrencyID    uint              `json:"base_currency_id"`
	OperatorID        uint              `json:"operator_id"`
	CustomerName      string            `json:"customer_name"`
	CustomerID        string            `json:"customer_id"`
	CustomerCountry   string            `json:"customer_country"`
	CustomerAddress   string            `json:"customer_address"`
	Purpose           string            `json:"purpose"`
	PaymentMethod     string            `json:"payment_method"`
	UseFCD            bool              `json:"use_fcd"`
}

// SplitResult carries the persisted business group and the compliance
// sub-result of the settlement.
type SplitResult struct {
	BusinessGroupID string                       `json:"business_group_id"`
	Transactions    []models.ExchangeTransaction `json:"transactions"`
	Compliance      events.ComplianceResult      `json:"compliance"`
}

// CeilingGuard enforces the approved-amount ceiling at settlement and
// completes the matching reservation.
type CeilingGuard interface {
	EnforceAndComplete(tx *gorm.DB, entry *models.ExchangeTransaction) error
}

// ComplianceDispatcher is the settled-entity event sink.
type ComplianceDispatcher interface {
	TransactionSettled(tx *gorm.DB, entry *models.ExchangeTransaction, branch *models.Branch, currency *models.Currency) events.ComplianceResult
	BalanceAdjusted(tx *gorm.DB, entry *models.ExchangeTransaction, currency *models.Currency, reason string) events.ComplianceResult
}

// SplitterService decomposes counter transactions into atomic entries.
type SplitterService struct {
	db     *gorm.DB
	ledger *ledger.LedgerService
	bus    ComplianceDispatcher
	guard  CeilingGuard
	log    *logrus.Entry
}

// NewSplitterService creates a splitter. guard may be nil on paths that do
// not settle against reservations.
func NewSplitterService(db *gorm.DB, ledgerSvc *ledger.LedgerService, bus ComplianceDispatcher, guard CeilingGuard) *SplitterService {
	return &SplitterService{
		db:     db,
		ledger: ledgerSvc,
		bus:    bus,
		guard:  guard,
		log:    logrus.WithField("component", "splitter"),
	}
}

// entryGroup is one (currency, direction) bucket of the split.
type entryGroup struct {
	currencyID uint
	direction  models.Direction
	total      decimal.Decimal
	rateWeight decimal.Decimal // Σ subtotal × rate over priced lines
	weight     decimal.Decimal // Σ subtotal over priced lines
}

func (g *entryGroup) weightedRate() decimal.Decimal {
	if g.weight.IsZero() {
		return decimal.Zero
	}
	return g.rateWeight.DivRound(g.weight, 8)
}

// Settle runs the strict entry point: balance violations abort and roll back
// the whole business group.
func (s *SplitterService) Settle(req SplitRequest) (*SplitResult, error) {
	return s.split(req, true)
}

// Reserve runs the lenient entry point used by the reservation flow: balance
// violations are logged as warnings and never abort creation.
func (s *SplitterService) Reserve(req SplitRequest) (*SplitResult, error) {
	return s.split(req, false)
}

func (s *SplitterService) split(req SplitRequest, strict bool) (*SplitResult, error) {
	direction, err := boothDirection(req.ExchangeMode)
	if err != nil {
		return nil, err
	}
	if len(req.Combinations) == 0 {
		return nil, fmt.Errorf("empty denomination combination")
	}

	groups := groupCombinations(req.Combinations, req.DefaultCurrencyID, direction)

	var branch models.Branch
	if err := s.db.First(&branch, req.BranchID).Error; err != nil {
		return nil, fmt.Errorf("error loading branch: %w", err)
	}

	result := &SplitResult{
		BusinessGroupID: uuid.New().String(),
		Compliance:      events.ComplianceResult{AMLORecords: []models.Reservation{}},
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		for seq, g := range groups {
			var currency models.Currency
			if err := tx.First(&currency, g.currencyID).Error; err != nil {
				return fmt.Errorf("error loading currency: %w", err)
			}

			rate := g.weightedRate()
			foreign, local, txType := legAmounts(g.direction, g.total, rate)

			txNo, err := nextTransactionNo(tx, branch.ID, branch.BranchCode)
			if err != nil {
				return err
			}

			entry := models.ExchangeTransaction{
				TransactionNo:   txNo,
				BranchID:        branch.ID,
				CurrencyID:      g.currencyID,
				Type:            txType,
				Amount:          foreign,
				Rate:            rate,
				LocalAmount:     local,
				CustomerName:    req.CustomerName,
				CustomerID:      req.CustomerID,
				CustomerCountry: req.CustomerCountry,
				CustomerAddress: req.CustomerAddress,
				Purpose:         req.Purpose,
				OperatorID:      req.OperatorID,
				TransactionDate: now,
				BusinessGroupID: result.BusinessGroupID,
				GroupSequence:   seq + 1,
				Direction:       g.direction,
				PaymentMethod:   req.PaymentMethod,
				UseFCD:          req.UseFCD,
				Status:          models.TransactionStatusCompleted,
			}

			if err := s.persistEntry(tx, &entry, req.BaseCurrencyID, strict); err != nil {
				return err
			}

			// Ceiling check runs after the entry exists so the matching
			// reservation can link it; a violation rolls the group back.
			if s.guard != nil && strict {
				if err := s.guard.EnforceAndComplete(tx, &entry); err != nil {
					return err
				}
			}

			result.Transactions = append(result.Transactions, entry)
			result.Compliance.Merge(s.bus.TransactionSettled(tx, &entry, &branch, &currency))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// persistEntry inserts the entry, mutates both currency legs under row locks
// and snapshots the foreign-leg balance onto the row.
func (s *SplitterService) persistEntry(tx *gorm.DB, entry *models.ExchangeTransaction, baseCurrencyID uint, strict bool) error {
	if err := tx.Create(entry).Error; err != nil {
		return fmt.Errorf("error creating transaction: %w", err)
	}

	before, after, err := s.ledger.AdjustWithTx(tx, entry.BranchID, entry.CurrencyID, entry.Amount)
	if err != nil {
		return err
	}
	if err := s.checkOverdraw(entry, entry.CurrencyID, entry.Amount, after, strict); err != nil {
		return err
	}

	entry.BalanceBefore = before
	entry.BalanceAfter = after
	if err := tx.Model(entry).Updates(map[string]interface{}{
		"balance_before": before,
		"balance_after":  after,
	}).Error; err != nil {
		return fmt.Errorf("error snapshotting balances: %w", err)
	}

	if baseCurrencyID != 0 && baseCurrencyID != entry.CurrencyID {
		_, localAfter, err := s.ledger.AdjustWithTx(tx, entry.BranchID, baseCurrencyID, entry.LocalAmount)
		if err != nil {
			return err
		}
		if err := s.checkOverdraw(entry, baseCurrencyID, entry.LocalAmount, localAfter, strict); err != nil {
			return err
		}
	}
	return nil
}

func (s *SplitterService) checkOverdraw(entry *models.ExchangeTransaction, currencyID uint, delta, after decimal.Decimal, strict bool) error {
	if delta.Sign() >= 0 || after.Sign() >= 0 {
		return nil
	}
	if strict {
		return fmt.Errorf("%w: currency %d short by %s", ErrInsufficientBalance, currencyID, after.Neg().String())
	}
	s.log.WithFields(logrus.Fields{
		"transaction_no": entry.TransactionNo,
		"currency_id":    currencyID,
		"shortfall":      after.Neg().String(),
	}).Warn("balance below zero on reservation path")
	return nil
}

// ReverseGroupWithTx emits mirrored entries under REV_<group> and flips the
// originals' status inside the caller's transaction. Balance logic is reused
// with negated amounts. Returns the mirrors and the original entry ids so
// the cancellation engine can cascade.
func (s *SplitterService) ReverseGroupWithTx(tx *gorm.DB, groupID string, branchID, operatorID uint) ([]models.ExchangeTransaction, []uint, error) {
	var originals []models.ExchangeTransaction
	err := tx.
		Where("business_group_id = ? AND branch_id = ? AND status = ?",
			groupID, branchID, models.TransactionStatusCompleted).
		Order("group_sequence ASC").
		Find(&originals).Error
	if err != nil {
		return nil, nil, fmt.Errorf("error loading business group: %w", err)
	}
	if len(originals) == 0 {
		return nil, nil, ErrGroupNotFound
	}

	var branch models.Branch
	if err := tx.First(&branch, branchID).Error; err != nil {
		return nil, nil, fmt.Errorf("error loading branch: %w", err)
	}

	var mirrors []models.ExchangeTransaction
	var originalIDs []uint
	now := time.Now()
	for _, orig := range originals {
		txNo, err := nextTransactionNo(tx, branch.ID, branch.BranchCode)
		if err != nil {
			return nil, nil, err
		}

		mirror := models.ExchangeTransaction{
			TransactionNo:   txNo,
			BranchID:        orig.BranchID,
			CurrencyID:      orig.CurrencyID,
			Type:            models.TransactionTypeReversal,
			Amount:          orig.Amount.Neg(),
			Rate:            orig.Rate,
			LocalAmount:     orig.LocalAmount.Neg(),
			CustomerName:    orig.CustomerName,
			CustomerID:      orig.CustomerID,
			CustomerCountry: orig.CustomerCountry,
			OperatorID:      operatorID,
			TransactionDate: now,
			BusinessGroupID: "REV_" + groupID,
			GroupSequence:   orig.GroupSequence,
			Direction:       flipDirection(orig.Direction),
			OriginalTxNo:    orig.TransactionNo,
			Status:          models.TransactionStatusCompleted,
		}

		if err := s.persistEntry(tx, &mirror, branch.BaseCurrencyID, true); err != nil {
			return nil, nil, err
		}

		if err := tx.Model(&models.ExchangeTransaction{}).
			Where("id = ?", orig.ID).
			Update("status", models.TransactionStatusReversed).Error; err != nil {
			return nil, nil, fmt.Errorf("error flipping original status: %w", err)
		}

		mirrors = append(mirrors, mirror)
		originalIDs = append(originalIDs, orig.ID)
	}
	return mirrors, originalIDs, nil
}

// ReverseBusinessGroup runs ReverseGroupWithTx in its own transaction.
func (s *SplitterService) ReverseBusinessGroup(groupID string, branchID, operatorID uint) (*SplitResult, error) {
	result := &SplitResult{
		BusinessGroupID: "REV_" + groupID,
		Compliance:      events.ComplianceResult{AMLORecords: []models.Reservation{}},
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		mirrors, _, err := s.ReverseGroupWithTx(tx, groupID, branchID, operatorID)
		if err != nil {
			return err
		}
		result.Transactions = mirrors
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AdjustBalance records a manual balance adjustment as an adjust_balance (or
// initial_balance) entry and dispatches the balance.adjusted event.
func (s *SplitterService) AdjustBalance(branchID, currencyID uint, delta decimal.Decimal, reason string, operatorID uint, initial bool) (*models.ExchangeTransaction, events.ComplianceResult, error) {
	var branch models.Branch
	if err := s.db.First(&branch, branchID).Error; err != nil {
		return nil, events.ComplianceResult{}, fmt.Errorf("error loading branch: %w", err)
	}
	var currency models.Currency
	if err := s.db.First(&currency, currencyID).Error; err != nil {
		return nil, events.ComplianceResult{}, fmt.Errorf("error loading currency: %w", err)
	}

	txType := models.TransactionTypeAdjustBalance
	if initial {
		txType = models.TransactionTypeInitialBalance
	}

	var entry models.ExchangeTransaction
	var compliance events.ComplianceResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		txNo, err := nextTransactionNo(tx, branch.ID, branch.BranchCode)
		if err != nil {
			return err
		}
		entry = models.ExchangeTransaction{
			TransactionNo:   txNo,
			BranchID:        branchID,
			CurrencyID:      currencyID,
			Type:            txType,
			Amount:          delta,
			Purpose:         reason,
			OperatorID:      operatorID,
			TransactionDate: time.Now(),
			Status:          models.TransactionStatusCompleted,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("error creating adjustment: %w", err)
		}

		before, after, err := s.ledger.AdjustWithTx(tx, branchID, currencyID, delta)
		if err != nil {
			return err
		}
		entry.BalanceBefore = before
		entry.BalanceAfter = after
		if err := tx.Model(&entry).Updates(map[string]interface{}{
			"balance_before": before,
			"balance_after":  after,
		}).Error; err != nil {
			return fmt.Errorf("error snapshotting balances: %w", err)
		}

		compliance = s.bus.BalanceAdjusted(tx, &entry, &currency, reason)
		return nil
	})
	if err != nil {
		return nil, events.ComplianceResult{}, err
	}
	return &entry, compliance, nil
}

// GroupEntries returns a business group's entries in group_sequence order,
// branch scoped.
func (s *SplitterService) GroupEntries(groupID string, branchID uint) ([]models.ExchangeTransaction, error) {
	var entries []models.ExchangeTransaction
	err := s.db.
		Where("business_group_id = ? AND branch_id = ?", groupID, branchID).
		Order("group_sequence ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("error loading business group: %w", err)
	}
	return entries, nil
}

// ListTransactions pages a branch's transactions, newest first.
func (s *SplitterService) ListTransactions(branchID uint, startDate, endDate *time.Time, page, pageSize int) ([]models.ExchangeTransaction, int64, error) {
	query := s.db.Model(&models.ExchangeTransaction{}).Where("branch_id = ?", branchID)
	if startDate != nil {
		query = query.Where("transaction_date >= ?", *startDate)
	}
	if endDate != nil {
		query = query.Where("transaction_date <= ?", *endDate)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("error counting transactions: %w", err)
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	var transactions []models.ExchangeTransaction
	err := query.
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transactions).Error
	if err != nil {
		return nil, 0, fmt.Errorf("error listing transactions: %w", err)
	}
	return transactions, total, nil
}

// boothDirection normalizes the customer's exchange mode to the booth
// perspective: the customer buying foreign means the booth sells it.
func boothDirection(mode string) (models.Direction, error) {
	switch mode {
	case ModeBuyForeign:
		return models.DirectionSell, nil
	case ModeSellForeign:
		return models.DirectionBuy, nil
	default:
		return "", fmt.Errorf("unknown exchange mode %q", mode)
	}
}

func flipDirection(d models.Direction) models.Direction {
	if d == models.DirectionBuy {
		return models.DirectionSell
	}
	return models.DirectionBuy
}

// groupCombinations buckets lines by (currency, direction) and accumulates
// the weighted-rate terms. The global direction overrides any per-line one.
func groupCombinations(items []CombinationItem, defaultCurrencyID uint, direction models.Direction) []*entryGroup {
	var groups []*entryGroup
	index := map[uint]*entryGroup{}
	for _, item := range items {
		currencyID := item.CurrencyID
		if currencyID == 0 {
			currencyID = defaultCurrencyID
		}
		g, ok := index[currencyID]
		if !ok {
			g = &entryGroup{currencyID: currencyID, direction: direction}
			index[currencyID] = g
			groups = append(groups, g)
		}
		g.total = g.total.Add(item.Subtotal)

		rate := pickRate(item, direction)
		if item.Subtotal.IsZero() || rate.IsZero() {
			continue
		}
		g.rateWeight = g.rateWeight.Add(item.Subtotal.Mul(rate))
		g.weight = g.weight.Add(item.Subtotal)
	}
	return groups
}

// pickRate selects the line's explicit rate, then the side-specific one for
// the booth direction, then whichever side is priced at all.
func pickRate(item CombinationItem, direction models.Direction) decimal.Decimal {
	if !item.Rate.IsZero() {
		return item.Rate
	}
	preferred, other := item.BuyRate, item.SellRate
	if direction == models.DirectionSell {
		preferred, other = item.SellRate, item.BuyRate
	}
	if !preferred.IsZero() {
		return preferred
	}
	return other
}

// legAmounts computes the signed legs of one group. A booth buy receives
// foreign and pays local; a booth sell pays foreign and receives local.
func legAmounts(direction models.Direction, total, rate decimal.Decimal) (foreign, local decimal.Decimal, txType models.TransactionType) {
	local = total.Mul(rate)
	if direction == models.DirectionBuy {
		return total, local.Neg(), models.TransactionTypeBuy
	}
	return total.Neg(), local, models.TransactionTypeSell
}
