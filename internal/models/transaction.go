package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the closed set of counter transaction kinds.
type TransactionType string

const (
	TransactionTypeBuy            TransactionType = "buy"
	TransactionTypeSell           TransactionType = "sell"
	TransactionTypeReversal       TransactionType = "reversal"
	TransactionTypeAdjustBalance  TransactionType = "adjust_balance"
	TransactionTypeInitialBalance TransactionType = "initial_balance"
)

// TransactionStatus is the lifecycle state of a transaction row.
type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusReversed  TransactionStatus = "reversed"
)

// Direction is the booth perspective of a leg: the booth buys foreign
// (receives foreign, pays local) or sells foreign.
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// ExchangeTransaction is an atomic ledger entry. Rows are append-only; a
// reversal inserts mirrored rows and flips the originals' status.
type ExchangeTransaction struct {
	Base
	TransactionNo   string            `gorm:"size:32;uniqueIndex" json:"transaction_no"`
	BranchID        uint              `gorm:"index" json:"branch_id"`
	CurrencyID      uint              `gorm:"index" json:"currency_id"`
	Type            TransactionType   `gorm:"size:20;index" json:"type"`
	Amount          decimal.Decimal   `gorm:"type:decimal(20,6)" json:"amount"`
	Rate            decimal.Decimal   `gorm:"type:decimal(20,8)" json:"rate"`
	LocalAmount     decimal.Decimal   `gorm:"type:decimal(20,6)" json:"local_amount"`
	CustomerName    string            `gorm:"size:128" json:"customer_name"`
	CustomerID      string            `gorm:"size:64;index" json:"customer_id"`
	CustomerCountry string            `gorm:"size:2" json:"customer_country"`
	CustomerAddress string            `gorm:"size:255" json:"customer_address"`
	Purpose         string            `gorm:"size:128" json:"purpose"`
	OperatorID      uint              `json:"operator_id"`
	TransactionDate time.Time         `gorm:"index" json:"transaction_date"`
	BusinessGroupID string            `gorm:"size:64;index" json:"business_group_id"`
	GroupSequence   int               `json:"group_sequence"`
	Direction       Direction         `gorm:"size:8" json:"direction"`
	PaymentMethod   string            `gorm:"size:32" json:"payment_method"`
	UseFCD          bool              `gorm:"default:false" json:"use_fcd"`
	OriginalTxNo    string            `gorm:"size:32" json:"original_transaction_no"`
	BalanceBefore   decimal.Decimal   `gorm:"type:decimal(20,6)" json:"balance_before"`
	BalanceAfter    decimal.Decimal   `gorm:"type:decimal(20,6)" json:"balance_after"`
	Status          TransactionStatus `gorm:"size:16;index" json:"status"`
}

// TransactionSequence backs per-branch transaction numbering.
type TransactionSequence struct {
	ID       uint  `gorm:"primaryKey"`
	BranchID uint  `gorm:"uniqueIndex"`
	Serial   int64 `gorm:"default:0"`
}
