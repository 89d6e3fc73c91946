package models

import "github.com/shopspring/decimal"

// Branch is a physical exchange booth. InstitutionCode and BranchCode are the
// three-digit strings used in report numbering.
type Branch struct {
	Base
	Code            string `gorm:"size:16;uniqueIndex" json:"code"`
	Name            string `gorm:"size:128" json:"name"`
	BaseCurrencyID  uint   `json:"base_currency_id"`
	InstitutionCode string `gorm:"size:3" json:"institution_code"`
	BranchCode      string `gorm:"size:3" json:"branch_code"`
	Locked          bool   `gorm:"default:false" json:"locked"`
}

// Currency is reference data; rows are never destroyed once referenced.
type Currency struct {
	Base
	Code   string `gorm:"size:8;uniqueIndex" json:"code"`
	NameZH string `gorm:"size:64" json:"name_zh"`
	NameEN string `gorm:"size:64" json:"name_en"`
	NameTH string `gorm:"size:64" json:"name_th"`
	Symbol string `gorm:"size:8" json:"symbol"`
}

// Country is read-only reference data used for customer nationality.
type Country struct {
	Base
	Code        string `gorm:"size:2;uniqueIndex" json:"code"`
	NameZH      string `gorm:"size:64" json:"name_zh"`
	NameEN      string `gorm:"size:64" json:"name_en"`
	NameTH      string `gorm:"size:64" json:"name_th"`
	PhonePrefix string `gorm:"size:8" json:"phone_prefix"`
	SortOrder   int    `gorm:"default:0" json:"sort_order"`
	Active      bool   `gorm:"default:true" json:"active"`
}

// CurrencyBalance holds the signed cash position of one currency at one
// branch. Unique per (branch, currency); mutated only by the balance ledger
// under a row lock, created lazily at first adjustment.
type CurrencyBalance struct {
	Base
	BranchID   uint            `gorm:"uniqueIndex:idx_branch_currency" json:"branch_id"`
	CurrencyID uint            `gorm:"uniqueIndex:idx_branch_currency" json:"currency_id"`
	Balance    decimal.Decimal `gorm:"type:decimal(20,6)" json:"balance"`
}
