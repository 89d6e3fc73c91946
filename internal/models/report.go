package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AMLOReport records a materialized PDF artifact for a reservation.
type AMLOReport struct {
	Base
	ReportNo      string     `gorm:"size:24;uniqueIndex" json:"report_no"`
	ReportType    ReportType `gorm:"size:16" json:"report_type"`
	ReservationID uint       `gorm:"index" json:"reservation_id"`
	PDFFilename   string     `gorm:"size:128" json:"pdf_filename"`
	PDFPath       string     `gorm:"size:255" json:"pdf_path"`
	Flattened     bool       `gorm:"default:false" json:"flattened"`
}

// ReportSerial backs gap-free report numbering per (institution, branch, year).
type ReportSerial struct {
	ID              uint   `gorm:"primaryKey"`
	InstitutionCode string `gorm:"size:3;uniqueIndex:idx_inst_branch_year"`
	BranchCode      string `gorm:"size:3;uniqueIndex:idx_inst_branch_year"`
	Year            int    `gorm:"uniqueIndex:idx_inst_branch_year"`
	Serial          int    `gorm:"default:0"`
}

// BOTRow is the denormalized shape shared by the four BOT monthly tables.
type BOTRow struct {
	Base
	TransactionID   uint            `gorm:"index" json:"transaction_id"`
	BranchID        uint            `gorm:"index" json:"branch_id"`
	CustomerID      string          `gorm:"size:64;index" json:"customer_id"`
	CustomerName    string          `gorm:"size:128" json:"customer_name"`
	CustomerCountry string          `gorm:"size:2" json:"customer_country"`
	CurrencyCode    string          `gorm:"size:8" json:"currency_code"`
	ForeignAmount   decimal.Decimal `gorm:"type:decimal(20,6)" json:"foreign_amount"`
	LocalAmount     decimal.Decimal `gorm:"type:decimal(20,6)" json:"local_amount"`
	ExchangeRate    decimal.Decimal `gorm:"type:decimal(20,8)" json:"exchange_rate"`
	USDEquivalent   decimal.Decimal `gorm:"type:decimal(20,6)" json:"usd_equivalent"`
	Remarks         string          `gorm:"size:255" json:"remarks"`
	UseFCD          bool            `gorm:"default:false" json:"use_fcd"`
	IsReported      bool            `gorm:"default:false;index" json:"is_reported"`
	ReporterID      uint            `json:"reporter_id"`
	TransactionDate time.Time       `gorm:"index" json:"transaction_date"`
}

// BOTBuyFX holds one row per triggered foreign-currency purchase.
type BOTBuyFX struct{ BOTRow }

// BOTSellFX holds one row per triggered foreign-currency sale.
type BOTSellFX struct{ BOTRow }

// BOTFCD holds one row per triggered FCD-flagged transaction.
type BOTFCD struct{ BOTRow }

// BOTProvider holds one row per triggered manual balance adjustment.
type BOTProvider struct{ BOTRow }

func (BOTBuyFX) TableName() string    { return "bot_buy_fx" }
func (BOTSellFX) TableName() string   { return "bot_sell_fx" }
func (BOTFCD) TableName() string      { return "bot_fcd" }
func (BOTProvider) TableName() string { return "bot_provider" }
