package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReportType is the closed set of statutory report kinds.
type ReportType string

const (
	ReportTypeAMLO101     ReportType = "AMLO-1-01"
	ReportTypeAMLO102     ReportType = "AMLO-1-02"
	ReportTypeAMLO103     ReportType = "AMLO-1-03"
	ReportTypeBOTBuyFX    ReportType = "BOT_BuyFX"
	ReportTypeBOTSellFX   ReportType = "BOT_SellFX"
	ReportTypeBOTFCD      ReportType = "BOT_FCD"
	ReportTypeBOTProvider ReportType = "BOT_Provider"
)

// AMLOReportTypes are the report types checked on every settled transaction.
var AMLOReportTypes = []ReportType{ReportTypeAMLO101, ReportTypeAMLO102, ReportTypeAMLO103}

// IsAMLO reports whether t is one of the AMLO form types.
func (t ReportType) IsAMLO() bool {
	switch t {
	case ReportTypeAMLO101, ReportTypeAMLO102, ReportTypeAMLO103:
		return true
	}
	return false
}

// ReservationStatus is the audit lifecycle state.
type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "pending"
	ReservationStatusApproved  ReservationStatus = "approved"
	ReservationStatusRejected  ReservationStatus = "rejected"
	ReservationStatusCompleted ReservationStatus = "completed"
	ReservationStatusReported  ReservationStatus = "reported"
)

// SignatureType identifies one of the three signature slots on a reservation.
type SignatureType string

const (
	SignatureReporter SignatureType = "reporter"
	SignatureCustomer SignatureType = "customer"
	SignatureAuditor  SignatureType = "auditor"
)

// Reservation is the audit artifact created on a trigger match. It carries a
// customer snapshot, the human-filled form blob, the audit trail and, once
// settled, a weak back-reference to the exchange transaction.
type Reservation struct {
	Base
	ReservationNo   string            `gorm:"size:24;uniqueIndex" json:"reservation_no"`
	ReportType      ReportType        `gorm:"size:16;index" json:"report_type"`
	Status          ReservationStatus `gorm:"size:16;index" json:"status"`
	CustomerName    string            `gorm:"size:128" json:"customer_name"`
	CustomerID      string            `gorm:"size:64;index" json:"customer_id"`
	CustomerCountry string            `gorm:"size:2" json:"customer_country"`
	BranchID        uint              `gorm:"index" json:"branch_id"`
	CurrencyID      uint              `json:"currency_id"`
	Direction       Direction         `gorm:"size:8" json:"direction"`
	Amount          decimal.Decimal   `gorm:"type:decimal(20,6)" json:"amount"`
	LocalAmount     decimal.Decimal   `gorm:"type:decimal(20,6)" json:"local_amount"`
	Rate            decimal.Decimal   `gorm:"type:decimal(20,8)" json:"rate"`
	TriggerType     string            `gorm:"size:64" json:"trigger_type"`
	TriggerRuleID   *uint             `json:"trigger_rule_id,omitempty"`
	TriggerDetail   JSON              `gorm:"type:json" json:"trigger_detail,omitempty"`
	FormData        JSON              `gorm:"type:json" json:"form_data,omitempty"`
	OperatorID      uint              `json:"operator_id"`
	AuditorID       *uint             `json:"auditor_id,omitempty"`
	AuditTime       *time.Time        `json:"audit_time,omitempty"`
	AuditRemarks    string            `gorm:"size:255" json:"audit_remarks"`
	RejectionReason string            `gorm:"size:255" json:"rejection_reason"`
	LinkedTxID      *uint             `gorm:"index" json:"linked_transaction_id,omitempty"`

	ReporterSignature string     `gorm:"type:mediumtext" json:"reporter_signature,omitempty"`
	ReporterSignedAt  *time.Time `json:"reporter_signed_at,omitempty"`
	CustomerSignature string     `gorm:"type:mediumtext" json:"customer_signature,omitempty"`
	CustomerSignedAt  *time.Time `json:"customer_signed_at,omitempty"`
	AuditorSignature  string     `gorm:"type:mediumtext" json:"auditor_signature,omitempty"`
	AuditorSignedAt   *time.Time `json:"auditor_signed_at,omitempty"`
}

// Overdue derives the late flag: not yet reported and older than one day.
// Never persisted; computed per list response.
func (r *Reservation) Overdue(now time.Time) bool {
	return r.Status != ReservationStatusReported && now.Sub(r.CreatedAt) > 24*time.Hour
}
