// Package events dispatches settled-entity events to the trigger resolver
// and creates compliance records on match. The bus is synchronous:
// reservations must be visible when the settlement response returns.
package events

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/siamfx/backoffice/internal/models"
	"github.com/siamfx/backoffice/internal/rules"
	"github.com/siamfx/backoffice/internal/services/report"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ComplianceResult is the sub-result attached to settlement and adjustment
// responses. Handler failures land in Errors and never abort the source
// operation.
type ComplianceResult struct {
	AMLOTriggered bool                 `json:"amlo_triggered"`
	AMLORecords   []models.Reservation `json:"amlo_records"`
	BOTTriggered  bool                 `json:"bot_triggered"`
	FCDTriggered  bool                 `json:"fcd_triggered"`
	Errors        []string             `json:"errors,omitempty"`
}

// Merge folds another result into this one.
func (c *ComplianceResult) Merge(other ComplianceResult) {
	c.AMLOTriggered = c.AMLOTriggered || other.AMLOTriggered
	c.AMLORecords = append(c.AMLORecords, other.AMLORecords...)
	c.BOTTriggered = c.BOTTriggered || other.BOTTriggered
	c.FCDTriggered = c.FCDTriggered || other.FCDTriggered
	c.Errors = append(c.Errors, other.Errors...)
}

// Bus evaluates trigger rules for settled transactions and balance
// adjustments, creating pending reservations and BOT rows on match.
type Bus struct {
	db       *gorm.DB
	resolver *rules.Resolver
	stats    *rules.StatsService
	registry *report.Registry
	usdRate  decimal.Decimal
	log      *logrus.Entry
}

// NewBus creates the event bus. usdRate is the operator-configured reference
// rate used to derive USD equivalents for BOT thresholds; there is no market
// data feed.
func NewBus(db *gorm.DB, registry *report.Registry, usdRate decimal.Decimal) *Bus {
	if usdRate.IsZero() {
		usdRate = decimal.NewFromInt(34)
	}
	return &Bus{
		db:       db,
		resolver: rules.NewResolver(db),
		stats:    rules.NewStatsService(db),
		registry: registry,
		usdRate:  usdRate,
		log:      logrus.WithField("component", "event_bus"),
	}
}

// USDEquivalent converts a foreign leg to its USD verification amount.
func (b *Bus) USDEquivalent(currencyCode string, foreignAmount, localAmount decimal.Decimal) decimal.Decimal {
	if currencyCode == "USD" {
		return foreignAmount.Abs()
	}
	return localAmount.Abs().DivRound(b.usdRate, 6)
}

// TransactionSettled runs every configured report-type check for one settled
// entry inside the settle transaction. AMLO matches create pending
// reservations; BOT matches create monthly-report rows.
func (b *Bus) TransactionSettled(tx *gorm.DB, entry *models.ExchangeTransaction, branch *models.Branch, currency *models.Currency) ComplianceResult {
	result := ComplianceResult{AMLORecords: []models.Reservation{}}

	data := b.entryData(entry, currency)

	for _, reportType := range models.AMLOReportTypes {
		trigger, err := b.resolver.Resolve(reportType, data, entry.BranchID)
		if err != nil {
			b.fail(&result, reportType, entry, err)
			continue
		}
		if !trigger.Triggered {
			continue
		}
		reservation, err := b.createReservation(tx, reportType, entry, branch, trigger)
		if err != nil {
			b.fail(&result, reportType, entry, err)
			continue
		}
		if reservation != nil {
			result.AMLOTriggered = true
			result.AMLORecords = append(result.AMLORecords, *reservation)
		}
	}

	botType := models.ReportTypeBOTBuyFX
	if entry.Direction == models.DirectionSell {
		botType = models.ReportTypeBOTSellFX
	}
	if triggered, err := b.checkBOT(tx, botType, data, entry, currency); err != nil {
		b.fail(&result, botType, entry, err)
	} else if triggered {
		result.BOTTriggered = true
	}

	if entry.UseFCD {
		if triggered, err := b.checkBOT(tx, models.ReportTypeBOTFCD, data, entry, currency); err != nil {
			b.fail(&result, models.ReportTypeBOTFCD, entry, err)
		} else if triggered {
			result.FCDTriggered = true
		}
	}

	return result
}

// BalanceAdjusted checks the BOT provider threshold for a manual balance
// adjustment.
func (b *Bus) BalanceAdjusted(tx *gorm.DB, entry *models.ExchangeTransaction, currency *models.Currency, reason string) ComplianceResult {
	result := ComplianceResult{AMLORecords: []models.Reservation{}}

	usd := b.USDEquivalent(currency.Code, entry.Amount, entry.LocalAmount)
	data := map[string]interface{}{
		"adjustment_amount":     entry.Amount.Abs(),
		"adjustment_amount_usd": usd,
		"currency_code":         currency.Code,
		"branch_id":             entry.BranchID,
		"reason":                reason,
	}

	trigger, err := b.resolver.Resolve(models.ReportTypeBOTProvider, data, entry.BranchID)
	if err != nil {
		b.fail(&result, models.ReportTypeBOTProvider, entry, err)
		return result
	}
	if !trigger.Triggered {
		return result
	}

	row := models.BOTProvider{BOTRow: b.botRow(entry, currency, usd)}
	row.Remarks = reason
	if err := tx.Create(&row).Error; err != nil {
		b.fail(&result, models.ReportTypeBOTProvider, entry, err)
		return result
	}
	result.BOTTriggered = true
	return result
}

// entryData builds the rule evaluation payload for a settled entry,
// including the cross-branch 30-day customer statistics some rules use.
func (b *Bus) entryData(entry *models.ExchangeTransaction, currency *models.Currency) map[string]interface{} {
	data := map[string]interface{}{
		"amount":              entry.Amount.Abs(),
		"local_amount":        entry.LocalAmount.Abs(),
		"rate":                entry.Rate,
		"direction":           string(entry.Direction),
		"transaction_type":    string(entry.Type),
		"currency_code":       currency.Code,
		"use_fcd":             entry.UseFCD,
		"customer_id":         entry.CustomerID,
		"customer_country":    entry.CustomerCountry,
		"payment_method":      entry.PaymentMethod,
		"branch_id":           entry.BranchID,
		"verification_amount": b.USDEquivalent(currency.Code, entry.Amount, entry.LocalAmount),
	}
	return b.stats.EnrichData(data, entry.CustomerID)
}

// createReservation writes a pending reservation for a trigger match,
// deduplicated on (report_type, linked transaction).
func (b *Bus) createReservation(tx *gorm.DB, reportType models.ReportType, entry *models.ExchangeTransaction, branch *models.Branch, trigger *rules.TriggerResult) (*models.Reservation, error) {
	var existing int64
	err := tx.Model(&models.Reservation{}).
		Where("report_type = ? AND linked_tx_id = ?", reportType, entry.ID).
		Count(&existing).Error
	if err != nil {
		return nil, fmt.Errorf("error checking reservation dedup: %w", err)
	}
	if existing > 0 {
		return nil, nil
	}

	reportNo, err := b.registry.AllocateWithTx(tx, branch.InstitutionCode, branch.BranchCode, time.Now().Year())
	if err != nil {
		return nil, fmt.Errorf("error allocating report number: %w", err)
	}

	detail := models.JSON{
		"matched_conditions":   trigger.MatchedConditions,
		"unmatched_conditions": trigger.UnmatchedConditions,
		"rule_expression":      trigger.RuleExpression,
	}

	linkedID := entry.ID
	reservation := models.Reservation{
		ReservationNo:   reportNo,
		ReportType:      reportType,
		Status:          models.ReservationStatusPending,
		CustomerName:    entry.CustomerName,
		CustomerID:      entry.CustomerID,
		CustomerCountry: entry.CustomerCountry,
		BranchID:        entry.BranchID,
		CurrencyID:      entry.CurrencyID,
		Direction:       entry.Direction,
		Amount:          entry.Amount.Abs(),
		LocalAmount:     entry.LocalAmount.Abs(),
		Rate:            entry.Rate,
		TriggerType:     trigger.HighestPriorityRule.Name,
		TriggerRuleID:   &trigger.HighestPriorityRule.ID,
		TriggerDetail:   detail,
		FormData:        models.JSON{},
		OperatorID:      entry.OperatorID,
		LinkedTxID:      &linkedID,
	}
	if err := tx.Create(&reservation).Error; err != nil {
		return nil, fmt.Errorf("error creating reservation: %w", err)
	}
	return &reservation, nil
}

// checkBOT evaluates one BOT report type and writes the monthly row on
// match, deduplicated on the source transaction.
func (b *Bus) checkBOT(tx *gorm.DB, reportType models.ReportType, data map[string]interface{}, entry *models.ExchangeTransaction, currency *models.Currency) (bool, error) {
	trigger, err := b.resolver.Resolve(reportType, data, entry.BranchID)
	if err != nil {
		return false, err
	}
	if !trigger.Triggered {
		return false, nil
	}

	usd := b.USDEquivalent(currency.Code, entry.Amount, entry.LocalAmount)
	row := b.botRow(entry, currency, usd)

	var model interface{}
	var table string
	switch reportType {
	case models.ReportTypeBOTBuyFX:
		model, table = &models.BOTBuyFX{BOTRow: row}, models.BOTBuyFX{}.TableName()
	case models.ReportTypeBOTSellFX:
		model, table = &models.BOTSellFX{BOTRow: row}, models.BOTSellFX{}.TableName()
	case models.ReportTypeBOTFCD:
		model, table = &models.BOTFCD{BOTRow: row}, models.BOTFCD{}.TableName()
	default:
		return false, fmt.Errorf("unsupported BOT report type %s", reportType)
	}

	var existing int64
	if err := tx.Table(table).Where("transaction_id = ?", entry.ID).Count(&existing).Error; err != nil {
		return false, fmt.Errorf("error checking BOT dedup: %w", err)
	}
	if existing > 0 {
		return true, nil
	}

	if err := tx.Create(model).Error; err != nil {
		return false, fmt.Errorf("error creating BOT row: %w", err)
	}
	return true, nil
}

func (b *Bus) botRow(entry *models.ExchangeTransaction, currency *models.Currency, usd decimal.Decimal) models.BOTRow {
	return models.BOTRow{
		TransactionID:   entry.ID,
		BranchID:        entry.BranchID,
		CustomerID:      entry.CustomerID,
		CustomerName:    entry.CustomerName,
		CustomerCountry: entry.CustomerCountry,
		CurrencyCode:    currency.Code,
		ForeignAmount:   entry.Amount.Abs(),
		LocalAmount:     entry.LocalAmount.Abs(),
		ExchangeRate:    entry.Rate,
		USDEquivalent:   usd,
		UseFCD:          entry.UseFCD,
		ReporterID:      entry.OperatorID,
		TransactionDate: entry.TransactionDate,
	}
}

func (b *Bus) fail(result *ComplianceResult, reportType models.ReportType, entry *models.ExchangeTransaction, err error) {
	b.log.WithFields(logrus.Fields{
		"report_type":    reportType,
		"transaction_no": entry.TransactionNo,
		"error":          err,
	}).Error("compliance check failed")
	result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", reportType, err))
}
