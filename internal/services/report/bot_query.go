package report

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/siamfx/backoffice/internal/models"
	"gorm.io/gorm"
)

// botTables maps the external table selector to its gorm table name. The
// wire names are BOT_BuyFX/BOT_SellFX/BOT_FCD/BOT_Provider; the short forms
// are kept as aliases.
var botTables = map[string]string{
	"BOT_BuyFX":    models.BOTBuyFX{}.TableName(),
	"BOT_SellFX":   models.BOTSellFX{}.TableName(),
	"BOT_FCD":      models.BOTFCD{}.TableName(),
	"BOT_Provider": models.BOTProvider{}.TableName(),
	"buy_fx":       models.BOTBuyFX{}.TableName(),
	"sell_fx":      models.BOTSellFX{}.TableName(),
	"fcd":          models.BOTFCD{}.TableName(),
	"provider":     models.BOTProvider{}.TableName(),
}

// ErrUnknownBOTTable is returned for a table selector outside the four
// monthly tables.
var ErrUnknownBOTTable = fmt.Errorf("unknown_bot_table")

// T1Totals summarizes the yesterday-to-today reporting window.
type T1Totals struct {
	TotalCount      int64           `json:"total_count"`
	TotalAmountTHB  decimal.Decimal `json:"total_amount_thb"`
	UnreportedCount int64           `json:"unreported_count"`
	OverdueCount    int64           `json:"overdue_count"`
}

// T1Page is a browse result over one BOT table.
type T1Page struct {
	Rows   []models.BOTRow `json:"rows"`
	Totals T1Totals        `json:"totals"`
}

// QueryService browses BOT rows for next-day reporting.
type QueryService struct {
	db *gorm.DB
}

func NewQueryService(db *gorm.DB) *QueryService {
	return &QueryService{db: db}
}

// T1BuyFX returns purchase rows dated yesterday through today.
func (s *QueryService) T1BuyFX(branchID uint, now time.Time) (*T1Page, error) {
	return s.t1(models.BOTBuyFX{}.TableName(), branchID, now)
}

// T1SellFX returns sale rows dated yesterday through today.
func (s *QueryService) T1SellFX(branchID uint, now time.Time) (*T1Page, error) {
	return s.t1(models.BOTSellFX{}.TableName(), branchID, now)
}

func (s *QueryService) t1(table string, branchID uint, now time.Time) (*T1Page, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	start := today.AddDate(0, 0, -1)
	end := today.AddDate(0, 0, 1)

	var rows []models.BOTRow
	if err := s.db.Table(table).
		Where("branch_id = ? AND transaction_date >= ? AND transaction_date < ?", branchID, start, end).
		Order("transaction_date ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("error querying %s: %w", table, err)
	}

	page := &T1Page{Rows: rows}
	page.Totals.TotalCount = int64(len(rows))
	deadline := today // unreported rows dated before today have hit the next-day deadline
	for _, row := range rows {
		page.Totals.TotalAmountTHB = page.Totals.TotalAmountTHB.Add(row.LocalAmount.Abs())
		if !row.IsReported {
			page.Totals.UnreportedCount++
			if row.TransactionDate.Before(deadline) {
				page.Totals.OverdueCount++
			}
		}
	}
	return page, nil
}

// MarkReported flags rows of one BOT table as reported, branch scoped.
// Returns the number of rows updated.
func (s *QueryService) MarkReported(table string, branchID uint, reporterID uint, ids []uint) (int64, error) {
	name, ok := botTables[table]
	if !ok {
		return 0, ErrUnknownBOTTable
	}
	if len(ids) == 0 {
		return 0, nil
	}
	res := s.db.Table(name).
		Where("branch_id = ? AND id IN ? AND is_reported = ?", branchID, ids, false).
		Updates(map[string]interface{}{
			"is_reported": true,
			"reporter_id": reporterID,
			"updated_at":  time.Now(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("error marking %s reported: %w", name, res.Error)
	}
	return res.RowsAffected, nil
}
