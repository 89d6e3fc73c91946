package rules

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/siamfx/backoffice/internal/models"
	"gorm.io/gorm"
)

// DefaultStatsWindow is the lookback used by cumulative-amount rules.
const DefaultStatsWindow = 30 * 24 * time.Hour

// CustomerStats aggregates a customer's completed transactions over a window.
// This is the only cross-branch aggregation in the system.
type CustomerStats struct {
	CustomerID  string                     `json:"customer_id"`
	WindowDays  int                        `json:"window_days"`
	TotalAmount decimal.Decimal            `json:"total_amount"`
	TxCount     int64                      `json:"tx_count"`
	ByBranch    map[uint]decimal.Decimal   `json:"by_branch"`
}

// StatsService computes customer cumulative statistics for rule evaluation.
type StatsService struct {
	db *gorm.DB
}

// NewStatsService creates a stats service.
func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{db: db}
}

// CustomerCumulative sums |local_amount| of completed transactions for a
// customer across all branches within the window, with a per-branch
// breakdown.
func (s *StatsService) CustomerCumulative(customerID string, window time.Duration) (*CustomerStats, error) {
	if window <= 0 {
		window = DefaultStatsWindow
	}
	since := time.Now().Add(-window)

	type row struct {
		BranchID uint
		Total    decimal.Decimal
		Count    int64
	}
	var perBranch []row
	err := s.db.Model(&models.ExchangeTransaction{}).
		Select("branch_id, COALESCE(SUM(ABS(local_amount)), 0) AS total, COUNT(*) AS count").
		Where("customer_id = ? AND status = ? AND created_at >= ?",
			customerID, models.TransactionStatusCompleted, since).
		Group("branch_id").
		Scan(&perBranch).Error
	if err != nil {
		return nil, fmt.Errorf("error aggregating customer transactions: %w", err)
	}

	stats := &CustomerStats{
		CustomerID:  customerID,
		WindowDays:  int(window.Hours() / 24),
		TotalAmount: decimal.Zero,
		ByBranch:    make(map[uint]decimal.Decimal, len(perBranch)),
	}
	for _, r := range perBranch {
		stats.TotalAmount = stats.TotalAmount.Add(r.Total)
		stats.TxCount += r.Count
		stats.ByBranch[r.BranchID] = r.Total
	}
	return stats, nil
}

// EnrichData adds cumulative-statistics fields to a rule evaluation payload.
func (s *StatsService) EnrichData(data map[string]interface{}, customerID string) map[string]interface{} {
	if customerID == "" {
		return data
	}
	stats, err := s.CustomerCumulative(customerID, DefaultStatsWindow)
	if err != nil {
		// Statistics failures degrade the rule input, never the caller.
		return data
	}
	data["customer_total_30d"] = stats.TotalAmount
	data["customer_tx_count_30d"] = stats.TxCount
	return data
}
