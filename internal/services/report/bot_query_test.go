package report

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/siamfx/backoffice/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestT1WindowAndTotals(t *testing.T) {
	db := newTestDB(t)
	svc := NewQueryService(db)

	now := time.Date(2026, time.March, 10, 15, 0, 0, 0, time.Local)
	seedBuyRow(t, db, 1, now, 1)                      // today
	seedBuyRow(t, db, 1, now.AddDate(0, 0, -1), 2)    // yesterday, unreported
	seedBuyRow(t, db, 1, now.AddDate(0, 0, -3), 3)    // outside window
	seedBuyRow(t, db, 2, now, 4)                      // other branch

	page, err := svc.T1BuyFX(1, now)
	require.NoError(t, err)
	require.Len(t, page.Rows, 2)
	assert.EqualValues(t, 2, page.Totals.TotalCount)
	assert.True(t, page.Totals.TotalAmountTHB.Equal(decimal.NewFromInt(1700000)))
	assert.EqualValues(t, 2, page.Totals.UnreportedCount)
	// Yesterday's unreported row has hit its next-day deadline.
	assert.EqualValues(t, 1, page.Totals.OverdueCount)
}

func TestT1SellFXSeparateTable(t *testing.T) {
	db := newTestDB(t)
	svc := NewQueryService(db)

	now := time.Now()
	require.NoError(t, db.Create(&models.BOTSellFX{BOTRow: models.BOTRow{
		TransactionID: 9, BranchID: 1, CurrencyCode: "USD",
		LocalAmount:     decimal.NewFromInt(700000),
		TransactionDate: now,
	}}).Error)
	seedBuyRow(t, db, 1, now, 10)

	page, err := svc.T1SellFX(1, now)
	require.NoError(t, err)
	require.Len(t, page.Rows, 1)
	assert.EqualValues(t, 9, page.Rows[0].TransactionID)
}

func TestMarkReportedBranchScoped(t *testing.T) {
	db := newTestDB(t)
	svc := NewQueryService(db)

	now := time.Now()
	seedBuyRow(t, db, 1, now, 1)
	seedBuyRow(t, db, 2, now, 2)

	var mine, other models.BOTBuyFX
	require.NoError(t, db.Where("branch_id = ?", 1).First(&mine).Error)
	require.NoError(t, db.Where("branch_id = ?", 2).First(&other).Error)

	updated, err := svc.MarkReported("buy_fx", 1, 7, []uint{mine.ID, other.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, updated)

	require.NoError(t, db.First(&mine, mine.ID).Error)
	assert.True(t, mine.IsReported)
	assert.EqualValues(t, 7, mine.ReporterID)
	require.NoError(t, db.First(&other, other.ID).Error)
	assert.False(t, other.IsReported)

	// Already-reported rows are not double counted.
	updated, err = svc.MarkReported("buy_fx", 1, 7, []uint{mine.ID})
	require.NoError(t, err)
	assert.Zero(t, updated)
}

func TestMarkReportedWireTableNames(t *testing.T) {
	db := newTestDB(t)
	svc := NewQueryService(db)

	seedBuyRow(t, db, 1, time.Now(), 1)
	var row models.BOTBuyFX
	require.NoError(t, db.First(&row).Error)

	updated, err := svc.MarkReported("BOT_BuyFX", 1, 7, []uint{row.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, updated)

	// The other wire names resolve too.
	for _, table := range []string{"BOT_SellFX", "BOT_FCD", "BOT_Provider"} {
		updated, err = svc.MarkReported(table, 1, 7, nil)
		require.NoErrorf(t, err, "table %s", table)
		assert.Zero(t, updated)
	}
}

func TestMarkReportedUnknownTable(t *testing.T) {
	svc := NewQueryService(newTestDB(t))

	_, err := svc.MarkReported("bot_sneaky", 1, 7, []uint{1})
	assert.ErrorIs(t, err, ErrUnknownBOTTable)

	updated, err := svc.MarkReported("fcd", 1, 7, nil)
	require.NoError(t, err)
	assert.Zero(t, updated)
}
