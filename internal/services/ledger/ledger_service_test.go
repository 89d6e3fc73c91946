package ledger

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/siamfx/backoffice/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.CurrencyBalance{}))
	return db
}

func TestAdjustCreatesRowLazily(t *testing.T) {
	svc := NewLedgerService(newTestDB(t))

	before, after, err := svc.Adjust(1, 2, decimal.NewFromInt(1000))
	require.NoError(t, err)
	assert.True(t, before.IsZero())
	assert.True(t, after.Equal(decimal.NewFromInt(1000)))

	balance, err := svc.Balance(1, 2)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(1000)))
}

func TestAdjustSnapshotsBeforeAndAfter(t *testing.T) {
	svc := NewLedgerService(newTestDB(t))

	_, _, err := svc.Adjust(1, 2, decimal.NewFromInt(500))
	require.NoError(t, err)

	before, after, err := svc.Adjust(1, 2, decimal.RequireFromString("-123.45"))
	require.NoError(t, err)
	assert.True(t, before.Equal(decimal.NewFromInt(500)))
	assert.True(t, after.Equal(decimal.RequireFromString("376.55")))
}

func TestAdjustAllowsNegativeBalance(t *testing.T) {
	// The ledger itself never rejects an overdraw; the caller decides.
	svc := NewLedgerService(newTestDB(t))

	_, after, err := svc.Adjust(1, 2, decimal.NewFromInt(-200))
	require.NoError(t, err)
	assert.True(t, after.Equal(decimal.NewFromInt(-200)))
}

func TestBalanceMissingRowIsZero(t *testing.T) {
	svc := NewLedgerService(newTestDB(t))

	balance, err := svc.Balance(7, 7)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func TestBalancesScopedToBranch(t *testing.T) {
	svc := NewLedgerService(newTestDB(t))

	_, _, err := svc.Adjust(1, 1, decimal.NewFromInt(10))
	require.NoError(t, err)
	_, _, err = svc.Adjust(1, 2, decimal.NewFromInt(20))
	require.NoError(t, err)
	_, _, err = svc.Adjust(2, 1, decimal.NewFromInt(30))
	require.NoError(t, err)

	balances, err := svc.Balances(1)
	require.NoError(t, err)
	require.Len(t, balances, 2)
	assert.Equal(t, uint(1), balances[0].CurrencyID)
	assert.Equal(t, uint(2), balances[1].CurrencyID)
}

func TestAdjustWithTxRollsBackWithCaller(t *testing.T) {
	db := newTestDB(t)
	svc := NewLedgerService(db)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, _, err := svc.AdjustWithTx(tx, 1, 1, decimal.NewFromInt(999))
		require.NoError(t, err)
		return assert.AnError
	})
	require.Error(t, err)

	balance, err := svc.Balance(1, 1)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}
