package rules

import (
	"testing"

	"github.com/glebarez/sqlite"
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
	require.NoError(t, db.AutoMigrate(&models.TriggerRule{}, &models.ExchangeTransaction{}))
	return db
}

func seedRule(t *testing.T, db *gorm.DB, rule models.TriggerRule) models.TriggerRule {
	t.Helper()
	require.NoError(t, db.Create(&rule).Error)
	return rule
}

func TestResolveNoMatchAllowsContinue(t *testing.T) {
	db := newTestDB(t)
	resolver := NewResolver(db)

	seedRule(t, db, models.TriggerRule{
		Name:       "ctr",
		ReportType: models.ReportTypeAMLO101,
		Expression: `{"field":"local_amount","operator":">=","value":2000000}`,
		Priority:   100,
		Active:     true,
	})

	result, err := resolver.Resolve(models.ReportTypeAMLO101,
		map[string]interface{}{"local_amount": 100.0}, 1)
	require.NoError(t, err)
	assert.False(t, result.Triggered)
	assert.True(t, result.AllowContinue)
	assert.Nil(t, result.HighestPriorityRule)
	assert.Empty(t, result.TriggerRules)
}

func TestResolveHighestPriorityWins(t *testing.T) {
	db := newTestDB(t)
	resolver := NewResolver(db)

	seedRule(t, db, models.TriggerRule{
		Name:          "low",
		ReportType:    models.ReportTypeAMLO101,
		Expression:    `{"field":"local_amount","operator":">=","value":1000}`,
		Priority:      10,
		AllowContinue: true,
		MessageEN:     "low threshold",
		Active:        true,
	})
	high := seedRule(t, db, models.TriggerRule{
		Name:          "high",
		ReportType:    models.ReportTypeAMLO101,
		Expression:    `{"field":"local_amount","operator":">=","value":2000000}`,
		Priority:      100,
		AllowContinue: false,
		MessageEN:     "cash threshold reached",
		MessageTH:     "ถึงเกณฑ์เงินสด",
		Active:        true,
	})

	result, err := resolver.Resolve(models.ReportTypeAMLO101,
		map[string]interface{}{"local_amount": 2500000.0}, 1)
	require.NoError(t, err)
	assert.True(t, result.Triggered)
	require.NotNil(t, result.HighestPriorityRule)
	assert.Equal(t, high.ID, result.HighestPriorityRule.ID)
	assert.False(t, result.AllowContinue)
	assert.Equal(t, "cash threshold reached", result.MessageEN)
	assert.Equal(t, "ถึงเกณฑ์เงินสด", result.MessageTH)
	assert.Len(t, result.TriggerRules, 2)
	assert.NotEmpty(t, result.MatchedConditions)
	assert.Equal(t, high.Expression, result.RuleExpression)
}

func TestResolveBranchScope(t *testing.T) {
	db := newTestDB(t)
	resolver := NewResolver(db)

	otherBranch := uint(99)
	seedRule(t, db, models.TriggerRule{
		Name:       "branch-only",
		ReportType: models.ReportTypeBOTBuyFX,
		Expression: `{"field":"verification_amount","operator":">=","value":20000}`,
		Priority:   50,
		BranchID:   &otherBranch,
		Active:     true,
	})

	// Rule scoped to branch 99 must not fire for branch 1.
	result, err := resolver.Resolve(models.ReportTypeBOTBuyFX,
		map[string]interface{}{"verification_amount": 30000.0}, 1)
	require.NoError(t, err)
	assert.False(t, result.Triggered)

	// But it fires for its own branch.
	result, err = resolver.Resolve(models.ReportTypeBOTBuyFX,
		map[string]interface{}{"verification_amount": 30000.0}, 99)
	require.NoError(t, err)
	assert.True(t, result.Triggered)
}

func TestResolveSkipsInactiveAndMalformed(t *testing.T) {
	db := newTestDB(t)
	resolver := NewResolver(db)

	seedRule(t, db, models.TriggerRule{
		Name:       "inactive",
		ReportType: models.ReportTypeAMLO102,
		Expression: `{"field":"local_amount","operator":">=","value":1}`,
		Priority:   100,
		Active:     false,
	})
	seedRule(t, db, models.TriggerRule{
		Name:       "malformed",
		ReportType: models.ReportTypeAMLO102,
		Expression: `{"logic":"XOR"`,
		Priority:   90,
		Active:     true,
	})
	ok := seedRule(t, db, models.TriggerRule{
		Name:       "valid",
		ReportType: models.ReportTypeAMLO102,
		Expression: `{"field":"local_amount","operator":">=","value":5000000}`,
		Priority:   10,
		Active:     true,
	})

	result, err := resolver.Resolve(models.ReportTypeAMLO102,
		map[string]interface{}{"local_amount": 6000000.0}, 1)
	require.NoError(t, err)
	assert.True(t, result.Triggered)
	require.NotNil(t, result.HighestPriorityRule)
	assert.Equal(t, ok.ID, result.HighestPriorityRule.ID)
	assert.Len(t, result.TriggerRules, 1)
}

func TestResolveEqualPriorityLowestIDWins(t *testing.T) {
	db := newTestDB(t)
	resolver := NewResolver(db)

	first := seedRule(t, db, models.TriggerRule{
		Name:       "first",
		ReportType: models.ReportTypeAMLO101,
		Expression: `{"field":"local_amount","operator":">","value":0}`,
		Priority:   50,
		Active:     true,
	})
	seedRule(t, db, models.TriggerRule{
		Name:       "second",
		ReportType: models.ReportTypeAMLO101,
		Expression: `{"field":"local_amount","operator":">","value":0}`,
		Priority:   50,
		Active:     true,
	})

	result, err := resolver.Resolve(models.ReportTypeAMLO101,
		map[string]interface{}{"local_amount": 1.0}, 1)
	require.NoError(t, err)
	require.NotNil(t, result.HighestPriorityRule)
	assert.Equal(t, first.ID, result.HighestPriorityRule.ID)
}
