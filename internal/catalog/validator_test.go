package catalog

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
	require.NoError(t, db.AutoMigrate(&models.ReportFieldDefinition{}))
	return db
}

func seedFields(t *testing.T, db *gorm.DB) {
	t.Helper()
	fields := []models.ReportFieldDefinition{
		{
			ReportType: models.ReportTypeAMLO101, Name: "customer_name",
			FieldType: models.FieldTypeVarchar, Length: 10, FillOrder: 1,
			Required: true, LabelZH: "客户姓名", LabelEN: "Customer Name",
			LabelTH: "ชื่อลูกค้า", FieldGroup: "customer", Active: true,
		},
		{
			ReportType: models.ReportTypeAMLO101, Name: "transaction_amount",
			FieldType: models.FieldTypeDecimal, FillOrder: 2, Required: true,
			LabelEN: "Amount", FieldGroup: "transaction", Active: true,
			ValidationRule: models.JSON{"min": 0},
		},
		{
			ReportType: models.ReportTypeAMLO101, Name: "transaction_date",
			FieldType: models.FieldTypeDate, FillOrder: 3, Required: false,
			LabelEN: "Date", FieldGroup: "transaction", Active: true,
		},
		{
			ReportType: models.ReportTypeAMLO101, Name: "id_type",
			FieldType: models.FieldTypeEnum, FillOrder: 4, Required: false,
			LabelEN: "ID Type", FieldGroup: "customer", Active: true,
			ValidationRule: models.JSON{"options": []interface{}{"passport", "national_id"}},
		},
		{
			ReportType: models.ReportTypeAMLO101, Name: "use_cash",
			FieldType: models.FieldTypeBoolean, FillOrder: 5, Required: false,
			LabelEN: "Cash", FieldGroup: "transaction", Active: true,
		},
		{
			ReportType: models.ReportTypeAMLO101, Name: "retired",
			FieldType: models.FieldTypeVarchar, FillOrder: 6, Required: true,
			LabelEN: "Retired", FieldGroup: "customer", Active: false,
		},
	}
	for _, f := range fields {
		require.NoError(t, db.Create(&f).Error)
	}
}

func TestValidateAccumulatesAllErrors(t *testing.T) {
	db := newTestDB(t)
	seedFields(t, db)
	v := NewValidator(NewCatalog(db))

	ok, errs, err := v.Validate(models.ReportTypeAMLO101, map[string]interface{}{
		"transaction_date": "31/12/2025",
		"id_type":          "driver_license",
	}, "en-US")
	require.NoError(t, err)
	assert.False(t, ok)
	// missing customer_name, missing transaction_amount, bad date, bad enum
	assert.Len(t, errs, 4)
}

func TestValidateLocalizedRequiredMessage(t *testing.T) {
	db := newTestDB(t)
	seedFields(t, db)
	v := NewValidator(NewCatalog(db))

	ok, errs, err := v.Validate(models.ReportTypeAMLO101, map[string]interface{}{
		"transaction_amount": 100,
	}, "zh-CN")
	require.NoError(t, err)
	assert.False(t, ok)
	require.Len(t, errs, 1)
	assert.Equal(t, "客户姓名为必填项", errs[0])
}

func TestValidateHappyPath(t *testing.T) {
	db := newTestDB(t)
	seedFields(t, db)
	v := NewValidator(NewCatalog(db))

	ok, errs, err := v.Validate(models.ReportTypeAMLO101, map[string]interface{}{
		"customer_name":      "สมชาย",
		"transaction_amount": "2500000.50",
		"transaction_date":   "2026-01-15",
		"id_type":            "passport",
		"use_cash":           true,
	}, "en-US")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, errs)
}

func TestValidateTypeChecks(t *testing.T) {
	db := newTestDB(t)
	seedFields(t, db)
	v := NewValidator(NewCatalog(db))

	cases := []struct {
		name string
		data map[string]interface{}
	}{
		{"non-numeric amount", map[string]interface{}{
			"customer_name": "x", "transaction_amount": "lots",
		}},
		{"negative below min", map[string]interface{}{
			"customer_name": "x", "transaction_amount": -5,
		}},
		{"boolean junk", map[string]interface{}{
			"customer_name": "x", "transaction_amount": 1, "use_cash": "yes",
		}},
		{"varchar over column length", map[string]interface{}{
			"customer_name": "12345678901", "transaction_amount": 1,
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, errs, err := v.Validate(models.ReportTypeAMLO101, tc.data, "en-US")
			require.NoError(t, err)
			assert.False(t, ok)
			assert.NotEmpty(t, errs)
		})
	}
}

func TestValidateRuneLength(t *testing.T) {
	db := newTestDB(t)
	seedFields(t, db)
	v := NewValidator(NewCatalog(db))

	// Ten Thai characters fit a length-10 column even though the byte count
	// is three times that.
	ok, errs, err := v.Validate(models.ReportTypeAMLO101, map[string]interface{}{
		"customer_name":      "กกกกกกกกกก",
		"transaction_amount": 1,
	}, "en-US")
	require.NoError(t, err)
	assert.True(t, ok, "%v", errs)
}

func TestCatalogOrderingAndGroups(t *testing.T) {
	db := newTestDB(t)
	seedFields(t, db)
	cat := NewCatalog(db)

	fields, err := cat.Fields(models.ReportTypeAMLO101, "th-TH")
	require.NoError(t, err)
	require.Len(t, fields, 5) // inactive excluded
	assert.Equal(t, "customer_name", fields[0].Name)
	assert.Equal(t, "ชื่อลูกค้า", fields[0].Label)
	// empty localized label falls back to the field name
	assert.Equal(t, "transaction_amount", fields[1].Label)

	groups, err := cat.Groups(models.ReportTypeAMLO101, "en-US")
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "customer", groups[0].Group)
	assert.Len(t, groups[0].Fields, 2)
	assert.Len(t, groups[1].Fields, 3)

	required, err := cat.RequiredFields(models.ReportTypeAMLO101)
	require.NoError(t, err)
	assert.Len(t, required, 2)

	field, err := cat.FieldByName(models.ReportTypeAMLO101, "id_type")
	require.NoError(t, err)
	require.NotNil(t, field)
	assert.Equal(t, models.FieldTypeEnum, field.FieldType)

	missing, err := cat.FieldByName(models.ReportTypeAMLO101, "ghost")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
