package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/siamfx/backoffice/internal/models"
	"gorm.io/gorm"
)

func init() {
	migrationsList = append(migrationsList, &gormigrate.Migration{
		ID: "000003_seed_amlo_fields",
		Migrate: func(tx *gorm.DB) error {
			fields := []models.ReportFieldDefinition{
				{
					ReportType: models.ReportTypeAMLO101, Name: "customer_name", FieldType: models.FieldTypeVarchar,
					Length: 128, FillOrder: 1, Required: true, FieldGroup: "customer",
					LabelZH: "客户姓名", LabelEN: "Customer name", LabelTH: "ชื่อลูกค้า",
				},
				{
					ReportType: models.ReportTypeAMLO101, Name: "customer_id_no", FieldType: models.FieldTypeVarchar,
					Length: 32, FillOrder: 2, Required: true, FieldGroup: "customer",
					ValidationRule: models.JSON{"min_length": float64(5), "max_length": float64(32)},
					LabelZH:        "证件号码", LabelEN: "ID / passport number", LabelTH: "เลขบัตรประชาชน/หนังสือเดินทาง",
				},
				{
					ReportType: models.ReportTypeAMLO101, Name: "customer_country", FieldType: models.FieldTypeEnum,
					FillOrder: 3, Required: true, FieldGroup: "customer",
					ValidationRule: models.JSON{"options": []interface{}{"TH", "CN", "US", "JP", "GB", "SG"}},
					LabelZH:        "国籍", LabelEN: "Nationality", LabelTH: "สัญชาติ",
				},
				{
					ReportType: models.ReportTypeAMLO101, Name: "customer_address", FieldType: models.FieldTypeText,
					Length: 255, FillOrder: 4, FieldGroup: "customer",
					LabelZH: "地址", LabelEN: "Address", LabelTH: "ที่อยู่",
				},
				{
					ReportType: models.ReportTypeAMLO101, Name: "transaction_date", FieldType: models.FieldTypeDate,
					FillOrder: 5, Required: true, FieldGroup: "transaction",
					LabelZH: "交易日期", LabelEN: "Transaction date", LabelTH: "วันที่ทำธุรกรรม",
				},
				{
					ReportType: models.ReportTypeAMLO101, Name: "local_amount", FieldType: models.FieldTypeDecimal,
					Precision: 20, Scale: 2, FillOrder: 6, Required: true, FieldGroup: "transaction",
					ValidationRule: models.JSON{"min": float64(0)},
					LabelZH:        "本币金额", LabelEN: "Local currency amount", LabelTH: "จำนวนเงินบาท",
				},
				{
					ReportType: models.ReportTypeAMLO101, Name: "occupation", FieldType: models.FieldTypeVarchar,
					Length: 64, FillOrder: 7, FieldGroup: "customer",
					LabelZH: "职业", LabelEN: "Occupation", LabelTH: "อาชีพ",
				},
				{
					ReportType: models.ReportTypeAMLO101, Name: "purpose", FieldType: models.FieldTypeVarchar,
					Length: 128, FillOrder: 8, FieldGroup: "transaction",
					LabelZH: "交易目的", LabelEN: "Purpose of transaction", LabelTH: "วัตถุประสงค์",
				},
				{
					ReportType: models.ReportTypeAMLO101, Name: "is_resident", FieldType: models.FieldTypeBoolean,
					FillOrder: 9, FieldGroup: "customer",
					LabelZH: "是否居民", LabelEN: "Resident", LabelTH: "ผู้มีถิ่นที่อยู่",
				},
			}
			for i := range fields {
				fields[i].Active = true
				if err := tx.Where(models.ReportFieldDefinition{
					ReportType: fields[i].ReportType, Name: fields[i].Name,
				}).FirstOrCreate(&fields[i]).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Where("1 = 1").Delete(&models.ReportFieldDefinition{}).Error
		},
	})
}
