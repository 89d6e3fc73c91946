package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/siamfx/backoffice/internal/models"
	"gorm.io/gorm"
)

func init() {
	migrationsList = append(migrationsList, &gormigrate.Migration{
		ID: "000002_seed_trigger_rules",
		Migrate: func(tx *gorm.DB) error {
			rules := []models.TriggerRule{
				{
					Name:       "CTR cash threshold",
					ReportType: models.ReportTypeAMLO101,
					Expression: `{"field": "local_amount", "operator": ">=", "value": 2000000}`,
					Priority:   100,
					MessageZH:  "现金交易达到 AMLO 1-01 申报门槛",
					MessageEN:  "Cash transaction reaches the AMLO 1-01 reporting threshold",
					MessageTH:  "ธุรกรรมเงินสดถึงเกณฑ์รายงาน AMLO 1-01",
				},
				{
					Name:       "ATR asset threshold",
					ReportType: models.ReportTypeAMLO102,
					Expression: `{"field": "local_amount", "operator": ">=", "value": 5000000}`,
					Priority:   100,
					MessageZH:  "资产交易达到 AMLO 1-02 申报门槛",
					MessageEN:  "Asset transaction reaches the AMLO 1-02 reporting threshold",
					MessageTH:  "ธุรกรรมทรัพย์สินถึงเกณฑ์รายงาน AMLO 1-02",
				},
				{
					Name:       "STR cumulative 30-day",
					ReportType: models.ReportTypeAMLO103,
					Expression: `{"logic": "AND", "conditions": [{"field": "customer_total_30d", "operator": ">=", "value": 8000000}, {"field": "local_amount", "operator": ">=", "value": 100000}]}`,
					Priority:   90,
					MessageZH:  "客户30日累计金额可疑，需提交 AMLO 1-03",
					MessageEN:  "Customer 30-day cumulative amount is suspicious, AMLO 1-03 required",
					MessageTH:  "ยอดสะสม 30 วันของลูกค้าเข้าข่ายต้องรายงาน AMLO 1-03",
				},
				{
					Name:       "BOT buy FX threshold",
					ReportType: models.ReportTypeBOTBuyFX,
					Expression: `{"logic": "AND", "conditions": [{"field": "verification_amount", "operator": ">=", "value": 20000}, {"field": "direction", "operator": "=", "value": "buy"}]}`,
					Priority:   100,
					MessageEN:  "Foreign currency purchase reaches the BOT reporting threshold",
					MessageTH:  "การซื้อเงินตราต่างประเทศถึงเกณฑ์รายงาน ธปท.",
					MessageZH:  "外币买入达到央行申报门槛",
				},
				{
					Name:       "BOT sell FX threshold",
					ReportType: models.ReportTypeBOTSellFX,
					Expression: `{"logic": "AND", "conditions": [{"field": "verification_amount", "operator": ">=", "value": 20000}, {"field": "direction", "operator": "=", "value": "sell"}]}`,
					Priority:   100,
					MessageEN:  "Foreign currency sale reaches the BOT reporting threshold",
					MessageTH:  "การขายเงินตราต่างประเทศถึงเกณฑ์รายงาน ธปท.",
					MessageZH:  "外币卖出达到央行申报门槛",
				},
				{
					Name:       "BOT FCD threshold",
					ReportType: models.ReportTypeBOTFCD,
					Expression: `{"logic": "AND", "conditions": [{"field": "use_fcd", "operator": "=", "value": true}, {"field": "verification_amount", "operator": ">=", "value": 50000}]}`,
					Priority:   100,
					MessageEN:  "FCD transaction reaches the BOT reporting threshold",
					MessageTH:  "ธุรกรรม FCD ถึงเกณฑ์รายงาน ธปท.",
					MessageZH:  "FCD 交易达到央行申报门槛",
				},
				{
					Name:       "BOT provider adjustment threshold",
					ReportType: models.ReportTypeBOTProvider,
					Expression: `{"field": "adjustment_amount_usd", "operator": ">", "value": 20000}`,
					Priority:   100,
					MessageEN:  "Manual balance adjustment reaches the BOT provider reporting threshold",
					MessageTH:  "การปรับยอดคงเหลือถึงเกณฑ์รายงานผู้ให้บริการ ธปท.",
					MessageZH:  "手工余额调整达到央行服务商申报门槛",
				},
			}
			for i := range rules {
				rules[i].AllowContinue = true
				rules[i].Active = true
				if err := tx.Where(models.TriggerRule{Name: rules[i].Name, ReportType: rules[i].ReportType}).
					FirstOrCreate(&rules[i]).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Where("1 = 1").Delete(&models.TriggerRule{}).Error
		},
	})
}
