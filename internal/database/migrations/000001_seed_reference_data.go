package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/siamfx/backoffice/internal/models"
	"gorm.io/gorm"
)

func init() {
	migrationsList = append(migrationsList, &gormigrate.Migration{
		ID: "000001_seed_reference_data",
		Migrate: func(tx *gorm.DB) error {
			currencies := []models.Currency{
				{Code: "THB", NameZH: "泰铢", NameEN: "Thai Baht", NameTH: "บาทไทย", Symbol: "฿"},
				{Code: "USD", NameZH: "美元", NameEN: "US Dollar", NameTH: "ดอลลาร์สหรัฐ", Symbol: "$"},
				{Code: "EUR", NameZH: "欧元", NameEN: "Euro", NameTH: "ยูโร", Symbol: "€"},
				{Code: "JPY", NameZH: "日元", NameEN: "Japanese Yen", NameTH: "เยนญี่ปุ่น", Symbol: "¥"},
				{Code: "CNY", NameZH: "人民币", NameEN: "Chinese Yuan", NameTH: "หยวนจีน", Symbol: "¥"},
				{Code: "GBP", NameZH: "英镑", NameEN: "Pound Sterling", NameTH: "ปอนด์สเตอร์ลิง", Symbol: "£"},
			}
			for i := range currencies {
				if err := tx.Where(models.Currency{Code: currencies[i].Code}).
					FirstOrCreate(&currencies[i]).Error; err != nil {
					return err
				}
			}

			countries := []models.Country{
				{Code: "TH", NameZH: "泰国", NameEN: "Thailand", NameTH: "ไทย", PhonePrefix: "+66", SortOrder: 1},
				{Code: "CN", NameZH: "中国", NameEN: "China", NameTH: "จีน", PhonePrefix: "+86", SortOrder: 2},
				{Code: "US", NameZH: "美国", NameEN: "United States", NameTH: "สหรัฐอเมริกา", PhonePrefix: "+1", SortOrder: 3},
				{Code: "JP", NameZH: "日本", NameEN: "Japan", NameTH: "ญี่ปุ่น", PhonePrefix: "+81", SortOrder: 4},
				{Code: "GB", NameZH: "英国", NameEN: "United Kingdom", NameTH: "สหราชอาณาจักร", PhonePrefix: "+44", SortOrder: 5},
				{Code: "SG", NameZH: "新加坡", NameEN: "Singapore", NameTH: "สิงคโปร์", PhonePrefix: "+65", SortOrder: 6},
			}
			for i := range countries {
				countries[i].Active = true
				if err := tx.Where(models.Country{Code: countries[i].Code}).
					FirstOrCreate(&countries[i]).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			if err := tx.Where("1 = 1").Delete(&models.Country{}).Error; err != nil {
				return err
			}
			return tx.Where("1 = 1").Delete(&models.Currency{}).Error
		},
	})
}
