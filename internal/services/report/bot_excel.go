package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/siamfx/backoffice/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// Sheet names of the monthly workbook; the layout is a fixed regulator
// contract.
const (
	SheetBuyFX    = "BuyFX"
	SheetSellFX   = "SellFX"
	SheetFCD      = "FCD"
	SheetProvider = "Provider"
)

// botHeaders is the fixed column order, Thai over English.
var botHeaders = []string{
	"วันที่ / Date",
	"เลขที่ธุรกรรม / Transaction ID",
	"เลขประจำตัวลูกค้า / Customer ID",
	"ชื่อลูกค้า / Customer Name",
	"สัญชาติ / Country",
	"สกุลเงิน / Currency",
	"จำนวนเงินตราต่างประเทศ / Foreign Amount",
	"จำนวนเงินบาท / THB Amount",
	"อัตราแลกเปลี่ยน / Exchange Rate",
	"เทียบเท่า USD / USD Equivalent",
	"บัญชี FCD / FCD",
	"รายงานแล้ว / Reported",
	"หมายเหตุ / Remarks",
}

// ExcelBuilder renders the BOT monthly workbook from the BOT_* tables.
type ExcelBuilder struct {
	db       *gorm.DB
	registry *Registry
	log      *logrus.Entry
}

// NewExcelBuilder creates the monthly workbook builder.
func NewExcelBuilder(db *gorm.DB, registry *Registry) *ExcelBuilder {
	return &ExcelBuilder{
		db:       db,
		registry: registry,
		log:      logrus.WithField("component", "bot_excel"),
	}
}

// BuildBuddhist builds the workbook for a Buddhist-calendar year.
func (b *ExcelBuilder) BuildBuddhist(branchID uint, buddhistYear int, month time.Month) (string, error) {
	return b.Build(branchID, buddhistYear-543, month)
}

// Build renders the workbook for a Gregorian year and month, overwriting any
// existing file at the prescribed path.
func (b *ExcelBuilder) Build(branchID uint, year int, month time.Month) (string, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.Local)
	end := start.AddDate(0, 1, 0)

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return "", fmt.Errorf("error creating header style: %w", err)
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 2}) // 0.00
	if err != nil {
		return "", fmt.Errorf("error creating money style: %w", err)
	}

	sheets := []struct {
		name string
		load func() ([]models.BOTRow, error)
	}{
		{SheetBuyFX, func() ([]models.BOTRow, error) {
			var rows []models.BOTBuyFX
			err := b.monthQuery(branchID, start, end).Find(&rows).Error
			return buyRows(rows), err
		}},
		{SheetSellFX, func() ([]models.BOTRow, error) {
			var rows []models.BOTSellFX
			err := b.monthQuery(branchID, start, end).Find(&rows).Error
			return sellRows(rows), err
		}},
		{SheetFCD, func() ([]models.BOTRow, error) {
			var rows []models.BOTFCD
			err := b.monthQuery(branchID, start, end).Find(&rows).Error
			return fcdRows(rows), err
		}},
		{SheetProvider, func() ([]models.BOTRow, error) {
			var rows []models.BOTProvider
			err := b.monthQuery(branchID, start, end).Find(&rows).Error
			return providerRows(rows), err
		}},
	}

	for _, sheet := range sheets {
		if _, err := f.NewSheet(sheet.name); err != nil {
			return "", fmt.Errorf("error creating sheet %s: %w", sheet.name, err)
		}
		rows, err := sheet.load()
		if err != nil {
			return "", fmt.Errorf("error loading %s rows: %w", sheet.name, err)
		}
		if err := b.writeSheet(f, sheet.name, rows, headerStyle, moneyStyle); err != nil {
			return "", err
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return "", fmt.Errorf("error removing default sheet: %w", err)
	}

	outDir := b.registry.MonthDir(start)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("error creating artifact directory: %w", err)
	}
	outPath := filepath.Join(outDir, ExcelFilename(year, month))
	if err := f.SaveAs(outPath); err != nil {
		return "", fmt.Errorf("error saving workbook: %w", err)
	}

	b.log.WithFields(logrus.Fields{"path": outPath, "branch_id": branchID}).
		Info("BOT workbook built")
	return outPath, nil
}

func (b *ExcelBuilder) monthQuery(branchID uint, start, end time.Time) *gorm.DB {
	return b.db.
		Where("branch_id = ? AND transaction_date >= ? AND transaction_date < ?", branchID, start, end).
		Order("transaction_date ASC, id ASC")
}

func (b *ExcelBuilder) writeSheet(f *excelize.File, sheet string, rows []models.BOTRow, headerStyle, moneyStyle int) error {
	for col, header := range botHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("error writing header: %w", err)
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(botHeaders), 1)
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("error styling header: %w", err)
	}

	for i, row := range rows {
		r := i + 2
		values := []interface{}{
			row.TransactionDate.Format("2006-01-02"),
			row.TransactionID,
			row.CustomerID,
			row.CustomerName,
			row.CustomerCountry,
			row.CurrencyCode,
			row.ForeignAmount.InexactFloat64(),
			row.LocalAmount.InexactFloat64(),
			row.ExchangeRate.InexactFloat64(),
			row.USDEquivalent.InexactFloat64(),
			row.UseFCD,
			row.IsReported,
			row.Remarks,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, r)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("error writing row: %w", err)
			}
		}
		// Monetary columns G:J carry the 0.00 format.
		from, _ := excelize.CoordinatesToCellName(7, r)
		to, _ := excelize.CoordinatesToCellName(10, r)
		if err := f.SetCellStyle(sheet, from, to, moneyStyle); err != nil {
			return fmt.Errorf("error styling row: %w", err)
		}
	}
	return nil
}

// EnsureMonthly returns the workbook path, building it only when absent.
func (b *ExcelBuilder) EnsureMonthly(branchID uint, year int, month time.Month) (string, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.Local)
	outPath := filepath.Join(b.registry.MonthDir(start), ExcelFilename(year, month))
	if _, err := os.Stat(outPath); err == nil {
		return outPath, nil
	}
	return b.Build(branchID, year, month)
}

func buyRows(rows []models.BOTBuyFX) []models.BOTRow {
	out := make([]models.BOTRow, len(rows))
	for i := range rows {
		out[i] = rows[i].BOTRow
	}
	return out
}

func sellRows(rows []models.BOTSellFX) []models.BOTRow {
	out := make([]models.BOTRow, len(rows))
	for i := range rows {
		out[i] = rows[i].BOTRow
	}
	return out
}

func fcdRows(rows []models.BOTFCD) []models.BOTRow {
	out := make([]models.BOTRow, len(rows))
	for i := range rows {
		out[i] = rows[i].BOTRow
	}
	return out
}

func providerRows(rows []models.BOTProvider) []models.BOTRow {
	out := make([]models.BOTRow, len(rows))
	for i := range rows {
		out[i] = rows[i].BOTRow
	}
	return out
}
