package report

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/siamfx/backoffice/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Registry allocates report numbers and owns the artifact directory layout.
// Serials are monotonic and gap-free per (institution, branch, year); nothing
// else may allocate them.
type Registry struct {
	db                 *gorm.DB
	artifactDir        string
	defaultInstitution string
}

// NewRegistry creates a report registry writing artifacts under artifactDir.
func NewRegistry(db *gorm.DB, artifactDir string) *Registry {
	return &Registry{db: db, artifactDir: artifactDir}
}

// SetDefaultInstitution configures the institution code used when a branch
// record carries none.
func (r *Registry) SetDefaultInstitution(code string) {
	r.defaultInstitution = code
}

// AllocateWithTx issues the next report number inside the caller's
// transaction. The serial row is incremented atomically; on MySQL the UPDATE
// takes the row lock that serializes concurrent allocators.
func (r *Registry) AllocateWithTx(tx *gorm.DB, institutionCode, branchCode string, year int) (string, error) {
	if institutionCode == "" {
		institutionCode = r.defaultInstitution
	}
	seed := models.ReportSerial{
		InstitutionCode: institutionCode,
		BranchCode:      branchCode,
		Year:            year,
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return "", fmt.Errorf("error seeding report serial row: %w", err)
	}

	res := tx.Model(&models.ReportSerial{}).
		Where("institution_code = ? AND branch_code = ? AND year = ?", institutionCode, branchCode, year).
		Update("serial", gorm.Expr("serial + 1"))
	if res.Error != nil {
		return "", fmt.Errorf("error incrementing report serial: %w", res.Error)
	}

	var row models.ReportSerial
	if err := tx.
		Where("institution_code = ? AND branch_code = ? AND year = ?", institutionCode, branchCode, year).
		First(&row).Error; err != nil {
		return "", fmt.Errorf("error reading report serial: %w", err)
	}

	return FormatReportNo(institutionCode, branchCode, year, row.Serial), nil
}

// Allocate issues the next report number in its own transaction.
func (r *Registry) Allocate(institutionCode, branchCode string, year int) (string, error) {
	var no string
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		no, txErr = r.AllocateWithTx(tx, institutionCode, branchCode, year)
		return txErr
	})
	return no, err
}

// FormatReportNo renders the wire format NNN-BBB-YY-SSSSSS.
func FormatReportNo(institutionCode, branchCode string, year, serial int) string {
	return fmt.Sprintf("%s-%s-%02d-%06d",
		padCode(institutionCode), padCode(branchCode), year%100, serial)
}

func padCode(code string) string {
	if n, err := strconv.Atoi(code); err == nil {
		return fmt.Sprintf("%03d", n)
	}
	for len(code) < 3 {
		code = "0" + code
	}
	return code
}

// MonthDir returns the artifact directory for a month: <artifactDir>/YYYY/MM.
func (r *Registry) MonthDir(t time.Time) string {
	return filepath.Join(r.artifactDir, fmt.Sprintf("%04d", t.Year()), fmt.Sprintf("%02d", int(t.Month())))
}

// PDFFilename renders the artifact name <report_format>_R<report_no>.pdf.
func PDFFilename(reportType models.ReportType, reportNo string) string {
	return fmt.Sprintf("%s_R%s.pdf", reportType, reportNo)
}

// ExcelFilename renders the monthly workbook name BOT_Report_YYYYMM.xlsx.
func ExcelFilename(year int, month time.Month) string {
	return fmt.Sprintf("BOT_Report_%04d%02d.xlsx", year, int(month))
}
