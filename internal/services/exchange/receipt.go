package exchange

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/siamfx/backoffice/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// nextTransactionNo issues the next per-branch transaction number inside the
// caller's transaction. The sequence row is incremented atomically, same
// locking shape as report serials.
func nextTransactionNo(tx *gorm.DB, branchID uint, branchCode string) (string, error) {
	seed := models.TransactionSequence{BranchID: branchID}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return "", fmt.Errorf("error seeding transaction sequence: %w", err)
	}

	res := tx.Model(&models.TransactionSequence{}).
		Where("branch_id = ?", branchID).
		Update("serial", gorm.Expr("serial + 1"))
	if res.Error != nil {
		return "", fmt.Errorf("error incrementing transaction sequence: %w", res.Error)
	}

	var row models.TransactionSequence
	if err := tx.Where("branch_id = ?", branchID).First(&row).Error; err != nil {
		return "", fmt.Errorf("error reading transaction sequence: %w", err)
	}

	return fmt.Sprintf("TXN-%s-%08d", branchCode, row.Serial), nil
}

// ReceiptPath names the counter receipt file for a transaction. Receipt
// rendering itself is handled by the POS layer; only the naming lives here.
func ReceiptPath(receiptDir string, t time.Time, transactionNo string) string {
	return filepath.Join(
		receiptDir,
		fmt.Sprintf("%04d", t.Year()),
		fmt.Sprintf("%02d", int(t.Month())),
		fmt.Sprintf("receipt_%s.pdf", transactionNo),
	)
}
