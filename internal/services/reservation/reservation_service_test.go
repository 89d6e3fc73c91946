package reservation

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/siamfx/backoffice/internal/database"
	"github.com/siamfx/backoffice/internal/models"
	"github.com/siamfx/backoffice/internal/services/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestService(t *testing.T) (*gorm.DB, *Service) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	require.NoError(t, db.Create(&models.Branch{
		Code: "BKK01", Name: "Bangkok Central", BaseCurrencyID: 1,
		InstitutionCode: "007", BranchCode: "001",
	}).Error)

	return db, NewService(db, report.NewRegistry(db, t.TempDir()))
}

func createPending(t *testing.T, svc *Service) *models.Reservation {
	t.Helper()
	created, err := svc.Create(CreateInput{
		ReportType:   models.ReportTypeAMLO101,
		CustomerName: "Somchai J",
		CustomerID:   "TH1234567",
		BranchID:     1,
		CurrencyID:   2,
		Direction:    models.DirectionBuy,
		Amount:       decimal.NewFromInt(100000),
		LocalAmount:  decimal.NewFromInt(3400000),
		Rate:         decimal.NewFromInt(34),
		TriggerType:  "manual",
		OperatorID:   42,
	})
	require.NoError(t, err)
	return created
}

func TestCreateAllocatesReportNumber(t *testing.T) {
	_, svc := newTestService(t)

	first := createPending(t, svc)
	second := createPending(t, svc)

	prefix := fmt.Sprintf("007-001-%02d-", time.Now().Year()%100)
	assert.True(t, strings.HasPrefix(first.ReservationNo, prefix), first.ReservationNo)
	assert.NotEqual(t, first.ReservationNo, second.ReservationNo)
	assert.Equal(t, models.ReservationStatusPending, first.Status)
	assert.NotNil(t, first.FormData)
}

func TestAuditApproveAndReject(t *testing.T) {
	_, svc := newTestService(t)

	approved := createPending(t, svc)
	res, err := svc.Audit(approved.ID, 1, 7, ActionApprove, "checked ID", "")
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusApproved, res.Status)
	require.NotNil(t, res.AuditorID)
	assert.Equal(t, uint(7), *res.AuditorID)
	assert.NotNil(t, res.AuditTime)
	assert.Equal(t, "checked ID", res.AuditRemarks)

	rejected := createPending(t, svc)
	res, err = svc.Audit(rejected.ID, 1, 7, ActionReject, "", "suspicious pattern")
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusRejected, res.Status)
	assert.Equal(t, "suspicious pattern", res.RejectionReason)

	// Rejected is terminal for the audit action.
	_, err = svc.Audit(rejected.ID, 1, 7, ActionApprove, "", "")
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestReverseAuditOnlyFromApproved(t *testing.T) {
	_, svc := newTestService(t)

	res := createPending(t, svc)
	_, err := svc.ReverseAudit(res.ID, 1)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	_, err = svc.Audit(res.ID, 1, 7, ActionApprove, "ok", "")
	require.NoError(t, err)

	back, err := svc.ReverseAudit(res.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusPending, back.Status)
	assert.Nil(t, back.AuditTime)
	assert.Contains(t, back.AuditRemarks, "reverse-audited")
}

func TestCompleteLinksTransaction(t *testing.T) {
	_, svc := newTestService(t)

	res := createPending(t, svc)
	_, err := svc.Complete(res.ID, 1, 555)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	_, err = svc.Audit(res.ID, 1, 7, ActionApprove, "", "")
	require.NoError(t, err)

	completed, err := svc.Complete(res.ID, 1, 555)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusCompleted, completed.Status)
	require.NotNil(t, completed.LinkedTxID)
	assert.Equal(t, uint(555), *completed.LinkedTxID)

	// Completed cannot be reverse-audited.
	_, err = svc.ReverseAudit(res.ID, 1)
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestBranchScoping(t *testing.T) {
	_, svc := newTestService(t)

	res := createPending(t, svc)
	_, err := svc.Get(res.ID, 2)
	assert.ErrorIs(t, err, ErrReservationNotFound)

	views, total, err := svc.List(ListFilter{BranchID: 2})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, views)
}

func TestListOverdueDerivation(t *testing.T) {
	db, svc := newTestService(t)

	fresh := createPending(t, svc)
	stale := createPending(t, svc)
	require.NoError(t, db.Model(&models.Reservation{}).
		Where("id = ?", stale.ID).
		Update("created_at", time.Now().Add(-25*time.Hour)).Error)

	views, total, err := svc.List(ListFilter{BranchID: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)

	byID := map[uint]View{}
	for _, v := range views {
		byID[v.ID] = v
	}
	assert.False(t, byID[fresh.ID].Overdue)
	assert.True(t, byID[stale.ID].Overdue)
}

func TestListFilters(t *testing.T) {
	_, svc := newTestService(t)

	res := createPending(t, svc)
	_, err := svc.Audit(res.ID, 1, 7, ActionApprove, "", "")
	require.NoError(t, err)
	createPending(t, svc)

	views, total, err := svc.List(ListFilter{
		BranchID: 1,
		Status:   models.ReservationStatusApproved,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, views, 1)
	assert.Equal(t, res.ID, views[0].ID)

	_, total, err = svc.List(ListFilter{BranchID: 1, CustomerID: "nobody"})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestSaveSignaturesPerSlot(t *testing.T) {
	_, svc := newTestService(t)
	res := createPending(t, svc)

	sig := base64.StdEncoding.EncodeToString([]byte("png-bytes"))
	saved, err := svc.SaveSignatures(res.ID, 1, map[models.SignatureType]string{
		models.SignatureReporter: sig,
		models.SignatureCustomer: sig,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ReporterSignature)
	assert.NotNil(t, saved.ReporterSignedAt)
	assert.NotEmpty(t, saved.CustomerSignature)
	assert.Empty(t, saved.AuditorSignature)
	assert.Nil(t, saved.AuditorSignedAt)

	// Overwriting one slot leaves the others alone.
	other := base64.StdEncoding.EncodeToString([]byte("new-png"))
	saved, err = svc.SaveSignatures(res.ID, 1, map[models.SignatureType]string{
		models.SignatureCustomer: other,
	})
	require.NoError(t, err)
	assert.Equal(t, sig, saved.ReporterSignature)
	assert.Equal(t, other, saved.CustomerSignature)

	require.NoError(t, svc.DeleteSignature(res.ID, 1, models.SignatureCustomer))
	got, err := svc.Get(res.ID, 1)
	require.NoError(t, err)
	assert.Empty(t, got.CustomerSignature)
	assert.Nil(t, got.CustomerSignedAt)
	assert.Equal(t, sig, got.ReporterSignature)
}

func TestSaveSignatureSizeLimit(t *testing.T) {
	_, svc := newTestService(t)
	res := createPending(t, svc)

	huge := base64.StdEncoding.EncodeToString(make([]byte, maxSignatureBytes+1))
	_, err := svc.SaveSignatures(res.ID, 1, map[models.SignatureType]string{
		models.SignatureReporter: huge,
	})
	assert.ErrorIs(t, err, ErrSignatureTooLarge)
}

func TestUpdateFormData(t *testing.T) {
	_, svc := newTestService(t)
	res := createPending(t, svc)

	updated, err := svc.UpdateFormData(res.ID, 1, models.JSON{"customer_name": "Somchai"})
	require.NoError(t, err)
	assert.Equal(t, "Somchai", updated.FormData["customer_name"])
}

func TestMarkReportedRequiresArtifact(t *testing.T) {
	db, svc := newTestService(t)

	res := createPending(t, svc)
	_, err := svc.Audit(res.ID, 1, 7, ActionApprove, "", "")
	require.NoError(t, err)
	_, err = svc.Complete(res.ID, 1, 1)
	require.NoError(t, err)

	// No PDF artifact yet: refused.
	updated, errs := svc.MarkReported([]uint{res.ID}, 1)
	assert.Zero(t, updated)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "PDF missing")

	// Register an artifact that exists on disk.
	pdfPath := filepath.Join(t.TempDir(), "AMLO-1-01_R007-001-26-000001.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.7"), 0o644))
	require.NoError(t, db.Create(&models.AMLOReport{
		ReportNo:      res.ReservationNo,
		ReportType:    res.ReportType,
		ReservationID: res.ID,
		PDFFilename:   filepath.Base(pdfPath),
		PDFPath:       pdfPath,
	}).Error)

	updated, errs = svc.MarkReported([]uint{res.ID}, 1)
	assert.Equal(t, 1, updated)
	assert.Empty(t, errs)

	got, err := svc.Get(res.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusReported, got.Status)

	// Reported is immutable.
	_, err = svc.SaveSignatures(res.ID, 1, map[models.SignatureType]string{
		models.SignatureReporter: base64.StdEncoding.EncodeToString([]byte("x")),
	})
	assert.ErrorIs(t, err, ErrIllegalTransition)
	_, err = svc.UpdateFormData(res.ID, 1, models.JSON{"a": 1})
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestMarkReportedPartialFailure(t *testing.T) {
	_, svc := newTestService(t)

	pending := createPending(t, svc)
	updated, errs := svc.MarkReported([]uint{pending.ID, 9999}, 1)
	assert.Zero(t, updated)
	assert.Len(t, errs, 2)
}

func TestCeilingGuardEnforcesApprovedAmount(t *testing.T) {
	db, svc := newTestService(t)
	guard := NewGuard(db)

	res := createPending(t, svc)
	_, err := svc.Audit(res.ID, 1, 7, ActionApprove, "", "")
	require.NoError(t, err)

	over := &models.ExchangeTransaction{
		BranchID:    1,
		CurrencyID:  2,
		CustomerID:  "TH1234567",
		Direction:   models.DirectionBuy,
		LocalAmount: decimal.NewFromInt(-3500000),
	}
	require.NoError(t, db.Create(over).Error)

	err = guard.EnforceAndComplete(db, over)
	var exceeded *AmountExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.True(t, exceeded.ApprovedAmount.Equal(decimal.NewFromInt(3400000)))
	assert.True(t, exceeded.ActualAmount.Equal(decimal.NewFromInt(3500000)))

	// The reservation is untouched so the teller can retry at the ceiling.
	got, err := svc.Get(res.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusApproved, got.Status)

	within := &models.ExchangeTransaction{
		BranchID:    1,
		CurrencyID:  2,
		CustomerID:  "TH1234567",
		Direction:   models.DirectionBuy,
		LocalAmount: decimal.NewFromInt(-3400000),
	}
	require.NoError(t, db.Create(within).Error)
	require.NoError(t, guard.EnforceAndComplete(db, within))

	got, err = svc.Get(res.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusCompleted, got.Status)
	require.NotNil(t, got.LinkedTxID)
	assert.Equal(t, within.ID, *got.LinkedTxID)
}

func TestCeilingGuardIgnoresUnmatchedEntries(t *testing.T) {
	db, svc := newTestService(t)
	guard := NewGuard(db)

	res := createPending(t, svc)
	_, err := svc.Audit(res.ID, 1, 7, ActionApprove, "", "")
	require.NoError(t, err)

	// Different customer: no matching reservation, no enforcement.
	entry := &models.ExchangeTransaction{
		BranchID:    1,
		CurrencyID:  2,
		CustomerID:  "OTHER",
		Direction:   models.DirectionBuy,
		LocalAmount: decimal.NewFromInt(-99999999),
	}
	require.NoError(t, db.Create(entry).Error)
	assert.NoError(t, guard.EnforceAndComplete(db, entry))
}

func TestReopenForCancellation(t *testing.T) {
	db, svc := newTestService(t)

	res := createPending(t, svc)
	_, err := svc.Audit(res.ID, 1, 7, ActionApprove, "", "")
	require.NoError(t, err)
	_, err = svc.Complete(res.ID, 1, 321)
	require.NoError(t, err)

	require.NoError(t, svc.ReopenForCancellation(db, 321))

	got, err := svc.Get(res.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusApproved, got.Status)
	assert.Nil(t, got.LinkedTxID)
}
