// Package reservation implements the audit lifecycle of compliance
// reservations: the store, the state machine, signatures and the
// amount-ceiling guard.
package reservation

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/siamfx/backoffice/internal/models"
	"github.com/siamfx/backoffice/internal/services/report"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Business errors surfaced with structured detail by the handlers.
var (
	ErrReservationNotFound = errors.New("reservation_not_found")
	ErrIllegalTransition   = errors.New("illegal_transition")
	ErrSignatureTooLarge   = errors.New("signature exceeds 500KB")
	ErrMissingArtifact     = errors.New("report PDF missing on disk")
)

// maxSignatureBytes bounds a decoded signature image.
const maxSignatureBytes = 500 * 1024

// AmountExceededError reports a settlement above the approved ceiling.
type AmountExceededError struct {
	ApprovedAmount decimal.Decimal `json:"approved_amount"`
	ActualAmount   decimal.Decimal `json:"actual_amount"`
}

func (e *AmountExceededError) Error() string {
	return fmt.Sprintf("amount_exceeded: approved %s, actual %s",
		e.ApprovedAmount.String(), e.ActualAmount.String())
}

// Service is the reservation store and audit workflow.
type Service struct {
	db       *gorm.DB
	registry *report.Registry
	log      *logrus.Entry
}

// NewService creates a reservation service.
func NewService(db *gorm.DB, registry *report.Registry) *Service {
	return &Service{
		db:       db,
		registry: registry,
		log:      logrus.WithField("component", "reservation"),
	}
}

// CreateInput is the direct-creation payload (reservation ahead of the
// transaction, audited before settlement).
type CreateInput struct {
	ReportType      models.ReportType
	CustomerName    string
	CustomerID      string
	CustomerCountry string
	BranchID        uint
	CurrencyID      uint
	Direction       models.Direction
	Amount          decimal.Decimal
	LocalAmount     decimal.Decimal
	Rate            decimal.Decimal
	TriggerType     string
	FormData        models.JSON
	OperatorID      uint
}

// Create persists a pending reservation and allocates its report number.
func (s *Service) Create(input CreateInput) (*models.Reservation, error) {
	var branch models.Branch
	if err := s.db.First(&branch, input.BranchID).Error; err != nil {
		return nil, fmt.Errorf("error loading branch: %w", err)
	}

	var reservation models.Reservation
	err := s.db.Transaction(func(tx *gorm.DB) error {
		reportNo, err := s.registry.AllocateWithTx(tx, branch.InstitutionCode, branch.BranchCode, time.Now().Year())
		if err != nil {
			return err
		}
		formData := input.FormData
		if formData == nil {
			formData = models.JSON{}
		}
		reservation = models.Reservation{
			ReservationNo:   reportNo,
			ReportType:      input.ReportType,
			Status:          models.ReservationStatusPending,
			CustomerName:    input.CustomerName,
			CustomerID:      input.CustomerID,
			CustomerCountry: input.CustomerCountry,
			BranchID:        input.BranchID,
			CurrencyID:      input.CurrencyID,
			Direction:       input.Direction,
			Amount:          input.Amount,
			LocalAmount:     input.LocalAmount,
			Rate:            input.Rate,
			TriggerType:     input.TriggerType,
			FormData:        formData,
			OperatorID:      input.OperatorID,
		}
		return tx.Create(&reservation).Error
	})
	if err != nil {
		return nil, fmt.Errorf("error creating reservation: %w", err)
	}
	return &reservation, nil
}

// Get loads a reservation scoped to the caller's branch.
func (s *Service) Get(id, branchID uint) (*models.Reservation, error) {
	var reservation models.Reservation
	err := s.db.Where("id = ? AND branch_id = ?", id, branchID).First(&reservation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error loading reservation: %w", err)
	}
	return &reservation, nil
}

// ListFilter narrows the reservation list. BranchID is mandatory; every
// multi-row query is branch scoped.
type ListFilter struct {
	BranchID   uint
	CustomerID string
	Status     models.ReservationStatus
	ReportType models.ReportType
	StartDate  *time.Time
	EndDate    *time.Time
	Page       int
	PageSize   int
}

// View is a list row with the derived overdue flag.
type View struct {
	models.Reservation
	Overdue bool `json:"overdue"`
}

// List pages reservations with the overdue derivation on every row.
func (s *Service) List(filter ListFilter) ([]View, int64, error) {
	query := s.db.Model(&models.Reservation{}).Where("branch_id = ?", filter.BranchID)
	if filter.CustomerID != "" {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.ReportType != "" {
		query = query.Where("report_type = ?", filter.ReportType)
	}
	if filter.StartDate != nil {
		query = query.Where("created_at >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		query = query.Where("created_at <= ?", *filter.EndDate)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("error counting reservations: %w", err)
	}

	page, pageSize := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	var rows []models.Reservation
	err := query.
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("error listing reservations: %w", err)
	}

	now := time.Now()
	views := make([]View, 0, len(rows))
	for _, r := range rows {
		views = append(views, View{Reservation: r, Overdue: r.Overdue(now)})
	}
	return views, total, nil
}

// UpdateFormData replaces the reservation's form payload. Reported
// reservations are immutable.
func (s *Service) UpdateFormData(id, branchID uint, formData models.JSON) (*models.Reservation, error) {
	reservation, err := s.Get(id, branchID)
	if err != nil {
		return nil, err
	}
	if reservation.Status == models.ReservationStatusReported {
		return nil, ErrIllegalTransition
	}
	if formData == nil {
		formData = models.JSON{}
	}
	if err := s.db.Model(reservation).Update("form_data", formData).Error; err != nil {
		return nil, fmt.Errorf("error updating form data: %w", err)
	}
	return s.Get(id, branchID)
}

// SaveSignatures stores any subset of the three signature slots, each
// overwriting independently with its own timestamp. Reported reservations
// are immutable.
func (s *Service) SaveSignatures(id, branchID uint, signatures map[models.SignatureType]string) (*models.Reservation, error) {
	reservation, err := s.Get(id, branchID)
	if err != nil {
		return nil, err
	}
	if reservation.Status == models.ReservationStatusReported {
		return nil, ErrIllegalTransition
	}

	now := time.Now()
	updates := map[string]interface{}{}
	for sigType, payload := range signatures {
		if err := checkSignatureSize(payload); err != nil {
			return nil, err
		}
		switch sigType {
		case models.SignatureReporter:
			updates["reporter_signature"] = payload
			updates["reporter_signed_at"] = now
		case models.SignatureCustomer:
			updates["customer_signature"] = payload
			updates["customer_signed_at"] = now
		case models.SignatureAuditor:
			updates["auditor_signature"] = payload
			updates["auditor_signed_at"] = now
		default:
			return nil, fmt.Errorf("unknown signature type %q", sigType)
		}
	}
	if len(updates) == 0 {
		return reservation, nil
	}

	if err := s.db.Model(reservation).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("error saving signatures: %w", err)
	}
	return s.Get(id, branchID)
}

// DeleteSignature clears one signature slot.
func (s *Service) DeleteSignature(id, branchID uint, sigType models.SignatureType) error {
	reservation, err := s.Get(id, branchID)
	if err != nil {
		return err
	}
	if reservation.Status == models.ReservationStatusReported {
		return ErrIllegalTransition
	}

	var updates map[string]interface{}
	switch sigType {
	case models.SignatureReporter:
		updates = map[string]interface{}{"reporter_signature": "", "reporter_signed_at": nil}
	case models.SignatureCustomer:
		updates = map[string]interface{}{"customer_signature": "", "customer_signed_at": nil}
	case models.SignatureAuditor:
		updates = map[string]interface{}{"auditor_signature": "", "auditor_signed_at": nil}
	default:
		return fmt.Errorf("unknown signature type %q", sigType)
	}
	if err := s.db.Model(reservation).Updates(updates).Error; err != nil {
		return fmt.Errorf("error deleting signature: %w", err)
	}
	return nil
}

// MarkReported flips completed reservations to the terminal reported state.
// For AMLO types the PDF artifact must exist on disk.
func (s *Service) MarkReported(ids []uint, branchID uint) (int, []string) {
	var updated int
	var errs []string
	for _, id := range ids {
		if err := s.markOneReported(id, branchID); err != nil {
			errs = append(errs, fmt.Sprintf("reservation %d: %v", id, err))
			continue
		}
		updated++
	}
	return updated, errs
}

func (s *Service) markOneReported(id, branchID uint) error {
	reservation, err := s.Get(id, branchID)
	if err != nil {
		return err
	}
	if reservation.Status != models.ReservationStatusCompleted {
		return ErrIllegalTransition
	}

	if reservation.ReportType.IsAMLO() {
		var artifact models.AMLOReport
		err := s.db.Where("reservation_id = ?", reservation.ID).First(&artifact).Error
		if err != nil {
			return ErrMissingArtifact
		}
		if _, statErr := os.Stat(artifact.PDFPath); statErr != nil {
			return ErrMissingArtifact
		}
	}

	return s.db.Model(reservation).
		Update("status", models.ReservationStatusReported).Error
}

func checkSignatureSize(payload string) error {
	decoded := base64.StdEncoding.DecodedLen(len(payload))
	if decoded > maxSignatureBytes {
		return ErrSignatureTooLarge
	}
	return nil
}
