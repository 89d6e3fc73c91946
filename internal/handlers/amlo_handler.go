package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/siamfx/backoffice/internal/catalog"
	"github.com/siamfx/backoffice/internal/models"
	"github.com/siamfx/backoffice/internal/services/cancellation"
	"github.com/siamfx/backoffice/internal/services/report"
	"github.com/siamfx/backoffice/internal/services/reservation"
)

// AMLOHandler handles reservation lifecycle, signatures and PDF requests
type AMLOHandler struct {
	reservations *reservation.Service
	cancellation *cancellation.Service
	validator    *catalog.Validator
	catalog      *catalog.Catalog
	filler       *report.PDFFiller
}

// NewAMLOHandler creates a new AMLO handler
func NewAMLOHandler(reservations *reservation.Service, cancel *cancellation.Service, cat *catalog.Catalog, filler *report.PDFFiller) *AMLOHandler {
	return &AMLOHandler{
		reservations: reservations,
		cancellation: cancel,
		validator:    catalog.NewValidator(cat),
		catalog:      cat,
		filler:       filler,
	}
}

func (h *AMLOHandler) writeReservationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, reservation.ErrReservationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "reservation not found"})
	case errors.Is(err, reservation.ErrIllegalTransition):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": "illegal_transition"})
	case errors.Is(err, reservation.ErrSignatureTooLarge):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "signature exceeds 500KB"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
	}
}

// CreateReservation creates a reservation ahead of the transaction.
func (h *AMLOHandler) CreateReservation(c *gin.Context) {
	var input struct {
		ReportType      models.ReportType `json:"report_type" binding:"required"`
		CustomerName    string            `json:"customer_name" binding:"required"`
		CustomerID      string            `json:"customer_id" binding:"required"`
		CustomerCountry string            `json:"customer_country"`
		CurrencyID      uint              `json:"currency_id"`
		Direction       models.Direction  `json:"direction"`
		Amount          decimal.Decimal   `json:"amount"`
		LocalAmount     decimal.Decimal   `json:"local_amount"`
		Rate            decimal.Decimal   `json:"rate"`
		TriggerType     string            `json:"trigger_type"`
		FormData        models.JSON       `json:"form_data"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	created, err := h.reservations.Create(reservation.CreateInput{
		ReportType:      input.ReportType,
		CustomerName:    input.CustomerName,
		CustomerID:      input.CustomerID,
		CustomerCountry: input.CustomerCountry,
		BranchID:        c.GetUint("branch_id"),
		CurrencyID:      input.CurrencyID,
		Direction:       input.Direction,
		Amount:          input.Amount,
		LocalAmount:     input.LocalAmount,
		Rate:            input.Rate,
		TriggerType:     input.TriggerType,
		FormData:        input.FormData,
		OperatorID:      c.GetUint("user_id"),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "reservation": created})
}

// ListReservations pages reservations with the derived overdue flag.
func (h *AMLOHandler) ListReservations(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	start, err := parseDateQuery(c.Query("start_date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid start_date"})
		return
	}
	end, err := parseDateQuery(c.Query("end_date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid end_date"})
		return
	}

	views, total, err := h.reservations.List(reservation.ListFilter{
		BranchID:   c.GetUint("branch_id"),
		CustomerID: c.Query("customer_id"),
		Status:     models.ReservationStatus(c.Query("status")),
		ReportType: models.ReportType(c.Query("report_type")),
		StartDate:  start,
		EndDate:    end,
		Page:       page,
		PageSize:   pageSize,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"reservations": views,
		"total":        total,
		"page":         page,
		"page_size":    pageSize,
	})
}

// GetReservation loads one reservation.
func (h *AMLOHandler) GetReservation(c *gin.Context) {
	id, err := paramID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid reservation ID"})
		return
	}

	res, err := h.reservations.Get(id, c.GetUint("branch_id"))
	if err != nil {
		h.writeReservationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "reservation": res})
}

// UpdateFormData validates and stores the report form payload.
func (h *AMLOHandler) UpdateFormData(c *gin.Context) {
	id, err := paramID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid reservation ID"})
		return
	}

	var input struct {
		FormData models.JSON `json:"form_data" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	branchID := c.GetUint("branch_id")
	res, err := h.reservations.Get(id, branchID)
	if err != nil {
		h.writeReservationError(c, err)
		return
	}

	ok, fieldErrors, err := h.validator.Validate(res.ReportType, input.FormData, c.GetString("language"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "errors": fieldErrors})
		return
	}

	updated, err := h.reservations.UpdateFormData(id, branchID, input.FormData)
	if err != nil {
		h.writeReservationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "reservation": updated})
}

// AuditReservation approves or rejects a pending reservation.
func (h *AMLOHandler) AuditReservation(c *gin.Context) {
	id, err := paramID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid reservation ID"})
		return
	}

	var input struct {
		Action          string `json:"action" binding:"required"`
		Remarks         string `json:"remarks"`
		RejectionReason string `json:"rejection_reason"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	if input.Action != reservation.ActionApprove && input.Action != reservation.ActionReject {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "action must be approve or reject"})
		return
	}

	res, err := h.reservations.Audit(id, c.GetUint("branch_id"), c.GetUint("user_id"),
		input.Action, input.Remarks, input.RejectionReason)
	if err != nil {
		h.writeReservationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "reservation": res})
}

// ReverseAudit returns an approved reservation to pending.
func (h *AMLOHandler) ReverseAudit(c *gin.Context) {
	id, err := paramID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid reservation ID"})
		return
	}

	res, err := h.reservations.ReverseAudit(id, c.GetUint("branch_id"))
	if err != nil {
		h.writeReservationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "reservation": res})
}

// CompleteReservation links an approved reservation to its settled entry.
func (h *AMLOHandler) CompleteReservation(c *gin.Context) {
	id, err := paramID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid reservation ID"})
		return
	}

	var input struct {
		LinkedTxID uint `json:"linked_tx_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	res, err := h.reservations.Complete(id, c.GetUint("branch_id"), input.LinkedTxID)
	if err != nil {
		h.writeReservationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "reservation": res})
}

// SaveSignatures stores any subset of the signature slots.
func (h *AMLOHandler) SaveSignatures(c *gin.Context) {
	id, err := paramID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid reservation ID"})
		return
	}

	var input struct {
		ReporterSignature string `json:"reporter_signature"`
		CustomerSignature string `json:"customer_signature"`
		AuditorSignature  string `json:"auditor_signature"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	signatures := map[models.SignatureType]string{}
	if input.ReporterSignature != "" {
		signatures[models.SignatureReporter] = input.ReporterSignature
	}
	if input.CustomerSignature != "" {
		signatures[models.SignatureCustomer] = input.CustomerSignature
	}
	if input.AuditorSignature != "" {
		signatures[models.SignatureAuditor] = input.AuditorSignature
	}

	res, err := h.reservations.SaveSignatures(id, c.GetUint("branch_id"), signatures)
	if err != nil {
		h.writeReservationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "reservation": res})
}

// GetSignatures returns the three signature slots with timestamps.
func (h *AMLOHandler) GetSignatures(c *gin.Context) {
	id, err := paramID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid reservation ID"})
		return
	}

	res, err := h.reservations.Get(id, c.GetUint("branch_id"))
	if err != nil {
		h.writeReservationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"reporter_signature": res.ReporterSignature,
		"reporter_signed_at": res.ReporterSignedAt,
		"customer_signature": res.CustomerSignature,
		"customer_signed_at": res.CustomerSignedAt,
		"auditor_signature":  res.AuditorSignature,
		"auditor_signed_at":  res.AuditorSignedAt,
	})
}

// DeleteSignature clears one signature slot.
func (h *AMLOHandler) DeleteSignature(c *gin.Context) {
	id, err := paramID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid reservation ID"})
		return
	}

	sigType := models.SignatureType(c.Param("type"))
	if err := h.reservations.DeleteSignature(id, c.GetUint("branch_id"), sigType); err != nil {
		h.writeReservationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GeneratePDF fills the AMLO template for a reservation. With ?cached=true a
// matching prior artifact short-circuits the fill.
func (h *AMLOHandler) GeneratePDF(c *gin.Context) {
	id, err := paramID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid reservation ID"})
		return
	}
	flatten := c.DefaultQuery("flatten", "false") == "true"
	cached := c.DefaultQuery("cached", "false") == "true"

	res, err := h.reservations.Get(id, c.GetUint("branch_id"))
	if err != nil {
		h.writeReservationError(c, err)
		return
	}
	if !res.ReportType.IsAMLO() {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "reservation has no PDF report form"})
		return
	}

	if cached {
		if artifact, ok := h.filler.Cached(res.ID, flatten); ok {
			c.JSON(http.StatusOK, gin.H{"success": true, "report": artifact, "cached": true})
			return
		}
	}

	artifact, err := h.filler.Generate(res, flatten)
	if err != nil {
		if errors.Is(err, report.ErrTemplateMissing) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "report template unavailable"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "report": artifact, "cached": false})
}

// DownloadPDF streams the generated artifact.
func (h *AMLOHandler) DownloadPDF(c *gin.Context) {
	id, err := paramID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid reservation ID"})
		return
	}

	if _, err := h.reservations.Get(id, c.GetUint("branch_id")); err != nil {
		h.writeReservationError(c, err)
		return
	}

	artifact, ok := h.filler.Cached(id, false)
	if !ok {
		if artifact, ok = h.filler.Cached(id, true); !ok {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "report not generated"})
			return
		}
	}

	c.FileAttachment(artifact.PDFPath, artifact.PDFFilename)
}

// StreamPDF generates the artifact if it is not on disk yet and streams it.
func (h *AMLOHandler) StreamPDF(c *gin.Context) {
	id, err := paramID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid reservation ID"})
		return
	}
	flatten := c.DefaultQuery("flatten", "false") == "true"

	res, err := h.reservations.Get(id, c.GetUint("branch_id"))
	if err != nil {
		h.writeReservationError(c, err)
		return
	}
	if !res.ReportType.IsAMLO() {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "reservation has no PDF report form"})
		return
	}

	artifact, ok := h.filler.Cached(res.ID, flatten)
	if !ok {
		artifact, err = h.filler.Generate(res, flatten)
		if err != nil {
			if errors.Is(err, report.ErrTemplateMissing) {
				c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "report template unavailable"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
	}

	c.FileAttachment(artifact.PDFPath, artifact.PDFFilename)
}

// MarkReported flips completed reservations to reported.
func (h *AMLOHandler) MarkReported(c *gin.Context) {
	var input struct {
		IDs []uint `json:"ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	updated, errs := h.reservations.MarkReported(input.IDs, c.GetUint("branch_id"))
	c.JSON(http.StatusOK, gin.H{
		"success": len(errs) == 0,
		"updated": updated,
		"errors":  errs,
	})
}

// CancelGroup reverses a business group and reopens its reservations.
func (h *AMLOHandler) CancelGroup(c *gin.Context) {
	groupID := c.Param("group_id")
	if groupID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "business group ID required"})
		return
	}

	mirrors, err := h.cancellation.CancelBusinessGroup(groupID, c.GetUint("branch_id"), c.GetUint("user_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "transactions": mirrors})
}

// GetFields returns the localized field catalog of a report type.
func (h *AMLOHandler) GetFields(c *gin.Context) {
	reportType := models.ReportType(c.Param("report_type"))
	grouped := c.DefaultQuery("grouped", "false") == "true"
	language := c.GetString("language")

	if grouped {
		groups, err := h.catalog.Groups(reportType, language)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "groups": groups})
		return
	}

	fields, err := h.catalog.Fields(reportType, language)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "fields": fields})
}

func paramID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	return uint(id), err
}
