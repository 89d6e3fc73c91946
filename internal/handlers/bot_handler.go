package handlers

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/siamfx/backoffice/internal/events"
	"github.com/siamfx/backoffice/internal/models"
	"github.com/siamfx/backoffice/internal/rules"
	"github.com/siamfx/backoffice/internal/services/report"
	"gorm.io/gorm"
)

// BOTHandler handles BOT trigger checks, T+1 browsing and monthly export
type BOTHandler struct {
	resolver *rules.Resolver
	stats    *rules.StatsService
	bus      *events.Bus
	query    *report.QueryService
	excel    *report.ExcelBuilder
}

// NewBOTHandler creates a new BOT handler
func NewBOTHandler(db *gorm.DB, bus *events.Bus, query *report.QueryService, excel *report.ExcelBuilder) *BOTHandler {
	return &BOTHandler{
		resolver: rules.NewResolver(db),
		stats:    rules.NewStatsService(db),
		bus:      bus,
		query:    query,
		excel:    excel,
	}
}

// CheckTrigger pre-evaluates the rule set against a prospective transaction
// so the counter can warn before settlement.
func (h *BOTHandler) CheckTrigger(c *gin.Context) {
	var input struct {
		CurrencyCode       string           `json:"currency_code" binding:"required"`
		Amount             decimal.Decimal  `json:"amount"`
		LocalAmount        decimal.Decimal  `json:"local_amount"`
		VerificationAmount decimal.Decimal  `json:"verification_amount"`
		Direction          models.Direction `json:"direction" binding:"required"`
		UseFCD             bool             `json:"use_fcd"`
		CustomerID         string           `json:"customer_id"`
		BranchID           *uint            `json:"branch_id"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	branchID := c.GetUint("branch_id")
	if input.BranchID != nil {
		branchID = *input.BranchID
	}
	verification := input.VerificationAmount
	if verification.IsZero() {
		verification = h.bus.USDEquivalent(input.CurrencyCode, input.Amount, input.LocalAmount)
	}
	data := map[string]interface{}{
		"foreign_amount":      input.Amount.Abs(),
		"local_amount":        input.LocalAmount.Abs(),
		"direction":           string(input.Direction),
		"currency_code":       input.CurrencyCode,
		"use_fcd":             input.UseFCD,
		"customer_id":         input.CustomerID,
		"verification_amount": verification,
	}
	if input.CustomerID != "" {
		data = h.stats.EnrichData(data, input.CustomerID)
	}

	botType := models.ReportTypeBOTBuyFX
	if input.Direction == models.DirectionSell {
		botType = models.ReportTypeBOTSellFX
	}

	botTrigger, err := h.resolver.Resolve(botType, data, branchID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	fcdFlag := false
	var fcdTrigger *rules.TriggerResult
	if input.UseFCD {
		fcdTrigger, err = h.resolver.Resolve(models.ReportTypeBOTFCD, data, branchID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		fcdFlag = fcdTrigger.Triggered
	}

	amloTriggers := map[string]*rules.TriggerResult{}
	for _, reportType := range models.AMLOReportTypes {
		trigger, err := h.resolver.Resolve(reportType, data, branchID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		if trigger.Triggered {
			amloTriggers[string(reportType)] = trigger
		}
	}

	// The top-level message localizes the strongest match for the counter
	// display.
	message := ""
	var topRule *models.TriggerRule
	if botTrigger.Triggered {
		topRule = botTrigger.HighestPriorityRule
	}
	if topRule == nil && fcdFlag {
		topRule = fcdTrigger.HighestPriorityRule
	}
	if topRule == nil {
		for _, trigger := range amloTriggers {
			topRule = trigger.HighestPriorityRule
			break
		}
	}
	if topRule != nil {
		message = topRule.Message(c.GetString("language"))
	}

	resp := gin.H{
		"success":       true,
		"triggered":     botTrigger.Triggered || fcdFlag || len(amloTriggers) > 0,
		"message":       message,
		"bot_flag":      botTrigger.Triggered,
		"fcd_flag":      fcdFlag,
		"amlo_triggers": amloTriggers,
	}
	if botTrigger.Triggered {
		resp["bot_report_type"] = botType
		resp["bot_trigger"] = botTrigger
	}
	if fcdFlag {
		resp["fcd_report_type"] = models.ReportTypeBOTFCD
		resp["fcd_trigger"] = fcdTrigger
	}
	c.JSON(http.StatusOK, resp)
}

// T1BuyFX browses purchase rows in the next-day reporting window.
func (h *BOTHandler) T1BuyFX(c *gin.Context) {
	page, err := h.query.T1BuyFX(c.GetUint("branch_id"), time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "rows": page.Rows, "totals": page.Totals})
}

// T1SellFX browses sale rows in the next-day reporting window.
func (h *BOTHandler) T1SellFX(c *gin.Context) {
	page, err := h.query.T1SellFX(c.GetUint("branch_id"), time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "rows": page.Rows, "totals": page.Totals})
}

// ExportMonthly builds (or rebuilds) the monthly workbook and streams it.
func (h *BOTHandler) ExportMonthly(c *gin.Context) {
	var input struct {
		Year  int `json:"year" binding:"required"`
		Month int `json:"month" binding:"required"`
		// Buddhist marks Year as a Buddhist-calendar year.
		Buddhist bool `json:"buddhist"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	if input.Month < 1 || input.Month > 12 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "month must be 1-12"})
		return
	}

	branchID := c.GetUint("branch_id")
	var (
		path string
		err  error
	)
	if input.Buddhist {
		path, err = h.excel.BuildBuddhist(branchID, input.Year, time.Month(input.Month))
	} else {
		path, err = h.excel.Build(branchID, input.Year, time.Month(input.Month))
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "path": path})
}

// DownloadMonthly serves the monthly workbook, building it first if it does
// not exist yet on disk.
func (h *BOTHandler) DownloadMonthly(c *gin.Context) {
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid year"})
		return
	}
	month, err := strconv.Atoi(c.Query("month"))
	if err != nil || month < 1 || month > 12 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid month"})
		return
	}

	path, err := h.excel.EnsureMonthly(c.GetUint("branch_id"), year, time.Month(month))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}

// MarkReported flags BOT rows of one table as reported.
func (h *BOTHandler) MarkReported(c *gin.Context) {
	var input struct {
		Table string `json:"table" binding:"required"`
		IDs   []uint `json:"ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	updated, err := h.query.MarkReported(input.Table, c.GetUint("branch_id"), c.GetUint("user_id"), input.IDs)
	if err != nil {
		if errors.Is(err, report.ErrUnknownBOTTable) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown BOT table"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "updated": updated})
}
