package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/siamfx/backoffice/internal/services/exchange"
	"github.com/siamfx/backoffice/internal/services/ledger"
	"github.com/siamfx/backoffice/internal/services/reservation"
)

// ExchangeHandler handles counter settlement and balance requests
type ExchangeHandler struct {
	splitter   *exchange.SplitterService
	ledger     *ledger.LedgerService
	receiptDir string
}

// NewExchangeHandler creates a new exchange handler
func NewExchangeHandler(splitter *exchange.SplitterService, ledgerSvc *ledger.LedgerService, receiptDir string) *ExchangeHandler {
	return &ExchangeHandler{
		splitter:   splitter,
		ledger:     ledgerSvc,
		receiptDir: receiptDir,
	}
}

// settleRequest accepts both the multi-currency combinations shape and the
// flat single-currency shape.
type settleRequest struct {
	exchange.SplitRequest
	Amount   decimal.Decimal `json:"amount"`
	Rate     decimal.Decimal `json:"rate"`
	BuyRate  decimal.Decimal `json:"buy_rate"`
	SellRate decimal.Decimal `json:"sell_rate"`
	Reserve  bool            `json:"reserve"`
}

// CreateTransaction settles (or reserves) a counter exchange.
func (h *ExchangeHandler) CreateTransaction(c *gin.Context) {
	var input settleRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	req := input.SplitRequest
	req.BranchID = c.GetUint("branch_id")
	req.OperatorID = c.GetUint("user_id")

	// Flat shape: synthesize the single combination line.
	if len(req.Combinations) == 0 && !input.Amount.IsZero() {
		req.Combinations = []exchange.CombinationItem{{
			CurrencyID: req.DefaultCurrencyID,
			Subtotal:   input.Amount,
			Rate:       input.Rate,
			BuyRate:    input.BuyRate,
			SellRate:   input.SellRate,
		}}
	}

	var (
		result *exchange.SplitResult
		err    error
	)
	if input.Reserve {
		result, err = h.splitter.Reserve(req)
	} else {
		result, err = h.splitter.Settle(req)
	}
	if err != nil {
		h.writeSettleError(c, err)
		return
	}

	receipts := make(map[string]string, len(result.Transactions))
	for _, entry := range result.Transactions {
		receipts[entry.TransactionNo] = exchange.ReceiptPath(h.receiptDir, entry.TransactionDate, entry.TransactionNo)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"business_group_id": result.BusinessGroupID,
		"transactions":      result.Transactions,
		"receipts":          receipts,
		"compliance":        result.Compliance,
	})
}

func (h *ExchangeHandler) writeSettleError(c *gin.Context, err error) {
	var exceeded *reservation.AmountExceededError
	if errors.As(err, &exceeded) {
		c.JSON(http.StatusForbidden, gin.H{
			"success":         false,
			"error_type":      "amount_exceeded",
			"approved_amount": exceeded.ApprovedAmount,
			"actual_amount":   exceeded.ActualAmount,
		})
		return
	}
	if errors.Is(err, exchange.ErrInsufficientBalance) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "insufficient_balance"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
}

// ReverseTransaction reverses a settled business group.
func (h *ExchangeHandler) ReverseTransaction(c *gin.Context) {
	groupID := c.Param("group_id")
	if groupID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "business group ID required"})
		return
	}

	result, err := h.splitter.ReverseBusinessGroup(groupID, c.GetUint("branch_id"), c.GetUint("user_id"))
	if err != nil {
		if errors.Is(err, exchange.ErrGroupNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "business group not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"business_group_id": result.BusinessGroupID,
		"transactions":      result.Transactions,
	})
}

// ListTransactions pages the branch's exchange entries.
func (h *ExchangeHandler) ListTransactions(c *gin.Context) {
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

	transactions, total, err := h.splitter.ListTransactions(c.GetUint("branch_id"), start, end, page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"transactions": transactions,
		"total":        total,
		"page":         page,
		"page_size":    pageSize,
	})
}

// GetGroup returns every entry of one business group.
func (h *ExchangeHandler) GetGroup(c *gin.Context) {
	entries, err := h.splitter.GroupEntries(c.Param("group_id"), c.GetUint("branch_id"))
	if err != nil {
		if errors.Is(err, exchange.ErrGroupNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "business group not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "transactions": entries})
}

// ListBalances returns every currency balance of the branch.
func (h *ExchangeHandler) ListBalances(c *gin.Context) {
	balances, err := h.ledger.Balances(c.GetUint("branch_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "balances": balances})
}

// AdjustBalance records a manual balance adjustment with its audit entry.
func (h *ExchangeHandler) AdjustBalance(c *gin.Context) {
	var input struct {
		CurrencyID uint            `json:"currency_id" binding:"required"`
		Amount     decimal.Decimal `json:"amount"`
		Reason     string          `json:"reason"`
		Initial    bool            `json:"initial"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	if input.Amount.IsZero() {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "amount must be non-zero"})
		return
	}

	entry, compliance, err := h.splitter.AdjustBalance(
		c.GetUint("branch_id"), input.CurrencyID, input.Amount, input.Reason, c.GetUint("user_id"), input.Initial)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"transaction": entry,
		"compliance":  compliance,
	})
}

func parseDateQuery(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
