package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"telegram-bingo/internal/model"
	"telegram-bingo/internal/payment"
	"telegram-bingo/internal/service"
)

type depositRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Phone     string          `json:"phone"`
	FirstName string          `json:"firstName"`
	LastName  string          `json:"lastName"`
}

type withdrawRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method"`
}

// GetWallet handles GET /wallet.
func (h *Handler) GetWallet(c *gin.Context) {
	w, err := h.Wallet.GetOrCreate(c.Request.Context(), principal(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// Transactions handles GET /wallet/transactions.
func (h *Handler) Transactions(c *gin.Context) {
	txs, err := h.Wallet.History(c.Request.Context(), principal(c).UserID, queryInt(c, "limit", service.DefaultHistoryLimit))
	if err != nil {
		respondError(c, err)
		return
	}
	if txs == nil {
		txs = []*model.Transaction{}
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

// Deposit handles POST /wallet/deposit: a pending deposit is recorded and
// the payer is sent to the gateway checkout.
func (h *Handler) Deposit(c *gin.Context) {
	if h.Deposits == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "deposits are not available"})
		return
	}
	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	p := principal(c)
	first := req.FirstName
	if first == "" {
		first = p.Name
	}
	checkout, tx, err := h.Deposits.Start(c.Request.Context(), payment.Payer{
		UserID:    p.UserID,
		Email:     p.Email,
		FirstName: first,
		LastName:  req.LastName,
		Phone:     req.Phone,
	}, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"checkoutUrl": checkout.CheckoutURL,
		"txRef":       checkout.TxRef,
		"transaction": tx,
	})
}

// Withdraw handles POST /wallet/withdraw.
func (h *Handler) Withdraw(c *gin.Context) {
	var req withdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	tx, err := h.Wallet.ProcessWithdrawal(c.Request.Context(), principal(c).UserID, req.Amount, req.Method)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

type callbackBody struct {
	TxRef  string `json:"tx_ref"`
	TrxRef string `json:"trx_ref"`
}

// PaymentCallback handles the gateway callback. The payload is only used to
// find the reference; the outcome always comes from Verify.
func (h *Handler) PaymentCallback(c *gin.Context) {
	if h.Deposits == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "deposits are not available"})
		return
	}

	ref := c.Query("tx_ref")
	if ref == "" {
		ref = c.Query("trx_ref")
	}
	if ref == "" && c.Request.Method == http.MethodPost {
		var body callbackBody
		if err := c.ShouldBindJSON(&body); err == nil {
			ref = body.TxRef
			if ref == "" {
				ref = body.TrxRef
			}
		}
	}
	if ref == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tx_ref is required"})
		return
	}

	tx, err := h.Deposits.Confirm(c.Request.Context(), ref)
	switch {
	case errors.Is(err, payment.ErrPaymentPending):
		c.JSON(http.StatusAccepted, gin.H{"status": "pending", "txRef": ref})
	case err != nil:
		respondError(c, err)
	default:
		c.JSON(http.StatusOK, gin.H{"status": tx.Status, "txRef": ref})
	}
}
