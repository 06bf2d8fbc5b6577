package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"telegram-bingo/internal/model"
)

type creditRequest struct {
	UserID string          `json:"userId" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

type manualDepositRequest struct {
	UserID    string          `json:"userId" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	Reference string          `json:"reference"`
}

type walletStatusRequest struct {
	Status model.WalletStatus `json:"status" binding:"required"`
}

// GrantBonus handles POST /admin/bonus.
func (h *Handler) GrantBonus(c *gin.Context) {
	var req creditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	tx, err := h.Wallet.GrantBonus(c.Request.Context(), req.UserID, req.Amount, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

// AdminTransfer handles POST /admin/transfer.
func (h *Handler) AdminTransfer(c *gin.Context) {
	var req creditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	tx, err := h.Wallet.AdminTransfer(c.Request.Context(), principal(c).UserID, req.UserID, req.Amount, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

// ManualDeposit handles POST /admin/deposits: a deposit received outside the
// payment gateway. A repeated reference returns the original transaction.
func (h *Handler) ManualDeposit(c *gin.Context) {
	var req manualDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Method == "" {
		req.Method = "manual"
	}
	tx, err := h.Wallet.ProcessDeposit(c.Request.Context(), req.UserID, req.Amount, req.Method, req.Reference)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

// SetWalletStatus handles POST /admin/wallets/:userId/status.
func (h *Handler) SetWalletStatus(c *gin.Context) {
	var req walletStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	w, err := h.Wallet.SetStatus(c.Request.Context(), c.Param("userId"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// RetryPayout handles POST /admin/rooms/:id/payout.
func (h *Handler) RetryPayout(c *gin.Context) {
	tx, err := h.Rooms.RetryPayout(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

// AdminStats handles GET /admin/stats. since is RFC 3339 and defaults to a
// week ago.
func (h *Handler) AdminStats(c *gin.Context) {
	since := h.Stats.WeekAgo()
	if v := c.Query("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC 3339"})
			return
		}
		since = t
	}

	ctx := c.Request.Context()
	stats, err := h.Stats.GameStats(ctx, since)
	if err != nil {
		respondError(c, err)
		return
	}
	winners, err := h.Stats.TopWinners(ctx, since, queryInt(c, "limit", 10))
	if err != nil {
		respondError(c, err)
		return
	}
	if winners == nil {
		winners = []*model.WinnerRank{}
	}
	c.JSON(http.StatusOK, gin.H{
		"stats":        stats,
		"topWinners":   winners,
		"houseRevenue": stats.HouseRevenue,
	})
}
