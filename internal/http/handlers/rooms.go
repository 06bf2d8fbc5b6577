package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"telegram-bingo/internal/model"
	"telegram-bingo/internal/service"
)

type createRoomRequest struct {
	Name              string          `json:"name"`
	MaxPlayers        int             `json:"maxPlayers"`
	EntryFee          decimal.Decimal `json:"entryFee"`
	TelegramEnabled   bool            `json:"telegramEnabled"`
	TelegramChannelID string          `json:"telegramChannelId"`
	CallIntervalMs    int64           `json:"numberCallInterval"`
}

type joinRequest struct {
	Name       string `json:"name"`
	Avatar     string `json:"avatar"`
	TelegramID string `json:"telegramId"`
}

// ListRooms handles GET /rooms.
func (h *Handler) ListRooms(c *gin.Context) {
	rooms, err := h.Rooms.ListActive(c.Request.Context(), queryInt(c, "limit", service.DefaultListLimit))
	if err != nil {
		respondError(c, err)
		return
	}
	if rooms == nil {
		rooms = []*model.GameRoom{}
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// CreateRoom handles POST /rooms. The caller becomes the host.
func (h *Handler) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	room, err := h.Rooms.Create(c.Request.Context(), service.CreateRoomInput{
		HostID:            principal(c).UserID,
		Name:              req.Name,
		MaxPlayers:        req.MaxPlayers,
		EntryFee:          req.EntryFee,
		TelegramEnabled:   req.TelegramEnabled,
		TelegramChannelID: req.TelegramChannelID,
		CallInterval:      time.Duration(req.CallIntervalMs) * time.Millisecond,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, room)
}

// GetRoom handles GET /rooms/:id.
func (h *Handler) GetRoom(c *gin.Context) {
	room, err := h.Rooms.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

// JoinRoom handles POST /rooms/:id/join. The body is optional.
func (h *Handler) JoinRoom(c *gin.Context) {
	var req joinRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	p := principal(c)
	name := req.Name
	if name == "" {
		name = p.Name
	}
	room, err := h.Rooms.Join(c.Request.Context(), c.Param("id"), model.Player{
		ID:         p.UserID,
		Name:       name,
		Email:      p.Email,
		TelegramID: req.TelegramID,
		Avatar:     req.Avatar,
		IsOnline:   true,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

// LeaveRoom handles POST /rooms/:id/leave.
func (h *Handler) LeaveRoom(c *gin.Context) {
	room, err := h.Rooms.Leave(c.Request.Context(), c.Param("id"), principal(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

// StartRoom handles POST /rooms/:id/start. Only the host may start.
func (h *Handler) StartRoom(c *gin.Context) {
	room, err := h.Rooms.Start(c.Request.Context(), c.Param("id"), principal(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

// IssueCard handles POST /rooms/:id/card. Repeated calls return the same card.
func (h *Handler) IssueCard(c *gin.Context) {
	card, err := h.Cards.Issue(c.Request.Context(), c.Param("id"), principal(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

// GetCard handles GET /rooms/:id/card.
func (h *Handler) GetCard(c *gin.Context) {
	card, err := h.Cards.Get(c.Request.Context(), c.Param("id"), principal(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

// ClaimWin handles POST /rooms/:id/claim. The claim is checked against the
// issued card and the room's call history.
func (h *Handler) ClaimWin(c *gin.Context) {
	room, result, err := h.Rooms.ClaimWin(c.Request.Context(), c.Param("id"), principal(c).UserID)
	if err != nil {
		if room != nil {
			// Settled, but the prize credit failed and will be retried.
			c.JSON(http.StatusAccepted, gin.H{"room": room, "result": result, "payout": "pending"})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": room, "result": result})
}
