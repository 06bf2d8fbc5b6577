// Package handlers implements the HTTP API on top of the service layer.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"telegram-bingo/internal/auth"
	"telegram-bingo/internal/http/middleware"
	"telegram-bingo/internal/payment"
	"telegram-bingo/internal/pkg/apperr"
	"telegram-bingo/internal/service"
)

// Pinger reports store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the REST API.
type Handler struct {
	Rooms    *service.RoomService
	Cards    *service.CardService
	Wallet   *service.WalletService
	Stats    *service.StatsService
	Deposits *payment.Deposits // nil when no gateway is configured
	DB       Pinger            // nil for the in-memory store
	Version  string
}

func principal(c *gin.Context) *auth.Principal {
	p, ok := middleware.Principal(c)
	if !ok {
		// Routes using principal are always behind middleware.JWT.
		panic("handlers: principal missing")
	}
	return p
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
}

// respondError maps error kinds to status codes. Infrastructure errors are
// logged and hidden behind a generic message.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperr.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, apperr.ErrInsufficientBalance):
		status = http.StatusPaymentRequired
	case errors.Is(err, apperr.ErrPermission):
		status = http.StatusForbidden
	case errors.Is(err, payment.ErrGateway):
		status = http.StatusBadGateway
	}

	_ = c.Error(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("route", c.FullPath()).Msg("Request failed")
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
