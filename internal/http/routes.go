// Package http assembles the gin engine: REST API, WebSocket feeds, health
// and metrics.
package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"telegram-bingo/internal/auth"
	"telegram-bingo/internal/config"
	"telegram-bingo/internal/http/handlers"
	"telegram-bingo/internal/http/middleware"
	"telegram-bingo/internal/ws"
)

// Options configures the router.
type Options struct {
	Server   config.ServerConfig
	Verifier *auth.Verifier
	// Redis enables rate limiting when set.
	Redis       redis.UniversalClient
	RedisPrefix string
}

// NewRouter builds the engine.
func NewRouter(h *handlers.Handler, feeds *ws.Handler, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger(), middleware.CORS(opts.Server.AllowedOrigins))

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	window := opts.Server.RateWindow
	if window <= 0 {
		window = time.Minute
	}
	limit := middleware.RedisRateLimit(opts.Redis, opts.RedisPrefix, opts.Server.RateLimit, window)

	v1 := r.Group("/api/v1")

	// Called by the payment gateway; the outcome is always re-verified.
	v1.GET("/payment/callback", h.PaymentCallback)
	v1.POST("/payment/callback", h.PaymentCallback)

	api := v1.Group("", middleware.JWT(opts.Verifier), limit)

	rooms := api.Group("/rooms")
	rooms.GET("", h.ListRooms)
	rooms.POST("", h.CreateRoom)
	rooms.GET("/:id", h.GetRoom)
	rooms.POST("/:id/join", h.JoinRoom)
	rooms.POST("/:id/leave", h.LeaveRoom)
	rooms.POST("/:id/start", h.StartRoom)
	rooms.POST("/:id/card", h.IssueCard)
	rooms.GET("/:id/card", h.GetCard)
	rooms.POST("/:id/claim", h.ClaimWin)

	wallet := api.Group("/wallet")
	wallet.GET("", h.GetWallet)
	wallet.GET("/transactions", h.Transactions)
	wallet.POST("/deposit", h.Deposit)
	wallet.POST("/withdraw", h.Withdraw)

	admin := api.Group("/admin", middleware.RequireAdmin())
	admin.POST("/bonus", h.GrantBonus)
	admin.POST("/transfer", h.AdminTransfer)
	admin.POST("/deposits", h.ManualDeposit)
	admin.POST("/wallets/:userId/status", h.SetWalletStatus)
	admin.POST("/rooms/:id/payout", h.RetryPayout)
	admin.GET("/stats", h.AdminStats)

	r.GET("/ws/rooms/:id", feeds.RoomFeed)
	r.GET("/ws/wallet", feeds.WalletFeed)

	return r
}
