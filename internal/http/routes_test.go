package http

import (
	"bytes"
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-bingo/internal/auth"
	"telegram-bingo/internal/config"
	"telegram-bingo/internal/game/bingo"
	"telegram-bingo/internal/http/handlers"
	"telegram-bingo/internal/model"
	"telegram-bingo/internal/payment"
	"telegram-bingo/internal/pubsub"
	"telegram-bingo/internal/repository/memory"
	"telegram-bingo/internal/service"
	"telegram-bingo/internal/ws"
)

type stubGateway struct {
	status string
}

func (g *stubGateway) Initialize(_ context.Context, req payment.CheckoutRequest) (*payment.Checkout, error) {
	return &payment.Checkout{CheckoutURL: "https://pay.example/" + req.TxRef, TxRef: req.TxRef}, nil
}

func (g *stubGateway) Verify(_ context.Context, txRef string) (*payment.Verification, error) {
	return &payment.Verification{TxRef: txRef, Status: g.status}, nil
}

type apiEnv struct {
	router   *gin.Engine
	verifier *auth.Verifier
	rooms    *service.RoomService
	cards    *service.CardService
	wallet   *service.WalletService
	gateway  *stubGateway
}

func newAPI(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.New("ETB")
	bus := pubsub.NewLocalBus()
	t.Cleanup(func() { _ = bus.Close() })
	feed := pubsub.NewFeed(bus)

	cfg := service.DefaultRoomConfig()
	wallet := service.NewWalletService(store, feed, service.DefaultWalletLimits())
	rooms := service.NewRoomService(store, store, wallet, feed, nil, cfg)
	cards := service.NewCardService(store, store)
	stats := service.NewStatsService(store, store, cfg.Commission, nil)
	gateway := &stubGateway{status: payment.StatusSuccess}
	verifier := auth.NewVerifier("secret")

	h := &handlers.Handler{
		Rooms:    rooms,
		Cards:    cards,
		Wallet:   wallet,
		Stats:    stats,
		Deposits: payment.NewDeposits(gateway, wallet, "ETB"),
		Version:  "test",
	}
	router := NewRouter(h, ws.NewHandler(feed, verifier, rooms, wallet, nil), Options{
		Server:   config.ServerConfig{},
		Verifier: verifier,
	})
	return &apiEnv{
		router:   router,
		verifier: verifier,
		rooms:    rooms,
		cards:    cards,
		wallet:   wallet,
		gateway:  gateway,
	}
}

func (e *apiEnv) do(t *testing.T, method, path string, p *auth.Principal, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if p != nil {
		token, err := e.verifier.Issue(*p, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if out != nil {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}
	return w.Code
}

func user(id string) *auth.Principal {
	return &auth.Principal{UserID: id, Name: "Player " + id}
}

func TestHealth(t *testing.T) {
	env := newAPI(t)
	var body map[string]any
	assert.Equal(t, stdhttp.StatusOK, env.do(t, stdhttp.MethodGet, "/health", nil, nil, &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRequiresToken(t *testing.T) {
	env := newAPI(t)
	assert.Equal(t, stdhttp.StatusUnauthorized, env.do(t, stdhttp.MethodGet, "/api/v1/rooms", nil, nil, nil))
}

func TestPaidRoomGame(t *testing.T) {
	env := newAPI(t)
	ctx := context.Background()
	host, p1, p2 := user("host"), user("p1"), user("p2")

	for _, id := range []string{"p1", "p2"} {
		_, err := env.wallet.GrantBonus(ctx, id, decimal.NewFromInt(500), "seed")
		require.NoError(t, err)
	}

	var room model.GameRoom
	code := env.do(t, stdhttp.MethodPost, "/api/v1/rooms", host, map[string]any{
		"name":       "Friday night",
		"maxPlayers": 3,
		"entryFee":   "100",
	}, &room)
	require.Equal(t, stdhttp.StatusCreated, code)
	assert.Equal(t, model.RoomWaiting, room.Status)
	base := "/api/v1/rooms/" + room.ID

	var list struct {
		Rooms []model.GameRoom `json:"rooms"`
	}
	require.Equal(t, stdhttp.StatusOK, env.do(t, stdhttp.MethodGet, "/api/v1/rooms", p1, nil, &list))
	require.Len(t, list.Rooms, 1)

	require.Equal(t, stdhttp.StatusOK, env.do(t, stdhttp.MethodPost, base+"/join", p1, nil, nil))
	assert.Equal(t, stdhttp.StatusConflict, env.do(t, stdhttp.MethodPost, base+"/join", p1, nil, nil))
	assert.Equal(t, stdhttp.StatusConflict, env.do(t, stdhttp.MethodPost, base+"/start", host, nil, nil))

	require.Equal(t, stdhttp.StatusOK, env.do(t, stdhttp.MethodPost, base+"/join", p2, nil, &room))
	assert.Equal(t, "180.00", room.PrizePool.StringFixed(2))

	assert.Equal(t, stdhttp.StatusForbidden, env.do(t, stdhttp.MethodPost, base+"/start", p1, nil, nil))
	require.Equal(t, stdhttp.StatusOK, env.do(t, stdhttp.MethodPost, base+"/start", host, nil, &room))
	assert.Equal(t, model.RoomPlaying, room.Status)

	var card model.BingoCard
	require.Equal(t, stdhttp.StatusOK, env.do(t, stdhttp.MethodPost, base+"/card", p1, nil, &card))
	assert.Equal(t, "p1", card.PlayerID)
	assert.Equal(t, stdhttp.StatusConflict, env.do(t, stdhttp.MethodPost, base+"/card", host, nil, nil))

	// No number called yet: the free space alone never wins.
	assert.Equal(t, stdhttp.StatusConflict, env.do(t, stdhttp.MethodPost, base+"/claim", p1, nil, nil))

	stored, err := env.cards.Get(ctx, room.ID, "p1")
	require.NoError(t, err)
	for {
		current, err := env.rooms.Get(ctx, room.ID)
		require.NoError(t, err)
		if bingo.Evaluate(bingo.ApplyCalls(stored, current.CalledNumbers)).HasWon {
			break
		}
		_, exhausted, err := env.rooms.DrawNext(ctx, room.ID)
		require.NoError(t, err)
		require.False(t, exhausted)
	}

	var claim struct {
		Room   model.GameRoom  `json:"room"`
		Result bingo.WinResult `json:"result"`
	}
	require.Equal(t, stdhttp.StatusOK, env.do(t, stdhttp.MethodPost, base+"/claim", p1, nil, &claim))
	assert.True(t, claim.Result.HasWon)
	assert.Equal(t, model.RoomCompleted, claim.Room.Status)
	assert.Equal(t, "p1", claim.Room.WinnerID)
	assert.Equal(t, stdhttp.StatusConflict, env.do(t, stdhttp.MethodPost, base+"/claim", p2, nil, nil))

	var w model.Wallet
	require.Equal(t, stdhttp.StatusOK, env.do(t, stdhttp.MethodGet, "/api/v1/wallet", p1, nil, &w))
	want := decimal.NewFromInt(400).Add(claim.Room.WinAmount)
	assert.Equal(t, want.StringFixed(2), w.Balance.StringFixed(2))
}

func TestJoinWithoutFunds(t *testing.T) {
	env := newAPI(t)

	var room model.GameRoom
	require.Equal(t, stdhttp.StatusCreated, env.do(t, stdhttp.MethodPost, "/api/v1/rooms", user("host"), map[string]any{
		"name":       "Paid",
		"maxPlayers": 4,
		"entryFee":   50,
	}, &room))

	assert.Equal(t, stdhttp.StatusPaymentRequired,
		env.do(t, stdhttp.MethodPost, "/api/v1/rooms/"+room.ID+"/join", user("broke"), nil, nil))
	assert.Equal(t, stdhttp.StatusNotFound,
		env.do(t, stdhttp.MethodGet, "/api/v1/rooms/missing", user("broke"), nil, nil))
	assert.Equal(t, stdhttp.StatusBadRequest,
		env.do(t, stdhttp.MethodPost, "/api/v1/rooms", user("host"), map[string]any{"name": "", "maxPlayers": 1}, nil))
}

func TestDepositAndCallback(t *testing.T) {
	env := newAPI(t)
	p := user("u1")

	var started struct {
		CheckoutURL string `json:"checkoutUrl"`
		TxRef       string `json:"txRef"`
	}
	require.Equal(t, stdhttp.StatusOK,
		env.do(t, stdhttp.MethodPost, "/api/v1/wallet/deposit", p, map[string]any{"amount": 300}, &started))
	assert.Contains(t, started.CheckoutURL, started.TxRef)

	env.gateway.status = payment.StatusPending
	assert.Equal(t, stdhttp.StatusAccepted,
		env.do(t, stdhttp.MethodGet, "/api/v1/payment/callback?tx_ref="+started.TxRef, nil, nil, nil))

	env.gateway.status = payment.StatusSuccess
	for range 2 {
		assert.Equal(t, stdhttp.StatusOK,
			env.do(t, stdhttp.MethodPost, "/api/v1/payment/callback", nil, map[string]string{"trx_ref": started.TxRef}, nil))
	}

	var w model.Wallet
	require.Equal(t, stdhttp.StatusOK, env.do(t, stdhttp.MethodGet, "/api/v1/wallet", p, nil, &w))
	assert.Equal(t, "300.00", w.Balance.StringFixed(2))

	var history struct {
		Transactions []model.Transaction `json:"transactions"`
	}
	require.Equal(t, stdhttp.StatusOK, env.do(t, stdhttp.MethodGet, "/api/v1/wallet/transactions", p, nil, &history))
	require.Len(t, history.Transactions, 1)
	assert.Equal(t, model.TxCompleted, history.Transactions[0].Status)

	assert.Equal(t, stdhttp.StatusBadRequest,
		env.do(t, stdhttp.MethodGet, "/api/v1/payment/callback", nil, nil, nil))
}

func TestWithdraw(t *testing.T) {
	env := newAPI(t)
	p := user("u1")
	_, err := env.wallet.GrantBonus(context.Background(), "u1", decimal.NewFromInt(60), "seed")
	require.NoError(t, err)

	assert.Equal(t, stdhttp.StatusPaymentRequired,
		env.do(t, stdhttp.MethodPost, "/api/v1/wallet/withdraw", p, map[string]any{"amount": 80, "method": "telebirr"}, nil))
	assert.Equal(t, stdhttp.StatusBadRequest,
		env.do(t, stdhttp.MethodPost, "/api/v1/wallet/withdraw", p, map[string]any{"amount": 10, "method": "telebirr"}, nil))
}

func TestAdminRoutes(t *testing.T) {
	env := newAPI(t)
	admin := &auth.Principal{UserID: "admin", Admin: true}

	assert.Equal(t, stdhttp.StatusForbidden,
		env.do(t, stdhttp.MethodPost, "/api/v1/admin/bonus", user("u1"), map[string]any{"userId": "u1", "amount": 10}, nil))

	require.Equal(t, stdhttp.StatusOK,
		env.do(t, stdhttp.MethodPost, "/api/v1/admin/bonus", admin, map[string]any{"userId": "u1", "amount": 10, "reason": "promo"}, nil))
	require.Equal(t, stdhttp.StatusOK,
		env.do(t, stdhttp.MethodPost, "/api/v1/admin/transfer", admin, map[string]any{"userId": "u1", "amount": 5, "reason": "fix"}, nil))

	deposit := map[string]any{"userId": "u1", "amount": 50, "method": "cash", "reference": "cash-001"}
	var first, again model.Transaction
	require.Equal(t, stdhttp.StatusOK,
		env.do(t, stdhttp.MethodPost, "/api/v1/admin/deposits", admin, deposit, &first))
	require.Equal(t, stdhttp.StatusOK,
		env.do(t, stdhttp.MethodPost, "/api/v1/admin/deposits", admin, deposit, &again))
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, model.TxDeposit, first.Type)

	balance, err := env.wallet.Balance(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "65.00", balance.StringFixed(2))

	var w model.Wallet
	require.Equal(t, stdhttp.StatusOK,
		env.do(t, stdhttp.MethodPost, "/api/v1/admin/wallets/u1/status", admin, map[string]any{"status": "suspended"}, &w))
	assert.Equal(t, model.WalletSuspended, w.Status)

	var stats struct {
		Stats      service.GameStats   `json:"stats"`
		TopWinners []*model.WinnerRank `json:"topWinners"`
	}
	require.Equal(t, stdhttp.StatusOK, env.do(t, stdhttp.MethodGet, "/api/v1/admin/stats", admin, nil, &stats))
	assert.Empty(t, stats.TopWinners)
	assert.Equal(t, stdhttp.StatusBadRequest,
		env.do(t, stdhttp.MethodGet, "/api/v1/admin/stats?since=yesterday", admin, nil, nil))
}
