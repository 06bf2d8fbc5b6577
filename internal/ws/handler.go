package ws

import (
	"encoding/json"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"telegram-bingo/internal/auth"
	"telegram-bingo/internal/pubsub"
	"telegram-bingo/internal/service"
)

// Message types.
const (
	TypeRoom   = "room"
	TypeWallet = "wallet"
)

// Message is the envelope of every frame sent to clients.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func encode(typ string, data []byte) []byte {
	msg, err := json.Marshal(Message{Type: typ, Data: data})
	if err != nil {
		log.Error().Err(err).Str("type", typ).Msg("Failed to encode websocket message")
		return nil
	}
	return msg
}

// Handler upgrades feed requests. Tokens come from the token query
// parameter because browsers cannot set headers on WebSocket requests.
type Handler struct {
	feed     *pubsub.Feed
	verifier *auth.Verifier
	rooms    *service.RoomService
	wallet   *service.WalletService
	upgrader websocket.Upgrader
}

// NewHandler creates a Handler. An empty origins list accepts any origin.
func NewHandler(
	feed *pubsub.Feed,
	verifier *auth.Verifier,
	rooms *service.RoomService,
	wallet *service.WalletService,
	origins []string,
) *Handler {
	return &Handler{
		feed:     feed,
		verifier: verifier,
		rooms:    rooms,
		wallet:   wallet,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(origins) == 0 || origin == "" || slices.Contains(origins, origin)
			},
		},
	}
}

func (h *Handler) authenticate(c *gin.Context) (*auth.Principal, bool) {
	p, err := h.verifier.Parse(c.Query("token"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return nil, false
	}
	return p, true
}

// RoomFeed handles GET /ws/rooms/:id. The current snapshot is sent first,
// followed by every change. Snapshots carry the room version, so clients
// keep the highest one they have seen.
func (h *Handler) RoomFeed(c *gin.Context) {
	p, ok := h.authenticate(c)
	if !ok {
		return
	}
	roomID := c.Param("id")
	if _, err := h.rooms.Get(c.Request.Context(), roomID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	client := newClient(p.UserID, conn)

	unsubscribe := h.feed.SubscribeRaw(pubsub.RoomTopic(roomID), func(payload []byte) {
		client.enqueue(encode(TypeRoom, payload))
	})
	if room, err := h.rooms.Get(c.Request.Context(), roomID); err == nil {
		if data, err := json.Marshal(room); err == nil {
			client.enqueue(encode(TypeRoom, data))
		}
	}

	log.Debug().Str("user_id", p.UserID).Str("room_id", roomID).Msg("Room feed connected")
	client.run(unsubscribe)
}

// WalletFeed handles GET /ws/wallet: the caller's wallet followed by every
// settled transaction.
func (h *Handler) WalletFeed(c *gin.Context) {
	p, ok := h.authenticate(c)
	if !ok {
		return
	}
	w, err := h.wallet.GetOrCreate(c.Request.Context(), p.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	client := newClient(p.UserID, conn)

	unsubscribe := h.feed.SubscribeRaw(pubsub.WalletTopic(p.UserID), func(payload []byte) {
		client.enqueue(encode(TypeWallet, payload))
	})
	if data, err := json.Marshal(pubsub.WalletEvent{Wallet: w}); err == nil {
		client.enqueue(encode(TypeWallet, data))
	}

	client.run(unsubscribe)
}
