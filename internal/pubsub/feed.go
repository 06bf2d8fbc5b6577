package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"telegram-bingo/internal/model"
)

// Topic names.
const LobbyTopic = "lobby"

// RoomTopic is the topic carrying snapshots of one room.
func RoomTopic(roomID string) string { return "room:" + roomID }

// WalletTopic is the topic carrying one user's wallet changes.
func WalletTopic(userID string) string { return "wallet:" + userID }

// WalletEvent is published after a ledger transaction settles.
type WalletEvent struct {
	Wallet      *model.Wallet      `json:"wallet"`
	Transaction *model.Transaction `json:"transaction,omitempty"`
}

// Feed publishes and decodes typed change events on a Bus.
type Feed struct {
	bus Bus
}

// NewFeed creates a Feed on bus.
func NewFeed(bus Bus) *Feed {
	return &Feed{bus: bus}
}

// PublishRoom sends the room snapshot to its topic and to the lobby.
// Delivery failures are logged and never returned.
func (f *Feed) PublishRoom(ctx context.Context, room *model.GameRoom) {
	payload, err := json.Marshal(room)
	if err != nil {
		log.Error().Err(err).Str("room_id", room.ID).Msg("Failed to encode room event")
		return
	}
	f.publish(ctx, RoomTopic(room.ID), payload)
	f.publish(ctx, LobbyTopic, payload)
}

// PublishWallet sends a wallet event to the owner's topic.
func (f *Feed) PublishWallet(ctx context.Context, ev WalletEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("user_id", ev.Wallet.UserID).Msg("Failed to encode wallet event")
		return
	}
	f.publish(ctx, WalletTopic(ev.Wallet.UserID), payload)
}

func (f *Feed) publish(ctx context.Context, topic string, payload []byte) {
	if err := f.bus.Publish(ctx, topic, payload); err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("Failed to publish event")
	}
}

// SubscribeRoom calls fn with each new snapshot of roomID.
func (f *Feed) SubscribeRoom(roomID string, fn func(*model.GameRoom)) func() {
	return f.bus.Subscribe(RoomTopic(roomID), decode(fn))
}

// SubscribeLobby calls fn with every room change.
func (f *Feed) SubscribeLobby(fn func(*model.GameRoom)) func() {
	return f.bus.Subscribe(LobbyTopic, decode(fn))
}

// SubscribeWallet calls fn with each wallet event of userID.
func (f *Feed) SubscribeWallet(userID string, fn func(*WalletEvent)) func() {
	return f.bus.Subscribe(WalletTopic(userID), decode(fn))
}

// SubscribeRaw passes encoded payloads through unchanged.
func (f *Feed) SubscribeRaw(topic string, fn func([]byte)) func() {
	return f.bus.Subscribe(topic, fn)
}

func decode[T any](fn func(*T)) Handler {
	return func(payload []byte) {
		var v T
		if err := json.Unmarshal(payload, &v); err != nil {
			log.Error().Err(err).Str("type", fmt.Sprintf("%T", v)).Msg("Failed to decode event")
			return
		}
		fn(&v)
	}
}
