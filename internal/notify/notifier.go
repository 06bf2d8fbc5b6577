// Package notify delivers best-effort game announcements.
//
// Notifiers never influence game state: callers fire and forget, and
// delivery errors end up in the log.
package notify

import (
	"context"

	"telegram-bingo/internal/model"
)

// Notifier announces room events.
type Notifier interface {
	RoomCreated(ctx context.Context, room *model.GameRoom) error
	GameStarted(ctx context.Context, room *model.GameRoom) error
	NumberCalled(ctx context.Context, room *model.GameRoom, number int) error
	WinnerDeclared(ctx context.Context, room *model.GameRoom, winner model.Player) error
}

// Nop discards every notification.
type Nop struct{}

func (Nop) RoomCreated(context.Context, *model.GameRoom) error                  { return nil }
func (Nop) GameStarted(context.Context, *model.GameRoom) error                  { return nil }
func (Nop) NumberCalled(context.Context, *model.GameRoom, int) error            { return nil }
func (Nop) WinnerDeclared(context.Context, *model.GameRoom, model.Player) error { return nil }
