package notify

import (
	"context"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"telegram-bingo/internal/model"
)

// Sender is the part of *tele.Bot used for announcements.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// chatRecipient addresses a chat by numeric ID or @username.
type chatRecipient string

func (c chatRecipient) Recipient() string { return string(c) }

// Telegram posts room announcements to the room's Telegram channel.
// Rooms without Telegram enabled are skipped.
type Telegram struct {
	sender   Sender
	joinURL  string
	currency string
}

// NewTelegram creates a Telegram notifier. joinURL is a format string taking
// the room ID, e.g. "https://bingo.example.com/rooms/%s".
func NewTelegram(sender Sender, joinURL, currency string) *Telegram {
	if currency == "" {
		currency = model.DefaultCurrency
	}
	return &Telegram{sender: sender, joinURL: joinURL, currency: currency}
}

func (t *Telegram) target(room *model.GameRoom) (tele.Recipient, bool) {
	channel := strings.TrimSpace(room.TelegramChannelID)
	if !room.TelegramEnabled || channel == "" {
		return nil, false
	}
	return chatRecipient(channel), true
}

func (t *Telegram) send(room *model.GameRoom, text string, opts ...interface{}) error {
	to, ok := t.target(room)
	if !ok {
		return nil
	}
	opts = append(opts, tele.ModeHTML)
	if _, err := t.sender.Send(to, text, opts...); err != nil {
		return fmt.Errorf("failed to send telegram message to %s: %w", room.TelegramChannelID, err)
	}
	return nil
}

// RoomCreated posts an invite with a join button.
func (t *Telegram) RoomCreated(_ context.Context, room *model.GameRoom) error {
	var opts []interface{}
	if t.joinURL != "" {
		markup := &tele.ReplyMarkup{}
		markup.Inline(markup.Row(markup.URL("🎮 Join Game", fmt.Sprintf(t.joinURL, room.ID))))
		opts = append(opts, markup)
	}
	return t.send(room, InviteMessage(room, t.currency), opts...)
}

// GameStarted posts the start announcement.
func (t *Telegram) GameStarted(_ context.Context, room *model.GameRoom) error {
	return t.send(room, GameStartedMessage(room, t.currency))
}

// NumberCalled posts one call.
func (t *Telegram) NumberCalled(_ context.Context, room *model.GameRoom, number int) error {
	return t.send(room, NumberCalledMessage(room, number))
}

// WinnerDeclared posts the winner announcement.
func (t *Telegram) WinnerDeclared(_ context.Context, room *model.GameRoom, winner model.Player) error {
	return t.send(room, WinnerMessage(room, winner, t.currency))
}
