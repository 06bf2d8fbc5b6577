// Package bot serves the Telegram commands: lobby listings, room status and
// admin statistics. Game play itself happens in the web app.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-bingo/internal/config"
	"telegram-bingo/internal/model"
	"telegram-bingo/internal/service"
)

const (
	roomListLimit  = 10
	commandTimeout = 5 * time.Second
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot      *tele.Bot
	cfg      *config.Config
	rooms    *service.RoomService
	stats    *service.StatsService
	currency string
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	Config *config.Config
	Rooms  *service.RoomService
	Stats  *service.StatsService
}

// NewTeleBot creates the telebot instance. Without polling the bot only
// sends messages.
func NewTeleBot(cfg config.BotConfig) (*tele.Bot, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{Token: cfg.Token}
	if cfg.Poll {
		pref.Poller = &tele.LongPoller{Timeout: 10 * time.Second}
	} else {
		pref.Offline = true
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return teleBot, nil
}

// New registers middleware and command handlers on teleBot.
func New(teleBot *tele.Bot, deps *Dependencies) *Bot {
	b := &Bot{
		bot:      teleBot,
		cfg:      deps.Config,
		rooms:    deps.Rooms,
		stats:    deps.Stats,
		currency: deps.Config.Wallet.Currency,
	}

	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(WhitelistMiddleware(b.cfg))
	b.bot.Use(LoggingMiddleware())

	b.bot.Handle("/start", b.handleStart)
	b.bot.Handle("/help", b.handleStart)
	b.bot.Handle("/rooms", b.handleRooms)
	b.bot.Handle("/room", b.handleRoom)

	adminGroup := b.bot.Group()
	adminGroup.Use(AdminMiddleware(b.cfg))
	adminGroup.Handle("/stats", b.handleStats)

	return b
}

func (b *Bot) handleStart(c tele.Context) error {
	opts := []interface{}{tele.ModeHTML}
	if url := b.cfg.Server.PublicURL; url != "" {
		markup := &tele.ReplyMarkup{}
		markup.Inline(markup.Row(markup.URL("🎮 Open Bingo", url)))
		opts = append(opts, markup)
	}
	return c.Send(WelcomeMessage(), opts...)
}

func (b *Bot) handleRooms(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	rooms, err := b.rooms.ListActive(ctx, roomListLimit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list rooms")
		return c.Reply("❌ Could not load rooms, please try again later")
	}

	opts := []interface{}{tele.ModeHTML}
	if b.cfg.Bot.JoinURL != "" && len(rooms) > 0 {
		markup := &tele.ReplyMarkup{}
		var rows []tele.Row
		for _, room := range rooms {
			if room.Status != model.RoomWaiting || room.IsFull() {
				continue
			}
			label := fmt.Sprintf("🎮 %s (%d/%d)", room.Name, len(room.Players), room.MaxPlayers)
			rows = append(rows, markup.Row(markup.URL(label, fmt.Sprintf(b.cfg.Bot.JoinURL, room.ID))))
		}
		if len(rows) > 0 {
			markup.Inline(rows...)
			opts = append(opts, markup)
		}
	}
	return c.Send(RoomsMessage(rooms, b.currency), opts...)
}

func (b *Bot) handleRoom(c tele.Context) error {
	roomID := strings.TrimSpace(c.Message().Payload)
	if roomID == "" {
		return c.Reply("Usage: /room <room id>")
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	room, err := b.rooms.Get(ctx, roomID)
	if err != nil {
		return c.Reply("❌ Room not found")
	}
	return c.Send(RoomStatusMessage(room, b.currency), tele.ModeHTML)
}

func (b *Bot) handleStats(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	since := b.stats.WeekAgo()
	stats, err := b.stats.GameStats(ctx, since)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load game stats")
		return c.Reply("❌ Could not load statistics")
	}
	winners, err := b.stats.TopWinners(ctx, since, 10)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load top winners")
		return c.Reply("❌ Could not load statistics")
	}
	return c.Send(StatsMessage(stats, winners, b.currency), tele.ModeHTML)
}

// Start starts the bot polling. It blocks until Stop.
func (b *Bot) Start() {
	log.Info().Str("username", b.bot.Me.Username).Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}
