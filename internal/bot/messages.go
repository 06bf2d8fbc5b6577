package bot

import (
	"fmt"
	"html"
	"strings"

	"github.com/shopspring/decimal"

	"telegram-bingo/internal/game/bingo"
	"telegram-bingo/internal/model"
	"telegram-bingo/internal/service"
)

func money(amount decimal.Decimal, currency string) string {
	return amount.StringFixed(2) + " " + currency
}

// WelcomeMessage answers /start and /help.
func WelcomeMessage() string {
	return "🎯 <b>Welcome to Bingo!</b>\n\n" +
		"/rooms - open games\n" +
		"/room &lt;id&gt; - game status\n\n" +
		"Join a game from the web app, get your card and shout BINGO! 🍀"
}

// RoomsMessage lists active rooms.
func RoomsMessage(rooms []*model.GameRoom, currency string) string {
	if len(rooms) == 0 {
		return "🎲 No open games right now. Check back soon!"
	}

	var b strings.Builder
	b.WriteString("🎲 <b>Open games</b>\n━━━━━━━━━━━━━━━\n")
	for i, room := range rooms {
		entry := "free"
		if !room.IsFree() {
			entry = money(room.EntryFee, currency)
		}
		fmt.Fprintf(&b, "%d. <b>%s</b> · %s · %d/%d · %s\n",
			i+1, html.EscapeString(room.Name), statusLabel(room.Status),
			len(room.Players), room.MaxPlayers, entry)
	}
	return b.String()
}

// RoomStatusMessage describes one room.
func RoomStatusMessage(room *model.GameRoom, currency string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🏆 <b>%s</b>\n", html.EscapeString(room.Name))
	fmt.Fprintf(&b, "📍 Status: %s\n", statusLabel(room.Status))
	fmt.Fprintf(&b, "👥 Players: %d/%d\n", len(room.Players), room.MaxPlayers)
	fmt.Fprintf(&b, "💰 Prize Pool: %s\n", money(room.PrizePool, currency))
	if n := len(room.CalledNumbers); n > 0 {
		fmt.Fprintf(&b, "🔢 Called: %d/%d", n, model.MaxCallNumber)
		if room.CurrentCall != nil {
			fmt.Fprintf(&b, " (last %s)", bingo.FormatCall(*room.CurrentCall))
		}
		b.WriteString("\n")
	}
	if room.Status == model.RoomCompleted {
		if room.WinnerID == "" {
			b.WriteString("🏁 Ended without a winner\n")
		} else {
			name := room.WinnerID
			if p, ok := room.Player(room.WinnerID); ok && p.Name != "" {
				name = p.Name
			}
			fmt.Fprintf(&b, "🎉 Winner: %s, %s for %s\n",
				html.EscapeString(name), html.EscapeString(room.WinPattern), money(room.WinAmount, currency))
		}
	}
	return b.String()
}

// StatsMessage renders the admin statistics.
func StatsMessage(stats *service.GameStats, winners []*model.WinnerRank, currency string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>Stats since %s</b>\n━━━━━━━━━━━━━━━\n", stats.Since.Format("2006-01-02"))
	fmt.Fprintf(&b, "⏳ Waiting: %d\n", stats.WaitingRooms)
	fmt.Fprintf(&b, "▶️ Playing: %d\n", stats.PlayingRooms)
	fmt.Fprintf(&b, "🏁 Completed: %d\n", stats.CompletedRooms)
	fmt.Fprintf(&b, "💸 Prizes paid: %s\n", money(stats.PrizesPaid, currency))
	fmt.Fprintf(&b, "🏦 House revenue: %s\n", money(stats.HouseRevenue, currency))

	b.WriteString("\n🏆 <b>Top winners</b>\n")
	if len(winners) == 0 {
		b.WriteString("No data yet\n")
		return b.String()
	}
	medals := []string{"🥇", "🥈", "🥉"}
	for i, w := range winners {
		rank := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			rank = medals[i]
		}
		fmt.Fprintf(&b, "%s %s: +%s (%d wins)\n", rank, html.EscapeString(w.UserID), money(w.TotalWon, currency), w.Wins)
	}
	return b.String()
}

func statusLabel(s model.RoomStatus) string {
	switch s {
	case model.RoomWaiting:
		return "⏳ waiting"
	case model.RoomStarting:
		return "🚦 starting"
	case model.RoomPlaying:
		return "▶️ playing"
	case model.RoomCompleted:
		return "🏁 finished"
	}
	return string(s)
}
