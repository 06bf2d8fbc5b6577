package notify

import (
	"fmt"
	"html"
	"strings"

	"github.com/shopspring/decimal"

	"telegram-bingo/internal/game/bingo"
	"telegram-bingo/internal/model"
)

func money(amount decimal.Decimal, currency string) string {
	return amount.StringFixed(2) + " " + currency
}

func seats(room *model.GameRoom) string {
	return fmt.Sprintf("%d/%d", len(room.Players), room.MaxPlayers)
}

// InviteMessage announces a new room.
func InviteMessage(room *model.GameRoom, currency string) string {
	var b strings.Builder
	b.WriteString("🎯 <b>NEW BINGO GAME!</b>\n\n")
	fmt.Fprintf(&b, "🏆 Game: %s\n", html.EscapeString(room.Name))
	if room.IsFree() {
		b.WriteString("💰 Entry: free\n")
	} else {
		fmt.Fprintf(&b, "💰 Entry Fee: %s\n", money(room.EntryFee, currency))
	}
	fmt.Fprintf(&b, "👥 Players: %s\n\n", seats(room))
	b.WriteString("Join now and win big! 🍀")
	return b.String()
}

// GameStartedMessage announces that calling has begun.
func GameStartedMessage(room *model.GameRoom, currency string) string {
	var b strings.Builder
	b.WriteString("🎯 <b>BINGO GAME STARTED!</b>\n\n")
	fmt.Fprintf(&b, "🏆 Game: %s\n", html.EscapeString(room.Name))
	fmt.Fprintf(&b, "💰 Prize Pool: %s\n", money(room.PrizePool, currency))
	fmt.Fprintf(&b, "👥 Players: %s\n\n", seats(room))
	b.WriteString("Good luck to all players! 🍀")
	return b.String()
}

// NumberCalledMessage announces one call.
func NumberCalledMessage(room *model.GameRoom, number int) string {
	return fmt.Sprintf("📢 <b>NUMBER CALLED!</b>\n\n🔢 <b>%s</b>\n\nCall %d of %d. Mark your cards! 🎯",
		bingo.FormatCall(number), len(room.CalledNumbers), model.MaxCallNumber)
}

// WinnerMessage announces the settled winner.
func WinnerMessage(room *model.GameRoom, winner model.Player, currency string) string {
	name := winner.Name
	if name == "" {
		name = winner.ID
	}
	var b strings.Builder
	b.WriteString("🎉 <b>BINGO WINNER!</b>\n\n")
	fmt.Fprintf(&b, "🏆 Winner: %s\n", html.EscapeString(name))
	fmt.Fprintf(&b, "🎯 Pattern: %s\n", html.EscapeString(room.WinPattern))
	fmt.Fprintf(&b, "💰 Prize: %s\n", money(room.WinAmount, currency))
	fmt.Fprintf(&b, "🎮 Game: %s\n\n", html.EscapeString(room.Name))
	b.WriteString("Congratulations! 🎊")
	return b.String()
}
