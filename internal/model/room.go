package model

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Room limits.
const (
	MinPlayers         = 2
	MaxPlayers         = 100
	MaxFreeRoomPlayers = 10
	MaxCallNumber      = 75
)

// RoomStatus is a node of the room state machine.
type RoomStatus string

// Room statuses in lifecycle order.
const (
	RoomWaiting   RoomStatus = "waiting"
	RoomStarting  RoomStatus = "starting"
	RoomPlaying   RoomStatus = "playing"
	RoomCompleted RoomStatus = "completed"
)

var roomTransitions = map[RoomStatus][]RoomStatus{
	RoomWaiting:  {RoomStarting, RoomPlaying},
	RoomStarting: {RoomPlaying},
	RoomPlaying:  {RoomCompleted},
}

// CanTransitionTo reports whether a room in status s may move to next.
// Transitions only move forward; completed is terminal.
func (s RoomStatus) CanTransitionTo(next RoomStatus) bool {
	return slices.Contains(roomTransitions[s], next)
}

// IsActive reports whether the room is still listed in the lobby.
func (s RoomStatus) IsActive() bool {
	return s == RoomWaiting || s == RoomStarting || s == RoomPlaying
}

// Player is a participant of a room.
type Player struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email,omitempty"`
	TelegramID string    `json:"telegramId,omitempty"`
	Avatar     string    `json:"avatar,omitempty"`
	IsOnline   bool      `json:"isOnline"`
	JoinedAt   time.Time `json:"joinedAt"`
	// EntryTxID is the bet transaction that paid the entry fee.
	EntryTxID string `json:"entryTxId,omitempty"`
}

// GameRoom is one bingo session. Version is bumped on every write and is
// the compare-and-swap token for concurrent updates.
type GameRoom struct {
	ID                   string          `json:"id"`
	Name                 string          `json:"name"`
	HostID               string          `json:"hostId"`
	Players              []Player        `json:"players"`
	MaxPlayers           int             `json:"maxPlayers"`
	EntryFee             decimal.Decimal `json:"entryFee"`
	PrizePool            decimal.Decimal `json:"prizePool"`
	Status               RoomStatus      `json:"status"`
	CalledNumbers        []int           `json:"calledNumbers"`
	CurrentCall          *int            `json:"currentCall,omitempty"`
	NumberCallIntervalMs int64           `json:"numberCallInterval"`
	TelegramEnabled      bool            `json:"telegramEnabled"`
	TelegramChannelID    string          `json:"telegramChannelId,omitempty"`
	LastCallTime         *time.Time      `json:"lastCallTime,omitempty"`
	GameStartedAt        *time.Time      `json:"gameStartedAt,omitempty"`
	GameEndedAt          *time.Time      `json:"gameEndedAt,omitempty"`
	WinnerID             string          `json:"winnerId,omitempty"`
	WinPattern           string          `json:"winPattern,omitempty"`
	WinAmount            decimal.Decimal `json:"winAmount"`
	Version              int64           `json:"version"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}

// CallInterval returns the scheduler cadence.
func (r *GameRoom) CallInterval() time.Duration {
	return time.Duration(r.NumberCallIntervalMs) * time.Millisecond
}

// HasPlayer reports whether playerID is in the room.
func (r *GameRoom) HasPlayer(playerID string) bool {
	return r.playerIndex(playerID) >= 0
}

func (r *GameRoom) playerIndex(playerID string) int {
	return slices.IndexFunc(r.Players, func(p Player) bool { return p.ID == playerID })
}

// Player returns the player with playerID.
func (r *GameRoom) Player(playerID string) (Player, bool) {
	i := r.playerIndex(playerID)
	if i < 0 {
		return Player{}, false
	}
	return r.Players[i], true
}

// RemovePlayer drops playerID preserving the order of the others.
// It reports whether the player was present.
func (r *GameRoom) RemovePlayer(playerID string) bool {
	i := r.playerIndex(playerID)
	if i < 0 {
		return false
	}
	r.Players = slices.Delete(r.Players, i, i+1)
	return true
}

// IsFull reports whether no seat is left.
func (r *GameRoom) IsFull() bool {
	return len(r.Players) >= r.MaxPlayers
}

// IsFree reports whether the room has no entry fee.
func (r *GameRoom) IsFree() bool {
	return !r.EntryFee.IsPositive()
}

// Remaining returns the numbers in [1,75] not yet called, ascending.
func (r *GameRoom) Remaining() []int {
	called := make([]bool, MaxCallNumber+1)
	for _, n := range r.CalledNumbers {
		if n >= 1 && n <= MaxCallNumber {
			called[n] = true
		}
	}
	out := make([]int, 0, MaxCallNumber-len(r.CalledNumbers))
	for n := 1; n <= MaxCallNumber; n++ {
		if !called[n] {
			out = append(out, n)
		}
	}
	return out
}

// Clone returns a deep copy safe to mutate.
func (r *GameRoom) Clone() *GameRoom {
	c := *r
	c.Players = slices.Clone(r.Players)
	c.CalledNumbers = slices.Clone(r.CalledNumbers)
	c.CurrentCall = clonePtr(r.CurrentCall)
	c.LastCallTime = clonePtr(r.LastCallTime)
	c.GameStartedAt = clonePtr(r.GameStartedAt)
	c.GameEndedAt = clonePtr(r.GameEndedAt)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
