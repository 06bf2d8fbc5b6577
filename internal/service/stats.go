package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"telegram-bingo/internal/model"
	"telegram-bingo/internal/repository"
)

// GameStats summarizes recent activity for admins.
type GameStats struct {
	WaitingRooms   int             `json:"waitingRooms"`
	PlayingRooms   int             `json:"playingRooms"`
	CompletedRooms int             `json:"completedRooms"`
	PrizesPaid     decimal.Decimal `json:"prizesPaid"`
	HouseRevenue   decimal.Decimal `json:"houseRevenue"`
	Since          time.Time       `json:"since"`
}

// StatsService computes leaderboards and house figures.
type StatsService struct {
	rooms      repository.RoomStore
	ledger     repository.LedgerStore
	commission decimal.Decimal
	timezone   *time.Location
}

// NewStatsService creates a StatsService.
func NewStatsService(
	rooms repository.RoomStore,
	ledger repository.LedgerStore,
	commission decimal.Decimal,
	timezone *time.Location,
) *StatsService {
	if timezone == nil {
		timezone = time.UTC
	}
	return &StatsService{
		rooms:      rooms,
		ledger:     ledger,
		commission: commission,
		timezone:   timezone,
	}
}

// WeekAgo returns the start of the day seven days ago in the service timezone.
func (s *StatsService) WeekAgo() time.Time {
	now := time.Now().In(s.timezone)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.timezone).AddDate(0, 0, -7)
}

// GameStats counts rooms by status and sums payouts since the given time.
func (s *StatsService) GameStats(ctx context.Context, since time.Time) (*GameStats, error) {
	stats := &GameStats{Since: since}

	counts := []struct {
		status model.RoomStatus
		dst    *int
	}{
		{model.RoomWaiting, &stats.WaitingRooms},
		{model.RoomPlaying, &stats.PlayingRooms},
		{model.RoomCompleted, &stats.CompletedRooms},
	}
	for _, c := range counts {
		n, err := s.rooms.CountRooms(ctx, c.status, since)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s rooms: %w", c.status, err)
		}
		*c.dst = n
	}

	paid, err := s.ledger.SumCompleted(ctx, model.TxWin, since)
	if err != nil {
		return nil, fmt.Errorf("failed to sum prizes: %w", err)
	}
	stats.PrizesPaid = paid

	if stats.HouseRevenue, err = s.HouseRevenue(ctx, since); err != nil {
		return nil, err
	}
	return stats, nil
}

// TopWinners ranks users by completed winnings since the given time.
func (s *StatsService) TopWinners(ctx context.Context, since time.Time, limit int) ([]*model.WinnerRank, error) {
	if limit <= 0 || limit > MaxHistoryLimit {
		limit = 10
	}
	ranks, err := s.ledger.TopWinners(ctx, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to rank winners: %w", err)
	}
	return ranks, nil
}

// HouseRevenue is the commission kept from entry fees that were not
// refunded since the given time.
func (s *StatsService) HouseRevenue(ctx context.Context, since time.Time) (decimal.Decimal, error) {
	bets, err := s.ledger.SumCompleted(ctx, model.TxBet, since)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum bets: %w", err)
	}
	refunds, err := s.ledger.SumCompleted(ctx, model.TxRefund, since)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum refunds: %w", err)
	}
	net := decimal.Max(bets.Sub(refunds), decimal.Zero)
	return net.Mul(s.commission).Round(2), nil
}
