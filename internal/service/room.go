package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"telegram-bingo/internal/game/bingo"
	"telegram-bingo/internal/metrics"
	"telegram-bingo/internal/model"
	"telegram-bingo/internal/notify"
	"telegram-bingo/internal/pkg/apperr"
	"telegram-bingo/internal/pkg/lock"
	"telegram-bingo/internal/pubsub"
	"telegram-bingo/internal/repository"
)

// DefaultListLimit caps ListActive.
const DefaultListLimit = 50

const drawLockTimeout = 5 * time.Second

// RoomConfig holds room policy.
type RoomConfig struct {
	Commission      decimal.Decimal
	CallInterval    time.Duration
	StrictFreeRooms bool
	MaxEntryFee     decimal.Decimal
}

// DefaultRoomConfig returns the production room policy.
func DefaultRoomConfig() RoomConfig {
	return RoomConfig{
		Commission:      decimal.NewFromFloat(0.10),
		CallInterval:    8 * time.Second,
		StrictFreeRooms: true,
		MaxEntryFee:     decimal.NewFromInt(10000),
	}
}

// CallScheduler starts the number-call loop of a room.
type CallScheduler interface {
	Schedule(roomID string)
}

// CreateRoomInput describes a new room.
type CreateRoomInput struct {
	HostID            string
	Name              string
	MaxPlayers        int
	EntryFee          decimal.Decimal
	TelegramEnabled   bool
	TelegramChannelID string
	// CallInterval overrides the configured cadence when positive.
	CallInterval time.Duration
}

// RoomService drives rooms through waiting, playing and completed.
// Every write goes through RoomStore.UpdateRoom, so invariants are checked
// against the version that is actually written.
type RoomService struct {
	rooms     repository.RoomStore
	cards     repository.CardStore
	wallet    *WalletService
	feed      *pubsub.Feed
	notifier  notify.Notifier
	scheduler CallScheduler
	draws     *lock.KeyedLock
	rand      bingo.Rand
	cfg       RoomConfig
}

// NewRoomService creates a RoomService. feed and notifier may be nil.
func NewRoomService(
	rooms repository.RoomStore,
	cards repository.CardStore,
	wallet *WalletService,
	feed *pubsub.Feed,
	notifier notify.Notifier,
	cfg RoomConfig,
) *RoomService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &RoomService{
		rooms:    rooms,
		cards:    cards,
		wallet:   wallet,
		feed:     feed,
		notifier: notifier,
		draws:    lock.NewKeyedLock(),
		rand:     bingo.DefaultRand,
		cfg:      cfg,
	}
}

// SetScheduler wires the number caller. Start does not schedule calls
// until one is set.
func (s *RoomService) SetScheduler(sch CallScheduler) {
	s.scheduler = sch
}

// SetRand replaces the draw source.
func (s *RoomService) SetRand(r bingo.Rand) {
	s.rand = r
}

// contribution is what one entry adds to the prize pool.
func (s *RoomService) contribution(fee decimal.Decimal) decimal.Decimal {
	return fee.Mul(decimal.NewFromInt(1).Sub(s.cfg.Commission)).Round(2)
}

// Create opens a waiting room.
func (s *RoomService) Create(ctx context.Context, in CreateRoomInput) (*model.GameRoom, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.EntryFee = in.EntryFee.Round(2)
	if err := s.validateCreate(in); err != nil {
		return nil, err
	}

	interval := s.cfg.CallInterval
	if in.CallInterval > 0 {
		interval = in.CallInterval
	}

	room := &model.GameRoom{
		ID:                   uuid.NewString(),
		Name:                 in.Name,
		HostID:               in.HostID,
		Players:              []model.Player{},
		MaxPlayers:           in.MaxPlayers,
		EntryFee:             in.EntryFee,
		PrizePool:            decimal.Zero,
		Status:               model.RoomWaiting,
		CalledNumbers:        []int{},
		NumberCallIntervalMs: interval.Milliseconds(),
		TelegramEnabled:      in.TelegramEnabled,
		TelegramChannelID:    strings.TrimSpace(in.TelegramChannelID),
		WinAmount:            decimal.Zero,
	}
	if err := s.rooms.CreateRoom(ctx, room); err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	metrics.RoomsCreated.Inc()
	log.Info().
		Str("room_id", room.ID).
		Str("host_id", room.HostID).
		Int("max_players", room.MaxPlayers).
		Str("entry_fee", room.EntryFee.StringFixed(2)).
		Msg("Room created")

	s.publish(ctx, room)
	s.notify("room_created", room, func() error { return s.notifier.RoomCreated(ctx, room) })
	return room, nil
}

func (s *RoomService) validateCreate(in CreateRoomInput) error {
	if in.HostID == "" {
		return apperr.Validation("host id is required")
	}
	if in.Name == "" {
		return apperr.Validation("room name is required")
	}
	if in.MaxPlayers < model.MinPlayers || in.MaxPlayers > model.MaxPlayers {
		return apperr.Validation("max players must be between %d and %d", model.MinPlayers, model.MaxPlayers)
	}
	if in.EntryFee.IsNegative() || in.EntryFee.GreaterThan(s.cfg.MaxEntryFee) {
		return apperr.Validation("entry fee must be between 0 and %s", s.cfg.MaxEntryFee.StringFixed(2))
	}
	if s.cfg.StrictFreeRooms && in.EntryFee.IsZero() && in.MaxPlayers > model.MaxFreeRoomPlayers {
		return apperr.Validation("free rooms allow at most %d players", model.MaxFreeRoomPlayers)
	}
	if in.CallInterval < 0 {
		return apperr.Validation("call interval must be positive")
	}
	if in.TelegramEnabled && strings.TrimSpace(in.TelegramChannelID) == "" {
		return apperr.Validation("telegram channel is required when telegram is enabled")
	}
	return nil
}

// Get returns the room.
func (s *RoomService) Get(ctx context.Context, roomID string) (*model.GameRoom, error) {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get room %s: %w", roomID, err)
	}
	return room, nil
}

// ListActive returns rooms not yet completed, newest first.
func (s *RoomService) ListActive(ctx context.Context, limit int) ([]*model.GameRoom, error) {
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}
	rooms, err := s.rooms.ListRooms(ctx, []model.RoomStatus{model.RoomWaiting, model.RoomStarting, model.RoomPlaying}, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return rooms, nil
}

// ListPlaying returns rooms whose number caller should be running.
func (s *RoomService) ListPlaying(ctx context.Context) ([]*model.GameRoom, error) {
	rooms, err := s.rooms.ListRooms(ctx, []model.RoomStatus{model.RoomPlaying}, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list playing rooms: %w", err)
	}
	return rooms, nil
}

// Subscribe calls fn with every new snapshot of the room until the returned
// function is called.
func (s *RoomService) Subscribe(roomID string, fn func(*model.GameRoom)) func() {
	if s.feed == nil {
		return func() {}
	}
	return s.feed.SubscribeRoom(roomID, fn)
}

func checkJoinable(room *model.GameRoom, playerID string) error {
	if room.Status != model.RoomWaiting {
		return ErrRoomNotWaiting
	}
	if room.HasPlayer(playerID) {
		return ErrAlreadyJoined
	}
	if room.IsFull() {
		return ErrRoomFull
	}
	return nil
}

// Join seats player in a waiting room. For paid rooms the entry fee is
// debited first; if the seat is then lost to a concurrent change the fee
// is refunded, so a failed join leaves the balance unchanged.
func (s *RoomService) Join(ctx context.Context, roomID string, player model.Player) (*model.GameRoom, error) {
	if player.ID == "" {
		return nil, apperr.Validation("player id is required")
	}
	room, err := s.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := checkJoinable(room, player.ID); err != nil {
		return nil, err
	}

	var bet *model.Transaction
	if !room.IsFree() {
		bet, err = s.wallet.PlaceBet(ctx, player.ID, roomID, room.EntryFee)
		if err != nil {
			return nil, err
		}
		player.EntryTxID = bet.ID
	}

	player.IsOnline = true
	player.JoinedAt = time.Now()
	updated, err := s.rooms.UpdateRoom(ctx, roomID, func(r *model.GameRoom) error {
		if err := checkJoinable(r, player.ID); err != nil {
			return err
		}
		r.Players = append(r.Players, player)
		r.PrizePool = r.PrizePool.Add(s.contribution(r.EntryFee))
		return nil
	})
	if err != nil {
		if bet != nil {
			s.refundEntry(ctx, roomID, player.ID, bet, "join failed")
		}
		if apperr.Kind(err) != nil {
			return nil, err
		}
		return nil, fmt.Errorf("failed to join room: %w", err)
	}

	metrics.PlayersJoined.Inc()
	log.Info().
		Str("room_id", roomID).
		Str("player_id", player.ID).
		Int("players", len(updated.Players)).
		Str("prize_pool", updated.PrizePool.StringFixed(2)).
		Msg("Player joined room")

	s.publish(ctx, updated)
	return updated, nil
}

func (s *RoomService) refundEntry(ctx context.Context, roomID, playerID string, bet *model.Transaction, reason string) {
	if _, err := s.wallet.Refund(ctx, playerID, roomID, bet.Amount, RefundReference(bet.ID), reason); err != nil {
		log.Error().
			Err(err).
			Str("room_id", roomID).
			Str("player_id", playerID).
			Str("bet_id", bet.ID).
			Msg("Failed to refund entry fee")
	}
}

// Leave removes a player from a waiting room, takes their contribution out
// of the pool and refunds the entry fee. When the refund cannot be made the
// player keeps their seat.
func (s *RoomService) Leave(ctx context.Context, roomID, playerID string) (*model.GameRoom, error) {
	room, err := s.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.EntryFee.IsPositive() && room.HasPlayer(playerID) {
		if err := s.wallet.checkCreditable(ctx, playerID); err != nil {
			return nil, err
		}
	}

	var left model.Player
	updated, err := s.rooms.UpdateRoom(ctx, roomID, func(r *model.GameRoom) error {
		if r.Status != model.RoomWaiting {
			return ErrRoomNotWaiting
		}
		p, ok := r.Player(playerID)
		if !ok {
			return ErrNotInRoom
		}
		left = p
		r.RemovePlayer(playerID)
		r.PrizePool = decimal.Max(r.PrizePool.Sub(s.contribution(r.EntryFee)), decimal.Zero)
		return nil
	})
	if err != nil {
		if apperr.Kind(err) != nil {
			return nil, err
		}
		return nil, fmt.Errorf("failed to leave room: %w", err)
	}

	if updated.EntryFee.IsPositive() {
		ref := ""
		if left.EntryTxID != "" {
			ref = RefundReference(left.EntryTxID)
		}
		if _, err := s.wallet.Refund(ctx, playerID, roomID, updated.EntryFee, ref, "left room"); err != nil {
			s.restorePlayer(ctx, roomID, left)
			if apperr.Kind(err) != nil {
				return nil, err
			}
			return nil, fmt.Errorf("failed to refund entry fee: %w", err)
		}
	}

	log.Info().
		Str("room_id", roomID).
		Str("player_id", playerID).
		Int("players", len(updated.Players)).
		Msg("Player left room")

	s.publish(ctx, updated)
	return updated, nil
}

// restorePlayer puts a player back after a leave whose refund failed.
func (s *RoomService) restorePlayer(ctx context.Context, roomID string, p model.Player) {
	restored, err := s.rooms.UpdateRoom(ctx, roomID, func(r *model.GameRoom) error {
		if r.HasPlayer(p.ID) {
			return nil
		}
		if r.Status != model.RoomWaiting {
			return ErrRoomNotWaiting
		}
		if r.IsFull() {
			return ErrRoomFull
		}
		r.Players = append(r.Players, p)
		r.PrizePool = r.PrizePool.Add(s.contribution(r.EntryFee))
		return nil
	})
	if err != nil {
		log.Error().
			Err(err).
			Str("room_id", roomID).
			Str("player_id", p.ID).
			Str("bet_id", p.EntryTxID).
			Msg("Failed to restore player after refund failure")
		return
	}
	s.publish(ctx, restored)
}

// Start moves a waiting room with enough players to playing and hands it to
// the number caller. Only the host may start.
func (s *RoomService) Start(ctx context.Context, roomID, requesterID string) (*model.GameRoom, error) {
	updated, err := s.rooms.UpdateRoom(ctx, roomID, func(r *model.GameRoom) error {
		if r.HostID != requesterID {
			return ErrNotHost
		}
		if !r.Status.CanTransitionTo(model.RoomPlaying) {
			return ErrRoomNotWaiting
		}
		if len(r.Players) < model.MinPlayers {
			return ErrNotEnoughPlayers
		}
		now := time.Now()
		r.Status = model.RoomPlaying
		r.GameStartedAt = &now
		return nil
	})
	if err != nil {
		if apperr.Kind(err) != nil {
			return nil, err
		}
		return nil, fmt.Errorf("failed to start room: %w", err)
	}

	log.Info().
		Str("room_id", roomID).
		Int("players", len(updated.Players)).
		Str("prize_pool", updated.PrizePool.StringFixed(2)).
		Msg("Game started")

	if s.scheduler != nil {
		s.scheduler.Schedule(roomID)
	}
	s.publish(ctx, updated)
	s.notify("game_started", updated, func() error { return s.notifier.GameStarted(ctx, updated) })
	return updated, nil
}

var errExhausted = errors.New("all numbers called")

// DrawNext calls one number from the complement of the room's calls. It
// reports exhausted when all 75 numbers are out; the room is then left
// unchanged for CompleteExhausted.
func (s *RoomService) DrawNext(ctx context.Context, roomID string) (int, bool, error) {
	var (
		number  int
		updated *model.GameRoom
	)
	err := s.draws.WithLockContext(ctx, roomID, drawLockTimeout, func() error {
		var err error
		updated, err = s.rooms.UpdateRoom(ctx, roomID, func(r *model.GameRoom) error {
			if r.Status != model.RoomPlaying {
				return ErrRoomNotPlaying
			}
			n, ok := bingo.DrawNext(s.rand, r.CalledNumbers)
			if !ok {
				return errExhausted
			}
			now := time.Now()
			number = n
			r.CalledNumbers = append(r.CalledNumbers, n)
			r.CurrentCall = &n
			r.LastCallTime = &now
			return nil
		})
		return err
	})
	switch {
	case errors.Is(err, errExhausted):
		return 0, true, nil
	case err != nil:
		if apperr.Kind(err) != nil {
			return 0, false, err
		}
		return 0, false, fmt.Errorf("failed to draw number: %w", err)
	}

	metrics.NumbersDrawn.Inc()
	log.Debug().
		Str("room_id", roomID).
		Int("number", number).
		Int("called", len(updated.CalledNumbers)).
		Msg("Number called")

	s.publish(ctx, updated)
	s.notify("number_called", updated, func() error { return s.notifier.NumberCalled(ctx, updated, number) })
	return number, false, nil
}

// CompleteExhausted ends a playing room with every number called and no
// winner.
func (s *RoomService) CompleteExhausted(ctx context.Context, roomID string) (*model.GameRoom, error) {
	updated, err := s.rooms.UpdateRoom(ctx, roomID, func(r *model.GameRoom) error {
		if r.Status != model.RoomPlaying {
			return ErrRoomNotPlaying
		}
		if len(r.CalledNumbers) < model.MaxCallNumber {
			return ErrNumbersRemain
		}
		now := time.Now()
		r.Status = model.RoomCompleted
		r.GameEndedAt = &now
		return nil
	})
	if err != nil {
		if apperr.Kind(err) != nil {
			return nil, err
		}
		return nil, fmt.Errorf("failed to complete room: %w", err)
	}

	metrics.GamesCompleted.WithLabelValues(metrics.OutcomeExhausted).Inc()
	log.Info().Str("room_id", roomID).Msg("Game completed without winner")

	s.publish(ctx, updated)
	return updated, nil
}

// DeclareWinner settles a playing room: it records the winner, completes the
// room and credits prizePool × percentage to the winner's wallet. A room is
// settled at most once; later calls fail with ErrAlreadySettled.
func (s *RoomService) DeclareWinner(ctx context.Context, roomID, winnerID, pattern string, percentage decimal.Decimal) (*model.GameRoom, error) {
	if !percentage.IsPositive() || percentage.GreaterThan(decimal.NewFromInt(1)) {
		return nil, apperr.Validation("win percentage must be in (0, 1]")
	}
	if pattern == "" {
		return nil, apperr.Validation("win pattern is required")
	}

	updated, err := s.rooms.UpdateRoom(ctx, roomID, func(r *model.GameRoom) error {
		if r.Status == model.RoomCompleted {
			return ErrAlreadySettled
		}
		if !r.Status.CanTransitionTo(model.RoomCompleted) {
			return ErrRoomNotPlaying
		}
		if !r.HasPlayer(winnerID) {
			return ErrNotInRoom
		}
		now := time.Now()
		r.Status = model.RoomCompleted
		r.GameEndedAt = &now
		r.WinnerID = winnerID
		r.WinPattern = pattern
		r.WinAmount = r.PrizePool.Mul(percentage).Round(2)
		return nil
	})
	if err != nil {
		if apperr.Kind(err) != nil {
			return nil, err
		}
		return nil, fmt.Errorf("failed to settle room: %w", err)
	}

	metrics.GamesCompleted.WithLabelValues(metrics.OutcomeWinner).Inc()
	log.Info().
		Str("room_id", roomID).
		Str("winner_id", winnerID).
		Str("pattern", pattern).
		Str("win_amount", updated.WinAmount.StringFixed(2)).
		Msg("Winner declared")

	if updated.WinAmount.IsPositive() {
		if _, err := s.wallet.ProcessWin(ctx, winnerID, roomID, updated.WinAmount, pattern); err != nil {
			log.Error().
				Err(err).
				Str("room_id", roomID).
				Str("winner_id", winnerID).
				Msg("Failed to credit prize")
			s.publish(ctx, updated)
			return updated, fmt.Errorf("room settled but prize credit failed: %w", err)
		}
	}

	winner, _ := updated.Player(winnerID)
	s.publish(ctx, updated)
	s.notify("winner_declared", updated, func() error { return s.notifier.WinnerDeclared(ctx, updated, winner) })
	return updated, nil
}

// RetryPayout re-attempts the prize credit of a settled room. The payout
// reference makes it a no-op when the credit already went through.
func (s *RoomService) RetryPayout(ctx context.Context, roomID string) (*model.Transaction, error) {
	room, err := s.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.Status != model.RoomCompleted || room.WinnerID == "" {
		return nil, apperr.Conflict("room %s has no winner to pay", roomID)
	}
	if !room.WinAmount.IsPositive() {
		return nil, apperr.Conflict("room %s has nothing to pay", roomID)
	}
	return s.wallet.ProcessWin(ctx, room.WinnerID, roomID, room.WinAmount, room.WinPattern)
}

// ClaimWin verifies a player's bingo against the room's call history and
// settles the room when the issued card holds a winning pattern. Client-side
// marks are never trusted.
func (s *RoomService) ClaimWin(ctx context.Context, roomID, playerID string) (*model.GameRoom, bingo.WinResult, error) {
	room, err := s.Get(ctx, roomID)
	if err != nil {
		return nil, bingo.WinResult{}, err
	}
	switch {
	case room.Status == model.RoomCompleted:
		return nil, bingo.WinResult{}, ErrAlreadySettled
	case room.Status != model.RoomPlaying:
		return nil, bingo.WinResult{}, ErrRoomNotPlaying
	case !room.HasPlayer(playerID):
		return nil, bingo.WinResult{}, ErrNotInRoom
	}

	card, err := s.cards.GetCard(ctx, roomID, playerID)
	if err != nil {
		if errors.Is(err, repository.ErrCardNotFound) {
			return nil, bingo.WinResult{}, ErrNoCard
		}
		return nil, bingo.WinResult{}, fmt.Errorf("failed to load card: %w", err)
	}
	if err := bingo.ValidateCard(card); err != nil {
		return nil, bingo.WinResult{}, fmt.Errorf("card of player %s: %w", playerID, err)
	}

	result := bingo.Evaluate(bingo.ApplyCalls(card, room.CalledNumbers))
	if !result.HasWon {
		log.Info().
			Str("room_id", roomID).
			Str("player_id", playerID).
			Int("called", len(room.CalledNumbers)).
			Msg("Rejected bingo claim")
		return nil, result, ErrNoWinningPattern
	}

	settled, err := s.DeclareWinner(ctx, roomID, playerID, result.Pattern, result.Percentage)
	return settled, result, err
}

func (s *RoomService) publish(ctx context.Context, room *model.GameRoom) {
	if s.feed != nil {
		s.feed.PublishRoom(ctx, room)
	}
}

// notify runs a notification and logs its failure. Game state never
// depends on the outcome.
func (s *RoomService) notify(kind string, room *model.GameRoom, send func() error) {
	if err := send(); err != nil {
		log.Warn().
			Err(err).
			Str("notification", kind).
			Str("room_id", room.ID).
			Msg("Notification failed")
	}
}
