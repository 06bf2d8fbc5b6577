// Package service implements the room lifecycle, wallet ledger, card
// registry and statistics on top of the repository stores.
package service

import (
	"fmt"

	"telegram-bingo/internal/pkg/apperr"
)

// Room errors.
var (
	ErrRoomFull         = fmt.Errorf("%w: room is full", apperr.ErrConflict)
	ErrAlreadyJoined    = fmt.Errorf("%w: player already in room", apperr.ErrConflict)
	ErrNotInRoom        = fmt.Errorf("%w: player is not in room", apperr.ErrConflict)
	ErrRoomNotWaiting   = fmt.Errorf("%w: room is not accepting players", apperr.ErrConflict)
	ErrRoomNotPlaying   = fmt.Errorf("%w: room is not playing", apperr.ErrConflict)
	ErrNotEnoughPlayers = fmt.Errorf("%w: not enough players to start", apperr.ErrConflict)
	ErrAlreadySettled   = fmt.Errorf("%w: room already settled", apperr.ErrConflict)
	ErrNoWinningPattern = fmt.Errorf("%w: card has no winning pattern", apperr.ErrConflict)
	ErrNumbersRemain    = fmt.Errorf("%w: numbers remain to be called", apperr.ErrConflict)
	ErrNotHost          = fmt.Errorf("%w: only the host can start the game", apperr.ErrPermission)
	ErrNoCard           = fmt.Errorf("card %w", apperr.ErrNotFound)
)

// Wallet errors.
var (
	ErrInvalidAmount     = fmt.Errorf("%w: amount must be positive", apperr.ErrValidation)
	ErrReasonRequired    = fmt.Errorf("%w: reason is required", apperr.ErrValidation)
	ErrWrongTransaction  = fmt.Errorf("%w: reference belongs to another transaction type", apperr.ErrValidation)
	ErrDepositNotPending = fmt.Errorf("%w: deposit is no longer pending", apperr.ErrConflict)
	ErrWalletBusy        = fmt.Errorf("%w: wallet is busy, try again", apperr.ErrConflict)
)
