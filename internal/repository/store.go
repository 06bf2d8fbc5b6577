// Package repository provides data access layer implementations.
//
// The Store interfaces are the document-store boundary of the game core.
// PostgreSQL implementations live in this package; an in-memory
// implementation with the same semantics lives in repository/memory.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"telegram-bingo/internal/model"
	"telegram-bingo/internal/pkg/apperr"
)

// MaxUpdateAttempts bounds the optimistic retry loop of UpdateRoom.
const MaxUpdateAttempts = 5

// Common errors for repository operations.
var (
	ErrRoomNotFound        = fmt.Errorf("room %w", apperr.ErrNotFound)
	ErrCardNotFound        = fmt.Errorf("card %w", apperr.ErrNotFound)
	ErrWalletNotFound      = fmt.Errorf("wallet %w", apperr.ErrNotFound)
	ErrTransactionNotFound = fmt.Errorf("transaction %w", apperr.ErrNotFound)

	ErrVersionConflict      = fmt.Errorf("%w: room was modified concurrently", apperr.ErrConflict)
	ErrRoomExists           = fmt.Errorf("%w: room already exists", apperr.ErrConflict)
	ErrCardExists           = fmt.Errorf("%w: card already issued", apperr.ErrConflict)
	ErrDuplicateReference   = fmt.Errorf("%w: duplicate transaction reference", apperr.ErrConflict)
	ErrTransactionFinalized = fmt.Errorf("%w: transaction already finalized", apperr.ErrConflict)
	ErrWalletInactive       = fmt.Errorf("%w: wallet is not active", apperr.ErrConflict)
)

// RoomMutator edits a private copy of a room. Returning an error aborts the
// update and nothing is written.
type RoomMutator func(room *model.GameRoom) error

// RoomStore persists game rooms.
type RoomStore interface {
	CreateRoom(ctx context.Context, room *model.GameRoom) error
	GetRoom(ctx context.Context, id string) (*model.GameRoom, error)
	// UpdateRoom reads the room, applies fn to a copy and writes it only if
	// the version is unchanged, retrying up to MaxUpdateAttempts times.
	// The written room is returned with its new version.
	UpdateRoom(ctx context.Context, id string, fn RoomMutator) (*model.GameRoom, error)
	// ListRooms returns rooms in any of statuses, newest first.
	ListRooms(ctx context.Context, statuses []model.RoomStatus, limit int) ([]*model.GameRoom, error)
	CountRooms(ctx context.Context, status model.RoomStatus, since time.Time) (int, error)
}

// CardStore persists issued cards, at most one per player per room.
type CardStore interface {
	// CreateCard returns ErrCardExists when the player already holds a card in the room.
	CreateCard(ctx context.Context, card *model.BingoCard) error
	GetCard(ctx context.Context, roomID, playerID string) (*model.BingoCard, error)
}

// LedgerStore persists wallets and their transactions. Balance changes only
// happen through CommitTransaction.
type LedgerStore interface {
	GetOrCreateWallet(ctx context.Context, userID string) (*model.Wallet, error)
	GetWallet(ctx context.Context, userID string) (*model.Wallet, error)
	SetWalletStatus(ctx context.Context, userID string, status model.WalletStatus) (*model.Wallet, error)

	// CreateTransaction records tx as pending. A non-empty Reference must be
	// unique; ErrDuplicateReference is returned otherwise.
	CreateTransaction(ctx context.Context, tx *model.Transaction) error
	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)
	GetTransactionByReference(ctx context.Context, reference string) (*model.Transaction, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]*model.Transaction, error)

	// CommitTransaction applies the transaction's delta to the wallet and marks
	// it completed in one atomic step. It fails with apperr.ErrInsufficientBalance
	// when the balance would go negative, leaving both records untouched.
	CommitTransaction(ctx context.Context, id string) (*model.Transaction, *model.Wallet, error)
	// FailTransaction marks a pending transaction failed with reason.
	FailTransaction(ctx context.Context, id, reason string) (*model.Transaction, error)

	TopWinners(ctx context.Context, since time.Time, limit int) ([]*model.WinnerRank, error)
	SumCompleted(ctx context.Context, txType model.TransactionType, since time.Time) (decimal.Decimal, error)
}

// NextBalance validates tx against w and returns the balance after applying it.
// Both stores call it inside their atomic section.
func NextBalance(w *model.Wallet, tx *model.Transaction) (decimal.Decimal, error) {
	if tx.Status.IsTerminal() {
		return decimal.Zero, ErrTransactionFinalized
	}
	switch w.Status {
	case model.WalletClosed:
		return decimal.Zero, ErrWalletInactive
	case model.WalletSuspended:
		if tx.Type.IsDebit() {
			return decimal.Zero, ErrWalletInactive
		}
	}

	next := w.Balance.Add(tx.Delta())
	if next.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: balance %s, requested %s",
			apperr.ErrInsufficientBalance, w.Balance.StringFixed(2), tx.Amount.StringFixed(2))
	}
	return next, nil
}
