// Package model defines the data models for the bingo server.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is assigned to lazily created wallets.
const DefaultCurrency = "ETB"

// WalletStatus is the lifecycle state of a wallet.
type WalletStatus string

// Wallet statuses.
const (
	WalletActive    WalletStatus = "active"
	WalletSuspended WalletStatus = "suspended"
	WalletClosed    WalletStatus = "closed"
)

// Wallet holds a user's balance. One wallet per user.
type Wallet struct {
	UserID    string          `json:"userId" db:"user_id"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	Currency  string          `json:"currency" db:"currency"`
	Status    WalletStatus    `json:"status" db:"status"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time       `json:"updatedAt" db:"updated_at"`
}

// TransactionType categorizes a ledger entry.
type TransactionType string

// Transaction types.
const (
	TxDeposit       TransactionType = "deposit"
	TxWithdrawal    TransactionType = "withdrawal"
	TxBet           TransactionType = "bet"
	TxWin           TransactionType = "win"
	TxRefund        TransactionType = "refund"
	TxBonus         TransactionType = "bonus"
	TxFee           TransactionType = "fee"
	TxAdminTransfer TransactionType = "admin_transfer"
)

// IsDebit reports whether the type removes money from the wallet.
func (t TransactionType) IsDebit() bool {
	switch t {
	case TxWithdrawal, TxBet, TxFee:
		return true
	}
	return false
}

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TxDeposit, TxWithdrawal, TxBet, TxWin, TxRefund, TxBonus, TxFee, TxAdminTransfer:
		return true
	}
	return false
}

// Delta returns the signed balance change for amount under this type.
func (t TransactionType) Delta(amount decimal.Decimal) decimal.Decimal {
	if t.IsDebit() {
		return amount.Neg()
	}
	return amount
}

// TransactionStatus is the settlement state of a ledger entry.
type TransactionStatus string

// Transaction statuses.
const (
	TxPending    TransactionStatus = "pending"
	TxProcessing TransactionStatus = "processing"
	TxCompleted  TransactionStatus = "completed"
	TxFailed     TransactionStatus = "failed"
	TxCancelled  TransactionStatus = "cancelled"
)

// IsTerminal reports whether no further transition is allowed.
func (s TransactionStatus) IsTerminal() bool {
	return s == TxCompleted || s == TxFailed || s == TxCancelled
}

// CanTransitionTo reports whether s may move to next.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	switch s {
	case TxPending:
		return next == TxProcessing || next == TxCompleted || next == TxFailed || next == TxCancelled
	case TxProcessing:
		return next == TxCompleted || next == TxFailed
	}
	return false
}

// TransactionMetadata carries optional context for a ledger entry.
type TransactionMetadata struct {
	GameID           string          `json:"gameId,omitempty"`
	PaymentMethod    string          `json:"paymentMethod,omitempty"`
	PaymentReference string          `json:"paymentReference,omitempty"`
	Fee              decimal.Decimal `json:"fee"`
	Multiplier       decimal.Decimal `json:"multiplier"`
	Pattern          string          `json:"pattern,omitempty"`
	Reason           string          `json:"reason,omitempty"`
	FailureReason    string          `json:"failureReason,omitempty"`
}

// Transaction is an append-only ledger entry. Amount is always positive;
// the direction comes from Type.
type Transaction struct {
	ID           string              `json:"id" db:"id"`
	UserID       string              `json:"userId" db:"user_id"`
	Type         TransactionType     `json:"type" db:"type"`
	Amount       decimal.Decimal     `json:"amount" db:"amount"`
	Status       TransactionStatus   `json:"status" db:"status"`
	Description  string              `json:"description" db:"description"`
	Reference    string              `json:"reference,omitempty" db:"reference"`
	Metadata     TransactionMetadata `json:"metadata" db:"metadata"`
	BalanceAfter *decimal.Decimal    `json:"balanceAfter,omitempty" db:"balance_after"`
	CreatedAt    time.Time           `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time           `json:"updatedAt" db:"updated_at"`
}

// Delta returns the signed balance change this transaction applies.
func (t *Transaction) Delta() decimal.Decimal {
	return t.Type.Delta(t.Amount)
}

// WinnerRank is one row of the top winners board.
type WinnerRank struct {
	UserID   string          `json:"userId" db:"user_id"`
	TotalWon decimal.Decimal `json:"totalWon" db:"total_won"`
	Wins     int             `json:"wins" db:"wins"`
}
