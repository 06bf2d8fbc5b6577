package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"telegram-bingo/internal/metrics"
	"telegram-bingo/internal/model"
	"telegram-bingo/internal/pkg/apperr"
	"telegram-bingo/internal/pkg/lock"
	"telegram-bingo/internal/pubsub"
	"telegram-bingo/internal/repository"
)

// History page bounds.
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

const walletLockTimeout = 5 * time.Second

// WalletLimits bounds deposits and withdrawals.
type WalletLimits struct {
	MinDeposit    decimal.Decimal
	MaxDeposit    decimal.Decimal
	MinWithdrawal decimal.Decimal
	MaxWithdrawal decimal.Decimal
}

// DefaultWalletLimits returns the production limits.
func DefaultWalletLimits() WalletLimits {
	return WalletLimits{
		MinDeposit:    decimal.NewFromInt(1),
		MaxDeposit:    decimal.NewFromInt(100000),
		MinWithdrawal: decimal.NewFromInt(50),
		MaxWithdrawal: decimal.NewFromInt(50000),
	}
}

// WalletService is the wallet ledger. Every balance change is recorded as a
// pending transaction first and then committed atomically with the balance
// update; a rejected commit leaves a failed record behind.
type WalletService struct {
	ledger repository.LedgerStore
	feed   *pubsub.Feed
	limits WalletLimits
	locks  *lock.KeyedLock

	lockTimeout time.Duration
}

// NewWalletService creates a WalletService. feed may be nil.
func NewWalletService(ledger repository.LedgerStore, feed *pubsub.Feed, limits WalletLimits) *WalletService {
	return &WalletService{
		ledger: ledger,
		feed:   feed,
		limits: limits,
		locks:  lock.NewKeyedLock(),

		lockTimeout: walletLockTimeout,
	}
}

// GetOrCreate returns the user's wallet, opening one with a zero balance on
// first access.
func (s *WalletService) GetOrCreate(ctx context.Context, userID string) (*model.Wallet, error) {
	if userID == "" {
		return nil, apperr.Validation("user id is required")
	}
	w, err := s.ledger.GetOrCreateWallet(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return w, nil
}

// checkCreditable fails with ErrWalletInactive when userID's wallet cannot
// receive credits.
func (s *WalletService) checkCreditable(ctx context.Context, userID string) error {
	w, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}
	if w.Status == model.WalletClosed {
		return repository.ErrWalletInactive
	}
	return nil
}

// Balance returns the user's current balance.
func (s *WalletService) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	w, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return w.Balance, nil
}

// History returns the user's transactions, newest first.
func (s *WalletService) History(ctx context.Context, userID string, limit int) ([]*model.Transaction, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	limit = min(limit, MaxHistoryLimit)
	txs, err := s.ledger.ListTransactions(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}

// SetStatus suspends, closes or reactivates a wallet.
func (s *WalletService) SetStatus(ctx context.Context, userID string, status model.WalletStatus) (*model.Wallet, error) {
	switch status {
	case model.WalletActive, model.WalletSuspended, model.WalletClosed:
	default:
		return nil, apperr.Validation("unknown wallet status %q", status)
	}
	if _, err := s.GetOrCreate(ctx, userID); err != nil {
		return nil, err
	}
	w, err := s.ledger.SetWalletStatus(ctx, userID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to set wallet status: %w", err)
	}
	s.publish(ctx, w, nil)
	return w, nil
}

// PlaceBet debits an entry fee for roomID.
func (s *WalletService) PlaceBet(ctx context.Context, userID, roomID string, amount decimal.Decimal) (*model.Transaction, error) {
	return s.apply(ctx, &model.Transaction{
		UserID:      userID,
		Type:        model.TxBet,
		Amount:      amount,
		Description: "Bingo entry fee",
		Metadata:    model.TransactionMetadata{GameID: roomID},
	})
}

// ProcessWin credits a prize for roomID. The credit is recorded under the
// reference win-<roomID>, so a room pays out at most once; repeating the
// call returns the original transaction.
func (s *WalletService) ProcessWin(ctx context.Context, userID, roomID string, amount decimal.Decimal, pattern string) (*model.Transaction, error) {
	return s.applyOnce(ctx, &model.Transaction{
		UserID:      userID,
		Type:        model.TxWin,
		Amount:      amount,
		Description: fmt.Sprintf("Bingo win: %s", pattern),
		Reference:   WinReference(roomID),
		Metadata:    model.TransactionMetadata{GameID: roomID, Pattern: pattern},
	})
}

// WinReference is the idempotency key of a room's prize payout.
func WinReference(roomID string) string {
	return "win-" + roomID
}

// RefundReference is the idempotency key of the refund of a bet.
func RefundReference(betTxID string) string {
	return "refund-" + betTxID
}

// Refund credits amount back to the user. A non-empty reference makes the
// refund idempotent.
func (s *WalletService) Refund(ctx context.Context, userID, roomID string, amount decimal.Decimal, reference, reason string) (*model.Transaction, error) {
	return s.applyOnce(ctx, &model.Transaction{
		UserID:      userID,
		Type:        model.TxRefund,
		Amount:      amount,
		Description: "Bingo entry refund",
		Reference:   reference,
		Metadata:    model.TransactionMetadata{GameID: roomID, Reason: reason},
	})
}

// ProcessDeposit credits a completed deposit in one step.
func (s *WalletService) ProcessDeposit(ctx context.Context, userID string, amount decimal.Decimal, method, reference string) (*model.Transaction, error) {
	if err := checkRange("deposit", amount, s.limits.MinDeposit, s.limits.MaxDeposit); err != nil {
		return nil, err
	}
	return s.applyOnce(ctx, &model.Transaction{
		UserID:      userID,
		Type:        model.TxDeposit,
		Amount:      amount,
		Description: "Deposit",
		Reference:   reference,
		Metadata:    model.TransactionMetadata{PaymentMethod: method, PaymentReference: reference},
	})
}

// ProcessWithdrawal debits a withdrawal.
func (s *WalletService) ProcessWithdrawal(ctx context.Context, userID string, amount decimal.Decimal, method string) (*model.Transaction, error) {
	if err := checkRange("withdrawal", amount, s.limits.MinWithdrawal, s.limits.MaxWithdrawal); err != nil {
		return nil, err
	}
	return s.apply(ctx, &model.Transaction{
		UserID:      userID,
		Type:        model.TxWithdrawal,
		Amount:      amount,
		Description: "Withdrawal",
		Metadata:    model.TransactionMetadata{PaymentMethod: method},
	})
}

// GrantBonus credits a bonus. A reason is mandatory.
func (s *WalletService) GrantBonus(ctx context.Context, userID string, amount decimal.Decimal, reason string) (*model.Transaction, error) {
	if reason == "" {
		return nil, ErrReasonRequired
	}
	return s.apply(ctx, &model.Transaction{
		UserID:      userID,
		Type:        model.TxBonus,
		Amount:      amount,
		Description: "Bonus: " + reason,
		Metadata:    model.TransactionMetadata{Reason: reason},
	})
}

// AdminTransfer credits amount to userID on behalf of adminID.
func (s *WalletService) AdminTransfer(ctx context.Context, adminID, userID string, amount decimal.Decimal, reason string) (*model.Transaction, error) {
	if reason == "" {
		return nil, ErrReasonRequired
	}
	return s.apply(ctx, &model.Transaction{
		UserID:      userID,
		Type:        model.TxAdminTransfer,
		Amount:      amount,
		Description: fmt.Sprintf("Admin transfer by %s", adminID),
		Metadata:    model.TransactionMetadata{Reason: reason},
	})
}

// InitiateDeposit records a pending deposit awaiting gateway confirmation.
func (s *WalletService) InitiateDeposit(ctx context.Context, userID string, amount decimal.Decimal, method, reference string) (*model.Transaction, error) {
	if reference == "" {
		return nil, apperr.Validation("deposit reference is required")
	}
	if err := checkRange("deposit", amount, s.limits.MinDeposit, s.limits.MaxDeposit); err != nil {
		return nil, err
	}
	if _, err := s.GetOrCreate(ctx, userID); err != nil {
		return nil, err
	}

	tx := &model.Transaction{
		UserID:      userID,
		Type:        model.TxDeposit,
		Amount:      amount.Round(2),
		Status:      model.TxPending,
		Description: "Deposit",
		Reference:   reference,
		Metadata:    model.TransactionMetadata{PaymentMethod: method, PaymentReference: reference},
	}
	if err := s.ledger.CreateTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to record deposit: %w", err)
	}

	log.Info().
		Str("user_id", userID).
		Str("reference", reference).
		Str("amount", tx.Amount.StringFixed(2)).
		Msg("Deposit initiated")
	return tx, nil
}

// CompleteDeposit credits a pending deposit. Completing an already
// completed deposit returns it without crediting again.
func (s *WalletService) CompleteDeposit(ctx context.Context, reference string) (*model.Transaction, error) {
	tx, err := s.pendingDeposit(ctx, reference)
	if err != nil || tx.Status == model.TxCompleted {
		return tx, err
	}

	if err := s.lockWallet(ctx, tx.UserID); err != nil {
		return nil, err
	}
	defer s.locks.Unlock(tx.UserID)

	done, w, err := s.ledger.CommitTransaction(ctx, tx.ID)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionFinalized) {
			// Lost a race with another completion.
			return s.pendingDeposit(ctx, reference)
		}
		return nil, s.fail(ctx, tx, err)
	}
	metrics.LedgerTransactions.WithLabelValues(string(done.Type), string(done.Status)).Inc()
	s.publish(ctx, w, done)

	log.Info().
		Str("user_id", done.UserID).
		Str("reference", reference).
		Str("balance", w.Balance.StringFixed(2)).
		Msg("Deposit completed")
	return done, nil
}

// FailDeposit marks a pending deposit failed. The wallet is not touched.
func (s *WalletService) FailDeposit(ctx context.Context, reference, reason string) (*model.Transaction, error) {
	tx, err := s.pendingDeposit(ctx, reference)
	if err != nil {
		return nil, err
	}
	if tx.Status == model.TxCompleted {
		return nil, ErrDepositNotPending
	}
	failed, err := s.ledger.FailTransaction(ctx, tx.ID, reason)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionFinalized) {
			return nil, ErrDepositNotPending
		}
		return nil, fmt.Errorf("failed to fail deposit: %w", err)
	}
	metrics.LedgerTransactions.WithLabelValues(string(failed.Type), string(failed.Status)).Inc()
	return failed, nil
}

// pendingDeposit loads the deposit under reference. A completed deposit is
// returned as is; failed or cancelled ones are rejected.
func (s *WalletService) pendingDeposit(ctx context.Context, reference string) (*model.Transaction, error) {
	tx, err := s.ledger.GetTransactionByReference(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("failed to load deposit %s: %w", reference, err)
	}
	if tx.Type != model.TxDeposit {
		return nil, ErrWrongTransaction
	}
	switch tx.Status {
	case model.TxFailed, model.TxCancelled:
		return nil, ErrDepositNotPending
	}
	return tx, nil
}

// applyOnce is apply keyed by tx.Reference: when a transaction with the
// same reference already completed, it is returned instead.
func (s *WalletService) applyOnce(ctx context.Context, tx *model.Transaction) (*model.Transaction, error) {
	done, err := s.apply(ctx, tx)
	if !errors.Is(err, repository.ErrDuplicateReference) {
		return done, err
	}
	prev, getErr := s.ledger.GetTransactionByReference(ctx, tx.Reference)
	if getErr != nil {
		return nil, fmt.Errorf("failed to load transaction %s: %w", tx.Reference, getErr)
	}
	if prev.Status != model.TxCompleted || prev.UserID != tx.UserID {
		return nil, err
	}
	return prev, nil
}

// apply records tx as pending and commits it.
func (s *WalletService) apply(ctx context.Context, tx *model.Transaction) (*model.Transaction, error) {
	if tx.UserID == "" {
		return nil, apperr.Validation("user id is required")
	}
	tx.Amount = tx.Amount.Round(2)
	if !tx.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if _, err := s.GetOrCreate(ctx, tx.UserID); err != nil {
		return nil, err
	}

	if err := s.lockWallet(ctx, tx.UserID); err != nil {
		return nil, err
	}
	defer s.locks.Unlock(tx.UserID)

	tx.Status = model.TxPending
	if err := s.ledger.CreateTransaction(ctx, tx); err != nil {
		if errors.Is(err, repository.ErrDuplicateReference) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}

	done, w, err := s.ledger.CommitTransaction(ctx, tx.ID)
	if err != nil {
		return nil, s.fail(ctx, tx, err)
	}
	metrics.LedgerTransactions.WithLabelValues(string(done.Type), string(done.Status)).Inc()
	s.publish(ctx, w, done)

	log.Debug().
		Str("user_id", done.UserID).
		Str("type", string(done.Type)).
		Str("amount", done.Amount.StringFixed(2)).
		Str("balance", w.Balance.StringFixed(2)).
		Msg("Ledger transaction completed")
	return done, nil
}

// lockWallet serialises ledger writes for userID within this process.
func (s *WalletService) lockWallet(ctx context.Context, userID string) error {
	err := s.locks.LockContext(ctx, userID, s.lockTimeout)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, lock.ErrLockTimeout):
		return ErrWalletBusy
	default:
		return fmt.Errorf("failed to lock wallet: %w", err)
	}
}

// fail marks tx failed after a rejected commit and returns cause.
func (s *WalletService) fail(ctx context.Context, tx *model.Transaction, cause error) error {
	if _, err := s.ledger.FailTransaction(ctx, tx.ID, cause.Error()); err != nil {
		log.Error().
			Err(err).
			Str("transaction_id", tx.ID).
			Msg("Failed to mark transaction failed")
	} else {
		metrics.LedgerTransactions.WithLabelValues(string(tx.Type), string(model.TxFailed)).Inc()
	}

	if apperr.Kind(cause) != nil {
		return cause
	}
	return fmt.Errorf("failed to commit %s: %w", tx.Type, cause)
}

func (s *WalletService) publish(ctx context.Context, w *model.Wallet, tx *model.Transaction) {
	if s.feed == nil || w == nil {
		return
	}
	s.feed.PublishWallet(ctx, pubsub.WalletEvent{Wallet: w, Transaction: tx})
}

func checkRange(what string, amount, lo, hi decimal.Decimal) error {
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if amount.LessThan(lo) || amount.GreaterThan(hi) {
		return apperr.Validation("%s must be between %s and %s", what, lo.StringFixed(2), hi.StringFixed(2))
	}
	return nil
}
