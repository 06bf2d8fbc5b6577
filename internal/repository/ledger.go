package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"telegram-bingo/internal/model"
)

const walletColumns = `user_id, balance, currency, status, created_at, updated_at`

const transactionColumns = `id, user_id, type, amount, status, description, reference,
	metadata, balance_after, created_at, updated_at`

// LedgerRepository handles wallets and transactions.
type LedgerRepository struct {
	pool     *pgxpool.Pool
	currency string
}

// NewLedgerRepository creates a new LedgerRepository instance. New wallets
// are opened in currency.
func NewLedgerRepository(pool *pgxpool.Pool, currency string) *LedgerRepository {
	if currency == "" {
		currency = model.DefaultCurrency
	}
	return &LedgerRepository{pool: pool, currency: currency}
}

func scanWallet(row pgx.Row) (*model.Wallet, error) {
	var w model.Wallet
	err := row.Scan(&w.UserID, &w.Balance, &w.Currency, &w.Status, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	var (
		tx           model.Transaction
		reference    *string
		balanceAfter decimal.NullDecimal
	)
	err := row.Scan(
		&tx.ID,
		&tx.UserID,
		&tx.Type,
		&tx.Amount,
		&tx.Status,
		&tx.Description,
		&reference,
		&tx.Metadata,
		&balanceAfter,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if reference != nil {
		tx.Reference = *reference
	}
	if balanceAfter.Valid {
		b := balanceAfter.Decimal
		tx.BalanceAfter = &b
	}
	return &tx, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// GetOrCreateWallet returns the user's wallet, opening an empty one on first access.
func (r *LedgerRepository) GetOrCreateWallet(ctx context.Context, userID string) (*model.Wallet, error) {
	const query = `
		INSERT INTO wallets (user_id, balance, currency, status, created_at, updated_at)
		VALUES ($1, 0, $2, 'active', NOW(), NOW())
		ON CONFLICT (user_id) DO NOTHING
	`

	if _, err := r.pool.Exec(ctx, query, userID, r.currency); err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}
	return r.GetWallet(ctx, userID)
}

// GetWallet retrieves a wallet by user ID.
// Returns ErrWalletNotFound if the wallet does not exist.
func (r *LedgerRepository) GetWallet(ctx context.Context, userID string) (*model.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1`

	w, err := scanWallet(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return w, nil
}

// SetWalletStatus changes a wallet's status.
func (r *LedgerRepository) SetWalletStatus(ctx context.Context, userID string, status model.WalletStatus) (*model.Wallet, error) {
	query := `UPDATE wallets SET status = $2, updated_at = NOW() WHERE user_id = $1 RETURNING ` + walletColumns

	w, err := scanWallet(r.pool.QueryRow(ctx, query, userID, string(status)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to set wallet status: %w", err)
	}
	return w, nil
}

// CreateTransaction records a pending transaction. ID and timestamps are
// filled in when empty.
func (r *LedgerRepository) CreateTransaction(ctx context.Context, tx *model.Transaction) error {
	const query = `
		INSERT INTO transactions (id, user_id, type, amount, status, description, reference, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`

	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.Status == "" {
		tx.Status = model.TxPending
	}
	now := time.Now()
	tx.CreatedAt = now
	tx.UpdatedAt = now

	_, err := r.pool.Exec(ctx, query,
		tx.ID,
		tx.UserID,
		string(tx.Type),
		tx.Amount,
		string(tx.Status),
		tx.Description,
		nullIfEmpty(tx.Reference),
		tx.Metadata,
		now,
	)
	if err != nil {
		switch pgErrorCode(err) {
		case pgUniqueViolation:
			return ErrDuplicateReference
		case pgForeignKeyViolation:
			return ErrWalletNotFound
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// GetTransaction retrieves a transaction by ID.
func (r *LedgerRepository) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	return r.getTransaction(ctx, `id = $1`, id)
}

// GetTransactionByReference retrieves a transaction by its idempotency reference.
func (r *LedgerRepository) GetTransactionByReference(ctx context.Context, reference string) (*model.Transaction, error) {
	return r.getTransaction(ctx, `reference = $1`, reference)
}

func (r *LedgerRepository) getTransaction(ctx context.Context, where string, arg any) (*model.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` + where

	tx, err := scanTransaction(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return tx, nil
}

// ListTransactions retrieves a user's transactions, newest first.
func (r *LedgerRepository) ListTransactions(ctx context.Context, userID string, limit int) ([]*model.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*model.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, nil
}

// CommitTransaction locks the transaction and wallet rows, applies the
// delta and completes the transaction in a single database transaction.
func (r *LedgerRepository) CommitTransaction(ctx context.Context, id string) (*model.Transaction, *model.Wallet, error) {
	dbTx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback(ctx)

	tx, err := scanTransaction(dbTx.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrTransactionNotFound
		}
		return nil, nil, fmt.Errorf("failed to lock transaction: %w", err)
	}

	w, err := scanWallet(dbTx.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 FOR UPDATE`, tx.UserID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrWalletNotFound
		}
		return nil, nil, fmt.Errorf("failed to lock wallet: %w", err)
	}

	next, err := NextBalance(w, tx)
	if err != nil {
		return tx, w, err
	}

	w, err = scanWallet(dbTx.QueryRow(ctx,
		`UPDATE wallets SET balance = $2, updated_at = NOW() WHERE user_id = $1 RETURNING `+walletColumns,
		w.UserID, next))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update balance: %w", err)
	}

	tx, err = scanTransaction(dbTx.QueryRow(ctx,
		`UPDATE transactions SET status = 'completed', balance_after = $2, updated_at = NOW()
		WHERE id = $1 RETURNING `+transactionColumns,
		id, next))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to complete transaction: %w", err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return tx, w, nil
}

// FailTransaction marks a pending or processing transaction failed.
func (r *LedgerRepository) FailTransaction(ctx context.Context, id, reason string) (*model.Transaction, error) {
	query := `
		UPDATE transactions
		SET status = 'failed',
			metadata = metadata || jsonb_build_object('failureReason', $2::text),
			updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'processing')
		RETURNING ` + transactionColumns

	tx, err := scanTransaction(r.pool.QueryRow(ctx, query, id, reason))
	if err == nil {
		return tx, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to fail transaction: %w", err)
	}

	existing, err := r.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	return existing, ErrTransactionFinalized
}

// TopWinners sums completed wins per user since the given time.
func (r *LedgerRepository) TopWinners(ctx context.Context, since time.Time, limit int) ([]*model.WinnerRank, error) {
	const query = `
		SELECT user_id, COALESCE(SUM(amount), 0) AS total_won, COUNT(*) AS wins
		FROM transactions
		WHERE type = 'win' AND status = 'completed' AND created_at >= $1
		GROUP BY user_id
		ORDER BY total_won DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top winners: %w", err)
	}
	defer rows.Close()

	var ranks []*model.WinnerRank
	for rows.Next() {
		var rank model.WinnerRank
		if err := rows.Scan(&rank.UserID, &rank.TotalWon, &rank.Wins); err != nil {
			return nil, fmt.Errorf("failed to scan winner: %w", err)
		}
		ranks = append(ranks, &rank)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating winners: %w", err)
	}

	return ranks, nil
}

// SumCompleted totals completed transactions of txType since the given time.
func (r *LedgerRepository) SumCompleted(ctx context.Context, txType model.TransactionType, since time.Time) (decimal.Decimal, error) {
	const query = `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE type = $1 AND status = 'completed' AND created_at >= $2
	`

	var total decimal.Decimal
	if err := r.pool.QueryRow(ctx, query, string(txType), since).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum transactions: %w", err)
	}
	return total, nil
}
