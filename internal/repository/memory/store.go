// Package memory provides an in-process implementation of the repository
// stores. It honours the same version and atomicity rules as the PostgreSQL
// repositories and backs the services in tests and in storage.driver=memory.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"telegram-bingo/internal/model"
	"telegram-bingo/internal/repository"
)

// Store implements repository.RoomStore, repository.CardStore and
// repository.LedgerStore.
type Store struct {
	mu       sync.RWMutex
	currency string

	rooms map[string]*model.GameRoom
	cards map[string]map[string]*model.BingoCard // room -> player -> card

	wallets map[string]*model.Wallet
	txs     map[string]*model.Transaction
	refs    map[string]string // reference -> transaction id
	userTxs map[string][]string
}

var (
	_ repository.RoomStore   = (*Store)(nil)
	_ repository.CardStore   = (*Store)(nil)
	_ repository.LedgerStore = (*Store)(nil)
)

// New creates an empty Store. New wallets are opened in currency.
func New(currency string) *Store {
	if currency == "" {
		currency = model.DefaultCurrency
	}
	return &Store{
		currency: currency,
		rooms:    make(map[string]*model.GameRoom),
		cards:    make(map[string]map[string]*model.BingoCard),
		wallets:  make(map[string]*model.Wallet),
		txs:      make(map[string]*model.Transaction),
		refs:     make(map[string]string),
		userTxs:  make(map[string][]string),
	}
}

// CreateRoom stores a copy of room with version 1.
func (s *Store) CreateRoom(_ context.Context, room *model.GameRoom) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[room.ID]; ok {
		return repository.ErrRoomExists
	}
	now := time.Now()
	room.Version = 1
	room.CreatedAt = now
	room.UpdatedAt = now
	s.rooms[room.ID] = room.Clone()
	return nil
}

// GetRoom returns a copy of the room.
func (s *Store) GetRoom(_ context.Context, id string) (*model.GameRoom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[id]
	if !ok {
		return nil, repository.ErrRoomNotFound
	}
	return room.Clone(), nil
}

// UpdateRoom applies fn under the store lock, so the version check never
// fails here; the version is still bumped for readers that compare it.
func (s *Store) UpdateRoom(ctx context.Context, id string, fn repository.RoomMutator) (*model.GameRoom, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.rooms[id]
	if !ok {
		return nil, repository.ErrRoomNotFound
	}
	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.ID = current.ID
	next.HostID = current.HostID
	next.CreatedAt = current.CreatedAt
	next.Version = current.Version + 1
	next.UpdatedAt = time.Now()

	s.rooms[id] = next
	return next.Clone(), nil
}

// ListRooms returns rooms in any of statuses, newest first.
func (s *Store) ListRooms(_ context.Context, statuses []model.RoomStatus, limit int) ([]*model.GameRoom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.GameRoom
	for _, room := range s.rooms {
		if slices.Contains(statuses, room.Status) {
			out = append(out, room.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountRooms counts rooms in status created at or after since.
func (s *Store) CountRooms(_ context.Context, status model.RoomStatus, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, room := range s.rooms {
		if room.Status == status && !room.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// CreateCard stores card unless the player already holds one in the room.
func (s *Store) CreateCard(_ context.Context, card *model.BingoCard) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[card.RoomID]; !ok {
		return repository.ErrRoomNotFound
	}
	byPlayer, ok := s.cards[card.RoomID]
	if !ok {
		byPlayer = make(map[string]*model.BingoCard)
		s.cards[card.RoomID] = byPlayer
	}
	if _, ok := byPlayer[card.PlayerID]; ok {
		return repository.ErrCardExists
	}
	c := *card
	byPlayer[card.PlayerID] = &c
	return nil
}

// GetCard returns a copy of the player's card in the room.
func (s *Store) GetCard(_ context.Context, roomID, playerID string) (*model.BingoCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	card, ok := s.cards[roomID][playerID]
	if !ok {
		return nil, repository.ErrCardNotFound
	}
	c := *card
	return &c, nil
}

// GetOrCreateWallet returns the user's wallet, opening an empty one on first access.
func (s *Store) GetOrCreateWallet(_ context.Context, userID string) (*model.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[userID]
	if !ok {
		now := time.Now()
		w = &model.Wallet{
			UserID:    userID,
			Balance:   decimal.Zero,
			Currency:  s.currency,
			Status:    model.WalletActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		s.wallets[userID] = w
	}
	c := *w
	return &c, nil
}

// GetWallet returns a copy of the user's wallet.
func (s *Store) GetWallet(_ context.Context, userID string) (*model.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.wallets[userID]
	if !ok {
		return nil, repository.ErrWalletNotFound
	}
	c := *w
	return &c, nil
}

// SetWalletStatus changes a wallet's status.
func (s *Store) SetWalletStatus(_ context.Context, userID string, status model.WalletStatus) (*model.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[userID]
	if !ok {
		return nil, repository.ErrWalletNotFound
	}
	w.Status = status
	w.UpdatedAt = time.Now()
	c := *w
	return &c, nil
}

// CreateTransaction records a pending transaction.
func (s *Store) CreateTransaction(_ context.Context, tx *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.wallets[tx.UserID]; !ok {
		return repository.ErrWalletNotFound
	}
	if tx.Reference != "" {
		if _, ok := s.refs[tx.Reference]; ok {
			return repository.ErrDuplicateReference
		}
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.Status == "" {
		tx.Status = model.TxPending
	}
	now := time.Now()
	tx.CreatedAt = now
	tx.UpdatedAt = now

	c := *tx
	s.txs[tx.ID] = &c
	if tx.Reference != "" {
		s.refs[tx.Reference] = tx.ID
	}
	s.userTxs[tx.UserID] = append(s.userTxs[tx.UserID], tx.ID)
	return nil
}

// GetTransaction returns a copy of the transaction.
func (s *Store) GetTransaction(_ context.Context, id string) (*model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.txs[id]
	if !ok {
		return nil, repository.ErrTransactionNotFound
	}
	c := *tx
	return &c, nil
}

// GetTransactionByReference returns the transaction recorded under reference.
func (s *Store) GetTransactionByReference(ctx context.Context, reference string) (*model.Transaction, error) {
	s.mu.RLock()
	id, ok := s.refs[reference]
	s.mu.RUnlock()
	if !ok {
		return nil, repository.ErrTransactionNotFound
	}
	return s.GetTransaction(ctx, id)
}

// ListTransactions returns a user's transactions, newest first.
func (s *Store) ListTransactions(_ context.Context, userID string, limit int) ([]*model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.userTxs[userID]
	var out []*model.Transaction
	for i := len(ids) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		c := *s.txs[ids[i]]
		out = append(out, &c)
	}
	return out, nil
}

// CommitTransaction applies the delta and completes the transaction atomically.
func (s *Store) CommitTransaction(_ context.Context, id string) (*model.Transaction, *model.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.txs[id]
	if !ok {
		return nil, nil, repository.ErrTransactionNotFound
	}
	w, ok := s.wallets[tx.UserID]
	if !ok {
		return nil, nil, repository.ErrWalletNotFound
	}

	next, err := repository.NextBalance(w, tx)
	if err != nil {
		txCopy, wCopy := *tx, *w
		return &txCopy, &wCopy, err
	}

	now := time.Now()
	w.Balance = next
	w.UpdatedAt = now
	tx.Status = model.TxCompleted
	tx.BalanceAfter = &next
	tx.UpdatedAt = now

	txCopy, wCopy := *tx, *w
	return &txCopy, &wCopy, nil
}

// FailTransaction marks a pending or processing transaction failed.
func (s *Store) FailTransaction(_ context.Context, id, reason string) (*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.txs[id]
	if !ok {
		return nil, repository.ErrTransactionNotFound
	}
	if !tx.Status.CanTransitionTo(model.TxFailed) {
		c := *tx
		return &c, repository.ErrTransactionFinalized
	}
	tx.Status = model.TxFailed
	tx.Metadata.FailureReason = reason
	tx.UpdatedAt = time.Now()
	c := *tx
	return &c, nil
}

// TopWinners sums completed wins per user since the given time.
func (s *Store) TopWinners(_ context.Context, since time.Time, limit int) ([]*model.WinnerRank, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byUser := make(map[string]*model.WinnerRank)
	for _, tx := range s.txs {
		if tx.Type != model.TxWin || tx.Status != model.TxCompleted || tx.CreatedAt.Before(since) {
			continue
		}
		rank, ok := byUser[tx.UserID]
		if !ok {
			rank = &model.WinnerRank{UserID: tx.UserID}
			byUser[tx.UserID] = rank
		}
		rank.TotalWon = rank.TotalWon.Add(tx.Amount)
		rank.Wins++
	}

	out := make([]*model.WinnerRank, 0, len(byUser))
	for _, rank := range byUser {
		out = append(out, rank)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TotalWon.GreaterThan(out[j].TotalWon) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SumCompleted totals completed transactions of txType since the given time.
func (s *Store) SumCompleted(_ context.Context, txType model.TransactionType, since time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, tx := range s.txs {
		if tx.Type == txType && tx.Status == model.TxCompleted && !tx.CreatedAt.Before(since) {
			total = total.Add(tx.Amount)
		}
	}
	return total, nil
}
