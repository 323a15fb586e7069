package services

import (
	"context"
	"sync"
	"time"

	"github.com/spiritrealm/earn-engine/internal/models"
)

// MemoryStore is a Store kept entirely in memory, for development and
// tests. Each user's wallet, ledger and idempotency index sit behind one
// mutex, giving the same per-user serialization the redis scripts provide.
type MemoryStore struct {
	mu              sync.Mutex
	users           map[int64]*memUser
	rules           EligibilityRules
	startingBalance int64
}

type memUser struct {
	mu     sync.Mutex
	wallet *models.Wallet
	ledger []*models.LedgerEntry
	idem   map[string]*models.LedgerEntry
	rates  map[string]*rateWindow
}

type rateWindow struct {
	count   int64
	resetAt time.Time
}

func NewMemoryStore(rules EligibilityRules, startingBalance int64) *MemoryStore {
	return &MemoryStore{
		users:           make(map[int64]*memUser),
		rules:           rules,
		startingBalance: startingBalance,
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) user(userID int64) (*memUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		wallet, err := models.NewWallet(userID, s.startingBalance)
		if err != nil {
			return nil, err
		}
		u = &memUser{
			wallet: wallet,
			idem:   make(map[string]*models.LedgerEntry),
			rates:  make(map[string]*rateWindow),
		}
		// the starting balance enters through the ledger, so the balance
		// equals the ledger sum from the first read
		if s.startingBalance > 0 {
			seed := models.SeedGrant(userID, s.startingBalance)
			u.ledger = append(u.ledger, seed)
			u.idem[seed.IdempotencyKey] = seed
		}
		s.users[userID] = u
	}
	return u, nil
}

func (s *MemoryStore) GetWallet(ctx context.Context, userID int64) (*models.Wallet, error) {
	u, err := s.user(userID)
	if err != nil {
		return nil, err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	w := *u.wallet
	return &w, nil
}

func (s *MemoryStore) Reserve(ctx context.Context, userID int64, mechanic models.Mechanic, now time.Time) (*models.Reservation, error) {
	u, err := s.user(userID)
	if err != nil {
		return nil, err
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	nonce := u.wallet.Nonce
	if denied := s.rules.Reserve(u.wallet, mechanic, now); denied != nil {
		return nil, denied
	}
	return &models.Reservation{
		UserID:     userID,
		Mechanic:   mechanic,
		ClientSeed: u.wallet.ClientSeed,
		Nonce:      nonce,
	}, nil
}

func (s *MemoryStore) Commit(ctx context.Context, entry *models.LedgerEntry) (*models.LedgerEntry, bool, error) {
	u, err := s.user(entry.UserID)
	if err != nil {
		return nil, false, err
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	if stored, ok := u.idem[entry.IdempotencyKey]; ok {
		replay := *stored
		return &replay, true, nil
	}

	if u.wallet.Balance+entry.Amount < 0 {
		return nil, false, &models.CommitError{Reason: models.ReasonInsufficientBalance}
	}

	u.wallet.Balance += entry.Amount
	u.wallet.TotalEarned += entry.Payout
	u.wallet.TotalSpent += entry.Cost
	u.wallet.BoxKeys += entry.KeysDelta

	committed := *entry
	committed.BalanceAfter = u.wallet.Balance
	committed.KeysAfter = u.wallet.BoxKeys
	u.ledger = append(u.ledger, &committed)
	u.idem[entry.IdempotencyKey] = &committed

	result := committed
	return &result, false, nil
}

func (s *MemoryStore) LookupIdempotency(ctx context.Context, userID int64, key string) (*models.LedgerEntry, error) {
	u, err := s.user(userID)
	if err != nil {
		return nil, err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	stored, ok := u.idem[key]
	if !ok {
		return nil, nil
	}
	replay := *stored
	return &replay, nil
}

func (s *MemoryStore) Ledger(ctx context.Context, userID int64, limit int64) ([]*models.LedgerEntry, error) {
	if limit <= 0 || limit > MaxHistoryLimit {
		limit = DefaultHistoryLimit
	}
	u, err := s.user(userID)
	if err != nil {
		return nil, err
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	entries := make([]*models.LedgerEntry, 0, limit)
	for i := len(u.ledger) - 1; i >= 0 && int64(len(entries)) < limit; i-- {
		e := *u.ledger[i]
		entries = append(entries, &e)
	}
	return entries, nil
}

func (s *MemoryStore) CheckRateLimit(ctx context.Context, userID int64, action string, limit int, window time.Duration) (bool, error) {
	u, err := s.user(userID)
	if err != nil {
		return false, err
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	now := time.Now()
	w, ok := u.rates[action]
	if !ok || now.After(w.resetAt) {
		u.rates[action] = &rateWindow{count: 1, resetAt: now.Add(window)}
		return true, nil
	}
	w.count++
	return w.count <= int64(limit), nil
}
