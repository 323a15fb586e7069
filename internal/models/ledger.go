package models

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Wallet is the per-user balance plus the cooldown and provably-fair state
// that must move atomically with it. It is only ever mutated through the
// ledger store's reserve/commit scripts.
type Wallet struct {
	UserID      int64 `json:"user_id" redis:"user_id"`
	Balance     int64 `json:"balance" redis:"balance"`
	TotalEarned int64 `json:"total_earned" redis:"total_earned"`
	TotalSpent  int64 `json:"total_spent" redis:"total_spent"`

	// Provably fair seeds
	ClientSeed string `json:"client_seed" redis:"client_seed"`
	Nonce      int64  `json:"nonce" redis:"nonce"`

	// Cooldown state, one atomic unit with the balance
	LastSpinAt int64  `json:"last_spin_at" redis:"last_spin_at"`
	LastMineAt int64  `json:"last_mine_at" redis:"last_mine_at"`
	MineDay    string `json:"mine_day" redis:"mine_day"`
	MineCount  int64  `json:"mine_count" redis:"mine_count"`
	BoxKeys    int64  `json:"box_keys" redis:"box_keys"`

	CreatedAt int64 `json:"created_at" redis:"created_at"`
}

type EntryKind string

const (
	EntryKindReward EntryKind = "reward"
	EntryKindKeyBuy EntryKind = "key_purchase"
	EntryKindGrant  EntryKind = "grant"
)

// LedgerEntry is one append-only balance event. Amount is the signed net
// delta applied to the balance (payout minus entry cost); BalanceAfter is
// the snapshot taken inside the same atomic commit.
type LedgerEntry struct {
	ID             string    `json:"id" redis:"id"`
	UserID         int64     `json:"user_id" redis:"user_id"`
	IdempotencyKey string    `json:"idempotency_key" redis:"idempotency_key"`
	Kind           EntryKind `json:"kind" redis:"kind"`
	Mechanic       Mechanic  `json:"mechanic,omitempty" redis:"mechanic"`
	OutcomeID      string    `json:"outcome_id,omitempty" redis:"outcome_id"`
	Tier           Tier      `json:"tier,omitempty" redis:"tier"`
	Payout         int64     `json:"payout" redis:"payout"`
	Cost           int64     `json:"cost" redis:"cost"`
	Amount         int64     `json:"amount" redis:"amount"`
	KeysDelta      int64     `json:"keys_delta,omitempty" redis:"keys_delta"`
	KeysAfter      int64     `json:"keys_after" redis:"keys_after"`
	Critical       bool      `json:"critical,omitempty" redis:"critical"`
	Nonce          int64     `json:"nonce" redis:"nonce"`
	BalanceAfter   int64     `json:"balance_after" redis:"balance_after"`
	CreatedAt      int64     `json:"created_at" redis:"created_at"`
}

// Reservation is the outcome of a successful eligibility check: one attempt
// consumed, with the seed and nonce claimed for the draw.
type Reservation struct {
	UserID     int64
	Mechanic   Mechanic
	ClientSeed string
	Nonce      int64
}

func GenerateEntryID() string {
	return fmt.Sprintf("le_%s_%d", time.Now().UTC().Format("20060102"), uuid.New().ID())
}

// GenerateClientSeed returns 128 bits of hex entropy for a new wallet.
func GenerateClientSeed() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate client seed: %v", err)
	}
	return hex.EncodeToString(bytes), nil
}

// SeedGrant is the ledger entry funding a brand new wallet. It is written
// in the same atomic step as the wallet itself, so the balance equals the
// ledger sum from the very first read. The fixed idempotency key makes a
// racing second creation a replay.
func SeedGrant(userID, amount int64) *LedgerEntry {
	return &LedgerEntry{
		ID:             GenerateEntryID(),
		UserID:         userID,
		IdempotencyKey: fmt.Sprintf("seed:%d", userID),
		Kind:           EntryKindGrant,
		Amount:         amount,
		BalanceAfter:   amount,
		CreatedAt:      time.Now().Unix(),
	}
}

func NewWallet(userID int64, startingBalance int64) (*Wallet, error) {
	clientSeed, err := GenerateClientSeed()
	if err != nil {
		return nil, err
	}
	return &Wallet{
		UserID:     userID,
		Balance:    startingBalance,
		ClientSeed: clientSeed,
		CreatedAt:  time.Now().Unix(),
	}, nil
}

// DayKey buckets a timestamp into the UTC day used for the mining quota.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
