package services

import (
	"context"
	"time"

	"github.com/spiritrealm/earn-engine/internal/models"
)

// Store is the durable side of the engine: wallets, the append-only ledger
// and the cooldown state that rides with each wallet. The two write paths
// (Reserve, Commit) must each be a single atomic unit per user; no other
// component may read-modify-write a balance.
type Store interface {
	// GetWallet returns the user's wallet, creating one with the starting
	// balance on first sight.
	GetWallet(ctx context.Context, userID int64) (*models.Wallet, error)

	// Reserve atomically checks eligibility and consumes one attempt,
	// claiming the nonce for the draw. Denials come back as
	// *models.EligibilityError.
	Reserve(ctx context.Context, userID int64, mechanic models.Mechanic, now time.Time) (*models.Reservation, error)

	// Commit atomically applies entry.Amount to the balance, appends the
	// entry and records its idempotency key. A replayed key returns the
	// originally stored entry and replayed=true without touching the
	// balance. A grant that would drive the balance negative comes back as
	// *models.CommitError.
	Commit(ctx context.Context, entry *models.LedgerEntry) (*models.LedgerEntry, bool, error)

	// LookupIdempotency returns the entry previously committed under key,
	// or nil when the key is unseen.
	LookupIdempotency(ctx context.Context, userID int64, key string) (*models.LedgerEntry, error)

	// Ledger returns the user's most recent entries, newest first.
	Ledger(ctx context.Context, userID int64, limit int64) ([]*models.LedgerEntry, error)

	// CheckRateLimit counts a request against a per-user action window.
	CheckRateLimit(ctx context.Context, userID int64, action string, limit int, window time.Duration) (bool, error)

	Close() error
}
