package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/spiritrealm/earn-engine/internal/models"
)

// DrawSource produces the draw value for one attempt on the cumulative
// weight axis [0, total). Injectable so tests can force exact outcomes.
type DrawSource func(mechanic models.Mechanic, clientSeed string, nonce, total int64) int64

// RewardEngine orchestrates a reward attempt: eligibility reservation,
// server-side outcome selection, then the atomic ledger commit. Side effects
// live only in the store; selection is pure. A reservation consumed by a
// failed later step is not refunded.
type RewardEngine struct {
	store       Store
	table       *models.RewardTable
	serverSeed  string
	draw        DrawSource
	broadcaster Broadcaster
}

func NewRewardEngine(store Store, table *models.RewardTable) (*RewardEngine, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	e := &RewardEngine{
		store:      store,
		table:      table,
		serverSeed: generateServerSeed(),
	}
	e.draw = func(mechanic models.Mechanic, clientSeed string, nonce, total int64) int64 {
		v, _ := FairDraw(e.serverSeed, clientSeed, nonce, mechanic, total)
		return v
	}
	return e, nil
}

// SetDrawSource overrides the production draw. Test hook.
func (e *RewardEngine) SetDrawSource(draw DrawSource) {
	e.draw = draw
}

func (e *RewardEngine) SetBroadcaster(b Broadcaster) {
	e.broadcaster = b
}

func generateServerSeed() string {
	bytes := make([]byte, 32)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// GetServerHash publishes the commitment to the current server seed.
func (e *RewardEngine) GetServerHash() string {
	hash := sha256.Sum256([]byte(e.serverSeed))
	return hex.EncodeToString(hash[:])
}

func (e *RewardEngine) ServerSeed() string {
	return e.serverSeed
}

// Execute runs one attempt at a mechanic. clientKey is the caller-supplied
// idempotency token; when empty a server key bound to the reservation is
// used, so only explicit client retries replay.
func (e *RewardEngine) Execute(ctx context.Context, userID int64, mechanic models.Mechanic, clientKey string) (*models.RewardResult, error) {
	if !mechanic.Valid() {
		return nil, fmt.Errorf("unknown mechanic: %s", mechanic)
	}
	total := e.table.TotalWeight(mechanic)
	if total <= 0 {
		return nil, &models.ConfigError{Mechanic: mechanic, Detail: "no selectable outcomes"}
	}

	// Replayed keys short-circuit before the gate so a retry does not burn
	// a fresh attempt.
	if clientKey != "" {
		idemKey := deriveIdemKey(string(mechanic), clientKey)
		if stored, err := e.store.LookupIdempotency(ctx, userID, idemKey); err != nil {
			return nil, err
		} else if stored != nil {
			return resultFromEntry(stored, true), nil
		}
	}

	now := time.Now()
	reservation, err := e.store.Reserve(ctx, userID, mechanic, now)
	if err != nil {
		if denied, ok := models.IsEligibilityDenied(err); ok {
			recordDenial(mechanic, denied.Reason)
			return nil, denied
		}
		return nil, err
	}
	recordAttempt(mechanic)

	drawVal := e.draw(mechanic, reservation.ClientSeed, reservation.Nonce, total)
	outcome, err := SelectOutcome(e.table, mechanic, drawVal)
	if err != nil {
		return nil, err
	}

	idemKey := deriveIdemKey(string(mechanic), clientKey)
	if clientKey == "" {
		idemKey = fmt.Sprintf("%s:srv:%d:%d", mechanic, userID, reservation.Nonce)
	}

	cost := e.table.Cost(mechanic)
	entry := &models.LedgerEntry{
		ID:             models.GenerateEntryID(),
		UserID:         userID,
		IdempotencyKey: idemKey,
		Kind:           models.EntryKindReward,
		Mechanic:       mechanic,
		OutcomeID:      outcome.ID,
		Tier:           outcome.Tier,
		Payout:         outcome.Payout,
		Cost:           cost,
		Amount:         outcome.Payout - cost,
		Critical:       outcome.Critical,
		Nonce:          reservation.Nonce,
		CreatedAt:      now.Unix(),
	}

	committed, replayed, err := e.commitWithRetry(ctx, entry)
	if err != nil {
		if rejected, ok := models.IsCommitRejected(err); ok {
			recordReject(mechanic, rejected.Reason)
		}
		return nil, err
	}
	recordCommit(mechanic, string(outcome.Tier), outcome.Payout)

	result := resultFromEntry(committed, replayed)
	if e.broadcaster != nil && !replayed {
		e.broadcaster.BroadcastReward(userID, result)
	}
	return result, nil
}

// BuyBoxKeys charges the key price through the ledger and credits the key
// inventory in the same commit, so an interrupted purchase can be retried
// safely with the same token.
func (e *RewardEngine) BuyBoxKeys(ctx context.Context, userID, quantity int64, clientKey string) (*models.RewardResult, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("invalid key quantity: %d", quantity)
	}
	if _, err := e.store.GetWallet(ctx, userID); err != nil {
		return nil, err
	}

	idemKey := deriveIdemKey("keybuy", clientKey)
	if clientKey == "" {
		idemKey = fmt.Sprintf("keybuy:srv:%s", uuid.New().String())
	}

	cost := e.table.KeyCost * quantity
	now := time.Now()
	entry := &models.LedgerEntry{
		ID:             models.GenerateEntryID(),
		UserID:         userID,
		IdempotencyKey: idemKey,
		Kind:           models.EntryKindKeyBuy,
		Cost:           cost,
		Amount:         -cost,
		KeysDelta:      quantity,
		CreatedAt:      now.Unix(),
	}

	committed, replayed, err := e.commitWithRetry(ctx, entry)
	if err != nil {
		if rejected, ok := models.IsCommitRejected(err); ok {
			recordReject(models.MechanicBox, rejected.Reason)
		}
		return nil, err
	}

	result := resultFromEntry(committed, replayed)
	if e.broadcaster != nil && !replayed {
		e.broadcaster.BroadcastReward(userID, result)
	}
	return result, nil
}

// commitWithRetry retries a conflicting commit once after a fresh wallet
// read, which restores a record that vanished between reserve and commit.
// A second conflict surfaces to the caller.
func (e *RewardEngine) commitWithRetry(ctx context.Context, entry *models.LedgerEntry) (*models.LedgerEntry, bool, error) {
	committed, replayed, err := e.store.Commit(ctx, entry)
	if rejected, ok := models.IsCommitRejected(err); ok && rejected.Reason == models.ReasonConflict {
		if _, rerr := e.store.GetWallet(ctx, entry.UserID); rerr != nil {
			return nil, false, rerr
		}
		committed, replayed, err = e.store.Commit(ctx, entry)
	}
	return committed, replayed, err
}

// Verify recomputes the outcome an attempt must have produced from its
// seeds, letting clients audit past results once the seed is rotated out.
func (e *RewardEngine) Verify(req *models.VerifyRequest) (*models.VerifyResponse, error) {
	if !req.Mechanic.Valid() {
		return nil, fmt.Errorf("unknown mechanic: %s", req.Mechanic)
	}
	total := e.table.TotalWeight(req.Mechanic)
	if total <= 0 {
		return nil, &models.ConfigError{Mechanic: req.Mechanic, Detail: "no selectable outcomes"}
	}

	drawVal, hash := FairDraw(req.ServerSeed, req.ClientSeed, req.Nonce, req.Mechanic, total)
	outcome, err := SelectOutcome(e.table, req.Mechanic, drawVal)
	if err != nil {
		return nil, err
	}
	return &models.VerifyResponse{
		OutcomeID: outcome.ID,
		Tier:      outcome.Tier,
		Payout:    outcome.Payout,
		Hash:      hash,
	}, nil
}

func (e *RewardEngine) VerificationData(ctx context.Context, userID int64) (*models.VerificationData, error) {
	wallet, err := e.store.GetWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &models.VerificationData{
		ClientSeed:   wallet.ClientSeed,
		ServerHash:   e.GetServerHash(),
		CurrentNonce: wallet.Nonce,
	}, nil
}

func deriveIdemKey(scope string, clientKey string) string {
	return scope + ":" + clientKey
}

func resultFromEntry(entry *models.LedgerEntry, replayed bool) *models.RewardResult {
	return &models.RewardResult{
		Mechanic:   entry.Mechanic,
		OutcomeID:  entry.OutcomeID,
		Tier:       entry.Tier,
		Payout:     entry.Payout,
		Cost:       entry.Cost,
		NewBalance: entry.BalanceAfter,
		BoxKeys:    entry.KeysAfter,
		Critical:   entry.Critical,
		Nonce:      entry.Nonce,
		EntryID:    entry.ID,
		Replayed:   replayed,
	}
}
