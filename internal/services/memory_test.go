package services_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/spiritrealm/earn-engine/internal/models"
	"github.com/spiritrealm/earn-engine/internal/services"
)

func rewardEntry(userID int64, key string, amount int64) *models.LedgerEntry {
	return &models.LedgerEntry{
		ID:             models.GenerateEntryID(),
		UserID:         userID,
		IdempotencyKey: key,
		Kind:           models.EntryKindReward,
		Mechanic:       models.MechanicSpin,
		OutcomeID:      "spin_common",
		Tier:           models.TierCommon,
		Payout:         amount,
		Amount:         amount,
		CreatedAt:      time.Now().Unix(),
	}
}

func TestMemoryStore_CommitIdempotent(t *testing.T) {
	store := services.NewMemoryStore(testRules(), 100)
	ctx := context.Background()

	entry := rewardEntry(1, "spin:req-1", 50)
	first, replayed, err := store.Commit(ctx, entry)
	if err != nil {
		t.Fatalf("first commit failed: %v", err)
	}
	if replayed {
		t.Fatal("first commit marked as replay")
	}
	if first.BalanceAfter != 150 {
		t.Errorf("balance after first commit = %d, want 150", first.BalanceAfter)
	}

	// same key again, different entry ID, must not re-apply
	retry := rewardEntry(1, "spin:req-1", 50)
	second, replayed, err := store.Commit(ctx, retry)
	if err != nil {
		t.Fatalf("replayed commit failed: %v", err)
	}
	if !replayed {
		t.Fatal("second commit with same key not marked as replay")
	}
	if second.BalanceAfter != first.BalanceAfter {
		t.Errorf("replay balance %d != original %d", second.BalanceAfter, first.BalanceAfter)
	}
	if second.ID != first.ID {
		t.Errorf("replay returned a different entry: %s vs %s", second.ID, first.ID)
	}

	// seed grant plus the one reward, no duplicate from the replay
	entries, err := store.Ledger(ctx, 1, 10)
	if err != nil {
		t.Fatalf("Ledger failed: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("ledger has %d entries, want 2", len(entries))
	}

	wallet, _ := store.GetWallet(ctx, 1)
	if wallet.Balance != 150 {
		t.Errorf("wallet balance = %d, want 150", wallet.Balance)
	}
}

func TestMemoryStore_InsufficientBalance(t *testing.T) {
	store := services.NewMemoryStore(testRules(), 100)
	ctx := context.Background()

	entry := rewardEntry(2, "buy:req-1", 0)
	entry.Kind = models.EntryKindKeyBuy
	entry.Cost = 5000
	entry.Amount = -5000
	entry.KeysDelta = 1

	_, _, err := store.Commit(ctx, entry)
	rejected, ok := models.IsCommitRejected(err)
	if !ok {
		t.Fatalf("expected CommitError, got %v", err)
	}
	if rejected.Reason != models.ReasonInsufficientBalance {
		t.Errorf("reason = %s, want %s", rejected.Reason, models.ReasonInsufficientBalance)
	}

	// nothing written: balance and ledger untouched
	wallet, _ := store.GetWallet(ctx, 2)
	if wallet.Balance != 100 {
		t.Errorf("balance = %d after rejected commit, want 100", wallet.Balance)
	}
	if wallet.BoxKeys != 0 {
		t.Errorf("box keys = %d after rejected commit, want 0", wallet.BoxKeys)
	}
	entries, _ := store.Ledger(ctx, 2, 10)
	if len(entries) != 1 || entries[0].Kind != models.EntryKindGrant {
		t.Errorf("ledger after rejected commit = %+v, want only the seed grant", entries)
	}
}

func TestMemoryStore_NewWalletSeededThroughLedger(t *testing.T) {
	store := services.NewMemoryStore(testRules(), 1000)
	ctx := context.Background()

	wallet, err := store.GetWallet(ctx, 6)
	if err != nil {
		t.Fatalf("GetWallet failed: %v", err)
	}
	entries, err := store.Ledger(ctx, 6, 10)
	if err != nil {
		t.Fatalf("Ledger failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("fresh wallet ledger has %d entries, want 1", len(entries))
	}
	seed := entries[0]
	if seed.Kind != models.EntryKindGrant || seed.Amount != 1000 || seed.BalanceAfter != 1000 {
		t.Errorf("seed grant = %+v, want grant of 1000", seed)
	}
	if wallet.Balance != seed.Amount {
		t.Errorf("balance %d != seed grant amount %d", wallet.Balance, seed.Amount)
	}
}

func TestMemoryStore_BalanceEqualsLedgerSum(t *testing.T) {
	store := services.NewMemoryStore(testRules(), 1000)
	ctx := context.Background()

	ledgerSum := func() int64 {
		entries, err := store.Ledger(ctx, 3, 100)
		if err != nil {
			t.Fatalf("Ledger failed: %v", err)
		}
		var sum int64
		for _, e := range entries {
			sum += e.Amount
		}
		return sum
	}

	// holds from the first read: the seed grant is already on the ledger
	wallet, _ := store.GetWallet(ctx, 3)
	if sum := ledgerSum(); wallet.Balance != sum {
		t.Fatalf("fresh wallet balance %d != ledger sum %d", wallet.Balance, sum)
	}

	amounts := []int64{50, -200, 30, 1000, -500, 7}
	for i, amt := range amounts {
		entry := rewardEntry(3, fmt.Sprintf("spin:req-%d", i), amt)
		entry.Amount = amt
		if _, _, err := store.Commit(ctx, entry); err != nil {
			t.Fatalf("commit %d failed: %v", i, err)
		}
		wallet, _ = store.GetWallet(ctx, 3)
		if sum := ledgerSum(); wallet.Balance != sum {
			t.Errorf("after commit %d: balance %d != ledger sum %d", i, wallet.Balance, sum)
		}
	}
}

func TestMemoryStore_ConcurrentCommitsNoLostUpdates(t *testing.T) {
	store := services.NewMemoryStore(testRules(), 0)
	ctx := context.Background()

	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			entry := rewardEntry(4, fmt.Sprintf("spin:req-%d", i), 10)
			if _, _, err := store.Commit(ctx, entry); err != nil {
				t.Errorf("commit %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	wallet, _ := store.GetWallet(ctx, 4)
	if wallet.Balance != n*10 {
		t.Errorf("final balance = %d, want %d", wallet.Balance, n*10)
	}
	entries, _ := store.Ledger(ctx, 4, n)
	if len(entries) != n {
		t.Errorf("ledger has %d entries, want %d", len(entries), n)
	}
}

func TestMemoryStore_ConcurrentReserve(t *testing.T) {
	rules := testRules()
	store := services.NewMemoryStore(rules, 0)
	ctx := context.Background()
	now := time.Now()

	// many simultaneous spins, exactly one may pass the gate
	const n = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := store.Reserve(ctx, 5, models.MechanicSpin, now); err == nil {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 1 {
		t.Errorf("%d concurrent spins passed the gate, want exactly 1", allowed)
	}
}
