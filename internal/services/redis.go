package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spiritrealm/earn-engine/internal/config"
	"github.com/spiritrealm/earn-engine/internal/models"
)

// RedisStore is the store of record. Wallets live as JSON values; the
// reserve and commit scripts make each write path one atomic unit, so two
// overlapping requests for the same user can never both pass the gate or
// interleave a balance update.
type RedisStore struct {
	client          *redis.Client
	rules           EligibilityRules
	startingBalance int64
}

func NewRedisStore(cfg *config.Config, rules EligibilityRules) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %v", err)
	}

	return &RedisStore{
		client:          client,
		rules:           rules,
		startingBalance: cfg.StartingBalance,
	}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// createWalletScript writes a new wallet and its seed grant ledger entry in
// one step, so the balance equals the ledger sum from creation onward. A
// wallet that already exists wins the race and nothing is written.
var createWalletScript = redis.NewScript(`
	if redis.call("EXISTS", KEYS[1]) == 1 then
		return 0
	end
	redis.call("SET", KEYS[1], ARGV[1])
	if ARGV[2] ~= "" then
		redis.call("SET", KEYS[3], ARGV[2])
		redis.call("ZADD", KEYS[4], tonumber(ARGV[4]), ARGV[5])
		redis.call("HSET", KEYS[2], ARGV[3], ARGV[2])
	end
	return 1
`)

func (s *RedisStore) GetWallet(ctx context.Context, userID int64) (*models.Wallet, error) {
	key := fmt.Sprintf(KeyWallet, userID)

	data, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		wallet, err := models.NewWallet(userID, s.startingBalance)
		if err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(wallet)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal wallet: %v", err)
		}

		seedJSON, seedKey, seedID := "", "", ""
		var seedAt int64
		if s.startingBalance > 0 {
			seed := models.SeedGrant(userID, s.startingBalance)
			payload, err := json.Marshal(seed)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal seed grant: %v", err)
			}
			seedJSON = string(payload)
			seedKey = seed.IdempotencyKey
			seedID = seed.ID
			seedAt = seed.CreatedAt
		}

		keys := []string{
			key,
			fmt.Sprintf(KeyUserIdem, userID),
			fmt.Sprintf(KeyLedgerEntry, seedID),
			fmt.Sprintf(KeyUserLedger, userID),
		}
		res, err := createWalletScript.Run(ctx, s.client, keys,
			string(encoded), seedJSON, seedKey, seedAt, seedID,
		).Result()
		if err != nil {
			return nil, models.StorageError(err)
		}
		if asInt64(res) == 1 {
			return wallet, nil
		}
		// another request created the wallet first, read theirs
		data, err = s.client.Get(ctx, key).Result()
		if err != nil {
			return nil, models.StorageError(err)
		}
	} else if err != nil {
		return nil, models.StorageError(err)
	}

	var wallet models.Wallet
	if err := json.Unmarshal([]byte(data), &wallet); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wallet: %v", err)
	}
	return &wallet, nil
}

// reserveScript is the Lua twin of EligibilityRules.Reserve: deny or consume
// one attempt and claim the nonce, all against the wallet JSON in one step.
// Returns {1, nonce, client_seed} or {0, reason, retry_after_seconds}.
var reserveScript = redis.NewScript(`
	local data = redis.call("GET", KEYS[1])
	if not data then
		return redis.error_reply("wallet not found")
	end
	local w = cjson.decode(data)
	local mech = ARGV[1]
	local now = tonumber(ARGV[2])

	if mech == "spin" then
		local cd = tonumber(ARGV[3])
		local last = tonumber(w.last_spin_at) or 0
		if last > 0 and now - last < cd then
			return {0, "cooldown_active", last + cd - now}
		end
		w.last_spin_at = now
	elseif mech == "mine" then
		local cd = tonumber(ARGV[4])
		local last = tonumber(w.last_mine_at) or 0
		if last > 0 and now - last < cd then
			return {0, "cooldown_active", last + cd - now}
		end
		if w.mine_day ~= ARGV[6] then
			w.mine_day = ARGV[6]
			w.mine_count = 0
		end
		if (tonumber(w.mine_count) or 0) >= tonumber(ARGV[5]) then
			return {0, "quota_exhausted", tonumber(ARGV[7])}
		end
		w.last_mine_at = now
		w.mine_count = (tonumber(w.mine_count) or 0) + 1
	else
		if (tonumber(w.box_keys) or 0) < 1 then
			return {0, "inventory_empty", 0}
		end
		w.box_keys = w.box_keys - 1
	end

	local nonce = tonumber(w.nonce) or 0
	w.nonce = nonce + 1
	redis.call("SET", KEYS[1], cjson.encode(w))
	return {1, nonce, w.client_seed}
`)

func (s *RedisStore) Reserve(ctx context.Context, userID int64, mechanic models.Mechanic, now time.Time) (*models.Reservation, error) {
	if _, err := s.GetWallet(ctx, userID); err != nil {
		return nil, err
	}

	key := fmt.Sprintf(KeyWallet, userID)
	res, err := reserveScript.Run(ctx, s.client, []string{key},
		string(mechanic),
		now.Unix(),
		int64(s.rules.SpinCooldown.Seconds()),
		int64(s.rules.MineCooldown.Seconds()),
		s.rules.MineDailyCap,
		models.DayKey(now),
		int64(untilNextUTCDay(now).Seconds()),
	).Result()
	if err != nil {
		return nil, models.StorageError(err)
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) < 3 {
		return nil, fmt.Errorf("unexpected reserve reply: %v", res)
	}

	if asInt64(vals[0]) != 1 {
		reason, _ := vals[1].(string)
		return nil, &models.EligibilityError{
			Mechanic:   mechanic,
			Reason:     reason,
			RetryAfter: time.Duration(asInt64(vals[2])) * time.Second,
		}
	}

	seed, _ := vals[2].(string)
	return &models.Reservation{
		UserID:     userID,
		Mechanic:   mechanic,
		ClientSeed: seed,
		Nonce:      asInt64(vals[1]),
	}, nil
}

// commitScript applies the signed amount, snapshots the balance and key
// count into the entry, appends it to the ledger index and records the
// idempotency key in one step. Replays return the stored entry untouched; a
// negative resulting balance rejects without writing anything; a wallet
// missing between reserve and commit (eviction, flush) is a conflict the
// caller can retry after a fresh wallet read.
var commitScript = redis.NewScript(`
	local existing = redis.call("HGET", KEYS[2], ARGV[1])
	if existing then
		return {0, existing}
	end
	local data = redis.call("GET", KEYS[1])
	if not data then
		return {-2, "conflict"}
	end
	local w = cjson.decode(data)
	local amount = tonumber(ARGV[2])
	local balance = tonumber(w.balance) or 0
	if balance + amount < 0 then
		return {-1, "insufficient_balance"}
	end
	w.balance = balance + amount
	w.total_earned = (tonumber(w.total_earned) or 0) + tonumber(ARGV[3])
	w.total_spent = (tonumber(w.total_spent) or 0) + tonumber(ARGV[4])
	local kd = tonumber(ARGV[5])
	if kd ~= 0 then
		w.box_keys = (tonumber(w.box_keys) or 0) + kd
	end
	local entry = cjson.decode(ARGV[6])
	entry.balance_after = w.balance
	entry.keys_after = tonumber(w.box_keys) or 0
	local encoded = cjson.encode(entry)
	redis.call("SET", KEYS[1], cjson.encode(w))
	redis.call("SET", KEYS[3], encoded)
	redis.call("ZADD", KEYS[4], tonumber(ARGV[7]), entry.id)
	redis.call("HSET", KEYS[2], ARGV[1], encoded)
	return {1, encoded}
`)

func (s *RedisStore) Commit(ctx context.Context, entry *models.LedgerEntry) (*models.LedgerEntry, bool, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal ledger entry: %v", err)
	}

	keys := []string{
		fmt.Sprintf(KeyWallet, entry.UserID),
		fmt.Sprintf(KeyUserIdem, entry.UserID),
		fmt.Sprintf(KeyLedgerEntry, entry.ID),
		fmt.Sprintf(KeyUserLedger, entry.UserID),
	}

	res, err := commitScript.Run(ctx, s.client, keys,
		entry.IdempotencyKey,
		entry.Amount,
		entry.Payout,
		entry.Cost,
		entry.KeysDelta,
		string(payload),
		entry.CreatedAt,
	).Result()
	if err != nil {
		return nil, false, models.StorageError(err)
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) < 2 {
		return nil, false, fmt.Errorf("unexpected commit reply: %v", res)
	}

	switch asInt64(vals[0]) {
	case -2:
		return nil, false, &models.CommitError{Reason: models.ReasonConflict}
	case -1:
		return nil, false, &models.CommitError{Reason: models.ReasonInsufficientBalance}
	case 0:
		stored, err := decodeEntry(vals[1])
		return stored, true, err
	default:
		stored, err := decodeEntry(vals[1])
		return stored, false, err
	}
}

func (s *RedisStore) LookupIdempotency(ctx context.Context, userID int64, key string) (*models.LedgerEntry, error) {
	data, err := s.client.HGet(ctx, fmt.Sprintf(KeyUserIdem, userID), key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, models.StorageError(err)
	}
	return decodeEntry(data)
}

func (s *RedisStore) Ledger(ctx context.Context, userID int64, limit int64) ([]*models.LedgerEntry, error) {
	if limit <= 0 || limit > MaxHistoryLimit {
		limit = DefaultHistoryLimit
	}

	ids, err := s.client.ZRevRange(ctx, fmt.Sprintf(KeyUserLedger, userID), 0, limit-1).Result()
	if err != nil {
		return nil, models.StorageError(err)
	}
	if len(ids) == 0 {
		return []*models.LedgerEntry{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, fmt.Sprintf(KeyLedgerEntry, id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, models.StorageError(err)
	}

	entries := make([]*models.LedgerEntry, 0, len(ids))
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil {
			continue
		}
		entry, err := decodeEntry(data)
		if err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *RedisStore) CheckRateLimit(ctx context.Context, userID int64, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, userID, action)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, models.StorageError(err)
	}
	if count == 1 {
		s.client.Expire(ctx, key, window)
	}
	return count <= int64(limit), nil
}

func decodeEntry(v interface{}) (*models.LedgerEntry, error) {
	var raw string
	switch t := v.(type) {
	case string:
		raw = t
	case []byte:
		raw = string(t)
	default:
		return nil, fmt.Errorf("unexpected ledger entry payload %T", v)
	}
	var entry models.LedgerEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ledger entry: %v", err)
	}
	return &entry, nil
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	default:
		return 0
	}
}
