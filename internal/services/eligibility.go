package services

import (
	"time"

	"github.com/spiritrealm/earn-engine/internal/models"
)

// EligibilityRules holds the per-mechanic cooldown and quota configuration.
type EligibilityRules struct {
	SpinCooldown time.Duration
	MineCooldown time.Duration
	MineDailyCap int64
}

func DefaultEligibilityRules() EligibilityRules {
	return EligibilityRules{
		SpinCooldown: 10 * time.Second,
		MineCooldown: 5 * time.Second,
		MineDailyCap: 300,
	}
}

// Reserve applies the check-and-reserve transition to a wallet: it either
// denies the attempt or consumes it (cooldown stamped, quota counted, box
// key spent) and claims the nonce for the draw. The caller must hold the
// wallet's atomic unit; the redis store runs the same transition inside its
// reserve script, the memory store calls this under the per-user lock.
func (r EligibilityRules) Reserve(w *models.Wallet, mechanic models.Mechanic, now time.Time) *models.EligibilityError {
	switch mechanic {
	case models.MechanicSpin:
		if wait := cooldownLeft(w.LastSpinAt, r.SpinCooldown, now); wait > 0 {
			return &models.EligibilityError{Mechanic: mechanic, Reason: models.ReasonCooldownActive, RetryAfter: wait}
		}
		w.LastSpinAt = now.Unix()

	case models.MechanicMine:
		if wait := cooldownLeft(w.LastMineAt, r.MineCooldown, now); wait > 0 {
			return &models.EligibilityError{Mechanic: mechanic, Reason: models.ReasonCooldownActive, RetryAfter: wait}
		}
		day := models.DayKey(now)
		if w.MineDay != day {
			w.MineDay = day
			w.MineCount = 0
		}
		if w.MineCount >= r.MineDailyCap {
			return &models.EligibilityError{
				Mechanic:   mechanic,
				Reason:     models.ReasonQuotaExhausted,
				RetryAfter: untilNextUTCDay(now),
			}
		}
		w.LastMineAt = now.Unix()
		w.MineCount++

	case models.MechanicBox:
		if w.BoxKeys < 1 {
			return &models.EligibilityError{Mechanic: mechanic, Reason: models.ReasonInventoryEmpty}
		}
		w.BoxKeys--
	}

	w.Nonce++
	return nil
}

func cooldownLeft(lastUnix int64, cooldown time.Duration, now time.Time) time.Duration {
	if lastUnix == 0 || cooldown <= 0 {
		return 0
	}
	elapsed := now.Unix() - lastUnix
	if remaining := int64(cooldown.Seconds()) - elapsed; remaining > 0 {
		return time.Duration(remaining) * time.Second
	}
	return 0
}

func untilNextUTCDay(now time.Time) time.Duration {
	utc := now.UTC()
	next := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
	return next.Sub(utc)
}
