package models

import (
	"errors"
	"fmt"
	"time"
)

// Machine-readable denial and rejection reasons returned to clients.
const (
	ReasonCooldownActive      = "cooldown_active"
	ReasonQuotaExhausted      = "quota_exhausted"
	ReasonInventoryEmpty      = "inventory_empty"
	ReasonInsufficientBalance = "insufficient_balance"
	ReasonConflict            = "conflict"
)

// ConfigError means the reward table is unusable for a mechanic. Fatal at
// startup, never retried.
type ConfigError struct {
	Mechanic Mechanic
	Detail   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("reward table misconfigured for %s: %s", e.Mechanic, e.Detail)
}

// EligibilityError is the expected denial path: cooldown, quota or key
// inventory blocked the attempt. RetryAfter is zero when waiting cannot help
// (no keys left).
type EligibilityError struct {
	Mechanic   Mechanic
	Reason     string
	RetryAfter time.Duration
}

func (e *EligibilityError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s denied: %s (retry in %s)", e.Mechanic, e.Reason, e.RetryAfter)
	}
	return fmt.Sprintf("%s denied: %s", e.Mechanic, e.Reason)
}

// CommitError is a ledger commit rejection (insufficient balance, or a
// conflicting concurrent update that survived one internal retry).
type CommitError struct {
	Reason string
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit rejected: %s", e.Reason)
}

// ErrStorageUnavailable wraps transient store failures so collaborators can
// retry with backoff instead of surfacing raw driver errors.
var ErrStorageUnavailable = errors.New("storage unavailable")

func StorageError(err error) error {
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}

func IsEligibilityDenied(err error) (*EligibilityError, bool) {
	var e *EligibilityError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func IsCommitRejected(err error) (*CommitError, bool) {
	var e *CommitError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
