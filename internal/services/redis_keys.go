package services

import "time"

const (
	KeyWallet      = "wallet:%d"
	KeyLedgerEntry = "ledger:entry:%s"
	KeyUserLedger  = "user:%d:ledger"
	KeyUserIdem    = "user:%d:idem"
	KeyRateLimit   = "ratelimit:%d:%s"

	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 100

	DefaultRateLimitPlays = 60 // reward attempts per minute, above the gate
	RateLimitWindow       = time.Minute
)
