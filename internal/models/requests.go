package models

type PlayRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
}

type BuyKeysRequest struct {
	Quantity       int64  `json:"quantity" binding:"required,min=1,max=10"`
	IdempotencyKey string `json:"idempotency_key"`
}

// RewardResult is what a mechanic returns to the caller once the grant is
// committed. Replayed marks an idempotent retry that returned the original
// result without re-applying the payout.
type RewardResult struct {
	Mechanic   Mechanic `json:"mechanic"`
	OutcomeID  string   `json:"outcome_id"`
	Tier       Tier     `json:"tier"`
	Payout     int64    `json:"payout"`
	Cost       int64    `json:"cost"`
	NewBalance int64    `json:"new_balance"`
	Critical   bool     `json:"critical,omitempty"`
	BoxKeys    int64    `json:"box_keys,omitempty"`
	Nonce      int64    `json:"nonce"`
	EntryID    string   `json:"entry_id"`
	Replayed   bool     `json:"replayed,omitempty"`
}

type BalanceResponse struct {
	Balance     int64  `json:"balance"`
	TotalEarned int64  `json:"total_earned"`
	TotalSpent  int64  `json:"total_spent"`
	BoxKeys     int64  `json:"box_keys"`
	ClientSeed  string `json:"client_seed"`
	ServerHash  string `json:"server_hash"`
	Nonce       int64  `json:"nonce"`
}

type VerificationData struct {
	ClientSeed   string `json:"client_seed"`
	ServerHash   string `json:"server_hash"`
	CurrentNonce int64  `json:"current_nonce"`
}

type VerifyRequest struct {
	Mechanic   Mechanic `json:"mechanic" binding:"required"`
	ClientSeed string   `json:"client_seed" binding:"required"`
	ServerSeed string   `json:"server_seed" binding:"required"`
	Nonce      int64    `json:"nonce"`
}

type VerifyResponse struct {
	OutcomeID string `json:"outcome_id"`
	Tier      Tier   `json:"tier"`
	Payout    int64  `json:"payout"`
	Hash      string `json:"hash"`
}
