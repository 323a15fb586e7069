package services

import "github.com/spiritrealm/earn-engine/internal/models"

// Broadcaster pushes committed reward results to connected clients. The
// websocket hub implements it; the engine only ever broadcasts after the
// ledger commit, never before.
type Broadcaster interface {
	BroadcastReward(userID int64, result *models.RewardResult)
}
