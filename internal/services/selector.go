package services

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"math/big"

	"github.com/spiritrealm/earn-engine/internal/models"
)

// SelectOutcome picks the outcome whose cumulative weight interval contains
// draw. Pure: same (table, mechanic, draw) always yields the same outcome,
// so tests can force every interval boundary. draw must be in [0, W) where
// W is the mechanic's total weight.
func SelectOutcome(table *models.RewardTable, mechanic models.Mechanic, draw int64) (models.RewardOutcome, error) {
	outcomes := table.Outcomes[mechanic]
	if len(outcomes) == 0 {
		return models.RewardOutcome{}, &models.ConfigError{Mechanic: mechanic, Detail: "empty reward table"}
	}
	total := table.TotalWeight(mechanic)
	if total <= 0 {
		return models.RewardOutcome{}, &models.ConfigError{Mechanic: mechanic, Detail: "all weights are zero"}
	}
	if draw < 0 || draw >= total {
		return models.RewardOutcome{}, fmt.Errorf("draw %d out of range [0, %d)", draw, total)
	}
	var cum int64
	for i := range outcomes {
		o := &outcomes[i]
		if o.Weight <= 0 {
			continue
		}
		cum += o.Weight
		if draw < cum {
			return *o, nil
		}
	}
	return outcomes[len(outcomes)-1], nil
}

// CryptoDraw returns a uniform value in [0, total) from crypto/rand.
func CryptoDraw(total int64) (int64, error) {
	if total <= 0 {
		return 0, fmt.Errorf("invalid draw range %d", total)
	}
	v, err := rand.Int(rand.Reader, big.NewInt(total))
	if err != nil {
		return 0, err
	}
	return v.Int64(), nil
}

// fairRoll derives a uniform roll in [0, 1) from the provably-fair seeds:
// the first 52 bits of HMAC-SHA256(serverSeed, mechanic:clientSeed:nonce).
// Returns the roll and the full hash for later verification.
func fairRoll(serverSeed, clientSeed string, nonce int64, mechanic models.Mechanic) (float64, string) {
	message := fmt.Sprintf("%s:%s:%d", mechanic, clientSeed, nonce)
	h := hmac.New(sha256.New, []byte(serverSeed))
	h.Write([]byte(message))
	hash := hex.EncodeToString(h.Sum(nil))

	n := new(big.Int)
	n.SetString(hash[:13], 16)

	return float64(n.Int64()) / math.Pow(2, 52), hash
}

// drawFromRoll scales a [0, 1) roll onto the weight axis [0, total).
func drawFromRoll(roll float64, total int64) int64 {
	v := int64(roll * float64(total))
	if v < 0 {
		v = 0
	}
	if v >= total {
		v = total - 1
	}
	return v
}

// FairDraw is the production draw: provably-fair roll mapped onto the
// weight axis. Exposed so the verification endpoint and tests recompute the
// exact value a past attempt used.
func FairDraw(serverSeed, clientSeed string, nonce int64, mechanic models.Mechanic, total int64) (int64, string) {
	roll, hash := fairRoll(serverSeed, clientSeed, nonce, mechanic)
	return drawFromRoll(roll, total), hash
}
