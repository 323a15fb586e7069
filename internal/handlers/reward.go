package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/spiritrealm/earn-engine/internal/models"
	"github.com/spiritrealm/earn-engine/internal/services"
)

type RewardHandler struct {
	engine *services.RewardEngine
	store  services.Store
}

func NewRewardHandler(engine *services.RewardEngine, store services.Store) *RewardHandler {
	return &RewardHandler{
		engine: engine,
		store:  store,
	}
}

func (h *RewardHandler) Spin(c *gin.Context) { h.play(c, models.MechanicSpin) }
func (h *RewardHandler) Mine(c *gin.Context) { h.play(c, models.MechanicMine) }
func (h *RewardHandler) Box(c *gin.Context)  { h.play(c, models.MechanicBox) }

func (h *RewardHandler) play(c *gin.Context, mechanic models.Mechanic) {
	userID := c.GetInt64("user_id")

	var req models.PlayRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid request",
				"details": err.Error(),
			})
			return
		}
	}

	result, err := h.engine.Execute(c.Request.Context(), userID, mechanic, req.IdempotencyKey)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  result,
	})
}

func (h *RewardHandler) BuyBoxKeys(c *gin.Context) {
	userID := c.GetInt64("user_id")

	var req models.BuyKeysRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	result, err := h.engine.BuyBoxKeys(c.Request.Context(), userID, req.Quantity, req.IdempotencyKey)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  result,
	})
}

func (h *RewardHandler) GetBalance(c *gin.Context) {
	userID := c.GetInt64("user_id")

	wallet, err := h.store.GetWallet(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"balance": models.BalanceResponse{
			Balance:     wallet.Balance,
			TotalEarned: wallet.TotalEarned,
			TotalSpent:  wallet.TotalSpent,
			BoxKeys:     wallet.BoxKeys,
			ClientSeed:  wallet.ClientSeed,
			ServerHash:  h.engine.GetServerHash(),
			Nonce:       wallet.Nonce,
		},
	})
}

func (h *RewardHandler) GetHistory(c *gin.Context) {
	userID := c.GetInt64("user_id")

	limitStr := c.DefaultQuery("limit", strconv.Itoa(services.DefaultHistoryLimit))
	limit, err := strconv.ParseInt(limitStr, 10, 64)
	if err != nil || limit <= 0 || limit > services.MaxHistoryLimit {
		limit = services.DefaultHistoryLimit
	}

	entries, err := h.store.Ledger(c.Request.Context(), userID, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"entries": entries,
		"count":   len(entries),
	})
}

func (h *RewardHandler) GetVerificationData(c *gin.Context) {
	userID := c.GetInt64("user_id")

	data, err := h.engine.VerificationData(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"verification": data,
	})
}

func (h *RewardHandler) VerifyReward(c *gin.Context) {
	var req models.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	resp, err := h.engine.Verify(&req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  resp,
	})
}

// writeError maps the engine's error taxonomy onto HTTP statuses with
// machine-readable reasons and retry hints.
func (h *RewardHandler) writeError(c *gin.Context, err error) {
	if denied, ok := models.IsEligibilityDenied(err); ok {
		status := http.StatusTooManyRequests
		if denied.Reason == models.ReasonInventoryEmpty {
			status = http.StatusConflict
		}
		body := gin.H{
			"error":  "Attempt denied",
			"reason": denied.Reason,
		}
		if denied.RetryAfter > 0 {
			body["retry_after"] = denied.RetryAfter.Seconds()
		}
		c.JSON(status, body)
		return
	}

	if rejected, ok := models.IsCommitRejected(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Commit rejected",
			"reason": rejected.Reason,
		})
		return
	}

	var cfgErr *models.ConfigError
	if errors.As(err, &cfgErr) {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "Mechanic unavailable",
			"reason": "configuration",
		})
		return
	}

	if errors.Is(err, models.ErrStorageUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":  "Temporarily unavailable",
			"reason": "storage_unavailable",
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "Internal error",
		"details": err.Error(),
	})
}
