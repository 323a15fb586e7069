package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/spiritrealm/earn-engine/internal/services"
)

type UserHandler struct {
	store services.Store
}

func NewUserHandler(store services.Store) *UserHandler {
	return &UserHandler{store: store}
}

func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	wallet, err := h.store.GetWallet(c.Request.Context(), userID.(int64))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to get wallet",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user": gin.H{
			"id": userID,
		},
		"wallet": gin.H{
			"balance":      wallet.Balance,
			"total_earned": wallet.TotalEarned,
			"total_spent":  wallet.TotalSpent,
			"box_keys":     wallet.BoxKeys,
			"created_at":   wallet.CreatedAt,
		},
	})
}
