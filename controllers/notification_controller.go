package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sgp-fichas/fichas-api/services"
)

// GetLatestNotification handles GET /api/v1/notifications/latest.
// Clients without a live socket poll it and refetch when ultimo_id moves.
func GetLatestNotification(c *gin.Context) {
	latest, err := services.GetOrderService().LatestOrderID(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"ultimo_id": latest,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}
