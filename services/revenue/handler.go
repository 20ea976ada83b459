package revenue

import (
	"net/http"

	"setledger/pkg/errutil"

	"github.com/gin-gonic/gin"
)

type impressionRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

func RegisterRoutes(engine *gin.Engine, calc *Calculator) {
	engine.POST("/v1/impressions", recordImpression(calc))
}

func recordImpression(calc *Calculator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req impressionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(errutil.BadRequest("invalid impression payload", err))
			return
		}

		if err := calc.RecordImpression(c.Request.Context(), req.UserID); err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{"status": "recorded"})
	}
}
