package balance

import (
	"net/http"

	"setledger/pkg/errutil"
	"setledger/pkg/featureflags"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
)

// FeatureUserGifts gates the user-to-user gifting endpoint.
const FeatureUserGifts = "user_gifts"

type giftRequest struct {
	SenderID   string `json:"sender_id" binding:"required"`
	ReceiverID string `json:"receiver_id" binding:"required"`
	Amount     string `json:"amount" binding:"required"`
}

func RegisterRoutes(engine *gin.Engine, svc *Service, flags featureflags.FeatureFlag) {
	engine.GET("/v1/balances/:user_id", getBalance(svc))
	engine.POST("/v1/gifts", sendGift(svc, flags))
}

func getBalance(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		defer span.End()

		row, err := svc.GetBalance(c.Request.Context(), c.Param("user_id"))
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"user_id":            row.UserID,
			"available":          row.Available,
			"pending":            row.Pending,
			"gifts":              row.Gift,
			"lifetime_earnings":  row.LifetimeEarnings,
			"total_withdrawn":    row.TotalWithdrawn,
			"last_withdrawal_at": row.LastWithdrawalAt,
		})
	}
}

func sendGift(svc *Service, flags featureflags.FeatureFlag) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !flags.Enabled(c.Request.Context(), FeatureUserGifts) {
			c.Error(errutil.Forbidden("gifting is currently disabled", nil))
			return
		}

		var req giftRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(errutil.BadRequest("invalid gift payload", err))
			return
		}

		amount, err := decimal.NewFromString(req.Amount)
		if err != nil {
			c.Error(errutil.ValidationFailed("invalid gift amount", err))
			return
		}

		if err := svc.TransferGift(c.Request.Context(), req.SenderID, req.ReceiverID, amount); err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "sent"})
	}
}
