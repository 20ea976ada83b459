package withdrawal

import (
	"net/http"

	"setledger/pkg/errutil"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
)

type createRequest struct {
	UserID  string            `json:"user_id" binding:"required"`
	Amount  string            `json:"amount" binding:"required"`
	Method  string            `json:"method" binding:"required"`
	Details map[string]string `json:"payment_details"`
}

type rejectRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func RegisterRoutes(engine *gin.Engine, svc *Service) {
	engine.POST("/v1/withdrawals", create(svc))
	engine.GET("/v1/withdrawals/user/:user_id", listByUser(svc))
	// Admin-scoped operations; authentication lives in the outer gateway.
	engine.POST("/v1/withdrawals/:id/approve", approve(svc))
	engine.POST("/v1/withdrawals/:id/reject", reject(svc))
}

func create(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		defer span.End()

		var req createRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(errutil.BadRequest("invalid withdrawal payload", err))
			return
		}

		amount, err := decimal.NewFromString(req.Amount)
		if err != nil {
			c.Error(errutil.ValidationFailed("invalid withdrawal amount", err))
			return
		}

		request, err := svc.Create(c.Request.Context(), CreateInput{
			UserID:  req.UserID,
			Amount:  amount,
			Method:  Method(req.Method),
			Details: PaymentDetails(req.Details),
		})
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusCreated, request)
	}
}

func approve(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		request, err := svc.Approve(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusOK, request)
	}
}

func reject(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req rejectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(errutil.BadRequest("rejection reason is required", err))
			return
		}

		request, err := svc.Reject(c.Request.Context(), c.Param("id"), req.Reason)
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusOK, request)
	}
}

func listByUser(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := svc.ListByUser(c.Request.Context(), c.Param("user_id"))
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": rows})
	}
}
