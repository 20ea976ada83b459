package points

import (
	"net/http"
	"strconv"

	"setledger/pkg/errutil"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

type addPointsRequest struct {
	UserID    string `json:"user_id" binding:"required"`
	Category  string `json:"category" binding:"required"`
	Amount    int64  `json:"amount" binding:"required"`
	SourceRef string `json:"source_ref"`
}

func RegisterRoutes(engine *gin.Engine, svc *Service) {
	engine.POST("/v1/points", addPoints(svc))
	engine.GET("/v1/points/:user_id/history", history(svc))
	engine.GET("/v1/points/:user_id/flags", flags(svc))
}

func addPoints(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		defer span.End()

		var req addPointsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(errutil.BadRequest("invalid accrual payload", err))
			return
		}

		result, err := svc.AddPoints(c.Request.Context(), AddPointsInput{
			UserID:    req.UserID,
			Category:  Category(req.Category),
			Amount:    req.Amount,
			SourceRef: req.SourceRef,
		})
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func history(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))

		rows, err := svc.History(c.Request.Context(), c.Param("user_id"), days)
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": rows})
	}
}

func flags(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		day := c.Query("date")
		if day == "" {
			c.Error(errutil.ValidationFailed("date query parameter is required", nil))
			return
		}

		row, err := svc.DayForUser(c.Request.Context(), c.Param("user_id"), day)
		if err != nil {
			c.Error(err)
			return
		}

		labels, err := EvaluateFraud(row)
		if err != nil {
			c.Error(err)
			return
		}
		if labels == nil {
			labels = []string{}
		}

		c.JSON(http.StatusOK, gin.H{"user_id": c.Param("user_id"), "date": day, "flags": labels})
	}
}
