package distribution

import (
	"net/http"
	"strconv"
	"time"

	"setledger/pkg/errutil"
	"setledger/services/points"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

type settleRequest struct {
	Date string `json:"date" binding:"required"`
}

func RegisterRoutes(engine *gin.Engine, e *Engine, s *Scheduler) {
	engine.POST("/v1/distributions/settle", settle(e))
	engine.GET("/v1/distributions/scheduler", schedulerStatus(s))
	engine.GET("/v1/distributions/:date", status(e))
	engine.GET("/v1/distributions/:date/top", topEarners(e))
}

// settle is the manual operational trigger; it calls the same idempotent
// entry point as the nightly schedule.
func settle(e *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		defer span.End()

		var req settleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(errutil.BadRequest("invalid settle payload", err))
			return
		}

		date, err := time.ParseInLocation(points.DayFormat, req.Date, time.UTC)
		if err != nil {
			c.Error(errutil.ValidationFailed("date must be YYYY-MM-DD", err))
			return
		}

		result, err := e.Settle(c.Request.Context(), date)
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func status(e *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		pool, err := e.Status(c.Request.Context(), c.Param("date"))
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusOK, pool)
	}
}

func topEarners(e *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

		earners, err := e.TopEarners(c.Request.Context(), c.Param("date"), limit)
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"date": c.Param("date"), "data": earners})
	}
}

func schedulerStatus(s *Scheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, s.Status())
	}
}
