package distribution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"setledger/pkg/errutil"
	"setledger/pkg/taskname"
	"setledger/services/points"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// SettleDayPayload carries the target day for a queued settlement run.
type SettleDayPayload struct {
	Day string `json:"day"`
}

// NewSettleDayTask builds the asynq task for the given day key.
func NewSettleDayTask(day string) (*asynq.Task, error) {
	payload, err := json.Marshal(SettleDayPayload{Day: day})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskname.DistributionSettleDay, payload), nil
}

// HandleSettleDayTask is the queue-side entry point; it converges on the
// same idempotent Settle call as the manual HTTP trigger.
func (e *Engine) HandleSettleDayTask(ctx context.Context, t *asynq.Task) error {
	var payload SettleDayPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	date, err := time.ParseInLocation(points.DayFormat, payload.Day, time.UTC)
	if err != nil {
		return fmt.Errorf("invalid day %q: %w", payload.Day, err)
	}

	zapLog := zap.L().With(
		zap.String("task_type", t.Type()),
		zap.String("day", payload.Day),
	)
	zapLog.Info("start settlement task")

	result, err := e.Settle(ctx, date)
	if err != nil {
		var be errutil.BaseError
		if errors.As(err, &be) && be.Status() == errutil.StatusConflict {
			// Another run holds the day; the daily schedule retries it.
			zapLog.Warn("settlement already running, skipping", zap.Error(err))
			return nil
		}
		zapLog.Error("settlement task failed", zap.Error(err))
		return err
	}

	if result.Skipped {
		zapLog.Info("settlement task skipped", zap.String("reason", result.Reason))
	} else {
		zapLog.Info("settlement task finished",
			zap.Int("users_credited", result.Stats.UsersCredited))
	}
	return nil
}

// RegisterTasks binds the engine's handlers on the asynq mux.
func RegisterTasks(mux *asynq.ServeMux, engine *Engine) {
	mux.HandleFunc(taskname.DistributionSettleDay, engine.HandleSettleDayTask)
}
