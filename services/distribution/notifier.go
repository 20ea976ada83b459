package distribution

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TopEarner is one entry in the day's earner ranking, amount descending with
// ties broken by earliest credit.
type TopEarner struct {
	UserID         string          `json:"user_id"`
	PointsRedeemed int64           `json:"points_redeemed"`
	AmountCredited decimal.Decimal `json:"amount_credited"`
}

// Notifier delivers the daily top-earner announcement. Delivery itself is an
// external concern; the engine only hands over the ranking after commit.
type Notifier interface {
	NotifyTopEarners(ctx context.Context, day string, earners []TopEarner)
}

type logNotifier struct{}

// NewLogNotifier returns a Notifier that records the announcement in the
// application log, standing in for the push/notification pipeline.
func NewLogNotifier() Notifier {
	return logNotifier{}
}

func (logNotifier) NotifyTopEarners(ctx context.Context, day string, earners []TopEarner) {
	for i, e := range earners {
		zap.L().Info("top earner of the day",
			zap.String("day", day),
			zap.Int("rank", i+1),
			zap.String("user_id", e.UserID),
			zap.Int64("points", e.PointsRedeemed),
			zap.String("amount", e.AmountCredited.String()),
		)
	}
}
