package balance

import (
	"context"

	"setledger/pkg/config"

	"github.com/shopspring/decimal"
)

// Estimator prices unsettled points into the pending balance using a flat
// configured per-point value. It is a deliberately separate collaborator so
// the estimate can be recomputed or invalidated without touching the accrual
// path; nightly settlement supersedes it entirely.
type Estimator struct {
	svc  *Service
	rate decimal.Decimal
}

func NewEstimator(svc *Service, cfg *config.Config) *Estimator {
	return &Estimator{
		svc:  svc,
		rate: cfg.EstimatedValuePerPoint(),
	}
}

// RefreshPending overwrites the user's pending estimate from today's running
// point total.
func (e *Estimator) RefreshPending(ctx context.Context, userID string, totalPoints int64) error {
	estimate := decimal.NewFromInt(totalPoints).Mul(e.rate)
	return e.svc.SetPending(ctx, userID, estimate)
}

// Invalidate clears the estimate, used when settlement replaces it with a
// real credit for users who end up with no payout.
func (e *Estimator) Invalidate(ctx context.Context, userID string) error {
	return e.svc.SetPending(ctx, userID, decimal.Zero)
}
