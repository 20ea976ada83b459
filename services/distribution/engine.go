package distribution

import (
	"context"
	"sort"
	"time"

	"setledger/pkg/config"
	"setledger/pkg/db/option"
	"setledger/pkg/errutil"
	"setledger/services/balance"
	"setledger/services/points"
	"setledger/services/revenue"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// ReasonAlreadyDistributed reports an idempotent re-entry for a day
	// that already settled.
	ReasonAlreadyDistributed = "already distributed"
	// ReasonNoPoints reports a day with nothing to distribute; the pool is
	// never marked settled in that case.
	ReasonNoPoints = "no points to distribute"
)

// Engine runs the daily settlement: it prices the distributable pool, walks
// every point holder for the day, credits balances, and flips the pool to
// settled exactly once.
type Engine struct {
	db       *gorm.DB
	node     *snowflake.Node
	points   *points.Service
	revenue  *revenue.Calculator
	balance  *balance.Service
	locker   SettleLocker
	notifier Notifier

	share      decimal.Decimal
	topEarners int
}

type EngineParams struct {
	fx.In
	DB       *gorm.DB
	Node     *snowflake.Node
	Points   *points.Service
	Revenue  *revenue.Calculator
	Balance  *balance.Service
	Locker   SettleLocker
	Notifier Notifier
	Config   *config.Config
}

func NewEngine(p EngineParams) *Engine {
	return &Engine{
		db:         p.DB,
		node:       p.Node,
		points:     p.Points,
		revenue:    p.Revenue,
		balance:    p.Balance,
		locker:     p.Locker,
		notifier:   p.Notifier,
		share:      p.Config.DistributionShare(),
		topEarners: p.Config.Distribution.TopEarners,
	}
}

// SettleStats summarises a completed run.
type SettleStats struct {
	UsersCredited    int             `json:"users_credited"`
	TotalDistributed decimal.Decimal `json:"total_distributed"`
	AveragePerUser   decimal.Decimal `json:"average_per_user"`
	ValuePerPoint    decimal.Decimal `json:"value_per_point"`
}

// SettleResult is the outcome of one Settle call. Skipped outcomes (already
// settled, nothing to distribute) are successful no-ops, not errors.
type SettleResult struct {
	Day     string       `json:"day"`
	Settled bool         `json:"settled"`
	Skipped bool         `json:"skipped"`
	Reason  string       `json:"reason,omitempty"`
	Stats   *SettleStats `json:"stats,omitempty"`
}

// Settle converts the date's accumulated points into credited balances.
// The whole credit walk runs in a single transaction, so any failure aborts
// without partial credits and the next trigger retries the day wholesale.
func (e *Engine) Settle(ctx context.Context, date time.Time) (*SettleResult, error) {
	day := points.DayKey(date)
	zapLog := zap.L().With(zap.String("day", day))

	acquired, err := e.locker.Acquire(ctx, day)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, errutil.Conflict("settlement already in progress", nil)
	}
	defer e.locker.Release(ctx, day)

	pool, err := e.poolForDay(ctx, e.db, day)
	if err != nil {
		return nil, err
	}
	if pool != nil && pool.IsSettled {
		zapLog.Info("settlement skipped, day already distributed")
		return &SettleResult{Day: day, Skipped: true, Reason: ReasonAlreadyDistributed}, nil
	}

	estimate, err := e.revenue.ComputeDailyPool(ctx, date)
	if err != nil {
		return nil, err
	}
	distributable := estimate.Gross.Mul(e.share)

	totalPoints, err := e.points.TotalForDay(ctx, day)
	if err != nil {
		return nil, err
	}
	if totalPoints == 0 {
		zapLog.Info("settlement skipped, no points awarded for the day")
		return &SettleResult{Day: day, Skipped: true, Reason: ReasonNoPoints}, nil
	}

	// Guarded above: totalPoints is non-zero before this division.
	valuePerPoint := distributable.Div(decimal.NewFromInt(totalPoints))

	now := time.Now().UTC()
	if pool == nil {
		pool = &RevenuePool{
			ID:        e.node.Generate().String(),
			Day:       day,
			CreatedAt: now,
		}
	}
	pool.AdImpressions = estimate.Impressions
	pool.AdRevenueEstimate = balance.RoundMoney(estimate.Gross)
	pool.DistributablePool = balance.RoundMoney(distributable)
	pool.TotalPoints = totalPoints
	pool.ValuePerPoint = valuePerPoint
	pool.IsSettled = false
	pool.UpdatedAt = now
	if err := e.db.WithContext(ctx).Save(pool).Error; err != nil {
		return nil, err
	}

	stats := &SettleStats{ValuePerPoint: valuePerPoint, TotalDistributed: decimal.Zero}

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := e.poolForDayLocked(ctx, tx, day)
		if err != nil {
			return err
		}
		if current == nil {
			return errutil.Internal("settlement pool disappeared mid-run", nil)
		}
		if current.IsSettled {
			return errutil.Conflict(ReasonAlreadyDistributed, nil)
		}

		// Holders are read through the settlement transaction so the walk
		// and the credits see one snapshot of the day.
		holders, err := e.points.WithTrx(tx).HoldersForDay(ctx, day)
		if err != nil {
			return err
		}

		balanceTx := e.balance.WithTrx(tx)
		totalDistributed := decimal.Zero
		credited := 0

		for _, holder := range holders {
			amount := floorMoney(valuePerPoint.Mul(decimal.NewFromInt(holder.TotalPoints)))

			record := &PointDistribution{
				ID:             e.node.Generate().String(),
				PoolID:         current.ID,
				UserID:         holder.UserID,
				Day:            day,
				PointsRedeemed: holder.TotalPoints,
				AmountCredited: amount,
				Status:         DistributionStatusCredited,
				CreatedAt:      time.Now().UTC(),
			}
			if err := tx.WithContext(ctx).Create(record).Error; err != nil {
				return err
			}

			if amount.Sign() <= 0 {
				// A sub-cent share floors to zero: no funds move, but the
				// settlement still supersedes the pending estimate.
				if err := balanceTx.SetPending(ctx, holder.UserID, decimal.Zero); err != nil {
					return err
				}
				continue
			}

			if err := balanceTx.CreditEarnings(ctx, holder.UserID, amount); err != nil {
				return err
			}

			if flags, ferr := points.EvaluateFraud(holder); ferr == nil && len(flags) > 0 {
				zapLog.Warn("fraud flags raised during settlement walk",
					zap.String("user_id", holder.UserID),
					zap.Strings("flags", flags))
			}

			totalDistributed = totalDistributed.Add(amount)
			credited++
		}

		settledAt := time.Now().UTC()
		current.TotalDistributed = totalDistributed
		current.Remainder = pool.DistributablePool.Sub(totalDistributed)
		current.IsSettled = true
		current.SettledAt = &settledAt
		current.UpdatedAt = settledAt
		if err := tx.WithContext(ctx).Save(current).Error; err != nil {
			return err
		}

		stats.UsersCredited = credited
		stats.TotalDistributed = totalDistributed
		if credited > 0 {
			stats.AveragePerUser = balance.RoundMoney(totalDistributed.Div(decimal.NewFromInt(int64(credited))))
		}
		return nil
	})
	if err != nil {
		zapLog.Error("settlement run aborted, pool remains unsettled", zap.Error(err))
		return nil, err
	}

	zapLog.Info("settlement run completed",
		zap.Int("users_credited", stats.UsersCredited),
		zap.String("total_distributed", stats.TotalDistributed.String()),
		zap.String("value_per_point", stats.ValuePerPoint.String()),
	)

	earners, err := e.TopEarners(ctx, day, e.topEarners)
	if err != nil {
		zapLog.Warn("failed to rank top earners", zap.Error(err))
	} else if len(earners) > 0 {
		e.notifier.NotifyTopEarners(ctx, day, earners)
	}

	return &SettleResult{Day: day, Settled: true, Stats: stats}, nil
}

// Status reports the settlement state of a day without mutating anything.
func (e *Engine) Status(ctx context.Context, day string) (*RevenuePool, error) {
	pool, err := e.poolForDay(ctx, e.db, day)
	if err != nil {
		return nil, err
	}
	if pool == nil {
		return nil, errutil.NotFound("no settlement recorded for the day", nil)
	}
	return pool, nil
}

// TopEarners ranks the day's credited users by amount descending, earliest
// credit first on ties.
func (e *Engine) TopEarners(ctx context.Context, day string, limit int) ([]TopEarner, error) {
	if limit <= 0 {
		limit = 10
	}

	var rows []*PointDistribution
	err := e.db.WithContext(ctx).
		Where("day = ?", day).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	// Decimal columns persist as strings on some dialects, so the ranking
	// is done here rather than in SQL.
	sort.SliceStable(rows, func(i, j int) bool {
		if cmp := rows[i].AmountCredited.Cmp(rows[j].AmountCredited); cmp != 0 {
			return cmp > 0
		}
		return rows[i].CreatedAt.Before(rows[j].CreatedAt)
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}

	earners := make([]TopEarner, 0, len(rows))
	for _, row := range rows {
		earners = append(earners, TopEarner{
			UserID:         row.UserID,
			PointsRedeemed: row.PointsRedeemed,
			AmountCredited: row.AmountCredited,
		})
	}
	return earners, nil
}

// floorMoney truncates a pro-rata credit to whole cents. Flooring instead of
// rounding keeps the credited sum within the distributable pool; the shaved
// sub-cent amounts accumulate into the pool's recorded remainder.
func floorMoney(d decimal.Decimal) decimal.Decimal {
	return d.RoundFloor(2)
}

func (e *Engine) poolForDay(ctx context.Context, db *gorm.DB, day string) (*RevenuePool, error) {
	var pool RevenuePool
	err := db.WithContext(ctx).Where(&RevenuePool{Day: day}).First(&pool).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pool, nil
}

func (e *Engine) poolForDayLocked(ctx context.Context, tx *gorm.DB, day string) (*RevenuePool, error) {
	var pool RevenuePool
	err := tx.WithContext(ctx).
		Scopes(option.LockingUpdate).
		Where(&RevenuePool{Day: day}).
		First(&pool).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pool, nil
}
