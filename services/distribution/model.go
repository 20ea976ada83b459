package distribution

import (
	"time"

	"github.com/shopspring/decimal"
)

// RevenuePool is the single settlement record for one UTC day. IsSettled is
// one-way: flipping it is the commit point that makes any re-run a no-op.
type RevenuePool struct {
	ID                string          `gorm:"column:id;primaryKey"`
	Day               string          `gorm:"column:day;uniqueIndex;not null"`
	AdImpressions     int64           `gorm:"column:ad_impressions;not null"`
	AdRevenueEstimate decimal.Decimal `gorm:"column:ad_revenue_estimate;type:numeric(20,8);not null"`
	DistributablePool decimal.Decimal `gorm:"column:distributable_pool;type:numeric(20,8);not null"`
	TotalPoints       int64           `gorm:"column:total_points;not null"`
	ValuePerPoint     decimal.Decimal `gorm:"column:value_per_point;type:numeric(28,16);not null"`
	TotalDistributed  decimal.Decimal `gorm:"column:total_distributed;type:numeric(20,8);not null"`
	Remainder         decimal.Decimal `gorm:"column:remainder;type:numeric(20,8);not null"`
	IsSettled         bool            `gorm:"column:is_settled;not null"`
	SettledAt         *time.Time      `gorm:"column:settled_at"`
	CreatedAt         time.Time       `gorm:"column:created_at"`
	UpdatedAt         time.Time       `gorm:"column:updated_at"`
}

func (RevenuePool) TableName() string {
	return "revenue_pools"
}

// DistributionStatusCredited is the only status a distribution row ever
// carries; rows are immutable once written.
const DistributionStatusCredited = "credited"

// PointDistribution is the immutable per-user audit record of one settlement
// credit.
type PointDistribution struct {
	ID             string          `gorm:"column:id;primaryKey"`
	PoolID         string          `gorm:"column:pool_id;index;not null"`
	UserID         string          `gorm:"column:user_id;uniqueIndex:uk_user_pool;not null"`
	Day            string          `gorm:"column:day;uniqueIndex:uk_user_pool;index;not null"`
	PointsRedeemed int64           `gorm:"column:points_redeemed;not null"`
	AmountCredited decimal.Decimal `gorm:"column:amount_credited;type:numeric(20,8);not null"`
	Status         string          `gorm:"column:status;not null"`
	CreatedAt      time.Time       `gorm:"column:created_at"`
}

func (PointDistribution) TableName() string {
	return "point_distributions"
}
