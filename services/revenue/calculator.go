package revenue

import (
	"context"
	"time"

	"setledger/pkg/config"
	"setledger/pkg/errutil"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var perMille = decimal.NewFromInt(1000)

// Calculator estimates the day's gross ad revenue from impression counts.
// The output is an estimate fed into distribution, never a reconciled
// payment figure.
type Calculator struct {
	db        *gorm.DB
	node      *snowflake.Node
	cpmRate   decimal.Decimal
	placement string
}

type CalculatorParams struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Config *config.Config
}

func NewCalculator(p CalculatorParams) *Calculator {
	return &Calculator{
		db:        p.DB,
		node:      p.Node,
		cpmRate:   p.Config.CPMRate(),
		placement: p.Config.Revenue.Placement,
	}
}

// RecordImpression appends one served-ad event. The feed layer calls this
// for every in-feed ad it renders.
func (c *Calculator) RecordImpression(ctx context.Context, userID string) error {
	if userID == "" {
		return errutil.ValidationFailed("user_id is required", nil)
	}
	return c.db.WithContext(ctx).Create(&AdImpression{
		ID:        c.node.Generate().String(),
		UserID:    userID,
		Placement: c.placement,
		CreatedAt: time.Now().UTC(),
	}).Error
}

// DailyEstimate reports the computed gross for a settlement day.
type DailyEstimate struct {
	Impressions int64
	Gross       decimal.Decimal
}

// ComputeDailyPool counts the designated placement's impressions within the
// UTC day starting at date and converts them with the configured CPM rate.
// The division stays full precision; rounding happens downstream at the
// persist boundary.
func (c *Calculator) ComputeDailyPool(ctx context.Context, date time.Time) (*DailyEstimate, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	var count int64
	err := c.db.WithContext(ctx).
		Model(&AdImpression{}).
		Where("placement = ? AND created_at >= ? AND created_at < ?", c.placement, dayStart, dayEnd).
		Count(&count).Error
	if err != nil {
		return nil, err
	}

	gross := decimal.NewFromInt(count).Div(perMille).Mul(c.cpmRate)

	return &DailyEstimate{
		Impressions: count,
		Gross:       gross,
	}, nil
}
