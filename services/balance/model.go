package balance

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserBalance is the lifetime money position of a single creator. Available
// funds are withdrawable; pending is the provisional pre-settlement estimate;
// gift holds ad-funded, non-withdrawable credit received from other users.
type UserBalance struct {
	ID               string          `gorm:"column:id;primaryKey"`
	UserID           string          `gorm:"column:user_id;uniqueIndex;not null"`
	Available        decimal.Decimal `gorm:"column:available;type:numeric(20,8);not null"`
	Pending          decimal.Decimal `gorm:"column:pending;type:numeric(20,8);not null"`
	Gift             decimal.Decimal `gorm:"column:gift;type:numeric(20,8);not null"`
	LifetimeEarnings decimal.Decimal `gorm:"column:lifetime_earnings;type:numeric(20,8);not null"`
	TotalWithdrawn   decimal.Decimal `gorm:"column:total_withdrawn;type:numeric(20,8);not null"`
	LastWithdrawalAt *time.Time      `gorm:"column:last_withdrawal_at"`
	CreatedAt        time.Time       `gorm:"column:created_at"`
	UpdatedAt        time.Time       `gorm:"column:updated_at"`
}

func (UserBalance) TableName() string {
	return "user_balances"
}

// RoundMoney applies the persist-boundary rounding mode. Internal arithmetic
// stays full precision; half-even at two decimal places is applied only when
// an amount is written to a balance field.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(2)
}
