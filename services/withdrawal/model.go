package withdrawal

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusRejected   Status = "rejected"
)

// WithdrawalRequest tracks one payout from request through settlement.
// Funds freeze at creation time: the available balance is already debited by
// amount+fee when the row is written, so approval never touches it again.
type WithdrawalRequest struct {
	ID              string          `gorm:"column:id;primaryKey"`
	Reference       string          `gorm:"column:reference;index"`
	UserID          string          `gorm:"column:user_id;index;not null"`
	Amount          decimal.Decimal `gorm:"column:amount;type:numeric(20,8);not null"`
	Method          string          `gorm:"column:method;not null"`
	Fee             decimal.Decimal `gorm:"column:fee;type:numeric(20,8);not null"`
	NetAmount       decimal.Decimal `gorm:"column:net_amount;type:numeric(20,8);not null"`
	Status          Status          `gorm:"column:status;index;not null"`
	PaymentDetails  datatypes.JSON  `gorm:"column:payment_details"`
	RejectionReason string          `gorm:"column:rejection_reason"`
	RequestedAt     time.Time       `gorm:"column:requested_at;not null"`
	ProcessedAt     *time.Time      `gorm:"column:processed_at"`
	CompletedAt     *time.Time      `gorm:"column:completed_at"`
	CreatedAt       time.Time       `gorm:"column:created_at"`
	UpdatedAt       time.Time       `gorm:"column:updated_at"`
}

func (WithdrawalRequest) TableName() string {
	return "withdrawal_requests"
}

// Frozen is the total debited from the available balance for this request.
func (w *WithdrawalRequest) Frozen() decimal.Decimal {
	return w.Amount.Add(w.Fee)
}
