package balance

import (
	"context"
	"time"

	"setledger/pkg/db/option"
	"setledger/pkg/errutil"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,
	}
}

// WithTrx returns a copy of the service bound to an external transaction so
// callers can compose balance mutations with their own writes atomically.
func (s *Service) WithTrx(tx *gorm.DB) *Service {
	if tx == nil {
		return s
	}
	return &Service{db: tx, node: s.node}
}

// GetBalance returns the user's balance row, creating a zeroed one on first
// access so new users always read zeros rather than a not-found error.
func (s *Service) GetBalance(ctx context.Context, userID string) (*UserBalance, error) {
	if userID == "" {
		return nil, errutil.ValidationFailed("user_id is required", nil)
	}

	var row UserBalance
	err := s.db.WithContext(ctx).Where(&UserBalance{UserID: userID}).First(&row).Error
	if err == nil {
		return &row, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	return s.newRow(userID), nil
}

// CreditEarnings applies a settled distribution credit: available and
// lifetime earnings both grow and the provisional pending estimate is
// superseded, so it resets to zero.
func (s *Service) CreditEarnings(ctx context.Context, userID string, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return errutil.ValidationFailed("credit amount must be positive", nil)
	}
	return s.mutate(ctx, userID, func(b *UserBalance) error {
		credit := RoundMoney(amount)
		b.Available = b.Available.Add(credit)
		b.LifetimeEarnings = b.LifetimeEarnings.Add(credit)
		b.Pending = decimal.Zero
		return nil
	})
}

// SetPending overwrites the unsettled estimate for the user. The estimate is
// informational only and never feeds available funds.
func (s *Service) SetPending(ctx context.Context, userID string, amount decimal.Decimal) error {
	if amount.Sign() < 0 {
		return errutil.ValidationFailed("pending estimate cannot be negative", nil)
	}
	return s.mutate(ctx, userID, func(b *UserBalance) error {
		b.Pending = RoundMoney(amount)
		return nil
	})
}

// Freeze debits available funds at withdrawal-request time. The debit covers
// amount plus fee and fails as a policy violation when it would push the
// available balance negative.
func (s *Service) Freeze(ctx context.Context, userID string, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return errutil.ValidationFailed("freeze amount must be positive", nil)
	}
	return s.mutate(ctx, userID, func(b *UserBalance) error {
		debit := RoundMoney(amount)
		next := b.Available.Sub(debit)
		if next.Sign() < 0 {
			return errutil.UnprocessableEntity("insufficient funds", nil)
		}
		b.Available = next
		return nil
	})
}

// Release returns previously frozen funds after a rejected withdrawal.
func (s *Service) Release(ctx context.Context, userID string, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return errutil.ValidationFailed("release amount must be positive", nil)
	}
	return s.mutate(ctx, userID, func(b *UserBalance) error {
		b.Available = b.Available.Add(RoundMoney(amount))
		return nil
	})
}

// FinalizeWithdrawal records a completed withdrawal. The frozen funds were
// already debited at request time, so only the monotonic counters move here.
func (s *Service) FinalizeWithdrawal(ctx context.Context, userID string, requested decimal.Decimal) error {
	if requested.Sign() <= 0 {
		return errutil.ValidationFailed("withdrawal amount must be positive", nil)
	}
	return s.mutate(ctx, userID, func(b *UserBalance) error {
		now := time.Now().UTC()
		b.TotalWithdrawn = b.TotalWithdrawn.Add(RoundMoney(requested))
		b.LastWithdrawalAt = &now
		return nil
	})
}

// TransferGift moves money from the sender's available balance into the
// receiver's non-withdrawable gift balance.
func (s *Service) TransferGift(ctx context.Context, senderID, receiverID string, amount decimal.Decimal) error {
	if senderID == "" || receiverID == "" {
		return errutil.ValidationFailed("sender and receiver are required", nil)
	}
	if senderID == receiverID {
		return errutil.ValidationFailed("cannot gift yourself", nil)
	}
	if amount.Sign() <= 0 {
		return errutil.ValidationFailed("gift amount must be positive", nil)
	}

	gift := RoundMoney(amount)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		scoped := s.WithTrx(tx)
		if err := scoped.applyLocked(ctx, tx, senderID, func(b *UserBalance) error {
			next := b.Available.Sub(gift)
			if next.Sign() < 0 {
				return errutil.UnprocessableEntity("insufficient funds", nil)
			}
			b.Available = next
			return nil
		}); err != nil {
			return err
		}
		return scoped.applyLocked(ctx, tx, receiverID, func(b *UserBalance) error {
			b.Gift = b.Gift.Add(gift)
			return nil
		})
	})
}

// mutate runs fn against the row-locked balance row inside a transaction.
// The lock serializes the availability check with the write so concurrent
// debits cannot interleave.
func (s *Service) mutate(ctx context.Context, userID string, fn func(*UserBalance) error) error {
	if userID == "" {
		return errutil.ValidationFailed("user_id is required", nil)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.applyLocked(ctx, tx, userID, fn)
	})
}

func (s *Service) applyLocked(ctx context.Context, tx *gorm.DB, userID string, fn func(*UserBalance) error) error {
	var row UserBalance
	err := tx.WithContext(ctx).
		Scopes(option.LockingUpdate).
		Where(&UserBalance{UserID: userID}).
		First(&row).Error
	if err == gorm.ErrRecordNotFound {
		row = *s.newRow(userID)
		if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if err := fn(&row); err != nil {
		return err
	}

	row.UpdatedAt = time.Now().UTC()
	if err := tx.WithContext(ctx).Save(&row).Error; err != nil {
		zap.L().Error("failed to persist balance mutation",
			zap.String("user_id", userID), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) newRow(userID string) *UserBalance {
	now := time.Now().UTC()
	return &UserBalance{
		ID:               s.node.Generate().String(),
		UserID:           userID,
		Available:        decimal.Zero,
		Pending:          decimal.Zero,
		Gift:             decimal.Zero,
		LifetimeEarnings: decimal.Zero,
		TotalWithdrawn:   decimal.Zero,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
