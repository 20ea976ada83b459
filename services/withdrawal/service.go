package withdrawal

import (
	"context"
	"encoding/json"
	"time"

	"setledger/pkg/db/option"
	"setledger/pkg/errutil"
	"setledger/pkg/repository"
	"setledger/pkg/sequence"
	"setledger/services/balance"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// cooldown is the rolling window during which only one withdrawal is
// permitted.
const cooldown = 30 * 24 * time.Hour

type Service struct {
	db       *gorm.DB
	repo     repository.Repository[WithdrawalRequest]
	node     *snowflake.Node
	balance  *balance.Service
	sequence sequence.Generator
	clock    func() time.Time
}

type ServiceParams struct {
	fx.In
	DB       *gorm.DB
	Node     *snowflake.Node
	Balance  *balance.Service
	Sequence sequence.Generator `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:       p.DB,
		repo:     repository.ProvideStore[WithdrawalRequest](p.DB),
		node:     p.Node,
		balance:  p.Balance,
		sequence: p.Sequence,
		clock:    time.Now,
	}
}

type CreateInput struct {
	UserID  string
	Amount  decimal.Decimal
	Method  Method
	Details PaymentDetails
}

// Create validates the request and freezes amount+fee out of the available
// balance in the same transaction that writes the pending row. Debiting at
// request time rather than approval time is what prevents two concurrent
// requests from double-spending the same funds.
func (s *Service) Create(ctx context.Context, in CreateInput) (*WithdrawalRequest, error) {
	if in.UserID == "" {
		return nil, errutil.ValidationFailed("user_id is required", nil)
	}

	spec, ok := SpecFor(in.Method)
	if !ok {
		return nil, errutil.ValidationFailed("unsupported withdrawal method", nil,
			errutil.WithDetails(errutil.Detail{Field: "method", Message: string(in.Method)}))
	}
	if in.Amount.Cmp(spec.Minimum) < 0 {
		return nil, errutil.ValidationFailed("amount below method minimum", nil,
			errutil.WithDetails(errutil.Detail{Field: "amount", Message: "minimum is " + spec.Minimum.StringFixed(2)}))
	}
	if err := spec.Validate(in.Details); err != nil {
		return nil, err
	}

	detailsJSON, err := json.Marshal(in.Details)
	if err != nil {
		return nil, errutil.ValidationFailed("invalid payment details", err)
	}

	amount := balance.RoundMoney(in.Amount)
	fee := balance.RoundMoney(spec.Fee)
	now := s.clock().UTC()

	// The reference code is cosmetic; a generator outage must not block the
	// withdrawal itself.
	var reference string
	if s.sequence != nil {
		reference, err = s.sequence.NextWithdrawalCode(ctx)
		if err != nil {
			zap.L().Warn("failed to issue withdrawal reference code", zap.Error(err))
			reference = ""
		}
	}

	request := &WithdrawalRequest{
		ID:             s.node.Generate().String(),
		Reference:      reference,
		UserID:         in.UserID,
		Amount:         amount,
		Method:         string(in.Method),
		Fee:            fee,
		NetAmount:      amount.Sub(fee),
		Status:         StatusPending,
		PaymentDetails: datatypes.JSON(detailsJSON),
		RequestedAt:    now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var outstanding int64
		if err := tx.WithContext(ctx).
			Model(&WithdrawalRequest{}).
			Where("user_id = ? AND status IN ?", in.UserID, []Status{StatusPending, StatusProcessing}).
			Count(&outstanding).Error; err != nil {
			return err
		}
		if outstanding > 0 {
			return errutil.UnprocessableEntity("a withdrawal request is already in progress", nil)
		}

		current, err := s.balance.WithTrx(tx).GetBalance(ctx, in.UserID)
		if err != nil {
			return err
		}
		if current.LastWithdrawalAt != nil && now.Sub(*current.LastWithdrawalAt) < cooldown {
			return errutil.UnprocessableEntity("only one withdrawal is allowed every 30 days", nil)
		}

		// Freeze performs the availability check and the debit under the
		// same row lock.
		if err := s.balance.WithTrx(tx).Freeze(ctx, in.UserID, request.Frozen()); err != nil {
			return err
		}

		return tx.WithContext(ctx).Create(request).Error
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("withdrawal requested",
		zap.String("user_id", in.UserID),
		zap.String("request_id", request.ID),
		zap.String("method", request.Method),
		zap.String("amount", amount.String()),
	)

	return request, nil
}

// Approve moves a pending request through processing to completed in one
// call; the payment confirmer is an external black box. Frozen funds stay
// debited; only the monotonic withdrawal counters move.
func (s *Service) Approve(ctx context.Context, requestID string) (*WithdrawalRequest, error) {
	var request *WithdrawalRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.lockRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if row.Status != StatusPending {
			return errutil.Conflict("withdrawal already processed", nil)
		}

		now := s.clock().UTC()
		row.Status = StatusCompleted
		row.ProcessedAt = &now
		row.CompletedAt = &now
		row.UpdatedAt = now
		if err := tx.WithContext(ctx).Save(row).Error; err != nil {
			return err
		}

		if err := s.balance.WithTrx(tx).FinalizeWithdrawal(ctx, row.UserID, row.Amount); err != nil {
			return err
		}

		request = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

// Reject releases the frozen amount+fee back to the available balance and
// terminally marks the request rejected.
func (s *Service) Reject(ctx context.Context, requestID, reason string) (*WithdrawalRequest, error) {
	if reason == "" {
		return nil, errutil.ValidationFailed("rejection reason is required", nil)
	}

	var request *WithdrawalRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.lockRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if row.Status != StatusPending {
			return errutil.Conflict("withdrawal already processed", nil)
		}

		now := s.clock().UTC()
		row.Status = StatusRejected
		row.RejectionReason = reason
		row.ProcessedAt = &now
		row.UpdatedAt = now
		if err := tx.WithContext(ctx).Save(row).Error; err != nil {
			return err
		}

		if err := s.balance.WithTrx(tx).Release(ctx, row.UserID, row.Frozen()); err != nil {
			return err
		}

		request = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

// ListByUser returns the user's withdrawal requests, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]*WithdrawalRequest, error) {
	if userID == "" {
		return nil, errutil.ValidationFailed("user_id is required", nil)
	}

	return s.repo.Find(ctx, &WithdrawalRequest{UserID: userID},
		option.WithSortBy(option.QuerySortBy{SortBy: "requested_at", OrderBy: "desc"}))
}

func (s *Service) lockRequest(ctx context.Context, tx *gorm.DB, requestID string) (*WithdrawalRequest, error) {
	row, err := s.repo.WithTrx(tx).FindOne(ctx, &WithdrawalRequest{ID: requestID}, option.WithLockingUpdate())
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, errutil.NotFound("withdrawal request not found", nil)
	}
	return row, nil
}
