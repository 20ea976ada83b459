package points

import (
	"context"
	"time"

	"setledger/pkg/db/option"
	"setledger/pkg/errutil"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ReasonDailyCapReached is the soft-rejection reason returned when a capped
// category is already full for the day.
const ReasonDailyCapReached = "daily limit reached"

// PendingEstimator refreshes a user's provisional pending balance after a
// successful accrual. Implemented by the balance service.
type PendingEstimator interface {
	RefreshPending(ctx context.Context, userID string, totalPoints int64) error
}

type Service struct {
	db        *gorm.DB
	node      *snowflake.Node
	estimator PendingEstimator
	clock     func() time.Time
}

type ServiceParams struct {
	fx.In
	DB        *gorm.DB
	Node      *snowflake.Node
	Estimator PendingEstimator
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:        p.DB,
		node:      p.Node,
		estimator: p.Estimator,
		clock:     time.Now,
	}
}

// WithTrx returns a copy of the service bound to an external transaction so
// callers can read and write point rows inside their own transaction.
func (s *Service) WithTrx(tx *gorm.DB) *Service {
	if tx == nil {
		return s
	}
	return &Service{db: tx, node: s.node, estimator: s.estimator, clock: s.clock}
}

type AddPointsInput struct {
	UserID    string
	Category  Category
	Amount    int64
	SourceRef string
}

// AddPointsResult reports the accrual outcome. A cap rejection is an
// expected, non-fatal outcome: Accepted is false and Reason explains why,
// with no error and no state change.
type AddPointsResult struct {
	Accepted      bool   `json:"accepted"`
	Reason        string `json:"reason,omitempty"`
	DayTotal      int64  `json:"day_total"`
	CategoryTotal int64  `json:"category_total"`
}

// AddPoints credits engagement points to the user's PointsDay row for today,
// enforcing the per-category daily cap. The category counter and the day
// total move in one transaction; concurrent accruals for the same user are
// serialized by a row lock on the PointsDay record.
func (s *Service) AddPoints(ctx context.Context, in AddPointsInput) (*AddPointsResult, error) {
	if in.UserID == "" {
		return nil, errutil.ValidationFailed("user_id is required", nil)
	}
	rule, ok := RuleFor(in.Category)
	if !ok {
		return nil, errutil.ValidationFailed("unknown point category", nil,
			errutil.WithDetails(errutil.Detail{Field: "category", Message: string(in.Category)}))
	}
	if in.Amount <= 0 {
		return nil, errutil.ValidationFailed("amount must be positive", nil)
	}

	day := DayKey(s.clock())
	result := &AddPointsResult{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.lockDay(ctx, tx, in.UserID, day)
		if err != nil {
			return err
		}

		totals, err := row.CategoryTotals()
		if err != nil {
			return err
		}

		current := totals[in.Category]
		if cap := rule.DailyCap(); cap > 0 && current >= cap {
			result.Accepted = false
			result.Reason = ReasonDailyCapReached
			result.DayTotal = row.TotalPoints
			result.CategoryTotal = current
			return nil
		}

		totals[in.Category] = current + in.Amount
		if err := row.SetCategoryTotals(totals); err != nil {
			return err
		}
		row.TotalPoints += in.Amount
		row.UpdatedAt = s.clock().UTC()

		if err := tx.WithContext(ctx).Save(row).Error; err != nil {
			return err
		}

		activity := &PointActivity{
			ID:        s.node.Generate().String(),
			UserID:    in.UserID,
			Category:  string(in.Category),
			Amount:    in.Amount,
			SourceRef: in.SourceRef,
			CreatedAt: s.clock().UTC(),
		}
		if err := tx.WithContext(ctx).Create(activity).Error; err != nil {
			return err
		}

		result.Accepted = true
		result.DayTotal = row.TotalPoints
		result.CategoryTotal = totals[in.Category]
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The pending estimate is advisory; a failed refresh must not undo an
	// accepted accrual.
	if result.Accepted && s.estimator != nil {
		if err := s.estimator.RefreshPending(ctx, in.UserID, result.DayTotal); err != nil {
			zap.L().Warn("failed to refresh pending estimate",
				zap.String("user_id", in.UserID), zap.Error(err))
		}
	}

	return result, nil
}

func (s *Service) lockDay(ctx context.Context, tx *gorm.DB, userID, day string) (*PointsDay, error) {
	var row PointsDay
	err := tx.WithContext(ctx).
		Scopes(option.LockingUpdate).
		Where(&PointsDay{UserID: userID, Day: day}).
		First(&row).Error
	if err == gorm.ErrRecordNotFound {
		now := s.clock().UTC()
		row = PointsDay{
			ID:        s.node.Generate().String(),
			UserID:    userID,
			Day:       day,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
			return nil, err
		}
		return &row, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// DayForUser loads one user's PointsDay row for a date; nil when absent.
func (s *Service) DayForUser(ctx context.Context, userID, day string) (*PointsDay, error) {
	var row PointsDay
	err := s.db.WithContext(ctx).Where(&PointsDay{UserID: userID, Day: day}).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// History returns the user's PointsDay rows for the trailing n days, newest
// first.
func (s *Service) History(ctx context.Context, userID string, days int) ([]*PointsDay, error) {
	if userID == "" {
		return nil, errutil.ValidationFailed("user_id is required", nil)
	}
	if days <= 0 {
		days = 7
	}
	since := DayKey(s.clock().AddDate(0, 0, -(days - 1)))

	var rows []*PointsDay
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND day >= ?", userID, since).
		Order("day DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// TotalForDay sums every user's points for the day. Settlement divides the
// distributable pool by this value.
func (s *Service) TotalForDay(ctx context.Context, day string) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).
		Model(&PointsDay{}).
		Where("day = ?", day).
		Select("COALESCE(SUM(total_points), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

// HoldersForDay returns every PointsDay row with points for the date, in a
// deterministic order for the settlement walk.
func (s *Service) HoldersForDay(ctx context.Context, day string) ([]*PointsDay, error) {
	var rows []*PointsDay
	err := s.db.WithContext(ctx).
		Where("day = ? AND total_points > 0", day).
		Order("user_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
