package points

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"setledger/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type estimatorStub struct {
	calls []int64
	users []string
	err   error
}

func (s *estimatorStub) RefreshPending(ctx context.Context, userID string, totalPoints int64) error {
	s.users = append(s.users, userID)
	s.calls = append(s.calls, totalPoints)
	return s.err
}

func newTestService(t *testing.T, est PendingEstimator) *Service {
	t.Helper()

	db := testutil.NewTestDB(t, &PointsDay{}, &PointActivity{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(ServiceParams{DB: db, Node: node, Estimator: est})
}

func TestAddPointsAccumulatesAcrossCategories(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	res, err := svc.AddPoints(ctx, AddPointsInput{UserID: "user-1", Category: CategoryLike, Amount: 1})
	require.NoError(t, err)
	require.True(t, res.Accepted)
	require.Equal(t, int64(1), res.DayTotal)
	require.Equal(t, int64(1), res.CategoryTotal)

	res, err = svc.AddPoints(ctx, AddPointsInput{UserID: "user-1", Category: CategoryComment, Amount: 2})
	require.NoError(t, err)
	require.True(t, res.Accepted)
	require.Equal(t, int64(3), res.DayTotal)
	require.Equal(t, int64(2), res.CategoryTotal)

	day, err := svc.DayForUser(ctx, "user-1", DayKey(time.Now()))
	require.NoError(t, err)
	require.NotNil(t, day)
	require.Equal(t, int64(3), day.TotalPoints)

	totals, err := day.CategoryTotals()
	require.NoError(t, err)
	require.Equal(t, int64(1), totals[CategoryLike])
	require.Equal(t, int64(2), totals[CategoryComment])

	var sum int64
	for _, v := range totals {
		sum += v
	}
	require.Equal(t, day.TotalPoints, sum)
}

func TestAddPointsWritesActivityLog(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.AddPoints(ctx, AddPointsInput{
		UserID: "user-1", Category: CategoryShare, Amount: 3, SourceRef: "video-42",
	})
	require.NoError(t, err)

	var activities []PointActivity
	require.NoError(t, svc.db.Find(&activities).Error)
	require.Len(t, activities, 1)
	require.Equal(t, "user-1", activities[0].UserID)
	require.Equal(t, string(CategoryShare), activities[0].Category)
	require.Equal(t, int64(3), activities[0].Amount)
	require.Equal(t, "video-42", activities[0].SourceRef)
}

func TestAddPointsDailyCapBoundary(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	rule, ok := RuleFor(CategoryLiveStream)
	require.True(t, ok)
	cap := rule.DailyCap()
	require.Equal(t, int64(100), cap)

	// Fill right up to one event below the cap.
	for i := int64(0); i < rule.MaxEventsPerDay-1; i++ {
		res, err := svc.AddPoints(ctx, AddPointsInput{
			UserID: "user-1", Category: CategoryLiveStream, Amount: rule.PointsPerEvent,
		})
		require.NoError(t, err)
		require.True(t, res.Accepted)
	}

	// The event that lands exactly on the cap is still accepted.
	res, err := svc.AddPoints(ctx, AddPointsInput{
		UserID: "user-1", Category: CategoryLiveStream, Amount: rule.PointsPerEvent,
	})
	require.NoError(t, err)
	require.True(t, res.Accepted)
	require.Equal(t, cap, res.CategoryTotal)

	// Anything past the cap is softly rejected, not errored.
	res, err = svc.AddPoints(ctx, AddPointsInput{
		UserID: "user-1", Category: CategoryLiveStream, Amount: rule.PointsPerEvent,
	})
	require.NoError(t, err)
	require.False(t, res.Accepted)
	require.Equal(t, ReasonDailyCapReached, res.Reason)
	require.Equal(t, cap, res.CategoryTotal)
	require.Equal(t, cap, res.DayTotal)
}

func TestAddPointsRejectionDoesNotMutate(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	rule, _ := RuleFor(CategoryVideoUpload)
	for i := int64(0); i < rule.MaxEventsPerDay; i++ {
		res, err := svc.AddPoints(ctx, AddPointsInput{
			UserID: "user-1", Category: CategoryVideoUpload, Amount: rule.PointsPerEvent,
		})
		require.NoError(t, err)
		require.True(t, res.Accepted)
	}

	var activitiesBefore int64
	require.NoError(t, svc.db.Model(&PointActivity{}).Count(&activitiesBefore).Error)

	res, err := svc.AddPoints(ctx, AddPointsInput{
		UserID: "user-1", Category: CategoryVideoUpload, Amount: rule.PointsPerEvent,
	})
	require.NoError(t, err)
	require.False(t, res.Accepted)

	day, err := svc.DayForUser(ctx, "user-1", DayKey(time.Now()))
	require.NoError(t, err)
	require.Equal(t, rule.DailyCap(), day.TotalPoints)

	var activitiesAfter int64
	require.NoError(t, svc.db.Model(&PointActivity{}).Count(&activitiesAfter).Error)
	require.Equal(t, activitiesBefore, activitiesAfter)
}

func TestAddPointsUncappedCategory(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := svc.AddPoints(ctx, AddPointsInput{
			UserID: "creator-1", Category: CategoryFollower, Amount: 5000,
		})
		require.NoError(t, err)
		require.True(t, res.Accepted)
	}

	day, err := svc.DayForUser(ctx, "creator-1", DayKey(time.Now()))
	require.NoError(t, err)
	require.Equal(t, int64(15000), day.TotalPoints)
}

func TestAddPointsValidation(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.AddPoints(ctx, AddPointsInput{Category: CategoryLike, Amount: 1})
	require.Error(t, err)

	_, err = svc.AddPoints(ctx, AddPointsInput{UserID: "user-1", Category: "teleport", Amount: 1})
	require.Error(t, err)

	_, err = svc.AddPoints(ctx, AddPointsInput{UserID: "user-1", Category: CategoryLike, Amount: 0})
	require.Error(t, err)

	_, err = svc.AddPoints(ctx, AddPointsInput{UserID: "user-1", Category: CategoryLike, Amount: -3})
	require.Error(t, err)
}

func TestAddPointsRefreshesPendingEstimate(t *testing.T) {
	est := &estimatorStub{}
	svc := newTestService(t, est)
	ctx := context.Background()

	_, err := svc.AddPoints(ctx, AddPointsInput{UserID: "user-1", Category: CategoryLike, Amount: 1})
	require.NoError(t, err)
	_, err = svc.AddPoints(ctx, AddPointsInput{UserID: "user-1", Category: CategoryComment, Amount: 2})
	require.NoError(t, err)

	require.Equal(t, []string{"user-1", "user-1"}, est.users)
	require.Equal(t, []int64{1, 3}, est.calls)
}

func TestAddPointsEstimatorFailureDoesNotUndoAccrual(t *testing.T) {
	est := &estimatorStub{err: context.DeadlineExceeded}
	svc := newTestService(t, est)
	ctx := context.Background()

	res, err := svc.AddPoints(ctx, AddPointsInput{UserID: "user-1", Category: CategoryLike, Amount: 1})
	require.NoError(t, err)
	require.True(t, res.Accepted)

	day, err := svc.DayForUser(ctx, "user-1", DayKey(time.Now()))
	require.NoError(t, err)
	require.Equal(t, int64(1), day.TotalPoints)
}

func TestHistoryReturnsTrailingDaysNewestFirst(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	base := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	svc.clock = func() time.Time { return base }

	for offset := 0; offset < 5; offset++ {
		day := base.AddDate(0, 0, -offset)
		svc.clock = func() time.Time { return day }
		_, err := svc.AddPoints(ctx, AddPointsInput{UserID: "user-1", Category: CategoryLike, Amount: 1})
		require.NoError(t, err)
	}

	svc.clock = func() time.Time { return base }
	rows, err := svc.History(ctx, "user-1", 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "2025-03-10", rows[0].Day)
	require.Equal(t, "2025-03-09", rows[1].Day)
	require.Equal(t, "2025-03-08", rows[2].Day)
}

func TestTotalAndHoldersForDay(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	fixed := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	svc.clock = func() time.Time { return fixed }
	day := DayKey(fixed)

	_, err := svc.AddPoints(ctx, AddPointsInput{UserID: "b", Category: CategoryLike, Amount: 10})
	require.NoError(t, err)
	_, err = svc.AddPoints(ctx, AddPointsInput{UserID: "a", Category: CategoryComment, Amount: 20})
	require.NoError(t, err)

	total, err := svc.TotalForDay(ctx, day)
	require.NoError(t, err)
	require.Equal(t, int64(30), total)

	holders, err := svc.HoldersForDay(ctx, day)
	require.NoError(t, err)
	require.Len(t, holders, 2)
	require.Equal(t, "a", holders[0].UserID)
	require.Equal(t, "b", holders[1].UserID)

	total, err = svc.TotalForDay(ctx, "2020-01-01")
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestWithTrxReadsThroughOpenTransaction(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	day := DayKey(time.Now())

	// The test pool allows a single connection, so a read routed through the
	// outer handle would block against the open transaction.
	err := svc.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		row := &PointsDay{
			ID:          svc.node.Generate().String(),
			UserID:      "user-1",
			Day:         day,
			TotalPoints: 7,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		require.NoError(t, row.SetCategoryTotals(map[Category]int64{CategoryLike: 7}))
		require.NoError(t, tx.Create(row).Error)

		holders, err := svc.WithTrx(tx).HoldersForDay(ctx, day)
		require.NoError(t, err)
		require.Len(t, holders, 1)
		require.Equal(t, int64(7), holders[0].TotalPoints)

		total, err := svc.WithTrx(tx).TotalForDay(ctx, day)
		require.NoError(t, err)
		require.Equal(t, int64(7), total)
		return nil
	})
	require.NoError(t, err)
}
