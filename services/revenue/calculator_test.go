package revenue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"setledger/pkg/config"
	"setledger/services/testutil"
)

func decimalFromString(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	return decimal.RequireFromString(s)
}

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestCalculator(t *testing.T) *Calculator {
	t.Helper()

	db := testutil.NewTestDB(t, &AdImpression{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Revenue.CPMRate = "6.00"
	cfg.Revenue.Placement = "in_feed"

	return NewCalculator(CalculatorParams{DB: db, Node: node, Config: cfg})
}

func seedImpressions(t *testing.T, c *Calculator, n int, placement string, at time.Time) {
	t.Helper()

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	rows := make([]*AdImpression, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, &AdImpression{
			ID:        node.Generate().String(),
			UserID:    fmt.Sprintf("viewer-%d", i%50),
			Placement: placement,
			CreatedAt: at,
		})
	}
	require.NoError(t, c.db.CreateInBatches(rows, 500).Error)
}

func TestRecordImpression(t *testing.T) {
	calc := newTestCalculator(t)
	ctx := context.Background()

	require.NoError(t, calc.RecordImpression(ctx, "viewer-1"))
	require.Error(t, calc.RecordImpression(ctx, ""))

	var rows []AdImpression
	require.NoError(t, calc.db.Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, "in_feed", rows[0].Placement)
}

func TestComputeDailyPool(t *testing.T) {
	calc := newTestCalculator(t)
	ctx := context.Background()

	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	seedImpressions(t, calc, 5000, "in_feed", day.Add(10*time.Hour))

	estimate, err := calc.ComputeDailyPool(ctx, day)
	require.NoError(t, err)
	require.Equal(t, int64(5000), estimate.Impressions)
	// 5000 impressions at a 6.00 CPM is 30.00 gross.
	require.True(t, estimate.Gross.Equal(decimalFromString(t, "30")),
		"got %s", estimate.Gross.String())
}

func TestComputeDailyPoolFiltersWindowAndPlacement(t *testing.T) {
	calc := newTestCalculator(t)
	ctx := context.Background()

	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	seedImpressions(t, calc, 1000, "in_feed", day.Add(time.Hour))
	seedImpressions(t, calc, 500, "banner", day.Add(time.Hour))
	seedImpressions(t, calc, 700, "in_feed", day.Add(25*time.Hour))
	seedImpressions(t, calc, 300, "in_feed", day.Add(-time.Minute))

	estimate, err := calc.ComputeDailyPool(ctx, day)
	require.NoError(t, err)
	require.Equal(t, int64(1000), estimate.Impressions)
	require.True(t, estimate.Gross.Equal(decimalFromString(t, "6")),
		"got %s", estimate.Gross.String())
}

func TestComputeDailyPoolEmptyDay(t *testing.T) {
	calc := newTestCalculator(t)
	ctx := context.Background()

	estimate, err := calc.ComputeDailyPool(ctx, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Zero(t, estimate.Impressions)
	require.True(t, estimate.Gross.IsZero())
}
