package balance

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"setledger/pkg/errutil"
	"setledger/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) *Service {
	t.Helper()

	db := testutil.NewTestDB(t, &UserBalance{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(ServiceParams{DB: db, Node: node})
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, money(want).Equal(got), "want %s, got %s", want, got.String())
}

func TestGetBalanceNewUserReadsZeros(t *testing.T) {
	svc := newTestService(t)

	b, err := svc.GetBalance(context.Background(), "user-1")
	require.NoError(t, err)
	requireMoney(t, "0", b.Available)
	requireMoney(t, "0", b.Pending)
	requireMoney(t, "0", b.Gift)
	requireMoney(t, "0", b.LifetimeEarnings)
	require.Nil(t, b.LastWithdrawalAt)
}

func TestCreditEarnings(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.SetPending(ctx, "user-1", money("0.42")))
	require.NoError(t, svc.CreditEarnings(ctx, "user-1", money("1.80")))
	require.NoError(t, svc.CreditEarnings(ctx, "user-1", money("0.20")))

	b, err := svc.GetBalance(ctx, "user-1")
	require.NoError(t, err)
	requireMoney(t, "2.00", b.Available)
	requireMoney(t, "2.00", b.LifetimeEarnings)
	// A settled credit supersedes the provisional estimate.
	requireMoney(t, "0", b.Pending)

	require.Error(t, svc.CreditEarnings(ctx, "user-1", money("0")))
	require.Error(t, svc.CreditEarnings(ctx, "user-1", money("-1")))
}

func TestCreditEarningsRoundsHalfEven(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreditEarnings(ctx, "user-1", money("1.005")))
	require.NoError(t, svc.CreditEarnings(ctx, "user-2", money("1.015")))

	b1, err := svc.GetBalance(ctx, "user-1")
	require.NoError(t, err)
	requireMoney(t, "1.00", b1.Available)

	b2, err := svc.GetBalance(ctx, "user-2")
	require.NoError(t, err)
	requireMoney(t, "1.02", b2.Available)
}

func TestFreezeInsufficientFunds(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreditEarnings(ctx, "user-1", money("3.00")))

	err := svc.Freeze(ctx, "user-1", money("3.30"))
	require.Error(t, err)

	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, errutil.StatusUnprocessableEntity, be.Status())

	// The failed freeze must not touch the balance.
	b, err := svc.GetBalance(ctx, "user-1")
	require.NoError(t, err)
	requireMoney(t, "3.00", b.Available)
}

func TestFreezeReleaseRoundTrip(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreditEarnings(ctx, "user-1", money("10.00")))
	require.NoError(t, svc.Freeze(ctx, "user-1", money("3.30")))

	b, err := svc.GetBalance(ctx, "user-1")
	require.NoError(t, err)
	requireMoney(t, "6.70", b.Available)

	require.NoError(t, svc.Release(ctx, "user-1", money("3.30")))

	b, err = svc.GetBalance(ctx, "user-1")
	require.NoError(t, err)
	requireMoney(t, "10.00", b.Available)
	requireMoney(t, "10.00", b.LifetimeEarnings)
}

func TestFreezeExactBalanceAllowed(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreditEarnings(ctx, "user-1", money("3.30")))
	require.NoError(t, svc.Freeze(ctx, "user-1", money("3.30")))

	b, err := svc.GetBalance(ctx, "user-1")
	require.NoError(t, err)
	requireMoney(t, "0", b.Available)
}

func TestFinalizeWithdrawal(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreditEarnings(ctx, "user-1", money("10.00")))
	require.NoError(t, svc.Freeze(ctx, "user-1", money("3.30")))
	require.NoError(t, svc.FinalizeWithdrawal(ctx, "user-1", money("3.00")))

	b, err := svc.GetBalance(ctx, "user-1")
	require.NoError(t, err)
	// Funds were debited at freeze time; finalizing only moves counters.
	requireMoney(t, "6.70", b.Available)
	requireMoney(t, "3.00", b.TotalWithdrawn)
	requireMoney(t, "10.00", b.LifetimeEarnings)
	require.NotNil(t, b.LastWithdrawalAt)
}

func TestTransferGift(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreditEarnings(ctx, "sender", money("5.00")))
	require.NoError(t, svc.TransferGift(ctx, "sender", "receiver", money("2.00")))

	sender, err := svc.GetBalance(ctx, "sender")
	require.NoError(t, err)
	requireMoney(t, "3.00", sender.Available)

	receiver, err := svc.GetBalance(ctx, "receiver")
	require.NoError(t, err)
	requireMoney(t, "2.00", receiver.Gift)
	requireMoney(t, "0", receiver.Available)
}

func TestTransferGiftInsufficientFundsRollsBack(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreditEarnings(ctx, "sender", money("1.00")))

	err := svc.TransferGift(ctx, "sender", "receiver", money("2.00"))
	require.Error(t, err)

	sender, err := svc.GetBalance(ctx, "sender")
	require.NoError(t, err)
	requireMoney(t, "1.00", sender.Available)

	receiver, err := svc.GetBalance(ctx, "receiver")
	require.NoError(t, err)
	requireMoney(t, "0", receiver.Gift)
}

func TestTransferGiftValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.Error(t, svc.TransferGift(ctx, "sender", "sender", money("1.00")))
	require.Error(t, svc.TransferGift(ctx, "", "receiver", money("1.00")))
	require.Error(t, svc.TransferGift(ctx, "sender", "receiver", money("0")))
}
