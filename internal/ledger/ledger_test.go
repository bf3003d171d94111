package ledger

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(rdb, decimal.NewFromInt(1000), decimal.NewFromInt(1))
}

func TestInitDayIfNeededSeedsOnce(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	status, err := l.Status(ctx)
	require.NoError(t, err)
	require.True(t, status.StartEquity.Equal(decimal.NewFromInt(1000)))
	require.True(t, status.Realized.IsZero())
	require.False(t, status.Halted)

	// A second call must not reseed over an already-incremented value.
	_, err = l.Increment(ctx, decimal.NewFromInt(10))
	require.NoError(t, err)
	status, err = l.Status(ctx)
	require.NoError(t, err)
	require.True(t, status.Realized.Equal(decimal.NewFromInt(10)))
}

func TestIncrementRecomputesPercentOnRead(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	status, err := l.Increment(ctx, decimal.NewFromInt(25))
	require.NoError(t, err)
	require.True(t, status.Percent.Equal(decimal.NewFromFloat(2.5)))

	status, err = l.Increment(ctx, decimal.NewFromInt(-5))
	require.NoError(t, err)
	require.True(t, status.Percent.Equal(decimal.NewFromInt(2)))
}

func TestIsHaltedAutoHaltsAtDailyTarget(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	halted, err := l.IsHalted(ctx)
	require.NoError(t, err)
	require.False(t, halted)

	_, err = l.Increment(ctx, decimal.NewFromInt(10))
	require.NoError(t, err)

	halted, err = l.IsHalted(ctx)
	require.NoError(t, err)
	require.True(t, halted, "realized reached dailyTargetPct of startEquity")
}

func TestSetHaltedIsExplicitAndSticky(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.SetHalted(ctx, true))
	halted, err := l.IsHalted(ctx)
	require.NoError(t, err)
	require.True(t, halted)

	require.NoError(t, l.SetHalted(ctx, false))
	halted, err = l.IsHalted(ctx)
	require.NoError(t, err)
	require.False(t, halted)
}

func TestResetDayClearsRealizedAndHalt(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	_, err := l.Increment(ctx, decimal.NewFromInt(50))
	require.NoError(t, err)
	require.NoError(t, l.SetHalted(ctx, true))

	status, err := l.ResetDay(ctx)
	require.NoError(t, err)
	require.True(t, status.Realized.IsZero())
	require.False(t, status.Halted)
}
