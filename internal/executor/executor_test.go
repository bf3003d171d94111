package executor

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/marketloop/coordinator/internal/broker"
	"github.com/marketloop/coordinator/internal/schema"
)

func newTestService(t *testing.T, adapter Adapter) (*Service, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	bc, err := broker.New("redis://" + mr.Addr())
	require.NoError(t, err)

	svc := NewService(bc, zerolog.Nop(), Options{
		Adapter:            adapter,
		ProfitPerTrade:     "10",
		StaleAfter:         time.Minute,
		ReconcileInterval:  time.Minute,
		RateLimitPerSecond: 1000,
	})
	return svc, rdb
}

func TestPaperAdapterAlwaysFills(t *testing.T) {
	a := PaperAdapter{Price: decimal.NewFromInt(100), Fee: decimal.NewFromFloat(0.5)}
	fill, err := a.PlaceOrder(context.Background(), schema.Order{Qty: decimal.NewFromInt(2)})
	require.NoError(t, err)
	require.True(t, fill.Filled)
	require.True(t, fill.Notional.Equal(decimal.NewFromInt(200)))
}

func TestBinanceAdapterReturnsNotImplemented(t *testing.T) {
	a := BinanceAdapter{}
	_, err := a.PlaceOrder(context.Background(), schema.Order{})
	require.ErrorIs(t, err, ErrNotImplemented)
}

func TestHandleOrderPersistsTerminalStateAndEmitsStatus(t *testing.T) {
	adapter := PaperAdapter{Price: decimal.NewFromInt(100), Fee: decimal.NewFromFloat(0)}
	svc, rdb := newTestService(t, adapter)
	ctx := context.Background()

	order := schema.Order{OrderID: "order-1", Symbol: "BTC-USD", Side: schema.SideBuy, Qty: decimal.NewFromInt(1), TS: time.Now().UTC()}
	values, err := encodeForTest(order)
	require.NoError(t, err)

	_, err = svc.handle(ctx, values)
	require.NoError(t, err)

	state, err := loadOrderState(ctx, rdb, "order-1")
	require.NoError(t, err)
	require.NotNil(t, state)
	require.NotNil(t, state.LastStatus)
	require.Equal(t, schema.StatusFilled, state.LastStatus.Status)
	require.True(t, state.LastStatus.Profit.Equal(decimal.NewFromInt(10)))
}

func TestHandleOrderSkipsAlreadyTerminalDuplicate(t *testing.T) {
	adapter := PaperAdapter{Price: decimal.NewFromInt(100), Fee: decimal.NewFromFloat(0)}
	svc, rdb := newTestService(t, adapter)
	ctx := context.Background()

	order := schema.Order{OrderID: "order-2", Symbol: "BTC-USD", Side: schema.SideBuy, Qty: decimal.NewFromInt(1), TS: time.Now().UTC()}
	values, err := encodeForTest(order)
	require.NoError(t, err)

	_, err = svc.handle(ctx, values)
	require.NoError(t, err)

	before, err := loadOrderState(ctx, rdb, "order-2")
	require.NoError(t, err)

	_, err = svc.handle(ctx, values)
	require.NoError(t, err)

	after, err := loadOrderState(ctx, rdb, "order-2")
	require.NoError(t, err)
	require.Equal(t, before.LastStatus.TS, after.LastStatus.TS, "second delivery must be a no-op, not a re-fill")
}

func encodeForTest(o schema.Order) (map[string]interface{}, error) {
	values, err := broker.Encode(o)
	if err != nil {
		return nil, err
	}
	out := make(map[string]interface{}, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out, nil
}
