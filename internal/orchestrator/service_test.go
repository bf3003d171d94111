package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/marketloop/coordinator/internal/broker"
	"github.com/marketloop/coordinator/internal/config"
	"github.com/marketloop/coordinator/internal/ledger"
	"github.com/marketloop/coordinator/internal/schema"
)

func newTestService(t *testing.T) (*Service, *broker.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	bc, err := broker.New("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = bc.Close() })

	led := ledger.New(bc.Raw(), decimal.NewFromInt(10000), decimal.NewFromFloat(5))
	svc := NewService(bc, led, zerolog.Nop(), Options{Mode: config.ModePubSub})
	return svc, bc
}

func TestStartRunRejectedWhenHalted(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Halt(ctx))

	_, _, err := svc.StartRun(ctx, "BTC-USD")
	require.ErrorIs(t, err, ErrHalted)
	require.Equal(t, 0, svc.pending.Len())
}

func TestStartRunPubSubPublishesAnalyzeCommand(t *testing.T) {
	svc, bc := newTestService(t)
	ctx := context.Background()

	requestID, traceID, err := svc.StartRun(ctx, "ETH-USD")
	require.NoError(t, err)
	require.NotEmpty(t, requestID)
	require.NotEmpty(t, traceID)

	entry, ok := svc.pending.Get(requestID)
	require.True(t, ok)
	require.Equal(t, StateWaitingSignal, entry.State)

	msgs, err := bc.Range(ctx, schema.StreamCommands, "-", "+", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	var cmd schema.Command
	require.NoError(t, broker.Decode(msgs[0].Values, &cmd))
	require.Equal(t, schema.CommandAnalyze, cmd.Type)
	require.Equal(t, "ETH-USD", cmd.Symbol)
	require.Equal(t, requestID, cmd.RequestID)
}

func TestHandleSignalAdvancesToWaitingRiskAndPublishesRiskRequest(t *testing.T) {
	svc, bc := newTestService(t)
	ctx := context.Background()

	svc.pending.Put(PendingEntry{RequestID: "r1", TraceID: "t1", Symbol: "BTC-USD", State: StateWaitingSignal})

	values, err := broker.Encode(schema.Signal{
		RequestID:  "r1",
		TraceID:    "t1",
		Symbol:     "BTC-USD",
		Side:       schema.SideBuy,
		Confidence: decimal.NewFromFloat(0.9),
		TS:         time.Now().UTC(),
	})
	require.NoError(t, err)

	_, err = svc.handleSignal(ctx, values)
	require.NoError(t, err)

	entry, ok := svc.pending.Get("r1")
	require.True(t, ok)
	require.Equal(t, StateWaitingRisk, entry.State)
	require.Equal(t, schema.SideBuy, entry.Side)

	msgs, err := bc.Range(ctx, schema.StreamRiskRequests, "-", "+", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	var req schema.RiskRequest
	require.NoError(t, broker.Decode(msgs[0].Values, &req))
	require.Equal(t, "r1", req.RequestID)
	require.Equal(t, schema.SideBuy, req.Side)
}

func TestHandleRiskResponseRejectionDeletesPendingEntry(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	svc.pending.Put(PendingEntry{RequestID: "r2", TraceID: "t2", State: StateWaitingRisk})

	values, err := broker.Encode(schema.RiskResponse{
		RequestID: "r2",
		TraceID:   "t2",
		OK:        false,
		Reason:    "low_confidence",
		TS:        time.Now().UTC(),
	})
	require.NoError(t, err)

	_, err = svc.handleRiskResponse(ctx, values)
	require.NoError(t, err)

	_, ok := svc.pending.Get("r2")
	require.False(t, ok)
}

func TestHandleRiskResponseApprovalSubmitsOrder(t *testing.T) {
	svc, bc := newTestService(t)
	ctx := context.Background()

	svc.pending.Put(PendingEntry{RequestID: "r3", TraceID: "t3", Symbol: "BTC-USD", Side: schema.SideBuy, State: StateWaitingRisk})

	values, err := broker.Encode(schema.RiskResponse{
		RequestID: "r3",
		TraceID:   "t3",
		OK:        true,
		TS:        time.Now().UTC(),
	})
	require.NoError(t, err)

	_, err = svc.handleRiskResponse(ctx, values)
	require.NoError(t, err)

	entry, ok := svc.pending.Get("r3")
	require.True(t, ok)
	require.Equal(t, StateWaitingFill, entry.State)
	require.NotEmpty(t, entry.OrderID)

	byOrder, ok := svc.pending.GetByOrderID(entry.OrderID)
	require.True(t, ok)
	require.Equal(t, "r3", byOrder.RequestID)

	msgs, err := bc.Range(ctx, schema.StreamExecOrders, "-", "+", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	var order schema.Order
	require.NoError(t, broker.Decode(msgs[0].Values, &order))
	require.Equal(t, entry.OrderID, order.OrderID)
	require.Equal(t, "BTC-USD", order.Symbol)
}

func TestHandleExecStatusSettlesAndCreditsLedger(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	svc.pending.Put(PendingEntry{RequestID: "r4", OrderID: "ord-4", State: StateWaitingFill})

	values, err := broker.Encode(schema.ExecStatus{
		OrderID: "ord-4",
		Status:  schema.StatusFilled,
		Profit:  decimal.NewFromFloat(12.5),
		TS:      time.Now().UTC(),
	})
	require.NoError(t, err)

	_, err = svc.handleExecStatus(ctx, values)
	require.NoError(t, err)

	_, ok := svc.pending.Get("r4")
	require.False(t, ok, "settled entry must be removed from the pending map")

	status, err := svc.ledger.Status(ctx)
	require.NoError(t, err)
	require.True(t, status.Realized.Equal(decimal.NewFromFloat(12.5)))
}

func TestHandleExecStatusCrossesDailyTargetAutoHalts(t *testing.T) {
	svc, bc := newTestService(t)
	ctx := context.Background()

	svc.pending.Put(PendingEntry{RequestID: "r5", OrderID: "ord-5", State: StateWaitingFill})

	// startEquity=10000, dailyTargetPct=5 (newTestService): a 600 profit
	// crosses to 6%, so this fill must trip the auto-halt.
	values, err := broker.Encode(schema.ExecStatus{
		OrderID: "ord-5",
		Status:  schema.StatusFilled,
		Profit:  decimal.NewFromFloat(600),
		TS:      time.Now().UTC(),
	})
	require.NoError(t, err)

	_, err = svc.handleExecStatus(ctx, values)
	require.NoError(t, err)

	status, err := svc.ledger.Status(ctx)
	require.NoError(t, err)
	require.True(t, status.Halted, "crossing the daily target must persist halted=true")

	cmdMsgs, err := bc.Range(ctx, schema.StreamCommands, "-", "+", 10)
	require.NoError(t, err)
	require.Len(t, cmdMsgs, 1)
	var cmd schema.Command
	require.NoError(t, broker.Decode(cmdMsgs[0].Values, &cmd))
	require.Equal(t, schema.CommandHalt, cmd.Type)

	notifyMsgs, err := bc.Range(ctx, schema.StreamNotifyEvents, "-", "+", 10)
	require.NoError(t, err)
	require.Len(t, notifyMsgs, 1)
	var event schema.NotifyEvent
	require.NoError(t, broker.Decode(notifyMsgs[0].Values, &event))
	require.Equal(t, "daily_target_reached", event.Type)
}

func TestHandleExecStatusDoesNotReHaltOrReemitOnceAlreadyHalted(t *testing.T) {
	svc, bc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.ledger.SetHalted(ctx, true))
	svc.pending.Put(PendingEntry{RequestID: "r6", OrderID: "ord-6", State: StateWaitingFill})

	values, err := broker.Encode(schema.ExecStatus{
		OrderID: "ord-6",
		Status:  schema.StatusFilled,
		Profit:  decimal.NewFromFloat(600),
		TS:      time.Now().UTC(),
	})
	require.NoError(t, err)

	_, err = svc.handleExecStatus(ctx, values)
	require.NoError(t, err)

	cmdMsgs, err := bc.Range(ctx, schema.StreamCommands, "-", "+", 10)
	require.NoError(t, err)
	require.Len(t, cmdMsgs, 0, "an already-halted day must not re-append a halt command")

	notifyMsgs, err := bc.Range(ctx, schema.StreamNotifyEvents, "-", "+", 10)
	require.NoError(t, err)
	require.Len(t, notifyMsgs, 0)
}

func TestHandleHaltCommandHaltsLedger(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	values, err := broker.Encode(schema.Command{Type: schema.CommandHalt, Reason: "manual stop", TS: time.Now().UTC()})
	require.NoError(t, err)

	_, err = svc.handleHaltCommand(ctx, values)
	require.NoError(t, err)

	halted, err := svc.ledger.IsHalted(ctx)
	require.NoError(t, err)
	require.True(t, halted)
}

func TestHandleHaltCommandIgnoresNonHaltTypes(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	values, err := broker.Encode(schema.Command{Type: schema.CommandAnalyze, Symbol: "BTC-USD", TS: time.Now().UTC()})
	require.NoError(t, err)

	_, err = svc.handleHaltCommand(ctx, values)
	require.NoError(t, err)

	halted, err := svc.ledger.IsHalted(ctx)
	require.NoError(t, err)
	require.False(t, halted)
}
