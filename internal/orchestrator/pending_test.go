package orchestrator

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/marketloop/coordinator/internal/schema"
)

func TestPendingMapPutGetDelete(t *testing.T) {
	p := NewPendingMap()

	entry := PendingEntry{
		RequestID:  "r1",
		TraceID:    "t1",
		Symbol:     "BTC-USD",
		Side:       schema.SideBuy,
		Confidence: decimal.NewFromFloat(0.8),
		State:      StateNew,
	}
	p.Put(entry)

	got, ok := p.Get("r1")
	require.True(t, ok)
	require.Equal(t, "BTC-USD", got.Symbol)
	require.Equal(t, StateNew, got.State)
	require.Equal(t, 1, p.Len())

	p.Delete("r1")
	_, ok = p.Get("r1")
	require.False(t, ok)
	require.Equal(t, 0, p.Len())
}

func TestPendingMapGetByOrderID(t *testing.T) {
	p := NewPendingMap()

	entry := PendingEntry{RequestID: "r2", OrderID: "ord-2", State: StateSubmitted}
	p.Put(entry)

	got, ok := p.GetByOrderID("ord-2")
	require.True(t, ok)
	require.Equal(t, "r2", got.RequestID)

	// Deleting by requestId must also clear the secondary index.
	p.Delete("r2")
	_, ok = p.GetByOrderID("ord-2")
	require.False(t, ok)
}

func TestPendingMapGetByOrderIDUpdatesOnRewrite(t *testing.T) {
	p := NewPendingMap()

	entry := PendingEntry{RequestID: "r3", State: StateWaitingRisk}
	p.Put(entry)

	entry.OrderID = "ord-3"
	entry.State = StateSubmitted
	p.Put(entry)

	got, ok := p.GetByOrderID("ord-3")
	require.True(t, ok)
	require.Equal(t, StateSubmitted, got.State)
}

func TestPendingMapSnapshotIsACopy(t *testing.T) {
	p := NewPendingMap()
	p.Put(PendingEntry{RequestID: "r4", State: StateNew})
	p.Put(PendingEntry{RequestID: "r5", State: StateWaitingFill})

	snap := p.Snapshot()
	require.Len(t, snap, 2)

	// Mutating the snapshot must not affect the map's own state.
	for i := range snap {
		snap[i].State = StateSettled
	}
	got, ok := p.Get("r4")
	require.True(t, ok)
	require.NotEqual(t, StateSettled, got.State)
}
