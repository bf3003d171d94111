package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/marketloop/coordinator/internal/schema"
)

func newPeerServer(t *testing.T, sig schema.Signal, risk schema.RiskResponse, exec schema.ExecStatus) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/analyze", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sig)
	})
	mux.HandleFunc("/risk/evaluate", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(risk)
	})
	mux.HandleFunc("/execute", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(exec)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDriveSyncPipelineApprovedOrderSettlesAndCredits(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	srv := newPeerServer(t,
		schema.Signal{RequestID: "r1", Symbol: "BTC-USD", Side: schema.SideBuy, Confidence: decimal.NewFromFloat(0.9)},
		schema.RiskResponse{RequestID: "r1", OK: true},
		schema.ExecStatus{Status: schema.StatusFilled, Profit: decimal.NewFromFloat(7)},
	)
	svc.peers = newPeerClient(srv.URL, srv.URL, srv.URL)

	entry := PendingEntry{RequestID: "r1", TraceID: "t1", Symbol: "BTC-USD", State: StateNew}
	svc.pending.Put(entry)

	err := svc.driveSyncPipeline(ctx, entry)
	require.NoError(t, err)

	_, ok := svc.pending.Get("r1")
	require.False(t, ok, "settled request must be removed from the pending map")

	status, err := svc.ledger.Status(ctx)
	require.NoError(t, err)
	require.True(t, status.Realized.Equal(decimal.NewFromFloat(7)))
}

func TestDriveSyncPipelineCrossesDailyTargetAutoHalts(t *testing.T) {
	svc, bc := newTestService(t)
	ctx := context.Background()

	srv := newPeerServer(t,
		schema.Signal{RequestID: "r4", Symbol: "BTC-USD", Side: schema.SideBuy, Confidence: decimal.NewFromFloat(0.9)},
		schema.RiskResponse{RequestID: "r4", OK: true},
		schema.ExecStatus{Status: schema.StatusFilled, Profit: decimal.NewFromFloat(600)},
	)
	svc.peers = newPeerClient(srv.URL, srv.URL, srv.URL)

	entry := PendingEntry{RequestID: "r4", TraceID: "t4", Symbol: "BTC-USD", State: StateNew}
	svc.pending.Put(entry)

	err := svc.driveSyncPipeline(ctx, entry)
	require.NoError(t, err)

	status, err := svc.ledger.Status(ctx)
	require.NoError(t, err)
	require.True(t, status.Halted)

	cmdMsgs, err := bc.Range(ctx, schema.StreamCommands, "-", "+", 10)
	require.NoError(t, err)
	require.Len(t, cmdMsgs, 1)

	notifyMsgs, err := bc.Range(ctx, schema.StreamNotifyEvents, "-", "+", 10)
	require.NoError(t, err)
	require.Len(t, notifyMsgs, 1)
}

func TestDriveSyncPipelineRejectionPublishesNotice(t *testing.T) {
	svc, bc := newTestService(t)
	ctx := context.Background()

	srv := newPeerServer(t,
		schema.Signal{RequestID: "r2", Symbol: "ETH-USD", Side: schema.SideSell, Confidence: decimal.NewFromFloat(0.2)},
		schema.RiskResponse{RequestID: "r2", OK: false, Reason: "low_confidence"},
		schema.ExecStatus{},
	)
	svc.peers = newPeerClient(srv.URL, srv.URL, srv.URL)

	entry := PendingEntry{RequestID: "r2", TraceID: "t2", Symbol: "ETH-USD", State: StateNew}
	svc.pending.Put(entry)

	err := svc.driveSyncPipeline(ctx, entry)
	require.NoError(t, err)

	_, ok := svc.pending.Get("r2")
	require.False(t, ok)

	msgs, err := bc.Range(ctx, schema.StreamNotifyEvents, "-", "+", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}

func TestDriveSyncPipelinePropagatesPeerFailure(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// No server listening at this URL: the analyze call must fail outright.
	svc.peers = newPeerClient("http://127.0.0.1:0", "http://127.0.0.1:0", "http://127.0.0.1:0")

	entry := PendingEntry{RequestID: "r3", TraceID: "t3", Symbol: "BTC-USD", State: StateNew}
	svc.pending.Put(entry)

	err := svc.driveSyncPipeline(ctx, entry)
	require.Error(t, err)
}
