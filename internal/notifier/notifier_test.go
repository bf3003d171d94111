package notifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/marketloop/coordinator/internal/broker"
	"github.com/marketloop/coordinator/internal/schema"
)

type failingSink struct{ err error }

func (f failingSink) Name() string { return "failing" }
func (f failingSink) Deliver(ctx context.Context, event schema.NotifyEvent) error {
	return f.err
}

type recordingSink struct{ got []schema.NotifyEvent }

func (r *recordingSink) Name() string { return "recording" }
func (r *recordingSink) Deliver(ctx context.Context, event schema.NotifyEvent) error {
	r.got = append(r.got, event)
	return nil
}

func TestNotifyKeyFnPrefersRequestID(t *testing.T) {
	k := notifyKeyFn(map[string]any{"requestId": "r1", "type": "x", "traceId": "t1", "ts": "now"})
	require.Equal(t, "r1", k)
}

func TestNotifyKeyFnFallsBackToComposite(t *testing.T) {
	k := notifyKeyFn(map[string]any{"type": "risk_rejected", "traceId": "t1", "ts": "2026-01-01T00:00:00Z"})
	require.Equal(t, "risk_rejected:t1:2026-01-01T00:00:00Z", k)
}

func TestServiceHandlePushesToRingOnSuccess(t *testing.T) {
	rec := &recordingSink{}
	svc := NewService(nil, zerolog.Nop(), []Sink{rec}, nil)

	values, err := broker.Encode(schema.NotifyEvent{Type: "risk_rejected", Severity: schema.SeverityWarning, RequestID: "r1"})
	require.NoError(t, err)

	generic := make(map[string]interface{}, len(values))
	for k, v := range values {
		generic[k] = v
	}

	_, err = svc.handle(context.Background(), generic)
	require.NoError(t, err)
	require.Len(t, rec.got, 1)

	snapshot := svc.Ring.Snapshot(func(string) bool { return false })
	require.Len(t, snapshot, 1)
	require.Equal(t, "risk_rejected", snapshot[0].Event.Type)
}

func TestServiceHandleReturnsErrorOnSinkFailure(t *testing.T) {
	svc := NewService(nil, zerolog.Nop(), []Sink{failingSink{err: errors.New("boom")}}, nil)

	values, err := broker.Encode(schema.NotifyEvent{Type: "x"})
	require.NoError(t, err)
	generic := make(map[string]interface{}, len(values))
	for k, v := range values {
		generic[k] = v
	}

	_, err = svc.handle(context.Background(), generic)
	require.Error(t, err)
}

func TestAckStoreRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewAckStore(rdb, time.Hour)

	require.False(t, store.IsAcked(context.Background(), "evt-1"))
	require.NoError(t, store.Ack(context.Background(), "evt-1"))
	require.True(t, store.IsAcked(context.Background(), "evt-1"))
}

func TestRingEvictsOldestBeyondCapacity(t *testing.T) {
	ring := NewRing()
	for i := 0; i < ringCapacity+10; i++ {
		ring.Push(string(rune('a'+i%26)), schema.NotifyEvent{Type: "x"})
	}
	snapshot := ring.Snapshot(func(string) bool { return false })
	require.Len(t, snapshot, ringCapacity)
}
