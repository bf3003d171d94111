package broker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := New("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

type callRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *callRecorder) record(k string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, k)
}

func (r *callRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestRunConsumerAtLeastOnceDelivery(t *testing.T) {
	c := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &callRecorder{}
	_, err := c.Append(context.Background(), "orders", map[string]any{"requestId": "r1"})
	require.NoError(t, err)

	go func() {
		_ = RunConsumer(ctx, c, ConsumerConfig{
			Stream:       "orders",
			Group:        "g1",
			Consumer:     "c1",
			BlockTimeout: 50 * time.Millisecond,
			Log:          zerolog.Nop(),
			Handler: func(ctx context.Context, values map[string]interface{}) (string, error) {
				rec.record("r1")
				return "r1", nil
			},
		})
	}()

	require.Eventually(t, func() bool { return rec.count() >= 1 }, 3*time.Second, 10*time.Millisecond)
}

func TestRunConsumerSuppressesDuplicateKey(t *testing.T) {
	c := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &callRecorder{}

	_, err := c.Append(context.Background(), "orders2", map[string]any{"requestId": "dup"})
	require.NoError(t, err)

	go func() {
		_ = RunConsumer(ctx, c, ConsumerConfig{
			Stream:       "orders2",
			Group:        "g1",
			Consumer:     "c1",
			BlockTimeout: 20 * time.Millisecond,
			Log:          zerolog.Nop(),
			Handler: func(ctx context.Context, values map[string]interface{}) (string, error) {
				rec.record("dup")
				return "dup", nil
			},
		})
	}()

	require.Eventually(t, func() bool { return rec.count() >= 1 }, 3*time.Second, 10*time.Millisecond)

	// A second entry carrying the same requestId must be suppressed rather
	// than re-invoking the handler.
	_, err = c.Append(context.Background(), "orders2", map[string]any{"requestId": "dup"})
	require.NoError(t, err)

	time.Sleep(300 * time.Millisecond)
	require.Equal(t, 1, rec.count(), "duplicate requestId must not invoke the handler a second time")
}

func TestRunConsumerRetriesFailureWithoutFalseIdempotencySuppression(t *testing.T) {
	c := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var attempts int
	var mu sync.Mutex

	_, err := c.Append(context.Background(), "orders3", map[string]any{"requestId": "retry-me"})
	require.NoError(t, err)

	go func() {
		_ = RunConsumer(ctx, c, ConsumerConfig{
			Stream:       "orders3",
			Group:        "g1",
			Consumer:     "c1",
			BlockTimeout: 20 * time.Millisecond,
			Log:          zerolog.Nop(),
			Handler: func(ctx context.Context, values map[string]interface{}) (string, error) {
				mu.Lock()
				defer mu.Unlock()
				attempts++
				if attempts < 2 {
					return "retry-me", errors.New("transient failure")
				}
				return "retry-me", nil
			},
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return attempts >= 2
	}, 5*time.Second, 20*time.Millisecond, "a failed attempt must not be treated as an idempotent duplicate of itself")
}

func TestRunConsumerMovesToDLQAfterMaxFailures(t *testing.T) {
	c := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := c.Append(context.Background(), "orders4", map[string]any{"requestId": "always-fails"})
	require.NoError(t, err)

	go func() {
		_ = RunConsumer(ctx, c, ConsumerConfig{
			Stream:       "orders4",
			Group:        "g1",
			Consumer:     "c1",
			BlockTimeout: 15 * time.Millisecond,
			MaxFailures:  2,
			Log:          zerolog.Nop(),
			Handler: func(ctx context.Context, values map[string]interface{}) (string, error) {
				return "always-fails", errors.New("permanent failure")
			},
		})
	}()

	require.Eventually(t, func() bool {
		items, err := c.ListDLQ(context.Background(), "orders4", 10)
		return err == nil && len(items) == 1
	}, 5*time.Second, 20*time.Millisecond)

	items, err := c.ListDLQ(context.Background(), "orders4", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "orders4", items[0].Entry.OriginalStream)
}
