// Package broker implements the append-only Stream Runtime the coordinator
// uses for inter-agent messaging: consumer groups over Redis Streams, with
// idempotency suppression, failure counting and dead-letter routing.
package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marketloop/coordinator/internal/schema"
)

// Client wraps a redis.Client with the stream operations the runtime needs.
// It also doubles as the KV handle used by internal/ledger and internal/risk,
// mirroring the gateway's single-client-for-everything layout.
type Client struct {
	rdb *redis.Client
}

// New dials Redis using a redis:// URL, as used for both BROKER_URL and
// KV_URL (the coordinator may point both at the same instance or split them).
func New(url string) (*Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("broker: parse url: %w", err)
	}
	return &Client{rdb: redis.NewClient(opt)}, nil
}

// Raw exposes the underlying redis.Client for packages (ledger, risk) that
// need direct hash/string operations outside the stream contract.
func (c *Client) Raw() *redis.Client { return c.rdb }

func (c *Client) Close() error { return c.rdb.Close() }

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// EnsureGroup creates stream and group if absent (XGROUP CREATE ... MKSTREAM),
// tolerating the BUSYGROUP error when the group already exists.
func (c *Client) EnsureGroup(ctx context.Context, stream, group string) error {
	err := c.rdb.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !isBusyGroup(err) {
		return fmt.Errorf("broker: ensure group %s/%s: %w", stream, group, err)
	}
	return nil
}

func isBusyGroup(err error) bool {
	return err != nil && len(err.Error()) >= 9 && err.Error()[:9] == "BUSYGROUP"
}

// Append serializes v under the "data" field and XADDs it to stream,
// returning the assigned entry ID.
func (c *Client) Append(ctx context.Context, stream string, v any) (string, error) {
	values, err := encodePayload(v)
	if err != nil {
		return "", fmt.Errorf("broker: encode: %w", err)
	}
	id, err := c.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: values,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("broker: xadd %s: %w", stream, err)
	}
	return id, nil
}

// ReadBacklog performs the consumer's own-pending-history catch-up read
// (XREADGROUP ... STREAMS stream 0), returning entries already claimed by
// this consumer name that were never acked.
func (c *Client) ReadBacklog(ctx context.Context, stream, group, consumer string, count int64) ([]redis.XMessage, error) {
	return c.readGroup(ctx, stream, group, consumer, "0", count, 0)
}

// ReadNew blocks for up to block (0 disables blocking) waiting for entries
// past the group's last-delivered ID (XREADGROUP ... STREAMS stream >).
func (c *Client) ReadNew(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]redis.XMessage, error) {
	return c.readGroup(ctx, stream, group, consumer, ">", count, block)
}

func (c *Client) readGroup(ctx context.Context, stream, group, consumer, id string, count int64, block time.Duration) ([]redis.XMessage, error) {
	res, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, id},
		Count:    count,
		Block:    block,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("broker: xreadgroup %s/%s: %w", stream, group, err)
	}
	if len(res) == 0 {
		return nil, nil
	}
	return res[0].Messages, nil
}

// Ack acknowledges an entry, releasing it from the group's pending list.
func (c *Client) Ack(ctx context.Context, stream, group, id string) error {
	if err := c.rdb.XAck(ctx, stream, group, id).Err(); err != nil {
		return fmt.Errorf("broker: xack %s/%s/%s: %w", stream, group, id, err)
	}
	return nil
}

// PendingSummary returns the group's pending-entry count via XPENDING
// (the summary form, no start/end/count).
func (c *Client) PendingSummary(ctx context.Context, stream, group string) (int64, error) {
	res, err := c.rdb.XPending(ctx, stream, group).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("broker: xpending %s/%s: %w", stream, group, err)
	}
	return res.Count, nil
}

// Range returns entries in [start,end], used by DLQ listing and replay.
func (c *Client) Range(ctx context.Context, stream, start, end string, count int64) ([]redis.XMessage, error) {
	msgs, err := c.rdb.XRangeN(ctx, stream, start, end, count).Result()
	if err != nil {
		return nil, fmt.Errorf("broker: xrange %s: %w", stream, err)
	}
	return msgs, nil
}

// Delete removes entries by ID (XDEL), used after a DLQ entry is replayed.
func (c *Client) Delete(ctx context.Context, stream string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := c.rdb.XDel(ctx, stream, ids...).Err(); err != nil {
		return fmt.Errorf("broker: xdel %s: %w", stream, err)
	}
	return nil
}

// IsClaimed reports whether key has already been processed successfully for
// this (stream, group) within the TTL window, checked before the handler
// runs so a true duplicate never invokes it.
func (c *Client) IsClaimed(ctx context.Context, stream, group, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, schema.IdempotencyKey(stream, group, key)).Result()
	if err != nil {
		return false, fmt.Errorf("broker: idempotency check: %w", err)
	}
	return n > 0, nil
}

// ClaimIdempotent records key as processed, called only after a successful
// handler return. Claiming on success rather than before invocation lets a
// failed attempt retry on the next backlog sweep instead of being mistaken
// for a duplicate of itself; it still absorbs a genuine re-delivery that
// arrives after success but before the entry is acked.
func (c *Client) ClaimIdempotent(ctx context.Context, stream, group, key string, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, schema.IdempotencyKey(stream, group, key), "1", ttl).Err(); err != nil {
		return fmt.Errorf("broker: idempotency claim: %w", err)
	}
	return nil
}

// IncrFailure bumps the per-entry failure counter and returns the new count.
func (c *Client) IncrFailure(ctx context.Context, stream, group, id string) (int64, error) {
	n, err := c.rdb.HIncrBy(ctx, schema.FailureCounterKey(stream, group), id, 1).Result()
	if err != nil {
		return 0, fmt.Errorf("broker: incr failure: %w", err)
	}
	return n, nil
}

// ClearFailure removes the entry's failure counter (on success or DLQ move).
func (c *Client) ClearFailure(ctx context.Context, stream, group, id string) error {
	if err := c.rdb.HDel(ctx, schema.FailureCounterKey(stream, group), id).Err(); err != nil {
		return fmt.Errorf("broker: clear failure: %w", err)
	}
	return nil
}
