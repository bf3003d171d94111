package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marketloop/coordinator/internal/schema"
)

// AckStore records acknowledgments in the shared KV store with a TTL (spec
// §4.7: "key notify:ack:<id> with a TTL, default 7 days").
type AckStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewAckStore(rdb *redis.Client, ttl time.Duration) *AckStore {
	if ttl == 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &AckStore{rdb: rdb, ttl: ttl}
}

func (s *AckStore) Ack(ctx context.Context, id string) error {
	if err := s.rdb.Set(ctx, schema.KeyNotifyAckPrefix+id, "1", s.ttl).Err(); err != nil {
		return fmt.Errorf("notifier: ack %s: %w", id, err)
	}
	return nil
}

// IsAcked probes a single key's existence. /notify/recent calls it once per
// entry in the ring, one round trip each; the probes are not batched.
func (s *AckStore) IsAcked(ctx context.Context, id string) bool {
	n, err := s.rdb.Exists(ctx, schema.KeyNotifyAckPrefix+id).Result()
	return err == nil && n > 0
}
