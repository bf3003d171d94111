package broker

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/marketloop/coordinator/internal/schema"
)

// Handler processes one stream entry. Its string return is not used by the
// runtime (the idempotency key itself is derived by KeyFn, or the package
// default, before the handler ever runs).
type Handler func(ctx context.Context, values map[string]interface{}) (idemKey string, err error)

// KeyFn derives the idempotency key from a decoded payload. Returning ""
// falls back to the entry's own stream ID, per spec §4.1 step 4a
// ("k = keyFn(payload) ?? id").
type KeyFn func(payload map[string]any) string

// ConsumerConfig parameterizes one RunConsumer loop.
type ConsumerConfig struct {
	Stream       string
	Group        string
	Consumer     string
	BatchSize    int64
	BlockTimeout time.Duration
	IdempTTL     time.Duration
	MaxFailures  int
	Handler      Handler
	KeyFn        KeyFn
	Log          zerolog.Logger
}

// defaultKeyFn recognizes the two correlation fields spec §3 names
// ("requestId" and "orderId"), used by every consumer that doesn't supply
// its own KeyFn.
func defaultKeyFn(payload map[string]any) string {
	if rid, ok := payload["requestId"].(string); ok && rid != "" {
		return rid
	}
	if oid, ok := payload["orderId"].(string); ok && oid != "" {
		return oid
	}
	return ""
}

func (cfg ConsumerConfig) withDefaults() ConsumerConfig {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 16
	}
	if cfg.BlockTimeout == 0 {
		cfg.BlockTimeout = 10 * time.Second
	}
	if cfg.IdempTTL == 0 {
		cfg.IdempTTL = 24 * time.Hour
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	return cfg
}

// RunConsumer implements the stream read contract: ensure the group exists,
// then loop until ctx is canceled, each pass first re-reading this
// consumer's own unacked backlog (XREADGROUP ... 0) and, only when that is
// empty, blocking for new entries (XREADGROUP ... >). The idempotency key is
// checked before Handler runs and recorded only after it succeeds; a failing
// Handler increments a per-entry counter, leaves the entry pending for the
// next backlog pass, and the entry moves to the stream's DLQ once
// MaxFailures is reached.
func RunConsumer(ctx context.Context, c *Client, cfg ConsumerConfig) error {
	cfg = cfg.withDefaults()

	if err := c.EnsureGroup(ctx, cfg.Stream, cfg.Group); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		backlog, err := c.ReadBacklog(ctx, cfg.Stream, cfg.Group, cfg.Consumer, cfg.BatchSize)
		if err != nil {
			cfg.Log.Warn().Err(err).Msg("backlog read failed")
		}
		if len(backlog) > 0 {
			for _, msg := range backlog {
				processEntry(ctx, c, cfg, msg)
			}
			continue
		}

		msgs, err := c.ReadNew(ctx, cfg.Stream, cfg.Group, cfg.Consumer, cfg.BatchSize, cfg.BlockTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			cfg.Log.Warn().Err(err).Msg("read new entries failed")
			time.Sleep(time.Second)
			continue
		}
		for _, msg := range msgs {
			processEntry(ctx, c, cfg, msg)
		}
	}
}

func processEntry(ctx context.Context, c *Client, cfg ConsumerConfig, msg redis.XMessage) {
	log := cfg.Log.With().Str("stream", cfg.Stream).Str("group", cfg.Group).Str("id", msg.ID).Logger()

	keyFn := cfg.KeyFn
	if keyFn == nil {
		keyFn = defaultKeyFn
	}
	key := msg.ID
	if raw, err := decodeRaw(msg.Values); err == nil {
		if derived := keyFn(raw); derived != "" {
			key = derived
		}
	}

	alreadyClaimed, err := c.IsClaimed(ctx, cfg.Stream, cfg.Group, key)
	if err != nil {
		log.Warn().Err(err).Msg("idempotency check failed, processing anyway")
	}
	if alreadyClaimed {
		log.Debug().Str("key", key).Msg("duplicate entry suppressed")
		_ = c.Ack(ctx, cfg.Stream, cfg.Group, msg.ID)
		_ = c.ClearFailure(ctx, cfg.Stream, cfg.Group, msg.ID)
		return
	}

	_, err = cfg.Handler(ctx, msg.Values)
	if err == nil {
		if claimErr := c.ClaimIdempotent(ctx, cfg.Stream, cfg.Group, key, cfg.IdempTTL); claimErr != nil {
			log.Warn().Err(claimErr).Msg("idempotency claim failed after success")
		}
		if ackErr := c.Ack(ctx, cfg.Stream, cfg.Group, msg.ID); ackErr != nil {
			log.Error().Err(ackErr).Msg("ack failed")
		}
		_ = c.ClearFailure(ctx, cfg.Stream, cfg.Group, msg.ID)
		return
	}

	log.Warn().Err(err).Msg("handler failed")
	count, cerr := c.IncrFailure(ctx, cfg.Stream, cfg.Group, msg.ID)
	if cerr != nil {
		log.Error().Err(cerr).Msg("failure counter update failed")
	}
	if int(count) >= cfg.MaxFailures {
		moveToDLQ(ctx, c, cfg, msg, err)
	}
}

func moveToDLQ(ctx context.Context, c *Client, cfg ConsumerConfig, msg redis.XMessage, cause error) {
	log := cfg.Log.With().Str("stream", cfg.Stream).Str("id", msg.ID).Logger()

	payload, _ := decodeRaw(msg.Values)
	entry := schema.DLQEntry{
		OriginalStream: cfg.Stream,
		Group:          cfg.Group,
		ID:             msg.ID,
		Payload:        payload,
		Error:          cause.Error(),
		TS:             time.Now().UTC(),
	}

	if _, err := c.Append(ctx, schema.DLQStream(cfg.Stream), entry); err != nil {
		log.Error().Err(err).Msg("dlq append failed, entry remains pending")
		return
	}
	if err := c.Ack(ctx, cfg.Stream, cfg.Group, msg.ID); err != nil {
		log.Error().Err(err).Msg("ack after dlq move failed")
	}
	_ = c.ClearFailure(ctx, cfg.Stream, cfg.Group, msg.ID)
	log.Warn().Msg("entry moved to dead-letter queue")
}

// AppendWithRetry retries Append with an exponential backoff, giving up
// after 6 attempts.
func AppendWithRetry(ctx context.Context, c *Client, stream string, v any) (string, error) {
	policy := backoff.NewExponentialBackOff()
	var id string
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		got, err := c.Append(ctx, stream, v)
		if err != nil {
			return struct{}{}, err
		}
		id = got
		return struct{}{}, nil
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(6))
	if err != nil {
		return "", err
	}
	return id, nil
}
