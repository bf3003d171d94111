package notifier

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/marketloop/coordinator/internal/broker"
	"github.com/marketloop/coordinator/internal/schema"
)

// Service consumes notify.events, pushes each to the recent-events ring and
// delivers it to every configured Sink.
type Service struct {
	broker   *broker.Client
	log      zerolog.Logger
	consumer string
	sinks    []Sink
	Ring     *Ring
	Acks     *AckStore
}

func NewService(b *broker.Client, log zerolog.Logger, sinks []Sink, acks *AckStore) *Service {
	host, _ := os.Hostname()
	return &Service{
		broker:   b,
		log:      log,
		consumer: host,
		sinks:    sinks,
		Ring:     NewRing(),
		Acks:     acks,
	}
}

func (s *Service) Run(ctx context.Context) error {
	broker.RunPool(ctx, s.log, map[string]func(context.Context) error{
		schema.StreamNotifyEvents: func(ctx context.Context) error {
			return broker.RunConsumer(ctx, s.broker, broker.ConsumerConfig{
				Stream:   schema.StreamNotifyEvents,
				Group:    schema.GroupNotify,
				Consumer: s.consumer,
				Log:      s.log,
				KeyFn:    notifyKeyFn,
				Handler:  s.handle,
			})
		},
	})
	return nil
}

// notifyKeyFn implements spec §4.7's idempotency key: requestId if present,
// else "${type}:${traceId}:${ts}".
func notifyKeyFn(payload map[string]any) string {
	if rid, ok := payload["requestId"].(string); ok && rid != "" {
		return rid
	}
	typ, _ := payload["type"].(string)
	trace, _ := payload["traceId"].(string)
	ts, _ := payload["ts"].(string)
	if typ == "" && trace == "" && ts == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s:%s", typ, trace, ts)
}

func (s *Service) handle(ctx context.Context, values map[string]interface{}) (string, error) {
	var event schema.NotifyEvent
	if err := broker.Decode(values, &event); err != nil {
		return "", err
	}

	id := notifyKeyFn(map[string]any{"requestId": event.RequestID, "type": event.Type, "traceId": event.TraceID, "ts": event.TS.Format("2006-01-02T15:04:05.999999999Z")})

	// Recorded before delivery so an event stuck retrying (or eventually
	// dead-lettered) still shows up in /notify/recent while pending.
	s.Ring.Push(id, event)

	for _, sink := range s.sinks {
		if err := sink.Deliver(ctx, event); err != nil {
			return id, fmt.Errorf("notifier: sink %s delivery failed: %w", sink.Name(), err)
		}
	}

	return id, nil
}
