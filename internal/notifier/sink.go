// Package notifier implements the Notification Manager: it fans out
// notify.events to outbound sinks, keeps an in-memory ring of recent events
// and an acknowledgment store.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketloop/coordinator/internal/schema"
)

// Sink delivers a rendered notification. A returning error engages the
// stream runtime's retry/DLQ semantics (spec §4.7).
type Sink interface {
	Name() string
	Deliver(ctx context.Context, event schema.NotifyEvent) error
}

// LogSink writes the event through the shared structured logger,
// severity-routed to the matching log level.
type LogSink struct {
	Log zerolog.Logger
}

func (s LogSink) Name() string { return "log" }

func (s LogSink) Deliver(ctx context.Context, event schema.NotifyEvent) error {
	entry := s.Log.Info()
	switch event.Severity {
	case schema.SeverityWarning:
		entry = s.Log.Warn()
	case schema.SeverityCritical:
		entry = s.Log.Error()
	}
	entry.Str("type", event.Type).Str("requestId", event.RequestID).Str("traceId", event.TraceID).Msg(event.Message)
	return nil
}

// WebhookSink POSTs the event as JSON to a configured URL, treating any
// non-2xx response as a delivery failure.
type WebhookSink struct {
	URL    string
	Client *http.Client
}

func (s WebhookSink) Name() string { return "webhook" }

func (s WebhookSink) Deliver(ctx context.Context, event schema.NotifyEvent) error {
	if s.URL == "" {
		return nil
	}
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("notifier: marshal webhook body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notifier: build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("notifier: webhook delivery: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notifier: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
