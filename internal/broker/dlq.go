package broker

import (
	"context"
	"fmt"

	"github.com/marketloop/coordinator/internal/schema"
)

// DLQItem is an admin-facing view of one dead-lettered entry.
type DLQItem struct {
	ID    string
	Entry schema.DLQEntry
}

// ListDLQ returns up to count entries from a stream's dead-letter companion,
// oldest first, used by the admin "dlq list" operation.
func (c *Client) ListDLQ(ctx context.Context, stream string, count int64) ([]DLQItem, error) {
	msgs, err := c.Range(ctx, schema.DLQStream(stream), "-", "+", count)
	if err != nil {
		return nil, err
	}
	out := make([]DLQItem, 0, len(msgs))
	for _, msg := range msgs {
		var entry schema.DLQEntry
		if err := decodePayload(msg.Values, &entry); err != nil {
			continue
		}
		out = append(out, DLQItem{ID: msg.ID, Entry: entry})
	}
	return out, nil
}

// RequeueDLQ re-appends a dead-lettered entry's original payload onto its
// source stream and removes it from the DLQ, implementing the admin
// "requeue" round-trip (spec §8: requeued entry is re-processed and its
// prior failure counter does not carry over, since it is keyed by entry ID).
func (c *Client) RequeueDLQ(ctx context.Context, stream, dlqID string) (string, error) {
	msgs, err := c.Range(ctx, schema.DLQStream(stream), dlqID, dlqID, 1)
	if err != nil {
		return "", err
	}
	if len(msgs) == 0 {
		return "", fmt.Errorf("broker: dlq entry %s not found on %s", dlqID, stream)
	}

	var entry schema.DLQEntry
	if err := decodePayload(msgs[0].Values, &entry); err != nil {
		return "", fmt.Errorf("broker: decode dlq entry: %w", err)
	}

	newID, err := c.Append(ctx, stream, entry.Payload)
	if err != nil {
		return "", fmt.Errorf("broker: requeue append: %w", err)
	}
	if err := c.Delete(ctx, schema.DLQStream(stream), dlqID); err != nil {
		return "", fmt.Errorf("broker: requeue cleanup: %w", err)
	}
	return newID, nil
}
