package broker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// PendingSnapshot is one (stream,group) pending-count observation.
type PendingSnapshot struct {
	Stream  string
	Group   string
	Pending int64
}

// MonitorPending polls PendingSummary for every (stream,group) pair on
// interval and invokes onSnapshot with each result, until ctx is canceled.
// Used by cmd/orchestrator to keep internal/metrics' pending-count gauges
// current.
func MonitorPending(ctx context.Context, c *Client, pairs [][2]string, interval time.Duration, log zerolog.Logger, onSnapshot func(PendingSnapshot)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, pair := range pairs {
				stream, group := pair[0], pair[1]
				n, err := c.PendingSummary(ctx, stream, group)
				if err != nil {
					log.Warn().Err(err).Str("stream", stream).Str("group", group).Msg("pending summary failed")
					continue
				}
				onSnapshot(PendingSnapshot{Stream: stream, Group: group, Pending: n})
			}
		}
	}
}
