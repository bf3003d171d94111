package orchestrator

import (
	"context"

	"github.com/marketloop/coordinator/internal/broker"
	"github.com/marketloop/coordinator/internal/schema"
)

// knownStreamGroups lists every (stream, group) pair the coordinator's
// consumer groups can accumulate a backlog on, used by the admin pending
// summary.
var knownStreamGroups = [][2]string{
	{schema.StreamCommands, schema.GroupAnalyst},
	{schema.StreamSignals, schema.GroupOrchestrator},
	{schema.StreamRiskRequests, schema.GroupRisk},
	{schema.StreamRiskResponses, schema.GroupOrchestrator},
	{schema.StreamExecOrders, schema.GroupExec},
	{schema.StreamExecStatus, schema.GroupOrchestrator},
	{schema.StreamNotifyEvents, schema.GroupNotify},
}

// Halt sets the explicit halt flag, blocking admission of new requests
// until Unhalt is called.
func (s *Service) Halt(ctx context.Context) error {
	return s.ledger.SetHalted(ctx, true)
}

func (s *Service) Unhalt(ctx context.Context) error {
	return s.ledger.SetHalted(ctx, false)
}

// PnLStatus returns today's ledger snapshot.
func (s *Service) PnLStatus(ctx context.Context) (schema.PnLStatus, error) {
	return s.ledger.Status(ctx)
}

// PnLReset clears today's ledger back to its seeded state.
func (s *Service) PnLReset(ctx context.Context) (schema.PnLStatus, error) {
	return s.ledger.ResetDay(ctx)
}

// PendingSummary reports the pending-entry count for every known
// (stream, group) pair plus a copy of every entry in the in-process pipeline
// pending map.
type PendingSummary struct {
	Streams  []broker.PendingSnapshot `json:"streams"`
	InFlight []PendingEntry           `json:"inFlight"`
}

func (s *Service) PendingSummary(ctx context.Context) (PendingSummary, error) {
	snapshots := make([]broker.PendingSnapshot, 0, len(knownStreamGroups))
	for _, pair := range knownStreamGroups {
		n, err := s.broker.PendingSummary(ctx, pair[0], pair[1])
		if err != nil {
			return PendingSummary{}, err
		}
		snapshots = append(snapshots, broker.PendingSnapshot{Stream: pair[0], Group: pair[1], Pending: n})
	}
	return PendingSummary{Streams: snapshots, InFlight: s.pending.Snapshot()}, nil
}

// DLQList returns up to count dead-lettered entries for stream.
func (s *Service) DLQList(ctx context.Context, stream string, count int64) ([]broker.DLQItem, error) {
	return s.broker.ListDLQ(ctx, stream, count)
}

// DLQRequeue re-appends a dead-lettered entry onto its original stream.
func (s *Service) DLQRequeue(ctx context.Context, stream, dlqID string) (string, error) {
	return s.broker.RequeueDLQ(ctx, stream, dlqID)
}
