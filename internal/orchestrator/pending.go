package orchestrator

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/marketloop/coordinator/internal/schema"
)

// State is the pipeline's per-request lifecycle stage.
type State string

const (
	StateNew           State = "NEW"
	StateWaitingSignal State = "WAITING_SIGNAL"
	StateWaitingRisk   State = "WAITING_RISK"
	StateSubmitted     State = "SUBMITTED"
	StateRejected      State = "REJECTED"
	StateWaitingFill   State = "WAITING_FILL"
	StateSettled       State = "SETTLED"
)

// PendingEntry is the soft-cache forwarding state kept per in-flight
// requestId (spec §4.3: "pending map requestId → {symbol, side,
// confidence}"). Losing it on restart only stalls the in-flight pipeline;
// it never causes a double-submit, since exec.status is idempotent on
// orderId.
type PendingEntry struct {
	RequestID  string
	TraceID    string
	Symbol     string
	Side       schema.Side
	Confidence decimal.Decimal
	OrderID    string
	State      State
}

// PendingMap is a short-critical-section, mutex-guarded map — no I/O runs
// while the lock is held (spec §5). A second index keyed by orderId lets
// exec.status deliveries, which carry only orderId, find their way back to
// the originating requestId.
type PendingMap struct {
	mu        sync.Mutex
	items     map[string]PendingEntry
	byOrderID map[string]string
}

func NewPendingMap() *PendingMap {
	return &PendingMap{
		items:     make(map[string]PendingEntry),
		byOrderID: make(map[string]string),
	}
}

func (p *PendingMap) Put(entry PendingEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items[entry.RequestID] = entry
	if entry.OrderID != "" {
		p.byOrderID[entry.OrderID] = entry.RequestID
	}
}

func (p *PendingMap) Get(requestID string) (PendingEntry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.items[requestID]
	return e, ok
}

func (p *PendingMap) GetByOrderID(orderID string) (PendingEntry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	requestID, ok := p.byOrderID[orderID]
	if !ok {
		return PendingEntry{}, false
	}
	e, ok := p.items[requestID]
	return e, ok
}

func (p *PendingMap) Delete(requestID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.items[requestID]; ok && e.OrderID != "" {
		delete(p.byOrderID, e.OrderID)
	}
	delete(p.items, requestID)
}

func (p *PendingMap) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

// Snapshot returns a copy of every in-flight entry, used by the admin
// "pending" listing.
func (p *PendingMap) Snapshot() []PendingEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PendingEntry, 0, len(p.items))
	for _, e := range p.items {
		out = append(out, e)
	}
	return out
}
