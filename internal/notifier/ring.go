package notifier

import (
	"sync"

	"github.com/marketloop/coordinator/internal/schema"
)

const ringCapacity = 100

// RecentEvent pairs a delivered event with its acknowledgment state for
// /notify/recent.
type RecentEvent struct {
	Event schema.NotifyEvent
	ID    string
	Acked bool
}

// Ring is a mutex-guarded fixed-capacity buffer of the most recently
// processed events, process-local per spec §9.
type Ring struct {
	mu    sync.Mutex
	items []RecentEvent
}

func NewRing() *Ring {
	return &Ring{items: make([]RecentEvent, 0, ringCapacity)}
}

// Push appends an event, evicting the oldest entry once at capacity.
func (r *Ring) Push(id string, event schema.NotifyEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items = append(r.items, RecentEvent{Event: event, ID: id})
	if len(r.items) > ringCapacity {
		r.items = r.items[len(r.items)-ringCapacity:]
	}
}

// Snapshot returns a copy of the buffer, newest last, with acked populated
// by probing the supplied predicate against each entry's ID.
func (r *Ring) Snapshot(isAcked func(id string) bool) []RecentEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]RecentEvent, len(r.items))
	copy(out, r.items)
	for i := range out {
		out[i].Acked = isAcked(out[i].ID)
	}
	return out
}
