package events

import (
	"context"
	"sync"
)

// MemoryBroadcaster collects events in memory for tests and single-process
// setups.
type MemoryBroadcaster struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryBroadcaster() *MemoryBroadcaster {
	return &MemoryBroadcaster{}
}

func (b *MemoryBroadcaster) Emit(_ context.Context, event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *MemoryBroadcaster) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

// ByName returns the collected events carrying the given name.
func (b *MemoryBroadcaster) ByName(name string) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Event
	for _, e := range b.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}
