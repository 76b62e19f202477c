package events

import "stablenet/core/types"

// Event represents a structured state change emitted by the ledger or vault.
type Event interface {
	EventType() string
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Collector buffers rendered events in emission order. It backs deterministic
// tests and the RPC event tail.
type Collector struct {
	events []*types.Event
	limit  int
}

// NewCollector constructs a collector retaining at most limit events; a
// non-positive limit retains everything.
func NewCollector(limit int) *Collector {
	return &Collector{limit: limit}
}

// Emit implements the Emitter interface.
func (c *Collector) Emit(evt Event) {
	if c == nil || evt == nil {
		return
	}
	rendered := evt.Event()
	if rendered == nil {
		return
	}
	c.events = append(c.events, rendered)
	if c.limit > 0 && len(c.events) > c.limit {
		c.events = c.events[len(c.events)-c.limit:]
	}
}

// Events returns a defensive copy of the buffered events.
func (c *Collector) Events() []*types.Event {
	if c == nil {
		return nil
	}
	out := make([]*types.Event, len(c.events))
	copy(out, c.events)
	return out
}
