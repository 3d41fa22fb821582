package events

import "slices"

// Recorder is the only part of the event machinery an aggregate sees.
type Recorder interface {
	Record(Event)
}

// Collector buffers the events of one unit of work until the owning service
// flushes it through a Bus. A Collector is not safe for concurrent use and
// must not be shared between units of work.
type Collector struct {
	pending []Event
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Record appends e to the pending queue.
func (c *Collector) Record(e Event) {
	c.pending = append(c.pending, e)
}

// Len returns the number of pending events.
func (c *Collector) Len() int {
	return len(c.pending)
}

// Pending returns a copy of the pending queue in insertion order.
func (c *Collector) Pending() []Event {
	return slices.Clone(c.pending)
}

// Drain swaps the pending queue for an empty one and returns the old queue.
func (c *Collector) Drain() []Event {
	batch := c.pending
	c.pending = nil
	return batch
}

type discard struct{}

func (discard) Record(Event) {}

// Discard drops every recorded event. Useful when rehydrating aggregates.
var Discard Recorder = discard{}
