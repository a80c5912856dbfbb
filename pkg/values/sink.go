package values

import (
	evbus "github.com/asaskevich/EventBus"
)

// TopicBatch is the bus topic BusSink publishes on.
const TopicBatch = "values:batch"

// Sink receives one Batch per decoded command that exposed values.
type Sink interface {
	Publish(b Batch)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(b Batch)

// Publish implements Sink.
func (f SinkFunc) Publish(b Batch) { f(b) }

// BusSink publishes batches on an event bus. Subscribers receive a
// single Batch argument.
type BusSink struct {
	bus evbus.Bus
}

// NewBusSink returns a sink publishing on bus, or on a new bus when bus
// is nil.
func NewBusSink(bus evbus.Bus) *BusSink {
	if bus == nil {
		bus = evbus.New()
	}
	return &BusSink{bus: bus}
}

// Publish implements Sink.
func (s *BusSink) Publish(b Batch) {
	s.bus.Publish(TopicBatch, b)
}

// Subscribe registers fn for every published batch.
func (s *BusSink) Subscribe(fn func(Batch)) error {
	return s.bus.Subscribe(TopicBatch, fn)
}

// SubscribeAsync registers fn to run on its own goroutine per batch.
// Batches are delivered in order when transactional is set.
func (s *BusSink) SubscribeAsync(fn func(Batch), transactional bool) error {
	return s.bus.SubscribeAsync(TopicBatch, fn, transactional)
}

// Unsubscribe removes fn.
func (s *BusSink) Unsubscribe(fn func(Batch)) error {
	return s.bus.Unsubscribe(TopicBatch, fn)
}

// Wait blocks until asynchronous subscribers have handled every batch.
func (s *BusSink) Wait() {
	s.bus.WaitAsync()
}

// Bus returns the underlying bus.
func (s *BusSink) Bus() evbus.Bus { return s.bus }
