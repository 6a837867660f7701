package event

import "sync"

// Sink receives events. Implementations must be safe for concurrent use;
// fan-out nodes emit from several goroutines.
type Sink interface {
	Emit(e Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(e Event)

// Emit calls f(e).
func (f SinkFunc) Emit(e Event) {
	f(e)
}

type discard struct{}

func (discard) Emit(Event) {}

// Discard is a Sink that drops every event.
var Discard Sink = discard{}

// Collector records events in memory.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Emit implements Sink.
func (c *Collector) Emit(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

// Events returns a copy of the recorded events in emission order.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

// OfType returns the recorded events with the given type.
func (c *Collector) OfType(t Type) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Event
	for _, e := range c.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Channel hands events to a consumer goroutine.
//
// The producer calls Finish once it will emit nothing more; the consumer
// ranges over C until it is closed. A consumer that leaves early calls
// Stop so that pending and later Emit calls return immediately.
type Channel struct {
	mu       sync.RWMutex
	ch       chan Event
	stop     chan struct{}
	stopOnce sync.Once
	finished bool
}

// NewChannel creates a Channel with the given buffer size.
func NewChannel(buffer int) *Channel {
	return &Channel{
		ch:   make(chan Event, buffer),
		stop: make(chan struct{}),
	}
}

// C returns the receive side.
func (c *Channel) C() <-chan Event {
	return c.ch
}

// Emit implements Sink. Events emitted after Finish or Stop are dropped.
func (c *Channel) Emit(e Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.finished {
		return
	}
	select {
	case c.ch <- e:
	case <-c.stop:
	}
}

// Finish closes the receive side. Safe to call more than once.
func (c *Channel) Finish() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.finished {
		return
	}
	c.finished = true
	close(c.ch)
}

// Stop releases blocked producers after the consumer has gone away.
func (c *Channel) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// Multi returns a Sink that forwards each event to every non-nil sink.
func Multi(sinks ...Sink) Sink {
	var live []Sink
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	return SinkFunc(func(e Event) {
		for _, s := range live {
			s.Emit(e)
		}
	})
}
