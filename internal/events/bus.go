package events

import (
	"sync"
	"time"
)

// Handler processes a single event
type Handler func(Event)

// Bus provides ordered event distribution across components.
// A single dispatch goroutine calls every handler for one event before
// moving on to the next, so handlers observe events in emit order.
type Bus struct {
	Capacity int

	hmu      sync.RWMutex
	handlers []Handler

	mu     sync.RWMutex
	events chan Event
	closed bool
	done   chan struct{}
}

// NewBus creates a new event bus with the specified capacity
func NewBus(capacity int) *Bus {
	if capacity <= 0 {
		capacity = 100
	}
	b := &Bus{
		Capacity: capacity,
		events:   make(chan Event, capacity),
		done:     make(chan struct{}),
	}
	go b.dispatch()
	return b
}

// Subscribe registers a handler for all subsequent events
func (b *Bus) Subscribe(h Handler) {
	b.hmu.Lock()
	defer b.hmu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Emit queues an event for delivery. Blocks if the buffer is full, so
// handlers must not emit synchronously. Events emitted after Close are dropped.
func (b *Bus) Emit(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	b.events <- e
}

// Close stops accepting events and waits for queued ones to be delivered
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		<-b.done
		return nil
	}
	b.closed = true
	close(b.events)
	b.mu.Unlock()

	<-b.done
	return nil
}

func (b *Bus) dispatch() {
	defer close(b.done)
	for e := range b.events {
		b.hmu.RLock()
		handlers := make([]Handler, len(b.handlers))
		copy(handlers, b.handlers)
		b.hmu.RUnlock()

		for _, h := range handlers {
			h(e)
		}
	}
}
