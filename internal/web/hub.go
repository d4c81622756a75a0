package web

import (
	"sync"
	"sync/atomic"

	"github.com/DelicateHug/DMaker-sub000/internal/events"
)

// subscriberBuffer is the per-subscriber event backlog before drops
const subscriberBuffer = 256

// Hub fans push events out to connected WebSocket subscribers. Membership
// changes and deliveries are serialized by the Run loop.
type Hub struct {
	mu   sync.RWMutex
	subs map[*Client]struct{}

	join      chan *Client
	leave     chan *Client
	broadcast chan events.Event

	done     chan struct{}
	stopOnce sync.Once
}

// Client is one subscriber connection. A client created with projects
// only receives events for those projects; events without a project
// reach every client.
type Client struct {
	id       string
	projects map[string]struct{}
	events   chan events.Event
	dropped  atomic.Uint64
}

// NewClient creates a subscriber, optionally limited to projects
func NewClient(id string, projects ...string) *Client {
	c := &Client{
		id:     id,
		events: make(chan events.Event, subscriberBuffer),
	}
	if len(projects) > 0 {
		c.projects = make(map[string]struct{}, len(projects))
		for _, p := range projects {
			c.projects[p] = struct{}{}
		}
	}
	return c
}

// Wants reports whether e passes the client's project filter
func (c *Client) Wants(e events.Event) bool {
	if c.projects == nil || e.Project == "" {
		return true
	}
	_, ok := c.projects[e.Project]
	return ok
}

// Dropped returns how many events were discarded because the client's
// buffer was full
func (c *Client) Dropped() uint64 {
	return c.dropped.Load()
}

// NewHub creates a hub. Call Run to start delivering.
func NewHub() *Hub {
	return &Hub{
		subs:      make(map[*Client]struct{}),
		join:      make(chan *Client),
		leave:     make(chan *Client),
		broadcast: make(chan events.Event, subscriberBuffer),
		done:      make(chan struct{}),
	}
}

// Run serves membership changes and broadcasts until Stop
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAll()
			return
		case c := <-h.join:
			h.mu.Lock()
			h.subs[c] = struct{}{}
			h.mu.Unlock()
		case c := <-h.leave:
			h.remove(c)
		case e := <-h.broadcast:
			h.deliver(e)
		}
	}
}

func (h *Hub) deliver(e events.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.subs {
		if !c.Wants(e) {
			continue
		}
		select {
		case c.events <- e:
		default:
			c.dropped.Add(1)
		}
	}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[c]; ok {
		delete(h.subs, c)
		close(c.events)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.subs {
		close(c.events)
	}
	clear(h.subs)
}

// Stop ends Run and closes every subscriber's channel. Safe to call twice.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Register adds a subscriber. Returns false once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.join <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a subscriber and closes its channel
func (h *Hub) Unregister(c *Client) {
	select {
	case h.leave <- c:
	case <-h.done:
	}
}

// Broadcast queues e for every interested subscriber. A subscriber whose
// buffer is full misses the event. Events after Stop are discarded.
func (h *Hub) Broadcast(e events.Event) {
	select {
	case h.broadcast <- e:
	case <-h.done:
	}
}

// Count returns the number of connected subscribers
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
