// Package events provides a centralized event bus for the orchestrator.
// The coordinator and engine publish structured events; telemetry
// collaborators subscribe read-only.
package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	Timestamp() time.Time
	SessionID() string
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	Type    string    `json:"type"`
	Time    time.Time `json:"timestamp"`
	Session string    `json:"session_id"`
}

func (e BaseEvent) EventType() string    { return e.Type }
func (e BaseEvent) Timestamp() time.Time { return e.Time }
func (e BaseEvent) SessionID() string    { return e.Session }

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType, sessionID string) BaseEvent {
	return BaseEvent{
		Type:    eventType,
		Time:    time.Now(),
		Session: sessionID,
	}
}

// Subscriber represents an event subscription.
type Subscriber struct {
	ch    chan Event
	types map[string]bool // Empty means all types
}

// Events returns the subscriber's channel.
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// Bus provides pub/sub with non-blocking publish. Slow subscribers drop
// events rather than stalling the workflow.
type Bus struct {
	mu           sync.RWMutex
	subscribers  []*Subscriber
	bufferSize   int
	droppedCount int64
	closed       bool
}

// NewBus creates a new event bus with the specified per-subscriber buffer.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &Bus{bufferSize: bufferSize}
}

// Subscribe registers a subscriber for the given event types.
// An empty type list subscribes to all events.
func (b *Bus) Subscribe(types ...string) *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscriber{
		ch:    make(chan Event, b.bufferSize),
		types: make(map[string]bool, len(types)),
	}
	for _, t := range types {
		sub.types[t] = true
	}
	b.subscribers = append(b.subscribers, sub)
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subscribers {
		if s == sub {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			close(s.ch)
			return
		}
	}
}

// Publish delivers an event to all matching subscribers without blocking.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, sub := range b.subscribers {
		if len(sub.types) > 0 && !sub.types[event.EventType()] {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			atomic.AddInt64(&b.droppedCount, 1)
		}
	}
}

// Dropped returns the count of events dropped due to full buffers.
func (b *Bus) Dropped() int64 {
	return atomic.LoadInt64(&b.droppedCount)
}

// Close shuts down the bus and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subscribers {
		close(sub.ch)
	}
	b.subscribers = nil
}
