// Package eventbus is the in-process pub/sub used to stream wiki
// generation progress to SSE clients (grounded on
// app/queue/event_bus.py).
package eventbus

import (
	"log/slog"
	"sync"
)

// Event is a generic progress event; Type discriminates its shape
// for SSE encoding (the pipeline publishes status_change,
// page_complete, and complete).
type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

const subscriberBuffer = 64

// Bus is an in-memory publish/subscribe keyed by wiki ID. The zero
// value is not usable; construct with New.
type Bus struct {
	mu          sync.Mutex
	subscribers map[string][]chan Event
	logger      *slog.Logger
}

// New constructs an empty Bus.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{subscribers: make(map[string][]chan Event), logger: logger}
}

// Publish fans an event out to every subscriber of wikiID. Publish
// never blocks on a slow subscriber: channels are buffered, and a
// full channel drops the event rather than stall the publisher,
// which in this system is always the job orchestrator's hot path.
func (b *Bus) Publish(wikiID string, ev Event) {
	b.mu.Lock()
	subs := append([]chan Event(nil), b.subscribers[wikiID]...)
	b.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
			b.logger.Warn("eventbus: dropping event, subscriber channel full", "wiki_id", wikiID, "type", ev.Type)
		}
	}
}

// Subscribe registers a new subscriber for wikiID and returns its
// event channel. Callers must call Unsubscribe with the same channel
// when done, typically via a deferred call when the SSE handler's
// request context is cancelled.
func (b *Bus) Subscribe(wikiID string) chan Event {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	b.subscribers[wikiID] = append(b.subscribers[wikiID], ch)
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes ch from wikiID's subscriber list and reclaims
// the wikiID entry entirely once its last subscriber leaves.
func (b *Bus) Unsubscribe(wikiID string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[wikiID]
	for i, c := range subs {
		if c == ch {
			subs = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(subs) == 0 {
		delete(b.subscribers, wikiID)
	} else {
		b.subscribers[wikiID] = subs
	}
}
