package telemetry

import (
	"slices"
	"sync"
)

// Element identifies the page element an error event targeted.
type Element struct {
	LocalName string `json:"local_name"` // lower-case tag name, e.g. "img"
	Src       string `json:"src,omitempty"`
	Href      string `json:"href,omitempty"`
}

// ErrorEvent is a global error event. Target is nil when the error was
// raised by script on the window itself; otherwise an element failed to load.
type ErrorEvent struct {
	Target   *Element `json:"target,omitempty"`
	Message  string   `json:"message,omitempty"`
	Filename string   `json:"filename,omitempty"`
	Line     int      `json:"line,omitempty"`
	Column   int      `json:"column,omitempty"`
	Stack    string   `json:"stack,omitempty"`
}

// RejectionEvent is an unhandled promise rejection. Reason is whatever the
// page rejected with.
type RejectionEvent struct {
	Reason any `json:"reason"`
}

// Listener receives page events.
type Listener interface {
	OnError(ErrorEvent)
	OnRejection(RejectionEvent)
	OnLoad()
}

// EventSource delivers page events to subscribed listeners.
type EventSource interface {
	// Subscribe registers l and returns a function that removes it.
	Subscribe(l Listener) (unsubscribe func())
}

// Bus is an in-process EventSource. Events are delivered synchronously,
// one at a time, in publish order.
// Thread-safe for concurrent use.
type Bus struct {
	mu        sync.Mutex // serializes delivery
	subMu     sync.RWMutex
	listeners map[uint64]Listener
	nextID    uint64
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{listeners: make(map[uint64]Listener)}
}

func (b *Bus) Subscribe(l Listener) func() {
	b.subMu.Lock()
	defer b.subMu.Unlock()

	b.nextID++
	id := b.nextID
	b.listeners[id] = l

	var once sync.Once
	return func() {
		once.Do(func() {
			b.subMu.Lock()
			defer b.subMu.Unlock()
			delete(b.listeners, id)
		})
	}
}

// PublishError delivers an error event.
func (b *Bus) PublishError(ev ErrorEvent) {
	b.each(func(l Listener) { l.OnError(ev) })
}

// PublishRejection delivers an unhandled rejection.
func (b *Bus) PublishRejection(ev RejectionEvent) {
	b.each(func(l Listener) { l.OnRejection(ev) })
}

// PublishLoad delivers the window load event.
func (b *Bus) PublishLoad() {
	b.each(func(l Listener) { l.OnLoad() })
}

// Len returns the number of subscribed listeners.
func (b *Bus) Len() int {
	b.subMu.RLock()
	defer b.subMu.RUnlock()
	return len(b.listeners)
}

func (b *Bus) each(fn func(Listener)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subMu.RLock()
	ids := make([]uint64, 0, len(b.listeners))
	for id := range b.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	ordered := make([]Listener, len(ids))
	for i, id := range ids {
		ordered[i] = b.listeners[id]
	}
	b.subMu.RUnlock()

	for _, l := range ordered {
		fn(l)
	}
}
