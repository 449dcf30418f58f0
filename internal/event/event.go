// Package event provides a small observer registry used by the vault, the
// protocol service and the tracker to publish lifecycle events. Core logic
// never assumes a listener is present; emitting with zero subscribers is a
// no-op.
package event

import (
	"sync"
	"time"
)

// Type names an emitted event. The concrete constants live next to the
// component that owns them.
type Type string

// Event is a single emitted occurrence with a free-form payload.
type Event struct {
	Type    Type           `json:"type"`
	At      time.Time      `json:"at"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Listener receives events synchronously, in subscription order. A listener
// must not block for long; slow consumers should hand off to their own
// goroutine.
type Listener func(Event)

// Emitter dispatches events to registered listeners. The zero value is ready
// to use.
type Emitter struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[int]Listener
	order     []int
}

// Subscribe registers a listener and returns a cancel function that removes
// it. Cancelling twice is harmless.
func (e *Emitter) Subscribe(fn Listener) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.listeners == nil {
		e.listeners = make(map[int]Listener)
	}
	id := e.nextID
	e.nextID++
	e.listeners[id] = fn
	e.order = append(e.order, id)

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.listeners, id)
		for i, v := range e.order {
			if v == id {
				e.order = append(e.order[:i], e.order[i+1:]...)
				break
			}
		}
	}
}

// Emit delivers the event to all current listeners.
func (e *Emitter) Emit(t Type, payload map[string]any) {
	e.mu.RLock()
	fns := make([]Listener, 0, len(e.order))
	for _, id := range e.order {
		if fn, ok := e.listeners[id]; ok {
			fns = append(fns, fn)
		}
	}
	e.mu.RUnlock()

	ev := Event{Type: t, At: time.Now(), Payload: payload}
	for _, fn := range fns {
		fn(ev)
	}
}
