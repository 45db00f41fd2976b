// Package events relays the progress messages of the chain packages to the
// parts of a program that display them.
package events

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Event is one progress message. Messages are written "source: operation:
// text" by the chain packages, for example "database: Mine: MINING: ...".
type Event struct {
	Source    string
	Operation string
	Text      string
	Time      time.Time
}

// Parse splits a progress message into an event. A message that does not
// follow the format keeps the whole message as its text.
func Parse(msg string) Event {
	e := Event{
		Text: msg,
		Time: time.Now().UTC(),
	}

	parts := strings.SplitN(msg, ": ", 3)
	if len(parts) == 3 {
		e.Source = parts[0]
		e.Operation = parts[1]
		e.Text = parts[2]
	}

	return e
}

// String rebuilds the message the event was parsed from.
func (e Event) String() string {
	if e.Source == "" {
		return e.Text
	}
	return fmt.Sprintf("%s: %s: %s", e.Source, e.Operation, e.Text)
}

// =============================================================================

// subscriber is a channel and the operations its receiver asked for.
type subscriber struct {
	ch         chan Event
	operations map[string]bool
}

// wants reports whether the event belongs to the operations of the
// subscriber. No operations means every event.
func (s subscriber) wants(e Event) bool {
	return len(s.operations) == 0 || s.operations[e.Operation]
}

// Events maintains a mapping of unique id and subscribers so goroutines can
// register and receive events.
type Events struct {
	m  map[string]subscriber
	mu sync.RWMutex
}

// New constructs an events for registering and receiving events.
func New() *Events {
	return &Events{
		m: make(map[string]subscriber),
	}
}

// Shutdown closes and removes all channels that were provided by the call
// to Acquire.
func (evt *Events) Shutdown() {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	for id, sub := range evt.m {
		delete(evt.m, id)
		close(sub.ch)
	}
}

// Acquire takes a unique id and the operations of interest, for example
// "Mine", and returns a channel that receives their events. Acquiring an id
// that is in use returns its existing channel.
func (evt *Events) Acquire(id string, operations ...string) <-chan Event {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	if sub, exists := evt.m[id]; exists {
		return sub.ch
	}

	// An event is dropped when the receiver is not ready, the buffer gives
	// a slow terminal room to catch up during mining.
	const eventBuffer = 100

	sub := subscriber{
		ch:         make(chan Event, eventBuffer),
		operations: make(map[string]bool, len(operations)),
	}
	for _, op := range operations {
		sub.operations[op] = true
	}

	evt.m[id] = sub
	return sub.ch
}

// Release closes and removes the channel that was provided by the call to
// Acquire.
func (evt *Events) Release(id string) error {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	sub, exists := evt.m[id]
	if !exists {
		return fmt.Errorf("id %q does not exist", id)
	}

	delete(evt.m, id)
	close(sub.ch)
	return nil
}

// Send parses the message and delivers the event to every subscriber that
// wants it. Send will not block waiting for a receiver.
func (evt *Events) Send(msg string) {
	e := Parse(msg)

	evt.mu.RLock()
	defer evt.mu.RUnlock()

	for _, sub := range evt.m {
		if !sub.wants(e) {
			continue
		}

		select {
		case sub.ch <- e:
		default:
		}
	}
}
