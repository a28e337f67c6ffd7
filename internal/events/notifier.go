// Package events carries change notifications between the ledger and its
// in-process consumers. There is one event kind and no queue: delivery is a
// synchronous fan-out to the listeners subscribed at publish time, and a
// listener that subscribes later must re-fetch current state itself.
package events

import (
	"log/slog"
	"sync"
)

// LedgerChanged signals that a completed mutation changed the ledger. It
// carries only the affected session id; consumers re-fetch whatever state
// they display.
type LedgerChanged struct {
	SessionID string
}

// Listener receives published events. Listeners run on the publisher's
// goroutine and should return quickly.
type Listener func(LedgerChanged)

// Subscription identifies one registered listener.
type Subscription int

// Notifier is the in-process publish/subscribe channel for ledger changes.
// The zero value is ready to use.
type Notifier struct {
	mu        sync.Mutex
	nextID    Subscription
	order     []Subscription
	listeners map[Subscription]Listener
}

func NewNotifier() *Notifier {
	return &Notifier{listeners: make(map[Subscription]Listener)}
}

// Subscribe registers a listener and returns its handle. Listeners are
// notified in subscription order.
func (n *Notifier) Subscribe(l Listener) Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.listeners == nil {
		n.listeners = make(map[Subscription]Listener)
	}

	n.nextID++
	id := n.nextID
	n.listeners[id] = l
	n.order = append(n.order, id)
	return id
}

// Unsubscribe removes a listener. Unknown handles are ignored.
func (n *Notifier) Unsubscribe(id Subscription) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.listeners[id]; !ok {
		return
	}
	delete(n.listeners, id)
	for i, o := range n.order {
		if o == id {
			n.order = append(n.order[:i], n.order[i+1:]...)
			break
		}
	}
}

// Publish delivers the event to every currently subscribed listener, in
// subscription order, on the caller's goroutine.
func (n *Notifier) Publish(ev LedgerChanged) {
	n.mu.Lock()
	listeners := make([]Listener, 0, len(n.order))
	for _, id := range n.order {
		listeners = append(listeners, n.listeners[id])
	}
	n.mu.Unlock()

	slog.Debug("Publishing ledger change",
		"session_id", ev.SessionID,
		"listeners", len(listeners))

	for _, l := range listeners {
		l(ev)
	}
}
