package order

import "time"

// EventKind names an order lifecycle event.
type EventKind string

const (
	EventCreated       EventKind = "order.created"
	EventStatusChanged EventKind = "order.status_changed"
)

// Event is published whenever an order is created or changes status.
type Event struct {
	Kind   EventKind `json:"kind"`
	Order  *Order    `json:"order"`
	From   Status    `json:"from,omitempty"`
	Source string    `json:"source,omitempty"`
	At     time.Time `json:"at"`
}

// Publisher receives order events. Implementations must not block.
type Publisher interface {
	Publish(e Event)
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}
