// Package events carries domain events between modules without direct
// imports: provisioning, call lifecycle and attribution publish here, and
// subscribers like notifications react without the publisher knowing them.
package events

import (
	"context"
	"time"
)

// Event is implemented by every domain event.
type Event interface {
	// EventName identifies the event type, e.g. "calls.completed".
	EventName() string
	OccurredAt() time.Time
}

// BaseEvent supplies the timestamp every event carries. Embed it and add the
// event's own fields.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps a fresh event with the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

// Handler reacts to events of one type.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts an ordinary function to Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus fans events out to their subscribers.
type Bus interface {
	// Publish delivers the event to every handler subscribed to its name.
	// Handlers run asynchronously; a slow subscriber never blocks the
	// publishing request.
	Publish(ctx context.Context, event Event)

	// PublishSync delivers the event and waits for all handlers.
	PublishSync(ctx context.Context, event Event) error

	// Subscribe registers a handler for the event name, matching the
	// value the event's EventName returns.
	Subscribe(eventName string, handler Handler)
}
