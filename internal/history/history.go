package history

import (
	"context"
	"time"
)

// EventType defines the kind of pipeline lifecycle event.
type EventType string

const (
	EventLaunch EventType = "launch"
	EventExit   EventType = "exit"
	EventReset  EventType = "reset"
)

// Event is a pipeline lifecycle event exported to external systems for
// session analytics (how often sessions start, which services die).
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Service    string    `json:"service"`
	PID        int       `json:"pid"`
	Detail     string    `json:"detail,omitempty"`
}

// Sink is a destination for history events.
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}
