package audit

import (
	"context"
	"time"
)

// EventType defines the kind of audit event.
type EventType string

const (
	EventAlert  EventType = "alert"
	EventAction EventType = "action"
)

// Event is an operational audit record: either an alert handed to the
// transport or an operator action routed by the engine.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Operator   string    `json:"operator,omitempty"`
	Kind       string    `json:"kind"` // alert severity or action category
	Subject    string    `json:"subject"`
	Detail     string    `json:"detail,omitempty"`
}

// Sink is a destination for audit events (analytics/statistics systems).
// Implementations must be safe for concurrent use. Send failures are
// best-effort for callers and never affect control flow.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}
