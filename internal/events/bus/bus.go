// Package bus is the optional secondary event transport Conductor mirrors
// agent-session and registry events onto. The in-process memory bus is the
// default for a single-workstation daemon; a NATS-backed bus is selected
// when a broker URL is configured, letting front-ends on the same host
// observe session activity without holding an RPC stream open.
package bus

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is one message on the bus. Data carries the event-type-specific
// payload; for mirrored session events that is the session id plus the
// uniform event's type and engine.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Source    string         `json:"source"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// NewEvent stamps a fresh Event with an id and the current time.
func NewEvent(eventType, source string, data map[string]any) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// Handler consumes one delivered event. Returning an error only logs it;
// the bus never redelivers.
type Handler func(ctx context.Context, event *Event) error

// Subscription is a live subject subscription.
type Subscription interface {
	Unsubscribe() error
	IsValid() bool
}

// EventBus is what the Supervisor and RPC surface publish through.
// Subjects are dot-separated tokens; subscription patterns may use "*" to
// match exactly one token and ">" to match any remaining tokens -- the
// matching rules NATS defines, which the memory bus reproduces so the two
// implementations are interchangeable.
type EventBus interface {
	Publish(ctx context.Context, subject string, event *Event) error
	Subscribe(subject string, handler Handler) (Subscription, error)
	Close()
	IsConnected() bool
}
