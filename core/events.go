package core

import (
	"context"
	"time"
)

// Event topics
const (
	TopicPaymentRecorded = "finance.payment.recorded"
	TopicFeeAssigned     = "finance.fee.assigned"
)

// Event is a notification published after a state change has been committed.
type Event struct {
	Topic      string
	Room       string // e.g. "student:<id>"
	Payload    interface{}
	OccurredAt time.Time
}

// Broadcaster publishes events to interested subscribers.
// Implementations must not block the caller on slow subscribers and never return delivery errors.
type Broadcaster interface {
	Broadcast(ctx context.Context, evt Event)
}

// NopBroadcaster discards every event.
type NopBroadcaster struct{}

func (NopBroadcaster) Broadcast(context.Context, Event) {}
