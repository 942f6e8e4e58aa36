package store

import (
	"context"
	"time"
)

// EventType classifies a lifecycle event in the journal.
type EventType string

const (
	EventLaunch   EventType = "launch"    // service process spawned
	EventReady    EventType = "ready"     // readiness probe answered
	EventNotReady EventType = "not_ready" // readiness budget exhausted
	EventExit     EventType = "exit"      // unexpected death detected
	EventRestart  EventType = "restart"   // restart attempt begun
	EventGiveUp   EventType = "give_up"   // restart budget exhausted
	EventDegraded EventType = "degraded"  // non-essential service abandoned
	EventShutdown EventType = "shutdown"  // coordinated shutdown begun
)

// Event is one journal entry. OccurredAt should be in UTC.
type Event struct {
	Service    string    `json:"service"`
	Type       EventType `json:"type"`
	PID        int       `json:"pid"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Journal persists lifecycle events for post-mortem inspection. It is
// write-only during a supervisor run; the read path serves the status CLI
// and tests. It is never consulted to resume restart counters, which stay
// per-run.
type Journal interface {
	EnsureSchema(ctx context.Context) error
	Append(ctx context.Context, evt Event) error
	Recent(ctx context.Context, limit int) ([]Event, error)
	Close() error
}
