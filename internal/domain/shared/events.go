// Package shared contains common domain types, errors, and events.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each event represents something significant that
// happened in the attendance domain.
const (
	// Session lifecycle events
	EventSessionCreated EventType = "session.created"
	EventSessionDeleted EventType = "session.deleted"

	// Attendance events
	EventScanAccepted   EventType = "attendance.scan_accepted"
	EventScanRejected   EventType = "attendance.scan_rejected"
	EventManualOverride EventType = "attendance.manual_override"

	// Token events
	EventTokenIssued   EventType = "token.issued"
	EventIssuerStopped EventType = "token.issuer_stopped"

	// System events
	EventRosterRefreshed EventType = "system.roster_refreshed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// EventHandler processes a single domain event.
type EventHandler func(event Event) error

// EventBus publishes domain events to subscribed handlers.
type EventBus interface {
	// Publish sends an event to all subscribed handlers.
	Publish(event Event) error

	// Subscribe registers a handler for a specific event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error

	// Close gracefully shuts down the bus.
	Close() error
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
	Version     int       `json:"version"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// SessionCreatedEvent is emitted when a teacher opens a new attendance session.
type SessionCreatedEvent struct {
	BaseEvent
	TeacherID string `json:"teacher_id"`
	Year      int    `json:"year"`
	Division  string `json:"division"`
	Subject   string `json:"subject"`
}

// Payload implements Event interface.
func (e SessionCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"session_id": e.AggregateId,
		"teacher_id": e.TeacherID,
		"year":       e.Year,
		"division":   e.Division,
		"subject":    e.Subject,
	}
}

// SessionDeletedEvent is emitted when a session and its records are removed.
type SessionDeletedEvent struct {
	BaseEvent
	TeacherID string `json:"teacher_id"`
}

// Payload implements Event interface.
func (e SessionDeletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"session_id": e.AggregateId,
		"teacher_id": e.TeacherID,
	}
}

// ScanAcceptedEvent is emitted when a scanned token marks an identity present.
type ScanAcceptedEvent struct {
	BaseEvent
	Identity     string `json:"identity"`
	AlreadyKnown bool   `json:"already_known"`
}

// Payload implements Event interface.
func (e ScanAcceptedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"session_id":    e.AggregateId,
		"identity":      e.Identity,
		"already_known": e.AlreadyKnown,
	}
}

// ScanRejectedEvent is emitted when a relayed scan fails a validation gate.
// Consumers use it to spot stale session screens and replay attempts.
type ScanRejectedEvent struct {
	BaseEvent
	Identity string `json:"identity"`
	Reason   string `json:"reason"` // token_expired, session_closed, token_malformed, not_enrolled, session_not_found
}

// Payload implements Event interface.
func (e ScanRejectedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"session_id": e.AggregateId,
		"identity":   e.Identity,
		"reason":     e.Reason,
	}
}

// ManualOverrideEvent is emitted when a teacher manually edits attendance.
type ManualOverrideEvent struct {
	BaseEvent
	Identity  string `json:"identity,omitempty"`
	Operation string `json:"operation"` // set_present, set_absent, mark_all_present, mark_all_absent
	Affected  int    `json:"affected"`
}

// Payload implements Event interface.
func (e ManualOverrideEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"session_id": e.AggregateId,
		"identity":   e.Identity,
		"operation":  e.Operation,
		"affected":   e.Affected,
	}
}
