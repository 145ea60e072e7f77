package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSLAWarning            EventType = "sla_warning"
	EventSLABreach             EventType = "sla_breach"
	EventSLAEscalation         EventType = "sla_escalation"
	EventTicketStatusChanged   EventType = "ticket_status_changed"
	EventTicketPriorityChanged EventType = "ticket_priority_changed"
	EventTicketDueDatesChanged EventType = "ticket_due_dates_changed"
)

// IsSLA reports whether the event comes from the monitor.
func (t EventType) IsSLA() bool {
	switch t {
	case EventSLAWarning, EventSLABreach, EventSLAEscalation:
		return true
	}
	return false
}

// Actor identifies who caused an event. A nil ID means the system.
type Actor struct {
	ID *string `json:"id,omitempty"`
}

// SystemActor is the actor of scheduled work.
var SystemActor = Actor{}

// Event represents a domain event emitted by services and the monitor.
// DedupKey, when set, is stable across retries of the same notification.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	DedupKey  string      `json:"dedup_key,omitempty"`
	Payload   interface{} `json:"payload"`
}

// MessageID is the broker-side dedup id: DedupKey when set, ID otherwise.
func (e Event) MessageID() string {
	if e.DedupKey != "" {
		return e.DedupKey
	}
	return e.ID
}

// New stamps an event with a fresh id.
func New(eventType EventType, ticketID string, actor Actor, at time.Time, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Actor:     actor,
		Timestamp: at.UTC(),
		Payload:   payload,
	}
}

// SLAPayload describes a warning, breach or escalation.
type SLAPayload struct {
	DueKind    domain.DueKind `json:"due_kind"`
	DueAt      time.Time      `json:"due_at"`
	DetectedAt time.Time      `json:"detected_at"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
	Note      string `json:"note,omitempty"`
}

// TicketPriorityChangedPayload payload.
type TicketPriorityChangedPayload struct {
	OldPriority domain.TicketPriority `json:"old_priority"`
	NewPriority domain.TicketPriority `json:"new_priority"`
}

// TicketDueDatesChangedPayload payload.
type TicketDueDatesChangedPayload struct {
	ResponseDue   *time.Time `json:"response_due,omitempty"`
	ResolutionDue *time.Time `json:"resolution_due,omitempty"`
	EscalationDue *time.Time `json:"escalation_due,omitempty"`
}
