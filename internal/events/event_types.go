package events

import (
	"time"

	"github.com/fieldserve/workflow-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventSlaStatusChanged    EventType = "sla_status_changed"
	EventTicketEscalated     EventType = "ticket_escalated"
	EventOnsiteVisitLogged   EventType = "onsite_visit_logged"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	ActorID   string      `json:"actor_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// StatusChangedPayload payload.
type StatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Note      string              `json:"note,omitempty"`
}

// SlaStatusChangedPayload payload.
type SlaStatusChangedPayload struct {
	OldSlaStatus domain.SlaStatus `json:"old_sla_status"`
	NewSlaStatus domain.SlaStatus `json:"new_sla_status"`
	DueAt        *time.Time       `json:"due_at,omitempty"`
}

// EscalatedPayload payload.
type EscalatedPayload struct {
	Reason string `json:"reason"`
}

// OnsiteVisitLoggedPayload payload.
type OnsiteVisitLoggedPayload struct {
	Event     domain.OnsiteVisitEvent `json:"event"`
	Latitude  float64                 `json:"latitude"`
	Longitude float64                 `json:"longitude"`
	Address   *string                 `json:"address,omitempty"`
}
