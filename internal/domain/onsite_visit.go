package domain

import "time"

// OnsiteVisitEvent labels the field-visit step a location sample anchors.
type OnsiteVisitEvent string

const (
	OnsiteVisitEventStarted    OnsiteVisitEvent = "STARTED"
	OnsiteVisitEventReached    OnsiteVisitEvent = "REACHED"
	OnsiteVisitEventInProgress OnsiteVisitEvent = "IN_PROGRESS"
	OnsiteVisitEventResolved   OnsiteVisitEvent = "RESOLVED"
	OnsiteVisitEventPending    OnsiteVisitEvent = "PENDING"
	OnsiteVisitEventEnded      OnsiteVisitEvent = "ENDED"
)

// OnsiteVisitLog records a validated GPS sample for a visit milestone.
// Append-only; coordinates are stored as 7-decimal fixed point.
type OnsiteVisitLog struct {
	ID        string
	TicketID  string
	UserID    string
	Event     OnsiteVisitEvent
	Latitude  float64
	Longitude float64
	Address   *string
	CreatedAt time.Time
}

// VisitEventForStatus maps an onsite-visit status to its log event label.
func VisitEventForStatus(status TicketStatus) (OnsiteVisitEvent, bool) {
	switch status {
	case TicketStatusOnsiteVisitStarted:
		return OnsiteVisitEventStarted, true
	case TicketStatusOnsiteVisitReached:
		return OnsiteVisitEventReached, true
	case TicketStatusOnsiteVisitInProgress:
		return OnsiteVisitEventInProgress, true
	case TicketStatusOnsiteVisitResolved:
		return OnsiteVisitEventResolved, true
	case TicketStatusOnsiteVisitPending:
		return OnsiteVisitEventPending, true
	case TicketStatusOnsiteVisitCompleted:
		return OnsiteVisitEventEnded, true
	}
	return "", false
}
