package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen                  TicketStatus = "OPEN"
	TicketStatusAssigned              TicketStatus = "ASSIGNED"
	TicketStatusInProcess             TicketStatus = "IN_PROCESS"
	TicketStatusWaitingCustomer       TicketStatus = "WAITING_CUSTOMER"
	TicketStatusOnsiteVisitPlanned    TicketStatus = "ONSITE_VISIT_PLANNED"
	TicketStatusOnsiteVisitStarted    TicketStatus = "ONSITE_VISIT_STARTED"
	TicketStatusOnsiteVisitReached    TicketStatus = "ONSITE_VISIT_REACHED"
	TicketStatusOnsiteVisitInProgress TicketStatus = "ONSITE_VISIT_IN_PROGRESS"
	TicketStatusOnsiteVisitResolved   TicketStatus = "ONSITE_VISIT_RESOLVED"
	TicketStatusOnsiteVisitPending    TicketStatus = "ONSITE_VISIT_PENDING"
	TicketStatusOnsiteVisitCompleted  TicketStatus = "ONSITE_VISIT_COMPLETED"
	TicketStatusSparePartsNeeded      TicketStatus = "SPARE_PARTS_NEEDED"
	TicketStatusSparePartsBooked      TicketStatus = "SPARE_PARTS_BOOKED"
	TicketStatusSparePartsDelivered   TicketStatus = "SPARE_PARTS_DELIVERED"
	TicketStatusPONeeded              TicketStatus = "PO_NEEDED"
	TicketStatusPOReached             TicketStatus = "PO_REACHED"
	TicketStatusPOReceived            TicketStatus = "PO_RECEIVED"
	TicketStatusResolved              TicketStatus = "RESOLVED"
	TicketStatusClosedPending         TicketStatus = "CLOSED_PENDING"
	TicketStatusClosed                TicketStatus = "CLOSED"
	TicketStatusCancelled             TicketStatus = "CANCELLED"
	TicketStatusReopened              TicketStatus = "REOPENED"
	TicketStatusEscalated             TicketStatus = "ESCALATED"
)

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "LOW"
	TicketPriorityMedium   TicketPriority = "MEDIUM"
	TicketPriorityHigh     TicketPriority = "HIGH"
	TicketPriorityCritical TicketPriority = "CRITICAL"
)

// SlaStatus captures where a ticket stands against its deadline.
type SlaStatus string

const (
	SlaStatusOnTime        SlaStatus = "ON_TIME"
	SlaStatusAtRisk        SlaStatus = "AT_RISK"
	SlaStatusBreached      SlaStatus = "BREACHED"
	SlaStatusNotApplicable SlaStatus = "NOT_APPLICABLE"
)

// Ticket is the aggregate for field-service requests.
// Status always mirrors the latest committed history row for the ticket.
type Ticket struct {
	ID               string
	ExternalKey      string
	CustomerID       string
	AssetID          *string
	ZoneID           *string
	OwnerID          string
	SubOwnerID       *string
	AssigneeID       *string
	CreatorID        string
	Title            string
	Description      string
	Status           TicketStatus
	Priority         TicketPriority
	SlaDueAt         *time.Time
	SlaStatus        SlaStatus
	Escalated        bool
	EscalationReason *string
	VisitStartedAt   *time.Time
	VisitReachedAt   *time.Time
	VisitResolvedAt  *time.Time
	LocationHistory  string
	LastStatusChange time.Time
	TimeInStatusSec  int64
	TotalOpenSec     int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
	ResolvedAt       *time.Time
	ClosedAt         *time.Time
}

// IsTerminal reports whether the status has no outbound edge except REOPENED.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusClosed || s == TicketStatusCancelled
}

// IsOnsiteMilestone reports whether the status marks a field-visit step that
// must be anchored to a validated location sample.
func (s TicketStatus) IsOnsiteMilestone() bool {
	switch s {
	case TicketStatusOnsiteVisitStarted,
		TicketStatusOnsiteVisitReached,
		TicketStatusOnsiteVisitInProgress,
		TicketStatusOnsiteVisitResolved,
		TicketStatusOnsiteVisitPending,
		TicketStatusOnsiteVisitCompleted:
		return true
	}
	return false
}
