package workflow

import (
	"fmt"

	"github.com/fieldserve/workflow-service/internal/domain"
)

// Decision is the outcome of a transition check.
type Decision struct {
	Allowed bool
	Reason  string
}

// allowedTransitions is the authoritative adjacency list. Any pair not
// listed here is denied. CLOSED and CANCELLED are terminal; REOPENED is the
// only inbound edge from a terminal state and always routes back to OPEN.
var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusOpen: {
		domain.TicketStatusAssigned,
		domain.TicketStatusCancelled,
		domain.TicketStatusEscalated,
	},
	domain.TicketStatusAssigned: {
		domain.TicketStatusOpen,
		domain.TicketStatusInProcess,
		domain.TicketStatusWaitingCustomer,
		domain.TicketStatusOnsiteVisitPlanned,
		domain.TicketStatusSparePartsNeeded,
		domain.TicketStatusPONeeded,
		domain.TicketStatusEscalated,
		domain.TicketStatusCancelled,
	},
	domain.TicketStatusInProcess: {
		domain.TicketStatusWaitingCustomer,
		domain.TicketStatusOnsiteVisitPlanned,
		domain.TicketStatusSparePartsNeeded,
		domain.TicketStatusPONeeded,
		domain.TicketStatusResolved,
		domain.TicketStatusEscalated,
		domain.TicketStatusCancelled,
	},
	domain.TicketStatusWaitingCustomer: {
		domain.TicketStatusInProcess,
		domain.TicketStatusResolved,
		domain.TicketStatusEscalated,
		domain.TicketStatusCancelled,
	},
	domain.TicketStatusOnsiteVisitPlanned: {
		domain.TicketStatusOnsiteVisitStarted,
		domain.TicketStatusInProcess,
		domain.TicketStatusCancelled,
	},
	domain.TicketStatusOnsiteVisitStarted: {
		domain.TicketStatusOnsiteVisitReached,
	},
	domain.TicketStatusOnsiteVisitReached: {
		domain.TicketStatusOnsiteVisitInProgress,
	},
	domain.TicketStatusOnsiteVisitInProgress: {
		domain.TicketStatusOnsiteVisitResolved,
		domain.TicketStatusOnsiteVisitPending,
		domain.TicketStatusSparePartsNeeded,
	},
	domain.TicketStatusOnsiteVisitPending: {
		domain.TicketStatusOnsiteVisitInProgress,
		domain.TicketStatusSparePartsNeeded,
		domain.TicketStatusWaitingCustomer,
	},
	domain.TicketStatusOnsiteVisitResolved: {
		domain.TicketStatusOnsiteVisitCompleted,
	},
	domain.TicketStatusOnsiteVisitCompleted: {
		domain.TicketStatusResolved,
		domain.TicketStatusInProcess,
	},
	domain.TicketStatusSparePartsNeeded: {
		domain.TicketStatusSparePartsBooked,
		domain.TicketStatusCancelled,
	},
	domain.TicketStatusSparePartsBooked: {
		domain.TicketStatusSparePartsDelivered,
	},
	domain.TicketStatusSparePartsDelivered: {
		domain.TicketStatusInProcess,
		domain.TicketStatusOnsiteVisitPlanned,
	},
	domain.TicketStatusPONeeded: {
		domain.TicketStatusPOReached,
		domain.TicketStatusCancelled,
	},
	domain.TicketStatusPOReached: {
		domain.TicketStatusPOReceived,
	},
	domain.TicketStatusPOReceived: {
		domain.TicketStatusInProcess,
		domain.TicketStatusSparePartsNeeded,
	},
	domain.TicketStatusResolved: {
		domain.TicketStatusClosedPending,
		domain.TicketStatusClosed,
		domain.TicketStatusInProcess,
	},
	domain.TicketStatusClosedPending: {
		domain.TicketStatusClosed,
		domain.TicketStatusInProcess,
	},
	domain.TicketStatusClosed: {
		domain.TicketStatusReopened,
	},
	domain.TicketStatusCancelled: {
		domain.TicketStatusReopened,
	},
	domain.TicketStatusReopened: {
		domain.TicketStatusOpen,
	},
	domain.TicketStatusEscalated: {
		domain.TicketStatusAssigned,
		domain.TicketStatusInProcess,
		domain.TicketStatusResolved,
		domain.TicketStatusCancelled,
	},
}

// CanTransition checks whether current -> requested is a legal edge.
// Denial is a local validation outcome; callers must not coerce the request
// to an adjacent legal state.
func CanTransition(current, requested domain.TicketStatus) Decision {
	if current == requested {
		return Decision{Reason: fmt.Sprintf("ticket already in status %s", current)}
	}
	next, known := allowedTransitions[current]
	if !known {
		return Decision{Reason: fmt.Sprintf("unknown status %s", current)}
	}
	for _, candidate := range next {
		if candidate == requested {
			return Decision{Allowed: true}
		}
	}
	if current.IsTerminal() {
		return Decision{Reason: fmt.Sprintf("%s is terminal; only REOPENED is allowed", current)}
	}
	return Decision{Reason: fmt.Sprintf("transition %s -> %s is not allowed", current, requested)}
}

// NextStatuses returns the legal targets from the given status.
func NextStatuses(current domain.TicketStatus) []domain.TicketStatus {
	next := allowedTransitions[current]
	out := make([]domain.TicketStatus, len(next))
	copy(out, next)
	return out
}

// AllStatuses lists every status in the workflow graph.
func AllStatuses() []domain.TicketStatus {
	return []domain.TicketStatus{
		domain.TicketStatusOpen,
		domain.TicketStatusAssigned,
		domain.TicketStatusInProcess,
		domain.TicketStatusWaitingCustomer,
		domain.TicketStatusOnsiteVisitPlanned,
		domain.TicketStatusOnsiteVisitStarted,
		domain.TicketStatusOnsiteVisitReached,
		domain.TicketStatusOnsiteVisitInProgress,
		domain.TicketStatusOnsiteVisitResolved,
		domain.TicketStatusOnsiteVisitPending,
		domain.TicketStatusOnsiteVisitCompleted,
		domain.TicketStatusSparePartsNeeded,
		domain.TicketStatusSparePartsBooked,
		domain.TicketStatusSparePartsDelivered,
		domain.TicketStatusPONeeded,
		domain.TicketStatusPOReached,
		domain.TicketStatusPOReceived,
		domain.TicketStatusResolved,
		domain.TicketStatusClosedPending,
		domain.TicketStatusClosed,
		domain.TicketStatusCancelled,
		domain.TicketStatusReopened,
		domain.TicketStatusEscalated,
	}
}
