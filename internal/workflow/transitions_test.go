package workflow

import (
	"testing"

	"github.com/fieldserve/workflow-service/internal/domain"
)

func TestCanTransitionAllowsListedEdges(t *testing.T) {
	cases := []struct {
		current, requested domain.TicketStatus
	}{
		{domain.TicketStatusOpen, domain.TicketStatusAssigned},
		{domain.TicketStatusAssigned, domain.TicketStatusInProcess},
		{domain.TicketStatusInProcess, domain.TicketStatusResolved},
		{domain.TicketStatusResolved, domain.TicketStatusClosed},
		{domain.TicketStatusOnsiteVisitPlanned, domain.TicketStatusOnsiteVisitStarted},
		{domain.TicketStatusOnsiteVisitStarted, domain.TicketStatusOnsiteVisitReached},
		{domain.TicketStatusOnsiteVisitReached, domain.TicketStatusOnsiteVisitInProgress},
		{domain.TicketStatusOnsiteVisitInProgress, domain.TicketStatusOnsiteVisitResolved},
		{domain.TicketStatusOnsiteVisitResolved, domain.TicketStatusOnsiteVisitCompleted},
		{domain.TicketStatusOnsiteVisitCompleted, domain.TicketStatusResolved},
		{domain.TicketStatusSparePartsNeeded, domain.TicketStatusSparePartsBooked},
		{domain.TicketStatusSparePartsBooked, domain.TicketStatusSparePartsDelivered},
		{domain.TicketStatusPONeeded, domain.TicketStatusPOReached},
		{domain.TicketStatusClosed, domain.TicketStatusReopened},
		{domain.TicketStatusCancelled, domain.TicketStatusReopened},
		{domain.TicketStatusReopened, domain.TicketStatusOpen},
	}
	for _, tc := range cases {
		decision := CanTransition(tc.current, tc.requested)
		if !decision.Allowed {
			t.Errorf("%s -> %s should be allowed, got reason %q", tc.current, tc.requested, decision.Reason)
		}
	}
}

func TestCanTransitionDeniesUnlistedEdges(t *testing.T) {
	cases := []struct {
		current, requested domain.TicketStatus
	}{
		{domain.TicketStatusOpen, domain.TicketStatusClosed},
		{domain.TicketStatusOpen, domain.TicketStatusResolved},
		{domain.TicketStatusAssigned, domain.TicketStatusClosed},
		{domain.TicketStatusOnsiteVisitStarted, domain.TicketStatusOnsiteVisitResolved},
		{domain.TicketStatusSparePartsBooked, domain.TicketStatusInProcess},
		{domain.TicketStatusReopened, domain.TicketStatusAssigned},
	}
	for _, tc := range cases {
		decision := CanTransition(tc.current, tc.requested)
		if decision.Allowed {
			t.Errorf("%s -> %s should be denied", tc.current, tc.requested)
		}
		if decision.Reason == "" {
			t.Errorf("%s -> %s denial must carry a reason", tc.current, tc.requested)
		}
	}
}

func TestTerminalStatusesOnlyReopen(t *testing.T) {
	terminals := []domain.TicketStatus{domain.TicketStatusClosed, domain.TicketStatusCancelled}
	for _, terminal := range terminals {
		for _, target := range AllStatuses() {
			decision := CanTransition(terminal, target)
			if target == domain.TicketStatusReopened {
				if !decision.Allowed {
					t.Errorf("%s -> REOPENED should be allowed", terminal)
				}
				continue
			}
			if decision.Allowed {
				t.Errorf("%s -> %s should be denied from a terminal status", terminal, target)
			}
		}
	}
}

func TestSelfTransitionDenied(t *testing.T) {
	for _, status := range AllStatuses() {
		if decision := CanTransition(status, status); decision.Allowed {
			t.Errorf("%s -> %s self transition should be denied", status, status)
		}
	}
}

func TestNextStatusesReturnsCopy(t *testing.T) {
	first := NextStatuses(domain.TicketStatusOpen)
	if len(first) == 0 {
		t.Fatalf("expected outbound edges from OPEN")
	}
	first[0] = domain.TicketStatusClosed
	if decision := CanTransition(domain.TicketStatusOpen, domain.TicketStatusClosed); decision.Allowed {
		t.Fatalf("mutating NextStatuses result must not alter the graph")
	}
}
