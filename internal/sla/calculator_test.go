package sla

import (
	"testing"
	"time"

	"github.com/fieldserve/workflow-service/internal/domain"
)

// January 2024: Mon Jan 1, Sat Jan 6, Sun Jan 7, Mon Jan 8.
func date(day, hour, minute int) time.Time {
	return time.Date(2024, time.January, day, hour, minute, 0, 0, time.UTC)
}

func newTestCalculator() *Calculator {
	return NewCalculator(time.UTC, 0.2)
}

func TestComputeDueAtSameDay(t *testing.T) {
	calc := newTestCalculator()
	due := calc.ComputeDueAt(date(1, 10, 0), domain.TicketPriorityCritical)
	if want := date(1, 14, 0); !due.Equal(want) {
		t.Fatalf("critical due at %v, want %v", due, want)
	}
}

func TestComputeDueAtRollsOverSunday(t *testing.T) {
	calc := newTestCalculator()
	// Saturday 16:00 leaves 1.5 business hours that day; the remaining 6.5
	// of the HIGH allotment land on Monday.
	due := calc.ComputeDueAt(date(6, 16, 0), domain.TicketPriorityHigh)
	if want := date(8, 15, 30); !due.Equal(want) {
		t.Fatalf("high due at %v, want %v", due, want)
	}
}

func TestComputeDueAtStartsNextMorning(t *testing.T) {
	calc := newTestCalculator()
	cases := []struct {
		name      string
		createdAt time.Time
		want      time.Time
	}{
		{"created on sunday", date(7, 12, 0), date(8, 13, 0)},
		{"created after closing", date(1, 18, 0), date(2, 13, 0)},
		{"created before opening", date(1, 8, 0), date(1, 13, 0)},
	}
	for _, tc := range cases {
		due := calc.ComputeDueAt(tc.createdAt, domain.TicketPriorityCritical)
		if !due.Equal(tc.want) {
			t.Errorf("%s: due at %v, want %v", tc.name, due, tc.want)
		}
	}
}

func TestComputeDueAtWalksMultipleDays(t *testing.T) {
	calc := newTestCalculator()
	// MEDIUM = 24h: 8.5 Monday + 8.5 Tuesday + 7 into Wednesday.
	due := calc.ComputeDueAt(date(1, 9, 0), domain.TicketPriorityMedium)
	if want := date(3, 16, 0); !due.Equal(want) {
		t.Fatalf("medium due at %v, want %v", due, want)
	}
}

func TestElapsedBusinessHoursSkipsSunday(t *testing.T) {
	calc := newTestCalculator()
	got := calc.ElapsedBusinessHours(date(6, 16, 0), date(8, 10, 30))
	if want := 3.0; got != want {
		t.Fatalf("elapsed %v, want %v", got, want)
	}
}

func TestElapsedBusinessHoursZeroWhenReversed(t *testing.T) {
	calc := newTestCalculator()
	if got := calc.ElapsedBusinessHours(date(8, 10, 0), date(6, 10, 0)); got != 0 {
		t.Fatalf("elapsed %v, want 0", got)
	}
}

func TestComputeBreachOpenTicket(t *testing.T) {
	calc := newTestCalculator()
	created := date(1, 10, 0)
	due := calc.ComputeDueAt(created, domain.TicketPriorityCritical)
	ticket := &domain.Ticket{
		Priority:  domain.TicketPriorityCritical,
		CreatedAt: created,
		SlaDueAt:  &due,
	}

	if got := calc.ComputeBreach(ticket, date(1, 11, 0)); got != domain.SlaStatusOnTime {
		t.Errorf("well before due: got %s, want ON_TIME", got)
	}
	// 0.2 * 4h = 0.8h threshold; 30 minutes remaining is inside it.
	if got := calc.ComputeBreach(ticket, due.Add(-30*time.Minute)); got != domain.SlaStatusAtRisk {
		t.Errorf("near due: got %s, want AT_RISK", got)
	}
	if got := calc.ComputeBreach(ticket, due.Add(time.Minute)); got != domain.SlaStatusBreached {
		t.Errorf("past due: got %s, want BREACHED", got)
	}
}

func TestComputeBreachResolvedTicketUsesBusinessHours(t *testing.T) {
	calc := newTestCalculator()
	created := date(6, 16, 0)
	due := calc.ComputeDueAt(created, domain.TicketPriorityHigh)

	// Resolved Monday 10:30: 3 business hours elapsed despite ~42 wall hours.
	resolved := date(8, 10, 30)
	ticket := &domain.Ticket{
		Priority:   domain.TicketPriorityHigh,
		CreatedAt:  created,
		SlaDueAt:   &due,
		ResolvedAt: &resolved,
	}
	if got := calc.ComputeBreach(ticket, date(9, 9, 0)); got != domain.SlaStatusOnTime {
		t.Errorf("resolved within allotment: got %s, want ON_TIME", got)
	}

	late := date(9, 12, 0)
	ticket.ResolvedAt = &late
	if got := calc.ComputeBreach(ticket, date(9, 13, 0)); got != domain.SlaStatusBreached {
		t.Errorf("resolved past allotment: got %s, want BREACHED", got)
	}
}

func TestComputeBreachWithoutDueAt(t *testing.T) {
	calc := newTestCalculator()
	ticket := &domain.Ticket{Priority: domain.TicketPriorityLow}
	if got := calc.ComputeBreach(ticket, date(1, 10, 0)); got != domain.SlaStatusNotApplicable {
		t.Fatalf("got %s, want NOT_APPLICABLE", got)
	}
}

func TestRoundHours(t *testing.T) {
	if got := RoundHours(3.14159); got != 3.14 {
		t.Fatalf("got %v, want 3.14", got)
	}
	if got := RoundHours(0.125); got != 0.13 {
		t.Fatalf("got %v, want 0.13", got)
	}
}
