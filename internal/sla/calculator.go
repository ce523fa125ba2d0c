// Package sla computes due-by deadlines and breach state over the business
// calendar: Monday through Saturday, 09:00 to 17:30, Sunday fully excluded.
package sla

import (
	"math"
	"time"

	"github.com/fieldserve/workflow-service/internal/domain"
)

const (
	windowStartHour   = 9
	windowStartMinute = 0
	windowEndHour     = 17
	windowEndMinute   = 30
)

// Allotments is the per-priority budget in business hours.
var Allotments = map[domain.TicketPriority]float64{
	domain.TicketPriorityCritical: 4,
	domain.TicketPriorityHigh:     8,
	domain.TicketPriorityMedium:   24,
	domain.TicketPriorityLow:      48,
}

// Calculator evaluates SLA deadlines in a fixed local calendar.
type Calculator struct {
	loc            *time.Location
	atRiskFraction float64
}

// NewCalculator builds a calculator. atRiskFraction is the share of the
// allotment under which remaining time flips the status to AT_RISK.
func NewCalculator(loc *time.Location, atRiskFraction float64) *Calculator {
	if loc == nil {
		loc = time.UTC
	}
	if atRiskFraction <= 0 || atRiskFraction >= 1 {
		atRiskFraction = 0.2
	}
	return &Calculator{loc: loc, atRiskFraction: atRiskFraction}
}

// ComputeDueAt walks the calendar forward consuming the priority's allotment
// day by day. The walk is iterative on purpose: the Sunday exclusion and the
// daily window boundaries make a closed form fragile, and the iteration is
// the authoritative semantics.
func (c *Calculator) ComputeDueAt(createdAt time.Time, priority domain.TicketPriority) time.Time {
	remaining, ok := Allotments[priority]
	if !ok {
		remaining = Allotments[domain.TicketPriorityMedium]
	}

	cursor := c.clampForward(createdAt.In(c.loc))
	for {
		available := c.windowEnd(cursor).Sub(cursor).Hours()
		if remaining <= available {
			return cursor.Add(time.Duration(remaining * float64(time.Hour)))
		}
		remaining -= available
		cursor = c.nextBusinessMorning(cursor)
	}
}

// ComputeBreach evaluates a ticket against its deadline. Open tickets are
// judged by the clock against slaDueAt; resolved or closed tickets are
// re-judged by actual elapsed business hours against the allotment.
func (c *Calculator) ComputeBreach(ticket *domain.Ticket, now time.Time) domain.SlaStatus {
	if ticket == nil || ticket.SlaDueAt == nil {
		return domain.SlaStatusNotApplicable
	}
	allotment, ok := Allotments[ticket.Priority]
	if !ok {
		return domain.SlaStatusNotApplicable
	}

	if endedAt := resolutionTime(ticket); endedAt != nil {
		elapsed := c.ElapsedBusinessHours(ticket.CreatedAt, *endedAt)
		if elapsed > allotment {
			return domain.SlaStatusBreached
		}
		return domain.SlaStatusOnTime
	}

	if now.After(*ticket.SlaDueAt) {
		return domain.SlaStatusBreached
	}
	remaining := c.ElapsedBusinessHours(now, *ticket.SlaDueAt)
	if remaining <= c.atRiskFraction*allotment {
		return domain.SlaStatusAtRisk
	}
	return domain.SlaStatusOnTime
}

// ElapsedBusinessHours sums the business-window overlap between from and to
// using the same day walk as ComputeDueAt. Returns 0 when to <= from.
func (c *Calculator) ElapsedBusinessHours(from, to time.Time) float64 {
	from = from.In(c.loc)
	to = to.In(c.loc)
	if !to.After(from) {
		return 0
	}

	total := 0.0
	cursor := c.clampForward(from)
	for cursor.Before(to) {
		dayEnd := c.windowEnd(cursor)
		segmentEnd := to
		if dayEnd.Before(segmentEnd) {
			segmentEnd = dayEnd
		}
		if segmentEnd.After(cursor) {
			total += segmentEnd.Sub(cursor).Hours()
		}
		cursor = c.nextBusinessMorning(cursor)
	}
	return total
}

// RoundHours rounds an hour value to two decimal places for display.
// Breach comparisons use full precision.
func RoundHours(hours float64) float64 {
	return math.Round(hours*100) / 100
}

// clampForward moves a timestamp to the nearest point inside the business
// window at or after it.
func (c *Calculator) clampForward(t time.Time) time.Time {
	for {
		if t.Weekday() == time.Sunday {
			t = c.morningAfter(t)
			continue
		}
		start := time.Date(t.Year(), t.Month(), t.Day(), windowStartHour, windowStartMinute, 0, 0, c.loc)
		end := time.Date(t.Year(), t.Month(), t.Day(), windowEndHour, windowEndMinute, 0, 0, c.loc)
		if t.Before(start) {
			return start
		}
		if !t.Before(end) {
			t = c.morningAfter(t)
			continue
		}
		return t
	}
}

func (c *Calculator) windowEnd(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), windowEndHour, windowEndMinute, 0, 0, c.loc)
}

func (c *Calculator) morningAfter(t time.Time) time.Time {
	next := t.AddDate(0, 0, 1)
	return time.Date(next.Year(), next.Month(), next.Day(), windowStartHour, windowStartMinute, 0, 0, c.loc)
}

func (c *Calculator) nextBusinessMorning(t time.Time) time.Time {
	next := c.morningAfter(t)
	for next.Weekday() == time.Sunday {
		next = c.morningAfter(next)
	}
	return next
}

func resolutionTime(ticket *domain.Ticket) *time.Time {
	if ticket.ResolvedAt != nil {
		return ticket.ResolvedAt
	}
	if ticket.ClosedAt != nil {
		return ticket.ClosedAt
	}
	return nil
}
