package domain

import "time"

// TicketStatusHistory is an immutable audit trail entry. Rows are only ever
// inserted; the latest row for a ticket defines the ticket's current status.
type TicketStatusHistory struct {
	ID                string
	TicketID          string
	Status            TicketStatus
	PreviousStatus    TicketStatus
	ChangedByID       string
	Note              *string
	TimeInPreviousSec int64
	TotalOpenSec      int64
	CreatedAt         time.Time
}
