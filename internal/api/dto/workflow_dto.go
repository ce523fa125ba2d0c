package dto

import (
	"time"

	"github.com/fieldserve/workflow-service/internal/domain"
	"github.com/fieldserve/workflow-service/internal/location"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	CustomerID  string                `json:"customer_id"`
	AssetID     *string               `json:"asset_id"`
	ZoneID      *string               `json:"zone_id"`
	OwnerID     string                `json:"owner_id"`
	SubOwnerID  *string               `json:"sub_owner_id"`
	AssigneeID  *string               `json:"assignee_id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
}

// LocationSampleRequest carries the GPS fix attached to a transition.
type LocationSampleRequest struct {
	Latitude       float64    `json:"latitude"`
	Longitude      float64    `json:"longitude"`
	AccuracyMeters float64    `json:"accuracy_meters"`
	Source         string     `json:"source"`
	Timestamp      *time.Time `json:"timestamp"`
}

// ToSample converts the request into the validator's input shape. A missing
// source defaults to gps; a missing timestamp defaults to receipt time.
func (r *LocationSampleRequest) ToSample() *location.Sample {
	if r == nil {
		return nil
	}
	source := location.SourceGPS
	if r.Source == string(location.SourceManual) {
		source = location.SourceManual
	}
	timestamp := time.Now()
	if r.Timestamp != nil {
		timestamp = *r.Timestamp
	}
	return &location.Sample{
		Latitude:       r.Latitude,
		Longitude:      r.Longitude,
		AccuracyMeters: r.AccuracyMeters,
		Source:         source,
		Timestamp:      timestamp,
	}
}

// TransitionRequest payload.
type TransitionRequest struct {
	Status   domain.TicketStatus    `json:"status"`
	Note     *string                `json:"note"`
	Location *LocationSampleRequest `json:"location"`
}

// TicketResponse provides full ticket info.
type TicketResponse struct {
	ID               string                `json:"id"`
	ExternalKey      string                `json:"external_key"`
	CustomerID       string                `json:"customer_id"`
	AssetID          *string               `json:"asset_id"`
	ZoneID           *string               `json:"zone_id"`
	OwnerID          string                `json:"owner_id"`
	SubOwnerID       *string               `json:"sub_owner_id"`
	AssigneeID       *string               `json:"assignee_id"`
	Title            string                `json:"title"`
	Description      string                `json:"description"`
	Status           domain.TicketStatus   `json:"status"`
	Priority         domain.TicketPriority `json:"priority"`
	SlaDueAt         *time.Time            `json:"sla_due_at"`
	SlaStatus        domain.SlaStatus      `json:"sla_status"`
	Escalated        bool                  `json:"escalated"`
	EscalationReason *string               `json:"escalation_reason,omitempty"`
	NextStatuses     []domain.TicketStatus `json:"next_statuses"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
	ResolvedAt       *time.Time            `json:"resolved_at,omitempty"`
	ClosedAt         *time.Time            `json:"closed_at,omitempty"`
}

// HistoryEntryResponse is one audit-trail row.
type HistoryEntryResponse struct {
	ID                string              `json:"id"`
	Status            domain.TicketStatus `json:"status"`
	PreviousStatus    domain.TicketStatus `json:"previous_status"`
	ChangedByID       string              `json:"changed_by_id"`
	Note              *string             `json:"note,omitempty"`
	TimeInPreviousSec int64               `json:"time_in_previous_sec"`
	TotalOpenSec      int64               `json:"total_open_sec"`
	CreatedAt         time.Time           `json:"created_at"`
}

// TransitionResponse returns the committed transition.
type TransitionResponse struct {
	Ticket   TicketResponse       `json:"ticket"`
	History  HistoryEntryResponse `json:"history"`
	Warnings []string             `json:"warnings,omitempty"`
}

// VisitLogResponse is one onsite-visit record.
type VisitLogResponse struct {
	ID        string                  `json:"id"`
	UserID    string                  `json:"user_id"`
	Event     domain.OnsiteVisitEvent `json:"event"`
	Latitude  float64                 `json:"latitude"`
	Longitude float64                 `json:"longitude"`
	Address   *string                 `json:"address,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
}

// NewTicketResponse maps a domain ticket, attaching the legal next statuses.
func NewTicketResponse(ticket *domain.Ticket, nextStatuses []domain.TicketStatus) TicketResponse {
	return TicketResponse{
		ID:               ticket.ID,
		ExternalKey:      ticket.ExternalKey,
		CustomerID:       ticket.CustomerID,
		AssetID:          ticket.AssetID,
		ZoneID:           ticket.ZoneID,
		OwnerID:          ticket.OwnerID,
		SubOwnerID:       ticket.SubOwnerID,
		AssigneeID:       ticket.AssigneeID,
		Title:            ticket.Title,
		Description:      ticket.Description,
		Status:           ticket.Status,
		Priority:         ticket.Priority,
		SlaDueAt:         ticket.SlaDueAt,
		SlaStatus:        ticket.SlaStatus,
		Escalated:        ticket.Escalated,
		EscalationReason: ticket.EscalationReason,
		NextStatuses:     nextStatuses,
		CreatedAt:        ticket.CreatedAt,
		UpdatedAt:        ticket.UpdatedAt,
		ResolvedAt:       ticket.ResolvedAt,
		ClosedAt:         ticket.ClosedAt,
	}
}

// NewHistoryEntryResponse maps one audit row.
func NewHistoryEntryResponse(entry *domain.TicketStatusHistory) HistoryEntryResponse {
	return HistoryEntryResponse{
		ID:                entry.ID,
		Status:            entry.Status,
		PreviousStatus:    entry.PreviousStatus,
		ChangedByID:       entry.ChangedByID,
		Note:              entry.Note,
		TimeInPreviousSec: entry.TimeInPreviousSec,
		TotalOpenSec:      entry.TotalOpenSec,
		CreatedAt:         entry.CreatedAt,
	}
}

// NewVisitLogResponse maps one visit record.
func NewVisitLogResponse(log *domain.OnsiteVisitLog) VisitLogResponse {
	return VisitLogResponse{
		ID:        log.ID,
		UserID:    log.UserID,
		Event:     log.Event,
		Latitude:  log.Latitude,
		Longitude: log.Longitude,
		Address:   log.Address,
		CreatedAt: log.CreatedAt,
	}
}
