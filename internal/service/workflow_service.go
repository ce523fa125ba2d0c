package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/fieldserve/workflow-service/internal/domain"
	"github.com/fieldserve/workflow-service/internal/events"
	"github.com/fieldserve/workflow-service/internal/geocode"
	"github.com/fieldserve/workflow-service/internal/location"
	"github.com/fieldserve/workflow-service/internal/persistence"
	"github.com/fieldserve/workflow-service/internal/repository"
	"github.com/fieldserve/workflow-service/internal/sla"
	"github.com/fieldserve/workflow-service/internal/workflow"
	apperrors "github.com/fieldserve/workflow-service/pkg/util/errorutil"
)

// Notifier is the hub surface the coordinator fans out through.
type Notifier interface {
	Broadcast(ctx context.Context, userIDs []string, template domain.Notification)
}

// LocationCache is the fast path for the previous sample during jump
// detection; nil-safe, the visit log is the durable fallback.
type LocationCache interface {
	GetLastLocation(ctx context.Context, ticketID string) (*persistence.CachedLocation, error)
	SetLastLocation(ctx context.Context, ticketID string, loc persistence.CachedLocation) error
}

// customerVisibleStatuses is the fixed whitelist of transitions that also
// notify the customer's registered contacts.
var customerVisibleStatuses = map[domain.TicketStatus]struct{}{
	domain.TicketStatusAssigned:           {},
	domain.TicketStatusOnsiteVisitPlanned: {},
	domain.TicketStatusResolved:           {},
	domain.TicketStatusClosed:             {},
}

// WorkflowService coordinates status transitions end to end: legality check,
// location gating, atomic persistence, SLA recompute, notification fan-out.
type WorkflowService struct {
	tickets   repository.TicketRepository
	history   repository.TicketHistoryRepository
	visits    repository.OnsiteVisitRepository
	contacts  repository.CustomerContactRepository
	validator *location.Validator
	slaCalc   *sla.Calculator
	hub       Notifier
	geocoder  geocode.Resolver
	cache     LocationCache
	dispatch  events.Dispatcher
	logger    *zap.Logger

	maxSpeedKmh float64
	now         func() time.Time
}

// WorkflowDependencies bundles collaborators for the coordinator.
type WorkflowDependencies struct {
	TicketRepo   repository.TicketRepository
	HistoryRepo  repository.TicketHistoryRepository
	VisitRepo    repository.OnsiteVisitRepository
	ContactRepo  repository.CustomerContactRepository
	Validator    *location.Validator
	SlaCalc      *sla.Calculator
	Hub          Notifier
	Geocoder     geocode.Resolver
	Cache        LocationCache
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
	MaxSpeedKmh  float64
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	CustomerID  string
	AssetID     *string
	ZoneID      *string
	OwnerID     string
	SubOwnerID  *string
	AssigneeID  *string
	Title       string
	Description string
	Priority    domain.TicketPriority
}

// TransitionInput describes a status-change request.
type TransitionInput struct {
	TicketID        string
	RequestedStatus domain.TicketStatus
	Note            *string
	Sample          *location.Sample
}

// TransitionResult is returned on a committed transition.
type TransitionResult struct {
	Ticket   *domain.Ticket
	History  *domain.TicketStatusHistory
	Warnings []string
}

// NewWorkflowService constructs the coordinator.
func NewWorkflowService(deps WorkflowDependencies) *WorkflowService {
	maxSpeed := deps.MaxSpeedKmh
	if maxSpeed <= 0 {
		maxSpeed = location.DefaultMaxSpeedKmh
	}
	return &WorkflowService{
		tickets:     deps.TicketRepo,
		history:     deps.HistoryRepo,
		visits:      deps.VisitRepo,
		contacts:    deps.ContactRepo,
		validator:   deps.Validator,
		slaCalc:     deps.SlaCalc,
		hub:         deps.Hub,
		geocoder:    deps.Geocoder,
		cache:       deps.Cache,
		dispatch:    deps.Dispatcher,
		logger:      deps.Logger,
		maxSpeedKmh: maxSpeed,
		now:         time.Now,
	}
}

// CreateTicket opens a ticket with its SLA deadline already computed.
func (s *WorkflowService) CreateTicket(ctx context.Context, actor domain.Actor, input TicketCreateInput) (*domain.Ticket, error) {
	if input.CustomerID == "" || strings.TrimSpace(input.Title) == "" {
		return nil, apperrors.NewValidationError("customer_id and title required", nil)
	}
	if input.Priority == "" {
		input.Priority = domain.TicketPriorityMedium
	}
	if _, ok := sla.Allotments[input.Priority]; !ok {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": input.Priority})
	}

	now := s.now()
	dueAt := s.slaCalc.ComputeDueAt(now, input.Priority)
	ownerID := input.OwnerID
	if ownerID == "" {
		ownerID = actor.UserID
	}

	ticket := &domain.Ticket{
		ExternalKey: generateTicketKey(),
		CustomerID:  input.CustomerID,
		AssetID:     input.AssetID,
		ZoneID:      input.ZoneID,
		OwnerID:     ownerID,
		SubOwnerID:  input.SubOwnerID,
		AssigneeID:  input.AssigneeID,
		CreatorID:   actor.UserID,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Status:      domain.TicketStatusOpen,
		Priority:    input.Priority,
		SlaDueAt:    &dueAt,
		SlaStatus:   domain.SlaStatusOnTime,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.NewPersistenceError("ticket", err)
	}
	return ticket, nil
}

// RequestTransition runs the transition pipeline as one unit of work. Writes
// happen only after the legality and location gates pass; the conditional
// status write serializes concurrent requests for the same ticket.
func (s *WorkflowService) RequestTransition(ctx context.Context, actor domain.Actor, input TransitionInput) (*TransitionResult, error) {
	ticket, err := s.tickets.GetByID(ctx, input.TicketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": input.TicketID})
		}
		return nil, apperrors.MapError(err)
	}

	if ticket.Status == input.RequestedStatus {
		latest, histErr := s.history.GetLatest(ctx, ticket.ID)
		if histErr == nil && latest != nil && latest.Status == input.RequestedStatus {
			return nil, apperrors.NewValidationError("duplicate transition request already committed", map[string]any{
				"ticket_id": ticket.ID,
				"status":    input.RequestedStatus,
			})
		}
		return nil, apperrors.NewValidationError(fmt.Sprintf("ticket already in status %s", ticket.Status), nil)
	}

	decision := workflow.CanTransition(ticket.Status, input.RequestedStatus)
	if !decision.Allowed {
		return nil, apperrors.NewValidationError(decision.Reason, map[string]any{
			"current":   ticket.Status,
			"requested": input.RequestedStatus,
		})
	}

	var warnings []string
	var visit *domain.OnsiteVisitLog
	if input.RequestedStatus.IsOnsiteMilestone() {
		visit, warnings, err = s.gateOnsiteSample(ctx, ticket, actor, input)
		if err != nil {
			return nil, err
		}
	}

	now := s.now()
	note := buildNote(input.Note, warnings)
	entry := &domain.TicketStatusHistory{
		TicketID:          ticket.ID,
		Status:            input.RequestedStatus,
		PreviousStatus:    ticket.Status,
		ChangedByID:       actor.UserID,
		Note:              note,
		TimeInPreviousSec: int64(now.Sub(ticket.LastStatusChange).Seconds()),
		TotalOpenSec:      int64(now.Sub(ticket.CreatedAt).Seconds()),
	}
	write := s.buildStatusWrite(ticket, input.RequestedStatus, note, now, entry)

	if err := s.tickets.ApplyTransition(ctx, ticket.ID, write, entry, visit); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil, apperrors.NewConflict("ticket status changed concurrently; reload and retry", map[string]any{
				"ticket_id": ticket.ID,
			})
		}
		return nil, apperrors.NewPersistenceError("status transition", err)
	}

	// Committed. From here on, failures must not undo the transition.
	s.applyWriteInMemory(ticket, write, now)
	if visit != nil && s.cache != nil {
		if cacheErr := s.cache.SetLastLocation(ctx, ticket.ID, persistence.CachedLocation{
			Latitude:  visit.Latitude,
			Longitude: visit.Longitude,
			Timestamp: input.Sample.Timestamp,
		}); cacheErr != nil {
			s.logger.Debug("location cache update failed", zap.Error(cacheErr))
		}
	}

	if err := s.recomputeSla(ctx, ticket, now); err != nil {
		return nil, err
	}

	s.fanOut(ctx, ticket, entry, actor)
	s.publishEvents(ctx, ticket, entry, visit, actor)

	return &TransitionResult{Ticket: ticket, History: entry, Warnings: warnings}, nil
}

// gateOnsiteSample validates the attached GPS sample for an onsite-visit
// milestone. An unacceptable quality band blocks; everything else proceeds
// with warnings the history note carries.
func (s *WorkflowService) gateOnsiteSample(ctx context.Context, ticket *domain.Ticket, actor domain.Actor, input TransitionInput) (*domain.OnsiteVisitLog, []string, error) {
	if input.Sample == nil {
		return nil, nil, apperrors.NewValidationError("location sample required for onsite-visit milestones", map[string]any{
			"requested": input.RequestedStatus,
		})
	}

	result, err := s.validator.ValidateSample(*input.Sample)
	if err != nil {
		return nil, nil, apperrors.NewValidationError(fmt.Sprintf("invalid location sample: %v", err), nil)
	}
	warnings := append([]string{}, result.Warnings...)
	sample := result.Normalized

	quality := s.validator.QualityScore(sample)
	if !quality.CanAnchorMilestone() {
		return nil, nil, apperrors.NewValidationError(
			fmt.Sprintf("location quality %s (%s); resubmit with a better fix", quality.Band, quality.Description),
			map[string]any{"score": quality.Score},
		)
	}
	if quality.Band != location.BandExcellent {
		warnings = append(warnings, fmt.Sprintf("location quality %s (score %.0f)", quality.Band, quality.Score))
	}

	if previous := s.previousSample(ctx, ticket.ID); previous != nil {
		jump := location.DetectJump(*previous, sample, s.maxSpeedKmh)
		if jump.IsUnrealistic {
			warnings = append(warnings, fmt.Sprintf("location jump: %s", jump.Reason))
		}
	}

	event, ok := domain.VisitEventForStatus(input.RequestedStatus)
	if !ok {
		return nil, nil, apperrors.NewValidationError("status is not an onsite-visit milestone", nil)
	}

	address := s.resolveAddress(ctx, sample.Latitude, sample.Longitude)
	return &domain.OnsiteVisitLog{
		TicketID:  ticket.ID,
		UserID:    actor.UserID,
		Event:     event,
		Latitude:  sample.Latitude,
		Longitude: sample.Longitude,
		Address:   &address,
	}, warnings, nil
}

// previousSample prefers the redis cache and falls back to the visit log.
func (s *WorkflowService) previousSample(ctx context.Context, ticketID string) *location.Sample {
	if s.cache != nil {
		if cached, err := s.cache.GetLastLocation(ctx, ticketID); err == nil && cached != nil {
			return &location.Sample{
				Latitude:  cached.Latitude,
				Longitude: cached.Longitude,
				Timestamp: cached.Timestamp,
			}
		}
	}
	last, err := s.visits.GetLatestByTicket(ctx, ticketID)
	if err != nil || last == nil {
		return nil
	}
	return &location.Sample{
		Latitude:  last.Latitude,
		Longitude: last.Longitude,
		Timestamp: last.CreatedAt,
	}
}

func (s *WorkflowService) resolveAddress(ctx context.Context, latitude, longitude float64) string {
	if s.geocoder == nil {
		return geocode.FallbackAddress(latitude, longitude)
	}
	address, err := s.geocoder.ReverseGeocode(ctx, latitude, longitude)
	if err != nil {
		s.logger.Debug("reverse geocoding degraded to coordinates", zap.Error(err))
		return geocode.FallbackAddress(latitude, longitude)
	}
	return address
}

func (s *WorkflowService) buildStatusWrite(ticket *domain.Ticket, requested domain.TicketStatus, note *string, now time.Time, entry *domain.TicketStatusHistory) repository.StatusWrite {
	write := repository.StatusWrite{
		ExpectedStatus:   ticket.Status,
		NewStatus:        requested,
		LastStatusChange: now,
		TimeInStatusSec:  entry.TimeInPreviousSec,
		TotalOpenSec:     entry.TotalOpenSec,
		ClosedAt:         ticket.ClosedAt,
	}

	switch requested {
	case domain.TicketStatusOnsiteVisitStarted:
		write.VisitStartedAt = &now
	case domain.TicketStatusOnsiteVisitReached:
		write.VisitReachedAt = &now
	case domain.TicketStatusOnsiteVisitResolved:
		write.VisitResolvedAt = &now
	case domain.TicketStatusResolved:
		write.ResolvedAt = &now
	case domain.TicketStatusClosed:
		write.ClosedAt = &now
	case domain.TicketStatusEscalated:
		escalated := true
		write.Escalated = &escalated
		write.EscalationReason = note
	case domain.TicketStatusReopened:
		write.ClosedAt = nil
		write.ClearResolution = true
		escalated := false
		write.Escalated = &escalated
	}
	return write
}

func (s *WorkflowService) applyWriteInMemory(ticket *domain.Ticket, write repository.StatusWrite, now time.Time) {
	ticket.Status = write.NewStatus
	ticket.LastStatusChange = write.LastStatusChange
	ticket.TimeInStatusSec = write.TimeInStatusSec
	ticket.TotalOpenSec = write.TotalOpenSec
	ticket.UpdatedAt = now
	ticket.ClosedAt = write.ClosedAt
	if write.ClearResolution {
		ticket.ResolvedAt = nil
	} else if write.ResolvedAt != nil {
		ticket.ResolvedAt = write.ResolvedAt
	}
	if write.Escalated != nil {
		ticket.Escalated = *write.Escalated
		ticket.EscalationReason = write.EscalationReason
	}
	if write.VisitStartedAt != nil {
		ticket.VisitStartedAt = write.VisitStartedAt
	}
	if write.VisitReachedAt != nil {
		ticket.VisitReachedAt = write.VisitReachedAt
	}
	if write.VisitResolvedAt != nil {
		ticket.VisitResolvedAt = write.VisitResolvedAt
	}
}

func (s *WorkflowService) recomputeSla(ctx context.Context, ticket *domain.Ticket, now time.Time) error {
	oldSlaStatus := ticket.SlaStatus
	if ticket.SlaDueAt == nil {
		dueAt := s.slaCalc.ComputeDueAt(ticket.CreatedAt, ticket.Priority)
		ticket.SlaDueAt = &dueAt
	}
	newSlaStatus := s.slaCalc.ComputeBreach(ticket, now)
	if err := s.tickets.UpdateSla(ctx, ticket.ID, ticket.SlaDueAt, newSlaStatus); err != nil {
		// The transition itself is committed; only the SLA refresh failed.
		return apperrors.NewPersistenceError("sla status", err)
	}
	ticket.SlaStatus = newSlaStatus

	if newSlaStatus != oldSlaStatus && s.dispatch != nil {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventSlaStatusChanged,
			TicketID: ticket.ID,
			Payload: events.SlaStatusChangedPayload{
				OldSlaStatus: oldSlaStatus,
				NewSlaStatus: newSlaStatus,
				DueAt:        ticket.SlaDueAt,
			},
		})
	}
	return nil
}

// fanOut computes the recipient set and hands envelopes to the hub. The
// triggering actor never receives their own notification.
func (s *WorkflowService) fanOut(ctx context.Context, ticket *domain.Ticket, entry *domain.TicketStatusHistory, actor domain.Actor) {
	recipients := s.recipientSet(ctx, ticket, actor)
	if len(recipients) == 0 {
		return
	}

	template := domain.Notification{
		Title:   fmt.Sprintf("Ticket %s: %s", ticket.ExternalKey, entry.Status),
		Message: fmt.Sprintf("Status changed from %s to %s", entry.PreviousStatus, entry.Status),
		Type:    domain.NotificationTypeStatusChange,
		Data: map[string]any{
			"ticket_id":       ticket.ID,
			"external_key":    ticket.ExternalKey,
			"previous_status": entry.PreviousStatus,
			"status":          entry.Status,
		},
	}
	if entry.Status == domain.TicketStatusAssigned {
		template.Type = domain.NotificationTypeAssignment
	}
	if entry.Status == domain.TicketStatusEscalated {
		template.Type = domain.NotificationTypeEscalation
	}
	s.hub.Broadcast(ctx, recipients, template)
}

func (s *WorkflowService) recipientSet(ctx context.Context, ticket *domain.Ticket, actor domain.Actor) []string {
	seen := map[string]struct{}{actor.UserID: {}}
	recipients := make([]string, 0, 6)
	add := func(userID string) {
		if userID == "" {
			return
		}
		if _, dup := seen[userID]; dup {
			return
		}
		seen[userID] = struct{}{}
		recipients = append(recipients, userID)
	}

	if ticket.AssigneeID != nil {
		add(*ticket.AssigneeID)
	}
	add(ticket.OwnerID)
	if ticket.SubOwnerID != nil {
		add(*ticket.SubOwnerID)
	}
	add(ticket.CreatorID)

	if _, visible := customerVisibleStatuses[ticket.Status]; visible && s.contacts != nil {
		contacts, err := s.contacts.ListByCustomer(ctx, ticket.CustomerID)
		if err != nil {
			s.logger.Warn("customer contact lookup failed", zap.Error(err))
		} else {
			for _, contact := range contacts {
				add(contact.UserID)
			}
		}
	}
	return recipients
}

func (s *WorkflowService) publishEvents(ctx context.Context, ticket *domain.Ticket, entry *domain.TicketStatusHistory, visit *domain.OnsiteVisitLog, actor domain.Actor) {
	note := ""
	if entry.Note != nil {
		note = *entry.Note
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		ActorID:  actor.UserID,
		Payload: events.StatusChangedPayload{
			OldStatus: entry.PreviousStatus,
			NewStatus: entry.Status,
			Note:      note,
		},
	})
	if entry.Status == domain.TicketStatusEscalated {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketEscalated,
			TicketID: ticket.ID,
			ActorID:  actor.UserID,
			Payload:  events.EscalatedPayload{Reason: note},
		})
	}
	if visit != nil {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventOnsiteVisitLogged,
			TicketID: ticket.ID,
			ActorID:  actor.UserID,
			Payload: events.OnsiteVisitLoggedPayload{
				Event:     visit.Event,
				Latitude:  visit.Latitude,
				Longitude: visit.Longitude,
				Address:   visit.Address,
			},
		})
	}
}

func (s *WorkflowService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatch == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatch.Publish(ctx, event)
}

// ListHistory returns the audit trail for a ticket.
func (s *WorkflowService) ListHistory(ctx context.Context, ticketID string, limit, offset int) ([]domain.TicketStatusHistory, error) {
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return s.history.ListByTicket(ctx, ticketID, limit, offset)
}

// GetTicket loads a single ticket.
func (s *WorkflowService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func buildNote(note *string, warnings []string) *string {
	parts := make([]string, 0, 1+len(warnings))
	if note != nil && strings.TrimSpace(*note) != "" {
		parts = append(parts, strings.TrimSpace(*note))
	}
	parts = append(parts, warnings...)
	if len(parts) == 0 {
		return nil
	}
	joined := strings.Join(parts, "; ")
	return &joined
}

func generateTicketKey() string {
	return "TKT-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
