package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fieldserve/workflow-service/internal/domain"
	"github.com/fieldserve/workflow-service/internal/events"
	"github.com/fieldserve/workflow-service/internal/repository"
	"github.com/fieldserve/workflow-service/internal/sla"
)

const defaultSweepBatch = 500

// Sender delivers a notification durably, with a best-effort live push.
type Sender interface {
	Send(ctx context.Context, notification *domain.Notification) error
}

// SlaMonitor periodically re-evaluates open tickets against their deadlines.
// Transitions themselves also refresh SLA state; the sweep catches tickets
// that breach while nobody touches them.
type SlaMonitor struct {
	tickets   repository.TicketRepository
	calc      *sla.Calculator
	sender    Sender
	dispatch  events.Dispatcher
	logger    *zap.Logger
	cron      *cron.Cron
	spec      string
	batchSize int
	now       func() time.Time
}

// NewSlaMonitor constructs the monitor. spec is a cron expression or an
// @every duration.
func NewSlaMonitor(tickets repository.TicketRepository, calc *sla.Calculator, sender Sender, dispatch events.Dispatcher, logger *zap.Logger, spec string) *SlaMonitor {
	if spec == "" {
		spec = "@every 5m"
	}
	return &SlaMonitor{
		tickets:   tickets,
		calc:      calc,
		sender:    sender,
		dispatch:  dispatch,
		logger:    logger,
		cron:      cron.New(),
		spec:      spec,
		batchSize: defaultSweepBatch,
		now:       time.Now,
	}
}

// Start schedules the sweep and runs one immediately in the background.
func (m *SlaMonitor) Start(ctx context.Context) error {
	if _, err := m.cron.AddFunc(m.spec, func() { m.Sweep(ctx) }); err != nil {
		return fmt.Errorf("invalid sla monitor schedule %q: %w", m.spec, err)
	}
	m.cron.Start()
	go m.Sweep(ctx)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (m *SlaMonitor) Stop() {
	<-m.cron.Stop().Done()
}

// Sweep re-evaluates all open tickets once.
func (m *SlaMonitor) Sweep(ctx context.Context) {
	tickets, err := m.tickets.ListOpenForSlaSweep(ctx, m.batchSize)
	if err != nil {
		m.logger.Error("sla sweep listing failed", zap.Error(err))
		return
	}

	now := m.now()
	changed := 0
	for i := range tickets {
		if m.evaluate(ctx, &tickets[i], now) {
			changed++
		}
	}
	if changed > 0 {
		m.logger.Info("sla sweep complete",
			zap.Int("evaluated", len(tickets)),
			zap.Int("changed", changed))
	}
}

func (m *SlaMonitor) evaluate(ctx context.Context, ticket *domain.Ticket, now time.Time) bool {
	oldStatus := ticket.SlaStatus
	newStatus := m.calc.ComputeBreach(ticket, now)
	if newStatus == oldStatus {
		return false
	}

	if err := m.tickets.UpdateSla(ctx, ticket.ID, ticket.SlaDueAt, newStatus); err != nil {
		m.logger.Error("sla status update failed",
			zap.String("ticket_id", ticket.ID), zap.Error(err))
		return false
	}
	ticket.SlaStatus = newStatus

	if newStatus == domain.SlaStatusBreached && !ticket.Escalated {
		reason := fmt.Sprintf("SLA breached for %s priority", ticket.Priority)
		if err := m.tickets.SetEscalation(ctx, ticket.ID, true, &reason); err != nil {
			m.logger.Error("sla escalation failed",
				zap.String("ticket_id", ticket.ID), zap.Error(err))
		} else {
			ticket.Escalated = true
			ticket.EscalationReason = &reason
		}
	}

	m.notify(ctx, ticket, newStatus)
	if m.dispatch != nil {
		_ = m.dispatch.Publish(ctx, events.Event{
			ID:        ticket.ID + ":" + string(newStatus),
			Type:      events.EventSlaStatusChanged,
			TicketID:  ticket.ID,
			Timestamp: now,
			Payload: events.SlaStatusChangedPayload{
				OldSlaStatus: oldStatus,
				NewSlaStatus: newStatus,
				DueAt:        ticket.SlaDueAt,
			},
		})
	}
	return true
}

func (m *SlaMonitor) notify(ctx context.Context, ticket *domain.Ticket, status domain.SlaStatus) {
	if m.sender == nil {
		return
	}

	notificationType := domain.NotificationTypeSlaWarning
	title := fmt.Sprintf("Ticket %s is at risk of missing its SLA", ticket.ExternalKey)
	if status == domain.SlaStatusBreached {
		notificationType = domain.NotificationTypeSlaBreach
		title = fmt.Sprintf("Ticket %s breached its SLA", ticket.ExternalKey)
	} else if status != domain.SlaStatusAtRisk {
		return
	}

	recipients := make([]string, 0, 2)
	if ticket.AssigneeID != nil && *ticket.AssigneeID != "" {
		recipients = append(recipients, *ticket.AssigneeID)
	}
	if ticket.OwnerID != "" && (ticket.AssigneeID == nil || ticket.OwnerID != *ticket.AssigneeID) {
		recipients = append(recipients, ticket.OwnerID)
	}

	for _, userID := range recipients {
		notification := &domain.Notification{
			UserID:  userID,
			Title:   title,
			Message: fmt.Sprintf("Priority %s, due %s", ticket.Priority, dueLabel(ticket.SlaDueAt)),
			Type:    notificationType,
			Data: map[string]any{
				"ticket_id":    ticket.ID,
				"external_key": ticket.ExternalKey,
				"sla_status":   status,
			},
		}
		if err := m.sender.Send(ctx, notification); err != nil {
			m.logger.Warn("sla notification failed",
				zap.String("ticket_id", ticket.ID),
				zap.String("user_id", userID),
				zap.Error(err))
		}
	}
}

func dueLabel(dueAt *time.Time) string {
	if dueAt == nil {
		return "unscheduled"
	}
	return dueAt.Format(time.RFC3339)
}

type handlerRegistrar interface {
	RegisterHandlers()
}

// StartNotificationWorker wires event-driven side channels.
func StartNotificationWorker(registrar handlerRegistrar) {
	if registrar == nil {
		return
	}
	registrar.RegisterHandlers()
}
