package worker

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/fieldserve/workflow-service/internal/domain"
	"github.com/fieldserve/workflow-service/internal/repository"
	"github.com/fieldserve/workflow-service/internal/sla"
)

type sweepRepo struct {
	tickets     []domain.Ticket
	slaUpdates  map[string]domain.SlaStatus
	escalations map[string]string
}

func newSweepRepo(tickets ...domain.Ticket) *sweepRepo {
	return &sweepRepo{
		tickets:     tickets,
		slaUpdates:  make(map[string]domain.SlaStatus),
		escalations: make(map[string]string),
	}
}

func (r *sweepRepo) Create(ctx context.Context, ticket *domain.Ticket) error { return nil }

func (r *sweepRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	return nil, nil
}

func (r *sweepRepo) ApplyTransition(ctx context.Context, ticketID string, write repository.StatusWrite, entry *domain.TicketStatusHistory, visit *domain.OnsiteVisitLog) error {
	return nil
}

func (r *sweepRepo) UpdateSla(ctx context.Context, ticketID string, dueAt *time.Time, status domain.SlaStatus) error {
	r.slaUpdates[ticketID] = status
	return nil
}

func (r *sweepRepo) SetEscalation(ctx context.Context, ticketID string, escalated bool, reason *string) error {
	if escalated && reason != nil {
		r.escalations[ticketID] = *reason
	}
	return nil
}

func (r *sweepRepo) ListWithFilter(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	return r.tickets, nil
}

func (r *sweepRepo) ListOpenForSlaSweep(ctx context.Context, limit int) ([]domain.Ticket, error) {
	return r.tickets, nil
}

type recordingSender struct {
	sent []domain.Notification
}

func (s *recordingSender) Send(ctx context.Context, notification *domain.Notification) error {
	s.sent = append(s.sent, *notification)
	return nil
}

func openTicket(id string, priority domain.TicketPriority, dueAt time.Time) domain.Ticket {
	assignee := "eng-1"
	return domain.Ticket{
		ID:          id,
		ExternalKey: "TKT-" + id,
		OwnerID:     "owner-1",
		AssigneeID:  &assignee,
		Status:      domain.TicketStatusInProcess,
		Priority:    priority,
		SlaStatus:   domain.SlaStatusOnTime,
		SlaDueAt:    &dueAt,
		CreatedAt:   dueAt.Add(-8 * time.Hour),
	}
}

func newTestMonitor(repo *sweepRepo, sender *recordingSender, now time.Time) *SlaMonitor {
	monitor := NewSlaMonitor(repo, sla.NewCalculator(time.UTC, 0.2), sender, nil, zap.NewNop(), "")
	monitor.now = func() time.Time { return now }
	return monitor
}

func TestSweepEscalatesBreachedTicket(t *testing.T) {
	// Monday within the business window.
	now := time.Date(2024, time.January, 8, 14, 0, 0, 0, time.UTC)
	ticket := openTicket("t1", domain.TicketPriorityHigh, now.Add(-2*time.Hour))
	repo := newSweepRepo(ticket)
	sender := &recordingSender{}

	newTestMonitor(repo, sender, now).Sweep(context.Background())

	if got := repo.slaUpdates["t1"]; got != domain.SlaStatusBreached {
		t.Fatalf("sla update = %s, want BREACHED", got)
	}
	if _, ok := repo.escalations["t1"]; !ok {
		t.Error("breached ticket should be escalated")
	}
	if len(sender.sent) != 2 {
		t.Fatalf("notifications sent = %d, want 2 (assignee and owner)", len(sender.sent))
	}
	for _, notification := range sender.sent {
		if notification.Type != domain.NotificationTypeSlaBreach {
			t.Errorf("notification type = %s, want SLA_BREACH", notification.Type)
		}
	}
	if sender.sent[0].UserID != "eng-1" || sender.sent[1].UserID != "owner-1" {
		t.Errorf("recipients = %s, %s", sender.sent[0].UserID, sender.sent[1].UserID)
	}
}

func TestSweepWarnsAtRiskWithoutEscalating(t *testing.T) {
	now := time.Date(2024, time.January, 8, 14, 0, 0, 0, time.UTC)
	// One business hour left against an eight-hour allotment.
	ticket := openTicket("t2", domain.TicketPriorityHigh, now.Add(time.Hour))
	repo := newSweepRepo(ticket)
	sender := &recordingSender{}

	newTestMonitor(repo, sender, now).Sweep(context.Background())

	if got := repo.slaUpdates["t2"]; got != domain.SlaStatusAtRisk {
		t.Fatalf("sla update = %s, want AT_RISK", got)
	}
	if len(repo.escalations) != 0 {
		t.Error("at-risk ticket must not be escalated")
	}
	if len(sender.sent) == 0 {
		t.Fatal("expected warning notifications")
	}
	if sender.sent[0].Type != domain.NotificationTypeSlaWarning {
		t.Errorf("notification type = %s, want SLA_WARNING", sender.sent[0].Type)
	}
}

func TestSweepSkipsUnchangedTickets(t *testing.T) {
	now := time.Date(2024, time.January, 8, 10, 0, 0, 0, time.UTC)
	// Due at the end of the week; remaining hours far exceed the threshold.
	ticket := openTicket("t3", domain.TicketPriorityHigh, now.AddDate(0, 0, 4))
	repo := newSweepRepo(ticket)
	sender := &recordingSender{}

	newTestMonitor(repo, sender, now).Sweep(context.Background())

	if len(repo.slaUpdates) != 0 {
		t.Errorf("sla updates = %v, want none", repo.slaUpdates)
	}
	if len(sender.sent) != 0 {
		t.Errorf("notifications = %d, want 0", len(sender.sent))
	}
}
