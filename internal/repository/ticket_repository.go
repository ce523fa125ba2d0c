package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldserve/workflow-service/internal/domain"
)

// ErrStaleStatus is returned when a conditional status write matched no row:
// another request committed a transition between our read and our write.
var ErrStaleStatus = fmt.Errorf("ticket status changed concurrently")

// StatusWrite carries the bookkeeping persisted together with a transition.
type StatusWrite struct {
	ExpectedStatus   domain.TicketStatus
	NewStatus        domain.TicketStatus
	LastStatusChange time.Time
	TimeInStatusSec  int64
	TotalOpenSec     int64
	Escalated        *bool
	EscalationReason *string
	ResolvedAt       *time.Time
	ClearResolution  bool
	ClosedAt         *time.Time
	VisitStartedAt   *time.Time
	VisitReachedAt   *time.Time
	VisitResolvedAt  *time.Time
}

// TicketFilter captures listing parameters for the SLA monitor and queries.
type TicketFilter struct {
	Statuses   []domain.TicketStatus
	SlaStatus  *domain.SlaStatus
	CustomerID *string
	AssigneeID *string
	Limit      int
	Offset     int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// ApplyTransition commits a status change in one transaction: the
	// conditional ticket update keyed on the expected prior status, the
	// append-only history row, and the optional onsite visit log. Returns
	// ErrStaleStatus when the guard misses; nothing is written in that case.
	ApplyTransition(ctx context.Context, ticketID string, write StatusWrite, entry *domain.TicketStatusHistory, visit *domain.OnsiteVisitLog) error
	UpdateSla(ctx context.Context, ticketID string, dueAt *time.Time, status domain.SlaStatus) error
	SetEscalation(ctx context.Context, ticketID string, escalated bool, reason *string) error
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	ListOpenForSlaSweep(ctx context.Context, limit int) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, external_key, customer_id, asset_id, zone_id, owner_id, sub_owner_id,
       assignee_id, creator_id, title, description, status, priority, sla_due_at, sla_status,
       escalated, escalation_reason, visit_started_at, visit_reached_at, visit_resolved_at,
       location_history, last_status_change, time_in_status_sec, total_open_sec,
       created_at, updated_at, resolved_at, closed_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (external_key, customer_id, asset_id, zone_id, owner_id, sub_owner_id,
            assignee_id, creator_id, title, description, status, priority, sla_due_at, sla_status,
            location_history, last_status_change)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,NOW())
        RETURNING id, created_at, updated_at, last_status_change`
	return r.pool.QueryRow(ctx, query,
		ticket.ExternalKey,
		ticket.CustomerID,
		ticket.AssetID,
		ticket.ZoneID,
		ticket.OwnerID,
		ticket.SubOwnerID,
		ticket.AssigneeID,
		ticket.CreatorID,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.SlaDueAt,
		ticket.SlaStatus,
		ticket.LocationHistory,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt, &ticket.LastStatusChange)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) ApplyTransition(ctx context.Context, ticketID string, write StatusWrite, entry *domain.TicketStatusHistory, visit *domain.OnsiteVisitLog) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const updateQuery = `
        UPDATE tickets SET status=$1, last_status_change=$2, time_in_status_sec=$3, total_open_sec=$4,
            escalated=COALESCE($5, escalated),
            escalation_reason=CASE WHEN $5 IS NOT NULL THEN $6 ELSE escalation_reason END,
            resolved_at=CASE WHEN $14 THEN NULL ELSE COALESCE($7, resolved_at) END,
            closed_at=$8,
            visit_started_at=COALESCE($9, visit_started_at),
            visit_reached_at=COALESCE($10, visit_reached_at),
            visit_resolved_at=COALESCE($11, visit_resolved_at),
            updated_at=NOW()
        WHERE id=$12 AND status=$13`
	cmd, err := tx.Exec(ctx, updateQuery,
		write.NewStatus,
		write.LastStatusChange,
		write.TimeInStatusSec,
		write.TotalOpenSec,
		write.Escalated,
		write.EscalationReason,
		write.ResolvedAt,
		write.ClosedAt,
		write.VisitStartedAt,
		write.VisitReachedAt,
		write.VisitResolvedAt,
		ticketID,
		write.ExpectedStatus,
		write.ClearResolution,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrStaleStatus
	}

	const historyQuery = `
        INSERT INTO ticket_status_history (ticket_id, status, previous_status, changed_by_id, note,
            time_in_previous_sec, total_open_sec)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at`
	if err := tx.QueryRow(ctx, historyQuery,
		entry.TicketID,
		entry.Status,
		entry.PreviousStatus,
		entry.ChangedByID,
		entry.Note,
		entry.TimeInPreviousSec,
		entry.TotalOpenSec,
	).Scan(&entry.ID, &entry.CreatedAt); err != nil {
		return err
	}

	if visit != nil {
		const visitQuery = `
            INSERT INTO onsite_visit_logs (ticket_id, user_id, event, latitude, longitude, address)
            VALUES ($1,$2,$3,ROUND($4::numeric,7),ROUND($5::numeric,7),$6)
            RETURNING id, created_at`
		if err := tx.QueryRow(ctx, visitQuery,
			visit.TicketID,
			visit.UserID,
			visit.Event,
			visit.Latitude,
			visit.Longitude,
			visit.Address,
		).Scan(&visit.ID, &visit.CreatedAt); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *ticketRepository) UpdateSla(ctx context.Context, ticketID string, dueAt *time.Time, status domain.SlaStatus) error {
	const query = `UPDATE tickets SET sla_due_at=$1, sla_status=$2, updated_at=NOW() WHERE id=$3`
	cmd, err := r.pool.Exec(ctx, query, dueAt, status, ticketID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) SetEscalation(ctx context.Context, ticketID string, escalated bool, reason *string) error {
	const query = `UPDATE tickets SET escalated=$1, escalation_reason=$2, updated_at=NOW() WHERE id=$3`
	cmd, err := r.pool.Exec(ctx, query, escalated, reason, ticketID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := fmt.Sprintf(`SELECT %s FROM tickets`, ticketColumns)
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.SlaStatus != nil {
		args = append(args, *filter.SlaStatus)
		clauses = append(clauses, fmt.Sprintf("sla_status=$%d", len(args)))
	}
	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		clauses = append(clauses, fmt.Sprintf("customer_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assignee_id=$%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListOpenForSlaSweep(ctx context.Context, limit int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 500
	}
	query := fmt.Sprintf(`SELECT %s FROM tickets
        WHERE status NOT IN ('CLOSED','CANCELLED') AND sla_due_at IS NOT NULL
        ORDER BY sla_due_at ASC LIMIT %d`, ticketColumns, limit)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, arg).Scan(ticketScanTargets(&ticket)...); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func ticketScanTargets(ticket *domain.Ticket) []any {
	return []any{
		&ticket.ID,
		&ticket.ExternalKey,
		&ticket.CustomerID,
		&ticket.AssetID,
		&ticket.ZoneID,
		&ticket.OwnerID,
		&ticket.SubOwnerID,
		&ticket.AssigneeID,
		&ticket.CreatorID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.SlaDueAt,
		&ticket.SlaStatus,
		&ticket.Escalated,
		&ticket.EscalationReason,
		&ticket.VisitStartedAt,
		&ticket.VisitReachedAt,
		&ticket.VisitResolvedAt,
		&ticket.LocationHistory,
		&ticket.LastStatusChange,
		&ticket.TimeInStatusSec,
		&ticket.TotalOpenSec,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ResolvedAt,
		&ticket.ClosedAt,
	}
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(ticketScanTargets(&ticket)...); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
