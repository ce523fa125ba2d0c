package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldserve/workflow-service/internal/domain"
)

// TicketHistoryRepository stores the append-only status audit trail.
type TicketHistoryRepository interface {
	Create(ctx context.Context, entry *domain.TicketStatusHistory) error
	ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.TicketStatusHistory, error)
	// GetLatest returns the most recent entry for a ticket, or nil when the
	// ticket has no transitions yet.
	GetLatest(ctx context.Context, ticketID string) (*domain.TicketStatusHistory, error)
}

type ticketHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewTicketHistoryRepository builds repository.
func NewTicketHistoryRepository(pool *pgxpool.Pool) TicketHistoryRepository {
	return &ticketHistoryRepository{pool: pool}
}

func (r *ticketHistoryRepository) Create(ctx context.Context, entry *domain.TicketStatusHistory) error {
	const query = `
        INSERT INTO ticket_status_history (ticket_id, status, previous_status, changed_by_id, note,
            time_in_previous_sec, total_open_sec)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		entry.TicketID,
		entry.Status,
		entry.PreviousStatus,
		entry.ChangedByID,
		entry.Note,
		entry.TimeInPreviousSec,
		entry.TotalOpenSec,
	).Scan(&entry.ID, &entry.CreatedAt)
}

const historyColumns = `id, ticket_id, status, previous_status, changed_by_id, note,
       time_in_previous_sec, total_open_sec, created_at`

func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.TicketStatusHistory, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + historyColumns + `
        FROM ticket_status_history WHERE ticket_id=$1
        ORDER BY created_at ASC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, ticketID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketStatusHistory
	for rows.Next() {
		var entry domain.TicketStatusHistory
		if err := scanHistory(rows, &entry); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func (r *ticketHistoryRepository) GetLatest(ctx context.Context, ticketID string) (*domain.TicketStatusHistory, error) {
	query := `SELECT ` + historyColumns + `
        FROM ticket_status_history WHERE ticket_id=$1
        ORDER BY created_at DESC LIMIT 1`
	var entry domain.TicketStatusHistory
	row := r.pool.QueryRow(ctx, query, ticketID)
	if err := row.Scan(
		&entry.ID,
		&entry.TicketID,
		&entry.Status,
		&entry.PreviousStatus,
		&entry.ChangedByID,
		&entry.Note,
		&entry.TimeInPreviousSec,
		&entry.TotalOpenSec,
		&entry.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func scanHistory(rows pgx.Rows, entry *domain.TicketStatusHistory) error {
	return rows.Scan(
		&entry.ID,
		&entry.TicketID,
		&entry.Status,
		&entry.PreviousStatus,
		&entry.ChangedByID,
		&entry.Note,
		&entry.TimeInPreviousSec,
		&entry.TotalOpenSec,
		&entry.CreatedAt,
	)
}
