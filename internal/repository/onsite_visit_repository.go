package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldserve/workflow-service/internal/domain"
)

// OnsiteVisitRepository stores append-only visit location logs. Coordinates
// are persisted as 7-decimal fixed point.
type OnsiteVisitRepository interface {
	Create(ctx context.Context, log *domain.OnsiteVisitLog) error
	GetLatestByTicket(ctx context.Context, ticketID string) (*domain.OnsiteVisitLog, error)
	ListByTicket(ctx context.Context, ticketID string, limit int) ([]domain.OnsiteVisitLog, error)
}

type onsiteVisitRepository struct {
	pool *pgxpool.Pool
}

// NewOnsiteVisitRepository builds repository.
func NewOnsiteVisitRepository(pool *pgxpool.Pool) OnsiteVisitRepository {
	return &onsiteVisitRepository{pool: pool}
}

func (r *onsiteVisitRepository) Create(ctx context.Context, log *domain.OnsiteVisitLog) error {
	const query = `
        INSERT INTO onsite_visit_logs (ticket_id, user_id, event, latitude, longitude, address)
        VALUES ($1,$2,$3,ROUND($4::numeric,7),ROUND($5::numeric,7),$6)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		log.TicketID,
		log.UserID,
		log.Event,
		log.Latitude,
		log.Longitude,
		log.Address,
	).Scan(&log.ID, &log.CreatedAt)
}

const visitColumns = `id, ticket_id, user_id, event, latitude, longitude, address, created_at`

func (r *onsiteVisitRepository) GetLatestByTicket(ctx context.Context, ticketID string) (*domain.OnsiteVisitLog, error) {
	query := `SELECT ` + visitColumns + `
        FROM onsite_visit_logs WHERE ticket_id=$1
        ORDER BY created_at DESC LIMIT 1`
	var log domain.OnsiteVisitLog
	if err := r.pool.QueryRow(ctx, query, ticketID).Scan(
		&log.ID, &log.TicketID, &log.UserID, &log.Event,
		&log.Latitude, &log.Longitude, &log.Address, &log.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &log, nil
}

func (r *onsiteVisitRepository) ListByTicket(ctx context.Context, ticketID string, limit int) ([]domain.OnsiteVisitLog, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + visitColumns + `
        FROM onsite_visit_logs WHERE ticket_id=$1
        ORDER BY created_at ASC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, ticketID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.OnsiteVisitLog
	for rows.Next() {
		var log domain.OnsiteVisitLog
		if err := rows.Scan(
			&log.ID, &log.TicketID, &log.UserID, &log.Event,
			&log.Latitude, &log.Longitude, &log.Address, &log.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, log)
	}
	return result, rows.Err()
}
