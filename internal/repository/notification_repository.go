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

// ErrReadStateBackward is returned when a lifecycle update would move a
// notification backward (READ -> UNREAD, ARCHIVED -> anything).
var ErrReadStateBackward = fmt.Errorf("notification read-state cannot move backward")

// NotificationFilter captures listing parameters.
type NotificationFilter struct {
	Status *domain.NotificationStatus
	Limit  int
	Offset int
}

// NotificationRepository stores durable notification records.
type NotificationRepository interface {
	Create(ctx context.Context, notification *domain.Notification) error
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	ListByUser(ctx context.Context, userID string, filter NotificationFilter) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id, userID string, readAt time.Time) error
	Archive(ctx context.Context, id, userID string) error
	CountUnread(ctx context.Context, userID string) (int64, error)
}

type notificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository builds repository.
func NewNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &notificationRepository{pool: pool}
}

const notificationColumns = `id, user_id, title, message, type, status, data, read_at, created_at, updated_at`

func (r *notificationRepository) Create(ctx context.Context, notification *domain.Notification) error {
	const query = `
        INSERT INTO notifications (user_id, title, message, type, status, data)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	if notification.Status == "" {
		notification.Status = domain.NotificationStatusUnread
	}
	return r.pool.QueryRow(ctx, query,
		notification.UserID,
		notification.Title,
		notification.Message,
		notification.Type,
		notification.Status,
		notification.Data,
	).Scan(&notification.ID, &notification.CreatedAt, &notification.UpdatedAt)
}

func (r *notificationRepository) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id=$1`
	var n domain.Notification
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.Status, &n.Data,
		&n.ReadAt, &n.CreatedAt, &n.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID string, filter NotificationFilter) ([]domain.Notification, error) {
	clauses := []string{"user_id=$1"}
	args := []any{userID}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM notifications WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		notificationColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(
			&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.Status, &n.Data,
			&n.ReadAt, &n.CreatedAt, &n.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

func (r *notificationRepository) MarkRead(ctx context.Context, id, userID string, readAt time.Time) error {
	const query = `
        UPDATE notifications SET status=$1, read_at=$2, updated_at=NOW()
        WHERE id=$3 AND user_id=$4 AND status=$5`
	cmd, err := r.pool.Exec(ctx, query,
		domain.NotificationStatusRead, readAt, id, userID, domain.NotificationStatusUnread)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return r.lifecycleMiss(ctx, id)
	}
	return nil
}

func (r *notificationRepository) Archive(ctx context.Context, id, userID string) error {
	const query = `
        UPDATE notifications SET status=$1, updated_at=NOW()
        WHERE id=$2 AND user_id=$3 AND status IN ($4,$5)`
	cmd, err := r.pool.Exec(ctx, query,
		domain.NotificationStatusArchived, id, userID,
		domain.NotificationStatusUnread, domain.NotificationStatusRead)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return r.lifecycleMiss(ctx, id)
	}
	return nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	const query = `SELECT COUNT(*) FROM notifications WHERE user_id=$1 AND status=$2`
	var count int64
	err := r.pool.QueryRow(ctx, query, userID, domain.NotificationStatusUnread).Scan(&count)
	return count, err
}

// lifecycleMiss distinguishes a missing row from a forbidden backward move.
func (r *notificationRepository) lifecycleMiss(ctx context.Context, id string) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return pgx.ErrNoRows
	}
	return ErrReadStateBackward
}
