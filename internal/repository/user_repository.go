package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldserve/workflow-service/internal/domain"
)

// UserRepository reads the account directory projection. The workflow engine
// never writes users; identity management is an external collaborator.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// CustomerContactRepository lists registered contacts for fan-out.
type CustomerContactRepository interface {
	ListByCustomer(ctx context.Context, customerID string) ([]domain.CustomerContact, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository builds repository.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `
        SELECT id, name, email, role, status, created_at, updated_at
        FROM users WHERE id=$1`
	var user domain.User
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Name, &user.Email, &user.Role, &user.Status,
		&user.CreatedAt, &user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

type customerContactRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerContactRepository builds repository.
func NewCustomerContactRepository(pool *pgxpool.Pool) CustomerContactRepository {
	return &customerContactRepository{pool: pool}
}

func (r *customerContactRepository) ListByCustomer(ctx context.Context, customerID string) ([]domain.CustomerContact, error) {
	const query = `
        SELECT id, customer_id, user_id, name, email, phone, is_primary
        FROM customer_contacts WHERE customer_id=$1 ORDER BY is_primary DESC, name ASC`
	rows, err := r.pool.Query(ctx, query, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.CustomerContact
	for rows.Next() {
		var contact domain.CustomerContact
		if err := rows.Scan(
			&contact.ID, &contact.CustomerID, &contact.UserID, &contact.Name,
			&contact.Email, &contact.Phone, &contact.IsPrimary,
		); err != nil {
			return nil, err
		}
		result = append(result, contact)
	}
	return result, rows.Err()
}
