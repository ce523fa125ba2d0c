package domain

import "time"

// UserRole enumerates roles supplied by the external auth layer.
type UserRole string

const (
	UserRoleAdmin      UserRole = "ADMIN"
	UserRoleDispatcher UserRole = "DISPATCHER"
	UserRoleEngineer   UserRole = "ENGINEER"
	UserRoleViewer     UserRole = "VIEWER"
)

// UserStatus represents lifecycle states for a user account.
type UserStatus string

const (
	UserStatusActive    UserStatus = "ACTIVE"
	UserStatusSuspended UserStatus = "SUSPENDED"
)

// User is a read-only projection of the account directory; the workflow
// engine consumes identities, it does not manage them.
type User struct {
	ID        string
	Name      string
	Email     string
	Role      UserRole
	Status    UserStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CustomerContact is a registered contact for a customer, used for
// customer-visible notification fan-out.
type CustomerContact struct {
	ID         string
	CustomerID string
	UserID     string
	Name       string
	Email      string
	Phone      *string
	IsPrimary  bool
}
