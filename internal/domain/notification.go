package domain

import "time"

// NotificationType categorizes notifications for client rendering.
type NotificationType string

const (
	NotificationTypeStatusChange NotificationType = "STATUS_CHANGE"
	NotificationTypeAssignment   NotificationType = "ASSIGNMENT"
	NotificationTypeSlaWarning   NotificationType = "SLA_WARNING"
	NotificationTypeSlaBreach    NotificationType = "SLA_BREACH"
	NotificationTypeEscalation   NotificationType = "ESCALATION"
)

// NotificationStatus is the read-state lifecycle. Transitions only move
// forward: UNREAD -> READ -> ARCHIVED.
type NotificationStatus string

const (
	NotificationStatusUnread   NotificationStatus = "UNREAD"
	NotificationStatusRead     NotificationStatus = "READ"
	NotificationStatusArchived NotificationStatus = "ARCHIVED"
)

// Notification is the durable record behind every live push. It is created
// once and mutated only by the read/archive lifecycle.
type Notification struct {
	ID        string
	UserID    string
	Title     string
	Message   string
	Type      NotificationType
	Status    NotificationStatus
	Data      map[string]any
	ReadAt    *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
