package dto

import (
	"time"

	"github.com/fieldserve/workflow-service/internal/domain"
)

// NotificationResponse is one inbox entry.
type NotificationResponse struct {
	ID        string                    `json:"id"`
	Title     string                    `json:"title"`
	Message   string                    `json:"message"`
	Type      domain.NotificationType   `json:"type"`
	Status    domain.NotificationStatus `json:"status"`
	Data      map[string]any            `json:"data,omitempty"`
	ReadAt    *time.Time                `json:"read_at,omitempty"`
	CreatedAt time.Time                 `json:"created_at"`
}

// UnreadCountResponse reports the unread badge value.
type UnreadCountResponse struct {
	Count int64 `json:"count"`
}

// NewNotificationResponse maps a domain notification.
func NewNotificationResponse(notification *domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        notification.ID,
		Title:     notification.Title,
		Message:   notification.Message,
		Type:      notification.Type,
		Status:    notification.Status,
		Data:      notification.Data,
		ReadAt:    notification.ReadAt,
		CreatedAt: notification.CreatedAt,
	}
}
