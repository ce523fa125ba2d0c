package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fieldserve/workflow-service/internal/api/dto"
	"github.com/fieldserve/workflow-service/internal/auth"
	"github.com/fieldserve/workflow-service/internal/domain"
	"github.com/fieldserve/workflow-service/internal/service"
	apperrors "github.com/fieldserve/workflow-service/pkg/util/errorutil"
)

// NotificationsHandler exposes the inbox endpoints.
type NotificationsHandler struct {
	service *service.NotificationService
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notificationService *service.NotificationService) *NotificationsHandler {
	return &NotificationsHandler{service: notificationService}
}

// List GET /notifications.
func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var status *domain.NotificationStatus
	if raw := c.Query("status"); raw != "" {
		parsed := domain.NotificationStatus(raw)
		switch parsed {
		case domain.NotificationStatusUnread, domain.NotificationStatusRead, domain.NotificationStatusArchived:
			status = &parsed
		default:
			return apperrors.NewValidationError("unknown notification status", map[string]any{"status": raw})
		}
	}

	notifications, err := h.service.ListForUser(c.UserContext(), actor.UserID, status,
		queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if err != nil {
		return err
	}
	items := make([]dto.NotificationResponse, 0, len(notifications))
	for i := range notifications {
		items = append(items, dto.NewNotificationResponse(&notifications[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// MarkRead POST /notifications/:id/read.
func (h *NotificationsHandler) MarkRead(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.service.MarkRead(c.UserContext(), actor.UserID, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": domain.NotificationStatusRead}})
}

// Archive POST /notifications/:id/archive.
func (h *NotificationsHandler) Archive(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.service.Archive(c.UserContext(), actor.UserID, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": domain.NotificationStatusArchived}})
}

// UnreadCount GET /notifications/unread-count.
func (h *NotificationsHandler) UnreadCount(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	count, err := h.service.UnreadCount(c.UserContext(), actor.UserID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.UnreadCountResponse{Count: count}})
}
